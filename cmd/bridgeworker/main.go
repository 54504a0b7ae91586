// Command bridgeworker is the composition root for the payment-orchestration
// core: it wires Postgres, Redis, and the Horizon ledger gateway into the
// three long-lived background workers (bill processor, webhook retry sweep,
// quote expiry sweep) and runs them until a termination signal arrives.
//
// HTTP request handling (webhook ingress, a status API) is out of scope for
// this binary; it exists to demonstrate the core wired end to end, the way
// the teacher's examples/anchor-etherfuse main.go demonstrates the anchor
// SDK wired to a live HTTP server.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/cngnbridge/core/billpayment"
	"github.com/cngnbridge/core/cache"
	"github.com/cngnbridge/core/config"
	"github.com/cngnbridge/core/fees"
	"github.com/cngnbridge/core/ledger"
	"github.com/cngnbridge/core/logging"
	"github.com/cngnbridge/core/netclient"
	"github.com/cngnbridge/core/orchestrator"
	"github.com/cngnbridge/core/quote"
	"github.com/cngnbridge/core/rates"
	"github.com/cngnbridge/core/signers"
	"github.com/cngnbridge/core/transaction"
	"github.com/cngnbridge/core/webhook"
)

func main() {
	cfg, err := config.Load("bridgeworker", "/etc/cngnbridge", ".")
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logging.Configure(level, false)
	log := logging.For("bridgeworker")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	rateCache := cache.NewRedisCache(redisClient)

	httpClient := netclient.New()
	var signer ledger.Signer
	switch cfg.Ledger.SigningMode {
	case "callback":
		signer = signers.FromCallbackURL(httpClient, cfg.Ledger.SystemAddress, cfg.Ledger.SigningCallbackURL)
	default:
		signer, err = signers.FromSecret(cfg.Ledger.SystemSigningSeed)
		if err != nil {
			log.WithError(err).Fatal("failed to load system wallet signer")
		}
	}
	ledgerGW := ledger.NewHorizonGateway(cfg.Ledger.HorizonURL)
	builder := ledger.NewStandardPaymentBuilder(cfg.Ledger.HorizonURL, signer, cfg.Ledger.NetworkPassphrase)

	transactions := transaction.NewPostgresStore(pool)
	hooks := transaction.NewHookRegistry()
	orch := orchestrator.New(transactions, ledgerGW, builder, hooks)

	// Pricing pipeline: fees.Engine and rates.Service reference each other
	// (fee calculation needs an XLM/NGN rate; the rate provider needs no
	// fee knowledge), so fees.Engine is built first with a nil rate source
	// and wired in once rates.Service exists.
	feeStore := fees.NewPostgresStore(pool)
	auditSink := fees.NewPostgresAuditSink(pool)
	feeEngine := fees.NewEngine(feeStore, nil, auditSink, cfg.Pricing.RateCacheTTL, cfg.Pricing.RateCacheTTL)

	rateProvider := rates.NewAggregatedProvider(rates.CombineMedian,
		rates.NewFixedProvider("NGN", "cNGN"),
	)
	rateStore := rates.NewPostgresStore(pool)
	ratesService := rates.NewService(rateProvider, rateStore, rateCache, feeEngine, cfg.Pricing.RateCacheTTL, cfg.Pricing.QuoteExpiry, cfg.Pricing.PegTolerance)
	feeEngine.SetXLMRateSource(ratesService)

	quoteStore := quote.NewPostgresStore(pool)
	quoteSweeper := quote.NewSweeper(quoteStore, cfg.Pricing.QuoteExpiry)

	registry := billpayment.NewRegistry(
		billpayment.NewFlutterwaveProvider(httpClient, "https://api.flutterwave.com/v3", cfg.Providers.FlutterwaveAPIKey),
		billpayment.NewVTPassProvider(httpClient, "https://vtpass.com/api", cfg.Providers.VTPassAPIKey, cfg.Providers.VTPassSecretKey),
		billpayment.NewPaystackProvider(httpClient, "https://api.paystack.co", cfg.Providers.PaystackSecret),
	)
	bills := billpayment.NewPostgresStore(pool)
	cursors := billpayment.NewPostgresCursorStore(pool)
	billWorker := billpayment.NewWorker(bills, transactions, ledgerGW, builder, registry, cursors, cfg.Ledger.SystemAddress, cfg.Ledger.CNGNIssuer)

	webhookStore := webhook.NewPostgresStore(pool)
	verifiers := map[webhook.Provider]webhook.Verifier{
		webhook.ProviderFlutterwave: &webhook.FlutterwaveVerifier{Secret: cfg.Providers.FlutterwaveSecretHash},
		webhook.ProviderPaystack:    &webhook.PaystackVerifier{Secret: cfg.Providers.PaystackSecret},
	}
	eventIDs := map[webhook.Provider]webhook.EventIDExtractor{
		webhook.ProviderFlutterwave: webhook.FlutterwaveEventIDExtractor{},
		webhook.ProviderPaystack:    webhook.PaystackEventIDExtractor{},
	}
	references := map[webhook.Provider]webhook.ReferenceExtractor{
		webhook.ProviderFlutterwave: webhook.FlutterwaveReferenceExtractor{},
		webhook.ProviderPaystack:    webhook.PaystackReferenceExtractor{},
	}
	_ = webhook.New(webhookStore, orch, verifiers, eventIDs, references) // wired to the (out-of-scope) HTTP ingress handler
	webhookRetry := webhook.NewRetryWorker(webhookStore, orch, references)

	log.Info("starting background workers")

	var wg sync.WaitGroup
	for _, r := range []interface{ Run(context.Context) }{billWorker, webhookRetry, quoteSweeper} {
		wg.Add(1)
		go func(r interface{ Run(context.Context) }) {
			defer wg.Done()
			r.Run(ctx)
		}(r)
	}

	<-ctx.Done()
	log.Info("shutdown signal received, waiting for workers to drain")
	wg.Wait()
	log.Info("shutdown complete")
}

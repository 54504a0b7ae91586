package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadFailsWithoutRequiredLedgerFields(t *testing.T) {
	_, err := Load("")
	require.Error(t, err, "ledger.system_address and ledger.cngn_issuer have no defaults")
}

func TestLoadAppliesDefaultsOnceRequiredFieldsAreSet(t *testing.T) {
	t.Setenv("CNGNBRIDGE_LEDGER_SYSTEM_ADDRESS", "GSYSTEM")
	t.Setenv("CNGNBRIDGE_LEDGER_CNGN_ISSUER", "GISSUER")
	t.Setenv("CNGNBRIDGE_LEDGER_SYSTEM_SIGNING_SEED", "SSEED")

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, 50, cfg.BillWorker.BatchSize)
	require.Equal(t, 3, cfg.BillWorker.MaxRetries)
	require.Equal(t, []int64{10, 60, 300}, cfg.BillWorker.RetryBackoff)
	require.Equal(t, 10*time.Second, cfg.BillWorker.PollInterval)
	require.Equal(t, 60*time.Second, cfg.Webhook.RetryBackoff)
	require.Equal(t, "0.0001", cfg.Pricing.PegTolerance)
	require.Equal(t, "https://horizon-testnet.stellar.org", cfg.Ledger.HorizonURL)
	require.Equal(t, "secret", cfg.Ledger.SigningMode)
}

func TestLoadEnvOverridesDefault(t *testing.T) {
	t.Setenv("CNGNBRIDGE_LEDGER_SYSTEM_ADDRESS", "GSYSTEM")
	t.Setenv("CNGNBRIDGE_LEDGER_CNGN_ISSUER", "GISSUER")
	t.Setenv("CNGNBRIDGE_LEDGER_SYSTEM_SIGNING_SEED", "SSEED")
	t.Setenv("CNGNBRIDGE_BILL_WORKER_BATCH_SIZE", "25")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 25, cfg.BillWorker.BatchSize)
}

func TestLoadRejectsZeroBatchSize(t *testing.T) {
	t.Setenv("CNGNBRIDGE_LEDGER_SYSTEM_ADDRESS", "GSYSTEM")
	t.Setenv("CNGNBRIDGE_LEDGER_CNGN_ISSUER", "GISSUER")
	t.Setenv("CNGNBRIDGE_LEDGER_SYSTEM_SIGNING_SEED", "SSEED")
	t.Setenv("CNGNBRIDGE_BILL_WORKER_BATCH_SIZE", "0")

	_, err := Load("")
	require.Error(t, err)
}

func TestLoadRejectsEmptyPostgresDSN(t *testing.T) {
	t.Setenv("CNGNBRIDGE_LEDGER_SYSTEM_ADDRESS", "GSYSTEM")
	t.Setenv("CNGNBRIDGE_LEDGER_CNGN_ISSUER", "GISSUER")
	t.Setenv("CNGNBRIDGE_LEDGER_SYSTEM_SIGNING_SEED", "SSEED")
	t.Setenv("CNGNBRIDGE_POSTGRES_DSN", "")

	_, err := Load("")
	require.Error(t, err)
}

func TestLoadRejectsMissingSigningSeedInSecretMode(t *testing.T) {
	t.Setenv("CNGNBRIDGE_LEDGER_SYSTEM_ADDRESS", "GSYSTEM")
	t.Setenv("CNGNBRIDGE_LEDGER_CNGN_ISSUER", "GISSUER")

	_, err := Load("")
	require.Error(t, err)
}

func TestLoadAcceptsCallbackSigningModeWithoutSeed(t *testing.T) {
	t.Setenv("CNGNBRIDGE_LEDGER_SYSTEM_ADDRESS", "GSYSTEM")
	t.Setenv("CNGNBRIDGE_LEDGER_CNGN_ISSUER", "GISSUER")
	t.Setenv("CNGNBRIDGE_LEDGER_SIGNING_MODE", "callback")
	t.Setenv("CNGNBRIDGE_LEDGER_SIGNING_CALLBACK_URL", "https://signer.internal/sign")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "callback", cfg.Ledger.SigningMode)
}

func TestLoadRejectsCallbackModeWithoutURL(t *testing.T) {
	t.Setenv("CNGNBRIDGE_LEDGER_SYSTEM_ADDRESS", "GSYSTEM")
	t.Setenv("CNGNBRIDGE_LEDGER_CNGN_ISSUER", "GISSUER")
	t.Setenv("CNGNBRIDGE_LEDGER_SIGNING_MODE", "callback")

	_, err := Load("")
	require.Error(t, err)
}

// Command migrate applies or rolls back the SQL schema under migrations/
// using golang-migrate. It is a thin wrapper; the schema itself is the
// deliverable, this binary just drives it.
//
// Usage: migrate <up|down|version> [postgres-dsn]
package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq" // registers the "postgres" database/sql driver migrate.New dials by DSN scheme

	"github.com/cngnbridge/core/config"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: %s <up|down|version> [postgres-dsn]", os.Args[0])
	}
	command := os.Args[1]

	dsn := ""
	if len(os.Args) > 2 {
		dsn = os.Args[2]
	} else if cfg, err := config.Load("", "."); err == nil {
		dsn = cfg.Postgres.DSN
	}
	if dsn == "" {
		log.Fatal("no postgres DSN provided and none found in config")
	}

	m, err := migrate.New("file://migrations", dsn)
	if err != nil {
		log.Fatalf("failed to initialize migrator: %v", err)
	}

	switch command {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "version":
		version, dirty, verr := m.Version()
		if verr != nil {
			log.Fatalf("failed to read version: %v", verr)
		}
		fmt.Printf("version=%d dirty=%v\n", version, dirty)
		return
	default:
		log.Fatalf("unknown command %q", command)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("migration %s failed: %v", command, err)
	}
}

// Command purge deletes revocation entries whose tokens have expired.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"authd.io/internal/app"
	"authd.io/internal/config"
	"authd.io/internal/obs"
)

func main() {
	log.SetFlags(0)
	cfg, err := config.Load("purge", os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	obs.SetLevel(cfg.LogLevel)
	if cfg.DatabaseDSN == "" {
		// The in-memory ledger dies with the server process; nothing to purge.
		log.Fatal(app.ErrDatabaseRequired)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	rt, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	defer rt.Close()

	n, err := rt.Service.PurgeRevocations(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Fatal("purge timed out")
		}
		log.Fatalf("purge: %v", err)
	}
	obs.Logger().Info("revocations_purged", "count", n)
}

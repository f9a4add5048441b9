// Command setactive deactivates or reactivates an account. Accounts are
// never deleted; a deactivated user cannot log in, refresh or use an
// outstanding access token.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"authd.io/internal/app"
	"authd.io/internal/auth"
	"authd.io/internal/config"
)

func main() {
	log.SetFlags(0)

	fs := flag.NewFlagSet("setactive", flag.ExitOnError)
	email := fs.String("email", "", "account email (required)")
	deactivate := fs.Bool("deactivate", false, "deactivate the account")
	activate := fs.Bool("activate", false, "reactivate the account")
	dsn := fs.String("dsn", "", "PostgreSQL DSN (overrides AUTHD_PG_DSN)")
	_ = fs.Parse(os.Args[1:])

	if *deactivate == *activate {
		log.Fatal("usage: setactive -email EMAIL (-deactivate | -activate)")
	}

	cfg, err := config.Load("setactive", nil)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *dsn != "" {
		cfg.DatabaseDSN = *dsn
	}
	if cfg.DatabaseDSN == "" {
		log.Fatal(app.ErrDatabaseRequired)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rt, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	defer rt.Close()

	u, err := rt.Service.SetActive(ctx, *email, *activate)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			log.Fatalf("no user with email %q", *email)
		}
		log.Fatal(err)
	}
	state := "deactivated"
	if u.IsActive {
		state = "activated"
	}
	fmt.Printf("%s %s (%s)\n", state, u.Email, u.ID)
}

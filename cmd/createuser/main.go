// Command createuser provisions an account without going through the
// registration endpoint. Useful for bootstrapping staff accounts.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"authd.io/internal/app"
	"authd.io/internal/auth"
	"authd.io/internal/config"
)

func main() {
	log.SetFlags(0)

	fs := flag.NewFlagSet("createuser", flag.ExitOnError)
	email := fs.String("email", "", "account email (required)")
	name := fs.String("name", "", "full name")
	password := fs.String("password", os.Getenv("AUTHD_NEW_PASSWORD"), "password (or AUTHD_NEW_PASSWORD)")
	staff := fs.Bool("staff", false, "mark the account as staff")
	dsn := fs.String("dsn", "", "PostgreSQL DSN (overrides AUTHD_PG_DSN)")
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load("createuser", nil)
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

	u, err := rt.Service.CreateUser(ctx, *email, *name, *password, *staff)
	if err != nil {
		log.Fatal(describe(err))
	}
	fmt.Printf("created %s (%s)\n", u.Email, u.ID)
}

func describe(err error) string {
	var (
		verr *auth.ValidationError
		perr *auth.PolicyError
	)
	switch {
	case errors.As(err, &verr):
		keys := make([]string, 0, len(verr.Fields))
		for k := range verr.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		for _, k := range keys {
			fmt.Fprintf(&b, "%s: %s\n", k, strings.Join(verr.Fields[k], " "))
		}
		return strings.TrimSpace(b.String())
	case errors.As(err, &perr):
		return "password: " + strings.Join(perr.Reasons, " ")
	case errors.Is(err, auth.ErrDuplicateEmail):
		return "a user with this email already exists"
	}
	return err.Error()
}

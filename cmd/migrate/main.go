package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"authd.io/internal/app"
	"authd.io/internal/config"
	"authd.io/internal/migrate"
)

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate [up|down|status|version] [-dsn DSN]")
	}
	cmd := os.Args[1]

	cfg, err := config.Load("migrate "+cmd, os.Args[2:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := app.OpenDB(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	mgr := migrate.NewManager(db)

	switch cmd {
	case "up":
		err = mgr.Up(ctx)
	case "down":
		err = mgr.Down(ctx)
	case "version":
		var v int64
		v, err = mgr.Version(ctx)
		if err == nil {
			fmt.Println(v)
		}
	case "status":
		var status []migrate.Applied
		status, err = mgr.Status(ctx)
		if err == nil {
			for _, item := range status {
				state := "pending"
				if item.Applied {
					state = "applied"
				}
				fmt.Printf("%05d %-8s %s\n", item.Version, state, item.Name)
			}
		}
	default:
		log.Fatalf("unknown command %q", cmd)
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", cmd, err)
	}
}

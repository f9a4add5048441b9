// Command healthcheck exits 0 when the authd gRPC health endpoint reports
// SERVING. Intended as a container health probe.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"authd.io/internal/healthclient"
)

func main() {
	log.SetFlags(0)
	addr := flag.String("addr", "127.0.0.1:9090", "gRPC health address")
	service := flag.String("service", "", "service name to check (empty for the whole server)")
	timeout := flag.Duration("timeout", 3*time.Second, "request timeout")
	flag.Parse()

	client, err := healthclient.Dial(*addr)
	if err != nil {
		log.Fatalf("dial %s: %v", *addr, err)
	}
	defer client.Close()

	ctx, cancel := healthclient.WithTimeout(context.Background(), *timeout)
	defer cancel()

	res, err := client.Check(ctx, *service)
	if err != nil {
		log.Fatalf("unhealthy: %v", err)
	}
	fmt.Printf("serving version=%s\n", res.Version)
}

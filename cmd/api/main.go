package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"authd.io/internal/app"
	"authd.io/internal/config"
	"authd.io/internal/httpapi"
	"authd.io/internal/obs"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load(os.Args[0], os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	obs.SetLevel(cfg.LogLevel)
	obs.Init()
	obs.InitBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	defer rt.Close()

	probe := httpapi.ReadyProbe{}
	if rt.PG != nil {
		probe.Store = rt.PG
	}
	trusted, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	api := httpapi.New(probe, version, rt.Service,
		httpapi.WithRateLimit(cfg.RateBurst, cfg.RatePerSec),
		httpapi.WithMaxBodyBytes(cfg.MaxBodyBytes),
		httpapi.WithTrustedProxies(trusted),
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var grpcSrv *grpc.Server
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatalf("grpc listen: %v", err)
		}
		grpcSrv = grpc.NewServer()
		httpapi.NewGRPCServer(probe, version).Register(grpcSrv)
		go func() {
			if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				obs.Logger().Error("grpc_serve_failed", "error", err.Error())
				stop()
			}
		}()
	}

	obs.Logger().Info("starting",
		"service", "authd",
		"version", version,
		"http_addr", cfg.HTTPAddr,
		"grpc_addr", cfg.GRPCAddr,
		"persistent", rt.DB != nil)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obs.Logger().Error("http_serve_failed", "error", err.Error())
			stop()
		}
	}()

	<-ctx.Done()
	obs.Logger().Info("shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		obs.Logger().Warn("http_shutdown", "error", err.Error())
	}
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	obs.Logger().Info("stopped")
}

package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"adminkit.org/internal/audit"
	"adminkit.org/internal/authn"
	"adminkit.org/internal/config"
	"adminkit.org/internal/eventbus"
	"adminkit.org/internal/httpapi"
	"adminkit.org/internal/obs"
	"adminkit.org/internal/rbac"
	"adminkit.org/internal/session"
	"adminkit.org/internal/store/pg"
)

var version = "0.1.0"

func main() {
	configPath := flag.String("config", os.Getenv("ADMINKIT_CONFIG"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	obs.Init()

	store, err := pg.Open(cfg.Database.DSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	bus := eventbus.Default()

	rbacSvc, err := rbac.NewService(store, bus)
	if err != nil {
		log.Fatalf("rbac service: %v", err)
	}

	registry, err := session.NewRegistry(store, bus)
	if err != nil {
		log.Fatalf("session registry: %v", err)
	}

	manager, err := authn.NewManager(rbacSvc, registry, bus, cfg.Auth.Secret,
		authn.WithIssuer(cfg.Auth.Issuer),
		authn.WithAccessTTL(cfg.Auth.AccessTTL),
		authn.WithConcurrentThreshold(int64(cfg.Session.ConcurrentThreshold)),
	)
	if err != nil {
		log.Fatalf("auth manager: %v", err)
	}

	auditSvc, err := audit.NewService(store)
	if err != nil {
		log.Fatalf("audit service: %v", err)
	}
	audit.NewListener(auditSvc).Register(bus)

	ctx := context.Background()
	if err := rbacSvc.EnsureBuiltins(ctx); err != nil {
		log.Fatalf("ensure builtin permissions: %v", err)
	}

	sweeper, err := session.NewSweeper(registry, cfg.Session.SweepSchedule)
	if err != nil {
		log.Fatalf("session sweeper: %v", err)
	}
	sweeper.Start()

	api := httpapi.New(httpapi.Options{
		Auth:               manager,
		RBAC:               rbacSvc,
		Audit:              auditSvc,
		ReadyProbe:         httpapi.ReadyProbe{DB: store.DB()},
		Version:            version,
		RateLimitBurst:     cfg.RateLimit.Burst,
		RateLimitPerSecond: cfg.RateLimit.PerSecond,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	log.Printf("Starting adminkit-api %s on %s", version, srv.Addr)
	obs.SetReady(true)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	obs.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	_ = srv.Shutdown(shutdownCtx)
	sweeper.Stop()
	_ = store.Close()
	log.Println("Stopped")
}

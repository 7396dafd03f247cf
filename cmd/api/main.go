package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/anshika-invatu/merchantwebapi-sub000/internal/access"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/auth"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/collab"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/config"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/healthsrv"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/httpapi"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/journal"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/notify"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/obs"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := obs.InitTracing(ctx, cfg.TraceEndpoint, "merchantapi", version)
	if err != nil {
		log.Fatalf("tracing: %v", err)
	}

	if missing := cfg.Missing(); len(missing) > 0 {
		log.Fatalf("collaborator base URLs missing: %v", missing)
	}
	services, err := collab.New(cfg.Services, cfg.ClientTimeout)
	if err != nil {
		log.Fatalf("collaborators: %v", err)
	}
	verifier, err := auth.NewVerifier(cfg.AuthSecret)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}
	mode, err := access.ParseMode(cfg.RoleMatch)
	if err != nil {
		log.Fatalf("access: %v", err)
	}

	var (
		bus   *notify.Bus
		probe httpapi.ReadyProbe
	)
	if cfg.Notify.RedisAddr != "" {
		pub := notify.NewRedisPublisher(cfg.Notify)
		defer pub.Close()
		bus = notify.NewBus(pub)
		probe.Bus = pub
	} else {
		bus = notify.NewBus(nil)
	}

	// Journal in Postgres when a DSN is set, to the log otherwise.
	var (
		store journal.Store = journal.LogStore{}
		db    *sql.DB
	)
	if cfg.JournalDSN != "" {
		openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pg, err := journal.OpenPG(openCtx, cfg.JournalDSN)
		cancel()
		if err != nil {
			log.Fatalf("journal: %v", err)
		}
		db = pg.DB()
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		store = pg
		probe.DB = db
	}

	api := httpapi.New(httpapi.Deps{
		Services:     services,
		Verifier:     verifier,
		Access:       access.Checker{Mode: mode},
		Bus:          bus,
		Journal:      journal.NewRecorder(store),
		Ready:        probe,
		Version:      version,
		FunctionsKey: cfg.FunctionsKey,
		RateBurst:    cfg.RateBurst,
		RatePerSec:   cfg.RatePerSec,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var gs *grpc.Server
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatalf("grpc listen: %v", err)
		}
		gs = grpc.NewServer()
		health := healthsrv.New(probe)
		health.Register(gs)
		go health.Watch(ctx, 10*time.Second)
		go func() {
			if err := gs.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				log.Fatalf("grpc serve: %v", err)
			}
		}()
		log.Printf("gRPC health on %s", cfg.GRPCAddr)
	}

	log.Printf("Starting merchantapi %s on %s (role match %s)", version, srv.Addr, mode)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(shutdownCtx)
	if gs != nil {
		gs.GracefulStop()
	}
	bus.Wait()
	_ = shutdownTracing(shutdownCtx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}

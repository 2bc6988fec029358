// Command verifier runs the petition signature verification service:
// the HTTP intake surface, the background verification worker and the
// revocation snapshot refresher.
package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"peticao/internal/document"
	"peticao/internal/events"
	"peticao/internal/evidence"
	"peticao/internal/platform/config"
	"peticao/internal/platform/httpserver"
	"peticao/internal/platform/logger"
	"peticao/internal/platform/postgres"
	redisplatform "peticao/internal/platform/redis"
	"peticao/internal/revocation"
	"peticao/internal/signature"
	"peticao/internal/submission/service"
	petitionstore "peticao/internal/submission/store/petition"
	submissionstore "peticao/internal/submission/store/submission"
	httptransport "peticao/internal/transport/http"
	"peticao/internal/verification"
	"peticao/internal/verification/metrics"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "verifier:", err)
		os.Exit(1)
	}
}

// run wires dependencies and owns the process lifecycle. Business logic
// lives in the internal packages.
func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(os.Getenv("LOG_LEVEL"))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	trust, err := config.LoadTrust(cfg.Revocation.TrustFile)
	if err != nil {
		return fmt.Errorf("load trust file: %w", err)
	}
	roots, err := signature.LoadRoots(trust.RootPaths)
	if err != nil {
		return fmt.Errorf("load trusted roots: %w", err)
	}

	pool, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	if pool != nil {
		defer pool.Close()
	}

	var (
		submissions submissionstore.Store
		petitions   petitionstore.Store
		evidences   evidence.Store
	)
	if pool != nil {
		submissions = submissionstore.NewPostgresStore(pool)
		petitions = petitionstore.NewPostgresStore(pool)
		evidences = evidence.NewPostgresStore(pool)
	} else {
		log.Warn("POSTGRES_URL not set, using in-memory stores; submissions will not survive restarts")
		submissions = submissionstore.NewMemoryStore()
		petitions = petitionstore.NewMemoryStore()
		evidences = evidence.NewMemoryStore()
	}

	redisClient, err := redisplatform.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	var cache revocation.Cache
	if redisClient != nil {
		defer redisClient.Close()
		cache = revocation.NewRedisCache(redisClient.Client)
	} else {
		log.Warn("REDIS_URL not set, using in-memory revocation cache")
		cache = revocation.NewMemoryCache()
	}

	fetcher := revocation.NewFetcher(cfg.Revocation.FetchTimeout)
	checker := revocation.NewChecker(cache, fetcher, trust.Authorities,
		revocation.WithStrict(cfg.Revocation.Strict),
		revocation.WithSnapshotTTL(cfg.Revocation.SnapshotTTL),
		revocation.WithCheckerLogger(log),
	)
	refresher := revocation.NewRefresher(cache, fetcher, trust.Authorities,
		cfg.Revocation.RefreshInterval, log)

	var publisher events.Publisher = events.NoopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err := events.NewKafkaPublisher(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer kafka.Close()
		publisher = kafka
	}

	m := metrics.New()
	orchestrator := verification.NewOrchestrator(
		document.NewValidator(cfg.Verify.MaxUploadBytes),
		signature.NewValidator(roots, signature.WithLogger(log)),
		checker,
		submissions,
		petitions,
		evidences,
		verification.WithMetrics(m),
		verification.WithLogger(log),
		verification.WithPublisher(publisher),
	)
	worker := verification.NewWorker(orchestrator, submissions,
		verification.WithWorkerLogger(log),
		verification.WithWorkerMetrics(m),
		verification.WithSweepInterval(cfg.Verify.SweepInterval),
		verification.WithBatchSize(cfg.Verify.SweepBatch),
		verification.WithConcurrency(cfg.Verify.Workers),
		verification.WithMaxAttempts(cfg.Verify.MaxAttempts),
	)

	signingKey := []byte(cfg.Server.JWTSigningKey)
	if len(signingKey) == 0 {
		log.Warn("JWT_SIGNING_KEY not set, using an ephemeral key; download tokens will not survive restarts")
		signingKey = make([]byte, 32)
		if _, err := rand.Read(signingKey); err != nil {
			return fmt.Errorf("generate signing key: %w", err)
		}
	}

	intake := service.NewService(submissions, petitions,
		service.WithLogger(log),
		service.WithMaxUploadBytes(cfg.Verify.MaxUploadBytes),
	)
	handler := httptransport.NewHandler(intake, evidences, signingKey, cfg.Verify.MaxUploadBytes, log)
	router := httptransport.NewRouter(handler, log)
	srv := httpserver.New(cfg.Server.Addr, router)

	go refresher.Run(ctx)
	go worker.Run(ctx)

	serverErr := make(chan error, 1)
	go func() {
		log.Info("verifier listening",
			slog.String("addr", cfg.Server.Addr),
			slog.Bool("revocation_strict", cfg.Revocation.Strict),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

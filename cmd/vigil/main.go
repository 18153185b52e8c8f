package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nadmax/vigil/internal/backend"
	"github.com/nadmax/vigil/internal/checkpoint"
	"github.com/nadmax/vigil/internal/config"
	"github.com/nadmax/vigil/internal/history"
	"github.com/nadmax/vigil/internal/logging"
	"github.com/nadmax/vigil/internal/middleware"
	"github.com/nadmax/vigil/internal/notify"
	"github.com/nadmax/vigil/internal/ops"
	"github.com/nadmax/vigil/internal/syncer"
	"github.com/nadmax/vigil/internal/task"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load(os.Getenv("VIGIL_CONFIG"))
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.NewStdLogger()

	client, err := backend.NewClient(backend.Config{
		BaseURL: cfg.Backend.URL,
		Token:   cfg.Backend.Token,
		UserID:  cfg.Backend.UserID,
		Timeout: cfg.Poll.HTTPTimeout(),
	})
	if err != nil {
		log.Fatal(err)
	}

	var cp syncer.Checkpoint
	if cfg.Redis.Addr != "" {
		store, err := checkpoint.NewRedisStore(cfg.Redis.Addr, cfg.Backend.UserID)
		if err != nil {
			log.Fatal(err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Printf("failed to close checkpoint store: %v", err)
			}
		}()
		cp = store
		log.Printf("Checkpointing to Redis at %s", cfg.Redis.Addr)
	}

	var archive *history.PostgresArchive
	if cfg.Postgres.DSN != "" {
		archive, err = history.NewPostgresArchive(cfg.Postgres.DSN)
		if err != nil {
			log.Fatal(err)
		}
		defer func() {
			if err := archive.Close(); err != nil {
				log.Printf("failed to close history archive: %v", err)
			}
		}()
		log.Printf("Archiving history to PostgreSQL")
	}

	sinks := []notify.Sink{notify.NewLogSink(logger)}
	if archive != nil {
		sinks = append(sinks, history.NewSink(archive))
	}
	if cfg.Notify.Email.Enabled {
		emailSink, err := notify.NewEmailSink(notify.EmailConfig{
			APIKey:      cfg.Notify.Email.APIKey,
			FromName:    cfg.Notify.Email.FromName,
			FromAddress: cfg.Notify.Email.FromAddress,
			To:          cfg.Notify.Email.To,
			MinSeverity: cfg.Notify.Email.MinSeverity,
		}, logger)
		if err != nil {
			log.Fatal(err)
		}
		sinks = append(sinks, emailSink)
	}

	var onTerminal func(task.Record)
	if archive != nil {
		onTerminal = func(rec task.Record) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := archive.RecordTaskOutcome(ctx, rec); err != nil {
				log.Printf("failed to archive task outcome %s: %v", rec.ID, err)
			}
		}
	}

	reauth := make(chan struct{})
	s := syncer.New(syncer.Config{
		Client:                client,
		Logger:                logger,
		Checkpoint:            cp,
		Sinks:                 sinks,
		OnTerminal:            onTerminal,
		OnSessionExpired:      func() { close(reauth) },
		TaskInterval:          cfg.Poll.TaskInterval(),
		AlertInterval:         cfg.Poll.AlertInterval(),
		UnreadInterval:        cfg.Poll.UnreadInterval(),
		AlertPageLimit:        cfg.Poll.AlertPageLimit,
		HighSeverityThreshold: cfg.Notify.HighSeverityThreshold,
		MaxMessageLength:      cfg.Notify.MaxMessageLength,
	})

	s.Start()
	log.Printf("Synchronizing with backend at %s", cfg.Backend.URL)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/api/", ops.NewOps(s, archive))

	go func() {
		log.Printf("Ops server listening on :%s", cfg.Ops.Port)
		if err := http.ListenAndServe(":"+cfg.Ops.Port, middleware.MetricsMiddleware(mux)); err != nil {
			log.Fatal(err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Println("Shutting down...")
	case <-reauth:
		log.Println("Session expired: all pollers halted, re-authentication required")
	}

	s.Close()
}

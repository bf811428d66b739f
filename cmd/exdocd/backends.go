package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/cache"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/config"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/document"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/queue"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/storage/local"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/storage/postgres"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/storage/sqlite"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/submission"
)

// backends holds the stores and brokers the daemon runs against.
type backends struct {
	submissions *submission.Service
	documents   document.SnapshotStore
	consumer    *queue.Consumer

	closers []func() error
}

// openBackends builds the submission service from the configured storage
// driver, the optional RabbitMQ queue and the optional Redis tally.
func openBackends(ctx context.Context, dir string, cfg *config.LocalConfig, logger *slog.Logger) (*backends, error) {
	b := &backends{}
	if err := b.open(ctx, dir, cfg, logger); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

func (b *backends) open(ctx context.Context, dir string, cfg *config.LocalConfig, logger *slog.Logger) error {
	var err error
	var store submission.Store
	switch cfg.Storage.Driver {
	case "sqlite":
		path := cfg.Storage.SQLitePath
		if path == "" {
			path = filepath.Join(dir, "exdoc.db")
		}
		db, err := sqlite.Open(path)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, db.Close)
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
		store = sqlite.NewSubmissionStore(db)
		b.documents = sqlite.NewDocumentStore(db)

	case "postgres":
		pool, err := postgres.Connect(ctx, cfg.Storage.PostgresURL)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, func() error { pool.Close(); return nil })
		repo := postgres.NewSubmissionRepository(pool)
		if err := repo.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
		store = repo
		if b.documents, err = fileDocuments(dir); err != nil {
			return err
		}

	default:
		store = submission.NewMemoryStore()
		if b.documents, err = fileDocuments(dir); err != nil {
			return err
		}
	}
	logger.Info("storage ready", "driver", cfg.Storage.Driver)

	opts := []submission.Option{submission.WithLogger(logger.With("component", "submission"))}

	if cfg.Cache.Addr != "" {
		client, err := cache.NewClient(ctx, cfg.Cache.Addr, cfg.Cache.Password)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, client.Close)
		opts = append(opts, submission.WithTally(cache.NewAnswerTally(client, cfg.Cache.TTL)))
		logger.Info("redis tally enabled", "addr", cfg.Cache.Addr)
	} else {
		opts = append(opts, submission.WithTally(submission.NewMemoryTally()))
	}

	var conn *queue.Connection
	if cfg.Queue.URL != "" {
		conn, err = queue.NewConnection(cfg.Queue.URL)
		if err != nil {
			return fmt.Errorf("connect rabbitmq: %w", err)
		}
		b.closers = append(b.closers, conn.Close)
		opts = append(opts, submission.WithPublisher(queue.NewProducer(conn)))
	}

	b.submissions = submission.NewService(store, opts...)

	if conn != nil {
		ccfg := queue.DefaultConsumerConfig()
		ccfg.Workers = cfg.Queue.Workers
		b.consumer = queue.NewConsumer(conn, b.submissions.Apply, ccfg)
		logger.Info("submission queue enabled", "workers", ccfg.Workers)
	}
	return nil
}

func fileDocuments(dir string) (*local.DocumentStore, error) {
	store, err := local.NewStore(dir)
	if err != nil {
		return nil, err
	}
	return local.NewDocumentStore(store), nil
}

// Close releases everything in reverse order of opening.
func (b *backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	b.closers = nil
	return errors.Join(errs...)
}

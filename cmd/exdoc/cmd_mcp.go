package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/config"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/document"
	mcpserver "github.com/shivamrawat1/tiptap-extensions-frontend/internal/mcp"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/storage/local"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/storage/sqlite"
)

var mcpHTTPAddr string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the document tools over MCP (stdio by default)",
	Long: `Serve the document tools over the Model Context Protocol.

Agents can open documents, author quizzes and code exercises, switch to
learner mode, answer, run code and ask for hints. Code runs, hints and
answers go to the daemon configured in client.base_url.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().StringVar(&mcpHTTPAddr, "http", "", "Serve over HTTP on this address instead of stdio")
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dir, err := config.EnsureDir()
	if err != nil {
		return err
	}

	// stdout carries the protocol
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel()}))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openDocumentStore(ctx, dir, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	remoteCfg := cfg.Remote()
	remoteCfg.Logger = logger
	srv := mcpserver.NewServer(mcpserver.Config{
		Client:    remoteCfg,
		Store:     store,
		Username:  cfg.Auth.DefaultUsername,
		Backfill:  cfg.Backfill(),
		HintDelay: cfg.Client.HintDelay,
		Logger:    logger,
	})
	defer func() {
		if err := srv.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("failed to save documents", "error", err)
		}
	}()

	if mcpHTTPAddr != "" {
		logger.Info("serving MCP over HTTP", "addr", mcpHTTPAddr)
		return srv.ServeHTTP(ctx, mcpHTTPAddr)
	}
	return srv.ServeStdio(ctx)
}

// openDocumentStore shares the daemon's document store: the SQLite database
// for the sqlite driver, JSON files otherwise.
func openDocumentStore(ctx context.Context, dir string, cfg *config.LocalConfig) (document.SnapshotStore, func(), error) {
	if cfg.Storage.Driver == "sqlite" {
		db, err := sqlite.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		return sqlite.NewDocumentStore(db), func() { db.Close() }, nil
	}

	store, err := local.NewStore(dir)
	if err != nil {
		return nil, nil, err
	}
	return local.NewDocumentStore(store), func() {}, nil
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ebiseau/mail-sorter/internal/attachment"
	"github.com/ebiseau/mail-sorter/internal/classify"
	"github.com/ebiseau/mail-sorter/internal/config"
	"github.com/ebiseau/mail-sorter/internal/db"
	"github.com/ebiseau/mail-sorter/internal/imap"
	"github.com/ebiseau/mail-sorter/internal/mbox"
	"github.com/ebiseau/mail-sorter/internal/pipeline"
	"github.com/ebiseau/mail-sorter/internal/report"
	"github.com/ebiseau/mail-sorter/internal/server"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mail-sorter",
		Short: "Ingest, classify, and report on emails from a mailbox",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd)
			if err != nil {
				return err
			}

			logger := setupLogger(cfg.LogLevel)
			slog.SetDefault(logger)
			logger.Info("starting email ingestion pipeline",
				"mailbox", cfg.Mailbox, "status", cfg.Criteria)

			return run(cfg, logger)
		},
	}
	config.RegisterFlags(rootCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Browse previously classified emails over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServe(cmd)
			if err != nil {
				return err
			}
			return serve(cfg, setupLogger(cfg.LogLevel))
		},
	}
	config.RegisterServeFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run acquires the store and transport, executes one batch, and guarantees
// both are released on every exit path.
func run(cfg config.Config, logger *slog.Logger) error {
	store, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close database", "err", err)
		}
	}()
	logger.Info("database opened", "path", cfg.DBPath)

	var mailbox pipeline.Mailbox
	if cfg.MboxPath != "" {
		mailbox = mbox.NewSource(cfg.MboxPath, logger)
	} else {
		mailbox = imap.NewClient(imap.Options{
			Host:     cfg.IMAPHost,
			Port:     cfg.IMAPPort,
			Username: cfg.Username,
			Password: cfg.Password,
		}, logger)
	}

	classifier := classify.New(cfg.Language, cfg.InternalDomain)
	extractor := attachment.NewExtractor(cfg.AttachmentsDir, logger)
	aggregator := report.NewAggregator(logger)

	p := pipeline.New(mailbox, store, classifier, extractor, aggregator, pipeline.Options{
		Mailbox:   cfg.Mailbox,
		Criteria:  cfg.Criteria,
		Limit:     cfg.Limit,
		ReportDir: cfg.ReportsDir,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = p.Run(ctx)

	logger.Info("email ingestion pipeline finished",
		"processed", aggregator.Total(),
		"errors", aggregator.ErrorCount(),
		"attachments", aggregator.AttachmentCount(),
	)
	return err
}

func serve(cfg config.Config, logger *slog.Logger) error {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      server.New(database, logger).Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting browse server", "addr", cfg.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func setupLogger(level string) *slog.Logger {
	logLevel := new(slog.LevelVar)
	switch level {
	case "debug":
		logLevel.Set(slog.LevelDebug)
	case "warn":
		logLevel.Set(slog.LevelWarn)
	case "error":
		logLevel.Set(slog.LevelError)
	default:
		logLevel.Set(slog.LevelInfo)
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	return slog.New(handler)
}

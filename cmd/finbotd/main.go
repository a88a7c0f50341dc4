// Finbotd is a retrieval-augmented question-answering daemon.
//
// It ingests documents (uploads or URLs) into per-session in-memory vector
// stores and answers questions against them through an LLM provider.
//
// Configuration is loaded from an optional YAML file and FINBOT_* environment
// variables. See internal/config for details.
//
// Usage:
//
//	# Start server with defaults
//	finbotd
//
//	# Configure via environment
//	FINBOT_SERVER_PORT=9000 FINBOT_PROVIDER_API_KEY=sk-... finbotd
//
//	# Configure via file
//	finbotd -config /etc/finbotd/config.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/finbotd/internal/config"
	"github.com/fyrsmithlabs/finbotd/internal/extract"
	finbothttp "github.com/fyrsmithlabs/finbotd/internal/http"
	"github.com/fyrsmithlabs/finbotd/internal/logging"
	"github.com/fyrsmithlabs/finbotd/internal/provider"
	"github.com/fyrsmithlabs/finbotd/internal/rag"
	"github.com/fyrsmithlabs/finbotd/internal/session"
	"github.com/fyrsmithlabs/finbotd/internal/telemetry"
	"github.com/fyrsmithlabs/finbotd/internal/vectorstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  finbotd            Start the finbotd daemon\n")
			fmt.Fprintf(os.Stderr, "  finbotd version    Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("finbotd\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires configuration, logging, the provider client, the session
// registry, the RAG service, and the HTTP server, then blocks until the
// context is cancelled.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logging.Sync(logger)

	logger.Info("starting finbotd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("chat_model", cfg.Provider.ChatModel),
		zap.String("embedding_model", cfg.Provider.EmbeddingModel),
		zap.Bool("api_key_configured", cfg.Provider.APIKey.IsSet()),
	)

	tel := telemetry.New(ctx, cfg.Telemetry, version)
	if reason := tel.DegradedReason(); reason != "" {
		logger.Warn("telemetry disabled", zap.String("reason", reason))
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown", zap.Error(err))
		}
	}()

	engine := vectorstore.NewEngine(logger)
	registry := session.NewRegistry(engine, cfg.Session, logger)
	extractor := extract.New(cfg.Ingest.FetchTimeout, logger)
	prov := provider.NewClient(cfg.Provider, logger)

	svc, err := rag.New(registry, extractor, prov, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing rag service: %w", err)
	}

	srv, err := finbothttp.NewServer(svc, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing http server: %w", err)
	}

	go registry.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Ragd is the retrieval-augmented answering daemon.
//
// It stores text documents as vector embeddings, retrieves the most
// semantically similar documents for a question, and answers with a language
// model when an API key is configured, falling back to a deterministic
// summary otherwise.
//
// Configuration is loaded from ~/.config/ragd/config.yaml and overridden by
// environment variables. See internal/config for details.
//
// Usage:
//
//	# Start with defaults (embedded chromem store, local fastembed model)
//	ragd
//
//	# Configure via environment
//	SERVER_HTTP_PORT=9090 VECTORSTORE_PROVIDER=qdrant ragd
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
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/completion"
	"github.com/fyrsmithlabs/ragd/internal/config"
	"github.com/fyrsmithlabs/ragd/internal/embeddings"
	"github.com/fyrsmithlabs/ragd/internal/engine"
	ragdhttp "github.com/fyrsmithlabs/ragd/internal/http"
	"github.com/fyrsmithlabs/ragd/internal/logging"
	"github.com/fyrsmithlabs/ragd/internal/repository"
	"github.com/fyrsmithlabs/ragd/internal/telemetry"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.config/ragd/config.yaml)")
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
			fmt.Fprintf(os.Stderr, "  ragd           Start the answering daemon\n")
			fmt.Fprintf(os.Stderr, "  ragd version   Show version information\n")
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
	fmt.Printf("ragd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires the pipeline and blocks until ctx is cancelled:
// config -> logging -> telemetry -> embedder -> vector store -> repository ->
// completion provider -> answer engine -> HTTP server.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		ServiceName: "ragd",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logging.Sync(logger)
	}()

	logger.Info("starting ragd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("embeddings_provider", cfg.Embeddings.Provider),
		zap.String("vectorstore_provider", cfg.VectorStore.Provider),
		zap.String("completion_provider", cfg.Completion.Provider))

	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Protocol:       cfg.Telemetry.Protocol,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}, logger.Named("telemetry"))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	embedder, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider:  cfg.Embeddings.Provider,
		Model:     cfg.Embeddings.Model,
		BaseURL:   cfg.Embeddings.BaseURL,
		CacheDir:  cfg.Embeddings.CacheDir,
		MaxLength: cfg.Embeddings.MaxLength,
	})
	if err != nil {
		return fmt.Errorf("failed to create embedding provider: %w", err)
	}

	logger.Info("embedding provider ready",
		zap.String("provider", cfg.Embeddings.Provider),
		zap.String("model", cfg.Embeddings.Model),
		zap.Int("dimension", embedder.Dimension()))

	store, err := vectorstore.NewStore(cfg, logger.Named("vectorstore"))
	if err != nil {
		embedder.Close()
		return fmt.Errorf("failed to create vector store: %w", err)
	}

	repo, err := repository.NewRepository(store, embedder, cfg.Retrieval.Collection, logger.Named("repository"))
	if err != nil {
		store.Close()
		embedder.Close()
		return fmt.Errorf("failed to create document repository: %w", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Warn("repository close failed", zap.Error(err))
		}
		if err := embedder.Close(); err != nil {
			logger.Warn("embedder close failed", zap.Error(err))
		}
	}()

	// Startup precondition: the collection must exist and be query-ready.
	if err := repo.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize document repository: %w", err)
	}

	completer, err := completion.NewProvider(completion.Config{
		Provider:    cfg.Completion.Provider,
		Model:       cfg.Completion.Model,
		BaseURL:     cfg.Completion.BaseURL,
		Temperature: cfg.Completion.Temperature,
		MaxTokens:   cfg.Completion.MaxTokens,
	}, logger.Named("completion"))
	if err != nil {
		return fmt.Errorf("failed to create completion provider: %w", err)
	}

	eng, err := engine.NewEngine(repo, completer, engine.Config{
		TopK:                cfg.Retrieval.TopK,
		SimilarityThreshold: float32(cfg.Retrieval.SimilarityThreshold),
	}, logger.Named("engine"))
	if err != nil {
		return fmt.Errorf("failed to create answer engine: %w", err)
	}

	logger.Info("answer engine ready",
		zap.Int("top_k", cfg.Retrieval.TopK),
		zap.Float64("similarity_threshold", cfg.Retrieval.SimilarityThreshold),
		zap.Bool("completion_available", completer.Available()),
		zap.Int64("documents", repo.Count(ctx)))

	srv, err := ragdhttp.NewServer(eng, repo, logger.Named("http"), &ragdhttp.Config{
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	if err := srv.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

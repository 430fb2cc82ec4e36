// Memoryd is the ProjectZ long-term memory daemon.
//
// It exposes a small HTTP API over a semantic memory engine: add
// conversations, search memories, list them, clear them. The engine
// extracts facts with an LLM, embeds them, and stores them in a
// vector store (embedded chromem by default, Qdrant optionally).
//
// Configuration is loaded from an optional YAML file plus environment
// variables. OPENAI_API_KEY is required.
//
// Usage:
//
//	# Start with defaults (chromem store under ./data/memories)
//	OPENAI_API_KEY=sk-... memoryd
//
//	# Explicit config file
//	OPENAI_API_KEY=sk-... memoryd -config memoryd.yaml
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

	"github.com/Omkar399/project-z/internal/config"
	"github.com/Omkar399/project-z/internal/embeddings"
	"github.com/Omkar399/project-z/internal/extraction"
	httpserver "github.com/Omkar399/project-z/internal/http"
	"github.com/Omkar399/project-z/internal/logging"
	"github.com/Omkar399/project-z/internal/memory"
	"github.com/Omkar399/project-z/internal/vectorstore"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", httpserver.ServiceName, httpserver.Version)
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		log.Fatalf("memoryd: %v", err)
	}
}

// run starts the daemon and blocks until shutdown.
//
// Engine construction failure is not fatal: the server still starts
// and reports the failure through the liveness and health endpoints,
// while every data operation returns 503. Only configuration errors
// abort startup.
func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logging.Sync(logger)

	logger.Info("starting memoryd",
		zap.String("version", httpserver.Version),
		zap.Int("port", cfg.Server.Port),
		zap.String("vectorstore", cfg.VectorStore.Provider),
	)

	engine, store, initErr := initEngine(cfg, logger)
	if initErr != nil {
		logger.Error("memory engine initialization failed; serving in degraded mode", zap.Error(initErr))
	}
	if store != nil {
		defer func() {
			if err := store.Close(); err != nil {
				logger.Warn("closing vector store", zap.Error(err))
			}
		}()
	}

	srv, err := httpserver.NewServer(engine, initErr, logger, &httpserver.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// initEngine wires extractor, embedder, and vector store into the
// memory engine. The engine handle is constructed exactly once; on
// failure the returned error is surfaced to the HTTP layer and never
// retried.
func initEngine(cfg *config.Config, logger *zap.Logger) (memory.Engine, vectorstore.Store, error) {
	extractor, err := extraction.NewOpenAIExtractor(extraction.Config{
		APIKey:      cfg.OpenAI.APIKey.Value(),
		BaseURL:     cfg.OpenAI.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating fact extractor: %w", err)
	}

	embedder, err := embeddings.NewService(embeddings.Config{
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.Embedder.Model,
		APIKey:  cfg.OpenAI.APIKey.Value(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating embedding service: %w", err)
	}

	store, err := vectorstore.NewStore(cfg.VectorStore, embedder, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("creating vector store: %w", err)
	}

	engine, err := memory.NewService(store, extractor, logger)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("creating memory engine: %w", err)
	}

	logger.Info("memory engine initialized",
		zap.String("collection", cfg.VectorStore.Collection),
		zap.String("embedding_model", cfg.Embedder.Model),
		zap.String("llm_model", cfg.LLM.Model),
	)

	return engine, store, nil
}

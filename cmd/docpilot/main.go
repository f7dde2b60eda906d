package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/docpilot/docpilot"
	"github.com/docpilot/docpilot/api"
	"github.com/docpilot/docpilot/core/llm"
	"github.com/docpilot/docpilot/core/pipeline"
	pkgconfig "github.com/docpilot/docpilot/pkg/config"
)

func run(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	cfg := NewDefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if err := pkgconfig.Load(configPath, cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	} else if err := cfg.Validate(); err != nil {
		return fmt.Errorf("default config invalid: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	dbConfig, err := cfg.Database.Resolve()
	if err != nil {
		return fmt.Errorf("database config: %w", err)
	}

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("db_host", dbConfig.Host),
		slog.String("embedding_mode", cfg.Embedding.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	d, err := docpilot.NewDocpilot(dbConfig, cfg.Embedding.Dimensions)
	if err != nil {
		return fmt.Errorf("init docpilot: %w", err)
	}
	defer d.Close()

	embedder, err := buildEmbedder(cfg.Embedding)
	if err != nil {
		return fmt.Errorf("init embedder: %w", err)
	}
	d.SetPipeline(pipeline.NewPipeline(pipeline.NewChunker(cfg.Chunking.Options()), embedder))

	if err := d.UpdateSettings(cfg.Retrieval.Settings()); err != nil {
		return fmt.Errorf("apply retrieval settings: %w", err)
	}

	if cfg.LLM.APIKey != "" {
		client, err := llm.NewClient(llm.Config{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
		})
		if err != nil {
			return fmt.Errorf("init llm client: %w", err)
		}
		d.SetGenerateFunc(client.GenerateFunc())
		logger.Info("Language model configured", slog.String("model", client.ModelName()))
	} else {
		logger.Warn("No language model configured, answers fall back to document excerpts")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Mount("/", api.NewRouter(d, logger))

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

func buildEmbedder(cfg EmbeddingConfig) (pipeline.Embedder, error) {
	if cfg.Mode == EmbeddingModeRemote {
		return pipeline.NewRemoteEmbedder(pipeline.RemoteEmbedderConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
		})
	}
	return pipeline.NewLocalEmbedder(cfg.Model)
}

func main() {
	cmd := &cli.Command{
		Name:   "docpilot",
		Usage:  "Document intelligence service with hybrid retrieval and agent-based question answering",
		Action: run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("DOCPILOT_CONFIG_FILE"),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

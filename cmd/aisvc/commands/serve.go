package commands

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

	"github.com/spf13/cobra"

	"github.com/mediahub/aisvc/cmd/aisvc/internal/config"
	"github.com/mediahub/aisvc/pkg/embed"
	"github.com/mediahub/aisvc/pkg/httpapi"
	"github.com/mediahub/aisvc/pkg/search"
	"github.com/mediahub/aisvc/pkg/vecindex"
	"github.com/mediahub/aisvc/pkg/vision"
)

var (
	flagConfig  string
	flagHost    string
	flagPort    int
	flagDataDir string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the AI service HTTP server",
	Long: `Run the AI service HTTP server.

The server opens the vector index under the persist directory, connects
to the OpenAI API for embeddings and vision, and serves the HTTP API
until SIGINT or SIGTERM.

Example:
  OPENAI_API_KEY=sk-... aisvc serve --port 8001`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagConfig, "config", "", "YAML config file")
	serveCmd.Flags().StringVar(&flagHost, "host", "", "bind host (overrides env/config)")
	serveCmd.Flags().IntVar(&flagPort, "port", 0, "bind port (overrides env/config)")
	serveCmd.Flags().StringVar(&flagDataDir, "data-dir", "", "persist directory (overrides env/config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if IsVerbose() {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("host") {
		cfg.Host = flagHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = flagPort
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.PersistDirectory = flagDataDir
	}

	apiCfg := httpapi.Config{Logger: logger}
	var svc *search.Service
	if cfg.OpenAIAPIKey == "" {
		logger.Warn("OPENAI_API_KEY not set; analysis and search endpoints will answer 503")
	} else {
		index, err := vecindex.Open(vecindex.Options{
			Dir:    cfg.PersistDirectory,
			Dim:    cfg.EmbeddingDimension,
			Logger: logger,
		})
		if err != nil {
			return fmt.Errorf("open vector index: %w", err)
		}
		svc = search.New(search.Config{
			Embedder: embed.NewOpenAI(cfg.OpenAIAPIKey,
				embed.WithModel(cfg.EmbeddingModel),
				embed.WithDimension(cfg.EmbeddingDimension),
			),
			Index:            index,
			PersistDirectory: cfg.PersistDirectory,
		})
		if err := svc.Initialize(); err != nil {
			index.Close()
			return fmt.Errorf("initialize search service: %w", err)
		}
		apiCfg.Search = svc
		apiCfg.Analyzer = vision.NewAnalyzer(cfg.OpenAIAPIKey,
			vision.WithModel(cfg.OpenAIModel))
	}

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: httpapi.New(apiCfg).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr,
			"persist_dir", cfg.PersistDirectory,
			"embedding_model", cfg.EmbeddingModel,
			"vision_model", cfg.OpenAIModel)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if svc != nil {
			svc.Close()
		}
		return fmt.Errorf("server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown incomplete", "error", err)
	}

	// Closing the service snapshots and closes the index.
	if svc != nil {
		if err := svc.Close(); err != nil {
			return fmt.Errorf("close search service: %w", err)
		}
	}
	logger.Info("server stopped")
	return nil
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yegors/liveblog/internal/api"
	"github.com/yegors/liveblog/internal/config"
	"github.com/yegors/liveblog/internal/hub"
	"github.com/yegors/liveblog/internal/segmenter"
	"github.com/yegors/liveblog/internal/session"
	"github.com/yegors/liveblog/internal/simulation"
	"github.com/yegors/liveblog/internal/storage/sqlite"
	"github.com/yegors/liveblog/internal/summarizer"
	"github.com/yegors/liveblog/internal/transcriber"
	"github.com/yegors/liveblog/pkg/logger"
)

type flags struct {
	configPath string
	file       string
	chunk      int
	hold       int
	speed      float64
	serve      bool
}

func main() {
	f := &flags{}

	root := &cobra.Command{
		Use:   "liveblog",
		Short: "Live event feed: incremental audio transcription and summary cards",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), f)
		},
		SilenceUsage: true,
	}

	root.Flags().StringVar(&f.configPath, "config", "", "path to TOML config file")
	root.Flags().StringVar(&f.file, "file", "", "audio file to replay in simulation mode")
	root.Flags().IntVar(&f.chunk, "chunk", 0, "simulation chunk length in seconds")
	root.Flags().IntVar(&f.hold, "hold", -1, "simulation hold-back in seconds")
	root.Flags().Float64Var(&f.speed, "speed", 0, "simulation speed multiplier")
	root.Flags().BoolVar(&f.serve, "serve", true, "expose the viewer HTTP endpoints")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, f *flags) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// CLI flags override the configured simulation defaults.
	if f.chunk > 0 {
		cfg.Simulation.ChunkSeconds = f.chunk
	}
	if f.hold >= 0 {
		cfg.Simulation.HoldSeconds = f.hold
	}
	if f.speed > 0 {
		cfg.Simulation.Speed = f.speed
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	log.Info("Starting liveblog",
		logger.Bool("serve", f.serve),
		logger.Bool("simulation", f.file != ""))

	var fragments *sqlite.FragmentStorage
	if cfg.Storage.Enabled {
		db, err := sqlite.Open(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		defer db.Close()

		fragments, err = sqlite.NewFragmentStorage(db, log)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
	}

	seg := segmenter.New(cfg.Segmenter.FFmpegPath, cfg.Segmenter.WorkDir, log)
	trans := transcriber.New(transcriberConfig(cfg), log)
	summ := summarizer.New(summarizerConfig(cfg), log)

	eventHub := hub.New(log)

	var sessionStore session.FragmentStore
	var simStore simulation.FragmentStore
	if fragments != nil {
		sessionStore = fragments
		simStore = fragments
	}
	sessions := session.NewManager(cfg.Session, seg, trans, summ, eventHub, sessionStore, log)

	simDone := make(chan error, 1)
	if f.file != "" {
		runner := simulation.NewRunner(seg, trans, summ, eventHub, simStore, log)
		go func() {
			simDone <- runner.Run(ctx, simulation.Options{
				FilePath:     f.file,
				ChunkSeconds: cfg.Simulation.ChunkSeconds,
				HoldSeconds:  cfg.Simulation.HoldSeconds,
				Speed:        cfg.Simulation.Speed,
			})
		}()
	} else {
		close(simDone)
	}

	if !f.serve {
		if f.file == "" {
			return fmt.Errorf("nothing to do: no --file and --serve=false")
		}
		if err := <-simDone; err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	}

	router := api.NewRouter(eventHub, sessions, fragments, cfg, log)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router.Routes(),
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", logger.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sessions.CloseAll(shutdownCtx)
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("Server shutdown incomplete", logger.Error(err))
	}

	return nil
}

// Both OpenAI clients share the configured credentials, endpoint and timeout;
// only the model differs.

func transcriberConfig(cfg *config.Config) transcriber.Config {
	return transcriber.Config{
		APIKey:         cfg.OpenAI.APIKey,
		Model:          cfg.OpenAI.TranscriptionModel,
		BaseURL:        cfg.OpenAI.BaseURL,
		TimeoutSeconds: cfg.OpenAI.TimeoutSeconds,
	}
}

func summarizerConfig(cfg *config.Config) summarizer.Config {
	return summarizer.Config{
		APIKey:         cfg.OpenAI.APIKey,
		Model:          cfg.OpenAI.SummaryModel,
		BaseURL:        cfg.OpenAI.BaseURL,
		TimeoutSeconds: cfg.OpenAI.TimeoutSeconds,
	}
}

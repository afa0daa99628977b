// Package server parses server command flags and starts the game API.
package server

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	httpapi "github.com/parlorgames/mysterium/internal/game/api/http"
	"github.com/parlorgames/mysterium/internal/game/engine"
	"github.com/parlorgames/mysterium/internal/game/storage/sqlite"
	"github.com/parlorgames/mysterium/internal/game/workflow"
	entrypoint "github.com/parlorgames/mysterium/internal/platform/cmd"
)

// Config holds server command configuration.
type Config struct {
	Port   int    `env:"MYSTERIUM_PORT" envDefault:"8080"`
	DBPath string `env:"MYSTERIUM_DB_PATH" envDefault:"mysterium.db"`

	WorkflowURL string `env:"MYSTERIUM_WORKFLOW_URL"`
	WorkflowKey string `env:"MYSTERIUM_WORKFLOW_KEY"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The server port")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the sqlite database file")
	fs.StringVar(&cfg.WorkflowURL, "workflow-url", cfg.WorkflowURL, "Base URL of the AI workflow provider")
	fs.StringVar(&cfg.WorkflowKey, "workflow-key", cfg.WorkflowKey, "API key for the AI workflow provider")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the game session API service.
func Run(ctx context.Context, cfg Config) error {
	if cfg.WorkflowURL == "" {
		return errors.New("workflow provider URL is required")
	}

	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceServer, func(ctx context.Context) error {
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer store.Close()

		eng, err := engine.New(engine.Config{
			Store:   store,
			Scripts: store,
			AI: workflow.NewClient(workflow.Config{
				BaseURL: cfg.WorkflowURL,
				APIKey:  cfg.WorkflowKey,
			}),
		})
		if err != nil {
			return fmt.Errorf("build engine: %w", err)
		}
		handler, err := httpapi.NewHandler(eng)
		if err != nil {
			return fmt.Errorf("build handler: %w", err)
		}

		mux := http.NewServeMux()
		handler.Register(mux)

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Printf("shutdown: %v", err)
			}
		}()

		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
}

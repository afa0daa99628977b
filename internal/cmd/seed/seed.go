// Package seed parses seed command flags and loads catalog scripts into
// the local database.
package seed

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/parlorgames/mysterium/internal/game/script"
	"github.com/parlorgames/mysterium/internal/game/storage/sqlite"
	entrypoint "github.com/parlorgames/mysterium/internal/platform/cmd"
)

// Config holds seed command configuration.
type Config struct {
	DBPath string `env:"MYSTERIUM_DB_PATH" envDefault:"mysterium.db"`
	// File points at a JSON array of scripts; empty means the built-in
	// demo catalog.
	File string `env:"MYSTERIUM_SCRIPTS_FILE"`
	List bool
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the sqlite database file")
	fs.StringVar(&cfg.File, "file", cfg.File, "JSON file with catalog scripts (default: built-in demo catalog)")
	fs.BoolVar(&cfg.List, "list", false, "List the scripts that would be seeded and exit")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// demoCatalog is the built-in script set for local development.
func demoCatalog() []script.Script {
	return []script.Script{
		{
			ID:      "the-silent-manor",
			Title:   "The Silent Manor",
			Author:  "house",
			MaxActs: 3,
			Characters: []script.Character{
				{CharacterID: "butler", Name: "Edmund the Butler", Description: "has served the manor for thirty years"},
				{CharacterID: "maid", Name: "Rosa the Maid", Description: "saw something the night of the storm"},
				{CharacterID: "heir", Name: "Julian the Heir", Description: "deep in gambling debt"},
			},
		},
		{
			ID:      "last-train-north",
			Title:   "Last Train North",
			Author:  "house",
			MaxActs: 2,
			Characters: []script.Character{
				{CharacterID: "conductor", Name: "The Conductor", Description: "keeps the only key to the mail car"},
				{CharacterID: "stranger", Name: "The Stranger", Description: "boarded without a ticket"},
			},
		},
	}
}

// loadCatalog reads the script list from a file, or returns the demo
// catalog when no file is configured.
func loadCatalog(path string) ([]script.Script, error) {
	if path == "" {
		return demoCatalog(), nil
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scripts file: %w", err)
	}
	var scripts []script.Script
	if err := json.Unmarshal(payload, &scripts); err != nil {
		return nil, fmt.Errorf("parse scripts file: %w", err)
	}
	return scripts, nil
}

// Run executes the seed command.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}

	scripts, err := loadCatalog(cfg.File)
	if err != nil {
		return err
	}

	if cfg.List {
		for _, scr := range scripts {
			fmt.Fprintf(out, "%s\t%s (%d acts, %d characters)\n", scr.ID, scr.Title, scr.MaxActs, len(scr.Characters))
		}
		return nil
	}

	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceSeed, func(ctx context.Context) error {
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer store.Close()

		for _, scr := range scripts {
			if err := store.PutScript(ctx, scr); err != nil {
				return fmt.Errorf("seed script %s: %w", scr.ID, err)
			}
			fmt.Fprintf(out, "seeded %s\n", scr.ID)
		}
		return nil
	})
}

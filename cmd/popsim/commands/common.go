package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"popsim/internal/app"
	"popsim/internal/config"
	"popsim/internal/logging"
	"popsim/internal/progress"
)

// ConfigPath is bound to the root --config flag
var ConfigPath string

// openApp loads configuration and builds the application container. The
// caller must Close it.
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(ConfigPath)
	if err != nil {
		return nil, err
	}
	// Keep stdout clean for results; logs go to stderr
	logger, err := logging.New(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, logger)
}

// stderrProgress prints one line per stage change and per processed item
func stderrProgress(w io.Writer) progress.Reporter {
	last := ""
	return progress.ReporterFunc(func(stage string, current, total int, item string) {
		if stage != last {
			fmt.Fprintf(w, "==> %s\n", stage)
			last = stage
		}
		if item != "" {
			fmt.Fprintf(w, "    [%d/%d] %s\n", current, total, item)
		}
	})
}

// writeResult writes v as indented JSON to path, or to stdout when path is empty
func writeResult(path string, v interface{}) error {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

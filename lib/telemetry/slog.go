package telemetry

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// InitSlog installs the process logger. verbose turns on debug records
// with source locations, NO_COLOR disables ansi output.
func InitSlog(verbose bool) {
	opts := &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.DateTime,
		NoColor:    os.Getenv("NO_COLOR") != "",
	}
	if verbose {
		opts.Level = slog.LevelDebug
		opts.AddSource = true
		opts.TimeFormat = time.TimeOnly + ".000"
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, opts)))
}

package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mergelens/pkg/models"
)

// Setup configures the global zerolog logger. The server runs with JSON
// output for log shippers; the CLI gets a human console writer.
func Setup(level string, console bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var w io.Writer = os.Stderr
	if console {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}

	log.Logger = zerolog.New(w).Level(parseLevel(level)).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ForRun returns a sub-logger stamped with the run's identity so every
// line from one review can be correlated.
func ForRun(runID string, req models.ReviewRequest) zerolog.Logger {
	return log.With().
		Str("run_id", runID).
		Str("project", req.ProjectID).
		Int("mr_iid", req.MRIID).
		Logger()
}

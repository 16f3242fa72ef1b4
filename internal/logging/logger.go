package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Log is the shared logger used throughout the project.
var Log = log.Logger

func init() {
	zerolog.SetGlobalLevel(levelFromEnv())
	Log = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func levelFromEnv() zerolog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		if strings.ToLower(os.Getenv("DEBUG")) == "true" {
			return zerolog.DebugLevel
		}
		return zerolog.InfoLevel
	}
}

// SetLevel adjusts the global log level at runtime. Unknown names are
// ignored.
func SetLevel(name string) {
	if level, err := zerolog.ParseLevel(strings.ToLower(name)); err == nil {
		zerolog.SetGlobalLevel(level)
	}
}

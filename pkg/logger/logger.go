package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// New builds the service-wide logger. Components derive their own with
// log.With().Str("component", ...).
func New(serviceName, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = "2006-01-02 15:04:05"

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02 15:04:05"}
	return zerolog.New(consoleWriter).
		Level(lvl).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}

package logger

import (
	"os"

	logger "github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

var L = New(logger.InfoLevel)

// New returns a logger writing to stderr with the shared prefixed format.
func New(level logger.Level) *logger.Logger {
	return &logger.Logger{
		Out:   os.Stderr,
		Level: level,
		Hooks: make(logger.LevelHooks),
		Formatter: &prefixed.TextFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
			FullTimestamp:   true,
			ForceFormatting: true,
		},
	}
}

// Parse builds a logger from a level name, e.g. "debug" or "warn".
func Parse(level string) (*logger.Logger, error) {
	if level == "" {
		return L, nil
	}
	lvl, err := logger.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return New(lvl), nil
}

package config

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger creates the binaries' logger: millisecond timestamps, level from
// LOG_LEVEL, else debug when verbose, else info.
func NewLogger(verbose bool) *logrus.Logger {
	logger := logrus.New()

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	if levelStr := os.Getenv(logLevelEnv); levelStr != "" {
		if level, err := logrus.ParseLevel(levelStr); err == nil {
			logger.SetLevel(level)
			return logger
		}
	}
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}

// ApplyLevel sets the level from the config file unless LOG_LEVEL already did
func ApplyLevel(logger *logrus.Logger, level string) {
	if os.Getenv(logLevelEnv) != "" || level == "" {
		return
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		logger.Warnf("config: unknown log level %q", level)
		return
	}
	logger.SetLevel(parsed)
}

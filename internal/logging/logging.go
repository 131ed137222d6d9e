package logging

import (
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

type Options struct {
	Service string
	Env     string
	Level   string
	// Text switches to the human readable formatter, used for local runs.
	Text   bool
	Output io.Writer
}

// New builds a logrus logger and returns an entry carrying the service and
// env fields every component logs with.
func New(opts Options) *log.Entry {
	logger := log.New()
	logger.SetLevel(parseLevel(opts.Level))
	if opts.Output != nil {
		logger.SetOutput(opts.Output)
	} else {
		logger.SetOutput(os.Stdout)
	}
	if opts.Text {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&log.JSONFormatter{})
	}

	return logger.WithFields(log.Fields{
		"service": opts.Service,
		"env":     opts.Env,
	})
}

// Discard returns an entry that drops everything. Handy in tests.
func Discard() *log.Entry {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return log.NewEntry(logger)
}

func parseLevel(lvl string) log.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"
)

// New returns a logger writing to w at the given level. Format is "text" or
// "json".
func New(level, format string, w io.Writer) (*log.Logger, error) {
	logger := log.New()
	logger.SetOutput(w)

	lvl, err := log.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logger.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "", "text":
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&log.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return logger, nil
}

func Discard() *log.Logger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l log.FieldLogger) log.FieldLogger {
	if l == nil {
		return Discard()
	}
	return l
}

package config

import (
	"io"
	"log/slog"

	"github.com/oblakr24/blescanner/pkg/log"
)

// NewLogger returns a text slog logger writing to w at the configured level.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: c.Level()}))
}

// OpenTrail returns the event trail. With a trail path the events go to the
// file and, at debug level, to logger as well. The returned close func is
// never nil.
func (c *Config) OpenTrail(logger *slog.Logger) (log.Logger, func() error, error) {
	var loggers []log.Logger
	if c.Level() <= slog.LevelDebug && logger != nil {
		loggers = append(loggers, log.NewSlogAdapter(logger))
	}

	closeFn := func() error { return nil }
	if c.Log.Trail != "" {
		f, err := log.NewFileLogger(c.Log.Trail)
		if err != nil {
			return nil, nil, err
		}
		loggers = append(loggers, f)
		closeFn = f.Close
	}

	switch len(loggers) {
	case 0:
		return log.NoopLogger{}, closeFn, nil
	case 1:
		return loggers[0], closeFn, nil
	default:
		return log.NewMultiLogger(loggers...), closeFn, nil
	}
}

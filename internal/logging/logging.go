package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/gregtusar/futures-cli/internal/config"
	"github.com/sirupsen/logrus"
)

// DefaultFileName is the daily log file used when no file is configured.
func DefaultFileName(now time.Time) string {
	return fmt.Sprintf("trading_bot_%s.log", now.Format("20060102"))
}

// New builds the process logger. Every entry is appended to the log sink;
// console output is optional. The returned closer releases the sink.
func New(cfg config.LoggingConfig) (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.Console {
		logger.SetOutput(os.Stderr)
	} else {
		logger.SetOutput(io.Discard)
	}

	sink, closer, err := openSink(cfg.File)
	if err != nil {
		return nil, nil, err
	}
	logger.AddHook(NewSinkHook(sink, &logrus.TextFormatter{
		FullTimestamp: true,
		DisableColors: true,
	}))

	return logger, closer, nil
}

func openSink(path string) (io.Writer, io.Closer, error) {
	switch path {
	case "stdout":
		return os.Stdout, nopCloser{}, nil
	case "stderr":
		return os.Stderr, nopCloser{}, nil
	case "":
		path = DefaultFileName(time.Now())
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return f, f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// SinkHook appends every entry to an append-only writer. A failed write is
// reported by logrus on stderr and never stops the caller.
type SinkHook struct {
	mu        sync.Mutex
	w         io.Writer
	formatter logrus.Formatter
}

func NewSinkHook(w io.Writer, formatter logrus.Formatter) *SinkHook {
	return &SinkHook{w: w, formatter: formatter}
}

func (h *SinkHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *SinkHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.w.Write(line)
	return err
}

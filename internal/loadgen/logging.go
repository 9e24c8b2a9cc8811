package loadgen

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds a JSON logrus logger. With a log file configured output is
// rotated by lumberjack; if the directory cannot be created it falls back to
// stderr and says so.
func NewLogger(cfg LogConfig) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	out, outErr := logOutput(cfg)
	l := logrus.New()
	l.SetLevel(level)
	l.SetOutput(out)
	l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})

	if outErr != nil {
		l.WithFields(logrus.Fields{"action": "logger_fallback", "path": cfg.File}).Warn(outErr.Error())
	}
	return l, nil
}

func logOutput(cfg LogConfig) (io.Writer, error) {
	if cfg.File == "" {
		return os.Stderr, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return os.Stderr, fmt.Errorf("create log directory: %w", err)
	}
	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
		LocalTime:  true,
	}, nil
}

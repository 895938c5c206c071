package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// LogLevel is the textual verbosity accepted by Config.
type LogLevel string

const (
	LevelDebug LogLevel = "DEBUG"
	LevelInfo  LogLevel = "INFO"
	LevelWarn  LogLevel = "WARN"
	LevelError LogLevel = "ERROR"
)

// Config selects the level, destination and encoding of the global logger.
type Config struct {
	Level LogLevel

	// OutputPath is a file to append to. Empty means stdout.
	OutputPath string

	// Format is "json", "text" (default) or "zap".
	Format string
}

// sink is the installed logger together with whatever must be released
// when it is replaced.
type sink struct {
	logger  *slog.Logger
	release func() error
}

var (
	mu      sync.RWMutex
	current *sink
)

// Init installs the global logger. It fails if a logger is already
// installed; call Close first to replace it.
func Init(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	if current != nil {
		return errors.New("logger already initialized; call Close() first to reinitialize")
	}

	handler, release, err := newHandler(cfg)
	if err != nil {
		return err
	}
	current = &sink{logger: slog.New(handler), release: release}
	return nil
}

// InitDefault installs an INFO text logger on stdout unless one is present.
func InitDefault() {
	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		current = defaultSink()
	}
}

// Close flushes and releases the global logger. It is a no-op when nothing
// is installed.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	if current == nil {
		return nil
	}
	s := current
	current = nil
	if s.release == nil {
		return nil
	}
	return s.release()
}

// GetLogger returns the global logger, installing the default one on first
// use.
func GetLogger() *slog.Logger {
	mu.RLock()
	s := current
	mu.RUnlock()
	if s != nil {
		return s.logger
	}

	InitDefault()
	mu.RLock()
	defer mu.RUnlock()
	return current.logger
}

func defaultSink() *sink {
	h := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	return &sink{logger: slog.New(h)}
}

func newHandler(cfg Config) (slog.Handler, func() error, error) {
	level := parseLevel(cfg.Level)

	if cfg.Format == "zap" {
		return newZapHandler(cfg.OutputPath, level)
	}

	var (
		w       io.Writer = os.Stdout
		release func() error
	)
	if cfg.OutputPath != "" {
		f, err := openLogFile(cfg.OutputPath)
		if err != nil {
			return nil, nil, err
		}
		w, release = f, f.Close
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.NewJSONHandler(w, opts), release, nil
	}
	return slog.NewTextHandler(w, opts), release, nil
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
}

func parseLevel(l LogLevel) slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newZapHandler routes slog records into a zap production core.
func newZapHandler(outputPath string, level slog.Level) (slog.Handler, func() error, error) {
	cfg := zap.NewProductionConfig()
	// slog levels step by 4, zap levels by 1.
	cfg.Level = zap.NewAtomicLevelAt(zapcore.Level(level / 4))
	cfg.Sampling = nil
	cfg.OutputPaths = []string{"stdout"}

	if outputPath != "" {
		if err := os.MkdirAll(filepath.Dir(outputPath), 0o750); err != nil {
			return nil, nil, err
		}
		cfg.OutputPaths = []string{outputPath}
	}

	base, err := cfg.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build zap logger: %w", err)
	}
	release := func() error {
		_ = base.Sync()
		return nil
	}
	return zapslog.NewHandler(base.Core()), release, nil
}

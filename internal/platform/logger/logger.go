package logger

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config defines the configuration for the logger.
type Config struct {
	Level       string // debug, info, warn, error
	Format      string // json, console, pretty
	EnableColor bool   // true to enable colors (only in console/pretty mode)
}

var (
	mu           sync.RWMutex
	globalLogger *zap.Logger
	atom         = zap.NewAtomicLevel()
)

// New builds a logger without touching the global one.
func New(cfg Config) (*zap.Logger, error) {
	encoderConfig := zap.NewProductionEncoderConfig()

	// Standardize Time Format
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	format := strings.ToLower(cfg.Format)
	if format == "" {
		format = "console"
	}

	if format != "json" {
		encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
		encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		if cfg.EnableColor {
			encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		} else {
			encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		}
	}

	atom.SetLevel(parseLevel(cfg.Level))

	zapConfig := zap.Config{
		Level:             atom,
		Development:       false,
		Encoding:          format,
		EncoderConfig:     encoderConfig,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: parseLevel(cfg.Level) != zapcore.DebugLevel,
	}

	return zapConfig.Build()
}

// Initialize builds a logger from cfg and installs it as the global logger.
func Initialize(cfg Config) (*zap.Logger, error) {
	l, err := New(cfg)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	globalLogger = l
	mu.Unlock()

	zap.ReplaceGlobals(l)
	return l, nil
}

// Get returns the global logger, or a no-op logger before Initialize.
func Get() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if globalLogger == nil {
		return zap.NewNop()
	}
	return globalLogger
}

// SetLevel changes the level of every logger built by this package.
func SetLevel(level string) {
	atom.SetLevel(parseLevel(level))
}

func Sync() {
	_ = Get().Sync()
}

func parseLevel(lvl string) zapcore.Level {
	level, err := zapcore.ParseLevel(strings.ToLower(lvl))
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// Package zap wires go.uber.org/zap, rotated through
// gopkg.in/natefinch/lumberjack.v2, into the engine's logger.Logger
// contract — the same construction the teacher repo's logger/zap package
// uses for its per-subsystem loggers, trimmed to the engine's single
// Runtime logger (SPEC_FULL §2).
package zap

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/oaofoa/metacore/logger"
)

// Config controls the rotated log file and verbosity. A zero Config logs
// to stderr at info level.
type Config struct {
	File       string // empty means stderr
	Level      string // debug|info|warn|error, default info
	MaxSizeMB  int    // default 100
	MaxBackups int    // default 5
	MaxAgeDays int    // default 28
}

// Logger adapts *zap.SugaredLogger to logger.Logger.
type Logger struct {
	s *zap.SugaredLogger
}

var _ logger.Logger = (*Logger)(nil)

func (l *Logger) Debugf(format string, args ...any) { l.s.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.s.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.s.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.s.Errorf(format, args...) }

// New constructs a zap-backed Logger from cfg without touching package
// globals, for callers embedding the engine in a larger application with
// its own logging setup.
func New(cfg Config) *Logger {
	level := parseLevel(cfg.Level)
	var writer zapcore.WriteSyncer
	if cfg.File == "" {
		writer = zapcore.Lock(zapcore.AddSync(os.Stderr))
	} else {
		writer = zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 100),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAgeDays, 28),
		})
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewProductionEncoderConfig()), writer, level)
	return &Logger{s: zap.New(core, zap.AddCaller()).Sugar()}
}

// Init replaces logger.Runtime with a zap-backed logger built from cfg.
func Init(cfg Config) {
	logger.Runtime = New(cfg)
}

func parseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

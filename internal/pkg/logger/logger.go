// Package logger wires the process-wide zap logger. The logger is constructed
// once in main and injected; the package-level accessors exist for code paths
// that run before dependency wiring completes.
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger construction.
type Options struct {
	Level      string // debug, info, warn, error
	Format     string // json or console
	FilePath   string // empty disables file output
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var global = zap.NewNop()

// New builds a zap logger from the given options.
func New(opts Options) *zap.Logger {
	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(opts.Level)))); err != nil {
		level = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if strings.EqualFold(opts.Format, "console") {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	syncers := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	if opts.FilePath != "" {
		syncers = append(syncers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    orDefault(opts.MaxSizeMB, 100),
			MaxBackups: orDefault(opts.MaxBackups, 5),
			MaxAge:     orDefault(opts.MaxAgeDays, 30),
			Compress:   true,
		}))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(syncers...), level)
	return zap.New(core, zap.AddCaller())
}

// SetGlobal replaces the package-level logger.
func SetGlobal(l *zap.Logger) {
	if l != nil {
		global = l
	}
}

// L returns the package-level logger.
func L() *zap.Logger { return global }

// S returns the package-level sugared logger.
func S() *zap.SugaredLogger { return global.Sugar() }

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

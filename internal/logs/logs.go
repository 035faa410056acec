// Package logs builds the process logger: colored console output plus an
// optional size-rotated JSON file.
package logs

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Level      string // debug/info/warn/error; bad values fall back to info
	FilePath   string // empty = console only
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Dev        bool
}

func New(appName string, cfg Config) *zap.SugaredLogger {
	lvl := zapcore.InfoLevel
	if err := lvl.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
		lvl = zapcore.InfoLevel
	}
	atomicLevel := zap.NewAtomicLevelAt(lvl)

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	consoleCfg := encoderCfg
	consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	consoleSyncer := zapcore.Lock(os.Stderr)

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), consoleSyncer, atomicLevel)
	if cfg.FilePath != "" {
		fileCfg := encoderCfg
		fileCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		fileSyncer := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    maxInt(1, cfg.MaxSizeMB),
			MaxBackups: maxInt(0, cfg.MaxBackups),
			MaxAge:     maxInt(0, cfg.MaxAgeDays),
			Compress:   cfg.Compress,
		})
		// Tee so ANSI color escapes never reach the JSON file.
		core = zapcore.NewTee(
			core,
			zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), fileSyncer, atomicLevel),
		)
	}

	opts := []zap.Option{zap.AddCaller()}
	if cfg.Dev {
		opts = append(opts, zap.Development(), zap.AddStacktrace(zapcore.WarnLevel))
	}
	return zap.New(core, opts...).Named(appName).Sugar()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Package logger builds the process-wide zap logger: a colorized
// console core for the operator plus a JSON file core for post-run
// inspection.
package logger

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls logger construction.
type Config struct {
	Verbose bool
	LogDir  string
	// Component names the log file; defaults to "me2comic".
	Component string
}

func DefaultConfig() Config {
	return Config{
		Verbose:   false,
		LogDir:    "./logs",
		Component: "me2comic",
	}
}

// New creates a logger with default file placement. Non-verbose runs
// keep the console at warn level so progress output stays readable;
// the file core always records down to debug.
func New(verbose bool) (*zap.Logger, error) {
	cfg := DefaultConfig()
	cfg.Verbose = verbose
	return NewWithConfig(cfg)
}

func NewWithConfig(cfg Config) (*zap.Logger, error) {
	consoleLevel := zapcore.WarnLevel
	if cfg.Verbose {
		consoleLevel = zapcore.DebugLevel
	}

	consoleEncoder := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    colorLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("15:04:05"),
		EncodeDuration: zapcore.StringDurationEncoder,
	})

	fileEncoder := zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	})

	file, err := os.OpenFile(logFilePath(cfg), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewTee(
		zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stderr), consoleLevel),
		zapcore.NewCore(fileEncoder, zapcore.AddSync(file), zapcore.DebugLevel),
	)

	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

func colorLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	var colored string
	switch level {
	case zapcore.DebugLevel:
		colored = color.CyanString("[DEBUG]")
	case zapcore.InfoLevel:
		colored = color.GreenString("[INFO] ")
	case zapcore.WarnLevel:
		colored = color.YellowString("[WARN] ")
	case zapcore.ErrorLevel:
		colored = color.RedString("[ERROR]")
	case zapcore.FatalLevel:
		colored = color.RedString("[FATAL]")
	default:
		colored = level.CapitalString()
	}
	enc.AppendString(colored)
}

func logFilePath(cfg Config) string {
	dir := cfg.LogDir
	if dir == "" {
		dir = "./logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		dir = "."
	}

	component := cfg.Component
	if component == "" {
		component = "me2comic"
	}
	return filepath.Join(dir, component+"_"+time.Now().Format("20060102")+".log")
}

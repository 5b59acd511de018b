package logger

import (
	"fmt"
	"os"
	"strings"

	"github.com/erp/stockcore/internal/infrastructure/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Options describe the process logger
type Options struct {
	Level   string // debug, info, warn, error
	Format  string // json, console
	Output  string // stdout, stderr, or file path
	Service string // stamped on every entry as "service"
	Env     string // stamped on every entry as "env"
}

// optionsFor returns the preset of an environment: JSON in production, console elsewhere
func optionsFor(env string) Options {
	o := Options{Level: "info", Format: "console", Output: "stdout", Env: env}
	if env == "production" {
		o.Format = "json"
	}
	return o
}

// New builds a zap logger. Unknown levels and unwritable outputs are errors.
func New(o Options) (*zap.Logger, error) {
	level, err := parseLevel(o.Level)
	if err != nil {
		return nil, err
	}
	writer, err := openWriter(o.Output)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(newEncoder(o.Format), writer, zap.NewAtomicLevelAt(level))
	logger := zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)

	var fields []zap.Field
	if o.Service != "" {
		fields = append(fields, zap.String("service", o.Service))
	}
	if o.Env != "" {
		fields = append(fields, zap.String("env", o.Env))
	}
	return logger.With(fields...), nil
}

// NewFromConfig builds the service logger from the log section of the
// application config. Empty fields keep the environment preset.
func NewFromConfig(env string, lc config.LogConfig) (*zap.Logger, error) {
	o := optionsFor(env)
	if lc.Level != "" {
		o.Level = lc.Level
	}
	if lc.Format != "" {
		o.Format = lc.Format
	}
	if lc.Output != "" {
		o.Output = lc.Output
	}
	return New(o)
}

func parseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "":
		return zapcore.InfoLevel, nil
	case "warning":
		return zapcore.WarnLevel, nil
	}
	l, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("log level %q: %w", level, err)
	}
	return l, nil
}

func newEncoder(format string) zapcore.Encoder {
	ec := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout(timeLayout),
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if format == "console" {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}

func openWriter(output string) (zapcore.WriteSyncer, error) {
	switch strings.ToLower(output) {
	case "", "stdout":
		return zapcore.Lock(os.Stdout), nil
	case "stderr":
		return zapcore.Lock(os.Stderr), nil
	}
	file, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log output %q: %w", output, err)
	}
	return zapcore.AddSync(file), nil
}

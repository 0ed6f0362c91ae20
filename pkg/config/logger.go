package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger configures the node's structured log output.
type Logger struct {
	LogEncoding string `yaml:"LogEncoding"`
	LogLevel    string `yaml:"LogLevel"`
	LogPath     string `yaml:"LogPath"`
}

// Validate checks that LogEncoding, if set, names a zap encoder.
func (l Logger) Validate() error {
	if l.LogEncoding != "" && l.LogEncoding != "console" && l.LogEncoding != "json" {
		return fmt.Errorf("config: invalid LogEncoding %q", l.LogEncoding)
	}
	return nil
}

// NewLogger builds a zap.Logger from cfg, writing to LogPath if set or
// to stderr otherwise.
func NewLogger(cfg Logger) (*zap.Logger, *zap.AtomicLevel, error) {
	level := zapcore.InfoLevel
	if cfg.LogLevel != "" {
		if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			return nil, nil, fmt.Errorf("config: log level: %w", err)
		}
	}
	encoding := cfg.LogEncoding
	if encoding == "" {
		encoding = "console"
	}

	cc := zap.NewProductionConfig()
	cc.DisableCaller = true
	cc.DisableStacktrace = true
	cc.Encoding = encoding
	cc.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	cc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	atom := zap.NewAtomicLevelAt(level)
	cc.Level = atom
	cc.Sampling = nil

	if cfg.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0755); err != nil {
			return nil, nil, fmt.Errorf("config: creating log directory: %w", err)
		}
		cc.OutputPaths = []string{cfg.LogPath}
	} else {
		cc.OutputPaths = []string{"stderr"}
	}

	l, err := cc.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("config: building logger: %w", err)
	}
	return l, &atom, nil
}

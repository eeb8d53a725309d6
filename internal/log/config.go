package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	defaultLogMaxSize = 300 // MB
)

// FileLogConfig configures the optional rotated log file.
type FileLogConfig struct {
	// RootPath is the directory of the log file.
	RootPath string `mapstructure:"rootpath" json:"rootpath"`
	// Filename of the log file; empty disables file logging.
	Filename string `mapstructure:"filename" json:"filename"`
	// MaxSize of a log file in MB before it is rotated.
	MaxSize int `mapstructure:"max-size" json:"max-size"`
	// MaxDays to keep rotated files; 0 keeps them forever.
	MaxDays int `mapstructure:"max-days" json:"max-days"`
	// MaxBackups is the number of rotated files to keep.
	MaxBackups int `mapstructure:"max-backups" json:"max-backups"`
}

// Config configures the global logger.
type Config struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level" json:"level"`
	// Format is console or json.
	Format string `mapstructure:"format" json:"format"`
	// Stdout sends logs to standard output instead of standard error.
	Stdout bool `mapstructure:"stdout" json:"stdout"`
	// File configures file logging.
	File FileLogConfig `mapstructure:"file" json:"file"`
	// DisableCaller disables file:line annotations.
	DisableCaller bool `mapstructure:"disable-caller" json:"disable-caller"`
	// DisableStacktrace disables stack traces on errors.
	DisableStacktrace bool `mapstructure:"disable-stacktrace" json:"disable-stacktrace"`
}

// ZapProperties records the parts of a built logger.
type ZapProperties struct {
	Core   zapcore.Core
	Syncer zapcore.WriteSyncer
	Level  zap.AtomicLevel
}

func newEncoder(cfg *Config) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.Format == "json" {
		return zapcore.NewJSONEncoder(ec)
	}
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(ec)
}

func (cfg *Config) buildOptions(errSink zapcore.WriteSyncer) []zap.Option {
	opts := []zap.Option{zap.ErrorOutput(errSink)}
	if !cfg.DisableCaller {
		opts = append(opts, zap.AddCaller())
	}
	if !cfg.DisableStacktrace {
		opts = append(opts, zap.AddStacktrace(zap.ErrorLevel))
	}
	return opts
}

// Package log is the structured logger shared by every vmauth package.
package log

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger logs key/value pairs at four levels.
type Logger interface {
	Debugw(msg string, keyvals ...interface{})
	Infow(msg string, keyvals ...interface{})
	Warnw(msg string, keyvals ...interface{})
	Errorw(msg string, keyvals ...interface{})
	With(keyvals ...interface{}) Logger
	Named(name string) Logger
	// Enabled reports whether statements at level are emitted, so callers can
	// skip building expensive key/value pairs.
	Enabled(level int) bool
}

const (
	DebugLevel = int(zapcore.DebugLevel)
	InfoLevel  = int(zapcore.InfoLevel)
	WarnLevel  = int(zapcore.WarnLevel)
	ErrorLevel = int(zapcore.ErrorLevel)
)

// LevelEnv overrides the level of the default logger.
const LevelEnv = "VMAUTH_LOG_LEVEL"

type sugared struct {
	*zap.SugaredLogger
}

func (s *sugared) With(keyvals ...interface{}) Logger {
	return &sugared{s.SugaredLogger.With(keyvals...)}
}

func (s *sugared) Named(name string) Logger {
	return &sugared{s.SugaredLogger.Named(name)}
}

func (s *sugared) Enabled(level int) bool {
	return s.Desugar().Core().Enabled(zapcore.Level(level))
}

// ParseLevel maps a level name (debug, info, warn, error) to its value.
func ParseLevel(name string) (int, error) {
	switch strings.ToLower(name) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", name)
	}
}

var (
	defaultOnce   sync.Once
	defaultLogger Logger
)

// DefaultLogger logs JSON to stderr at the level named by LevelEnv, info
// when unset or unknown.
func DefaultLogger() Logger {
	defaultOnce.Do(func() {
		level, err := ParseLevel(os.Getenv(LevelEnv))
		if err != nil {
			level = InfoLevel
		}
		defaultLogger = New(nil, level, true)
	})
	return defaultLogger
}

// New returns a logger writing to output, stderr when nil, at the given
// level. Console output is colored.
func New(output zapcore.WriteSyncer, level int, isJSON bool) Logger {
	if output == nil {
		output = zapcore.Lock(os.Stderr)
	}
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if isJSON {
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewJSONEncoder(cfg)
	} else {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(cfg)
	}
	core := zapcore.NewCore(enc, output, zapcore.Level(level))
	return &sugared{zap.New(core, zap.WithCaller(true)).Sugar()}
}

// NewNop returns a logger that discards every statement.
func NewNop() Logger {
	return &sugared{zap.NewNop().Sugar()}
}

type ctxKey struct{}

// ToContext attaches l to ctx.
func ToContext(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContextOrDefault returns the logger attached by ToContext, or the
// default logger.
func FromContextOrDefault(ctx context.Context) Logger {
	if l, ok := ctx.Value(ctxKey{}).(Logger); ok {
		return l
	}
	return DefaultLogger()
}

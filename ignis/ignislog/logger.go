// Package ignislog is the structured, zap-backed logger every other Ignis
// package logs through. It is the ambient counterpart to the hot-path
// ignis/hflog ring buffer: this package is for ordinary, allocation-tolerant
// logging (boot, wiring, realtime lifecycle events), not per-message hot
// loops.
package ignislog

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures a scoped logger's sink and encoding.
type Options struct {
	// File is the destination: "", "/dev/stdout", "/dev/stderr", or a
	// filename rotated by lumberjack under Dir.
	File string
	Dir  string
	// Level is parsed with zapcore.Level.UnmarshalText; defaults to info.
	Level string
	// Format selects "json" (default) or "console".
	Format     string
	MaxAge     int
	MaxSize    int
	MaxBackups int
}

var defaultOptions = Options{Format: "json", MaxSize: 100, MaxAge: 7, MaxBackups: 10}

// SetDefaults overrides the package-wide defaults every New call falls back
// to when an Options field is left zero.
func SetDefaults(o Options) { defaultOptions = merge(defaultOptions, o) }

func merge(base, o Options) Options {
	if o.File != "" {
		base.File = o.File
	}
	if o.Dir != "" {
		base.Dir = o.Dir
	}
	if o.Level != "" {
		base.Level = o.Level
	}
	if o.Format != "" {
		base.Format = o.Format
	}
	if o.MaxAge != 0 {
		base.MaxAge = o.MaxAge
	}
	if o.MaxSize != 0 {
		base.MaxSize = o.MaxSize
	}
	if o.MaxBackups != 0 {
		base.MaxBackups = o.MaxBackups
	}
	return base
}

// Logger is the interface every Ignis package depends on, so a caller can
// substitute a test double without pulling in zap.
type Logger interface {
	Debugw(msg string, kv ...any)
	Infow(msg string, kv ...any)
	Warnw(msg string, kv ...any)
	Errorw(msg string, kv ...any)
	With(kv ...any) Logger
	Sync() error
}

type zapLogger struct{ s *zap.SugaredLogger }

func (l *zapLogger) Debugw(msg string, kv ...any) { l.s.Debugw(msg, kv...) }
func (l *zapLogger) Infow(msg string, kv ...any)  { l.s.Infow(msg, kv...) }
func (l *zapLogger) Warnw(msg string, kv ...any)  { l.s.Warnw(msg, kv...) }
func (l *zapLogger) Errorw(msg string, kv ...any) { l.s.Errorw(msg, kv...) }
func (l *zapLogger) Sync() error                  { return l.s.Sync() }
func (l *zapLogger) With(kv ...any) Logger        { return &zapLogger{s: l.s.With(kv...)} }

// New builds a scoped Logger. scope names the component (e.g. "container",
// "realtime") and is attached as a field on every entry.
func New(scope string, opts ...Options) Logger {
	o := defaultOptions
	if len(opts) > 0 {
		o = merge(o, opts[0])
	}
	core := zapcore.NewCore(newEncoder(o), newWriter(o), newLevel(o))
	zl := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	return &zapLogger{s: zl.Sugar().With("scope", scope)}
}

func newWriter(o Options) zapcore.WriteSyncer {
	switch strings.TrimSpace(o.File) {
	case "", "/dev/stdout":
		return zapcore.AddSync(os.Stdout)
	case "/dev/stderr":
		return zapcore.AddSync(os.Stderr)
	default:
		return zapcore.AddSync(&lumberjack.Logger{
			Filename:   filepath.Join(o.Dir, o.File),
			MaxAge:     o.MaxAge,
			MaxSize:    o.MaxSize,
			MaxBackups: o.MaxBackups,
			LocalTime:  true,
		})
	}
}

func newLevel(o Options) zapcore.Level {
	if o.Level == "" {
		return zapcore.InfoLevel
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(o.Level)); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

func newEncoder(o Options) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	if strings.ToLower(o.Format) == "console" {
		return zapcore.NewConsoleEncoder(cfg)
	}
	return zapcore.NewJSONEncoder(cfg)
}

// Noop returns a Logger that discards everything, useful for tests.
func Noop() Logger { return noop{} }

type noop struct{}

func (noop) Debugw(string, ...any) {}
func (noop) Infow(string, ...any)  {}
func (noop) Warnw(string, ...any)  {}
func (noop) Errorw(string, ...any) {}
func (noop) Sync() error           { return nil }
func (n noop) With(...any) Logger  { return n }

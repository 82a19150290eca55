package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type impl struct {
	name    string
	level   zap.AtomicLevel
	extra   zapcore.Core
	sugared *zap.SugaredLogger
}

// newImpl builds a logger around the shared console config. extra, when non
// nil, is teed into the core (used for test observers).
func newImpl(name string, level Level, extra zapcore.Core) *impl {
	atomic := zap.NewAtomicLevelAt(level.AsZap())
	config := NewLoggerConfig()
	config.Level = atomic
	base := zap.Must(config.Build())
	if extra != nil {
		base = base.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, extra)
		}))
	}
	return &impl{
		name:    name,
		level:   atomic,
		extra:   extra,
		sugared: base.Sugar().Named(name),
	}
}

func (imp *impl) Sublogger(subname string) Logger {
	newName := subname
	if imp.name != "" {
		newName = fmt.Sprintf("%s.%s", imp.name, subname)
	}
	sub := newImpl(newName, DEBUG, imp.extra)
	sub.level.SetLevel(imp.level.Level())
	return sub
}

func (imp *impl) SetLevel(level Level) {
	imp.level.SetLevel(level.AsZap())
}

func (imp *impl) GetLevel() Level {
	switch imp.level.Level() {
	case zapcore.DebugLevel:
		return DEBUG
	case zapcore.InfoLevel:
		return INFO
	case zapcore.WarnLevel:
		return WARN
	default:
		return ERROR
	}
}

func (imp *impl) AsZap() *zap.SugaredLogger {
	return imp.sugared
}

func (imp *impl) Sync() error {
	return imp.sugared.Sync()
}

func (imp *impl) Desugar() *zap.Logger {
	return imp.sugared.Desugar()
}

func (imp *impl) Level() zapcore.Level {
	return imp.level.Level()
}

func (imp *impl) Named(name string) *zap.SugaredLogger {
	return imp.sugared.Named(name)
}

func (imp *impl) With(args ...interface{}) *zap.SugaredLogger {
	return imp.sugared.With(args...)
}

func (imp *impl) WithOptions(opts ...zap.Option) *zap.SugaredLogger {
	return imp.sugared.WithOptions(opts...)
}

func (imp *impl) Debug(args ...interface{}) { imp.sugared.Debug(args...) }
func (imp *impl) Debugf(template string, args ...interface{}) {
	imp.sugared.Debugf(template, args...)
}

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	imp.sugared.Debugw(msg, keysAndValues...)
}

func (imp *impl) Info(args ...interface{}) { imp.sugared.Info(args...) }
func (imp *impl) Infof(template string, args ...interface{}) {
	imp.sugared.Infof(template, args...)
}

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	imp.sugared.Infow(msg, keysAndValues...)
}

func (imp *impl) Warn(args ...interface{}) { imp.sugared.Warn(args...) }
func (imp *impl) Warnf(template string, args ...interface{}) {
	imp.sugared.Warnf(template, args...)
}

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	imp.sugared.Warnw(msg, keysAndValues...)
}

func (imp *impl) Error(args ...interface{}) { imp.sugared.Error(args...) }
func (imp *impl) Errorf(template string, args ...interface{}) {
	imp.sugared.Errorf(template, args...)
}

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	imp.sugared.Errorw(msg, keysAndValues...)
}

func (imp *impl) Fatal(args ...interface{}) { imp.sugared.Fatal(args...) }
func (imp *impl) Fatalf(template string, args ...interface{}) {
	imp.sugared.Fatalf(template, args...)
}

func (imp *impl) Fatalw(msg string, keysAndValues ...interface{}) {
	imp.sugared.Fatalw(msg, keysAndValues...)
}

package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger adapts go.uber.org/zap to the Logger interface, for deployments
// that want structured JSON logs rather than SimpleLogger's line format.
type ZapLogger struct {
	base   *zap.SugaredLogger
	level  zap.AtomicLevel
	fields map[string]interface{}
}

// NewZapLogger builds a production zap logger (JSON encoding, ISO8601
// timestamps) wrapped behind the Logger interface.
func NewZapLogger() (*ZapLogger, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	cfg := zap.Config{
		Level:            level,
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &ZapLogger{base: base.Sugar(), level: level, fields: map[string]interface{}{}}, nil
}

func (l *ZapLogger) sugar() *zap.SugaredLogger {
	if len(l.fields) == 0 {
		return l.base
	}
	args := make([]interface{}, 0, len(l.fields)*2)
	for k, v := range l.fields {
		args = append(args, k, v)
	}
	return l.base.With(args...)
}

func (l *ZapLogger) Debug(msg string, fields ...interface{}) { l.sugar().Debugw(msg, fields...) }
func (l *ZapLogger) Info(msg string, fields ...interface{})  { l.sugar().Infow(msg, fields...) }
func (l *ZapLogger) Warn(msg string, fields ...interface{})  { l.sugar().Warnw(msg, fields...) }
func (l *ZapLogger) Error(msg string, fields ...interface{}) { l.sugar().Errorw(msg, fields...) }

func (l *ZapLogger) SetLevel(level string) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		l.level.SetLevel(zapcore.DebugLevel)
	case "INFO":
		l.level.SetLevel(zapcore.InfoLevel)
	case "WARN", "WARNING":
		l.level.SetLevel(zapcore.WarnLevel)
	case "ERROR":
		l.level.SetLevel(zapcore.ErrorLevel)
	}
}

func (l *ZapLogger) clone(fields map[string]interface{}) *ZapLogger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &ZapLogger{base: l.base, level: l.level, fields: merged}
}

func (l *ZapLogger) WithField(key string, value interface{}) Logger {
	return l.clone(map[string]interface{}{key: value})
}

func (l *ZapLogger) WithFields(fields map[string]interface{}) Logger {
	return l.clone(fields)
}

func (l *ZapLogger) With(fields ...Field) Logger {
	m := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	return l.clone(m)
}

package logger

import (
	"context"

	"github.com/sirupsen/logrus"
)

var G = GetLogger

type loggerKey struct{}

// WithLogger returns a new context carrying logger.
func WithLogger(ctx context.Context, logger logrus.FieldLogger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger returns the logger stored in ctx, or the logrus standard logger.
func GetLogger(ctx context.Context) logrus.FieldLogger {
	logger := ctx.Value(loggerKey{})
	if logger == nil {
		return logrus.StandardLogger()
	}
	return logger.(logrus.FieldLogger)
}

func WithField(ctx context.Context, key string, value interface{}) context.Context {
	return WithLogger(ctx, GetLogger(ctx).WithField(key, value))
}

func WithFields(ctx context.Context, fields logrus.Fields) context.Context {
	return WithLogger(ctx, GetLogger(ctx).WithFields(fields))
}

package store

import (
	"strings"

	"github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

// badgerLoggerAdapter adapts zap to badger.Logger
type badgerLoggerAdapter struct {
	sugar *zap.SugaredLogger
}

func (b *badgerLoggerAdapter) Errorf(format string, args ...interface{}) {
	b.sugar.Errorf(strings.TrimSuffix(format, "\n"), args...)
}

func (b *badgerLoggerAdapter) Warningf(format string, args ...interface{}) {
	b.sugar.Warnf(strings.TrimSuffix(format, "\n"), args...)
}

func (b *badgerLoggerAdapter) Infof(format string, args ...interface{}) {
	b.sugar.Debugf(strings.TrimSuffix(format, "\n"), args...)
}

func (b *badgerLoggerAdapter) Debugf(format string, args ...interface{}) {
	b.sugar.Debugf(strings.TrimSuffix(format, "\n"), args...)
}

func newLogger(logger *zap.Logger) badger.Logger {
	return &badgerLoggerAdapter{sugar: logger.Sugar()}
}

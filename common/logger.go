package common

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the process wide structured logger. Production config by
// default; tests may swap it with SetLogger.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			l, err := zap.NewProduction()
			if err != nil {
				l = zap.NewNop()
			}
			logger = l
		}
	})
	return logger
}

func SetLogger(l *zap.Logger) {
	loggerOnce.Do(func() {})
	logger = l
}

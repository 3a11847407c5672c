package book

import "go.uber.org/zap"

var logger = zap.NewNop()

// SetLogger allows setting a custom logger. The engine is silent by default.
func SetLogger(l *zap.Logger) {
	if l != nil {
		logger = l
	}
}

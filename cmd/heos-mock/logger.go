package main

import (
	"github.com/charmbracelet/log"

	heosmock "github.com/raniellyferreira/heos-mock-device"
)

// charmLogger adapts a charmbracelet logger to heosmock.Logger
type charmLogger struct {
	logger *log.Logger
}

func (l *charmLogger) Debug(msg string, fields ...heosmock.Field) {
	l.logger.Debug(msg, keyvals(fields)...)
}

func (l *charmLogger) Info(msg string, fields ...heosmock.Field) {
	l.logger.Info(msg, keyvals(fields)...)
}

func (l *charmLogger) Error(msg string, fields ...heosmock.Field) {
	l.logger.Error(msg, keyvals(fields)...)
}

func keyvals(fields []heosmock.Field) []interface{} {
	kv := make([]interface{}, 0, len(fields)*2)
	for _, f := range fields {
		kv = append(kv, f.Key, f.Value)
	}
	return kv
}

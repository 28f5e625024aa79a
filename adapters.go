package heosmock

// serverLogger implements the server.Logger interface on top of Logger
type serverLogger struct {
	logger Logger
}

func (sl *serverLogger) Debug(msg string, fields ...interface{}) {
	sl.logger.Debug(msg, convertFields(fields...)...)
}

func (sl *serverLogger) Info(msg string, fields ...interface{}) {
	sl.logger.Info(msg, convertFields(fields...)...)
}

func (sl *serverLogger) Error(msg string, fields ...interface{}) {
	sl.logger.Error(msg, convertFields(fields...)...)
}

// convertFields turns alternating key/value arguments into Fields. A
// non-string key or a trailing key without a value is dropped.
func convertFields(fields ...interface{}) []Field {
	result := make([]Field, 0, len(fields)/2)
	for i := 0; i < len(fields)-1; i += 2 {
		if key, ok := fields[i].(string); ok {
			result = append(result, Field{
				Key:   key,
				Value: fields[i+1],
			})
		}
	}
	return result
}

// loggerFunc adapts a plain function to Logger. Every level goes to fn
// with its name.
type loggerFunc func(level, msg string, fields ...Field)

func (f loggerFunc) Debug(msg string, fields ...Field) { f("debug", msg, fields...) }
func (f loggerFunc) Info(msg string, fields ...Field)  { f("info", msg, fields...) }
func (f loggerFunc) Error(msg string, fields ...Field) { f("error", msg, fields...) }

// LoggerFunc returns a Logger calling fn for every message
func LoggerFunc(fn func(level, msg string, fields ...Field)) Logger {
	return loggerFunc(fn)
}

package logger

// nopLogger discards everything. Workflow and transport tests use it so
// assertions run against quiet output.
type nopLogger struct{}

// NewNop returns a Logger that discards all output.
func NewNop() Logger {
	return &nopLogger{}
}

func (l *nopLogger) Debug(msg string, fields ...Field) {}

func (l *nopLogger) Info(msg string, fields ...Field) {}

func (l *nopLogger) Warn(msg string, fields ...Field) {}

func (l *nopLogger) Error(msg string, fields ...Field) {}

// Fatal discards the message and, unlike the zap logger, does not exit.
func (l *nopLogger) Fatal(msg string, fields ...Field) {}

func (l *nopLogger) With(fields ...Field) Logger {
	return l
}

func (l *nopLogger) Sync() error {
	return nil
}

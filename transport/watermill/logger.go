package watermilltransport

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/goliatone/go-conduit"
)

// NewLoggerAdapter lets watermill publishers and subscribers log through a
// conduit.Logger.
func NewLoggerAdapter(logger conduit.Logger) watermill.LoggerAdapter {
	return &loggerAdapter{logger: conduit.NormalizeLogger(logger)}
}

type loggerAdapter struct {
	logger conduit.Logger
}

func (l *loggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	l.with(fields).Error("%s: %v", msg, err)
}

func (l *loggerAdapter) Info(msg string, fields watermill.LogFields) {
	l.with(fields).Info("%s", msg)
}

func (l *loggerAdapter) Debug(msg string, fields watermill.LogFields) {
	l.with(fields).Debug("%s", msg)
}

func (l *loggerAdapter) Trace(msg string, fields watermill.LogFields) {
	l.with(fields).Trace("%s", msg)
}

func (l *loggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &loggerAdapter{logger: l.with(fields)}
}

func (l *loggerAdapter) with(fields watermill.LogFields) conduit.Logger {
	if len(fields) == 0 {
		return l.logger
	}
	return conduit.WithLoggerFields(l.logger, map[string]any(fields))
}

// Package middleware provides ready made pipeline middleware: logging,
// tracing, metrics, retry, panic recovery, timeouts and authorization.
package middleware

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-conduit"
	"github.com/goliatone/go-conduit/internal/jsoncodec"
	"github.com/goliatone/go-conduit/pipeline"
)

// Level of a log line written by Logging.
type Level string

const (
	LevelNone  Level = "none"
	LevelTrace Level = "trace"
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// PayloadStrategy tells how a message or response is rendered in the log.
type PayloadStrategy int

const (
	// PayloadMinimalJSON renders compact JSON.
	PayloadMinimalJSON PayloadStrategy = iota
	// PayloadIndentedJSON renders indented JSON.
	PayloadIndentedJSON
	// PayloadRaw renders the value with %+v.
	PayloadRaw
	// PayloadOmit leaves the payload out.
	PayloadOmit
)

// LoggingConfig controls what Logging writes.
type LoggingConfig struct {
	PreLevel        Level
	PostLevel       Level
	ErrorLevel      Level
	MessagePayload  PayloadStrategy
	ResponsePayload PayloadStrategy
}

// DefaultLoggingConfig logs start and end at info, failures at error and
// both payloads as compact JSON.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		PreLevel:        LevelInfo,
		PostLevel:       LevelInfo,
		ErrorLevel:      LevelError,
		MessagePayload:  PayloadMinimalJSON,
		ResponsePayload: PayloadMinimalJSON,
	}
}

// Logging writes one line before and one after the rest of the pipeline.
type Logging[M, R any] struct {
	logger conduit.Logger
	now    func() time.Time
}

func NewLogging[M, R any](logger conduit.Logger) *Logging[M, R] {
	return &Logging[M, R]{
		logger: conduit.NormalizeLogger(logger),
		now:    time.Now,
	}
}

// UseLogging appends a Logging middleware with the default configuration.
func UseLogging[M, R any](p *pipeline.Pipeline[M, R], logger conduit.Logger) *pipeline.Pipeline[M, R] {
	return pipeline.Use(p, NewLogging[M, R](logger), DefaultLoggingConfig())
}

func (l *Logging[M, R]) Execute(ctx context.Context, call *pipeline.Call[M, R], cfg LoggingConfig) (R, error) {
	logger := conduit.WithLoggerFields(l.logger.WithContext(ctx), map[string]any{
		"message_type": conduit.GetMessageType(call.Message),
		"message_id":   call.Store.MessageID(),
		"trace_id":     call.Store.TraceID(),
		"transport":    call.Transport.Name(),
		"role":         call.Transport.Role().String(),
	})

	action := "handling"
	if call.Transport.IsSender() {
		action = "sending"
	}

	if payload := renderPayload(call.Message, cfg.MessagePayload); payload != "" {
		logf(logger, cfg.PreLevel, "%s message: %s", action, payload)
	} else {
		logf(logger, cfg.PreLevel, "%s message", action)
	}

	start := l.now()
	res, err := call.Next(ctx, call.Message)
	elapsed := l.now().Sub(start)

	if err != nil {
		logf(logger, cfg.ErrorLevel, "message failed after %s: %v", elapsed, err)
		return res, err
	}

	if payload := renderPayload(res, cfg.ResponsePayload); payload != "" {
		logf(logger, cfg.PostLevel, "message done in %s: %s", elapsed, payload)
	} else {
		logf(logger, cfg.PostLevel, "message done in %s", elapsed)
	}
	return res, nil
}

func renderPayload(v any, strategy PayloadStrategy) string {
	switch strategy {
	case PayloadOmit:
		return ""
	case PayloadRaw:
		return fmt.Sprintf("%+v", v)
	case PayloadIndentedJSON:
		data, err := jsoncodec.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprintf("%+v", v)
		}
		return string(data)
	default:
		data, err := jsoncodec.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%+v", v)
		}
		return string(data)
	}
}

func logf(logger conduit.Logger, level Level, msg string, args ...any) {
	switch Level(strings.ToLower(string(level))) {
	case LevelNone:
	case LevelTrace:
		logger.Trace(msg, args...)
	case LevelDebug:
		logger.Debug(msg, args...)
	case LevelWarn:
		logger.Warn(msg, args...)
	case LevelError:
		logger.Error(msg, args...)
	default:
		logger.Info(msg, args...)
	}
}

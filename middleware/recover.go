package middleware

import (
	"context"

	"github.com/goliatone/go-conduit"
	"github.com/goliatone/go-conduit/pipeline"
)

// RecoverConfig controls Recover.
type RecoverConfig struct {
	// LogStack adds the cleaned stack trace to the log line.
	LogStack bool
}

// Recover turns a panic in the rest of the pipeline into a
// *conduit.PanicError.
type Recover[M, R any] struct {
	logger conduit.Logger
}

func NewRecover[M, R any](logger conduit.Logger) *Recover[M, R] {
	return &Recover[M, R]{logger: conduit.NormalizeLogger(logger)}
}

func (r *Recover[M, R]) Execute(ctx context.Context, call *pipeline.Call[M, R], cfg RecoverConfig) (res R, err error) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		pe, ok := rec.(*conduit.PanicError)
		if !ok {
			pe = conduit.NewPanicError(rec)
		}

		fields := map[string]any{"message_type": conduit.GetMessageType(call.Message)}
		if cfg.LogStack {
			fields["stack"] = string(pe.Stack)
		}
		conduit.WithLoggerFields(r.logger.WithContext(ctx), fields).Error("recovered from panic: %v", pe.Value)

		var zero R
		res, err = zero, pe
	}()
	return call.Next(ctx, call.Message)
}

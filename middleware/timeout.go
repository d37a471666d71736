package middleware

import (
	"context"
	"time"

	"github.com/goliatone/go-conduit/pipeline"
)

// TimeoutConfig sets the deadline of the rest of the pipeline. Zero disables
// it.
type TimeoutConfig struct {
	Timeout time.Duration
}

// Timeout derives a context with a deadline for the rest of the pipeline.
// Handlers must honour ctx for it to have any effect.
type Timeout[M, R any] struct{}

func NewTimeout[M, R any]() *Timeout[M, R] {
	return &Timeout[M, R]{}
}

func (Timeout[M, R]) Execute(ctx context.Context, call *pipeline.Call[M, R], cfg TimeoutConfig) (R, error) {
	if cfg.Timeout <= 0 {
		return call.Next(ctx, call.Message)
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	return call.Next(ctx, call.Message)
}

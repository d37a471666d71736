package httptransport

import (
	"net/http"

	"github.com/goliatone/go-conduit"
	"github.com/goliatone/go-conduit/internal/jsoncodec"
	"github.com/goliatone/go-conduit/pipeline"
	"github.com/goliatone/go-conduit/scope"
	"github.com/goliatone/go-conduit/wire"
	"github.com/goliatone/go-errors"
)

// Receiver answers POST requests by running the handler pipeline of M.
// Malformed context data is rejected with 400 before anything runs.
type Receiver[M, R any] struct {
	handler  conduit.Handler[M, R]
	pipeline *pipeline.Pipeline[M, R]
	opts     options
}

// NewReceiver creates a receiver. A nil pipeline runs the handler alone.
func NewReceiver[M, R any](handler conduit.Handler[M, R], p *pipeline.Pipeline[M, R], opts ...Option) *Receiver[M, R] {
	if p == nil {
		p = pipeline.New[M, R]()
	}
	return &Receiver[M, R]{handler: handler, pipeline: p, opts: newOptions(opts)}
}

func (r *Receiver[M, R]) TransportType() conduit.TransportType {
	return conduit.NewTransportType(TransportName, conduit.RoleReceiver)
}

func (r *Receiver[M, R]) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	ctx, store, release, err := r.opts.propagator.Ingress(req.Context(), wire.HeaderCarrier(req.Header),
		scope.WithIDGenerator(r.opts.generator))
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	defer release()

	var msg M
	if err := jsoncodec.Decode(req.Body, &msg); err != nil {
		r.writeError(w, req, errors.Wrap(err, errors.CategoryBadInput, "invalid message body").
			WithTextCode(conduit.ErrCodeInvalidMessage))
		return
	}

	if err := conduit.ValidateMessage(msg); err != nil {
		r.writeError(w, req, err)
		return
	}

	res, err := r.pipeline.Execute(ctx, msg, r.TransportType(), r.handler)
	r.opts.propagator.InjectResponse(store, wire.HeaderCarrier(w.Header()))
	if err != nil {
		r.writeError(w, req, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := jsoncodec.Encode(w, res); err != nil {
		r.opts.logger.WithContext(ctx).Error("failed to write response for %s: %v", conduit.GetMessageType(msg), err)
	}
}

func (r *Receiver[M, R]) writeError(w http.ResponseWriter, req *http.Request, err error) {
	status := conduit.HTTPStatusForError(err)
	code := conduit.ErrorCode(err)
	if code == "" {
		code = http.StatusText(status)
	}

	logger := r.opts.logger.WithContext(req.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("%s %s failed: %v", req.Method, req.URL.Path, err)
	} else {
		logger.Warn("%s %s rejected: %v", req.Method, req.URL.Path, err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = jsoncodec.Encode(w, errorBody{Code: code, Message: err.Error()})
}

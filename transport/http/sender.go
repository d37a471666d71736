package httptransport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/goliatone/go-conduit"
	"github.com/goliatone/go-conduit/internal/jsoncodec"
	"github.com/goliatone/go-conduit/scope"
	"github.com/goliatone/go-conduit/wire"
)

// Sender posts M as JSON to a Receiver and decodes R from the answer.
type Sender[M, R any] struct {
	url  string
	opts options
}

func NewSender[M, R any](url string, opts ...Option) *Sender[M, R] {
	return &Sender[M, R]{url: url, opts: newOptions(opts)}
}

func (s *Sender[M, R]) TransportType() conduit.TransportType {
	return conduit.NewTransportType(TransportName, conduit.RoleSender)
}

func (s *Sender[M, R]) Send(ctx context.Context, msg M) (R, error) {
	var zero R

	ctx, store, release := scope.GetOrCreate(ctx, scope.WithIDGenerator(s.opts.generator))
	defer release()

	body, err := jsoncodec.Marshal(msg)
	if err != nil {
		return zero, conduit.CloneError(conduit.ErrTransportFailed, "failed to encode message", err, map[string]any{
			"message_type": conduit.GetMessageType(msg),
		})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return zero, conduit.CloneError(conduit.ErrTransportFailed, "failed to create request", err, map[string]any{"url": s.url})
	}
	req.Header.Set("Content-Type", "application/json")
	s.opts.propagator.InjectRequest(ctx, store, wire.HeaderCarrier(req.Header))

	resp, err := s.opts.client.Do(req)
	if err != nil {
		return zero, conduit.CloneError(conduit.ErrTransportFailed, "http request failed", err, map[string]any{"url": s.url})
	}
	defer resp.Body.Close()

	if err := s.opts.propagator.ExtractResponse(ctx, store, wire.HeaderCarrier(resp.Header)); err != nil {
		return zero, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return zero, remoteError(resp, s.url)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return zero, conduit.CloneError(conduit.ErrTransportFailed, "failed to read response", err, map[string]any{"url": s.url})
	}

	var res R
	if len(bytes.TrimSpace(data)) == 0 {
		return res, nil
	}
	if err := jsoncodec.Unmarshal(data, &res); err != nil {
		return zero, conduit.CloneError(conduit.ErrTransportFailed, "failed to decode response", err, map[string]any{"url": s.url})
	}
	return res, nil
}

func remoteError(resp *http.Response, url string) error {
	var body errorBody
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := jsoncodec.Unmarshal(data, &body); err != nil || body.Code == "" {
		body = errorBody{Code: "HTTP_" + fmt.Sprint(resp.StatusCode), Message: string(bytes.TrimSpace(data))}
	}

	cause := conduit.CloneError(conduit.ErrTransportFailed, fmt.Sprintf("remote answered with status %d", resp.StatusCode), nil, map[string]any{
		"url":         url,
		"status":      resp.StatusCode,
		"remote_code": body.Code,
	})
	return conduit.WrapMessageError(body.Code, body.Message, cause)
}

package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-conduit/internal/jsoncodec"
	"github.com/goliatone/go-conduit/scope"
	"github.com/goliatone/go-conduit/wire"
)

type encodeCmd struct {
	Direction string   `enum:"downstream,upstream" default:"downstream" help:"Direction of the directional entries."`
	Entries   []string `arg:"" help:"key=value pairs, prefix with b: for bidirectional entries."`
}

func (c *encodeCmd) Run(e *env) error {
	dir := direction(c.Direction)
	s := scope.New("", "")
	if err := setEntries(s, dir, c.Entries); err != nil {
		return err
	}
	fmt.Fprintln(e.out, wire.Encode(s, dir))
	return nil
}

type decodeCmd struct {
	Direction string   `enum:"downstream,upstream" default:"downstream" help:"Direction the fields travel in."`
	JSON      bool     `name:"json" help:"Print a JSON object instead of lines."`
	Fields    []string `arg:"" help:"Wire field values, applied in order."`
}

func (c *decodeCmd) Run(e *env) error {
	s := scope.New("", "")
	if err := wire.Decode(s, direction(c.Direction), c.Fields...); err != nil {
		e.logger.Debug("decode failed: %v", err)
		return err
	}

	kinds := []scope.DataKind{scope.Downstream, scope.Upstream, scope.Bidirectional}
	if c.JSON {
		out := make(map[string]map[string]string, len(kinds))
		for _, kind := range kinds {
			entries := s.Data(kind).Entries()
			if len(entries) == 0 {
				continue
			}
			m := make(map[string]string, len(entries))
			for _, entry := range entries {
				m[entry.Key] = entry.Value
			}
			out[kind.String()] = m
		}
		return jsoncodec.Encode(e.out, out)
	}

	for _, kind := range kinds {
		for _, entry := range s.Data(kind).Entries() {
			fmt.Fprintf(e.out, "%s\t%s=%s\n", kind, entry.Key, entry.Value)
		}
	}
	return nil
}

type headersCmd struct {
	MessageID string   `name:"message-id" help:"Message id, generated when empty."`
	TraceID   string   `name:"trace-id" help:"32 hex digit trace id, generated when empty."`
	Entries   []string `arg:"" optional:"" help:"key=value pairs, prefix with b: for bidirectional entries."`
}

func (c *headersCmd) Run(e *env) error {
	messageID := c.MessageID
	if messageID == "" {
		messageID = e.cfg.Generator()()
	}
	traceID := c.TraceID
	if traceID == "" {
		traceID = scope.NewTraceID()
	}

	s := scope.New(messageID, traceID)
	if err := setEntries(s, wire.Downstream, c.Entries); err != nil {
		return err
	}

	carrier := wire.MapCarrier{}
	e.cfg.Propagator(wire.WithLogger(e.logger)).InjectRequest(context.Background(), s, carrier)

	keys := carrier.Keys()
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(e.out, "%s: %s\n", k, carrier.Get(k))
	}
	return nil
}

type traceparentCmd struct {
	TraceID string `arg:"" optional:"" help:"32 hex digit trace id, generated when empty."`
}

func (c *traceparentCmd) Run(e *env) error {
	traceID := c.TraceID
	if traceID == "" {
		traceID = scope.NewTraceID()
	}
	if _, ok := wire.SpanContextFor(traceID); !ok {
		return fmt.Errorf("invalid trace id %q", traceID)
	}

	carrier := wire.MapCarrier{}
	wire.InjectTraceParent(context.Background(), scope.New("", traceID), carrier)
	fmt.Fprintln(e.out, carrier.Get(wire.TraceParentField))
	return nil
}

type idCmd struct {
	Count int `short:"n" default:"1" help:"How many ids to print."`
}

func (c *idCmd) Run(e *env) error {
	gen := e.cfg.Generator()
	for i := 0; i < c.Count; i++ {
		fmt.Fprintln(e.out, gen())
	}
	return nil
}

func direction(name string) wire.Direction {
	if name == "upstream" {
		return wire.Upstream
	}
	return wire.Downstream
}

func setEntries(s *scope.Store, dir wire.Direction, entries []string) error {
	kind := scope.Downstream
	if dir == wire.Upstream {
		kind = scope.Upstream
	}
	for _, raw := range entries {
		target := kind
		if rest, ok := strings.CutPrefix(raw, "b:"); ok {
			target = scope.Bidirectional
			raw = rest
		}
		key, value, ok := strings.Cut(raw, "=")
		if !ok {
			return fmt.Errorf("entry %q is not key=value", raw)
		}
		s.Set(target, key, value, scope.AcrossTransports)
	}
	return nil
}

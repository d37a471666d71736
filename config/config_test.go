package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/goliatone/go-conduit"
	"github.com/goliatone/go-conduit/broadcast"
	"github.com/goliatone/go-conduit/eventing"
	"github.com/goliatone/go-conduit/ids"
	"github.com/goliatone/go-conduit/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
version: 1
wire:
  context_field: x-ctx
  message_id_field: x-msg
ids:
  generator: uuidv7
broadcast:
  default:
    type: sequential
    policy: collect_all
  events:
    order.placed:
      type: parallel
      max_concurrency: 4
    user.created: {}
`

func TestParseYAML(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "x-ctx", cfg.Wire.ContextField)
	assert.Equal(t, "x-msg", cfg.Wire.MessageIDField)
	assert.Equal(t, ids.KindUUIDv7, cfg.IDs.Generator)
	assert.Equal(t, broadcast.CollectAll, cfg.Broadcast.Default.Policy)

	sel := cfg.Selector()
	assert.Equal(t, broadcast.Sequential{Policy: broadcast.CollectAll}, sel.Default())
	assert.Equal(t, broadcast.Parallel{MaxConcurrency: 4}, sel.For("order.placed"))
	assert.Equal(t, broadcast.Sequential{Policy: broadcast.FailFast}, sel.For("user.created"))
	assert.Equal(t, broadcast.Sequential{Policy: broadcast.CollectAll}, sel.For("other"))

	p := cfg.Propagator()
	assert.Equal(t, "x-ctx", p.ContextField())
	assert.Equal(t, "x-msg", p.MessageIDField())

	id := cfg.Generator()()
	assert.Len(t, id, 36)
}

func TestParseJSON(t *testing.T) {
	cfg, err := Parse([]byte(`{"broadcast":{"default":{"type":"parallel"}}}`))
	require.NoError(t, err)
	assert.Equal(t, broadcast.Parallel{}, cfg.Selector().Default())
	assert.Equal(t, wire.DefaultContextField, cfg.Wire.ContextField)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, ids.KindULID, cfg.IDs.Generator)
	assert.Equal(t, wire.DefaultMessageIDField, cfg.Wire.MessageIDField)
	assert.Equal(t, broadcast.Sequential{}, cfg.Selector().Default())
	assert.Len(t, cfg.Generator()(), 26)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "syntax", data: "broadcast: ["},
		{name: "version", data: "version: 2"},
		{name: "same fields", data: "wire: {context_field: a, message_id_field: A}"},
		{name: "traceparent", data: "wire: {context_field: traceparent}"},
		{name: "generator", data: "ids: {generator: snowflake}"},
		{name: "strategy", data: "broadcast: {default: {type: random}}"},
		{name: "policy", data: "broadcast: {default: {policy: sometimes}}"},
		{name: "parallel policy", data: "broadcast: {default: {type: parallel, policy: collect_all}}"},
		{name: "sequential concurrency", data: "broadcast: {default: {max_concurrency: 2}}"},
		{name: "negative concurrency", data: "broadcast: {events: {a: {type: parallel, max_concurrency: -1}}}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			require.Error(t, err)
		})
	}
}

func TestValidationErrorCode(t *testing.T) {
	_, err := Parse([]byte("version: 3"))
	assert.True(t, conduit.HasErrorCode(err, ErrCodeInvalidConfig))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conduit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "x-ctx", cfg.Wire.ContextField)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, conduit.HasErrorCode(err, ErrCodeInvalidConfig))
}

func TestDispatcherOptions(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	d := eventing.NewDispatcher(cfg.DispatcherOptions()...)
	assert.Equal(t, broadcast.Parallel{MaxConcurrency: 4}, d.Selector().For("order.placed"))
}

// Package config loads the runtime settings of a conduit process from YAML
// or JSON.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/goliatone/go-conduit/broadcast"
	"github.com/goliatone/go-conduit/eventing"
	"github.com/goliatone/go-conduit/ids"
	"github.com/goliatone/go-conduit/wire"
	"github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"
)

const ErrCodeInvalidConfig = "INVALID_CONFIG"

const (
	StrategySequential = "sequential"
	StrategyParallel   = "parallel"
)

// Config is the root of a configuration file.
type Config struct {
	Version   int             `json:"version" yaml:"version"`
	Wire      WireConfig      `json:"wire,omitempty" yaml:"wire,omitempty"`
	IDs       IDConfig        `json:"ids,omitempty" yaml:"ids,omitempty"`
	Broadcast BroadcastConfig `json:"broadcast,omitempty" yaml:"broadcast,omitempty"`
}

// WireConfig names the fields context travels in.
type WireConfig struct {
	ContextField   string `json:"context_field,omitempty" yaml:"context_field,omitempty"`
	MessageIDField string `json:"message_id_field,omitempty" yaml:"message_id_field,omitempty"`
}

type IDConfig struct {
	// Generator is "ulid" or "uuidv7".
	Generator string `json:"generator,omitempty" yaml:"generator,omitempty"`
}

// BroadcastConfig holds the default strategy and per event type overrides.
type BroadcastConfig struct {
	Default StrategyConfig            `json:"default,omitempty" yaml:"default,omitempty"`
	Events  map[string]StrategyConfig `json:"events,omitempty" yaml:"events,omitempty"`
}

// StrategyConfig describes one broadcasting strategy.
type StrategyConfig struct {
	Type           string           `json:"type,omitempty" yaml:"type,omitempty"`
	Policy         broadcast.Policy `json:"policy,omitempty" yaml:"policy,omitempty"`
	MaxConcurrency int              `json:"max_concurrency,omitempty" yaml:"max_concurrency,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	cfg := Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, errors.CategoryBadInput, "failed to read config "+path).
			WithTextCode(ErrCodeInvalidConfig)
	}
	return Parse(data)
}

// Parse decodes YAML or JSON, applies defaults and validates the result.
func Parse(data []byte) (Config, error) {
	var cfg Config
	// yaml can handle JSON too, so a single attempt is fine
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, errors.CategoryBadInput, "failed to parse config").
			WithTextCode(ErrCodeInvalidConfig)
	}
	cfg.applyDefaults()
	return cfg, cfg.Validate()
}

func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Wire.ContextField == "" {
		c.Wire.ContextField = wire.DefaultContextField
	}
	if c.Wire.MessageIDField == "" {
		c.Wire.MessageIDField = wire.DefaultMessageIDField
	}
	if c.IDs.Generator == "" {
		c.IDs.Generator = ids.KindULID
	}
	if c.Broadcast.Default.Type == "" {
		c.Broadcast.Default.Type = StrategySequential
	}
	for name, sc := range c.Broadcast.Events {
		if sc.Type == "" {
			sc.Type = StrategySequential
			c.Broadcast.Events[name] = sc
		}
	}
}

// Validate performs basic structural validation.
func (c Config) Validate() error {
	if c.Version != 1 {
		return invalid("unsupported config version %d", c.Version)
	}
	if strings.EqualFold(c.Wire.ContextField, c.Wire.MessageIDField) {
		return invalid("wire fields must differ, both are %q", c.Wire.ContextField)
	}
	if strings.EqualFold(c.Wire.ContextField, wire.TraceParentField) || strings.EqualFold(c.Wire.MessageIDField, wire.TraceParentField) {
		return invalid("wire field %q is reserved", wire.TraceParentField)
	}
	if _, ok := ids.ByName(c.IDs.Generator); !ok {
		return invalid("unknown id generator %q", c.IDs.Generator)
	}
	if err := c.Broadcast.Default.Validate(); err != nil {
		return invalid("broadcast.default: %v", err)
	}
	for _, name := range c.Broadcast.eventTypes() {
		if name == "" {
			return invalid("broadcast.events: empty event type")
		}
		if err := c.Broadcast.Events[name].Validate(); err != nil {
			return invalid("broadcast.events[%s]: %v", name, err)
		}
	}
	return nil
}

func (s StrategyConfig) Validate() error {
	switch strings.ToLower(s.Type) {
	case StrategySequential:
		if s.MaxConcurrency != 0 {
			return fmt.Errorf("max_concurrency only applies to %s", StrategyParallel)
		}
	case StrategyParallel:
		if s.MaxConcurrency < 0 {
			return fmt.Errorf("max_concurrency must not be negative")
		}
		if s.Policy != broadcast.FailFast {
			return fmt.Errorf("policy only applies to %s", StrategySequential)
		}
	default:
		return fmt.Errorf("unknown strategy type %q", s.Type)
	}
	return nil
}

// Strategy builds the broadcasting strategy s describes.
func (s StrategyConfig) Strategy() broadcast.Strategy {
	if strings.EqualFold(s.Type, StrategyParallel) {
		return broadcast.Parallel{MaxConcurrency: s.MaxConcurrency}
	}
	return broadcast.Sequential{Policy: s.Policy}
}

// Selector builds a selector with the default strategy and every override.
func (c Config) Selector() *broadcast.Selector {
	sel := broadcast.NewSelector(c.Broadcast.Default.Strategy())
	for _, name := range c.Broadcast.eventTypes() {
		sel.Override(name, c.Broadcast.Events[name].Strategy())
	}
	return sel
}

// Propagator builds a propagator using the configured field names. opts are
// applied after them.
func (c Config) Propagator(opts ...wire.Option) *wire.Propagator {
	all := append([]wire.Option{
		wire.WithContextField(c.Wire.ContextField),
		wire.WithMessageIDField(c.Wire.MessageIDField),
	}, opts...)
	return wire.NewPropagator(all...)
}

// Generator returns the configured message id generator, ULID when unknown.
func (c Config) Generator() ids.Generator {
	if gen, ok := ids.ByName(c.IDs.Generator); ok {
		return gen
	}
	return ids.Default()
}

// DispatcherOptions configures an eventing.Dispatcher with the broadcasting
// strategies and id generator of c.
func (c Config) DispatcherOptions() []eventing.Option {
	return []eventing.Option{
		eventing.WithSelector(c.Selector()),
		eventing.WithIDGenerator(c.Generator()),
	}
}

func (b BroadcastConfig) eventTypes() []string {
	names := make([]string, 0, len(b.Events))
	for name := range b.Events {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func invalid(format string, args ...any) error {
	return errors.New(fmt.Sprintf(format, args...), errors.CategoryValidation).
		WithTextCode(ErrCodeInvalidConfig)
}

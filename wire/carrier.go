package wire

import (
	"net/http"
	"sort"
)

// Carrier is a multi-valued string map a transport exposes for its headers or
// metadata. Every Carrier also satisfies otel's propagation.TextMapCarrier.
type Carrier interface {
	// Get returns the first value of key.
	Get(key string) string
	// Values returns every value of key in receipt order.
	Values(key string) []string
	Add(key, value string)
	Set(key, value string)
	Keys() []string
}

// HeaderCarrier adapts http.Header. Every occurrence of a header is one
// field value. Proxies must not fold repeated context headers into one line:
// a folded "a=1, b=2" decodes the second key as " b", since spaces are
// ordinary key characters and are never trimmed.
type HeaderCarrier http.Header

func (c HeaderCarrier) Get(key string) string { return http.Header(c).Get(key) }

func (c HeaderCarrier) Values(key string) []string { return http.Header(c).Values(key) }

func (c HeaderCarrier) Add(key, value string) { http.Header(c).Add(key, value) }

func (c HeaderCarrier) Set(key, value string) { http.Header(c).Set(key, value) }

func (c HeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MapCarrier adapts a single valued map such as message metadata. Add on an
// existing key appends the value separated by ",", which decodes exactly like
// two separate occurrences of a context field.
type MapCarrier map[string]string

func (c MapCarrier) Get(key string) string { return c[key] }

func (c MapCarrier) Values(key string) []string {
	if v, ok := c[key]; ok && v != "" {
		return []string{v}
	}
	return nil
}

func (c MapCarrier) Add(key, value string) {
	if prev, ok := c[key]; ok && prev != "" {
		c[key] = prev + string(entrySep) + value
		return
	}
	c[key] = value
}

func (c MapCarrier) Set(key, value string) { c[key] = value }

func (c MapCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

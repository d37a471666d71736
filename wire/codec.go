// Package wire moves the across-transport part of a scope.Store over a
// transport boundary.
//
// A context field holds entries joined by ",". Each entry is key=value,
// optionally prefixed by a one letter tag and ":" (b for bidirectional, d for
// downstream, u for upstream). The reserved characters , = | and : are
// escaped with "|" wherever they appear in keys or values:
//
//	,  ->  |c
//	=  ->  |e
//	|  ->  |p
//	:  ->  |o
//
// No other character is ever escaped.
package wire

import (
	"strings"

	"github.com/goliatone/go-conduit"
	"github.com/goliatone/go-conduit/scope"
)

// Direction of a transport hop.
type Direction int

const (
	// Downstream travels from caller to callee (requests).
	Downstream Direction = iota
	// Upstream travels from callee back to caller (responses).
	Upstream
)

func (d Direction) String() string {
	if d == Upstream {
		return "upstream"
	}
	return "downstream"
}

func (d Direction) kind() scope.DataKind {
	if d == Upstream {
		return scope.Upstream
	}
	return scope.Downstream
}

const (
	entrySep     = ','
	keyValueSep  = '='
	escapeChar   = '|'
	tagSep       = ':'
	bidiTag      = "b"
	downTag      = "d"
	upTag        = "u"
	maxErrSample = 64
)

var escaper = strings.NewReplacer(
	"|", "|p",
	",", "|c",
	"=", "|e",
	":", "|o",
)

// Escape replaces reserved characters in s.
func Escape(s string) string {
	return escaper.Replace(s)
}

// Unescape reverses Escape. It reports false for a dangling or unknown
// escape sequence and for reserved characters left unescaped.
func Unescape(s string) (string, bool) {
	if strings.IndexByte(s, escapeChar) < 0 {
		return s, strings.IndexAny(s, ",=:") < 0
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case entrySep, keyValueSep, tagSep:
			return "", false
		case escapeChar:
			if i+1 >= len(s) {
				return "", false
			}
			i++
			switch s[i] {
			case 'c':
				b.WriteByte(entrySep)
			case 'e':
				b.WriteByte(keyValueSep)
			case 'p':
				b.WriteByte(escapeChar)
			case 'o':
				b.WriteByte(tagSep)
			default:
				return "", false
			}
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), true
}

// Encode serializes the AcrossTransports entries travelling in dir: the
// directional map for dir followed by the bidirectional map. It returns ""
// when there is nothing to send.
func Encode(s *scope.Store, dir Direction) string {
	if s == nil {
		return ""
	}

	var b strings.Builder
	write := func(tag string, entries []scope.Entry) {
		for _, e := range entries {
			if b.Len() > 0 {
				b.WriteByte(entrySep)
			}
			if tag != "" {
				b.WriteString(tag)
				b.WriteByte(tagSep)
			}
			b.WriteString(Escape(e.Key))
			b.WriteByte(keyValueSep)
			b.WriteString(Escape(e.Value))
		}
	}

	write("", s.Data(dir.kind()).AcrossTransports())
	write(bidiTag, s.Bidirectional().AcrossTransports())
	return b.String()
}

type decoded struct {
	kind  scope.DataKind
	key   string
	value string
}

// Decode parses every field and, only when all of them are well formed,
// applies the entries to s as sequential Set calls in receipt order. Later
// occurrences of a key overwrite earlier ones. Untagged entries go to the
// directional map of dir. Every decoded entry gets scope AcrossTransports.
//
// Malformed input returns an error carrying conduit.ErrCodeContextDataInvalid
// and leaves s untouched.
func Decode(s *scope.Store, dir Direction, fields ...string) error {
	var entries []decoded
	for fi, field := range fields {
		if field == "" {
			continue
		}
		for ei, raw := range strings.Split(field, string(entrySep)) {
			e, reason := parseEntry(raw, dir)
			if reason != "" {
				return malformed(reason, fi, ei, raw)
			}
			entries = append(entries, e)
		}
	}

	if s == nil || len(entries) == 0 {
		return nil
	}

	for _, e := range entries {
		s.Set(e.kind, e.key, e.value, scope.AcrossTransports)
	}
	return nil
}

// DecodeStrict validates fields without applying them.
func DecodeStrict(fields ...string) error {
	return Decode(nil, Downstream, fields...)
}

func parseEntry(raw string, dir Direction) (decoded, string) {
	if raw == "" {
		return decoded{}, "empty entry"
	}

	e := decoded{kind: dir.kind()}
	if i := strings.IndexByte(raw, tagSep); i >= 0 {
		switch raw[:i] {
		case bidiTag:
			e.kind = scope.Bidirectional
		case downTag:
			e.kind = scope.Downstream
		case upTag:
			e.kind = scope.Upstream
		default:
			return decoded{}, "unknown entry tag"
		}
		raw = raw[i+1:]
	}

	key, value, ok := strings.Cut(raw, string(keyValueSep))
	if !ok {
		return decoded{}, "missing key/value separator"
	}
	if strings.IndexByte(value, keyValueSep) >= 0 {
		return decoded{}, "unescaped key/value separator"
	}

	var kok, vok bool
	if e.key, kok = Unescape(key); !kok {
		return decoded{}, "malformed key"
	}
	if e.value, vok = Unescape(value); !vok {
		return decoded{}, "malformed value"
	}
	return e, ""
}

func malformed(reason string, field, entry int, raw string) error {
	if len(raw) > maxErrSample {
		raw = raw[:maxErrSample]
	}
	return conduit.CloneError(conduit.ErrContextDataInvalid, "invalid formatted context data: "+reason, nil, map[string]any{
		"field_index": field,
		"entry_index": entry,
		"entry":       raw,
	})
}

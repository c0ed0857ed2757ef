// Package codec implements the dictionary-substitution compression used when
// a delta crosses the transfer boundary.
//
// Compression collects the string values of a structure, keeps the top-N
// ranked by descending length (ties broken lexically, so output is
// deterministic), and replaces each occurrence with a sigil-prefixed index
// reference. Strings that don't make the dictionary pass through unchanged,
// so decompress(compress(x)) round-trips exactly.
package codec

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Sigil prefixes a dictionary index reference in compressed output.
const Sigil = "$"

// DefaultMaxEntries caps the dictionary size when none is configured.
const DefaultMaxEntries = 64

// minGain is the shortest string worth substituting; anything at or below
// the size of a reference token stays literal.
const minGain = 4

// Payload is the compressed form of a structure.
type Payload struct {
	Dictionary []string        `json:"dictionary"`
	Data       json.RawMessage `json:"data"`
}

// Codec compresses and decompresses arbitrary JSON-representable structures.
type Codec struct {
	maxEntries int
}

// New creates a codec with the given dictionary cap. A non-positive cap
// falls back to DefaultMaxEntries.
func New(maxEntries int) *Codec {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Codec{maxEntries: maxEntries}
}

// Compress builds the dictionary for v and returns the substituted payload.
func (c *Codec) Compress(v any) (*Payload, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("failed to decode value: %w", err)
	}

	dict := buildDictionary(generic, c.maxEntries)
	index := make(map[string]int, len(dict))
	for i, s := range dict {
		index[s] = i
	}

	substituted := substitute(generic, index)
	data, err := json.Marshal(substituted)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal compressed data: %w", err)
	}

	return &Payload{Dictionary: dict, Data: data}, nil
}

// Decompress reverses the substitution and decodes the result into out.
// A sigil-prefixed token whose index is out of range is left as literal
// text; that is a graceful fallback, not an error.
func (c *Codec) Decompress(p *Payload, out any) error {
	if p == nil {
		return fmt.Errorf("payload is nil")
	}

	var generic any
	if err := json.Unmarshal(p.Data, &generic); err != nil {
		return fmt.Errorf("failed to decode compressed data: %w", err)
	}

	restored := resolve(generic, p.Dictionary)
	raw, err := json.Marshal(restored)
	if err != nil {
		return fmt.Errorf("failed to marshal restored data: %w", err)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode restored value: %w", err)
	}
	return nil
}

// buildDictionary collects candidate string values and ranks them.
func buildDictionary(v any, cap int) []string {
	seen := make(map[string]bool)
	var collect func(v any)
	collect = func(v any) {
		switch t := v.(type) {
		case string:
			// Skip strings that would not shrink, and strings that already
			// look like a reference (substituting them would break the
			// round-trip).
			if len(t) > minGain && !strings.HasPrefix(t, Sigil) {
				seen[t] = true
			}
		case []any:
			for _, item := range t {
				collect(item)
			}
		case map[string]any:
			for _, item := range t {
				collect(item)
			}
		}
	}
	collect(v)

	dict := make([]string, 0, len(seen))
	for s := range seen {
		dict = append(dict, s)
	}
	sort.Slice(dict, func(i, j int) bool {
		if len(dict[i]) != len(dict[j]) {
			return len(dict[i]) > len(dict[j])
		}
		return dict[i] < dict[j]
	})

	if len(dict) > cap {
		dict = dict[:cap]
	}
	return dict
}

// substitute replaces dictionary string values with index references.
// Map keys and all non-string structure are left untouched.
func substitute(v any, index map[string]int) any {
	switch t := v.(type) {
	case string:
		if i, ok := index[t]; ok {
			return Sigil + strconv.Itoa(i)
		}
		// A literal that happens to start with the sigil is escaped with a
		// second sigil so it cannot be mistaken for a reference.
		if strings.HasPrefix(t, Sigil) {
			return Sigil + t
		}
		return t
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = substitute(item, index)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = substitute(item, index)
		}
		return out
	default:
		return v
	}
}

// resolve replaces index references with their dictionary strings.
func resolve(v any, dict []string) any {
	switch t := v.(type) {
	case string:
		if strings.HasPrefix(t, Sigil+Sigil) {
			return t[len(Sigil):]
		}
		if s, ok := lookupReference(t, dict); ok {
			return s
		}
		return t
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = resolve(item, dict)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = resolve(item, dict)
		}
		return out
	default:
		return v
	}
}

// lookupReference parses a sigil token and returns the referenced string.
// Malformed or out-of-range references report false so the caller keeps
// the literal text.
func lookupReference(s string, dict []string) (string, bool) {
	if !strings.HasPrefix(s, Sigil) {
		return "", false
	}
	i, err := strconv.Atoi(s[len(Sigil):])
	if err != nil || i < 0 || i >= len(dict) {
		return "", false
	}
	return dict[i], true
}

package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Metadata is a key-value bag attached to accounts, domains, assets and
// transactions. Keys are normalized into sorted order at construction time
// so canonical encoding is deterministic regardless of insertion order —
// giving every encoder and comparer a single deterministic key order to rely on.
type Metadata struct {
	keys   []Name
	values map[Name]json.RawMessage
}

// NewMetadata builds a Metadata from a candidate key/value map, validating
// every key as a Name and every value as well-formed JSON.
func NewMetadata(candidate map[string]any) (Metadata, error) {
	m := Metadata{values: make(map[Name]json.RawMessage, len(candidate))}
	for k, v := range candidate {
		name, err := ParseName(k)
		if err != nil {
			return Metadata{}, fmt.Errorf("metadata key %q: %w", k, err)
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return Metadata{}, fmt.Errorf("%w: metadata value for %q: %v", ErrInvalid, k, err)
		}
		m.values[name] = raw
		m.keys = append(m.keys, name)
	}
	sort.Slice(m.keys, func(i, j int) bool { return m.keys[i] < m.keys[j] })
	return m, nil
}

// Get returns the raw JSON value stored under key, if present.
func (m Metadata) Get(key Name) (json.RawMessage, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Len reports the number of entries.
func (m Metadata) Len() int { return len(m.keys) }

// Keys returns the sorted key list. The returned slice must not be mutated.
func (m Metadata) Keys() []Name { return m.keys }

// CanonicalBytes produces a deterministic byte encoding of the metadata:
// sorted keys, each as a length-prefixed name followed by a length-prefixed
// JSON value, matching the length-prefixed field convention used throughout
// this package's canonical encoding.
func (m Metadata) CanonicalBytes() []byte {
	var buf bytes.Buffer
	writeUvarint(&buf, uint64(len(m.keys)))
	for _, k := range m.keys {
		writeLenPrefixed(&buf, []byte(k))
		writeLenPrefixed(&buf, m.values[k])
	}
	return buf.Bytes()
}

// jsonLooksValid reports whether b is well-formed JSON, used to validate
// opaque payloads (permissions, custom instructions) at decode time without
// interpreting their contents.
func jsonLooksValid(b []byte) bool {
	return json.Valid(b)
}

// Equal reports whether two Metadata values contain the same keys mapped to
// byte-identical JSON values.
func (m Metadata) Equal(o Metadata) bool {
	if len(m.keys) != len(o.keys) {
		return false
	}
	for _, k := range m.keys {
		a, ok := m.values[k]
		if !ok {
			return false
		}
		b, ok := o.values[k]
		if !ok {
			return false
		}
		if !bytes.Equal(a, b) {
			return false
		}
	}
	return true
}

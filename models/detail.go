package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DetailMapping is the ordered set of label/value pairs scraped from one
// detail page. Setting an existing label replaces its value but keeps the
// label at its first-seen position. The zero value is an empty mapping.
type DetailMapping struct {
	keys   []string
	values map[string]string
}

// Set records value under label.
func (m *DetailMapping) Set(label, value string) {
	if m.values == nil {
		m.values = make(map[string]string)
	}
	if _, exists := m.values[label]; !exists {
		m.keys = append(m.keys, label)
	}
	m.values[label] = value
}

// Get returns the value for label.
func (m DetailMapping) Get(label string) (string, bool) {
	v, ok := m.values[label]
	return v, ok
}

// Len returns the number of distinct labels.
func (m DetailMapping) Len() int {
	return len(m.keys)
}

// Keys returns the labels in insertion order.
func (m DetailMapping) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// MarshalJSON encodes the mapping as a JSON object in insertion order.
func (m DetailMapping) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(&buf, k); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeString(&buf, m.values[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// writeString appends s as a JSON string literal, leaving &, < and > as is.
func writeString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Truncate(buf.Len() - 1) // Encode's trailing newline
	return nil
}

// UnmarshalJSON decodes a JSON object of string values, keeping key order.
func (m *DetailMapping) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("detail mapping: expected object, got %v", tok)
	}

	*m = DetailMapping{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("detail mapping: unexpected key token %v", keyTok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("detail mapping: value for %q: %w", key, err)
		}
		m.Set(key, value)
	}
	_, err = dec.Token()
	return err
}

// Serialize returns the compact JSON text stored in Record.DetailData.
func (m DetailMapping) Serialize() (string, error) {
	b, err := m.MarshalJSON()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

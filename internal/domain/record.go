package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Field is a single named value in a Record.
type Field struct {
	Key   string
	Value any
}

// Record is an ordered set of fields returned by a structured tool.
// Field order is preserved in both JSON and flattened text.
type Record []Field

// Get returns the value stored under key.
func (r Record) Get(key string) (any, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Flatten renders the record as newline-delimited "key: value" lines.
func (r Record) Flatten() string {
	lines := make([]string, 0, len(r))
	for _, f := range r {
		lines = append(lines, fmt.Sprintf("%s: %v", f.Key, f.Value))
	}
	return strings.Join(lines, "\n")
}

// String renders the record inline as "{key: value, ...}", which is how a
// nested record appears inside a flattened parent.
func (r Record) String() string {
	parts := make([]string, 0, len(r))
	for _, f := range r {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Key, f.Value))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// MarshalJSON encodes the record as a JSON object in field order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Output is what a tool returns: either free text or a structured record.
type Output struct {
	Text   string
	Record Record
}

// TextOutput wraps a plain string result.
func TextOutput(s string) Output { return Output{Text: s} }

// RecordOutput wraps a structured result.
func RecordOutput(r Record) Output { return Output{Record: r} }

// String returns the text form: the flattened record, or the text.
func (o Output) String() string {
	if o.Record != nil {
		return o.Record.Flatten()
	}
	return o.Text
}

// Value returns the raw output for event payloads.
func (o Output) Value() any {
	if o.Record != nil {
		return o.Record
	}
	return o.Text
}

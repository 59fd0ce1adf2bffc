package entity

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// Purpose is a workflow a field may be visible in.
type Purpose string

// Workflow purposes used in field visibility tags.
const (
	PurposeList   Purpose = "list"
	PurposeAdd    Purpose = "add"
	PurposeUpdate Purpose = "update"
)

// FieldDescriptor describes one field of a class.
type FieldDescriptor struct {
	// Key is the field name inside an Entity.
	Key string
	// Meta holds display and validation metadata ("name", "type", "default", ...).
	Meta map[string]any
	// Visible lists the workflows this field is shown in.
	Visible []Purpose
}

// VisibleIn reports whether the field is tagged with the purpose.
func (f FieldDescriptor) VisibleIn(p Purpose) bool {
	return slices.Contains(f.Visible, p)
}

// Label returns the display name, falling back to the key.
func (f FieldDescriptor) Label() string {
	if name, ok := f.Meta["name"].(string); ok && name != "" {
		return name
	}

	return f.Key
}

// Type returns the declared input type, if any.
func (f FieldDescriptor) Type() string {
	t, _ := f.Meta["type"].(string)

	return t
}

// Default returns the declared default value and whether one exists.
func (f FieldDescriptor) Default() (any, bool) {
	v, ok := f.Meta["default"]

	return v, ok
}

// errFieldListNotObject is returned when a fieldList payload is not a JSON object.
var errFieldListNotObject = errors.New("field list must be a JSON object")

// DecodeFieldList parses a fieldList payload, keeping the server's key order.
func DecodeFieldList(data []byte) ([]FieldDescriptor, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read field list: %w", err)
	}

	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errFieldListNotObject
	}

	var fields []FieldDescriptor

	for dec.More() {
		tok, err = dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read field key: %w", err)
		}

		key, _ := tok.(string)

		var raw map[string]any
		if err = dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode field %q: %w", key, err)
		}

		fields = append(fields, newFieldDescriptor(key, raw))
	}

	return fields, nil
}

// EncodeFieldList renders descriptors back to the wire shape, preserving order.
func EncodeFieldList(fields []FieldDescriptor) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, fmt.Errorf("encode field key: %w", err)
		}

		body := make(map[string]any, len(f.Meta)+1)
		for k, v := range f.Meta {
			body[k] = v
		}

		body["visible"] = f.Visible

		value, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode field %q: %w", f.Key, err)
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// newFieldDescriptor splits the "visible" tags from the rest of the metadata.
func newFieldDescriptor(key string, raw map[string]any) FieldDescriptor {
	field := FieldDescriptor{
		Key:  key,
		Meta: make(map[string]any, len(raw)),
	}

	for k, v := range raw {
		if k != "visible" {
			field.Meta[k] = v

			continue
		}

		tags, _ := v.([]any)
		for _, tag := range tags {
			if s, ok := tag.(string); ok {
				field.Visible = append(field.Visible, Purpose(s))
			}
		}
	}

	return field
}

package flowise

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Document is a raw JSON object as received from a caller: a graph with
// nodes and edges, a tool definition, or an already wrapped flow item.
// It is inspected loosely so that missing and mistyped fields can be
// reported instead of rejected.
type Document map[string]any

// ParseDocument decodes a JSON object. Numbers are kept as json.Number so
// that re-encoding a document does not alter them.
func ParseDocument(data []byte) (Document, error) {
	return DecodeDocument(bytes.NewReader(data))
}

// DecodeDocument reads a single JSON object from r.
func DecodeDocument(r io.Reader) (Document, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, raise(ErrFormat, fmt.Sprintf("malformed JSON: %v", err), nil)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, raise(ErrFormat, fmt.Sprintf("expected a JSON object, got %s", jsonKind(raw)), nil)
	}
	return Document(obj), nil
}

// Has reports whether key is present, regardless of its value.
func (d Document) Has(key string) bool {
	_, ok := d[key]
	return ok
}

// String returns the value at key when it is a string.
func (d Document) String(key string) string {
	return stringField(d, key)
}

// Clone returns a shallow copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

func (d Document) list(key string) []any {
	items, _ := d[key].([]any)
	return items
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

// truthy follows JSON "presence" semantics: null, false, "", 0, empty
// arrays and empty objects count as absent.
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case json.Number:
		f, err := val.Float64()
		return err != nil || f != 0
	case float64:
		return val != 0
	case int:
		return val != 0
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case json.Number, float64, int:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

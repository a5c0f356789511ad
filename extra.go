package flowise

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"sync"
)

// Records decoded from the remote platform carry many keys this package does
// not model (options, placeholder, rows, ...). They are kept in an Extra map
// and written back on encode so nothing is lost on the way through.

var knownKeysCache sync.Map

func knownKeys(t reflect.Type) map[string]struct{} {
	if cached, ok := knownKeysCache.Load(t); ok {
		return cached.(map[string]struct{})
	}
	keys := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			continue
		}
		if name == "" {
			name = field.Name
		}
		keys[name] = struct{}{}
	}
	knownKeysCache.Store(t, keys)
	return keys
}

// decodeWithExtra decodes data into known (a pointer to a struct without
// custom unmarshalers) and returns the keys it does not declare.
func decodeWithExtra(data []byte, known any) (map[string]any, error) {
	if err := json.Unmarshal(data, known); err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var all map[string]any
	if err := dec.Decode(&all); err != nil {
		return nil, err
	}

	keys := knownKeys(reflect.TypeOf(known).Elem())
	var extra map[string]any
	for k, v := range all {
		if _, ok := keys[k]; ok {
			continue
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[k] = v
	}
	return extra, nil
}

// encodeWithExtra encodes known and merges extra keys that do not collide
// with declared fields.
func encodeWithExtra(known any, extra map[string]any) ([]byte, error) {
	data, err := json.Marshal(known)
	if err != nil || len(extra) == 0 {
		return data, err
	}

	var out map[string]json.RawMessage
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	keys := knownKeys(reflect.TypeOf(known))
	for k, v := range extra {
		if _, ok := keys[k]; ok {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out[k] = raw
	}
	return json.Marshal(out)
}

func cloneExtra(extra map[string]any) map[string]any {
	if extra == nil {
		return nil
	}
	out := make(map[string]any, len(extra))
	for k, v := range extra {
		out[k] = v
	}
	return out
}

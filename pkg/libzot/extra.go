package libzot

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"

	"github.com/pkg/errors"
)

// jsonFields returns the JSON names declared by the struct tags of v.
func jsonFields(v any) map[string]bool {
	t := reflect.TypeOf(v)
	fields := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		fields[name] = true
	}
	return fields
}

// splitExtra returns the members of the JSON object data that are not listed in known.
func splitExtra(data []byte, known map[string]bool) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}

	for k := range all {
		if known[k] {
			delete(all, k)
		}
	}
	return all, nil
}

// mergeExtra adds extra and override members to the JSON object b.
// Members of b win over extra, override wins over everything.
func mergeExtra(b []byte, extra map[string]json.RawMessage, override map[string]any) ([]byte, error) {
	if len(extra) == 0 && len(override) == 0 {
		return b, nil
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return nil, errors.Wrap(err, "could not merge extra fields")
	}

	for k, v := range extra {
		if _, ok := all[k]; !ok {
			all[k] = v
		}
	}

	for k, v := range override {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, errors.Wrapf(err, "could not serialize %s", k)
		}
		all[k] = raw
	}

	return json.Marshal(all)
}

// truthy reads the JSON booleans sent as true/false or 1/0 by the API.
func truthy(raw json.RawMessage) bool {
	v := string(bytes.TrimSpace(raw))
	return v == "true" || v == "1" || v == `"1"`
}

package libzot

import (
	"encoding/json"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type (
	// A Collection groups items of a library. Collections can be nested.
	Collection struct {
		Key     string `json:"key,omitempty"`
		Version int    `json:"version,omitempty"`
		Name    string `json:"name"`
		// ParentCollection is the key of the parent collection, empty for a top-level collection.
		ParentCollection string `json:"-"`

		// Extra holds the fields not mapped above (e.g. relations).
		Extra map[string]json.RawMessage `json:"-"`
	}

	collection Collection
)

var collectionFields = jsonFields(collection{})

// Validate checks the collection before it is sent to the server.
func (c *Collection) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.ParentCollection, validation.By(keyRule)),
	)
}

// MarshalJSON implements json.Marshaler.
func (c Collection) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(collection(c))
	if err != nil {
		return nil, err
	}

	var parent any = false
	if c.ParentCollection != "" {
		parent = c.ParentCollection
	}
	return mergeExtra(b, c.Extra, map[string]any{"parentCollection": parent})
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Collection) UnmarshalJSON(data []byte) error {
	var v collection
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	extra, err := splitExtra(data, collectionFields)
	if err != nil {
		return err
	}
	if raw, ok := extra["parentCollection"]; ok {
		// false for top-level collections
		var parent string
		if json.Unmarshal(raw, &parent) == nil {
			v.ParentCollection = parent
		}
		delete(extra, "parentCollection")
	}
	if len(extra) > 0 {
		v.Extra = extra
	}

	*c = Collection(v)
	return nil
}

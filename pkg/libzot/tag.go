package libzot

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Tag types.
const (
	TagTypeManual    = 0
	TagTypeAutomatic = 1
)

// A Tag is a label attached to items.
// Type defaults to TagTypeManual when the server omits it.
type Tag struct {
	Tag  string `json:"tag"`
	Type int    `json:"type,omitempty"`
	// NumItems is the number of items carrying the tag, only filled by library tag listings.
	NumItems int `json:"-"`
}

// Validate checks the tag before it is sent to the server.
func (t Tag) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.Tag, validation.Required),
		validation.Field(&t.Type, validation.In(TagTypeManual, TagTypeAutomatic)),
	)
}

// mergeTags returns current plus the missing names, keeping the order and the types of current.
func mergeTags(current []Tag, names []string) []Tag {
	tags := make([]Tag, 0, len(current)+len(names))
	seen := make(map[string]bool, len(current)+len(names))
	for _, t := range current {
		if seen[t.Tag] {
			continue
		}
		seen[t.Tag] = true
		tags = append(tags, t)
	}

	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		tags = append(tags, Tag{Tag: name})
	}
	return tags
}

// subtractTags returns current without the given names.
func subtractTags(current []Tag, names []string) []Tag {
	drop := make(map[string]bool, len(names))
	for _, name := range names {
		drop[name] = true
	}

	tags := make([]Tag, 0, len(current))
	for _, t := range current {
		if drop[t.Tag] {
			continue
		}
		tags = append(tags, t)
	}
	return tags
}

func sameTags(a, b []Tag) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Tag != b[i].Tag {
			return false
		}
	}
	return true
}

package model

import "strings"

// A Library represents a database record of a user or group library.
// Its ID is the library prefix (e.g. users/475425).
type Library struct {
	Base `msgpack:",inline" storm:"inline"`

	Type    string `msgpack:"type"`
	Name    string `msgpack:"name"`
	Version int    `msgpack:"version"`
}

// LibraryID returns the ID of the library of the given type and number.
func LibraryID(kind, id string) string {
	return kind + "/" + id
}

// Number returns the numeric part of the library ID.
func (m *Library) Number() string {
	_, n, _ := strings.Cut(m.ID, "/")
	return n
}

package model

// Object kinds.
const (
	KindItem       = "item"
	KindCollection = "collection"
)

// An Object represents a database record of an item or a collection.
// Data is the JSON data of the object, key and version included.
type Object struct {
	Base `msgpack:",inline" storm:"inline"`

	Library string `msgpack:"library" storm:"index"`
	Kind    string `msgpack:"kind"    storm:"index"`
	Key     string `msgpack:"key"     storm:"index"`
	Version int    `msgpack:"version"`
	Data    []byte `msgpack:"data"`
}

// ObjectID returns the record ID of an object.
func ObjectID(library, kind, key string) string {
	return library + "/" + kind + "/" + key
}

package model

// A File represents a database record of the content of an attachment.
// Its ID is the ObjectID of the attachment.
type File struct {
	Base `msgpack:",inline" storm:"inline"`

	Library     string `msgpack:"library"      storm:"index"`
	Key         string `msgpack:"key"          storm:"index"`
	MD5         string `msgpack:"md5"`
	Filename    string `msgpack:"filename"`
	ContentType string `msgpack:"content_type"`
	Size        int64  `msgpack:"size"`
	MTime       int64  `msgpack:"mtime"`
	Content     []byte `msgpack:"content"`
}

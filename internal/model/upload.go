package model

// An Upload represents a database record of a pending file upload.
// Its ID is the upload key given to the client.
type Upload struct {
	Base `msgpack:",inline" storm:"inline"`

	Library     string `msgpack:"library"      storm:"index"`
	Key         string `msgpack:"key"          storm:"index"`
	MD5         string `msgpack:"md5"`
	Filename    string `msgpack:"filename"`
	ContentType string `msgpack:"content_type"`
	Size        int64  `msgpack:"size"`
	MTime       int64  `msgpack:"mtime"`
	Prefix      string `msgpack:"prefix"`
	Suffix      string `msgpack:"suffix"`
	Content     []byte `msgpack:"content"`
	Received    bool   `msgpack:"received"`
}

package libzot

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/valyala/fastjson"
)

var parsers fastjson.ParserPool

// A binder turns the canonical fields of an API object into an entity.
type binder[T any] func(key string, version int, data []byte) (T, error)

// decodeOne maps a single API object.
func decodeOne[T any](body []byte, bind binder[T]) (T, error) {
	var zero T

	p := parsers.Get()
	defer parsers.Put(p)

	v, err := p.ParseBytes(body)
	if err != nil {
		return zero, malformed(err, "could not parse response")
	}

	key, version, data, err := canonical(v)
	if err != nil {
		return zero, err
	}
	return bind(key, version, data)
}

// decodeList maps an array of API objects.
func decodeList[T any](body []byte, bind binder[T]) ([]T, error) {
	p := parsers.Get()
	defer parsers.Put(p)

	v, err := p.ParseBytes(body)
	if err != nil {
		return nil, malformed(err, "could not parse response")
	}

	values, err := v.Array()
	if err != nil {
		return nil, malformed(err, "expected an array")
	}

	entities := make([]T, 0, len(values))
	for _, ev := range values {
		key, version, data, err := canonical(ev)
		if err != nil {
			return nil, err
		}

		e, err := bind(key, version, data)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// canonical extracts the key, the version and the data of an API object.
// The data member is authoritative, the top-level key and version are only fallbacks.
func canonical(v *fastjson.Value) (key string, version int, data []byte, err error) {
	if v.Type() != fastjson.TypeObject {
		return "", 0, nil, malformed(nil, "expected an object, got "+v.Type().String())
	}

	d := v.Get("data")
	if d == nil || d.Type() != fastjson.TypeObject {
		d = v
	}

	key = string(d.GetStringBytes("key"))
	if key == "" {
		key = string(v.GetStringBytes("key"))
	}
	if key == "" {
		return "", 0, nil, malformed(nil, "object without key")
	}

	if d.Exists("version") {
		version = d.GetInt("version")
	} else {
		version = v.GetInt("version")
	}

	return key, version, d.MarshalTo(nil), nil
}

func bindItem(key string, version int, data []byte) (*Item, error) {
	var item Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, malformed(err, "could not parse item")
	}
	item.Key = key
	item.Version = version
	return &item, nil
}

func bindCollection(key string, version int, data []byte) (*Collection, error) {
	var c Collection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, malformed(err, "could not parse collection")
	}
	c.Key = key
	c.Version = version
	return &c, nil
}

// decodeTags maps a tag listing. Tag objects have no key, their name identifies them.
func decodeTags(body []byte) ([]Tag, error) {
	p := parsers.Get()
	defer parsers.Put(p)

	v, err := p.ParseBytes(body)
	if err != nil {
		return nil, malformed(err, "could not parse response")
	}

	values, err := v.Array()
	if err != nil {
		return nil, malformed(err, "expected an array")
	}

	tags := make([]Tag, 0, len(values))
	for _, tv := range values {
		name := string(tv.GetStringBytes("tag"))
		if name == "" {
			return nil, malformed(nil, "tag without name")
		}

		tag := Tag{Tag: name, NumItems: tv.GetInt("meta", "numItems")}
		if tv.Exists("type") {
			tag.Type = tv.GetInt("type")
		} else {
			tag.Type = tv.GetInt("meta", "type")
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// written is the outcome of a single-object write.
type written struct {
	key     string
	version int
	// data is nil when the server only answered the key.
	data []byte
}

// decodeWrite maps the response of a single-object POST.
// It accepts the multi-object write format ({successful, success, unchanged, failed})
// as well as a plain object or an array of objects.
func decodeWrite(body []byte, expected int) (*written, error) {
	p := parsers.Get()
	defer parsers.Put(p)

	v, err := p.ParseBytes(body)
	if err != nil {
		return nil, malformed(err, "could not parse write response")
	}

	if v.Type() == fastjson.TypeArray {
		values := v.GetArray()
		if len(values) == 0 {
			return nil, malformed(nil, "empty write response")
		}
		v = values[0]
	}

	if v.Type() != fastjson.TypeObject {
		return nil, malformed(nil, "expected an object, got "+v.Type().String())
	}

	if !v.Exists("successful") && !v.Exists("success") && !v.Exists("unchanged") && !v.Exists("failed") {
		key, version, data, err := canonical(v)
		if err != nil {
			return nil, err
		}
		return &written{key: key, version: version, data: data}, nil
	}

	if f := v.Get("failed", "0"); f != nil {
		return nil, failedError(f.GetInt("code"), string(f.GetStringBytes("message")), expected)
	}

	if s := v.Get("successful", "0"); s != nil {
		key, version, data, err := canonical(s)
		if err != nil {
			return nil, err
		}
		return &written{key: key, version: version, data: data}, nil
	}

	for _, member := range []string{"success", "unchanged"} {
		if key := string(v.GetStringBytes(member, "0")); key != "" {
			return &written{key: key}, nil
		}
	}

	return nil, malformed(nil, "write response without result")
}

// failedError classifies an entry of the failed member of a write response.
func failedError(code int, message string, expected int) error {
	e := &Error{StatusCode: code, Message: message}
	switch code {
	case http.StatusConflict, http.StatusPreconditionFailed:
		e.Kind = KindVersionConflict
		e.ExpectedVersion = expected
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		e.Kind = KindInvalidArgument
	case http.StatusNotFound:
		e.Kind = KindNotFound
	default:
		e.Kind = KindServerError
	}
	return e
}

// An uploadAuthorization is the answer to a file upload request.
type uploadAuthorization struct {
	exists      bool
	url         string
	contentType string
	prefix      string
	suffix      string
	uploadKey   string
}

func decodeUploadAuthorization(body []byte) (*uploadAuthorization, error) {
	p := parsers.Get()
	defer parsers.Put(p)

	v, err := p.ParseBytes(body)
	if err != nil {
		return nil, malformed(err, "could not parse upload authorization")
	}
	if v.Type() != fastjson.TypeObject {
		return nil, malformed(nil, "expected an object, got "+v.Type().String())
	}

	if v.GetInt("exists") == 1 || v.GetBool("exists") {
		return &uploadAuthorization{exists: true}, nil
	}

	auth := &uploadAuthorization{
		url:         string(v.GetStringBytes("url")),
		contentType: string(v.GetStringBytes("contentType")),
		prefix:      string(v.GetStringBytes("prefix")),
		suffix:      string(v.GetStringBytes("suffix")),
		uploadKey:   string(v.GetStringBytes("uploadKey")),
	}
	if auth.url == "" || auth.uploadKey == "" {
		return nil, malformed(nil, "upload authorization without url or uploadKey")
	}
	return auth, nil
}

// mergeCSLJSON concatenates the items of several CSL-JSON pages.
func mergeCSLJSON(pages [][]byte) (string, error) {
	p := parsers.Get()
	defer parsers.Put(p)

	out := []byte(`{"items":[`)
	n := 0
	for i, page := range pages {
		v, err := p.ParseBytes(page)
		if err != nil {
			return "", malformed(err, "could not parse page "+strconv.Itoa(i))
		}

		for _, item := range v.GetArray("items") {
			if n > 0 {
				out = append(out, ',')
			}
			out = item.MarshalTo(out)
			n++
		}
	}
	out = append(out, "]}"...)

	return string(out), nil
}

package libzot

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pkg/errors"
)

// Query modes of the q filter.
const (
	QueryModeTitleCreatorYear = "titleCreatorYear"
	QueryModeEverything       = "everything"
)

// ListParams filters and paginates list operations.
type ListParams struct {
	// Limit is the maximum number of results returned by the whole listing, 0 means everything.
	Limit int
	// Start is the index of the first result.
	Start int
	// Query is a quick search.
	Query string
	// QueryMode is QueryModeTitleCreatorYear (default) or QueryModeEverything.
	QueryMode string
	// ItemType supports the boolean syntax of the API (e.g. "book || journalArticle", "-attachment").
	ItemType string
	// Tags are ANDed, each one supports the boolean syntax of the API (e.g. "foo || bar", "-foo").
	Tags []string
	// IncludeTrashed also returns the items in the trash.
	IncludeTrashed bool
	// ItemKeys restricts the results to the given keys.
	ItemKeys []string
	// Sort is the field used to sort the results (e.g. dateAdded, dateModified, title).
	Sort string
	// Direction is asc or desc.
	Direction string
	// Since returns only the objects modified after the given library version.
	Since int
}

// Validate checks the parameters before any request is sent.
func (p ListParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Limit, validation.Min(0)),
		validation.Field(&p.Start, validation.Min(0)),
		validation.Field(&p.Since, validation.Min(0)),
		validation.Field(&p.QueryMode, validation.In(QueryModeTitleCreatorYear, QueryModeEverything)),
		validation.Field(&p.Direction, validation.In("asc", "desc")),
		validation.Field(&p.ItemKeys, validation.Length(0, MaxObjectsPerWrite), validation.Each(validation.By(keyRule))),
	)
}

func (p ListParams) values() url.Values {
	v := url.Values{}
	if p.Start > 0 {
		v.Set("start", strconv.Itoa(p.Start))
	}
	if p.Query != "" {
		v.Set("q", p.Query)
		if p.QueryMode != "" {
			v.Set("qmode", p.QueryMode)
		}
	}
	if p.ItemType != "" {
		v.Set("itemType", p.ItemType)
	}
	for _, tag := range p.Tags {
		if tag != "" {
			v.Add("tag", tag)
		}
	}
	if p.IncludeTrashed {
		v.Set("includeTrashed", "1")
	}
	if len(p.ItemKeys) > 0 {
		v.Set("itemKey", strings.Join(p.ItemKeys, ","))
	}
	if p.Sort != "" {
		v.Set("sort", p.Sort)
	}
	if p.Direction != "" {
		v.Set("direction", p.Direction)
	}
	if p.Since > 0 {
		v.Set("since", strconv.Itoa(p.Since))
	}
	return v
}

// pageSize returns the limit of the first page for a listing of limit results.
func pageSize(limit int) int {
	if limit > 0 && limit < MaxPageSize {
		return limit
	}
	return MaxPageSize
}

type (
	// An operation describes a call to the API.
	operation struct {
		method   string
		resource string // items, collections, tags
		key      string
		// keyed operations target a single object and require a key.
		keyed  bool
		sub    string // children, tags, file, items, top
		params *ListParams
		query  url.Values
		header http.Header
		// payload is encoded as JSON, except url.Values that are form-encoded.
		payload any
		// expectedVersion is sent as If-Unmodified-Since-Version when positive.
		expectedVersion int
	}

	// A request is a fully described HTTP call, independent from any connection.
	request struct {
		method string
		// path is relative to the base URL, url is used instead when set.
		path   string
		url    *url.URL
		query  url.Values
		header http.Header
		body   []byte
		// open returns a fresh streamed body for each attempt, it wins over body.
		open   func() (io.ReadCloser, error)
		length int64
		// anonymous requests do not carry the API key.
		anonymous       bool
		expectedVersion int
	}

	library struct {
		kind string
		id   string
	}
)

// prefix returns the path of the library (e.g. /users/475425).
func (l library) prefix() string {
	return "/" + l.kind + "/" + url.PathEscape(l.id)
}

// build turns an operation into a request. It never performs I/O.
func (l library) build(op operation) (*request, error) {
	if l.kind != LibraryTypeUser && l.kind != LibraryTypeGroup {
		return nil, invalidArgument("unknown library type %q", l.kind)
	}
	if l.id == "" {
		return nil, invalidArgument("missing library id")
	}
	if op.resource == "" {
		return nil, invalidArgument("missing resource")
	}

	r := &request{
		method:          op.method,
		query:           url.Values{},
		header:          http.Header{},
		expectedVersion: op.expectedVersion,
	}

	//
	// Path
	segments := []string{l.prefix(), op.resource}
	if op.keyed {
		if err := validateKey(op.key); err != nil {
			return nil, err
		}
		segments = append(segments, op.key)
	}
	if op.sub != "" {
		segments = append(segments, op.sub)
	}
	r.path = strings.Join(segments, "/")

	//
	// Query
	if op.params != nil {
		if err := op.params.Validate(); err != nil {
			return nil, validationError(err)
		}
		r.query = op.params.values()
		r.query.Set("limit", strconv.Itoa(pageSize(op.params.Limit)))
	}
	for k, vs := range op.query {
		for _, v := range vs {
			r.query.Add(k, v)
		}
	}

	//
	// Headers
	for k, vs := range op.header {
		for _, v := range vs {
			r.header.Add(k, v)
		}
	}
	if op.expectedVersion < 0 {
		return nil, invalidArgument("negative expected version %d", op.expectedVersion)
	}
	if op.method == http.MethodDelete && op.expectedVersion == 0 {
		return nil, invalidArgument("delete requires the expected version")
	}
	if op.expectedVersion > 0 {
		r.header.Set(HeaderIfUnmodifiedSinceVersion, strconv.Itoa(op.expectedVersion))
	}

	//
	// Body
	switch payload := op.payload.(type) {
	case nil:
	case url.Values:
		r.body = []byte(payload.Encode())
		r.header.Set("Content-Type", "application/x-www-form-urlencoded")
	default:
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, invalidArgument("could not serialize payload: %s", err)
		}
		r.body = body
		r.header.Set("Content-Type", "application/json")
	}

	return r, nil
}

// httpRequest materializes the request for one attempt.
func (r *request) httpRequest(ctx context.Context, base *url.URL) (*http.Request, error) {
	u := r.url
	if u == nil {
		u = base.JoinPath(r.path)
		u.RawQuery = r.query.Encode()
	}

	var body io.Reader
	switch {
	case r.open != nil:
		rc, err := r.open()
		if err != nil {
			return nil, errors.Wrap(err, "could not open request body")
		}
		body = rc
	case r.body != nil:
		body = bytes.NewReader(r.body)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return nil, errors.Wrap(err, "could not build request")
	}
	if r.open != nil {
		req.ContentLength = r.length
	}
	for k, vs := range r.header {
		req.Header[k] = append([]string(nil), vs...)
	}
	return req, nil
}

// target returns a loggable description of the request.
func (r *request) target() string {
	if r.url != nil {
		return r.method + " " + r.url.Path
	}
	return r.method + " " + r.path
}

func validateKey(key string) error {
	if key == "" {
		return invalidArgument("missing key")
	}
	if err := keyRule(key); err != nil {
		return invalidArgument("key %q %s", key, err)
	}
	return nil
}

// keyRule rejects keys that would change the request path or an itemKey list.
// Keys are opaque, the server reports unknown ones.
func keyRule(v any) error {
	key, _ := v.(string)
	if strings.ContainsAny(key, "/?#, \t\n") {
		return errors.New("must not contain separators")
	}
	return nil
}

func validationError(err error) error {
	return &Error{Kind: KindInvalidArgument, Message: err.Error()}
}

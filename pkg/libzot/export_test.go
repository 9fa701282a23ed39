package libzot

import (
	"net/http"
	"net/url"
)

// This file is only for test purpose and is only loaded by test framework.

// ParseError classifies a non-successful response for test purpose.
func ParseError(res *http.Response, body []byte, expected int) *Error {
	return parseError(res, body, expected)
}

// ParseRetryAfter exposes the Retry-After parser for test purpose.
var ParseRetryAfter = parseRetryAfter

// NextLink exposes the Link header parser for test purpose.
var NextLink = nextLink

// RenderBibliography exposes the bibliography conversion for test purpose.
var RenderBibliography = renderBibliography

// MergeCSLJSON exposes the CSL-JSON page merge for test purpose.
var MergeCSLJSON = mergeCSLJSON

// A BuiltRequest is the observable part of a request for test purpose.
type BuiltRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// An Operation describes an API call for test purpose.
type Operation struct {
	Method          string
	Resource        string
	Key             string
	Keyed           bool
	Sub             string
	Params          *ListParams
	Payload         any
	ExpectedVersion int
}

// BuildRequest builds the request of an operation on the given library for test purpose.
func BuildRequest(kind, id string, op Operation) (*BuiltRequest, error) {
	r, err := library{kind: kind, id: id}.build(operation{
		method:          op.Method,
		resource:        op.Resource,
		key:             op.Key,
		keyed:           op.Keyed,
		sub:             op.Sub,
		params:          op.Params,
		payload:         op.Payload,
		expectedVersion: op.ExpectedVersion,
	})
	if err != nil {
		return nil, err
	}

	return &BuiltRequest{
		Method: r.method,
		Path:   r.path,
		Query:  r.query,
		Header: r.header,
		Body:   r.body,
	}, nil
}

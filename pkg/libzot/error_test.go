package libzot_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/mdouchement/zotero/pkg/libzot"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestParseError(t *testing.T) {
	data := []struct {
		status int
		header http.Header
		kind   libzot.Kind
	}{
		{status: http.StatusBadRequest, kind: libzot.KindInvalidArgument},
		{status: http.StatusRequestEntityTooLarge, kind: libzot.KindInvalidArgument},
		{status: http.StatusPreconditionRequired, kind: libzot.KindInvalidArgument},
		{status: http.StatusUnauthorized, kind: libzot.KindAuthentication},
		{status: http.StatusForbidden, kind: libzot.KindAuthentication},
		{status: http.StatusNotFound, kind: libzot.KindNotFound},
		{status: http.StatusGone, kind: libzot.KindNotFound},
		{status: http.StatusConflict, kind: libzot.KindVersionConflict},
		{status: http.StatusPreconditionFailed, kind: libzot.KindVersionConflict},
		{status: http.StatusTooManyRequests, kind: libzot.KindRateLimited},
		{status: http.StatusInternalServerError, kind: libzot.KindServerError},
		{status: http.StatusServiceUnavailable, kind: libzot.KindServerError},
		{status: http.StatusNotModified, kind: libzot.KindUnknown},
		{status: http.StatusTeapot, kind: libzot.KindUnknown},
	}

	for _, d := range data {
		res := &http.Response{StatusCode: d.status, Header: http.Header{}}
		err := libzot.ParseError(res, []byte(" message \n"), 0)

		assert.Equal(t, d.kind, err.Kind, d.status)
		assert.Equal(t, d.status, err.StatusCode)
		assert.Equal(t, "message", err.Message)
	}
}

func TestParseError_VersionConflict(t *testing.T) {
	res := &http.Response{
		StatusCode: http.StatusPreconditionFailed,
		Header:     http.Header{"Last-Modified-Version": {"12"}},
	}

	err := libzot.ParseError(res, []byte("Item has been modified since specified version"), 10)
	assert.Equal(t, libzot.KindVersionConflict, err.Kind)
	assert.Equal(t, 10, err.ExpectedVersion)
	assert.Equal(t, 12, err.ActualVersion)
	assert.Equal(t, "version conflict (412): expected version 10, remote version 12: Item has been modified since specified version", err.Error())
}

func TestParseError_RateLimited(t *testing.T) {
	res := &http.Response{
		StatusCode: http.StatusTooManyRequests,
		Header:     http.Header{"Retry-After": {"7"}},
	}

	err := libzot.ParseError(res, nil, 0)
	assert.Equal(t, libzot.KindRateLimited, err.Kind)
	assert.Equal(t, 7*time.Second, err.RetryAfter)
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Duration(0), libzot.ParseRetryAfter("", now))
	assert.Equal(t, time.Duration(0), libzot.ParseRetryAfter("-3", now))
	assert.Equal(t, time.Duration(0), libzot.ParseRetryAfter("soon", now))
	assert.Equal(t, 30*time.Second, libzot.ParseRetryAfter(" 30 ", now))
	assert.Equal(t, 90*time.Second, libzot.ParseRetryAfter("Fri, 01 Mar 2024 12:01:30 GMT", now))
	assert.Equal(t, time.Duration(0), libzot.ParseRetryAfter("Fri, 01 Mar 2024 11:00:00 GMT", now))
}

func TestKindOf(t *testing.T) {
	err := &libzot.Error{Kind: libzot.KindNotFound, StatusCode: http.StatusNotFound}
	wrapped := errors.Wrap(err, "could not get item")

	assert.Equal(t, libzot.KindNotFound, libzot.KindOf(err))
	assert.Equal(t, libzot.KindNotFound, libzot.KindOf(wrapped))
	assert.True(t, libzot.IsKind(wrapped, libzot.KindNotFound))
	assert.False(t, libzot.IsKind(wrapped, libzot.KindServerError))
	assert.Same(t, err, libzot.AsError(wrapped))

	assert.Equal(t, libzot.KindUnknown, libzot.KindOf(nil))
	assert.Equal(t, libzot.KindUnknown, libzot.KindOf(errors.New("plain")))
	assert.Nil(t, libzot.AsError(errors.New("plain")))
	assert.False(t, libzot.IsKind(nil, libzot.KindUnknown))
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "not found", libzot.KindNotFound.String())
	assert.Equal(t, "configuration error", libzot.KindConfiguration.String())
	assert.Equal(t, "unknown error", libzot.Kind(42).String())
}

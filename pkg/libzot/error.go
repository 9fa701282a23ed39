package libzot

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// A Kind classifies the errors returned by the Client.
type Kind int

// Error kinds.
const (
	KindUnknown Kind = iota
	KindInvalidArgument
	KindAuthentication
	KindNotFound
	KindVersionConflict
	KindRateLimited
	KindServerError
	KindMalformedResponse
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid argument"
	case KindAuthentication:
		return "authentication error"
	case KindNotFound:
		return "not found"
	case KindVersionConflict:
		return "version conflict"
	case KindRateLimited:
		return "rate limited"
	case KindServerError:
		return "server error"
	case KindMalformedResponse:
		return "malformed response"
	case KindConfiguration:
		return "configuration error"
	default:
		return "unknown error"
	}
}

// An Error is returned by the Client for every failure it can classify.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	// ExpectedVersion is the version sent in If-Unmodified-Since-Version (VersionConflict only).
	ExpectedVersion int
	// ActualVersion is the Last-Modified-Version answered by the server, 0 when unknown (VersionConflict only).
	ActualVersion int
	// RetryAfter is the delay hinted by the server (RateLimited only).
	RetryAfter time.Duration

	err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " (%d)", e.StatusCode)
	}
	if e.Kind == KindVersionConflict && e.ExpectedVersion > 0 {
		fmt.Fprintf(&b, ": expected version %d", e.ExpectedVersion)
		if e.ActualVersion > 0 {
			fmt.Fprintf(&b, ", remote version %d", e.ActualVersion)
		}
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.err != nil {
		b.WriteString(": ")
		b.WriteString(e.err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	return e.err
}

// KindOf returns the Kind of err, looking through errors.Wrap layers.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if e, ok := errors.Cause(err).(*Error); ok {
		return e.Kind
	}
	return KindUnknown
}

// IsKind returns true if err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// AsError returns the *Error carried by err, or nil.
func AsError(err error) *Error {
	if e, ok := errors.Cause(err).(*Error); ok {
		return e
	}
	return nil
}

func invalidArgument(format string, args ...any) error {
	return &Error{Kind: KindInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

func malformed(err error, message string) error {
	return &Error{Kind: KindMalformedResponse, Message: message, err: err}
}

// parseError classifies a non-successful HTTP response.
// expected is the version sent with the request, 0 if none.
func parseError(res *http.Response, body []byte, expected int) *Error {
	e := &Error{
		StatusCode: res.StatusCode,
		Message:    errorMessage(body),
	}

	switch code := res.StatusCode; {
	case code == http.StatusBadRequest, code == http.StatusRequestEntityTooLarge, code == http.StatusPreconditionRequired:
		e.Kind = KindInvalidArgument
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		e.Kind = KindAuthentication
	case code == http.StatusNotFound, code == http.StatusGone:
		e.Kind = KindNotFound
	case code == http.StatusConflict, code == http.StatusPreconditionFailed:
		e.Kind = KindVersionConflict
		e.ExpectedVersion = expected
		e.ActualVersion = headerInt(res.Header, HeaderLastModifiedVersion)
	case code == http.StatusTooManyRequests:
		e.Kind = KindRateLimited
		e.RetryAfter = parseRetryAfter(res.Header.Get(HeaderRetryAfter), time.Now())
	case code >= 500:
		e.Kind = KindServerError
		e.RetryAfter = parseRetryAfter(res.Header.Get(HeaderRetryAfter), time.Now())
	default:
		e.Kind = KindUnknown
	}

	return e
}

func errorMessage(body []byte) string {
	const max = 512

	msg := strings.TrimSpace(string(body))
	if len(msg) > max {
		msg = msg[:max] + "..."
	}
	return msg
}

// parseRetryAfter reads a Retry-After value expressed in seconds or as an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}

	if s, err := strconv.Atoi(v); err == nil {
		if s < 0 {
			return 0
		}
		return time.Duration(s) * time.Second
	}

	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func headerInt(h http.Header, key string) int {
	v, err := strconv.Atoi(strings.TrimSpace(h.Get(key)))
	if err != nil {
		return 0
	}
	return v
}

package libzot

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// A response is a successful answer of the API.
type response struct {
	header http.Header
	body   []byte
	// version is the Last-Modified-Version header, 0 when absent.
	version int
}

// RetryPolicy controls how RateLimited and ServerError failures are retried.
type RetryPolicy struct {
	// Attempts is the total number of attempts, including the first one.
	Attempts int
	// InitialInterval is the first wait of the exponential backoff.
	InitialInterval time.Duration
	// MaxInterval caps the waits of the exponential backoff.
	MaxInterval time.Duration
	// MaxRetryAfter caps the wait requested by a Retry-After header.
	MaxRetryAfter time.Duration
}

// DefaultRetryPolicy is used by clients created without WithRetryPolicy.
var DefaultRetryPolicy = RetryPolicy{
	Attempts:        3,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     10 * time.Second,
	MaxRetryAfter:   time.Minute,
}

// hintedBackOff waits at least the delay requested by the server.
type hintedBackOff struct {
	backoff.BackOff
	hint time.Duration
	max  time.Duration
}

func (b *hintedBackOff) suggest(d time.Duration) {
	if d > b.max {
		d = b.max
	}
	b.hint = d
}

func (b *hintedBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}

	if b.hint > next {
		next = b.hint
	}
	b.hint = 0
	return next
}

func (b *hintedBackOff) Reset() {
	b.hint = 0
	b.BackOff.Reset()
}

func (c *client) backoff(ctx context.Context) (backoff.BackOff, *hintedBackOff) {
	expo := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(c.retry.InitialInterval),
		backoff.WithMaxInterval(c.retry.MaxInterval),
	)
	hinted := &hintedBackOff{BackOff: expo, max: c.retry.MaxRetryAfter}

	retries := c.retry.Attempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(hinted, uint64(retries)), ctx), hinted
}

// execute performs the request and buffers the response body.
func (c *client) execute(ctx context.Context, r *request) (*response, error) {
	var res *response
	err := c.perform(ctx, r, func(hr *http.Response) error {
		body, err := io.ReadAll(hr.Body)
		if err != nil {
			return &Error{Kind: KindServerError, StatusCode: hr.StatusCode, Message: "could not read response", err: err}
		}

		res = &response{
			header:  hr.Header,
			body:    body,
			version: headerInt(hr.Header, HeaderLastModifiedVersion),
		}
		return nil
	})
	return res, err
}

// stream performs the request and hands the response body to sink.
// A failing sink is never retried.
func (c *client) stream(ctx context.Context, r *request, sink func(*http.Response) error) error {
	return c.perform(ctx, r, func(hr *http.Response) error {
		return backoff.Permanent(sink(hr))
	})
}

// perform runs the attempts of the request according to the retry policy.
func (c *client) perform(ctx context.Context, r *request, handle func(*http.Response) error) error {
	bo, hinted := c.backoff(ctx)

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++

		hr, err := c.do(ctx, r)
		if err != nil {
			if e := AsError(err); e != nil && (e.Kind == KindRateLimited || e.Kind == KindServerError) {
				hinted.suggest(e.RetryAfter)
				return err
			}
			return backoff.Permanent(err)
		}
		defer hr.Body.Close()

		return handle(hr)
	}, bo, func(err error, wait time.Duration) {
		c.logger.WithFields(logrus.Fields{
			"request": r.target(),
			"attempt": attempt,
			"wait":    wait,
		}).Warnf("retrying: %s", err)
	})

	if err != nil && ctx.Err() != nil && AsError(err) == nil {
		return &Error{Kind: KindServerError, Message: "request aborted", err: ctx.Err()}
	}
	return err
}

// do performs a single attempt. Non-successful statuses are returned as *Error.
func (c *client) do(ctx context.Context, r *request) (*http.Response, error) {
	//
	// Build request
	req, err := r.httpRequest(ctx, c.base)
	if err != nil {
		return nil, err
	}
	if !r.anonymous {
		req.Header.Set(HeaderAPIKey, c.apiKey)
		req.Header.Set(HeaderAPIVersion, APIVersion)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	c.logger.WithField("request", r.target()).Debug("zotero request")

	//
	// Perform request
	res, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindServerError, Message: "could not perform request", err: err}
	}

	if res.StatusCode/100 == 2 {
		return res, nil
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return nil, parseError(res, body, r.expectedVersion)
}

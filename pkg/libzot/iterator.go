package libzot

import (
	"context"
	"net/http"
	"strconv"
	"strings"
)

// An Iterator walks a listing lazily, one page request at a time.
//
//	it := client.Items(libzot.ListParams{Limit: 50})
//	for it.Next(ctx) {
//		fmt.Println(it.Value().Title)
//	}
//	if err := it.Err(); err != nil {
//		log.Fatal(err)
//	}
type Iterator[T any] struct {
	c      *client
	decode func([]byte) ([]T, error)
	keyOf  func(T) string

	next    *request
	limit   int
	count   int
	page    []T
	current T
	seen    map[string]bool

	total   int
	version int
	err     error
}

func newIterator[T any](c *client, r *request, err error, limit int, decode func([]byte) ([]T, error), keyOf func(T) string) *Iterator[T] {
	return &Iterator[T]{
		c:      c,
		decode: decode,
		keyOf:  keyOf,
		next:   r,
		limit:  limit,
		seen:   map[string]bool{},
		err:    err,
	}
}

// Next advances to the next value, fetching the next page when needed.
// It returns false at the end of the listing, when the limit is reached or on error.
func (it *Iterator[T]) Next(ctx context.Context) bool {
	for {
		if it.err != nil {
			return false
		}
		if it.limit > 0 && it.count >= it.limit {
			return false
		}

		if len(it.page) > 0 {
			v := it.page[0]
			it.page = it.page[1:]

			if key := it.keyOf(v); key != "" {
				if it.seen[key] {
					continue
				}
				it.seen[key] = true
			}

			it.current = v
			it.count++
			return true
		}

		if it.next == nil {
			return false
		}
		it.fetch(ctx)
	}
}

// Value returns the current value.
func (it *Iterator[T]) Value() T {
	return it.current
}

// Err returns the error that stopped the iteration, if any.
func (it *Iterator[T]) Err() error {
	return it.err
}

// Total returns the Total-Results header of the last fetched page.
func (it *Iterator[T]) Total() int {
	return it.total
}

// LastModifiedVersion returns the library version reported by the last fetched page.
func (it *Iterator[T]) LastModifiedVersion() int {
	return it.version
}

// All drains the iterator.
func (it *Iterator[T]) All(ctx context.Context) ([]T, error) {
	values := []T{}
	for it.Next(ctx) {
		values = append(values, it.Value())
	}
	return values, it.Err()
}

func (it *Iterator[T]) fetch(ctx context.Context) {
	r := it.next
	it.next = nil

	res, err := it.c.execute(ctx, r)
	if err != nil {
		it.err = err
		return
	}

	page, err := it.decode(res.body)
	if err != nil {
		it.err = err
		return
	}
	it.total = headerInt(res.header, HeaderTotalResults)
	it.version = res.version
	if len(page) == 0 {
		return
	}
	it.page = page

	link := nextLink(res.header)
	if link == "" {
		return
	}

	remaining := 0
	if it.limit > 0 {
		remaining = it.limit - it.count - it.fresh(page)
		if remaining <= 0 {
			return
		}
	}

	it.next, it.err = it.c.follow(link, remaining)
}

// fresh returns the number of values of page that Next will not skip as duplicates.
func (it *Iterator[T]) fresh(page []T) int {
	n := 0
	pending := map[string]bool{}
	for _, v := range page {
		key := it.keyOf(v)
		if key != "" {
			if it.seen[key] || pending[key] {
				continue
			}
			pending[key] = true
		}
		n++
	}
	return n
}

// follow builds the request of a pagination link, asking for at most limit results when positive.
func (c *client) follow(link string, limit int) (*request, error) {
	u, err := c.base.Parse(link)
	if err != nil {
		return nil, malformed(err, "invalid pagination link")
	}
	if u.Scheme != c.base.Scheme || u.Host != c.base.Host {
		return nil, malformed(nil, "pagination link outside of the API endpoint")
	}

	if limit > 0 {
		query := u.Query()
		query.Set("limit", strconv.Itoa(pageSize(limit)))
		u.RawQuery = query.Encode()
	}

	return &request{method: http.MethodGet, url: u, header: http.Header{}}, nil
}

// nextLink returns the target of the rel="next" entry of the Link headers.
func nextLink(h http.Header) string {
	for _, value := range h.Values("Link") {
		rest := value
		for {
			start := strings.IndexByte(rest, '<')
			if start < 0 {
				break
			}
			end := strings.IndexByte(rest[start:], '>')
			if end < 0 {
				break
			}

			target := rest[start+1 : start+end]
			rest = rest[start+end+1:]

			params := rest
			if i := strings.IndexByte(rest, '<'); i >= 0 {
				params = rest[:i]
			}
			if isRel(params, "next") {
				return target
			}
		}
	}
	return ""
}

func isRel(params, rel string) bool {
	for _, param := range strings.Split(params, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(k), "rel") {
			continue
		}
		for _, r := range strings.Fields(strings.Trim(strings.TrimSpace(v), `"`)) {
			if strings.EqualFold(r, rel) {
				return true
			}
		}
	}
	return false
}

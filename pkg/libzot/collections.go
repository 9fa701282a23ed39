package libzot

import (
	"context"
	"net/http"
)

func (c *client) Collections(params ListParams) *Iterator[*Collection] {
	return c.collections(operation{method: http.MethodGet, resource: "collections", params: &params})
}

func (c *client) TopCollections(params ListParams) *Iterator[*Collection] {
	return c.collections(operation{method: http.MethodGet, resource: "collections", sub: "top", params: &params})
}

func (c *client) Subcollections(key string, params ListParams) *Iterator[*Collection] {
	return c.collections(operation{method: http.MethodGet, resource: "collections", key: key, keyed: true, sub: "collections", params: &params})
}

func (c *client) CollectionItems(key string, params ListParams) *Iterator[*Item] {
	return c.items(operation{method: http.MethodGet, resource: "collections", key: key, keyed: true, sub: "items", params: &params})
}

func (c *client) Collection(ctx context.Context, key string) (*Collection, error) {
	r, err := c.library.build(operation{method: http.MethodGet, resource: "collections", key: key, keyed: true})
	if err != nil {
		return nil, err
	}

	res, err := c.execute(ctx, r)
	if err != nil {
		return nil, err
	}
	return decodeOne(res.body, bindCollection)
}

func (c *client) CreateCollection(ctx context.Context, collection *Collection) (*Collection, error) {
	if collection == nil {
		return nil, invalidArgument("missing collection")
	}
	if err := collection.Validate(); err != nil {
		return nil, validationError(err)
	}

	payload := *collection
	payload.Key = ""
	payload.Version = 0

	r, err := c.library.build(operation{
		method:   http.MethodPost,
		resource: "collections",
		header:   writeHeader(),
		payload:  []Collection{payload},
	})
	if err != nil {
		return nil, err
	}

	res, err := c.execute(ctx, r)
	if err != nil {
		return nil, err
	}

	w, err := decodeWrite(res.body, 0)
	if err != nil {
		return nil, err
	}
	if w.data == nil {
		return c.Collection(ctx, w.key)
	}
	return bindCollection(w.key, w.version, w.data)
}

func (c *client) UpdateCollection(ctx context.Context, key string, collection *Collection, expectedVersion int) (*Collection, error) {
	if collection == nil {
		return nil, invalidArgument("missing collection")
	}
	if err := collection.Validate(); err != nil {
		return nil, validationError(err)
	}

	payload := *collection
	payload.Key = key
	payload.Version = 0

	r, err := c.library.build(operation{
		method:          http.MethodPut,
		resource:        "collections",
		key:             key,
		keyed:           true,
		payload:         payload,
		expectedVersion: expectedVersion,
	})
	if err != nil {
		return nil, err
	}

	res, err := c.execute(ctx, r)
	if err != nil {
		return nil, err
	}

	if len(res.body) > 0 {
		return decodeOne(res.body, bindCollection)
	}
	if res.version == 0 {
		return c.Collection(ctx, key)
	}

	payload.Version = res.version
	return &payload, nil
}

func (c *client) DeleteCollection(ctx context.Context, key string, expectedVersion int) error {
	r, err := c.library.build(operation{
		method:          http.MethodDelete,
		resource:        "collections",
		key:             key,
		keyed:           true,
		expectedVersion: expectedVersion,
	})
	if err != nil {
		return err
	}

	_, err = c.execute(ctx, r)
	return err
}

func (c *client) collections(op operation) *Iterator[*Collection] {
	r, err := c.library.build(op)
	return newIterator(c, r, err, op.params.Limit, decodeCollections, func(c *Collection) string { return c.Key })
}

func decodeCollections(body []byte) ([]*Collection, error) {
	return decodeList(body, bindCollection)
}

package libzot

import (
	"context"
	"encoding/hex"
	"net/http"

	"github.com/gofrs/uuid"
)

func (c *client) Items(params ListParams) *Iterator[*Item] {
	return c.items(operation{method: http.MethodGet, resource: "items", params: &params})
}

func (c *client) TopItems(params ListParams) *Iterator[*Item] {
	return c.items(operation{method: http.MethodGet, resource: "items", sub: "top", params: &params})
}

func (c *client) Children(key string, params ListParams) *Iterator[*Item] {
	return c.items(operation{method: http.MethodGet, resource: "items", key: key, keyed: true, sub: "children", params: &params})
}

func (c *client) Item(ctx context.Context, key string) (*Item, error) {
	r, err := c.library.build(operation{method: http.MethodGet, resource: "items", key: key, keyed: true})
	if err != nil {
		return nil, err
	}

	res, err := c.execute(ctx, r)
	if err != nil {
		return nil, err
	}
	return decodeOne(res.body, bindItem)
}

func (c *client) CreateItem(ctx context.Context, item *Item) (*Item, error) {
	if item == nil {
		return nil, invalidArgument("missing item")
	}
	if err := item.Validate(); err != nil {
		return nil, validationError(err)
	}

	payload := *item
	payload.Key = ""
	payload.Version = 0

	r, err := c.library.build(operation{
		method:   http.MethodPost,
		resource: "items",
		header:   writeHeader(),
		payload:  []Item{payload},
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
		return c.Item(ctx, w.key)
	}
	return bindItem(w.key, w.version, w.data)
}

func (c *client) UpdateItem(ctx context.Context, key string, item *Item, expectedVersion int) (*Item, error) {
	if item == nil {
		return nil, invalidArgument("missing item")
	}
	if err := item.Validate(); err != nil {
		return nil, validationError(err)
	}

	payload := *item
	payload.Key = key
	payload.Version = 0

	r, err := c.library.build(operation{
		method:          http.MethodPut,
		resource:        "items",
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
		return decodeOne(res.body, bindItem)
	}
	if res.version == 0 {
		return c.Item(ctx, key)
	}

	// 204 No Content: the new version is the one of the library after the write.
	payload.Version = res.version
	return &payload, nil
}

func (c *client) PatchItem(ctx context.Context, key string, fields map[string]any, expectedVersion int) (int, error) {
	if len(fields) == 0 {
		return 0, invalidArgument("nothing to update")
	}

	r, err := c.library.build(operation{
		method:          http.MethodPatch,
		resource:        "items",
		key:             key,
		keyed:           true,
		payload:         fields,
		expectedVersion: expectedVersion,
	})
	if err != nil {
		return 0, err
	}

	res, err := c.execute(ctx, r)
	if err != nil {
		return 0, err
	}
	return res.version, nil
}

func (c *client) DeleteItem(ctx context.Context, key string, expectedVersion int) error {
	r, err := c.library.build(operation{
		method:          http.MethodDelete,
		resource:        "items",
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

func (c *client) TrashItem(ctx context.Context, key string, expectedVersion int) (int, error) {
	return c.PatchItem(ctx, key, map[string]any{"deleted": 1}, expectedVersion)
}

func (c *client) items(op operation) *Iterator[*Item] {
	r, err := c.library.build(op)
	return newIterator(c, r, err, op.params.Limit, decodeItems, func(i *Item) string { return i.Key })
}

func decodeItems(body []byte) ([]*Item, error) {
	return decodeList(body, bindItem)
}

// writeHeader returns the headers of a POST write.
// The write token lets the server discard a replayed request.
func writeHeader() http.Header {
	h := http.Header{}
	if id, err := uuid.NewV4(); err == nil {
		h.Set(HeaderWriteToken, hex.EncodeToString(id.Bytes()))
	}
	return h
}

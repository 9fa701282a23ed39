package libzot

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

func (c *client) Tags(params ListParams) *Iterator[Tag] {
	return c.tags(operation{method: http.MethodGet, resource: "tags", params: &params})
}

func (c *client) ItemTags(ctx context.Context, key string) ([]Tag, error) {
	it := c.tags(operation{method: http.MethodGet, resource: "items", key: key, keyed: true, sub: "tags", params: &ListParams{}})
	return it.All(ctx)
}

func (c *client) AddTags(ctx context.Context, key string, tags []string, expectedVersion int) (int, error) {
	item, err := c.tagged(ctx, key, tags, expectedVersion)
	if err != nil {
		return 0, err
	}

	err = c.UpdateTags(ctx, item, tags, nil)
	return item.Version, err
}

func (c *client) RemoveTags(ctx context.Context, key string, tags []string, expectedVersion int) (int, error) {
	item, err := c.tagged(ctx, key, tags, expectedVersion)
	if err != nil {
		return 0, err
	}

	err = c.UpdateTags(ctx, item, nil, tags)
	return item.Version, err
}

func (c *client) UpdateTags(ctx context.Context, item *Item, add, remove []string) error {
	if item == nil {
		return invalidArgument("missing item")
	}
	if err := validateKey(item.Key); err != nil {
		return err
	}
	if err := validateTagNames(add); err != nil {
		return err
	}
	if err := validateTagNames(remove); err != nil {
		return err
	}

	tags := subtractTags(mergeTags(item.Tags, add), remove)
	if sameTags(tags, item.Tags) {
		return nil
	}

	version, err := c.PatchItem(ctx, item.Key, map[string]any{"tags": tags}, item.Version)
	if err != nil {
		return err
	}

	item.Tags = tags
	if version > 0 {
		item.Version = version
	}
	return nil
}

func (c *client) DeleteTags(ctx context.Context, tags []string, expectedLibraryVersion int) (int, error) {
	if len(tags) == 0 {
		return 0, invalidArgument("no tag to delete")
	}
	if len(tags) > MaxObjectsPerWrite {
		return 0, invalidArgument("cannot delete more than %d tags at once", MaxObjectsPerWrite)
	}
	if err := validateTagNames(tags); err != nil {
		return 0, err
	}

	r, err := c.library.build(operation{
		method:          http.MethodDelete,
		resource:        "tags",
		query:           url.Values{"tag": {strings.Join(tags, " || ")}},
		expectedVersion: expectedLibraryVersion,
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

// tagged fetches the item whose tags are about to be edited.
// A positive expectedVersion must match the fetched version.
func (c *client) tagged(ctx context.Context, key string, tags []string, expectedVersion int) (*Item, error) {
	if len(tags) == 0 {
		return nil, invalidArgument("no tag given")
	}
	if err := validateTagNames(tags); err != nil {
		return nil, err
	}

	item, err := c.Item(ctx, key)
	if err != nil {
		return nil, err
	}

	if expectedVersion > 0 && item.Version != expectedVersion {
		return nil, &Error{
			Kind:            KindVersionConflict,
			Message:         "item has been modified since the expected version",
			ExpectedVersion: expectedVersion,
			ActualVersion:   item.Version,
		}
	}
	return item, nil
}

func (c *client) tags(op operation) *Iterator[Tag] {
	r, err := c.library.build(op)
	return newIterator(c, r, err, op.params.Limit, decodeTags, tagKey)
}

// tagKey identifies a tag entry of a listing, the same name can be both manual and automatic.
func tagKey(t Tag) string {
	return t.Tag + "\x00" + strconv.Itoa(t.Type)
}

func validateTagNames(names []string) error {
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			return invalidArgument("empty tag name")
		}
	}
	return nil
}

package client

import (
	"context"
	"encoding/json"
	"io"

	"github.com/mdouchement/zotero/pkg/libzot"
	"github.com/pkg/errors"
)

// ListOptions configures the listing commands.
type ListOptions struct {
	libzot.ListParams
	// Top lists only the top-level objects.
	Top bool
	// JSON prints the objects as JSON instead of a table.
	JSON bool
}

// Items prints the items of the library.
func (a *App) Items(ctx context.Context, opts ListOptions) error {
	it := a.Client.Items(opts.ListParams)
	if opts.Top {
		it = a.Client.TopItems(opts.ListParams)
	}
	return a.listItems(ctx, it, opts.JSON)
}

func (a *App) listItems(ctx context.Context, it *libzot.Iterator[*libzot.Item], asJSON bool) error {
	items, err := it.All(ctx)
	if err != nil {
		return errors.Wrap(err, "could not list items")
	}
	a.debug(items)
	a.Logger.WithField("total", it.Total()).Debugf("listed %d items", len(items))

	if asJSON {
		return a.printJSON(items)
	}
	return a.printItems(items)
}

// Item prints an item.
func (a *App) Item(ctx context.Context, key string, asJSON bool) error {
	item, err := a.Client.Item(ctx, key)
	if err != nil {
		return errors.Wrapf(err, "could not get item %s", key)
	}
	a.debug(item)

	if asJSON {
		return a.printJSON(item)
	}
	return a.printItems([]*libzot.Item{item})
}

// CreateItem creates the item read as JSON from r.
func (a *App) CreateItem(ctx context.Context, r io.Reader) error {
	var item libzot.Item
	if err := decode(r, &item); err != nil {
		return err
	}

	created, err := a.Client.CreateItem(ctx, &item)
	if err != nil {
		return errors.Wrap(err, "could not create item")
	}

	a.printf("Created item %s (version %d)\n", created.Key, created.Version)
	return nil
}

// UpdateItem replaces the item with the one read as JSON from r.
// The current version of the item is used when version is 0.
func (a *App) UpdateItem(ctx context.Context, key string, r io.Reader, version int) error {
	var item libzot.Item
	if err := decode(r, &item); err != nil {
		return err
	}

	version, err := a.itemVersion(ctx, key, version)
	if err != nil {
		return err
	}

	updated, err := a.Client.UpdateItem(ctx, key, &item, version)
	if err != nil {
		return errors.Wrapf(err, "could not update item %s", key)
	}

	a.printf("Updated item %s (version %d)\n", key, updated.Version)
	return nil
}

// DeleteItem deletes an item and its children.
// The current version of the item is used when version is 0.
func (a *App) DeleteItem(ctx context.Context, key string, version int) error {
	version, err := a.itemVersion(ctx, key, version)
	if err != nil {
		return err
	}

	if err = a.Client.DeleteItem(ctx, key, version); err != nil {
		return errors.Wrapf(err, "could not delete item %s", key)
	}

	a.printf("Deleted item %s\n", key)
	return nil
}

// TrashItem moves an item to the trash.
// The current version of the item is used when version is 0.
func (a *App) TrashItem(ctx context.Context, key string, version int) error {
	version, err := a.itemVersion(ctx, key, version)
	if err != nil {
		return err
	}

	version, err = a.Client.TrashItem(ctx, key, version)
	if err != nil {
		return errors.Wrapf(err, "could not trash item %s", key)
	}

	a.printf("Moved item %s to the trash (version %d)\n", key, version)
	return nil
}

// Children prints the notes and attachments of an item.
func (a *App) Children(ctx context.Context, key string, opts ListOptions) error {
	return a.listItems(ctx, a.Client.Children(key, opts.ListParams), opts.JSON)
}

func (a *App) itemVersion(ctx context.Context, key string, version int) (int, error) {
	if version > 0 {
		return version, nil
	}

	item, err := a.Client.Item(ctx, key)
	if err != nil {
		return 0, errors.Wrapf(err, "could not get item %s", key)
	}
	return item.Version, nil
}

func decode(r io.Reader, v any) error {
	err := json.NewDecoder(r).Decode(v)
	if err != nil {
		return &libzot.Error{Kind: libzot.KindInvalidArgument, Message: "invalid JSON input: " + err.Error()}
	}
	return nil
}

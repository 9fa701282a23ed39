package client

import (
	"context"

	"github.com/mdouchement/zotero/pkg/libzot"
	"github.com/pkg/errors"
)

// Collections prints the collections of the library, or the subcollections of parent.
func (a *App) Collections(ctx context.Context, parent string, opts ListOptions) error {
	var it *libzot.Iterator[*libzot.Collection]
	switch {
	case parent != "":
		it = a.Client.Subcollections(parent, opts.ListParams)
	case opts.Top:
		it = a.Client.TopCollections(opts.ListParams)
	default:
		it = a.Client.Collections(opts.ListParams)
	}

	collections, err := it.All(ctx)
	if err != nil {
		return errors.Wrap(err, "could not list collections")
	}
	a.debug(collections)

	if opts.JSON {
		return a.printJSON(collections)
	}
	return a.printCollections(collections)
}

// CollectionItems prints the items of a collection.
func (a *App) CollectionItems(ctx context.Context, key string, opts ListOptions) error {
	return a.listItems(ctx, a.Client.CollectionItems(key, opts.ListParams), opts.JSON)
}

// CreateCollection creates a collection, nested in parent when not empty.
func (a *App) CreateCollection(ctx context.Context, name, parent string) error {
	created, err := a.Client.CreateCollection(ctx, &libzot.Collection{Name: name, ParentCollection: parent})
	if err != nil {
		return errors.Wrap(err, "could not create collection")
	}

	a.printf("Created collection %s (version %d)\n", created.Key, created.Version)
	return nil
}

// RenameCollection renames a collection.
func (a *App) RenameCollection(ctx context.Context, key, name string) error {
	collection, err := a.Client.Collection(ctx, key)
	if err != nil {
		return errors.Wrapf(err, "could not get collection %s", key)
	}

	collection.Name = name
	updated, err := a.Client.UpdateCollection(ctx, key, collection, collection.Version)
	if err != nil {
		return errors.Wrapf(err, "could not rename collection %s", key)
	}

	a.printf("Renamed collection %s (version %d)\n", key, updated.Version)
	return nil
}

// DeleteCollection deletes a collection and its subcollections, their items are kept.
// The current version of the collection is used when version is 0.
func (a *App) DeleteCollection(ctx context.Context, key string, version int) error {
	if version == 0 {
		collection, err := a.Client.Collection(ctx, key)
		if err != nil {
			return errors.Wrapf(err, "could not get collection %s", key)
		}
		version = collection.Version
	}

	if err := a.Client.DeleteCollection(ctx, key, version); err != nil {
		return errors.Wrapf(err, "could not delete collection %s", key)
	}

	a.printf("Deleted collection %s\n", key)
	return nil
}

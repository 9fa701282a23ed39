package client

import (
	"context"
	"strings"

	"github.com/mdouchement/zotero/pkg/libzot"
	"github.com/pkg/errors"
)

// Tags prints the tags of the library, or the ones of an item when key is not empty.
func (a *App) Tags(ctx context.Context, key string, opts ListOptions) error {
	var (
		tags []libzot.Tag
		err  error
	)
	if key != "" {
		tags, err = a.Client.ItemTags(ctx, key)
	} else {
		tags, err = a.Client.Tags(opts.ListParams).All(ctx)
	}
	if err != nil {
		return errors.Wrap(err, "could not list tags")
	}
	a.debug(tags)

	if opts.JSON {
		return a.printJSON(tags)
	}
	return a.printTags(tags)
}

// AddTags tags an item.
func (a *App) AddTags(ctx context.Context, key string, tags []string, version int) error {
	version, err := a.Client.AddTags(ctx, key, tags, version)
	if err != nil {
		return errors.Wrapf(err, "could not tag item %s", key)
	}

	a.printf("Tagged item %s with %s (version %d)\n", key, strings.Join(tags, ", "), version)
	return nil
}

// RemoveTags untags an item.
func (a *App) RemoveTags(ctx context.Context, key string, tags []string, version int) error {
	version, err := a.Client.RemoveTags(ctx, key, tags, version)
	if err != nil {
		return errors.Wrapf(err, "could not untag item %s", key)
	}

	a.printf("Removed %s from item %s (version %d)\n", strings.Join(tags, ", "), key, version)
	return nil
}

// DeleteTags removes tags from every item of the library.
// The current version of the library is used when version is 0.
func (a *App) DeleteTags(ctx context.Context, tags []string, version int) error {
	if version == 0 {
		it := a.Client.Tags(libzot.ListParams{Limit: 1})
		if _, err := it.All(ctx); err != nil {
			return errors.Wrap(err, "could not get library version")
		}
		version = it.LastModifiedVersion()
	}

	version, err := a.Client.DeleteTags(ctx, tags, version)
	if err != nil {
		return errors.Wrap(err, "could not delete tags")
	}

	a.printf("Deleted %s (library version %d)\n", strings.Join(tags, ", "), version)
	return nil
}

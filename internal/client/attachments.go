package client

import (
	"context"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/mdouchement/zotero/pkg/libzot"
	"github.com/pkg/errors"
)

// Attachments prints the attachments of the library, or the ones of an item when parent is not empty.
func (a *App) Attachments(ctx context.Context, parent string, opts ListOptions) error {
	return a.listItems(ctx, a.Client.Attachments(parent, opts.ListParams), opts.JSON)
}

// Upload attaches a file to parent, or creates a standalone attachment when parent is empty.
func (a *App) Upload(ctx context.Context, parent, path, contentType string) error {
	attachment, err := a.Client.UploadAttachment(ctx, parent, path, contentType)
	if err != nil {
		return errors.Wrapf(err, "could not upload %s", path)
	}
	a.debug(attachment)

	a.printf("Uploaded %s as attachment %s (%s)\n", filepath.Base(path), attachment.Key, attachment.ContentType)
	return nil
}

// Download saves the file of an attachment in dest.
// dest defaults to the filename of the attachment in the current directory.
func (a *App) Download(ctx context.Context, key, dest string) error {
	if dest == "" {
		attachment, err := a.Client.Item(ctx, key)
		if err != nil {
			return errors.Wrapf(err, "could not get attachment %s", key)
		}
		if !attachment.IsAttachment() || attachment.Filename == "" {
			return &libzot.Error{Kind: libzot.KindInvalidArgument, Message: key + " is not a file attachment"}
		}
		dest = filepath.Base(attachment.Filename)
	}

	n, err := a.Client.DownloadAttachment(ctx, key, dest)
	if err != nil {
		return errors.Wrapf(err, "could not download attachment %s", key)
	}

	a.printf("Downloaded %s (%s)\n", dest, humanize.Bytes(uint64(n)))
	return nil
}

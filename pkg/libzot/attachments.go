package libzot

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

func (c *client) Attachments(parentKey string, params ListParams) *Iterator[*Item] {
	params.ItemType = ItemTypeAttachment
	if parentKey == "" {
		return c.Items(params)
	}
	return c.Children(parentKey, params)
}

func (c *client) UploadAttachment(ctx context.Context, parentKey, path, contentType string) (*Item, error) {
	if path == "" {
		return nil, invalidArgument("missing file path")
	}
	if parentKey != "" {
		if err := validateKey(parentKey); err != nil {
			return nil, err
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, invalidArgument("could not stat %s: %s", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, invalidArgument("%s is not a regular file", path)
	}

	sum, err := fileMD5(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not compute md5")
	}

	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(path))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	filename := filepath.Base(path)

	attachment, err := c.CreateItem(ctx, &Item{
		ItemType:    ItemTypeAttachment,
		ParentItem:  parentKey,
		LinkMode:    LinkModeImportedFile,
		Title:       filename,
		ContentType: contentType,
		Filename:    filename,
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not create attachment item")
	}

	f := file{path: path, size: info.Size(), md5: sum, mtime: info.ModTime().UnixMilli()}
	if err = c.upload(ctx, attachment, f); err != nil {
		// An attachment item without its file is useless.
		if derr := c.DeleteItem(context.WithoutCancel(ctx), attachment.Key, attachment.Version); derr != nil {
			c.logger.WithError(derr).WithField("key", attachment.Key).Debug("could not delete attachment item")
		}
		return nil, errors.Wrapf(err, "could not upload the file of attachment %s", attachment.Key)
	}
	return attachment, nil
}

type file struct {
	path  string
	size  int64
	md5   string
	mtime int64
}

func (c *client) upload(ctx context.Context, attachment *Item, f file) error {
	header := http.Header{}
	header.Set("If-None-Match", "*")

	//
	// Request authorization
	r, err := c.library.build(operation{
		method:   http.MethodPost,
		resource: "items",
		key:      attachment.Key,
		keyed:    true,
		sub:      "file",
		header:   header,
		payload: url.Values{
			"md5":      {f.md5},
			"filename": {attachment.Filename},
			"filesize": {strconv.FormatInt(f.size, 10)},
			"mtime":    {strconv.FormatInt(f.mtime, 10)},
		},
	})
	if err != nil {
		return err
	}

	res, err := c.execute(ctx, r)
	if err != nil {
		return err
	}

	auth, err := decodeUploadAuthorization(res.body)
	if err != nil {
		return err
	}

	if !auth.exists {
		//
		// Upload content
		target, err := url.Parse(auth.url)
		if err != nil {
			return malformed(err, "invalid upload url")
		}

		up := &request{
			method:    http.MethodPost,
			url:       target,
			header:    http.Header{"Content-Type": {auth.contentType}},
			anonymous: true,
			length:    int64(len(auth.prefix)) + f.size + int64(len(auth.suffix)),
			open: func() (io.ReadCloser, error) {
				fd, err := os.Open(f.path)
				if err != nil {
					return nil, err
				}
				return &readCloser{
					Reader: io.MultiReader(strings.NewReader(auth.prefix), fd, strings.NewReader(auth.suffix)),
					Closer: fd,
				}, nil
			},
		}
		if _, err = c.execute(ctx, up); err != nil {
			return err
		}

		//
		// Register upload
		r, err = c.library.build(operation{
			method:   http.MethodPost,
			resource: "items",
			key:      attachment.Key,
			keyed:    true,
			sub:      "file",
			header:   header,
			payload:  url.Values{"upload": {auth.uploadKey}},
		})
		if err != nil {
			return err
		}

		res, err = c.execute(ctx, r)
		if err != nil {
			return err
		}
	}

	attachment.MD5 = f.md5
	attachment.MTime = f.mtime
	if res.version > 0 {
		attachment.Version = res.version
	}
	return nil
}

func (c *client) DownloadAttachment(ctx context.Context, key, dest string) (int64, error) {
	if dest == "" {
		return 0, invalidArgument("missing destination path")
	}

	r, err := c.library.build(operation{method: http.MethodGet, resource: "items", key: key, keyed: true, sub: "file"})
	if err != nil {
		return 0, err
	}
	r.header.Set("Accept", "*/*")

	var written int64
	err = c.stream(ctx, r, func(res *http.Response) error {
		n, err := writeFile(dest, res.Body)
		written = n
		return err
	})
	return written, err
}

// writeFile writes r into a temporary file next to dest then renames it to dest.
// dest is left untouched on failure.
func writeFile(dest string, r io.Reader) (n int64, err error) {
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return 0, errors.Wrap(err, "could not create temporary file")
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	n, err = io.Copy(tmp, r)
	if err != nil {
		return n, &Error{Kind: KindServerError, Message: "download interrupted", err: err}
	}
	if err = tmp.Sync(); err != nil {
		return n, errors.Wrap(err, "could not sync file")
	}
	if err = tmp.Close(); err != nil {
		return n, errors.Wrap(err, "could not close file")
	}
	if err = os.Rename(tmp.Name(), dest); err != nil {
		return n, errors.Wrap(err, "could not move file into place")
	}
	return n, nil
}

func fileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err = io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

type readCloser struct {
	io.Reader
	io.Closer
}

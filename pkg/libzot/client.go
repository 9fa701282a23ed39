package libzot

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type (
	// A Client defines all interactions that can be performed on a Zotero library.
	Client interface {
		// Items lists the items of the library.
		Items(params ListParams) *Iterator[*Item]
		// TopItems lists the top-level items of the library.
		TopItems(params ListParams) *Iterator[*Item]
		// Children lists the child items (notes and attachments) of an item.
		Children(key string, params ListParams) *Iterator[*Item]
		// Item returns the item for the given key.
		Item(ctx context.Context, key string) (*Item, error)
		// CreateItem creates the given item and returns it as stored by the server.
		CreateItem(ctx context.Context, item *Item) (*Item, error)
		// UpdateItem replaces the item identified by key.
		// expectedVersion is the version the item is known to have, 0 disables the check.
		UpdateItem(ctx context.Context, key string, item *Item, expectedVersion int) (*Item, error)
		// PatchItem updates only the given fields of the item and returns its new version.
		PatchItem(ctx context.Context, key string, fields map[string]any, expectedVersion int) (int, error)
		// DeleteItem permanently deletes the item.
		DeleteItem(ctx context.Context, key string, expectedVersion int) error
		// TrashItem moves the item to the trash and returns its new version.
		TrashItem(ctx context.Context, key string, expectedVersion int) (int, error)

		// Collections lists the collections of the library.
		Collections(params ListParams) *Iterator[*Collection]
		// TopCollections lists the top-level collections of the library.
		TopCollections(params ListParams) *Iterator[*Collection]
		// Subcollections lists the direct subcollections of a collection.
		Subcollections(key string, params ListParams) *Iterator[*Collection]
		// Collection returns the collection for the given key.
		Collection(ctx context.Context, key string) (*Collection, error)
		// CreateCollection creates the given collection and returns it as stored by the server.
		CreateCollection(ctx context.Context, collection *Collection) (*Collection, error)
		// UpdateCollection replaces the collection identified by key.
		UpdateCollection(ctx context.Context, key string, collection *Collection, expectedVersion int) (*Collection, error)
		// DeleteCollection deletes the collection. Its items are kept.
		DeleteCollection(ctx context.Context, key string, expectedVersion int) error
		// CollectionItems lists the items of a collection.
		CollectionItems(key string, params ListParams) *Iterator[*Item]

		// Tags lists the tags of the library.
		Tags(params ListParams) *Iterator[Tag]
		// ItemTags returns the tags of an item.
		ItemTags(ctx context.Context, key string) ([]Tag, error)
		// AddTags adds tags to an item and returns its new version.
		// expectedVersion 0 trusts the version read just before the write.
		AddTags(ctx context.Context, key string, tags []string, expectedVersion int) (int, error)
		// RemoveTags removes tags from an item and returns its new version.
		// expectedVersion 0 trusts the version read just before the write.
		RemoveTags(ctx context.Context, key string, tags []string, expectedVersion int) (int, error)
		// UpdateTags adds and removes tags of an already fetched item, trusting its Tags and Version.
		// The item is updated in place.
		UpdateTags(ctx context.Context, item *Item, add, remove []string) error
		// DeleteTags deletes tags from every item of the library and returns the new library version.
		DeleteTags(ctx context.Context, tags []string, expectedLibraryVersion int) (int, error)

		// Attachments lists the attachments of an item, or of the whole library when parentKey is empty.
		Attachments(parentKey string, params ListParams) *Iterator[*Item]
		// UploadAttachment creates an attachment item for the given file and uploads its content.
		// parentKey can be empty for a standalone attachment.
		// When the upload fails, the attachment item is deleted on a best effort basis.
		UploadAttachment(ctx context.Context, parentKey, path, contentType string) (*Item, error)
		// DownloadAttachment writes the file of the attachment to dest and returns the written size.
		DownloadAttachment(ctx context.Context, key, dest string) (int64, error)

		// Render returns the formatted bibliography of the given items.
		Render(ctx context.Context, keys []string, opts RenderOptions) (string, error)
		// Export returns the items in the given export format.
		Export(ctx context.Context, params ExportParams) (string, error)
	}

	// Config holds the credentials and the location of a library.
	Config struct {
		APIKey string
		// LibraryID is the user ID or the group ID.
		LibraryID string
		// LibraryType is LibraryTypeUser (default) or LibraryTypeGroup.
		LibraryType string
		// BaseURL defaults to DefaultBaseURL.
		BaseURL string
	}

	// An Option customizes a Client.
	Option func(*client)

	client struct {
		http    *http.Client
		base    *url.URL
		apiKey  string
		library library
		retry   RetryPolicy
		logger  logrus.FieldLogger
	}
)

var _ Client = (*client)(nil)

// Validate checks the configuration.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.APIKey, validation.Required),
		validation.Field(&c.LibraryID, validation.Required),
		validation.Field(&c.LibraryType, validation.In(LibraryTypeUser, LibraryTypeGroup)),
	)
}

// WithHTTPClient sets the HTTP client used to reach the API.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.http = hc
	}
}

// WithLogger sets the logger receiving requests and retry notices.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *client) {
		c.logger = logger
	}
}

// WithRetryPolicy sets how RateLimited and ServerError failures are retried.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *client) {
		c.retry = policy
	}
}

// NewDefaultClient returns a new Client for the user library of the given user.
func NewDefaultClient(apiKey, userID string) (Client, error) {
	return NewClient(Config{APIKey: apiKey, LibraryID: userID})
}

// NewClient returns a new Client. No request is sent.
func NewClient(cfg Config, opts ...Option) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &Error{Kind: KindConfiguration, Message: err.Error()}
	}
	if cfg.LibraryType == "" {
		cfg.LibraryType = LibraryTypeUser
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, &Error{Kind: KindConfiguration, Message: "invalid base URL", err: err}
	}

	discard := logrus.New()
	discard.SetOutput(io.Discard)

	c := &client{
		http:    http.DefaultClient,
		base:    base,
		apiKey:  cfg.APIKey,
		library: library{kind: cfg.LibraryType, id: cfg.LibraryID},
		retry:   DefaultRetryPolicy,
		logger:  discard,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http = keyless(c.http, base.Host)

	return c, nil
}

// keyless returns a copy of hc that drops the API key when redirected to another host.
func keyless(hc *http.Client, host string) *http.Client {
	cp := *hc
	check := hc.CheckRedirect
	cp.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if req.URL.Host != host {
			req.Header.Del(HeaderAPIKey)
		}
		if check != nil {
			return check(req, via)
		}
		if len(via) >= 10 {
			return errors.New("stopped after 10 redirects")
		}
		return nil
	}
	return &cp
}

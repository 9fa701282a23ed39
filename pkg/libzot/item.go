package libzot

import (
	"encoding/json"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Common item types.
const (
	ItemTypeAttachment     = "attachment"
	ItemTypeNote           = "note"
	ItemTypeBook           = "book"
	ItemTypeBookSection    = "bookSection"
	ItemTypeJournalArticle = "journalArticle"
	ItemTypeWebpage        = "webpage"
)

// Attachment link modes.
const (
	LinkModeImportedFile = "imported_file"
	LinkModeImportedURL  = "imported_url"
	LinkModeLinkedFile   = "linked_file"
	LinkModeLinkedURL    = "linked_url"
)

var linkModes = []any{LinkModeImportedFile, LinkModeImportedURL, LinkModeLinkedFile, LinkModeLinkedURL, "embedded_image"}

type (
	// An Item is a bibliographic record, a note or an attachment of a Zotero library.
	// A locally built Item has a zero Version until the server answers.
	Item struct {
		Key          string    `json:"key,omitempty"`
		Version      int       `json:"version,omitempty"`
		ItemType     string    `json:"itemType"`
		Title        string    `json:"title,omitempty"`
		Creators     []Creator `json:"creators,omitempty"`
		AbstractNote string    `json:"abstractNote,omitempty"`
		Date         string    `json:"date,omitempty"`
		URL          string    `json:"url,omitempty"`
		Note         string    `json:"note,omitempty"`
		Tags         []Tag     `json:"tags,omitempty"`
		Collections  []string  `json:"collections,omitempty"`
		ParentItem   string    `json:"parentItem,omitempty"`
		Deleted      bool      `json:"-"`

		// Attachment fields.
		LinkMode    string `json:"linkMode,omitempty"`
		ContentType string `json:"contentType,omitempty"`
		Charset     string `json:"charset,omitempty"`
		Filename    string `json:"filename,omitempty"`
		MD5         string `json:"md5,omitempty"`
		MTime       int64  `json:"mtime,omitempty"`

		// Extra holds the fields not mapped above (e.g. publisher, ISBN, dateAdded, relations).
		// They are sent back untouched on updates.
		Extra map[string]json.RawMessage `json:"-"`
	}

	// A Creator is an author, editor, contributor... of an Item.
	// It uses either FirstName/LastName or a single-field Name.
	Creator struct {
		CreatorType string `json:"creatorType"`
		FirstName   string `json:"firstName,omitempty"`
		LastName    string `json:"lastName,omitempty"`
		Name        string `json:"name,omitempty"`
	}

	item Item
)

var itemFields = jsonFields(item{})

// IsAttachment returns true if the item is an attachment.
func (i *Item) IsAttachment() bool {
	return i.ItemType == ItemTypeAttachment
}

// HasTag returns true if the item is tagged with name.
func (i *Item) HasTag(name string) bool {
	for _, t := range i.Tags {
		if t.Tag == name {
			return true
		}
	}
	return false
}

// TagNames returns the names of the item's tags.
func (i *Item) TagNames() []string {
	names := make([]string, 0, len(i.Tags))
	for _, t := range i.Tags {
		names = append(names, t.Tag)
	}
	return names
}

// Field returns the string value of an extra field such as "publisher" or "ISBN".
func (i *Item) Field(name string) string {
	raw, ok := i.Extra[name]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// SetField sets the string value of an extra field such as "publisher" or "ISBN".
func (i *Item) SetField(name, value string) {
	if i.Extra == nil {
		i.Extra = map[string]json.RawMessage{}
	}
	raw, _ := json.Marshal(value)
	i.Extra[name] = raw
}

// Validate checks the item before it is sent to the server.
func (i *Item) Validate() error {
	return validation.ValidateStruct(i,
		validation.Field(&i.ItemType, validation.Required),
		validation.Field(&i.Creators),
		validation.Field(&i.Tags),
		validation.Field(&i.LinkMode,
			validation.When(i.IsAttachment(), validation.Required),
			validation.In(linkModes...),
		),
		validation.Field(&i.ParentItem, validation.By(keyRule)),
	)
}

// MarshalJSON implements json.Marshaler.
func (i Item) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(item(i))
	if err != nil {
		return nil, err
	}

	var override map[string]any
	if i.Deleted {
		override = map[string]any{"deleted": 1}
	}
	return mergeExtra(b, i.Extra, override)
}

// UnmarshalJSON implements json.Unmarshaler.
func (i *Item) UnmarshalJSON(data []byte) error {
	var v item
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	extra, err := splitExtra(data, itemFields)
	if err != nil {
		return err
	}
	if raw, ok := extra["deleted"]; ok {
		v.Deleted = truthy(raw)
		delete(extra, "deleted")
	}
	if len(extra) > 0 {
		v.Extra = extra
	}

	*i = Item(v)
	return nil
}

// Validate checks the creator before it is sent to the server.
func (c Creator) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.CreatorType, validation.Required),
		validation.Field(&c.LastName, validation.When(c.Name == "", validation.Required.Error("lastName or name is required"))),
	)
}

// String returns the display name of the creator.
func (c Creator) String() string {
	if c.Name != "" {
		return c.Name
	}
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

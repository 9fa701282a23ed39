package service

import (
	"crypto/rand"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mdouchement/zotero/internal/apierror"
	"github.com/mdouchement/zotero/internal/database"
	"github.com/mdouchement/zotero/internal/model"
	"github.com/pkg/errors"
)

// M is an arbitrary map.
type M map[string]any

const keyAlphabet = "23456789ABCDEFGHIJKLMNPQRSTUVWXYZ"

type (
	// A Service holds the business logic of the mock API.
	// Every operation is serialized, as a library version is shared by all its objects.
	Service struct {
		db     database.Client
		mu     sync.Mutex
		tokens map[string]bool
		now    func() time.Time
	}

	// A Record is a decoded item or collection.
	Record struct {
		Key     string
		Version int
		Kind    string
		Data    M
	}
)

// New returns a new Service.
func New(db database.Client) *Service {
	return &Service{
		db:     db,
		tokens: map[string]bool{},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// EnsureLibrary creates the library if it does not exist yet.
func (s *Service) EnsureLibrary(id, name string) (*model.Library, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.library(id)
	if err != nil {
		return nil, err
	}
	if l.CreatedAt != nil {
		return l, nil
	}

	l.Name = name
	return l, s.db.Save(l)
}

// LibraryVersion returns the current version of the library.
func (s *Service) LibraryVersion(id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.library(id)
	if err != nil {
		return 0, err
	}
	return l.Version, nil
}

// library returns the library, unsaved when it does not exist yet.
func (s *Service) library(id string) (*model.Library, error) {
	l, err := s.db.FindLibrary(id)
	if err != nil {
		if s.db.IsNotFound(err) {
			kind, _, _ := strings.Cut(id, "/")
			return &model.Library{Base: model.Base{ID: id}, Type: kind}, nil
		}
		return nil, errors.Wrap(err, "could not get access to database")
	}
	return l, nil
}

func (s *Service) records(library, kind string) ([]*Record, error) {
	objects, err := s.db.FindObjects(library, kind)
	if err != nil {
		return nil, err
	}

	records := make([]*Record, 0, len(objects))
	for _, o := range objects {
		r, err := decode(o)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

func (s *Service) record(library, kind, key string) (*Record, error) {
	o, err := s.db.FindObject(library, kind, key)
	if err != nil {
		if s.db.IsNotFound(err) {
			return nil, apierror.New(http.StatusNotFound, "Not found")
		}
		return nil, errors.Wrap(err, "could not get access to database")
	}
	return decode(o)
}

func (s *Service) save(library string, r *Record) error {
	data, err := json.Marshal(r.Data)
	if err != nil {
		return errors.Wrap(err, "could not serialize object")
	}

	o := &model.Object{
		Base:    model.Base{ID: model.ObjectID(library, r.Kind, r.Key)},
		Library: library,
		Kind:    r.Kind,
		Key:     r.Key,
		Version: r.Version,
		Data:    data,
	}
	if current, err := s.db.FindObject(library, r.Kind, r.Key); err == nil {
		o.CreatedAt = current.CreatedAt
	}
	return s.db.Save(o)
}

func (s *Service) remove(library string, r *Record) error {
	o, err := s.db.FindObject(library, r.Kind, r.Key)
	if err != nil {
		if s.db.IsNotFound(err) {
			return nil
		}
		return err
	}
	return s.db.Delete(o)
}

func decode(o *model.Object) (*Record, error) {
	var data M
	if err := json.Unmarshal(o.Data, &data); err != nil {
		return nil, errors.Wrapf(err, "could not parse %s %s", o.Kind, o.Key)
	}
	data["key"] = o.Key
	data["version"] = o.Version

	return &Record{
		Key:     o.Key,
		Version: o.Version,
		Kind:    o.Kind,
		Data:    data,
	}, nil
}

// String returns the string value of a data field.
func (r *Record) String(field string) string {
	s, _ := r.Data[field].(string)
	return s
}

// Deleted returns true if the record is in the trash.
func (r *Record) Deleted() bool {
	switch v := r.Data["deleted"].(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	}
	return false
}

// Tags returns the tags of the record.
func (r *Record) Tags() []Tag {
	raw, _ := r.Data["tags"].([]any)
	tags := make([]Tag, 0, len(raw))
	for _, v := range raw {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}

		name, _ := m["tag"].(string)
		if name == "" {
			continue
		}

		t := Tag{Tag: name}
		if kind, ok := m["type"].(float64); ok {
			t.Type = int(kind)
		}
		tags = append(tags, t)
	}
	return tags
}

// SetTags replaces the tags of the record.
func (r *Record) SetTags(tags []Tag) {
	raw := make([]any, 0, len(tags))
	for _, t := range tags {
		m := map[string]any{"tag": t.Tag}
		if t.Type != 0 {
			m["type"] = float64(t.Type)
		}
		raw = append(raw, m)
	}
	r.Data["tags"] = raw
}

// HasTag returns true if the record is tagged with name.
func (r *Record) HasTag(name string) bool {
	for _, t := range r.Tags() {
		if t.Tag == name {
			return true
		}
	}
	return false
}

// Strings returns the string values of a data field holding a list.
func (r *Record) Strings(field string) []string {
	raw, _ := r.Data[field].([]any)
	values := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			values = append(values, s)
		}
	}
	return values
}

// ParentCollection returns the parent collection key of a collection, empty for a top-level one.
func (r *Record) ParentCollection() string {
	return r.String("parentCollection")
}

func newKey() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	for i := range b {
		b[i] = keyAlphabet[int(b[i])%len(keyAlphabet)]
	}
	return string(b)
}

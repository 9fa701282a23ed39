package service

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"time"

	"github.com/mdouchement/zotero/internal/apierror"
	"github.com/mdouchement/zotero/internal/model"
)

type (
	// A WriteResult is the outcome of a multi-object write, indexed by position in the request.
	WriteResult struct {
		Successful map[string]*Record
		Success    map[string]string
		Unchanged  map[string]string
		Failed     map[string]Failure
		// Version is the library version after the write.
		Version int
	}

	// A Failure describes an object that could not be written.
	Failure struct {
		Key     string `json:"key,omitempty"`
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
)

// Create creates or updates several objects in a single library version.
// expected is the If-Unmodified-Since-Version of the library, 0 if none.
func (s *Service) Create(library, kind string, objects []M, expected int, token string) (*WriteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token != "" {
		if s.tokens[token] {
			return nil, apierror.New(http.StatusPreconditionFailed, "Write token already used")
		}
		s.tokens[token] = true
	}

	l, err := s.library(library)
	if err != nil {
		return nil, err
	}
	if expected > 0 && l.Version != expected {
		return nil, apierror.PreconditionFailed(fmt.Sprintf("Library has been modified since specified version (expected %d, found %d)", expected, l.Version), l.Version)
	}

	result := &WriteResult{
		Successful: map[string]*Record{},
		Success:    map[string]string{},
		Unchanged:  map[string]string{},
		Failed:     map[string]Failure{},
		Version:    l.Version,
	}
	version := l.Version + 1
	now := s.now()

	for i, data := range objects {
		index := fmt.Sprint(i)

		r, failure := s.prepare(library, kind, data, now)
		if failure != nil {
			result.Failed[index] = *failure
			continue
		}
		if r == nil {
			key, _ := data["key"].(string)
			result.Unchanged[index] = key
			continue
		}

		r.Version = version
		r.Data["version"] = version
		if err := s.save(library, r); err != nil {
			return nil, err
		}

		result.Successful[index] = r
		result.Success[index] = r.Key
	}

	if len(result.Successful) > 0 {
		l.Version = version
		if err := s.db.Save(l); err != nil {
			return nil, err
		}
		result.Version = version
	}
	return result, nil
}

// prepare validates an object of a multi-object write.
// It returns a nil Record when the object is unchanged.
func (s *Service) prepare(library, kind string, data M, now time.Time) (*Record, *Failure) {
	key, _ := data["key"].(string)
	if key == "" {
		key = newKey()
	}

	if msg := validate(kind, data); msg != "" {
		return nil, &Failure{Key: key, Code: http.StatusBadRequest, Message: msg}
	}
	if parent, _ := data["parentItem"].(string); parent != "" {
		if _, err := s.record(library, model.KindItem, parent); err != nil {
			return nil, &Failure{Key: key, Code: http.StatusBadRequest, Message: fmt.Sprintf("Parent item %s not found", parent)}
		}
	}

	current, err := s.record(library, kind, key)
	if err != nil && apierror.StatusCode(err) != http.StatusNotFound {
		return nil, &Failure{Key: key, Code: http.StatusInternalServerError, Message: err.Error()}
	}

	r := &Record{Key: key, Kind: kind, Data: M{}}
	if current != nil {
		if v, ok := number(data["version"]); ok && v != current.Version {
			return nil, &Failure{
				Key:     key,
				Code:    http.StatusPreconditionFailed,
				Message: fmt.Sprintf("%s has been modified since specified version (expected %d, found %d)", label(kind), v, current.Version),
			}
		}

		if unchanged(current.Data, data) {
			return nil, nil
		}
		r.Data["dateAdded"] = current.Data["dateAdded"]
	}

	for k, v := range data {
		r.Data[k] = v
	}
	r.Data["key"] = key
	s.stamp(r, now)
	return r, nil
}

// Replace replaces the data of an existing object.
func (s *Service) Replace(library, kind, key string, data M, expected int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.checked(library, kind, key, data, expected)
	if err != nil {
		return 0, err
	}
	if msg := validate(kind, data); msg != "" {
		return 0, apierror.New(http.StatusBadRequest, msg)
	}

	r := &Record{Key: key, Kind: kind, Data: M{}}
	for k, v := range data {
		r.Data[k] = v
	}
	r.Data["dateAdded"] = current.Data["dateAdded"]
	return s.commit(library, r)
}

// Patch updates some fields of an existing object.
func (s *Service) Patch(library, kind, key string, data M, expected int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.checked(library, kind, key, data, expected)
	if err != nil {
		return 0, err
	}

	for k, v := range data {
		current.Data[k] = v
	}
	if msg := validate(kind, current.Data); msg != "" {
		return 0, apierror.New(http.StatusBadRequest, msg)
	}
	return s.commit(library, current)
}

// Delete deletes an object. Children of items and subcollections of collections are deleted too.
func (s *Service) Delete(library, kind, key string, expected int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.checked(library, kind, key, nil, expected)
	if err != nil {
		return 0, err
	}

	l, err := s.library(library)
	if err != nil {
		return 0, err
	}
	l.Version++

	if err = s.cascade(library, current, l.Version); err != nil {
		return 0, err
	}
	return l.Version, s.db.Save(l)
}

// DeleteTags removes the given tags from all the items of the library.
func (s *Service) DeleteTags(library string, names []string, expected int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.library(library)
	if err != nil {
		return 0, err
	}
	if l.Version != expected {
		return 0, apierror.PreconditionFailed(fmt.Sprintf("Library has been modified since specified version (expected %d, found %d)", expected, l.Version), l.Version)
	}

	records, err := s.records(library, model.KindItem)
	if err != nil {
		return 0, err
	}

	drop := map[string]bool{}
	for _, name := range names {
		drop[name] = true
	}

	version := l.Version + 1
	now := s.now()
	changed := false
	for _, r := range records {
		tags := r.Tags()
		kept := tags[:0]
		for _, t := range tags {
			if !drop[t.Tag] {
				kept = append(kept, t)
			}
		}
		if len(kept) == len(tags) {
			continue
		}

		r.SetTags(kept)
		r.Version = version
		r.Data["version"] = version
		s.stamp(r, now)
		if err := s.save(library, r); err != nil {
			return 0, err
		}
		changed = true
	}

	if !changed {
		return l.Version, nil
	}
	l.Version = version
	return version, s.db.Save(l)
}

// checked returns the object after having verified the write preconditions.
func (s *Service) checked(library, kind, key string, data M, expected int) (*Record, error) {
	current, err := s.record(library, kind, key)
	if err != nil {
		return nil, err
	}

	if expected > 0 && current.Version != expected {
		return nil, apierror.PreconditionFailed(fmt.Sprintf("%s has been modified since specified version (expected %d, found %d)", label(kind), expected, current.Version), current.Version)
	}
	if v, ok := number(data["version"]); ok && v != current.Version {
		return nil, apierror.PreconditionFailed(fmt.Sprintf("%s has been modified since specified version (expected %d, found %d)", label(kind), v, current.Version), current.Version)
	}
	return current, nil
}

// commit saves the object in a new library version.
func (s *Service) commit(library string, r *Record) (int, error) {
	l, err := s.library(library)
	if err != nil {
		return 0, err
	}

	l.Version++
	r.Version = l.Version
	r.Data["key"] = r.Key
	r.Data["version"] = l.Version
	s.stamp(r, s.now())

	if err := s.save(library, r); err != nil {
		return 0, err
	}
	return l.Version, s.db.Save(l)
}

func (s *Service) cascade(library string, r *Record, version int) error {
	switch r.Kind {
	case model.KindItem:
		children, err := s.records(library, model.KindItem)
		if err != nil {
			return err
		}
		for _, child := range children {
			if child.String("parentItem") == r.Key {
				if err := s.cascade(library, child, version); err != nil {
					return err
				}
			}
		}

		if f, err := s.db.FindFile(library, r.Key); err == nil {
			if err := s.db.Delete(f); err != nil {
				return err
			}
		}
	case model.KindCollection:
		subcollections, err := s.records(library, model.KindCollection)
		if err != nil {
			return err
		}
		for _, sub := range subcollections {
			if sub.ParentCollection() == r.Key {
				if err := s.cascade(library, sub, version); err != nil {
					return err
				}
			}
		}

		items, err := s.records(library, model.KindItem)
		if err != nil {
			return err
		}
		for _, item := range items {
			collections := item.Strings("collections")
			if !contains(collections, r.Key) {
				continue
			}

			kept := make([]any, 0, len(collections))
			for _, c := range collections {
				if c != r.Key {
					kept = append(kept, c)
				}
			}
			item.Data["collections"] = kept
			item.Version = version
			item.Data["version"] = version
			if err := s.save(library, item); err != nil {
				return err
			}
		}
	}

	return s.remove(library, r)
}

func (s *Service) stamp(r *Record, now time.Time) {
	if r.Kind != model.KindItem {
		return
	}

	ts := now.Format(time.RFC3339)
	if added, _ := r.Data["dateAdded"].(string); added == "" {
		r.Data["dateAdded"] = ts
	}
	r.Data["dateModified"] = ts
}

func validate(kind string, data M) string {
	switch kind {
	case model.KindItem:
		if t, _ := data["itemType"].(string); t == "" {
			return "'itemType' property not provided"
		}
		if tags, ok := data["tags"]; ok && tags != nil {
			if _, ok := tags.([]any); !ok {
				return "'tags' property must be an array"
			}
		}
	case model.KindCollection:
		if name, _ := data["name"].(string); name == "" {
			return "Collection name cannot be empty"
		}
	}
	return ""
}

// unchanged returns true if applying data to current would not modify it.
func unchanged(current, data M) bool {
	for k, v := range data {
		switch k {
		case "key", "version", "dateAdded", "dateModified":
			continue
		}
		if !reflect.DeepEqual(normalize(current[k]), normalize(v)) {
			return false
		}
	}
	return true
}

// normalize converts a value to its JSON decoded form.
func normalize(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var n any
	_ = json.Unmarshal(b, &n)
	return n
}

func number(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), n > 0
	case int:
		return n, n > 0
	}
	return 0, false
}

func label(kind string) string {
	if kind == model.KindCollection {
		return "Collection"
	}
	return "Item"
}

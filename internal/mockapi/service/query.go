package service

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mdouchement/zotero/internal/model"
)

// Query modes.
const (
	QueryModeTitleCreatorYear = "titleCreatorYear"
	QueryModeEverything       = "everything"
)

var year = regexp.MustCompile(`\b(\d{4})\b`)

type (
	// A Filter selects, sorts and paginates records.
	Filter struct {
		// Top selects top-level items or collections.
		Top bool
		// Parent selects the children of an item or the subcollections of a collection.
		Parent string
		// Collection selects the items of a collection.
		Collection string

		Query          string
		QueryMode      string
		ItemType       string
		Tags           []string
		IncludeTrashed bool
		// Trashed selects only the items in the trash.
		Trashed  bool
		ItemKeys []string
		Since    int

		Sort      string
		Direction string
		Start     int
		Limit     int
	}

	// A Page is a paginated listing.
	Page struct {
		Records []*Record
		// Total is the number of records matching the filter.
		Total int
		// Version is the library version.
		Version int
	}
)

// List returns the records of the given kind matching the filter.
func (s *Service) List(library, kind string, f Filter) (*Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.library(library)
	if err != nil {
		return nil, err
	}

	if f.Parent != "" {
		if _, err := s.record(library, kind, f.Parent); err != nil {
			return nil, err
		}
	}
	if f.Collection != "" {
		if _, err := s.record(library, model.KindCollection, f.Collection); err != nil {
			return nil, err
		}
	}

	records, err := s.records(library, kind)
	if err != nil {
		return nil, err
	}

	matching := records[:0]
	for _, r := range records {
		if f.Match(r) {
			matching = append(matching, r)
		}
	}
	f.sort(matching)

	return &Page{
		Records: paginate(matching, f.Start, f.Limit),
		Total:   len(matching),
		Version: l.Version,
	}, nil
}

// Get returns the record of the given kind and key.
func (s *Service) Get(library, kind, key string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.record(library, kind, key)
}

// Match returns true if the record is selected by the filter.
func (f Filter) Match(r *Record) bool {
	if r.Kind == model.KindItem && r.Deleted() && !f.IncludeTrashed {
		return false
	}
	if r.Kind == model.KindItem && f.Trashed && !r.Deleted() {
		return false
	}
	if f.Since > 0 && r.Version <= f.Since {
		return false
	}
	if len(f.ItemKeys) > 0 && !contains(f.ItemKeys, r.Key) {
		return false
	}

	switch r.Kind {
	case model.KindItem:
		if f.Top && r.String("parentItem") != "" {
			return false
		}
		if f.Parent != "" && r.String("parentItem") != f.Parent {
			return false
		}
		if f.Collection != "" && !contains(r.Strings("collections"), f.Collection) {
			return false
		}
		if f.ItemType != "" && !matchExpression(f.ItemType, func(v string) bool { return r.String("itemType") == v }) {
			return false
		}
		for _, tag := range f.Tags {
			if !matchExpression(tag, r.HasTag) {
				return false
			}
		}
		if f.Query != "" && !f.matchQuery(r) {
			return false
		}
	case model.KindCollection:
		if f.Top && r.ParentCollection() != "" {
			return false
		}
		if f.Parent != "" && r.ParentCollection() != f.Parent {
			return false
		}
		if f.Query != "" && !strings.Contains(strings.ToLower(r.String("name")), strings.ToLower(f.Query)) {
			return false
		}
	}

	return true
}

// matchExpression evaluates the boolean syntax of tag and itemType filters:
// alternatives are separated by " || " and a leading "-" negates a term.
func matchExpression(expr string, has func(string) bool) bool {
	for _, term := range strings.Split(expr, "||") {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}

		if negated, ok := strings.CutPrefix(term, "-"); ok {
			if !has(negated) {
				return true
			}
			continue
		}
		if has(term) {
			return true
		}
	}
	return false
}

func (f Filter) matchQuery(r *Record) bool {
	q := strings.ToLower(f.Query)

	fields := append([]string{r.String("title")}, creators(r)...)
	if y := Year(r.String("date")); y != "" {
		fields = append(fields, y)
	}

	if f.QueryMode == QueryModeEverything {
		for k, v := range r.Data {
			if s, ok := v.(string); ok && k != "key" {
				fields = append(fields, s)
			}
		}
		fields = append(fields, tagNames(r)...)
	}

	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

func (f Filter) sort(records []*Record) {
	field := f.Sort
	if field == "" {
		field = "dateModified"
	}
	desc := f.Direction == "desc" || f.Direction == "" && (field == "dateModified" || field == "dateAdded")

	less := func(a, b *Record) int {
		switch field {
		case "dateAdded", "dateModified":
			return compareTime(date(a.String(field)), date(b.String(field)))
		case "title":
			return strings.Compare(strings.ToLower(title(a)), strings.ToLower(title(b)))
		case "creator":
			return strings.Compare(strings.ToLower(firstCreator(a)), strings.ToLower(firstCreator(b)))
		case "date":
			return strings.Compare(Year(a.String("date")), Year(b.String("date")))
		case "itemType":
			return strings.Compare(a.String("itemType"), b.String("itemType"))
		default:
			return 0
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if c := less(a, b); c != 0 {
			if desc {
				return c > 0
			}
			return c < 0
		}
		if a.Version != b.Version {
			return a.Version > b.Version
		}
		return a.Key < b.Key
	})
}

func paginate(records []*Record, start, limit int) []*Record {
	if start >= len(records) {
		return []*Record{}
	}
	records = records[start:]
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records
}

// Year returns the year of a free-form date, empty when none can be found.
func Year(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if t, err := dateparse.ParseAny(s); err == nil {
		return t.Format("2006")
	}
	if m := year.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

func date(s string) time.Time {
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func title(r *Record) string {
	if r.Kind == model.KindCollection {
		return r.String("name")
	}
	return r.String("title")
}

func creators(r *Record) []string {
	raw, _ := r.Data["creators"].([]any)
	names := make([]string, 0, len(raw))
	for _, v := range raw {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		for _, field := range []string{"lastName", "firstName", "name"} {
			if s, ok := m[field].(string); ok && s != "" {
				names = append(names, s)
			}
		}
	}
	return names
}

func firstCreator(r *Record) string {
	if names := creators(r); len(names) > 0 {
		return names[0]
	}
	return ""
}

func tagNames(r *Record) []string {
	tags := r.Tags()
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Tag)
	}
	return names
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}

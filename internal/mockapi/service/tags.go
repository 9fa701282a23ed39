package service

import (
	"sort"

	"github.com/mdouchement/zotero/internal/model"
)

// A Tag is a tag of the library with the number of items carrying it.
type Tag struct {
	Tag      string
	Type     int
	NumItems int
}

// Tags returns the tags of the library's items, sorted by name.
// With key, only the tags of that item are returned.
func (s *Service) Tags(library, key string, f Filter) ([]Tag, int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.library(library)
	if err != nil {
		return nil, 0, 0, err
	}

	var records []*Record
	if key != "" {
		r, err := s.record(library, model.KindItem, key)
		if err != nil {
			return nil, 0, 0, err
		}
		records = []*Record{r}
	} else {
		if records, err = s.records(library, model.KindItem); err != nil {
			return nil, 0, 0, err
		}
	}

	counts := map[Tag]int{}
	for _, r := range records {
		if r.Deleted() && key == "" {
			continue
		}
		for _, t := range r.Tags() {
			counts[Tag{Tag: t.Tag, Type: t.Type}]++
		}
	}

	tags := make([]Tag, 0, len(counts))
	for t, n := range counts {
		t.NumItems = n
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Tag != tags[j].Tag {
			return tags[i].Tag < tags[j].Tag
		}
		return tags[i].Type < tags[j].Type
	})

	total := len(tags)
	if f.Start >= len(tags) {
		return []Tag{}, total, l.Version, nil
	}
	tags = tags[f.Start:]
	if f.Limit > 0 && f.Limit < len(tags) {
		tags = tags[:f.Limit]
	}
	return tags, total, l.Version, nil
}

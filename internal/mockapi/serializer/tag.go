package serializer

import (
	"net/url"

	"github.com/mdouchement/zotero/internal/mockapi/service"
)

// Tag serializes the render of a tag.
func Tag(base, library string, t service.Tag) map[string]any {
	return map[string]any{
		"tag": t.Tag,
		"links": map[string]any{
			"self": link(base+"/"+library+"/tags/"+url.PathEscape(t.Tag), "application/json"),
		},
		"meta": map[string]any{
			"type":     t.Type,
			"numItems": t.NumItems,
		},
	}
}

// Tags serializes the render of tags.
func Tags(base, library string, tags []service.Tag) []map[string]any {
	r := make([]map[string]any, len(tags))
	for i, t := range tags {
		r[i] = Tag(base, library, t)
	}
	return r
}

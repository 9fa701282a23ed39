package serializer

import (
	"strconv"
	"strings"

	"github.com/mdouchement/zotero/internal/mockapi/service"
	"github.com/mdouchement/zotero/internal/model"
)

// Library serializes the library block of an envelope.
func Library(base, library string) map[string]any {
	kind, id, _ := strings.Cut(library, "/")

	r := map[string]any{
		"type": strings.TrimSuffix(kind, "s"),
		"id":   id,
		"name": "",
		"links": map[string]any{
			"alternate": link(base+"/"+library, "text/html"),
		},
	}
	if n, err := strconv.Atoi(id); err == nil {
		r["id"] = n
	}
	return r
}

// Object serializes the envelope of an item or a collection.
func Object(base, library string, r *service.Record) map[string]any {
	resource := "items"
	meta := map[string]any{}
	if r.Kind == model.KindCollection {
		resource = "collections"
	} else {
		if summary := CreatorSummary(r); summary != "" {
			meta["creatorSummary"] = summary
		}
		if year := service.Year(r.String("date")); year != "" {
			meta["parsedDate"] = year
		}
	}

	return map[string]any{
		"key":     r.Key,
		"version": r.Version,
		"library": Library(base, library),
		"links": map[string]any{
			"self": link(base+"/"+library+"/"+resource+"/"+r.Key, "application/json"),
		},
		"meta": meta,
		"data": r.Data,
	}
}

// Objects serializes the envelopes of several items or collections.
func Objects(base, library string, records []*service.Record) []map[string]any {
	objects := make([]map[string]any, len(records))
	for i, r := range records {
		objects[i] = Object(base, library, r)
	}
	return objects
}

// WriteResult serializes the response of a multi-object write.
func WriteResult(base, library string, result *service.WriteResult) map[string]any {
	successful := map[string]any{}
	for index, r := range result.Successful {
		successful[index] = Object(base, library, r)
	}

	return map[string]any{
		"successful": successful,
		"success":    result.Success,
		"unchanged":  result.Unchanged,
		"failed":     result.Failed,
	}
}

// CreatorSummary returns the short author line of an item (e.g. "Hawking and Mlodinow").
func CreatorSummary(r *service.Record) string {
	raw, _ := r.Data["creators"].([]any)
	var names []string
	for _, v := range raw {
		c, _ := v.(map[string]any)
		if c == nil {
			continue
		}
		name, _ := c["lastName"].(string)
		if name == "" {
			name, _ = c["name"].(string)
		}
		if name != "" {
			names = append(names, name)
		}
	}

	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	}
	return names[0] + " et al."
}

func link(href, kind string) map[string]any {
	return map[string]any{
		"href": href,
		"type": kind,
	}
}

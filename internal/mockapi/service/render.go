package service

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"sort"
	"strings"
	"unicode"

	"github.com/mdouchement/zotero/internal/apierror"
	"github.com/pkg/errors"
)

type style struct {
	numeric bool
	entry   func(r *Record) string
}

var styles = map[string]style{
	"apa":                                    {entry: authorDate},
	"harvard-cite-them-right":                {entry: authorDate},
	"chicago-note-bibliography":              {entry: note},
	"modern-language-association":            {entry: note},
	"ieee":                                   {numeric: true, entry: numbered},
	"nature":                                 {numeric: true, entry: numbered},
	"vancouver":                              {numeric: true, entry: numbered},
	"american-medical-association":           {numeric: true, entry: numbered},
	"american-political-science-association": {entry: authorDate},
}

// Bibliography renders the records as an HTML bibliography in the given style.
func Bibliography(records []*Record, name string) (string, error) {
	st, ok := styles[name]
	if !ok {
		return "", apierror.Newf(http.StatusBadRequest, "Invalid style '%s'", name)
	}

	records = append([]*Record(nil), records...)
	if !st.numeric {
		sort.SliceStable(records, func(i, j int) bool {
			a, b := strings.ToLower(firstCreator(records[i])), strings.ToLower(firstCreator(records[j]))
			if a != b {
				return a < b
			}
			return strings.ToLower(title(records[i])) < strings.ToLower(title(records[j]))
		})
	}

	var b strings.Builder
	b.WriteString(`<div class="csl-bib-body" style="line-height: 1.35; padding-left: 1em; text-indent:-1em;">` + "\n")
	for i, r := range records {
		b.WriteString(`  <div class="csl-entry">`)
		if st.numeric {
			fmt.Fprintf(&b, `<div class="csl-left-margin">[%d]</div><div class="csl-right-inline">%s</div>`, i+1, st.entry(r))
		} else {
			b.WriteString(st.entry(r))
		}
		b.WriteString("</div>\n")
	}
	b.WriteString("</div>")
	return b.String(), nil
}

func authorDate(r *Record) string {
	names := people(r, func(first, last string) string {
		if first == "" {
			return last
		}
		return last + ", " + initials(first)
	})

	var b strings.Builder
	b.WriteString(html.EscapeString(join(names, ", ", ", &amp; ")))
	fmt.Fprintf(&b, " (%s). ", orNoDate(Year(r.String("date"))))
	fmt.Fprintf(&b, "<i>%s</i>.", html.EscapeString(sentence(r.String("title"))))
	if p := r.String("publisher"); p != "" {
		fmt.Fprintf(&b, " %s.", html.EscapeString(p))
	}
	return strings.TrimSpace(b.String())
}

func note(r *Record) string {
	names := people(r, func(first, last string) string {
		if first == "" {
			return last
		}
		return last + ", " + first
	})

	var b strings.Builder
	if len(names) > 0 {
		b.WriteString(html.EscapeString(join(names, ", ", ", and ")) + ". ")
	}
	fmt.Fprintf(&b, "<i>%s</i>.", html.EscapeString(r.String("title")))

	var tail []string
	if p := r.String("publisher"); p != "" {
		tail = append(tail, html.EscapeString(p))
	}
	if y := Year(r.String("date")); y != "" {
		tail = append(tail, y)
	}
	if len(tail) > 0 {
		b.WriteString(" " + strings.Join(tail, ", ") + ".")
	}
	return b.String()
}

func numbered(r *Record) string {
	names := people(r, func(first, last string) string {
		if first == "" {
			return last
		}
		return initials(first) + " " + last
	})

	var b strings.Builder
	if len(names) > 0 {
		b.WriteString(html.EscapeString(join(names, ", ", " and ")) + ", ")
	}
	fmt.Fprintf(&b, "<i>%s</i>.", html.EscapeString(r.String("title")))

	var tail []string
	if p := r.String("publisher"); p != "" {
		tail = append(tail, html.EscapeString(p))
	}
	if y := Year(r.String("date")); y != "" {
		tail = append(tail, y)
	}
	if len(tail) > 0 {
		b.WriteString(" " + strings.Join(tail, ", ") + ".")
	}
	return b.String()
}

// Export renders the records in a bibliographic export format.
func Export(records []*Record, library, format string) ([]byte, error) {
	switch format {
	case "bibtex":
		return []byte(bibtex(records, false)), nil
	case "biblatex":
		return []byte(bibtex(records, true)), nil
	case "ris":
		return []byte(ris(records)), nil
	case "csljson":
		return csljson(records, library)
	}
	return nil, apierror.Newf(http.StatusBadRequest, "Invalid 'format' value '%s'", format)
}

var bibtexTypes = map[string]string{
	"book":            "book",
	"bookSection":     "incollection",
	"journalArticle":  "article",
	"magazineArticle": "article",
	"conferencePaper": "inproceedings",
	"thesis":          "phdthesis",
	"report":          "techreport",
}

func bibtex(records []*Record, latex bool) string {
	var b strings.Builder
	for i, r := range records {
		if i > 0 {
			b.WriteString("\n")
		}

		kind, ok := bibtexTypes[r.String("itemType")]
		if !ok {
			kind = "misc"
		}
		if latex && kind == "phdthesis" {
			kind = "thesis"
		}

		fmt.Fprintf(&b, "@%s{%s,\n", kind, citationKey(r))
		field := func(name, value string) {
			if value != "" {
				fmt.Fprintf(&b, "\t%s = {%s},\n", name, value)
			}
		}
		field("title", r.String("title"))
		field("author", strings.Join(people(r, func(first, last string) string {
			if first == "" {
				return last
			}
			return last + ", " + first
		}), " and "))
		if latex {
			field("date", Year(r.String("date")))
			field("journaltitle", r.String("publicationTitle"))
		} else {
			field("year", Year(r.String("date")))
			field("journal", r.String("publicationTitle"))
		}
		field("publisher", r.String("publisher"))
		field("url", r.String("url"))
		field("abstract", r.String("abstractNote"))
		b.WriteString("}\n")
	}
	return b.String()
}

var risTypes = map[string]string{
	"book":            "BOOK",
	"bookSection":     "CHAP",
	"journalArticle":  "JOUR",
	"magazineArticle": "MGZN",
	"conferencePaper": "CONF",
	"thesis":          "THES",
	"report":          "RPRT",
	"webpage":         "ELEC",
}

func ris(records []*Record) string {
	var b strings.Builder
	for _, r := range records {
		kind, ok := risTypes[r.String("itemType")]
		if !ok {
			kind = "GEN"
		}

		field := func(tag, value string) {
			if value != "" {
				fmt.Fprintf(&b, "%s  - %s\r\n", tag, value)
			}
		}
		field("TY", kind)
		field("TI", r.String("title"))
		for _, name := range people(r, func(first, last string) string {
			if first == "" {
				return last
			}
			return last + ", " + first
		}) {
			field("AU", name)
		}
		field("PY", Year(r.String("date")))
		field("PB", r.String("publisher"))
		field("T2", r.String("publicationTitle"))
		field("UR", r.String("url"))
		field("AB", r.String("abstractNote"))
		for _, tag := range tagNames(r) {
			field("KW", tag)
		}
		b.WriteString("ER  - \r\n\r\n")
	}
	return b.String()
}

var cslTypes = map[string]string{
	"book":            "book",
	"bookSection":     "chapter",
	"journalArticle":  "article-journal",
	"magazineArticle": "article-magazine",
	"conferencePaper": "paper-conference",
	"thesis":          "thesis",
	"report":          "report",
	"webpage":         "webpage",
}

func csljson(records []*Record, library string) ([]byte, error) {
	items := make([]M, 0, len(records))
	for _, r := range records {
		kind, ok := cslTypes[r.String("itemType")]
		if !ok {
			kind = "document"
		}

		item := M{
			"id":   library + "/" + r.Key,
			"type": kind,
		}
		if t := r.String("title"); t != "" {
			item["title"] = t
		}
		if p := r.String("publisher"); p != "" {
			item["publisher"] = p
		}
		if u := r.String("url"); u != "" {
			item["URL"] = u
		}
		if y := Year(r.String("date")); y != "" {
			item["issued"] = M{"date-parts": [][]string{{y}}}
		}

		var authors []M
		raw, _ := r.Data["creators"].([]any)
		for _, v := range raw {
			c, _ := v.(map[string]any)
			if c == nil {
				continue
			}
			if name, _ := c["name"].(string); name != "" {
				authors = append(authors, M{"literal": name})
				continue
			}
			family, _ := c["lastName"].(string)
			given, _ := c["firstName"].(string)
			authors = append(authors, M{"family": family, "given": given})
		}
		if len(authors) > 0 {
			item["author"] = authors
		}

		items = append(items, item)
	}

	payload, err := json.Marshal(M{"items": items})
	return payload, errors.Wrap(err, "could not serialize csljson")
}

// people formats the creators of the record.
func people(r *Record, format func(first, last string) string) []string {
	raw, _ := r.Data["creators"].([]any)
	names := make([]string, 0, len(raw))
	for _, v := range raw {
		c, _ := v.(map[string]any)
		if c == nil {
			continue
		}
		if name, _ := c["name"].(string); name != "" {
			names = append(names, name)
			continue
		}
		first, _ := c["firstName"].(string)
		last, _ := c["lastName"].(string)
		if last == "" && first == "" {
			continue
		}
		names = append(names, format(first, last))
	}
	return names
}

func initials(first string) string {
	var parts []string
	for _, name := range strings.Fields(first) {
		for _, r := range name {
			parts = append(parts, string(unicode.ToUpper(r))+".")
			break
		}
	}
	return strings.Join(parts, " ")
}

func join(names []string, sep, last string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	}
	return strings.Join(names[:len(names)-1], sep) + last + names[len(names)-1]
}

func sentence(s string) string {
	if s == "" {
		return s
	}
	words := strings.Fields(s)
	for i := 1; i < len(words); i++ {
		if strings.ToUpper(words[i]) != words[i] {
			words[i] = strings.ToLower(words[i])
		}
	}
	return strings.Join(words, " ")
}

func orNoDate(y string) string {
	if y == "" {
		return "n.d."
	}
	return y
}

func citationKey(r *Record) string {
	var parts []string
	if raw, _ := r.Data["creators"].([]any); len(raw) > 0 {
		if c, _ := raw[0].(map[string]any); c != nil {
			last, _ := c["lastName"].(string)
			if last == "" {
				last, _ = c["name"].(string)
			}
			parts = append(parts, keyword(last))
		}
	}
	for _, w := range strings.Fields(r.String("title")) {
		w = keyword(w)
		if len(w) > 3 {
			parts = append(parts, w)
			break
		}
	}
	if y := Year(r.String("date")); y != "" {
		parts = append(parts, y)
	}

	key := strings.Join(nonEmpty(parts), "_")
	if key == "" {
		return strings.ToLower(r.Key)
	}
	return key
}

func keyword(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, s)
}

func nonEmpty(values []string) []string {
	kept := values[:0]
	for _, v := range values {
		if v != "" {
			kept = append(kept, v)
		}
	}
	return kept
}

package libzot

import (
	"context"
	"html"
	"net/http"
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/microcosm-cc/bluemonday"
	"github.com/pkg/errors"
)

// Bibliography output formats.
const (
	RenderHTML     = "html"
	RenderText     = "text"
	RenderMarkdown = "markdown"
)

// DefaultStyle is the citation style used when none is given.
const DefaultStyle = "chicago-note-bibliography"

// RenderOptions configures the rendering of a bibliography.
type RenderOptions struct {
	// Style is a CSL style name (e.g. apa, modern-language-association), DefaultStyle when empty.
	// Unknown styles are reported by the server.
	Style string
	// Format is RenderHTML (default), RenderText or RenderMarkdown.
	Format string
	// Locale is a CSL locale (e.g. en-US, fr-FR).
	Locale string
}

func (c *client) Render(ctx context.Context, keys []string, opts RenderOptions) (string, error) {
	if len(keys) == 0 {
		return "", invalidArgument("no item to render")
	}
	if len(keys) > MaxObjectsPerWrite {
		return "", invalidArgument("cannot render more than %d items at once", MaxObjectsPerWrite)
	}
	for _, key := range keys {
		if err := validateKey(key); err != nil {
			return "", err
		}
	}

	switch opts.Format {
	case "":
		opts.Format = RenderHTML
	case RenderHTML, RenderText, RenderMarkdown:
	default:
		return "", invalidArgument("unknown render format %q", opts.Format)
	}
	if opts.Style == "" {
		opts.Style = DefaultStyle
	}

	query := url.Values{
		"format":  {"bib"},
		"style":   {opts.Style},
		"itemKey": {strings.Join(keys, ",")},
	}
	if opts.Locale != "" {
		query.Set("locale", opts.Locale)
	}

	r, err := c.library.build(operation{method: http.MethodGet, resource: "items", query: query})
	if err != nil {
		return "", err
	}
	r.header.Set("Accept", "text/html")

	res, err := c.execute(ctx, r)
	if err != nil {
		return "", err
	}

	return renderBibliography(string(res.body), opts.Format)
}

// renderBibliography converts the HTML bibliography of the API to the given format.
func renderBibliography(bib, format string) (string, error) {
	switch format {
	case RenderText:
		text := html.UnescapeString(bluemonday.StrictPolicy().Sanitize(bib))

		var lines []string
		for _, line := range strings.Split(text, "\n") {
			if line = strings.Join(strings.Fields(line), " "); line != "" {
				lines = append(lines, line)
			}
		}
		return strings.Join(lines, "\n"), nil
	case RenderMarkdown:
		out, err := md.NewConverter("", true, nil).ConvertString(bib)
		return strings.TrimSpace(out), errors.Wrap(err, "could not convert bibliography to markdown")
	default:
		return bib, nil
	}
}

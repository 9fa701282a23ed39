package libzot

import (
	"bytes"
	"context"
	"net/http"
	"net/url"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Export formats.
const (
	ExportBibTeX           = "bibtex"
	ExportBibLaTeX         = "biblatex"
	ExportBookmarks        = "bookmarks"
	ExportCOinS            = "coins"
	ExportCSLJSON          = "csljson"
	ExportCSV              = "csv"
	ExportMODS             = "mods"
	ExportRefer            = "refer"
	ExportRDFBibliontology = "rdf_bibliontology"
	ExportRDFDublinCore    = "rdf_dc"
	ExportRDFZotero        = "rdf_zotero"
	ExportRIS              = "ris"
	ExportTEI              = "tei"
	ExportWikipedia        = "wikipedia"
)

// ExportFormats lists the supported export formats.
var ExportFormats = []string{
	ExportBibTeX, ExportBibLaTeX, ExportBookmarks, ExportCOinS, ExportCSLJSON, ExportCSV, ExportMODS,
	ExportRefer, ExportRDFBibliontology, ExportRDFDublinCore, ExportRDFZotero, ExportRIS, ExportTEI, ExportWikipedia,
}

// ExportParams selects the items to export and the format.
type ExportParams struct {
	Format string
	ListParams
}

// Validate checks the parameters before any request is sent.
func (p ExportParams) Validate() error {
	formats := make([]any, 0, len(ExportFormats))
	for _, f := range ExportFormats {
		formats = append(formats, f)
	}

	return validation.ValidateStruct(&p,
		validation.Field(&p.Format, validation.Required, validation.In(formats...)),
	)
}

func (c *client) Export(ctx context.Context, params ExportParams) (string, error) {
	if err := params.Validate(); err != nil {
		return "", validationError(err)
	}

	r, err := c.library.build(operation{
		method:   http.MethodGet,
		resource: "items",
		params:   &params.ListParams,
		query:    url.Values{"format": {params.Format}},
	})
	if err != nil {
		return "", err
	}
	r.header.Set("Accept", "*/*")

	var pages [][]byte
	fetched := 0
	for r != nil {
		res, err := c.execute(ctx, r)
		if err != nil {
			return "", err
		}
		pages = append(pages, res.body)

		link := nextLink(res.header)
		if link == "" {
			break
		}

		remaining := 0
		if params.Limit > 0 {
			fetched += pageSize(params.Limit - fetched)
			if remaining = params.Limit - fetched; remaining <= 0 {
				break
			}
		}

		if r, err = c.follow(link, remaining); err != nil {
			return "", err
		}
	}

	if params.Format == ExportCSLJSON && len(pages) > 1 {
		return mergeCSLJSON(pages)
	}

	var out [][]byte
	for _, page := range pages {
		if page = bytes.TrimRight(page, "\n"); len(page) > 0 {
			out = append(out, page)
		}
	}
	if len(out) == 0 {
		return "", nil
	}
	return string(bytes.Join(out, []byte("\n"))) + "\n", nil
}

package mockapi

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/labstack/echo/v4"
	"github.com/mdouchement/zotero/internal/apierror"
	"github.com/mdouchement/zotero/internal/mockapi/serializer"
	"github.com/mdouchement/zotero/internal/mockapi/service"
	"github.com/mdouchement/zotero/internal/model"
)

// defaultLimit is the page size when no limit is requested.
const defaultLimit = 25

var sortFields = []any{
	"dateAdded", "dateModified", "title", "creator", "itemType", "date",
}

// listParams are the query parameters of listings.
type listParams struct {
	Format         string   `query:"format"`
	Style          string   `query:"style"`
	Locale         string   `query:"locale"`
	Limit          int      `query:"limit"`
	Start          int      `query:"start"`
	Query          string   `query:"q"`
	QueryMode      string   `query:"qmode"`
	ItemType       string   `query:"itemType"`
	Tags           []string `query:"tag"`
	IncludeTrashed int      `query:"includeTrashed"`
	ItemKey        string   `query:"itemKey"`
	Sort           string   `query:"sort"`
	Direction      string   `query:"direction"`
	Since          int      `query:"since"`
}

func (p listParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Limit, validation.Min(0)),
		validation.Field(&p.Start, validation.Min(0)),
		validation.Field(&p.Since, validation.Min(0)),
		validation.Field(&p.QueryMode, validation.In(service.QueryModeTitleCreatorYear, service.QueryModeEverything)),
		validation.Field(&p.Sort, validation.In(sortFields...)),
		validation.Field(&p.Direction, validation.In("asc", "desc")),
	)
}

// bindList binds and checks the listing parameters.
func (h *handler) bindList(c echo.Context) (listParams, error) {
	var p listParams
	if err := c.Bind(&p); err != nil {
		return p, err
	}
	if err := p.Validate(); err != nil {
		return p, apierror.New(http.StatusBadRequest, err.Error())
	}

	switch {
	case p.Limit == 0:
		p.Limit = defaultLimit
	case p.Limit > h.pageLimit:
		p.Limit = h.pageLimit
	}
	return p, nil
}

// filter completes f with the listing parameters.
func (p listParams) filter(f service.Filter) service.Filter {
	f.Query = p.Query
	f.QueryMode = p.QueryMode
	f.ItemType = p.ItemType
	f.Tags = p.Tags
	f.IncludeTrashed = f.IncludeTrashed || p.IncludeTrashed == 1
	f.Since = p.Since
	f.Sort = p.Sort
	f.Direction = p.Direction
	f.Start = p.Start
	f.Limit = p.Limit
	if p.ItemKey != "" {
		f.ItemKeys = strings.Split(p.ItemKey, ",")
	}
	return f
}

// notModified renders a 304 when the library did not change since the version given by the client.
func notModified(c echo.Context, version int) (bool, error) {
	since := c.Request().Header.Get("If-Modified-Since-Version")
	if since == "" {
		return false, nil
	}

	v, err := strconv.Atoi(since)
	if err != nil {
		return false, apierror.New(http.StatusBadRequest, "Invalid If-Modified-Since-Version value")
	}
	if version > v {
		return false, nil
	}

	c.Response().Header().Set("Last-Modified-Version", strconv.Itoa(version))
	return true, c.NoContent(http.StatusNotModified)
}

// paginated sets the pagination headers of a listing page.
func paginated(c echo.Context, start, limit, count, total, version int) {
	header := c.Response().Header()
	header.Set("Total-Results", strconv.Itoa(total))
	header.Set("Last-Modified-Version", strconv.Itoa(version))

	if limit <= 0 || total == 0 {
		return
	}

	page := func(start int) string {
		u := url.URL{
			Scheme: c.Scheme(),
			Host:   c.Request().Host,
			Path:   c.Request().URL.Path,
		}
		q := c.QueryParams()
		q.Del("key")
		q.Set("limit", strconv.Itoa(limit))
		if start > 0 {
			q.Set("start", strconv.Itoa(start))
		} else {
			q.Del("start")
		}
		u.RawQuery = q.Encode()
		return u.String()
	}

	var links []string
	if start > 0 {
		links = append(links, fmt.Sprintf(`<%s>; rel="first"`, page(0)))
		links = append(links, fmt.Sprintf(`<%s>; rel="prev"`, page(max(start-limit, 0))))
	}
	if start+count < total {
		links = append(links, fmt.Sprintf(`<%s>; rel="next"`, page(start+count)))
	}
	links = append(links, fmt.Sprintf(`<%s>; rel="last"`, page((total-1)/limit*limit)))
	header.Set("Link", strings.Join(links, ", "))
}

// exportTypes are the content types of the export formats.
var exportTypes = map[string]string{
	"bibtex":   "application/x-bibtex",
	"biblatex": "application/x-bibtex",
	"ris":      "application/x-research-info-systems",
	"csljson":  "application/vnd.citationstyles.csl+json",
}

// render renders a listing of records in the requested format.
func (h *handler) render(c echo.Context, kind string, f service.Filter) error {
	p, err := h.bindList(c)
	if err != nil {
		return err
	}
	library := currentLibrary(c)
	f = p.filter(f)

	switch p.Format {
	case "keys", "versions", "bib":
		if p.Format == "bib" && kind != model.KindItem {
			return apierror.New(http.StatusBadRequest, "Invalid 'format' value 'bib'")
		}
		// Unpaginated formats.
		f.Start = 0
		f.Limit = 0
	}

	page, err := h.svc.List(library, kind, f)
	if err != nil {
		return err
	}
	if ok, err := notModified(c, page.Version); ok || err != nil {
		return err
	}

	switch p.Format {
	case "", "json":
		paginated(c, f.Start, f.Limit, len(page.Records), page.Total, page.Version)
		return c.JSON(http.StatusOK, serializer.Objects(baseURL(c), library, page.Records))
	case "keys":
		keys := make([]string, 0, len(page.Records))
		for _, r := range page.Records {
			keys = append(keys, r.Key)
		}
		c.Response().Header().Set("Last-Modified-Version", strconv.Itoa(page.Version))
		return c.String(http.StatusOK, strings.Join(keys, "\n")+"\n")
	case "versions":
		versions := make(map[string]int, len(page.Records))
		for _, r := range page.Records {
			versions[r.Key] = r.Version
		}
		c.Response().Header().Set("Last-Modified-Version", strconv.Itoa(page.Version))
		return c.JSON(http.StatusOK, versions)
	case "bib":
		style := p.Style
		if style == "" {
			style = "chicago-note-bibliography"
		}
		bib, err := service.Bibliography(page.Records, style)
		if err != nil {
			return err
		}
		c.Response().Header().Set("Last-Modified-Version", strconv.Itoa(page.Version))
		return c.HTML(http.StatusOK, bib)
	}

	payload, err := service.Export(page.Records, library, p.Format)
	if err != nil {
		return err
	}
	paginated(c, f.Start, f.Limit, len(page.Records), page.Total, page.Version)
	return c.Blob(http.StatusOK, exportTypes[p.Format], payload)
}

package mockapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/zotero/internal/apierror"
	"github.com/mdouchement/zotero/internal/mockapi/serializer"
	"github.com/mdouchement/zotero/internal/mockapi/service"
)

// tag contains all tag handlers.
type tag struct {
	handler
}

// List renders the tags of the library.
func (h *tag) List(c echo.Context) error {
	return h.list(c, "")
}

// Item renders the tags of an item.
func (h *tag) Item(c echo.Context) error {
	return h.list(c, c.Param("key"))
}

func (h *tag) list(c echo.Context, key string) error {
	p, err := h.bindList(c)
	if err != nil {
		return err
	}

	library := currentLibrary(c)
	tags, total, version, err := h.svc.Tags(library, key, service.Filter{Start: p.Start, Limit: p.Limit})
	if err != nil {
		return err
	}
	if ok, err := notModified(c, version); ok || err != nil {
		return err
	}

	paginated(c, p.Start, p.Limit, len(tags), total, version)
	return c.JSON(http.StatusOK, serializer.Tags(baseURL(c), library, tags))
}

// Delete removes tags from all the items of the library.
// The tag parameter holds the tag names separated by " || ".
func (h *tag) Delete(c echo.Context) error {
	var names []string
	for _, param := range c.QueryParams()["tag"] {
		for _, name := range strings.Split(param, "||") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
	}
	if len(names) == 0 {
		return apierror.New(http.StatusBadRequest, "No tags specified")
	}
	if len(names) > maxWriteObjects {
		return apierror.Newf(http.StatusRequestEntityTooLarge, "Only %d tags can be deleted in a single request", maxWriteObjects)
	}

	expected, err := ifUnmodifiedSince(c)
	if err != nil {
		return err
	}
	if expected == 0 {
		return apierror.New(http.StatusPreconditionRequired, "If-Unmodified-Since-Version not provided")
	}

	version, err := h.svc.DeleteTags(currentLibrary(c), names, expected)
	if err != nil {
		return err
	}

	c.Response().Header().Set("Last-Modified-Version", strconv.Itoa(version))
	return c.NoContent(http.StatusNoContent)
}

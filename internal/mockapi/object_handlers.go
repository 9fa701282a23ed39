package mockapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/zotero/internal/apierror"
	"github.com/mdouchement/zotero/internal/mockapi/serializer"
	"github.com/mdouchement/zotero/internal/mockapi/service"
)

// maxWriteObjects is the maximum number of objects of a multi-object write.
const maxWriteObjects = 50

// objects contains the handlers shared by items and collections.
type objects struct {
	handler
	kind string
}

///// Show
////
//

// Show renders a single object.
func (h *objects) Show(c echo.Context) error {
	library := currentLibrary(c)

	r, err := h.svc.Get(library, h.kind, c.Param("key"))
	if err != nil {
		return err
	}

	c.Response().Header().Set("Last-Modified-Version", strconv.Itoa(r.Version))
	return c.JSON(http.StatusOK, serializer.Object(baseURL(c), library, r))
}

// List renders all the objects of the library.
func (h *objects) List(c echo.Context) error {
	return h.render(c, h.kind, service.Filter{})
}

// Top renders the top-level objects of the library.
func (h *objects) Top(c echo.Context) error {
	return h.render(c, h.kind, service.Filter{Top: true})
}

///// Create
////
//

// Create creates or updates up to 50 objects.
func (h *objects) Create(c echo.Context) error {
	var objects []service.M
	if err := c.Bind(&objects); err != nil {
		return err
	}
	if len(objects) == 0 {
		return apierror.New(http.StatusBadRequest, "No objects provided")
	}
	if len(objects) > maxWriteObjects {
		return apierror.Newf(http.StatusRequestEntityTooLarge, "Only %d objects can be saved in a single request", maxWriteObjects)
	}

	expected, err := ifUnmodifiedSince(c)
	if err != nil {
		return err
	}

	library := currentLibrary(c)
	result, err := h.svc.Create(library, h.kind, objects, expected, c.Request().Header.Get("Zotero-Write-Token"))
	if err != nil {
		return err
	}

	c.Response().Header().Set("Last-Modified-Version", strconv.Itoa(result.Version))
	return c.JSON(http.StatusOK, serializer.WriteResult(baseURL(c), library, result))
}

///// Update
////
//

// Replace replaces the whole data of an object.
func (h *objects) Replace(c echo.Context) error {
	return h.update(c, h.svc.Replace)
}

// Patch updates the given fields of an object.
func (h *objects) Patch(c echo.Context) error {
	return h.update(c, h.svc.Patch)
}

func (h *objects) update(c echo.Context, write func(library, kind, key string, data service.M, expected int) (int, error)) error {
	var data service.M
	if err := c.Bind(&data); err != nil {
		return err
	}

	key := c.Param("key")
	if k, ok := data["key"].(string); ok && k != key {
		return apierror.New(http.StatusBadRequest, "Key in body does not match the URL")
	}

	expected, err := ifUnmodifiedSince(c)
	if err != nil {
		return err
	}

	version, err := write(currentLibrary(c), h.kind, key, data, expected)
	if err != nil {
		return err
	}

	c.Response().Header().Set("Last-Modified-Version", strconv.Itoa(version))
	return c.NoContent(http.StatusNoContent)
}

///// Delete
////
//

// Delete deletes an object. The current version of the object is required.
func (h *objects) Delete(c echo.Context) error {
	expected, err := ifUnmodifiedSince(c)
	if err != nil {
		return err
	}
	if expected == 0 {
		return apierror.New(http.StatusPreconditionRequired, "If-Unmodified-Since-Version not provided")
	}

	version, err := h.svc.Delete(currentLibrary(c), h.kind, c.Param("key"), expected)
	if err != nil {
		return err
	}

	c.Response().Header().Set("Last-Modified-Version", strconv.Itoa(version))
	return c.NoContent(http.StatusNoContent)
}

// ifUnmodifiedSince returns the If-Unmodified-Since-Version header, 0 when missing.
func ifUnmodifiedSince(c echo.Context) (int, error) {
	v := c.Request().Header.Get("If-Unmodified-Since-Version")
	if v == "" {
		return 0, nil
	}

	version, err := strconv.Atoi(v)
	if err != nil || version < 0 {
		return 0, apierror.New(http.StatusBadRequest, "Invalid If-Unmodified-Since-Version value")
	}
	return version, nil
}

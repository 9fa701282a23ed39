package mockapi

import (
	"github.com/labstack/echo/v4"
	"github.com/mdouchement/zotero/internal/mockapi/service"
	"github.com/mdouchement/zotero/internal/model"
)

// item contains all item handlers.
type item struct {
	objects
}

// Trash renders the items in the trash.
func (h *item) Trash(c echo.Context) error {
	return h.render(c, model.KindItem, service.Filter{IncludeTrashed: true, Trashed: true})
}

// Children renders the child items of an item.
func (h *item) Children(c echo.Context) error {
	return h.render(c, model.KindItem, service.Filter{Parent: c.Param("key")})
}

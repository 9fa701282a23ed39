package mockapi

import (
	"github.com/labstack/echo/v4"
	"github.com/mdouchement/zotero/internal/mockapi/service"
	"github.com/mdouchement/zotero/internal/model"
)

// collection contains all collection handlers.
type collection struct {
	objects
}

// Subcollections renders the subcollections of a collection.
func (h *collection) Subcollections(c echo.Context) error {
	return h.render(c, model.KindCollection, service.Filter{Parent: c.Param("key")})
}

// Items renders the items of a collection.
func (h *collection) Items(c echo.Context) error {
	return h.render(c, model.KindItem, service.Filter{Collection: c.Param("key")})
}

// TopItems renders the top-level items of a collection.
func (h *collection) TopItems(c echo.Context) error {
	return h.render(c, model.KindItem, service.Filter{Collection: c.Param("key"), Top: true})
}

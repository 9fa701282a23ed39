package middlewares

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/zotero/internal/apierror"
	"github.com/mdouchement/zotero/internal/model"
)

// CurrentLibraryContextKey is the key to retrieve the current library from echo.Context.
const CurrentLibraryContextKey = "current_library"

// APIVersion sets the API version header on every response.
func APIVersion(version string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set("Zotero-API-Version", version)
			return next(c)
		}
	}
}

// APIKey checks the key of the request.
// The key is read from the Zotero-API-Key header, a bearer token or the key query parameter.
func APIKey(key string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			provided := c.Request().Header.Get("Zotero-API-Key")
			if provided == "" {
				if token, ok := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer "); ok {
					provided = token
				}
			}
			if provided == "" {
				provided = c.QueryParam("key")
			}

			if provided == "" {
				return apierror.New(http.StatusForbidden, "Forbidden")
			}
			if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
				return apierror.New(http.StatusForbidden, "Invalid key")
			}

			return next(c)
		}
	}
}

// Library checks that the requested library is the one served and stores it into echo.Context.
func Library(kind, id string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch c.Param("ltype") {
			case "users", "groups":
			default:
				return apierror.New(http.StatusNotFound, "Not found")
			}

			if c.Param("ltype") != kind || c.Param("lid") != id {
				return apierror.New(http.StatusForbidden, "Forbidden")
			}

			c.Set(CurrentLibraryContextKey, model.LibraryID(kind, id))
			return next(c)
		}
	}
}

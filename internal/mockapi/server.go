package mockapi

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mdouchement/zotero/internal/database"
	"github.com/mdouchement/zotero/internal/mockapi/middlewares"
	"github.com/mdouchement/zotero/internal/mockapi/service"
	"github.com/mdouchement/zotero/internal/model"
)

// DefaultPageLimit is the maximum number of results of a page.
const DefaultPageLimit = 100

// A Controller is an Iversion Of Control pattern used to init the mockapi package.
type Controller struct {
	Version  string
	Database database.Client
	// APIKey is the only accepted key.
	APIKey string
	// LibraryType is users or groups.
	LibraryType string
	LibraryID   string
	// PageLimit caps the limit parameter of listings.
	PageLimit int
	// Quiet disables the request logger.
	Quiet bool
}

// EchoEngine instantiates the mock Web API server.
func EchoEngine(ctrl Controller) *echo.Echo {
	if ctrl.PageLimit <= 0 {
		ctrl.PageLimit = DefaultPageLimit
	}

	engine := echo.New()
	engine.HideBanner = true
	engine.Use(middleware.Recover())
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.DefaultCORSConfig))
	engine.Use(middleware.Gzip())

	if !ctrl.Quiet {
		engine.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
			Format: "[${status}] ${method} ${uri} (${bytes_in}) ${latency_human}\n",
		}))
	}
	engine.Use(middlewares.APIVersion("3"))
	engine.Binder = middlewares.NewBinder()
	// Error handler
	engine.HTTPErrorHandler = middlewares.HTTPErrorHandler

	engine.Pre(middleware.Rewrite(map[string]string{
		"/": "/version",
	}))

	////////////
	// Router //
	////////////

	svc := service.New(ctrl.Database)
	h := handler{
		svc:       svc,
		pageLimit: ctrl.PageLimit,
	}

	router := engine.Group("")
	restricted := router.Group("/:ltype/:lid")
	restricted.Use(middlewares.APIKey(ctrl.APIKey))
	restricted.Use(middlewares.Library(ctrl.LibraryType, ctrl.LibraryID))

	// generic handlers
	//
	router.GET("/version", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"version": ctrl.Version,
		})
	})

	//
	// item handlers
	//
	item := &item{objects{handler: h, kind: model.KindItem}}
	restricted.GET("/items", item.List)
	restricted.GET("/items/top", item.Top)
	restricted.GET("/items/trash", item.Trash)
	restricted.POST("/items", item.Create)
	restricted.GET("/items/:key", item.Show)
	restricted.PUT("/items/:key", item.Replace)
	restricted.PATCH("/items/:key", item.Patch)
	restricted.DELETE("/items/:key", item.Delete)
	restricted.GET("/items/:key/children", item.Children)

	//
	// collection handlers
	//
	collection := &collection{objects{handler: h, kind: model.KindCollection}}
	restricted.GET("/collections", collection.List)
	restricted.GET("/collections/top", collection.Top)
	restricted.POST("/collections", collection.Create)
	restricted.GET("/collections/:key", collection.Show)
	restricted.PUT("/collections/:key", collection.Replace)
	restricted.PATCH("/collections/:key", collection.Patch)
	restricted.DELETE("/collections/:key", collection.Delete)
	restricted.GET("/collections/:key/collections", collection.Subcollections)
	restricted.GET("/collections/:key/items", collection.Items)
	restricted.GET("/collections/:key/items/top", collection.TopItems)

	//
	// tag handlers
	//
	tag := &tag{h}
	restricted.GET("/tags", tag.List)
	restricted.DELETE("/tags", tag.Delete)
	restricted.GET("/items/:key/tags", tag.Item)

	//
	// file handlers
	//
	file := &file{h}
	restricted.GET("/items/:key/file", file.Download)
	restricted.POST("/items/:key/file", file.Authorize)
	router.POST("/upload/:upload", file.Receive)

	return engine
}

// PrintRoutes prints the Echo engin exposed routes.
func PrintRoutes(e *echo.Echo) {
	ignored := map[string]bool{
		"":   true,
		".":  true,
		"/*": true,
	}

	routes := e.Routes()
	sort.Slice(routes, func(i int, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})

	fmt.Println("Routes:")
	for _, route := range routes {
		if ignored[route.Path] || route.Method == echo.RouteNotFound {
			continue
		}
		fmt.Printf("%6s %s\n", route.Method, route.Path)
	}
}

// handler holds the dependencies shared by all handlers.
type handler struct {
	svc       *service.Service
	pageLimit int
}

func currentLibrary(c echo.Context) string {
	library, ok := c.Get(middlewares.CurrentLibraryContextKey).(string)
	if ok {
		return library
	}
	return ""
}

// baseURL returns the public address of the server as seen by the client.
func baseURL(c echo.Context) string {
	return c.Scheme() + "://" + c.Request().Host
}

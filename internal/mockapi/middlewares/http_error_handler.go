package middlewares

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gofrs/uuid"
	"github.com/labstack/echo/v4"
	"github.com/mdouchement/zotero/internal/apierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// HTTPErrorHandler is a middleware that renders errors as plain text, like the Web API does.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	switch e := errors.Cause(err).(type) {
	case *echo.HTTPError:
		if e.Internal != nil {
			logrus.Debugf("Error [ECHO]: %s", e.Internal)
		}
		_ = c.String(e.Code, fmt.Sprint(e.Message))
	case *apierror.Error:
		if e.HTTPCode >= http.StatusInternalServerError {
			internal(err, c)
			return
		}

		if e.Version > 0 {
			c.Response().Header().Set("Last-Modified-Version", strconv.Itoa(e.Version))
		}
		_ = c.String(e.HTTPCode, e.Message)
	default:
		internal(err, c)
	}
}

func internal(err error, c echo.Context) {
	id := uuid.Must(uuid.NewV4()).String()
	logrus.WithField("id", id).Errorf("Error: %s", err)

	_ = c.String(http.StatusInternalServerError, fmt.Sprintf("An error occurred (id: %s)", id))
}

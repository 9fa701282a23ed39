package mockapi

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/zotero/internal/apierror"
	"github.com/mdouchement/zotero/internal/mockapi/service"
	"github.com/pkg/errors"
)

// maxUploadSize is the maximum size of an uploaded body.
const maxUploadSize = 256 << 20

// file contains all attachment file handlers.
type file struct {
	handler
}

type fileParams struct {
	MD5         string `form:"md5"`
	Filename    string `form:"filename"`
	ContentType string `form:"contentType"`
	Size        int64  `form:"filesize"`
	MTime       int64  `form:"mtime"`
	Upload      string `form:"upload"`
}

///// Download
////
//

// Download renders the content of an attachment.
func (h *file) Download(c echo.Context) error {
	f, err := h.svc.File(currentLibrary(c), c.Param("key"))
	if err != nil {
		return err
	}

	header := c.Response().Header()
	header.Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", f.Filename))
	header.Set("ETag", f.MD5)
	return c.Blob(http.StatusOK, f.ContentType, f.Content)
}

///// Upload
////
//

// Authorize handles both steps of the upload protocol on the attachment:
// the authorization request and the registration of the uploaded content.
func (h *file) Authorize(c echo.Context) error {
	var params fileParams
	if err := c.Bind(&params); err != nil {
		return err
	}

	library := currentLibrary(c)
	key := c.Param("key")

	if params.Upload != "" {
		version, err := h.svc.RegisterUpload(library, key, params.Upload)
		if err != nil {
			return err
		}

		c.Response().Header().Set("Last-Modified-Version", strconv.Itoa(version))
		return c.NoContent(http.StatusNoContent)
	}

	auth, err := h.svc.AuthorizeUpload(library, key, service.UploadRequest{
		MD5:         params.MD5,
		Filename:    params.Filename,
		ContentType: params.ContentType,
		Size:        params.Size,
		MTime:       params.MTime,
		IfNoneMatch: c.Request().Header.Get("If-None-Match"),
		IfMatch:     c.Request().Header.Get("If-Match"),
	}, baseURL(c))
	if err != nil {
		return err
	}

	if auth.Exists {
		return c.JSON(http.StatusOK, echo.Map{"exists": 1})
	}
	return c.JSON(http.StatusOK, auth)
}

// Receive stores the body sent to an upload URL. The API key is not required.
func (h *file) Receive(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxUploadSize+1))
	if err != nil {
		return errors.Wrap(err, "could not read upload")
	}
	if len(body) > maxUploadSize {
		return apierror.New(http.StatusRequestEntityTooLarge, "File too large")
	}

	if err = h.svc.ReceiveUpload(c.Param("upload"), body); err != nil {
		return err
	}
	return c.NoContent(http.StatusCreated)
}

package service

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"net/http"

	"github.com/gofrs/uuid"
	"github.com/mdouchement/zotero/internal/apierror"
	"github.com/mdouchement/zotero/internal/model"
	"github.com/pkg/errors"
)

type (
	// An UploadRequest asks for the authorization of uploading the file of an attachment.
	UploadRequest struct {
		MD5         string
		Filename    string
		ContentType string
		Size        int64
		MTime       int64
		IfNoneMatch string
		IfMatch     string
	}

	// An Authorization tells the client where and how to upload a file.
	Authorization struct {
		Exists      bool   `json:"-"`
		URL         string `json:"url"`
		ContentType string `json:"contentType"`
		Prefix      string `json:"prefix"`
		Suffix      string `json:"suffix"`
		UploadKey   string `json:"uploadKey"`
	}
)

// AuthorizeUpload registers a pending upload for the attachment.
// baseURL is the public address of the mock API.
func (s *Service) AuthorizeUpload(library, key string, req UploadRequest, baseURL string) (*Authorization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.record(library, model.KindItem, key)
	if err != nil {
		return nil, err
	}
	if r.String("itemType") != "attachment" {
		return nil, apierror.New(http.StatusBadRequest, "Item is not an attachment")
	}
	if mode := r.String("linkMode"); mode != "imported_file" && mode != "imported_url" {
		return nil, apierror.New(http.StatusBadRequest, "Cannot upload file for linked file/URL attachment item")
	}
	switch {
	case req.MD5 == "":
		return nil, apierror.New(http.StatusBadRequest, "'md5' not provided")
	case req.Filename == "":
		return nil, apierror.New(http.StatusBadRequest, "'filename' not provided")
	case req.Size < 0:
		return nil, apierror.New(http.StatusBadRequest, "Invalid 'filesize'")
	}

	existing, err := s.db.FindFile(library, key)
	if err != nil && !s.db.IsNotFound(err) {
		return nil, errors.Wrap(err, "could not get access to database")
	}
	exists := err == nil

	switch {
	case exists && existing.MD5 == req.MD5:
		return &Authorization{Exists: true}, nil
	case req.IfNoneMatch == "" && req.IfMatch == "":
		return nil, apierror.New(http.StatusPreconditionRequired, "If-Match/If-None-Match header not provided")
	case req.IfNoneMatch == "*" && exists:
		return nil, apierror.New(http.StatusPreconditionFailed, "If-None-Match: * set but file exists")
	case req.IfMatch != "" && (!exists || existing.MD5 != req.IfMatch):
		return nil, apierror.New(http.StatusPreconditionFailed, "ETag does not match current version of file")
	}

	id := uuid.Must(uuid.NewV4())
	uploadKey := hex.EncodeToString(id.Bytes())
	boundary := "---------------------------" + uploadKey[:16]

	contentType := req.ContentType
	if contentType == "" {
		contentType = r.String("contentType")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	u := &model.Upload{
		Base:        model.Base{ID: uploadKey},
		Library:     library,
		Key:         key,
		MD5:         req.MD5,
		Filename:    req.Filename,
		ContentType: contentType,
		Size:        req.Size,
		MTime:       req.MTime,
		Prefix: "--" + boundary + "\r\n" +
			`Content-Disposition: form-data; name="file"; filename="` + req.Filename + `"` + "\r\n" +
			"Content-Type: " + contentType + "\r\n\r\n",
		Suffix: "\r\n--" + boundary + "--\r\n",
	}
	if err := s.db.Save(u); err != nil {
		return nil, err
	}

	return &Authorization{
		URL:         baseURL + "/upload/" + uploadKey,
		ContentType: "multipart/form-data; boundary=" + boundary,
		Prefix:      u.Prefix,
		Suffix:      u.Suffix,
		UploadKey:   uploadKey,
	}, nil
}

// ReceiveUpload stores the content sent to the upload URL.
func (s *Service) ReceiveUpload(uploadKey string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.upload(uploadKey)
	if err != nil {
		return err
	}

	if !bytes.HasPrefix(body, []byte(u.Prefix)) || !bytes.HasSuffix(body, []byte(u.Suffix)) || len(body) < len(u.Prefix)+len(u.Suffix) {
		return apierror.New(http.StatusBadRequest, "Malformed upload body")
	}

	content := body[len(u.Prefix) : len(body)-len(u.Suffix)]
	if int64(len(content)) != u.Size {
		return apierror.Newf(http.StatusBadRequest, "File size mismatch (expected %d, got %d)", u.Size, len(content))
	}

	u.Content = content
	u.Received = true
	return s.db.Save(u)
}

// RegisterUpload attaches an uploaded content to its attachment and returns the new library version.
func (s *Service) RegisterUpload(library, key, uploadKey string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.upload(uploadKey)
	if err != nil {
		return 0, err
	}
	if u.Library != library || u.Key != key {
		return 0, apierror.New(http.StatusBadRequest, "Upload key does not match the attachment")
	}
	if !u.Received {
		return 0, apierror.New(http.StatusBadRequest, "File not uploaded")
	}

	sum := md5.Sum(u.Content)
	if hex.EncodeToString(sum[:]) != u.MD5 {
		return 0, apierror.New(http.StatusPreconditionFailed, "File hash does not match")
	}

	r, err := s.record(library, model.KindItem, key)
	if err != nil {
		return 0, err
	}

	f := &model.File{
		Base:        model.Base{ID: model.ObjectID(library, model.KindItem, key)},
		Library:     library,
		Key:         key,
		MD5:         u.MD5,
		Filename:    u.Filename,
		ContentType: u.ContentType,
		Size:        u.Size,
		MTime:       u.MTime,
		Content:     u.Content,
	}
	if err = s.db.Save(f); err != nil {
		return 0, err
	}
	if err = s.db.Delete(u); err != nil {
		return 0, err
	}

	r.Data["md5"] = u.MD5
	r.Data["mtime"] = u.MTime
	r.Data["filename"] = u.Filename
	return s.commit(library, r)
}

// File returns the stored content of an attachment.
func (s *Service) File(library, key string) (*model.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.record(library, model.KindItem, key); err != nil {
		return nil, err
	}

	f, err := s.db.FindFile(library, key)
	if err != nil {
		if s.db.IsNotFound(err) {
			return nil, apierror.New(http.StatusNotFound, "Not found")
		}
		return nil, errors.Wrap(err, "could not get access to database")
	}
	return f, nil
}

func (s *Service) upload(uploadKey string) (*model.Upload, error) {
	u, err := s.db.FindUpload(uploadKey)
	if err != nil {
		if s.db.IsNotFound(err) {
			return nil, apierror.New(http.StatusNotFound, "Upload not found")
		}
		return nil, errors.Wrap(err, "could not get access to database")
	}
	return u, nil
}

package database

import (
	"reflect"
	"time"

	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/codec/msgpack"
	"github.com/asdine/storm/v3/q"
	"github.com/gofrs/uuid"
	"github.com/mdouchement/zotero/internal/model"
	"github.com/pkg/errors"
)

type strm struct {
	db *storm.DB
}

// StormCodec is the format used to store data in the database.
var StormCodec = storm.Codec(msgpack.Codec)

var models = []any{
	&model.Library{},
	&model.Object{},
	&model.File{},
	&model.Upload{},
}

// StormInit initializes Storm database.
func StormInit(database string) error {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	for _, m := range models {
		if err := db.Init(m); err != nil {
			return errors.Wrapf(err, "could not init %T index", m)
		}
	}
	return nil
}

// StormReIndex reindex Storm database.
func StormReIndex(database string) error {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	for _, m := range models {
		if err := db.ReIndex(m); err != nil {
			return errors.Wrapf(err, "could not ReIndex %T", m)
		}
	}
	return nil
}

// StormOpen returns a new Storm database connection.
func StormOpen(database string) (Client, error) {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return nil, errors.Wrap(err, "could not get database connection")
	}

	return &strm{
		db: db,
	}, nil
}

// Save inserts or updates the entry in database with the given model.
func (c *strm) Save(m model.Model) error {
	t := time.Now().UTC()
	m.SetUpdatedAt(t)

	if m.GetID() == "" {
		m.SetID(uuid.Must(uuid.NewV4()).String())
	}
	if m.GetCreatedAt() == nil {
		m.SetCreatedAt(t)
	}

	return errors.Wrap(c.db.Save(m), "could not save the model")
}

// Delete deletes the entry in database with the given model.
func (c *strm) Delete(m model.Model) error {
	return errors.Wrap(c.db.DeleteStruct(m), "could not delete the model")
}

// Close the database.
func (c *strm) Close() error {
	return c.db.Close()
}

// IsNotFound returns true if err is nil or a not found error.
func (c *strm) IsNotFound(err error) bool {
	return errors.Cause(err) == storm.ErrNotFound
}

// FindLibrary returns the library for the given id (e.g. users/475425).
func (c *strm) FindLibrary(id string) (*model.Library, error) {
	var library model.Library
	if err := c.db.One("ID", id, &library); err != nil {
		return nil, errors.Wrap(err, "find library by id")
	}
	return &library, nil
}

// FindObject returns the object of the given kind and key.
func (c *strm) FindObject(library, kind, key string) (*model.Object, error) {
	var object model.Object
	if err := c.db.One("ID", model.ObjectID(library, kind, key), &object); err != nil {
		return nil, errors.Wrapf(err, "find %s by key", kind)
	}
	return &object, nil
}

// FindObjects returns all the objects of the given kind.
func (c *strm) FindObjects(library, kind string) ([]*model.Object, error) {
	objects := make([]*model.Object, 0)
	err := c.db.Select(q.Eq("Library", library), q.Eq("Kind", kind)).Find(&objects)
	if err != nil && !c.IsNotFound(err) {
		return nil, errors.Wrapf(err, "could not find %ss", kind)
	}
	return objects, nil
}

// FindFile returns the file of the given attachment.
func (c *strm) FindFile(library, key string) (*model.File, error) {
	var file model.File
	if err := c.db.One("ID", model.ObjectID(library, model.KindItem, key), &file); err != nil {
		return nil, errors.Wrap(err, "find file by attachment key")
	}
	return &file, nil
}

// FindUpload returns the pending upload for the given upload key.
func (c *strm) FindUpload(uploadKey string) (*model.Upload, error) {
	var upload model.Upload
	if err := c.db.One("ID", uploadKey, &upload); err != nil {
		return nil, errors.Wrap(err, "find upload by key")
	}
	return &upload, nil
}

// FindUploads returns the pending uploads of the given attachment.
func (c *strm) FindUploads(library, key string) ([]*model.Upload, error) {
	uploads := make([]*model.Upload, 0)
	err := c.db.Select(q.Eq("Library", library), q.Eq("Key", key)).Find(&uploads)
	if err != nil && !c.IsNotFound(err) {
		return nil, errors.Wrap(err, "could not find uploads")
	}
	return uploads, nil
}

// Select runs a parsed SELECT statement.
func (c *strm) Select(sel *Selection) (any, error) {
	table, ok := tables[sel.Table]
	if !ok {
		return nil, errors.Errorf("unknown table %q", sel.Table)
	}
	record, records := table()

	query := c.db.Select(sel.Matcher)
	if sel.Skip > 0 {
		query = query.Skip(sel.Skip)
	}
	if sel.Limit > 0 {
		query = query.Limit(sel.Limit)
	}
	if len(sel.OrderBy) > 0 {
		query = query.OrderBy(sel.OrderBy...)
	}
	if sel.Reversed {
		query = query.Reverse()
	}

	if sel.Count {
		n, err := query.Count(record)
		if err != nil && !c.IsNotFound(err) {
			return nil, errors.Wrap(err, "could not count records")
		}
		return n, nil
	}

	if err := query.Find(records); err != nil && !c.IsNotFound(err) {
		return nil, errors.Wrapf(err, "could not select %s", sel.Table)
	}
	return reflect.ValueOf(records).Elem().Interface(), nil
}

package database

import (
	"github.com/mdouchement/zotero/internal/model"
)

type (
	// A Client can interacts with the database.
	Client interface {
		// Save inserts or updates the entry in database with the given model.
		Save(m model.Model) error
		// Delete deletes the entry in database with the given model.
		Delete(m model.Model) error
		// Close the database.
		Close() error
		// IsNotFound returns true if err is a not found error.
		IsNotFound(err error) bool
		// Select runs a parsed SELECT statement.
		// It returns the number of matching records for a count or the records themselves.
		Select(sel *Selection) (any, error)

		LibraryInteraction
		ObjectInteraction
		FileInteraction
	}

	// A LibraryInteraction defines all the methods used to interact with a library record.
	LibraryInteraction interface {
		// FindLibrary returns the library for the given id (e.g. users/475425).
		FindLibrary(id string) (*model.Library, error)
	}

	// An ObjectInteraction defines all the methods used to interact with item and collection records.
	ObjectInteraction interface {
		// FindObject returns the object of the given kind and key.
		FindObject(library, kind, key string) (*model.Object, error)
		// FindObjects returns all the objects of the given kind.
		FindObjects(library, kind string) ([]*model.Object, error)
	}

	// A FileInteraction defines all the methods used to interact with attachment contents.
	FileInteraction interface {
		// FindFile returns the file of the given attachment.
		FindFile(library, key string) (*model.File, error)
		// FindUpload returns the pending upload for the given upload key.
		FindUpload(uploadKey string) (*model.Upload, error)
		// FindUploads returns the pending uploads of the given attachment.
		FindUploads(library, key string) ([]*model.Upload, error)
	}
)

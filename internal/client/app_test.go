package client_test

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mdouchement/zotero/internal/client"
	"github.com/mdouchement/zotero/internal/database"
	"github.com/mdouchement/zotero/internal/mockapi"
	"github.com/mdouchement/zotero/pkg/libzot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApp_Items(t *testing.T) {
	app, out, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	err := app.CreateItem(ctx, strings.NewReader(`{
		"itemType": "book",
		"title": "A Brief History of Time",
		"date": "1988",
		"publisher": "Bantam",
		"creators": [{"creatorType": "author", "firstName": "Stephen", "lastName": "Hawking"}]
	}`))
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Created item ")
	key := createdKey(t, out)

	out.Reset()
	require.NoError(t, app.Items(ctx, client.ListOptions{}))
	assert.Contains(t, out.String(), "KEY")
	assert.Contains(t, out.String(), key)
	assert.Contains(t, out.String(), "Stephen Hawking")
	assert.Contains(t, out.String(), "A Brief History of Time")

	out.Reset()
	require.NoError(t, app.Item(ctx, key, true))
	assert.Contains(t, out.String(), `"publisher": "Bantam"`)

	out.Reset()
	err = app.UpdateItem(ctx, key, strings.NewReader(`{"itemType": "book", "title": "A Briefer History of Time"}`), 0)
	require.NoError(t, err)
	assert.Equal(t, "Updated item "+key+" (version 2)\n", out.String())

	err = app.UpdateItem(ctx, key, strings.NewReader(`{"itemType": "book", "title": "Stale"}`), 1)
	assert.Equal(t, client.ExitVersionConflict, client.ExitCode(err))

	err = app.UpdateItem(ctx, key, strings.NewReader(`not json`), 0)
	assert.Equal(t, client.ExitInvalidArgument, client.ExitCode(err))

	out.Reset()
	require.NoError(t, app.TrashItem(ctx, key, 0))
	assert.Equal(t, "Moved item "+key+" to the trash (version 3)\n", out.String())

	out.Reset()
	require.NoError(t, app.Items(ctx, client.ListOptions{}))
	assert.NotContains(t, out.String(), key)

	out.Reset()
	require.NoError(t, app.DeleteItem(ctx, key, 0))
	assert.Equal(t, "Deleted item "+key+"\n", out.String())

	err = app.Item(ctx, key, false)
	assert.Equal(t, client.ExitNotFound, client.ExitCode(err))
}

func TestApp_Collections(t *testing.T) {
	app, out, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, app.CreateCollection(ctx, "Physics", ""))
	physics := createdKey(t, out)

	out.Reset()
	require.NoError(t, app.CreateCollection(ctx, "Cosmology", physics))
	cosmology := createdKey(t, out)

	out.Reset()
	require.NoError(t, app.RenameCollection(ctx, cosmology, "Astrophysics"))
	assert.Contains(t, out.String(), "Renamed collection "+cosmology)

	out.Reset()
	require.NoError(t, app.Collections(ctx, physics, client.ListOptions{}))
	assert.Contains(t, out.String(), "Astrophysics")
	assert.NotContains(t, out.String(), "Physics ")

	out.Reset()
	require.NoError(t, app.Collections(ctx, "", client.ListOptions{Top: true}))
	assert.Contains(t, out.String(), "Physics")
	assert.NotContains(t, out.String(), "Astrophysics")

	out.Reset()
	require.NoError(t, app.DeleteCollection(ctx, physics, 0))
	assert.Equal(t, "Deleted collection "+physics+"\n", out.String())

	out.Reset()
	require.NoError(t, app.Collections(ctx, "", client.ListOptions{JSON: true}))
	assert.Equal(t, "[]\n", out.String())
}

func TestApp_Tags(t *testing.T) {
	app, out, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, app.CreateItem(ctx, strings.NewReader(`{"itemType": "book", "title": "Tagged"}`)))
	key := createdKey(t, out)

	out.Reset()
	require.NoError(t, app.AddTags(ctx, key, []string{"physics", "to-read"}, 0))
	assert.Equal(t, "Tagged item "+key+" with physics, to-read (version 2)\n", out.String())

	out.Reset()
	require.NoError(t, app.RemoveTags(ctx, key, []string{"to-read"}, 0))
	assert.Equal(t, "Removed to-read from item "+key+" (version 3)\n", out.String())

	out.Reset()
	require.NoError(t, app.Tags(ctx, key, client.ListOptions{}))
	assert.Contains(t, out.String(), "physics")
	assert.NotContains(t, out.String(), "to-read")

	out.Reset()
	require.NoError(t, app.Tags(ctx, "", client.ListOptions{}))
	assert.Contains(t, out.String(), "physics")
	assert.Contains(t, out.String(), "manual")

	out.Reset()
	require.NoError(t, app.DeleteTags(ctx, []string{"physics"}, 0))
	assert.Equal(t, "Deleted physics (library version 4)\n", out.String())

	out.Reset()
	require.NoError(t, app.Tags(ctx, "", client.ListOptions{JSON: true}))
	assert.Equal(t, "[]\n", out.String())
}

func TestApp_Attachments(t *testing.T) {
	app, out, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, app.CreateItem(ctx, strings.NewReader(`{"itemType": "book", "title": "Parent"}`)))
	parent := createdKey(t, out)

	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("some notes\n"), 0o644))

	out.Reset()
	require.NoError(t, app.Upload(ctx, parent, path, ""))
	assert.Contains(t, out.String(), "Uploaded notes.txt as attachment ")
	fields := strings.Fields(out.String())
	require.GreaterOrEqual(t, len(fields), 5)
	attachment := fields[4]

	out.Reset()
	require.NoError(t, app.Attachments(ctx, parent, client.ListOptions{}))
	assert.Contains(t, out.String(), attachment)
	assert.Contains(t, out.String(), "notes.txt")

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	require.NoError(t, os.Remove(path))
	out.Reset()
	require.NoError(t, app.Download(ctx, attachment, ""))
	assert.Equal(t, "Downloaded notes.txt (11 B)\n", out.String())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "some notes\n", string(content))

	err = app.Download(ctx, parent, "")
	assert.Equal(t, client.ExitInvalidArgument, client.ExitCode(err))
}

func TestApp_CiteAndExport(t *testing.T) {
	app, out, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, app.CreateItem(ctx, strings.NewReader(`{
		"itemType": "book",
		"title": "A Brief History of Time",
		"date": "1988",
		"publisher": "Bantam",
		"creators": [{"creatorType": "author", "firstName": "Stephen", "lastName": "Hawking"}]
	}`)))
	key := createdKey(t, out)

	out.Reset()
	require.NoError(t, app.Cite(ctx, []string{key}, libzot.RenderOptions{Style: "apa", Format: libzot.RenderText}))
	assert.Equal(t, "Hawking, S. (1988). A brief history of time. Bantam.\n", out.String())

	err := app.Cite(ctx, nil, libzot.RenderOptions{})
	assert.Equal(t, client.ExitInvalidArgument, client.ExitCode(err))

	out.Reset()
	require.NoError(t, app.Export(ctx, libzot.ExportParams{Format: libzot.ExportBibTeX}, ""))
	assert.Contains(t, out.String(), "@book{hawking_brief_1988,")

	output := filepath.Join(t.TempDir(), "library.ris")
	out.Reset()
	require.NoError(t, app.Export(ctx, libzot.ExportParams{Format: libzot.ExportRIS}, output))
	assert.Equal(t, "Exported items to "+output+"\n", out.String())

	content, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(content), "TY  - BOOK")
}

func TestApp_Duplicates(t *testing.T) {
	app, out, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, app.Duplicates(ctx, client.ListOptions{}))
	assert.Equal(t, "No duplicate found among 0 items\n", out.String())

	for _, title := range []string{"The Selfish Gene", "the selfish gene!", "Cosmos"} {
		require.NoError(t, app.CreateItem(ctx, strings.NewReader(`{"itemType": "book", "date": "1976", "title": "`+title+`"}`)))
	}

	out.Reset()
	require.NoError(t, app.Duplicates(ctx, client.ListOptions{}))
	assert.Contains(t, out.String(), "The Selfish Gene")
	assert.Contains(t, out.String(), "the selfish gene!")
	assert.NotContains(t, out.String(), "Cosmos")
}

// createdKey returns the key printed by a create command.
func createdKey(t *testing.T, out *bytes.Buffer) string {
	fields := strings.Fields(out.String())
	require.GreaterOrEqual(t, len(fields), 3)
	return fields[2]
}

func setup(t *testing.T) (app *client.App, out *bytes.Buffer, cleanup func()) {
	tmpfile, err := os.CreateTemp("", "zotero.*.db")
	require.NoError(t, err)
	filename := tmpfile.Name()
	tmpfile.Close()

	require.NoError(t, database.StormInit(filename))
	db, err := database.StormOpen(filename)
	require.NoError(t, err)

	server := httptest.NewServer(mockapi.EchoEngine(mockapi.Controller{
		Version:     "test",
		Database:    db,
		APIKey:      "secret",
		LibraryType: libzot.LibraryTypeUser,
		LibraryID:   "475425",
		PageLimit:   2,
		Quiet:       true,
	}))

	logger := client.NewLogger(false, "")
	c, err := client.Config{APIKey: "secret", UserID: "475425", BaseURL: server.URL}.Client(libzot.WithLogger(logger))
	require.NoError(t, err)

	out = new(bytes.Buffer)
	app = &client.App{
		Client: c,
		Logger: logger,
		Out:    out,
		Err:    io.Discard,
	}

	return app, out, func() {
		server.Close()
		db.Close()
		os.Remove(filename)
	}
}

package libzot_test

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mdouchement/zotero/internal/database"
	"github.com/mdouchement/zotero/internal/mockapi"
	"github.com/mdouchement/zotero/pkg/libzot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	_, err := libzot.NewClient(libzot.Config{LibraryID: "475425"})
	assert.True(t, libzot.IsKind(err, libzot.KindConfiguration), err)

	_, err = libzot.NewClient(libzot.Config{APIKey: "secret"})
	assert.True(t, libzot.IsKind(err, libzot.KindConfiguration), err)

	_, err = libzot.NewClient(libzot.Config{APIKey: "secret", LibraryID: "475425", LibraryType: "teams"})
	assert.True(t, libzot.IsKind(err, libzot.KindConfiguration), err)

	_, err = libzot.NewClient(libzot.Config{APIKey: "secret", LibraryID: "475425", BaseURL: "api.zotero.org"})
	assert.True(t, libzot.IsKind(err, libzot.KindConfiguration), err)

	client, err := libzot.NewDefaultClient("secret", "475425")
	assert.NoError(t, err)
	assert.NotNil(t, client)
}

func TestClient_Authentication(t *testing.T) {
	_, base, cleanup := setup(t)
	defer cleanup()

	client, err := libzot.NewClient(libzot.Config{APIKey: "wrong", LibraryID: "475425", BaseURL: base}, libzot.WithRetryPolicy(fastRetries))
	require.NoError(t, err)

	_, err = client.Item(context.Background(), "ABCD2345")
	assert.True(t, libzot.IsKind(err, libzot.KindAuthentication), err)

	client, err = libzot.NewClient(libzot.Config{APIKey: "secret", LibraryID: "1", BaseURL: base}, libzot.WithRetryPolicy(fastRetries))
	require.NoError(t, err)

	_, err = client.Items(libzot.ListParams{}).All(context.Background())
	assert.True(t, libzot.IsKind(err, libzot.KindAuthentication), err)
}

func TestClient_Items(t *testing.T) {
	client, _, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	book := &libzot.Item{
		ItemType: libzot.ItemTypeBook,
		Title:    "A Brief History of Time",
		Date:     "1988",
		Creators: []libzot.Creator{{CreatorType: "author", FirstName: "Stephen", LastName: "Hawking"}},
		Tags:     []libzot.Tag{{Tag: "physics"}},
	}
	book.SetField("publisher", "Bantam")

	created, err := client.CreateItem(ctx, book)
	require.NoError(t, err)
	assert.Len(t, created.Key, 8)
	assert.Equal(t, 1, created.Version)
	assert.Equal(t, "A Brief History of Time", created.Title)
	assert.Equal(t, "Bantam", created.Field("publisher"))
	assert.NotEmpty(t, created.Field("dateAdded"))
	assert.Equal(t, "Stephen Hawking", created.Creators[0].String())
	assert.True(t, created.HasTag("physics"))

	fetched, err := client.Item(ctx, created.Key)
	require.NoError(t, err)
	assert.Equal(t, created.Key, fetched.Key)
	assert.Equal(t, created.Version, fetched.Version)
	assert.Equal(t, []string{"physics"}, fetched.TagNames())

	for _, title := range []string{"B", "C", "D", "E"} {
		_, err = client.CreateItem(ctx, &libzot.Item{ItemType: libzot.ItemTypeJournalArticle, Title: title})
		require.NoError(t, err)
	}

	// Pages of 2 items are followed transparently.
	it := client.Items(libzot.ListParams{Sort: "title", Direction: "asc"})
	items, err := it.All(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 5)
	assert.Equal(t, 5, it.Total())
	assert.Equal(t, 5, it.LastModifiedVersion())
	assert.Equal(t, "A Brief History of Time", items[0].Title)
	assert.Equal(t, "E", items[4].Title)

	items, err = client.Items(libzot.ListParams{Limit: 3, ItemType: libzot.ItemTypeJournalArticle}).All(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 3)

	items, err = client.Items(libzot.ListParams{Query: "hawking"}).All(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, created.Key, items[0].Key)

	items, err = client.Items(libzot.ListParams{Tags: []string{"physics"}}).All(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = client.Item(ctx, "MISSING2")
	assert.True(t, libzot.IsKind(err, libzot.KindNotFound), err)

	_, err = client.CreateItem(ctx, &libzot.Item{Title: "untyped"})
	assert.True(t, libzot.IsKind(err, libzot.KindInvalidArgument), err)
}

func TestClient_UpdateItem(t *testing.T) {
	client, _, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	item, err := client.CreateItem(ctx, &libzot.Item{ItemType: libzot.ItemTypeBook, Title: "Draft"})
	require.NoError(t, err)
	v1 := item.Version

	item.Title = "Final"
	updated, err := client.UpdateItem(ctx, item.Key, item, v1)
	require.NoError(t, err)
	assert.Greater(t, updated.Version, v1)
	assert.Equal(t, "Final", updated.Title)

	item.Title = "Stale"
	_, err = client.UpdateItem(ctx, item.Key, item, v1)
	require.True(t, libzot.IsKind(err, libzot.KindVersionConflict), err)
	e := libzot.AsError(err)
	assert.Equal(t, v1, e.ExpectedVersion)
	assert.Equal(t, updated.Version, e.ActualVersion)

	fetched, err := client.Item(ctx, item.Key)
	require.NoError(t, err)
	assert.Equal(t, "Final", fetched.Title)

	version, err := client.PatchItem(ctx, item.Key, map[string]any{"date": "2001"}, updated.Version)
	require.NoError(t, err)
	assert.Greater(t, version, updated.Version)

	fetched, err = client.Item(ctx, item.Key)
	require.NoError(t, err)
	assert.Equal(t, "Final", fetched.Title)
	assert.Equal(t, "2001", fetched.Date)
	assert.Equal(t, version, fetched.Version)

	_, err = client.PatchItem(ctx, item.Key, nil, 0)
	assert.True(t, libzot.IsKind(err, libzot.KindInvalidArgument), err)
}

func TestClient_DeleteItem(t *testing.T) {
	client, _, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	item, err := client.CreateItem(ctx, &libzot.Item{ItemType: libzot.ItemTypeBook, Title: "Ephemeral"})
	require.NoError(t, err)

	version, err := client.PatchItem(ctx, item.Key, map[string]any{"title": "Changed"}, item.Version)
	require.NoError(t, err)

	err = client.DeleteItem(ctx, item.Key, item.Version)
	assert.True(t, libzot.IsKind(err, libzot.KindVersionConflict), err)

	_, err = client.Item(ctx, item.Key)
	assert.NoError(t, err)

	err = client.DeleteItem(ctx, item.Key, 0)
	assert.True(t, libzot.IsKind(err, libzot.KindInvalidArgument), err)

	require.NoError(t, client.DeleteItem(ctx, item.Key, version))

	_, err = client.Item(ctx, item.Key)
	assert.True(t, libzot.IsKind(err, libzot.KindNotFound), err)
}

func TestClient_TrashItem(t *testing.T) {
	client, _, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	item, err := client.CreateItem(ctx, &libzot.Item{ItemType: libzot.ItemTypeBook, Title: "Trash me"})
	require.NoError(t, err)

	_, err = client.TrashItem(ctx, item.Key, item.Version)
	require.NoError(t, err)

	items, err := client.Items(libzot.ListParams{}).All(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 0)

	items, err = client.Items(libzot.ListParams{IncludeTrashed: true}).All(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].Deleted)
}

func TestClient_Children(t *testing.T) {
	client, _, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	parent, err := client.CreateItem(ctx, &libzot.Item{ItemType: libzot.ItemTypeBook, Title: "Parent"})
	require.NoError(t, err)

	for _, note := range []string{"<p>one</p>", "<p>two</p>", "<p>three</p>"} {
		_, err = client.CreateItem(ctx, &libzot.Item{ItemType: libzot.ItemTypeNote, Note: note, ParentItem: parent.Key})
		require.NoError(t, err)
	}

	children, err := client.Children(parent.Key, libzot.ListParams{}).All(ctx)
	require.NoError(t, err)
	assert.Len(t, children, 3)
	for _, child := range children {
		assert.Equal(t, parent.Key, child.ParentItem)
	}

	top, err := client.TopItems(libzot.ListParams{}).All(ctx)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, parent.Key, top[0].Key)
}

func TestClient_Tags(t *testing.T) {
	client, _, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	item, err := client.CreateItem(ctx, &libzot.Item{ItemType: libzot.ItemTypeBook, Title: "Tagged"})
	require.NoError(t, err)
	other, err := client.CreateItem(ctx, &libzot.Item{ItemType: libzot.ItemTypeBook, Title: "Other", Tags: []libzot.Tag{{Tag: "physics"}}})
	require.NoError(t, err)

	version, err := client.AddTags(ctx, item.Key, []string{"physics", "to-read"}, item.Version)
	require.NoError(t, err)
	assert.Greater(t, version, item.Version)

	// The read-modify-write is rejected when the item changed.
	_, err = client.AddTags(ctx, item.Key, []string{"later"}, item.Version)
	assert.True(t, libzot.IsKind(err, libzot.KindVersionConflict), err)

	tags, err := client.ItemTags(ctx, item.Key)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"physics", "to-read"}, names(tags))

	all, err := client.Tags(libzot.ListParams{}).All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "physics", all[0].Tag)
	assert.Equal(t, 2, all[0].NumItems)

	version, err = client.RemoveTags(ctx, item.Key, []string{"to-read"}, 0)
	require.NoError(t, err)

	fetched, err := client.Item(ctx, item.Key)
	require.NoError(t, err)
	assert.Equal(t, []string{"physics"}, fetched.TagNames())
	assert.Equal(t, version, fetched.Version)

	// Removing an absent tag does not write.
	require.NoError(t, client.UpdateTags(ctx, fetched, nil, []string{"absent"}))
	assert.Equal(t, version, fetched.Version)

	// Adding then removing a tag restores the previous tags.
	before, err := client.ItemTags(ctx, item.Key)
	require.NoError(t, err)
	_, err = client.AddTags(ctx, item.Key, []string{"quantum"}, 0)
	require.NoError(t, err)
	tags, err = client.ItemTags(ctx, item.Key)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"physics", "quantum"}, names(tags))

	version, err = client.RemoveTags(ctx, item.Key, []string{"quantum"}, 0)
	require.NoError(t, err)
	after, err := client.ItemTags(ctx, item.Key)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	_, err = client.DeleteTags(ctx, []string{"physics"}, 1)
	assert.True(t, libzot.IsKind(err, libzot.KindVersionConflict), err)

	library, err := client.DeleteTags(ctx, []string{"physics"}, version)
	require.NoError(t, err)
	assert.Greater(t, library, version)

	fetched, err = client.Item(ctx, other.Key)
	require.NoError(t, err)
	assert.Empty(t, fetched.Tags)

	_, err = client.AddTags(ctx, item.Key, []string{" "}, 0)
	assert.True(t, libzot.IsKind(err, libzot.KindInvalidArgument), err)
}

func TestClient_TagTypes(t *testing.T) {
	client, _, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	_, err := client.CreateItem(ctx, &libzot.Item{ItemType: libzot.ItemTypeBook, Title: "Manual", Tags: []libzot.Tag{{Tag: "foo"}}})
	require.NoError(t, err)
	_, err = client.CreateItem(ctx, &libzot.Item{ItemType: libzot.ItemTypeBook, Title: "Automatic", Tags: []libzot.Tag{{Tag: "foo", Type: libzot.TagTypeAutomatic}}})
	require.NoError(t, err)

	it := client.Tags(libzot.ListParams{})
	tags, err := it.All(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, 2, it.Total())
	assert.Equal(t, []string{"foo", "foo"}, names(tags))
	assert.ElementsMatch(t, []int{libzot.TagTypeManual, libzot.TagTypeAutomatic}, []int{tags[0].Type, tags[1].Type})
}

func TestClient_Collections(t *testing.T) {
	client, _, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	physics, err := client.CreateCollection(ctx, &libzot.Collection{Name: "Physics"})
	require.NoError(t, err)
	assert.Empty(t, physics.ParentCollection)

	cosmology, err := client.CreateCollection(ctx, &libzot.Collection{Name: "Cosmology", ParentCollection: physics.Key})
	require.NoError(t, err)
	assert.Equal(t, physics.Key, cosmology.ParentCollection)

	_, err = client.CreateItem(ctx, &libzot.Item{ItemType: libzot.ItemTypeBook, Title: "Cosmos", Collections: []string{cosmology.Key}})
	require.NoError(t, err)

	top, err := client.TopCollections(libzot.ListParams{}).All(ctx)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "Physics", top[0].Name)

	subs, err := client.Subcollections(physics.Key, libzot.ListParams{}).All(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "Cosmology", subs[0].Name)

	items, err := client.CollectionItems(cosmology.Key, libzot.ListParams{}).All(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Cosmos", items[0].Title)

	cosmology.Name = "Cosmology & Astrophysics"
	renamed, err := client.UpdateCollection(ctx, cosmology.Key, cosmology, cosmology.Version)
	require.NoError(t, err)
	assert.Greater(t, renamed.Version, cosmology.Version)

	fetched, err := client.Collection(ctx, cosmology.Key)
	require.NoError(t, err)
	assert.Equal(t, "Cosmology & Astrophysics", fetched.Name)
	assert.Equal(t, physics.Key, fetched.ParentCollection)

	err = client.DeleteCollection(ctx, physics.Key, physics.Version)
	require.NoError(t, err)

	collections, err := client.Collections(libzot.ListParams{}).All(ctx)
	require.NoError(t, err)
	assert.Empty(t, collections)

	items, err = client.Items(libzot.ListParams{}).All(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Empty(t, items[0].Collections)
}

func TestClient_Attachments(t *testing.T) {
	client, _, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	parent, err := client.CreateItem(ctx, &libzot.Item{ItemType: libzot.ItemTypeBook, Title: "Parent"})
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "paper.pdf")
	content := strings.Repeat("%PDF-1.4 fake content\n", 100)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	attachment, err := client.UploadAttachment(ctx, parent.Key, path, "")
	require.NoError(t, err)
	assert.Equal(t, libzot.ItemTypeAttachment, attachment.ItemType)
	assert.Equal(t, "application/pdf", attachment.ContentType)
	assert.Equal(t, "paper.pdf", attachment.Filename)
	assert.Len(t, attachment.MD5, 32)

	fetched, err := client.Item(ctx, attachment.Key)
	require.NoError(t, err)
	assert.Equal(t, attachment.MD5, fetched.MD5)
	assert.Equal(t, attachment.Version, fetched.Version)

	attachments, err := client.Attachments(parent.Key, libzot.ListParams{}).All(ctx)
	require.NoError(t, err)
	require.Len(t, attachments, 1)
	assert.True(t, attachments[0].IsAttachment())

	attachments, err = client.Attachments("", libzot.ListParams{}).All(ctx)
	require.NoError(t, err)
	assert.Len(t, attachments, 1)

	dest := filepath.Join(dir, "downloaded.pdf")
	n, err := client.DownloadAttachment(ctx, attachment.Key, dest)
	require.NoError(t, err)
	assert.EqualValues(t, len(content), n)

	downloaded, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, content, string(downloaded))

	// No file stored: the destination is not created.
	missing := filepath.Join(dir, "missing.pdf")
	_, err = client.DownloadAttachment(ctx, parent.Key, missing)
	assert.True(t, libzot.IsKind(err, libzot.KindNotFound), err)
	assert.NoFileExists(t, missing)

	_, err = client.UploadAttachment(ctx, parent.Key, filepath.Join(dir, "nope.pdf"), "")
	assert.True(t, libzot.IsKind(err, libzot.KindInvalidArgument), err)
}

func TestClient_Render(t *testing.T) {
	client, _, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	book, err := client.CreateItem(ctx, &libzot.Item{
		ItemType: libzot.ItemTypeBook,
		Title:    "A Brief History of Time",
		Date:     "1988",
		Creators: []libzot.Creator{{CreatorType: "author", FirstName: "Stephen", LastName: "Hawking"}},
	})
	require.NoError(t, err)

	html, err := client.Render(ctx, []string{book.Key}, libzot.RenderOptions{Style: "apa"})
	require.NoError(t, err)
	assert.Contains(t, html, `<div class="csl-entry">`)

	text, err := client.Render(ctx, []string{book.Key}, libzot.RenderOptions{Style: "apa", Format: libzot.RenderText})
	require.NoError(t, err)
	assert.Equal(t, "Hawking, S. (1988). A brief history of time.", text)

	markdown, err := client.Render(ctx, []string{book.Key}, libzot.RenderOptions{Style: "apa", Format: libzot.RenderMarkdown})
	require.NoError(t, err)
	assert.Contains(t, markdown, "_A brief history of time_")

	// Keys are opaque, unknown ones are reported by the server.
	_, err = client.Item(ctx, "abc123")
	assert.True(t, libzot.IsKind(err, libzot.KindNotFound), err)

	_, err = client.Render(ctx, nil, libzot.RenderOptions{})
	assert.True(t, libzot.IsKind(err, libzot.KindInvalidArgument), err)

	keys := make([]string, libzot.MaxObjectsPerWrite+1)
	for i := range keys {
		keys[i] = book.Key
	}
	_, err = client.Render(ctx, keys, libzot.RenderOptions{})
	assert.True(t, libzot.IsKind(err, libzot.KindInvalidArgument), err)

	_, err = client.Render(ctx, []string{book.Key}, libzot.RenderOptions{Format: "pdf"})
	assert.True(t, libzot.IsKind(err, libzot.KindInvalidArgument), err)

	_, err = client.Render(ctx, []string{book.Key}, libzot.RenderOptions{Style: "no-such-style"})
	assert.True(t, libzot.IsKind(err, libzot.KindInvalidArgument), err)
}

func TestClient_Export(t *testing.T) {
	client, _, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	out, err := client.Export(ctx, libzot.ExportParams{Format: libzot.ExportBibTeX})
	require.NoError(t, err)
	assert.Equal(t, "", out)

	for _, title := range []string{"Alpha", "Beta", "Gamma"} {
		_, err = client.CreateItem(ctx, &libzot.Item{ItemType: libzot.ItemTypeBook, Title: title, Date: "2020"})
		require.NoError(t, err)
	}

	out, err = client.Export(ctx, libzot.ExportParams{Format: libzot.ExportBibTeX})
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(out, "@book{"))

	out, err = client.Export(ctx, libzot.ExportParams{Format: libzot.ExportBibTeX, ListParams: libzot.ListParams{Limit: 1}})
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "@book{"))

	out, err = client.Export(ctx, libzot.ExportParams{Format: libzot.ExportCSLJSON})
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(out, `"type":"book"`))

	_, err = client.Export(ctx, libzot.ExportParams{Format: "docx"})
	assert.True(t, libzot.IsKind(err, libzot.KindInvalidArgument), err)
}

func names(tags []libzot.Tag) []string {
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Tag)
	}
	return names
}

// setup starts a mock Web API serving pages of 2 results.
func setup(t *testing.T) (client libzot.Client, base string, cleanup func()) {
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

	client, err = libzot.NewClient(libzot.Config{
		APIKey:    "secret",
		LibraryID: "475425",
		BaseURL:   server.URL,
	}, libzot.WithRetryPolicy(fastRetries))
	require.NoError(t, err)

	return client, server.URL, func() {
		server.Close()
		db.Close()
		os.Remove(filename)
	}
}

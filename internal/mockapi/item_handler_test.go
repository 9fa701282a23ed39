package mockapi_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/appleboy/gofight/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fastjson"
)

func TestRequestItems_Create(t *testing.T) {
	engine, _, r, cleanup := setup()
	defer cleanup()

	body := `[{"itemType":"book","title":"A Brief History of Time"},{"title":"untyped"}]`
	r.POST(prefix+"/items").SetHeader(write(gofight.H{"Zotero-Write-Token": "19a4f01ad623aa7214f82347e3711f56"})).SetBody(body).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
		assert.Equal(t, "1", (*httptest.ResponseRecorder)(r).Header().Get("Last-Modified-Version"))

		v := fastjson.MustParseBytes(r.Body.Bytes())
		assert.Equal(t, "A Brief History of Time", string(v.GetStringBytes("successful", "0", "data", "title")))
		assert.Equal(t, 1, v.GetInt("successful", "0", "version"))
		assert.Equal(t, "user", string(v.GetStringBytes("successful", "0", "library", "type")))
		assert.Len(t, string(v.GetStringBytes("success", "0")), 8)
		assert.Equal(t, http.StatusBadRequest, v.GetInt("failed", "1", "code"))
	})

	// Replayed write token.
	r.POST(prefix+"/items").SetHeader(write(gofight.H{"Zotero-Write-Token": "19a4f01ad623aa7214f82347e3711f56"})).SetBody(body).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusPreconditionFailed, r.Code)
	})

	r.POST(prefix+"/items").SetHeader(write(nil)).SetBody(`{"itemType":"book"}`).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusBadRequest, r.Code)
	})

	r.POST(prefix+"/items").SetHeader(write(nil)).SetBody(`[`+strings.Repeat(`{"itemType":"book"},`, 50)+`{"itemType":"book"}]`).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusRequestEntityTooLarge, r.Code)
	})

	r.POST(prefix+"/items").SetHeader(write(gofight.H{"If-Unmodified-Since-Version": "0"})).SetBody(`[{"itemType":"book"}]`).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
	})

	r.POST(prefix+"/items").SetHeader(write(gofight.H{"If-Unmodified-Since-Version": "1"})).SetBody(`[{"itemType":"book"}]`).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusPreconditionFailed, r.Code)
		assert.Equal(t, "2", (*httptest.ResponseRecorder)(r).Header().Get("Last-Modified-Version"))
	})
}

func TestRequestItems_Lifecycle(t *testing.T) {
	engine, _, r, cleanup := setup()
	defer cleanup()

	key := create(t, engine, "items", `[{"itemType":"book","title":"Draft"}]`)[0]

	r.GET(prefix+"/items/"+key).SetHeader(auth()).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
		assert.Equal(t, "1", (*httptest.ResponseRecorder)(r).Header().Get("Last-Modified-Version"))

		v := fastjson.MustParseBytes(r.Body.Bytes())
		assert.Equal(t, key, string(v.GetStringBytes("key")))
		assert.Equal(t, key, string(v.GetStringBytes("data", "key")))
		assert.Equal(t, "Draft", string(v.GetStringBytes("data", "title")))
	})

	r.PUT(prefix+"/items/"+key).SetHeader(write(gofight.H{"If-Unmodified-Since-Version": "1"})).SetBody(`{"itemType":"book","title":"Final"}`).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusNoContent, r.Code)
		assert.Equal(t, "2", (*httptest.ResponseRecorder)(r).Header().Get("Last-Modified-Version"))
	})

	r.PUT(prefix+"/items/"+key).SetHeader(write(gofight.H{"If-Unmodified-Since-Version": "1"})).SetBody(`{"itemType":"book","title":"Stale"}`).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusPreconditionFailed, r.Code)
		assert.Equal(t, "2", (*httptest.ResponseRecorder)(r).Header().Get("Last-Modified-Version"))
	})

	r.PUT(prefix+"/items/"+key).SetHeader(write(nil)).SetBody(`{"key":"ABCD2345","itemType":"book"}`).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusBadRequest, r.Code)
	})

	r.PATCH(prefix+"/items/"+key).SetHeader(write(gofight.H{"If-Unmodified-Since-Version": "2"})).SetBody(`{"tags":[{"tag":"physics"}]}`).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusNoContent, r.Code)
		assert.Equal(t, "3", (*httptest.ResponseRecorder)(r).Header().Get("Last-Modified-Version"))
	})

	r.DELETE(prefix+"/items/"+key).SetHeader(auth()).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusPreconditionRequired, r.Code)
	})

	r.DELETE(prefix+"/items/"+key).SetHeader(write(gofight.H{"If-Unmodified-Since-Version": "2"})).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusPreconditionFailed, r.Code)
	})

	r.GET(prefix+"/items/"+key).SetHeader(auth()).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
	})

	r.DELETE(prefix+"/items/"+key).SetHeader(write(gofight.H{"If-Unmodified-Since-Version": "3"})).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusNoContent, r.Code)
		assert.Equal(t, "4", (*httptest.ResponseRecorder)(r).Header().Get("Last-Modified-Version"))
	})

	r.GET(prefix+"/items/"+key).SetHeader(auth()).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusNotFound, r.Code)
		assert.Equal(t, "Not found", r.Body.String())
	})
}

func TestRequestItems_Pagination(t *testing.T) {
	engine, _, r, cleanup := setup()
	defer cleanup()

	create(t, engine, "items", `[
		{"itemType":"book","title":"A"},
		{"itemType":"book","title":"B"},
		{"itemType":"book","title":"C"},
		{"itemType":"book","title":"D"},
		{"itemType":"book","title":"E"}
	]`)

	r.GET(prefix+"/items?limit=2&sort=title").SetHeader(auth()).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
		assert.Equal(t, "5", (*httptest.ResponseRecorder)(r).Header().Get("Total-Results"))
		assert.Equal(t, "1", (*httptest.ResponseRecorder)(r).Header().Get("Last-Modified-Version"))
		assert.Equal(t, []string{"A", "B"}, titles(t, r.Body.Bytes()))

		link := (*httptest.ResponseRecorder)(r).Header().Get("Link")
		assert.Contains(t, link, `start=2>; rel="next"`)
		assert.Contains(t, link, `start=4>; rel="last"`)
		assert.NotContains(t, link, `rel="prev"`)
	})

	r.GET(prefix+"/items?limit=2&start=4&sort=title").SetHeader(auth()).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
		assert.Equal(t, []string{"E"}, titles(t, r.Body.Bytes()))

		link := (*httptest.ResponseRecorder)(r).Header().Get("Link")
		assert.NotContains(t, link, `rel="next"`)
		assert.Contains(t, link, `rel="prev"`)
	})

	r.GET(prefix+"/items").SetHeader(gofight.H{"Zotero-API-Key": apiKey, "If-Modified-Since-Version": "1"}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusNotModified, r.Code)
		assert.Equal(t, "1", (*httptest.ResponseRecorder)(r).Header().Get("Last-Modified-Version"))
	})

	r.GET(prefix+"/items?start=-1").SetHeader(auth()).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusBadRequest, r.Code)
	})

	r.GET(prefix+"/items?sort=unknown").SetHeader(auth()).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusBadRequest, r.Code)
	})
}

func TestRequestItems_Hierarchy(t *testing.T) {
	engine, _, r, cleanup := setup()
	defer cleanup()

	parent := create(t, engine, "items", `[{"itemType":"book","title":"Parent"}]`)[0]
	create(t, engine, "items", `[{"itemType":"note","note":"<p>child</p>","parentItem":"`+parent+`"}]`)
	trashed := create(t, engine, "items", `[{"itemType":"book","title":"Trashed","deleted":1}]`)[0]

	r.GET(prefix+"/items/top").SetHeader(auth()).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
		assert.Equal(t, []string{"Parent"}, titles(t, r.Body.Bytes()))
	})

	r.GET(prefix+"/items/"+parent+"/children").SetHeader(auth()).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
		assert.Equal(t, "1", (*httptest.ResponseRecorder)(r).Header().Get("Total-Results"))
	})

	r.GET(prefix+"/items/trash").SetHeader(auth()).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
		assert.Equal(t, []string{"Trashed"}, titles(t, r.Body.Bytes()))
	})

	r.GET(prefix+"/items?includeTrashed=1&itemType=book&sort=title").SetHeader(auth()).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
		assert.Equal(t, []string{"Parent", "Trashed"}, titles(t, r.Body.Bytes()))
	})

	r.GET(prefix+"/items?itemKey="+trashed+"&includeTrashed=1").SetHeader(auth()).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
		assert.Equal(t, []string{"Trashed"}, titles(t, r.Body.Bytes()))
	})

	r.GET(prefix+"/items/MISSING2/children").SetHeader(auth()).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusNotFound, r.Code)
	})
}

func TestRequestItems_Formats(t *testing.T) {
	engine, _, r, cleanup := setup()
	defer cleanup()

	keys := create(t, engine, "items", `[{"itemType":"book","title":"A Brief History of Time","date":"1988","publisher":"Bantam",
		"creators":[{"creatorType":"author","firstName":"Stephen","lastName":"Hawking"}]}]`)

	r.GET(prefix+"/items?format=keys").SetHeader(auth()).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
		assert.Equal(t, keys[0]+"\n", r.Body.String())
	})

	r.GET(prefix+"/items?format=versions").SetHeader(auth()).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)

		var versions map[string]int
		require.NoError(t, json.Unmarshal(r.Body.Bytes(), &versions))
		assert.Equal(t, map[string]int{keys[0]: 1}, versions)
	})

	r.GET(prefix+"/items?format=bib&style=apa&itemKey="+keys[0]).SetHeader(auth()).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
		assert.Contains(t, (*httptest.ResponseRecorder)(r).Header().Get("Content-Type"), "text/html")
		assert.Contains(t, r.Body.String(), `Hawking, S. (1988). <i>A brief history of time</i>. Bantam.`)
	})

	r.GET(prefix+"/items?format=bib&style=unknown-style").SetHeader(auth()).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusBadRequest, r.Code)
	})

	r.GET(prefix+"/items?format=bibtex").SetHeader(auth()).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
		assert.Equal(t, "1", (*httptest.ResponseRecorder)(r).Header().Get("Total-Results"))
		assert.Contains(t, r.Body.String(), "@book{hawking_brief_1988,")
	})

	r.GET(prefix+"/items?format=mods").SetHeader(auth()).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusBadRequest, r.Code)
	})
}

func titles(t *testing.T, body []byte) []string {
	v, err := fastjson.ParseBytes(body)
	require.NoError(t, err)

	titles := []string{}
	for _, object := range v.GetArray() {
		titles = append(titles, string(object.GetStringBytes("data", "title")))
	}
	return titles
}

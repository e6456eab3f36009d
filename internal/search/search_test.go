package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytget/model-mirror/internal/model"
)

type mapLookup map[string]*model.Record

func (m mapLookup) GetMany(_ context.Context, ids []string) (map[string]*model.Record, error) {
	out := make(map[string]*model.Record)
	for _, id := range ids {
		if rec, ok := m[id]; ok {
			out[id] = rec
		}
	}
	return out, nil
}

func images(prefix string) []apiImage {
	return []apiImage{
		{URL: prefix + "-1024", Width: 1024},
		{URL: prefix + "-720", Width: 720},
		{URL: prefix + "-256", Width: 256},
		{URL: prefix + "-64", Width: 64},
	}
}

// gallery serves two pages keyed by cursor and counts requests
type gallery struct {
	mu       sync.Mutex
	requests []map[string]string
	pages    map[int][]apiModel
}

func (g *gallery) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	g.mu.Lock()
	g.requests = append(g.requests, map[string]string{
		"cursor":        q.Get("cursor"),
		"q":             q.Get("q"),
		"type":          q.Get("type"),
		"downloadable":  q.Get("downloadable"),
		"max_filesizes": q.Get("max_filesizes"),
	})
	g.mu.Unlock()

	cursor, _ := strconv.Atoi(q.Get("cursor"))
	_ = json.NewEncoder(w).Encode(apiResponse{Results: g.pages[cursor]})
}

func (g *gallery) snapshot() []map[string]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]map[string]string(nil), g.requests...)
}

func (g *gallery) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

func newGallery() *gallery {
	small := &apiArchive{Size: 1024}
	return &gallery{pages: map[int][]apiModel{
		0: {
			{UID: "a1", Name: "Chair", ViewerURL: "https://sketchfab.com/3d-models/chair-a1", Archives: apiArchives{GLTF: small}, Thumbnails: apiThumbnails{Images: images("a1")}},
			{UID: "big", Name: "Castle", ViewerURL: "https://sketchfab.com/3d-models/castle-big", Archives: apiArchives{GLTF: &apiArchive{Size: DefaultMaxFileSize}}},
			{UID: "nogltf", Name: "Lamp", ViewerURL: "https://sketchfab.com/3d-models/lamp"},
		},
		24: {
			{UID: "b2", Name: "Table", ViewerURL: "https://sketchfab.com/3d-models/table-b2", Archives: apiArchives{GLTF: small}, Thumbnails: apiThumbnails{Images: images("b2")[:2]}},
			{UID: "a1", Name: "Chair", ViewerURL: "https://sketchfab.com/3d-models/chair-a1", Archives: apiArchives{GLTF: small}},
		},
	}}
}

func TestSearch_MergesRecords(t *testing.T) {
	g := newGallery()
	srv := httptest.NewServer(g)
	defer srv.Close()

	lookup := mapLookup{
		"b2": {ID: "b2", Status: model.StatusUploaded, StatusMessage: "stored", ResultURL: "https://cdn.example/b2.gltf"},
	}
	s := New(Options{APIURL: srv.URL, Rate: 100}, lookup, nil)
	defer s.Close()

	results, err := s.Search(context.Background(), Query{Text: "chair"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "a1", results[0].ID)
	assert.Equal(t, "https://sketchfab.com/3d-models/chair-a1", results[0].SourceURL)
	assert.Equal(t, "a1-256", results[0].ImgSmall)
	assert.Equal(t, "a1-720", results[0].ImgLarge)
	assert.Equal(t, model.StatusNotUploaded, results[0].Status)
	assert.Equal(t, "Not uploaded to our server", results[0].StatusMessage)
	assert.Empty(t, results[0].ResultURL)

	assert.Equal(t, "b2", results[1].ID)
	assert.Equal(t, "b2-1024", results[1].ImgSmall)
	assert.Empty(t, results[1].ImgLarge)
	assert.Equal(t, model.StatusUploaded, results[1].Status)
	assert.Equal(t, "https://cdn.example/b2.gltf", results[1].ResultURL)

	require.Equal(t, 2, g.count())
	cursors := map[string]bool{}
	for _, r := range g.snapshot() {
		cursors[r["cursor"]] = true
		assert.Equal(t, "chair", r["q"])
		assert.Equal(t, "models", r["type"])
		assert.Equal(t, "true", r["downloadable"])
		assert.Equal(t, fmt.Sprintf("gltf:%d", DefaultMaxFileSize), r["max_filesizes"])
	}
	assert.Equal(t, map[string]bool{"0": true, "24": true}, cursors)
}

func TestSearch_CachesGalleryButNotStatus(t *testing.T) {
	g := newGallery()
	srv := httptest.NewServer(g)
	defer srv.Close()

	lookup := mapLookup{}
	s := New(Options{APIURL: srv.URL, Rate: 100, CacheTTL: time.Minute}, lookup, nil)
	defer s.Close()

	_, err := s.Search(context.Background(), Query{Text: "chair"})
	require.NoError(t, err)

	lookup["a1"] = &model.Record{ID: "a1", Status: model.StatusUploading, StatusMessage: "locating source asset"}
	results, err := s.Search(context.Background(), Query{Text: "chair"})
	require.NoError(t, err)

	assert.Equal(t, 2, g.count(), "second search must be served from cache")
	assert.Equal(t, model.StatusUploading, results[0].Status)

	_, err = s.Search(context.Background(), Query{Text: "chair", Cursor: 48})
	require.NoError(t, err)
	assert.Equal(t, 4, g.count())
}

func TestSearch_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := New(Options{APIURL: srv.URL, Rate: 100}, mapLookup{}, nil)
	defer s.Close()

	_, err := s.Search(context.Background(), Query{Text: "chair"})
	assert.ErrorContains(t, err, "429")
}

func TestPickThumbnails(t *testing.T) {
	tests := []struct {
		name         string
		images       []apiImage
		small, large string
	}{
		{"none", nil, "", ""},
		{"one", images("x")[:1], "", ""},
		{"two", images("x")[:2], "x-1024", ""},
		{"four", images("x"), "x-256", "x-720"},
	}
	for _, tt := range tests {
		small, large := pickThumbnails(tt.images)
		if small != tt.small || large != tt.large {
			t.Errorf("pickThumbnails(%s) = (%q, %q), expected (%q, %q)", tt.name, small, large, tt.small, tt.large)
		}
	}
}

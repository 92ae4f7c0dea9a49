package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/docindex/internal/metadata"
	"github.com/bull/docindex/internal/searchindex"
)

type fakeIndex struct {
	hits      []searchindex.Hit
	stats     map[string]uint64
	lastName  string
	lastQuery searchindex.Query
	err       error
}

func (f *fakeIndex) Search(ctx context.Context, name string, query searchindex.Query) ([]searchindex.Hit, error) {
	f.lastName = name
	f.lastQuery = query
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

func (f *fakeIndex) Stats(ctx context.Context, name string) (*searchindex.Stats, error) {
	if f.err != nil {
		return nil, f.err
	}
	count, ok := f.stats[name]
	if !ok {
		return nil, searchindex.ErrIndexNotFound
	}
	return &searchindex.Stats{Name: name, RecordCount: count}, nil
}

func (f *fakeIndex) Health(ctx context.Context) error {
	return f.err
}

type fakeEmbedder struct {
	err error
}

func (f fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0, 0}, nil
}

func metaJSON(t *testing.T, source string, chunk int) string {
	t.Helper()
	s, err := metadata.Meta{Source: source, ChunkNumber: chunk, DocumentReference: "file:///blob/" + source}.Encode()
	require.NoError(t, err)
	return s
}

func TestSearchHandler_DedupesByFile(t *testing.T) {
	index := &fakeIndex{hits: []searchindex.Hit{
		{ID: "1", Score: 0.9, Title: "Guide - Part 2", Filepath: "guide.pdf", Content: "best", MetaJSON: metaJSON(t, "guide.pdf", 2)},
		{ID: "2", Score: 0.8, Title: "Guide - Part 1", Filepath: "guide.pdf", Content: "second"},
		{ID: "3", Score: 0.7, Title: "Notes", Filepath: "notes.md", Content: "notes", MetaJSON: metaJSON(t, "notes.md", 1)},
		{ID: "4", Score: 0.1, Title: "Noise", Filepath: "noise.md", Content: "noise"},
	}}
	handler := makeSearchHandler(index, fakeEmbedder{}, "docs", slog.Default())

	_, out, err := handler(context.Background(), nil, SearchIndexInput{Query: "install"})
	require.NoError(t, err)

	require.Len(t, out.Results, 2)
	assert.Equal(t, "guide.pdf", out.Results[0].Filepath)
	assert.Equal(t, "best", out.Results[0].Content)
	assert.Equal(t, 2, out.Results[0].ChunkNumber)
	assert.Equal(t, "file:///blob/guide.pdf", out.Results[0].DocumentReference)
	assert.Equal(t, "notes.md", out.Results[1].Filepath)

	assert.Equal(t, "docs", index.lastName)
	assert.Equal(t, defaultMaxResults*3, index.lastQuery.Top)
}

func TestSearchHandler_Options(t *testing.T) {
	index := &fakeIndex{hits: []searchindex.Hit{
		{Score: 0.2, Filepath: "a.md"},
		{Score: 0.15, Filepath: "b.md"},
	}}
	handler := makeSearchHandler(index, fakeEmbedder{}, "docs", slog.Default())

	_, out, err := handler(context.Background(), nil, SearchIndexInput{
		Query:      "q",
		Index:      "manuals",
		Filter:     "pump",
		MaxResults: 1,
		MinScore:   0.1,
	})
	require.NoError(t, err)

	require.Len(t, out.Results, 1)
	assert.Equal(t, "a.md", out.Results[0].Filepath)
	assert.Equal(t, "manuals", index.lastName)
	assert.Equal(t, "pump", index.lastQuery.Text)
	assert.Equal(t, 3, index.lastQuery.Top)
}

func TestSearchHandler_MaxResultsCapped(t *testing.T) {
	index := &fakeIndex{}
	handler := makeSearchHandler(index, fakeEmbedder{}, "docs", slog.Default())

	_, _, err := handler(context.Background(), nil, SearchIndexInput{Query: "q", MaxResults: 100})
	require.NoError(t, err)
	assert.Equal(t, maxMaxResults*3, index.lastQuery.Top)
}

func TestSearchHandler_NoResults(t *testing.T) {
	handler := makeSearchHandler(&fakeIndex{}, fakeEmbedder{}, "docs", slog.Default())

	_, out, err := handler(context.Background(), nil, SearchIndexInput{Query: "q"})
	require.NoError(t, err)
	assert.NotNil(t, out.Results)
	assert.Empty(t, out.Results)
	assert.NotEmpty(t, out.Message)
}

func TestSearchHandler_Errors(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name     string
		index    *fakeIndex
		embedder fakeEmbedder
		query    string
	}{
		{"empty query", &fakeIndex{}, fakeEmbedder{}, "  "},
		{"embed failure", &fakeIndex{}, fakeEmbedder{err: boom}, "q"},
		{"search failure", &fakeIndex{err: boom}, fakeEmbedder{}, "q"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := makeSearchHandler(tt.index, tt.embedder, "docs", slog.Default())
			_, _, err := handler(context.Background(), nil, SearchIndexInput{Query: tt.query})
			assert.Error(t, err)
		})
	}
}

func TestStatusHandler(t *testing.T) {
	index := &fakeIndex{stats: map[string]uint64{"docs": 42}}
	handler := makeStatusHandler(index, "docs")

	_, out, err := handler(context.Background(), nil, IndexStatusInput{})
	require.NoError(t, err)
	assert.Equal(t, IndexStatusOutput{Index: "docs", Exists: true, RecordCount: 42}, out)

	_, out, err = handler(context.Background(), nil, IndexStatusInput{Index: "missing"})
	require.NoError(t, err)
	assert.Equal(t, IndexStatusOutput{Index: "missing"}, out)

	index.err = errors.New("unreachable")
	_, _, err = handler(context.Background(), nil, IndexStatusInput{})
	assert.Error(t, err)
}

func TestHealthHandler(t *testing.T) {
	index := &fakeIndex{}
	handler := NewHealthHandler(index)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)

	index.err = errors.New("down")
	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"index":"disconnected"`)
}

func TestNewMux(t *testing.T) {
	index := &fakeIndex{stats: map[string]uint64{}}
	server := NewServer(&Config{Index: index, Embedder: fakeEmbedder{}, IndexName: "manuals"})
	mux := NewMux(server, index, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "<code>manuals</code>"))

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

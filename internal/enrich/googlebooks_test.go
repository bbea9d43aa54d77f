package enrich

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLookup(t *testing.T, handler http.HandlerFunc) *GoogleBooks {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &GoogleBooks{
		Client:  srv.Client(),
		BaseUrl: srv.URL,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestLookupBestMatch(t *testing.T) {
	g := newLookup(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("q"), "Dune")
		assert.Contains(t, r.URL.Query().Get("q"), "inauthor:Frank Herbert")

		_, _ = w.Write([]byte(`{"items": [{"volumeInfo": {
			"title": "Dune",
			"authors": ["Frank Herbert", "Somebody Else"],
			"categories": ["Fiction"],
			"description": "Desert planet epic.",
			"imageLinks": {"thumbnail": "http://covers/dune.jpg"},
			"industryIdentifiers": [
				{"type": "ISBN_10", "identifier": "0441013597"},
				{"type": "ISBN_13", "identifier": "9780441013593"}
			]
		}}]}`))
	})

	meta, err := g.Lookup(context.Background(), "Dune", "Frank Herbert")

	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "Dune", meta.Title)
	assert.Equal(t, "Frank Herbert", meta.Author)
	assert.Equal(t, "Fiction", meta.Genre)
	assert.Equal(t, "9780441013593", meta.Isbn)
	assert.Equal(t, "http://covers/dune.jpg", meta.Cover)
}

func TestLookupMissIsNotAnError(t *testing.T) {
	g := newLookup(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"totalItems": 0}`))
	})

	meta, err := g.Lookup(context.Background(), "No Such Book", "")

	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestLookupUpstreamError(t *testing.T) {
	g := newLookup(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := g.Lookup(context.Background(), "Dune", "")

	assert.Error(t, err)
}

func TestLookupMalformedBody(t *testing.T) {
	g := newLookup(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	})

	_, err := g.Lookup(context.Background(), "Dune", "")

	assert.Error(t, err)
}

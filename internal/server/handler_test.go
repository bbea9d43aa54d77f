package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biblioswap/internal/recommend"
	"biblioswap/internal/response"
	"biblioswap/internal/types"
)

type memShelves struct {
	mu      sync.Mutex
	byOwner map[string][]*types.Book
}

func newMemShelves() *memShelves {
	return &memShelves{byOwner: make(map[string][]*types.Book)}
}

func (m *memShelves) GetByOwner(_ context.Context, ownerId string) ([]*types.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	books := make([]*types.Book, len(m.byOwner[ownerId]))
	copy(books, m.byOwner[ownerId])

	return books, nil
}

func (m *memShelves) GetByOwners(ctx context.Context, ownerIds ...string) (map[string][]*types.Book, error) {
	ret := make(map[string][]*types.Book, len(ownerIds))
	for _, ownerId := range ownerIds {
		books, _ := m.GetByOwner(ctx, ownerId)
		ret[ownerId] = books
	}

	return ret, nil
}

func (m *memShelves) GetById(_ context.Context, ownerId, id string) (*types.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, b := range m.byOwner[ownerId] {
		if b.Id == id {
			return b, nil
		}
	}

	return nil, nil
}

func (m *memShelves) Save(_ context.Context, ownerId string, books ...*types.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.byOwner[ownerId] = append(m.byOwner[ownerId], books...)

	return nil
}

func (m *memShelves) SetStatus(_ context.Context, ownerId, id string, status types.ReadingStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, b := range m.byOwner[ownerId] {
		if b.Id == id {
			b.Status = status
			return true, nil
		}
	}

	return false, nil
}

func (m *memShelves) Delete(_ context.Context, ownerId, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	books := m.byOwner[ownerId]
	for ix, b := range books {
		if b.Id == id {
			m.byOwner[ownerId] = append(books[:ix], books[ix+1:]...)
			return true, nil
		}
	}

	return false, nil
}

type memResidents struct {
	byId map[string]*types.Resident
}

func (m *memResidents) GetById(_ context.Context, id string) (*types.Resident, error) {
	return m.byId[id], nil
}

func (m *memResidents) GetAll(_ context.Context) ([]*types.Resident, error) {
	ret := make([]*types.Resident, 0, len(m.byId))
	for _, r := range m.byId {
		ret = append(ret, r)
	}

	return ret, nil
}

func (m *memResidents) Save(_ context.Context, residents ...*types.Resident) error {
	for _, r := range residents {
		m.byId[r.Id] = r
	}

	return nil
}

func (m *memResidents) LinkFriends(_ context.Context, residentId string, friendIds ...string) error {
	if r, ok := m.byId[residentId]; ok {
		r.Friends = friendIds
	}

	return nil
}

type memCatalog struct {
	books []*types.Book
}

func (m *memCatalog) GetAll(_ context.Context) ([]*types.Book, error) {
	return m.books, nil
}

func (m *memCatalog) Search(_ context.Context, query, genre string, limit int) ([]*types.Book, error) {
	var ret []*types.Book
	for _, b := range m.books {
		if query != "" && !strings.Contains(strings.ToLower(b.Title), strings.ToLower(query)) {
			continue
		}
		if genre != "" && !strings.EqualFold(b.Genre, genre) {
			continue
		}

		ret = append(ret, b)
		if limit > 0 && len(ret) == limit {
			break
		}
	}

	return ret, nil
}

func (m *memCatalog) GetGenres(_ context.Context) ([]string, error) {
	var genres []string
	seen := make(map[string]struct{})
	for _, b := range m.books {
		if _, ok := seen[b.Genre]; !ok {
			seen[b.Genre] = struct{}{}
			genres = append(genres, b.Genre)
		}
	}

	return genres, nil
}

func (m *memCatalog) Save(_ context.Context, books ...*types.Book) error {
	m.books = append(m.books, books...)

	return nil
}

type stubEngine struct {
	calls int32
	reply []recommend.Suggestion
}

func (s *stubEngine) Suggest(_ context.Context, _ *recommend.Request) ([]recommend.Suggestion, error) {
	atomic.AddInt32(&s.calls, 1)

	return s.reply, nil
}

type fixture struct {
	shelves   *memShelves
	residents *memResidents
	catalog   *memCatalog
	engine    *stubEngine
	srv       *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		shelves:   newMemShelves(),
		residents: &memResidents{byId: make(map[string]*types.Resident)},
		catalog:   &memCatalog{},
		engine:    &stubEngine{},
	}

	rec := recommend.NewRecommender(f.engine, recommend.DefaultOptions(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	f.srv = httptest.NewServer(Handler(f.catalog, f.residents, f.shelves,
		rec, nil, nil, &response.Responder{DebugMode: true}))
	t.Cleanup(f.srv.Close)

	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(bs)
	}

	req, err := http.NewRequest(method, f.srv.URL+path, reader)
	require.NoError(t, err)

	res, err := f.srv.Client().Do(req)
	require.NoError(t, err)

	bs, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	_ = res.Body.Close()

	return res, bs
}

func TestAddBookDefaults(t *testing.T) {
	f := newFixture(t)

	res, body := f.do(t, http.MethodPost, "/shelves/me", map[string]any{"title": "  Dune  "})

	require.Equal(t, http.StatusOK, res.StatusCode)

	var out struct {
		Book *types.Book `json:"book"`
	}
	require.NoError(t, json.Unmarshal(body, &out))

	assert.Equal(t, "Dune", out.Book.Title)
	assert.Equal(t, "Unknown Author", out.Book.Author)
	assert.Equal(t, "General", out.Book.Genre)
	assert.Equal(t, "English", out.Book.Language)
	assert.Equal(t, types.StatusOwned, out.Book.Status)
	assert.NotEmpty(t, out.Book.Id)
	assert.NotZero(t, out.Book.AddedAt)

	shelf, _ := f.shelves.GetByOwner(context.Background(), "me")
	require.Len(t, shelf, 1)
}

func TestAddBookRequiresTitle(t *testing.T) {
	f := newFixture(t)

	res, _ := f.do(t, http.MethodPost, "/shelves/me", map[string]any{"author": "Nobody"})

	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestAddBookRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)

	res, _ := f.do(t, http.MethodPost, "/shelves/me",
		map[string]any{"title": "Dune", "status": "Eaten By Dog"})

	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestShelfStatusFilter(t *testing.T) {
	f := newFixture(t)
	_ = f.shelves.Save(context.Background(), "me",
		&types.Book{Id: "1", Title: "A", Status: types.StatusCurrent},
		&types.Book{Id: "2", Title: "B", Status: types.StatusOwned},
	)

	res, body := f.do(t, http.MethodGet, "/shelves/me?status=Currently+Reading", nil)

	require.Equal(t, http.StatusOK, res.StatusCode)

	var out struct {
		Books []*types.Book `json:"books"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out.Books, 1)
	assert.Equal(t, "A", out.Books[0].Title)
}

func TestPatchStatusUnknownBook(t *testing.T) {
	f := newFixture(t)

	res, _ := f.do(t, http.MethodPatch, "/shelves/me/ghost",
		map[string]any{"status": string(types.StatusPast)})

	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestNeighborShelfPrivacy(t *testing.T) {
	f := newFixture(t)
	_ = f.residents.Save(context.Background(),
		&types.Resident{Id: "u2", Name: "Vinay", Public: false})

	res, _ := f.do(t, http.MethodGet, "/residents/u2/shelf", nil)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res, _ = f.do(t, http.MethodGet, "/residents/ghost/shelf", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestRecommendationsEndToEnd(t *testing.T) {
	f := newFixture(t)

	_ = f.residents.Save(context.Background(),
		&types.Resident{Id: "me", Name: "Dheeraj", Public: true, Friends: []string{"u2"}},
		&types.Resident{Id: "u2", Name: "Vinay", Public: true})

	_ = f.shelves.Save(context.Background(), "me",
		&types.Book{Id: "b1", Title: "Dune", Genre: "Sci-Fi", Status: types.StatusCurrent, AddedAt: 1})
	_ = f.shelves.Save(context.Background(), "u2",
		&types.Book{Id: "b2", Title: "Project Hail Mary", Author: "Andy Weir",
			Genre: "Sci-Fi", Status: types.StatusOwned, AddedAt: 2})

	f.catalog.books = []*types.Book{
		{Id: "catalog-1", Title: "Foundation", Author: "Isaac Asimov", Genre: "Sci-Fi"},
	}

	f.engine.reply = []recommend.Suggestion{
		{BookId: "b2", Reason: "more hard sci-fi", SourceType: "neighbor"},
	}

	res, body := f.do(t, http.MethodGet, "/shelves/me/recommendations", nil)

	require.Equal(t, http.StatusOK, res.StatusCode)

	var out struct {
		Recommendations []recommend.Recommendation `json:"recommendations"`
	}
	require.NoError(t, json.Unmarshal(body, &out))

	require.Len(t, out.Recommendations, 1)
	assert.Equal(t, "Project Hail Mary", out.Recommendations[0].Book.Title)
	assert.Equal(t, "neighbor", out.Recommendations[0].SourceType)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.engine.calls))
}

func TestRecommendationsSkippedWithoutSignal(t *testing.T) {
	f := newFixture(t)

	_ = f.shelves.Save(context.Background(), "me",
		&types.Book{Id: "b1", Title: "Dune", Genre: "Sci-Fi", Status: types.StatusOwned})

	res, body := f.do(t, http.MethodGet, "/shelves/me/recommendations", nil)

	require.Equal(t, http.StatusOK, res.StatusCode)

	var out struct {
		Recommendations []recommend.Recommendation `json:"recommendations"`
	}
	require.NoError(t, json.Unmarshal(body, &out))

	assert.Empty(t, out.Recommendations)
	assert.Zero(t, atomic.LoadInt32(&f.engine.calls))
}

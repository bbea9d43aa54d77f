package recommend

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biblioswap/internal/types"
)

type fakeEngine struct {
	mu       sync.Mutex
	calls    int
	requests []*Request
	reply    []Suggestion
	err      error
	block    chan struct{}
}

func (f *fakeEngine) Suggest(ctx context.Context, req *Request) ([]Suggestion, error) {
	f.mu.Lock()
	f.calls++
	f.requests = append(f.requests, req)
	block := f.block
	reply, err := f.reply, f.err
	f.mu.Unlock()

	if block != nil {
		<-block
	}

	return reply, err
}

func (f *fakeEngine) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSnapshot() *Snapshot {
	return &Snapshot{
		Shelf: []*types.Book{
			{Id: "u1", Title: "Dune", Genre: "Sci-Fi", Status: types.StatusCurrent, AddedAt: 1},
		},
		Neighbors: []*types.Book{
			{Id: "n1", Title: "Project Hail Mary", Author: "Andy Weir", Genre: "Sci-Fi"},
		},
		Catalog: []*types.Book{
			{Id: "c1", Title: "Foundation", Author: "Isaac Asimov", Genre: "Sci-Fi"},
		},
	}
}

func TestRefreshEndToEnd(t *testing.T) {
	engine := &fakeEngine{reply: []Suggestion{
		{BookId: "n1", Reason: "more hard sci-fi", SourceType: "neighbor"},
	}}
	r := NewRecommender(engine, DefaultOptions(), testLogger())

	got := r.Refresh(context.Background(), "me", testSnapshot())

	require.Len(t, got, 1)
	assert.Equal(t, "Project Hail Mary", got[0].Book.Title)
	assert.Equal(t, "neighbor", got[0].SourceType)
	assert.Equal(t, got, r.Latest("me"))

	// The engine was offered both candidates and the neighbor-precedence
	// context: Dune itself is owned and filtered out everywhere.
	require.Len(t, engine.requests, 1)
	req := engine.requests[0]
	assert.Len(t, req.Candidates, 2)
	assert.Contains(t, req.Context, "Project Hail Mary")
	assert.NotContains(t, req.Context, "Foundation")
	assert.Contains(t, req.OwnedTitles, "Dune")
}

func TestRefreshUnknownIdYieldsEmpty(t *testing.T) {
	engine := &fakeEngine{reply: []Suggestion{{BookId: "nope", Reason: "hallucinated"}}}
	r := NewRecommender(engine, DefaultOptions(), testLogger())

	got := r.Refresh(context.Background(), "me", testSnapshot())

	assert.Empty(t, got)
	assert.Empty(t, r.Latest("me"))
}

func TestRefreshSkipsWithoutHistory(t *testing.T) {
	engine := &fakeEngine{}
	r := NewRecommender(engine, DefaultOptions(), testLogger())

	snap := testSnapshot()
	snap.Shelf = []*types.Book{
		{Id: "u1", Title: "Dune", Genre: "Sci-Fi", Status: types.StatusOwned},
	}

	got := r.Refresh(context.Background(), "me", snap)

	assert.Empty(t, got)
	assert.Zero(t, engine.callCount())
}

func TestRefreshKeepsStaleListOnFailure(t *testing.T) {
	engine := &fakeEngine{reply: []Suggestion{
		{BookId: "n1", Reason: "fits", SourceType: "neighbor"},
	}}
	r := NewRecommender(engine, DefaultOptions(), testLogger())

	first := r.Refresh(context.Background(), "me", testSnapshot())
	require.Len(t, first, 1)

	engine.mu.Lock()
	engine.reply, engine.err = nil, errors.New("engine down")
	engine.mu.Unlock()

	got := r.Refresh(context.Background(), "me", testSnapshot())

	// A failed call never clears the previously computed list.
	assert.Equal(t, first, got)
	assert.Equal(t, first, r.Latest("me"))
}

func TestRefreshStaleGenerationDiscarded(t *testing.T) {
	block := make(chan struct{})
	engine := &fakeEngine{
		reply: []Suggestion{{BookId: "n1", Reason: "slow cycle"}},
		block: block,
	}
	r := NewRecommender(engine, DefaultOptions(), testLogger())

	done := make(chan []Recommendation)
	go func() {
		done <- r.Refresh(context.Background(), "me", testSnapshot())
	}()

	// Wait for the first cycle to reach the engine, then run a newer one.
	for engine.callCount() == 0 {
		time.Sleep(time.Millisecond)
	}

	engine.mu.Lock()
	engine.block = nil
	engine.reply = []Suggestion{{BookId: "c1", Reason: "fresh cycle"}}
	engine.mu.Unlock()

	fresh := r.Refresh(context.Background(), "me", testSnapshot())
	require.Len(t, fresh, 1)
	require.Equal(t, "c1", fresh[0].Book.Id)

	close(block)
	stale := <-done

	// The slow cycle completed after a newer one was applied: its resolution
	// is dropped and the fresh result stands.
	assert.Equal(t, fresh, stale)
	assert.Equal(t, "c1", r.Latest("me")[0].Book.Id)
}

func TestRefreshEnforcesOwnedPostFilter(t *testing.T) {
	// An owned title sneaks into the catalog pool under a different id and
	// the engine picks it: it must never reach the output.
	snap := testSnapshot()
	snap.Catalog = append(snap.Catalog, &types.Book{
		Id: "c9", Title: " DUNE ", Author: "Frank Herbert", Genre: "Sci-Fi",
	})

	engine := &fakeEngine{reply: []Suggestion{{BookId: "c9", Reason: "oops"}}}

	r := NewRecommender(engine, DefaultOptions(), testLogger())
	assert.Empty(t, r.Refresh(context.Background(), "me", snap))
}

func TestRefreshTrustEngineConfiguration(t *testing.T) {
	snap := testSnapshot()
	snap.Catalog = []*types.Book{
		{Id: "c1", Title: "Foundation", Author: "Isaac Asimov", Genre: "Sci-Fi"},
	}
	engine := &fakeEngine{reply: []Suggestion{{BookId: "c1", Reason: "classic"}}}

	opts := DefaultOptions()
	opts.EnforceOwned = false
	r := NewRecommender(engine, opts, testLogger())

	got := r.Refresh(context.Background(), "me", snap)
	require.Len(t, got, 1)
	assert.Equal(t, "Foundation", got[0].Book.Title)
}

func TestRefreshCapsResultCount(t *testing.T) {
	snap := testSnapshot()
	snap.Catalog = []*types.Book{
		{Id: "c1", Title: "Foundation", Genre: "Sci-Fi"},
		{Id: "c2", Title: "The Three-Body Problem", Genre: "Sci-Fi"},
		{Id: "c3", Title: "Hyperion", Genre: "Sci-Fi"},
	}
	engine := &fakeEngine{reply: []Suggestion{
		{BookId: "n1"}, {BookId: "c1"}, {BookId: "c2"}, {BookId: "c3"},
	}}

	r := NewRecommender(engine, DefaultOptions(), testLogger())

	got := r.Refresh(context.Background(), "me", snap)
	assert.Len(t, got, 3)
}

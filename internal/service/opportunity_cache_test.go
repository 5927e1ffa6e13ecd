package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbdesk/arbdesk/internal/detector"
	"github.com/arbdesk/arbdesk/internal/domain"
)

type fakeFeed struct {
	mu    sync.Mutex
	calls int32
	snap  domain.MarketSnapshot
	err   error
	delay time.Duration
}

func (f *fakeFeed) FetchSnapshot(ctx context.Context) (domain.MarketSnapshot, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap, f.err
}

func (f *fakeFeed) callCount() int { return int(atomic.LoadInt32(&f.calls)) }

type fakeStore struct {
	mu       sync.Mutex
	replaced int
	snap     domain.OpportunitySnapshot
	loadSnap domain.OpportunitySnapshot
	loadErr  error
}

func (s *fakeStore) ReplaceAll(ctx context.Context, snap domain.OpportunitySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaced++
	s.snap = snap
	return nil
}

func (s *fakeStore) Load(ctx context.Context) (domain.OpportunitySnapshot, error) {
	return s.loadSnap, s.loadErr
}

func binaryMarket(id string, yes, no float64) domain.Market {
	return domain.Market{
		ID:       id,
		Question: "q " + id,
		Outcomes: []domain.Outcome{
			{Name: "Yes", Price: yes},
			{Name: "No", Price: no},
		},
	}
}

func newTestCache(t *testing.T, feed MarketFeed, store domain.OpportunityStore, ttl time.Duration) *OpportunityCache {
	t.Helper()
	return NewOpportunityCache(OpportunityCacheConfig{
		Feed:     feed,
		Detector: detector.New(0),
		Store:    store,
		TTL:      ttl,
		Logger:   testLogger(),
	})
}

func TestArbitrageRefreshesWhenStale(t *testing.T) {
	feed := &fakeFeed{snap: domain.MarketSnapshot{
		Markets: []domain.Market{binaryMarket("m1", 0.45, 0.50)},
	}}
	c := newTestCache(t, feed, nil, time.Minute)

	arbs, fetched := c.Arbitrage(context.Background())
	require.Len(t, arbs, 1)
	assert.Equal(t, "m1", arbs[0].MarketID)
	assert.False(t, fetched.IsZero())
	assert.Equal(t, 1, feed.callCount())

	// Fresh snapshot, no second fetch.
	arbs, _ = c.Arbitrage(context.Background())
	require.Len(t, arbs, 1)
	assert.Equal(t, 1, feed.callCount())
}

func TestStaleReadTriggersRefetch(t *testing.T) {
	feed := &fakeFeed{snap: domain.MarketSnapshot{
		Markets: []domain.Market{binaryMarket("m1", 0.45, 0.50)},
	}}
	c := newTestCache(t, feed, nil, time.Minute)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.clock = func() time.Time { return now }

	c.Arbitrage(context.Background())
	require.Equal(t, 1, feed.callCount())

	now = now.Add(2 * time.Minute)
	c.Arbitrage(context.Background())
	assert.Equal(t, 2, feed.callCount())
}

func TestConcurrentStaleReadsCollapse(t *testing.T) {
	feed := &fakeFeed{
		snap: domain.MarketSnapshot{
			Markets: []domain.Market{binaryMarket("m1", 0.45, 0.50)},
		},
		delay: 50 * time.Millisecond,
	}
	c := newTestCache(t, feed, nil, time.Minute)

	// Readers that arrive while the refresh is in flight legitimately serve
	// the stale snapshot, so only the fetch count is asserted here.
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Arbitrage(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, feed.callCount())

	arbs, _ := c.Arbitrage(context.Background())
	assert.Len(t, arbs, 1)
}

func TestServeStaleOnFetchFailure(t *testing.T) {
	feed := &fakeFeed{snap: domain.MarketSnapshot{
		Markets: []domain.Market{binaryMarket("m1", 0.45, 0.50)},
	}}
	c := newTestCache(t, feed, nil, time.Minute)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.clock = func() time.Time { return now }

	_, firstFetch := c.Arbitrage(context.Background())
	require.Equal(t, 1, feed.callCount())

	feed.mu.Lock()
	feed.err = domain.ErrUpstreamFetch
	feed.mu.Unlock()
	now = now.Add(2 * time.Minute)

	// The previous snapshot survives and the timestamp is not advanced.
	arbs, fetched := c.Arbitrage(context.Background())
	require.Len(t, arbs, 1)
	assert.Equal(t, firstFetch, fetched)
	assert.Equal(t, 2, feed.callCount())

	// Still stale, so the next read retries immediately.
	c.Arbitrage(context.Background())
	assert.Equal(t, 3, feed.callCount())
}

func TestRefreshForcesEvenWhenFresh(t *testing.T) {
	feed := &fakeFeed{snap: domain.MarketSnapshot{
		Markets: []domain.Market{binaryMarket("m1", 0.45, 0.50)},
	}}
	c := newTestCache(t, feed, nil, time.Hour)

	out := c.Refresh(context.Background())
	assert.Equal(t, domain.RefreshStatusRefreshed, out.Status)
	assert.Equal(t, 1, out.ArbitrageCount)

	out = c.Refresh(context.Background())
	assert.Equal(t, domain.RefreshStatusRefreshed, out.Status)
	assert.Equal(t, 2, feed.callCount())
}

func TestRefreshReportsAlreadyFetching(t *testing.T) {
	feed := &fakeFeed{
		snap: domain.MarketSnapshot{
			Markets: []domain.Market{binaryMarket("m1", 0.45, 0.50)},
		},
		delay: 100 * time.Millisecond,
	}
	c := newTestCache(t, feed, nil, time.Minute)

	done := make(chan struct{})
	go func() {
		c.Refresh(context.Background())
		close(done)
	}()

	// Wait for the background refresh to mark itself in flight.
	require.Eventually(t, func() bool {
		return c.Status().IsFetching
	}, time.Second, 5*time.Millisecond)

	out := c.Refresh(context.Background())
	assert.Equal(t, domain.RefreshStatusAlreadyFetching, out.Status)
	assert.Equal(t, 1, feed.callCount())

	<-done
	assert.False(t, c.Status().IsFetching)
}

func TestPersistAfterRefresh(t *testing.T) {
	feed := &fakeFeed{snap: domain.MarketSnapshot{
		Markets: []domain.Market{binaryMarket("m1", 0.45, 0.50)},
	}}
	store := &fakeStore{}
	c := newTestCache(t, feed, store, time.Minute)

	c.Refresh(context.Background())

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, 1, store.replaced)
	require.Len(t, store.snap.Arbitrage, 1)
	assert.Equal(t, "m1", store.snap.Arbitrage[0].MarketID)
	assert.False(t, store.snap.FetchedAt.IsZero())
}

func TestRestoreWarmsCache(t *testing.T) {
	fetched := time.Date(2025, 6, 1, 11, 59, 0, 0, time.UTC)
	store := &fakeStore{loadSnap: domain.OpportunitySnapshot{
		Arbitrage: []domain.ArbOpportunity{{MarketID: "m1", ProfitPercent: 5}},
		FetchedAt: fetched,
	}}
	feed := &fakeFeed{}
	c := newTestCache(t, feed, store, time.Hour)
	c.clock = func() time.Time { return fetched.Add(time.Minute) }

	c.Restore(context.Background())

	// The restored snapshot is fresh, so no upstream call happens.
	arbs, at := c.Arbitrage(context.Background())
	require.Len(t, arbs, 1)
	assert.Equal(t, fetched, at)
	assert.Equal(t, 0, feed.callCount())

	st := c.Status()
	assert.Equal(t, 1, st.ArbitrageCount)
	assert.False(t, st.CacheStale)
}

package flagsmith

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-resty/resty/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Flagsmith/flagsmith-mobile-go-client/fixtures"
	"github.com/Flagsmith/flagsmith-mobile-go-client/store"
)

// analyticsServer records analytics request bodies and answers with status.
type analyticsServer struct {
	mu     sync.Mutex
	status int
	bodies []string
}

func (s *analyticsServer) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	s.mu.Lock()
	defer s.mu.Unlock()
	if req.URL.Path != "/api/v1/analytics/flags/" || req.Header.Get("X-Environment-Key") != fixtures.EnvironmentAPIKey {
		rw.WriteHeader(http.StatusBadRequest)
		return
	}
	s.bodies = append(s.bodies, string(body))
	if s.status != 0 {
		rw.WriteHeader(s.status)
	}
}

func (s *analyticsServer) setStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func (s *analyticsServer) requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.bodies...)
}

func newTestProcessor(t *testing.T, s http.Handler, persist AnalyticsStore, flushPeriod time.Duration) *AnalyticsProcessor {
	t.Helper()
	server := httptest.NewServer(s)
	t.Cleanup(server.Close)

	client := resty.New().SetHeader("X-Environment-Key", fixtures.EnvironmentAPIKey)
	ctx, cancel := context.WithCancel(context.Background())
	processor := NewAnalyticsProcessor(ctx, client, server.URL+"/api/v1/", persist, flushPeriod, createLogger())
	t.Cleanup(func() {
		cancel()
		processor.wait()
	})
	return processor
}

func TestAnalytics(t *testing.T) {
	// Given
	s := &analyticsServer{}
	processor := newTestProcessor(t, s, store.NewMemoryStore(), 10*time.Millisecond)

	// When
	processor.TrackFeature("feature_1")
	processor.TrackFeature("feature_2")
	processor.TrackFeature("feature_2")

	// Then the timer flushes everything and clears the counts
	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(map[string]int{"feature_1": 1, "feature_2": 2}, sentCounts(t, s))
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, processor.pendingCounts())
}

// sentCounts sums the counts of every analytics request s received.
func sentCounts(t *testing.T, s *analyticsServer) map[string]int {
	t.Helper()
	sent := make(map[string]int)
	for _, body := range s.requests() {
		var counts map[string]int
		assert.NoError(t, json.Unmarshal([]byte(body), &counts))
		for feature, n := range counts {
			sent[feature] += n
		}
	}
	return sent
}

func TestAnalyticsFlushAccumulatesPerFeature(t *testing.T) {
	s := &analyticsServer{}
	processor := newTestProcessor(t, s, store.NewMemoryStore(), time.Hour)

	for i := 0; i < 3; i++ {
		processor.TrackFeature("feature_1")
	}
	processor.TrackFeature("feature_2")

	assert.Equal(t, map[string]int{"feature_1": 3, "feature_2": 1}, processor.pendingCounts())
}

func TestAnalyticsFlushEmptyDoesNotSendRequest(t *testing.T) {
	s := &analyticsServer{}
	processor := newTestProcessor(t, s, store.NewMemoryStore(), time.Hour)

	require.NoError(t, processor.Flush(context.Background()))

	assert.Empty(t, s.requests())
}

func TestAnalyticsFailedFlushKeepsCounts(t *testing.T) {
	// Given
	s := &analyticsServer{status: http.StatusInternalServerError}
	persist := store.NewMemoryStore()
	processor := newTestProcessor(t, s, persist, time.Hour)
	processor.TrackFeature("feature_1")

	// When
	err := processor.Flush(context.Background())

	// Then
	var apiErr *FlagsmithAPIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.ResponseStatusCode)
	assert.Equal(t, map[string]int{"feature_1": 1}, processor.pendingCounts())
	persisted, err := persist.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"feature_1": 1}, persisted)

	// and the next successful flush sends everything tracked so far
	processor.TrackFeature("feature_1")
	s.setStatus(http.StatusOK)
	require.NoError(t, processor.Flush(context.Background()))
	assert.Equal(t, `{"feature_1":2}`, s.requests()[1])
	assert.Empty(t, processor.pendingCounts())
}

func TestAnalyticsNetworkErrorKeepsCounts(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	processor := NewAnalyticsProcessor(ctx, resty.New(), url+"/api/v1/", store.NewMemoryStore(), time.Hour, createLogger())
	processor.TrackFeature("feature_1")

	err := processor.Flush(context.Background())

	var clientErr *FlagsmithClientError
	assert.True(t, errors.As(err, &clientErr))
	assert.Equal(t, map[string]int{"feature_1": 1}, processor.pendingCounts())
}

func TestAnalyticsSuccessfulFlushClearsPersistedCounts(t *testing.T) {
	s := &analyticsServer{}
	persist := store.NewMemoryStore()
	processor := newTestProcessor(t, s, persist, time.Hour)
	processor.TrackFeature("feature_1")

	require.NoError(t, processor.Flush(context.Background()))

	persisted, err := persist.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, persisted)
}

func TestAnalyticsEventsTrackedDuringFlushAreKept(t *testing.T) {
	// Given a server that tracks another event while the flush is in flight
	var current atomic.Pointer[AnalyticsProcessor]
	handler := http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		current.Load().TrackFeature("feature_1")
	})
	processor := newTestProcessor(t, handler, store.NewMemoryStore(), time.Hour)
	current.Store(processor)
	processor.TrackFeature("feature_1")

	// When
	require.NoError(t, processor.Flush(context.Background()))

	// Then
	assert.Equal(t, map[string]int{"feature_1": 1}, processor.pendingCounts())
}

func TestAnalyticsCountsSurviveRestart(t *testing.T) {
	// Given counts persisted by a previous process
	path := filepath.Join(t.TempDir(), "analytics.json")
	persist := store.NewFileStore(path)
	require.NoError(t, persist.Add(context.Background(), map[string]int{"feature_1": 4}))

	// When
	s := &analyticsServer{}
	processor := newTestProcessor(t, s, store.NewFileStore(path), time.Hour)
	processor.TrackFeature("feature_1")

	// Then
	assert.Equal(t, map[string]int{"feature_1": 5}, processor.pendingCounts())
	require.NoError(t, processor.Flush(context.Background()))
	assert.Equal(t, `{"feature_1":5}`, s.requests()[0])
}

type failingStore struct{}

func (failingStore) Add(context.Context, map[string]int) error {
	return errors.New("add failed")
}

func (failingStore) Take(context.Context) (map[string]int, error) {
	return nil, errors.New("take failed")
}

func TestAnalyticsStoreFailuresDoNotStopTracking(t *testing.T) {
	s := &analyticsServer{}
	processor := newTestProcessor(t, s, failingStore{}, time.Hour)

	processor.TrackFeature("feature_1")

	assert.Equal(t, map[string]int{"feature_1": 1}, processor.pendingCounts())
	require.NoError(t, processor.Flush(context.Background()))
	assert.Equal(t, `{"feature_1":1}`, s.requests()[0])
	assert.Empty(t, processor.pendingCounts())

	// with nothing held back the store failure is reported
	var clientErr *FlagsmithClientError
	assert.ErrorAs(t, processor.Flush(context.Background()), &clientErr)
	assert.Len(t, s.requests(), 1)
}

func TestAnalyticsConcurrentTracking(t *testing.T) {
	s := &analyticsServer{}
	processor := newTestProcessor(t, s, store.NewMemoryStore(), time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			processor.TrackFeature("feature_1")
		}()
	}
	wg.Wait()

	assert.Equal(t, map[string]int{"feature_1": 50}, processor.pendingCounts())
}

func TestAnalyticsLoopStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	processor := NewAnalyticsProcessor(ctx, resty.New(), fixtures.BaseURL, store.NewMemoryStore(), time.Hour, createLogger())

	cancel()

	done := make(chan struct{})
	go func() {
		processor.wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("analytics loop did not stop")
	}
}

func TestAnalyticsProcessorsSharingAStore(t *testing.T) {
	// Given two processes sharing one store that holds counts of a third
	ctx := context.Background()
	shared := store.NewMemoryStore()
	require.NoError(t, shared.Add(ctx, map[string]int{"feature_0": 4}))
	s := &analyticsServer{}
	first := newTestProcessor(t, s, shared, time.Hour)
	second := newTestProcessor(t, s, shared, time.Hour)

	// When
	first.TrackFeature("feature_1")
	second.TrackFeature("feature_2")

	// Then no event is lost from the store
	persisted, err := shared.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"feature_0": 4, "feature_1": 1, "feature_2": 1}, persisted)

	// and each event is reported exactly once
	require.NoError(t, first.Flush(ctx))
	require.NoError(t, second.Flush(ctx))
	assert.Equal(t, map[string]int{"feature_0": 4, "feature_1": 1, "feature_2": 1}, sentCounts(t, s))
	assert.Len(t, s.requests(), 1)
	persisted, err = shared.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, persisted)
}

func TestAnalyticsProcessorsSharingRedis(t *testing.T) {
	// Given two processes with their own connection to one Redis hash
	ctx := context.Background()
	server := miniredis.RunT(t)
	connect := func() *store.RedisStore {
		client := redis.NewClient(&redis.Options{Addr: server.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return store.NewRedisStore(client, fixtures.EnvironmentAPIKey)
	}
	s := &analyticsServer{}
	first := newTestProcessor(t, s, connect(), time.Hour)
	second := newTestProcessor(t, s, connect(), time.Hour)

	// When
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			first.TrackFeature("feature_1")
		}()
		go func() {
			defer wg.Done()
			second.TrackFeature("feature_1")
		}()
	}
	wg.Wait()
	require.NoError(t, first.Flush(ctx))
	require.NoError(t, second.Flush(ctx))

	// Then
	assert.Equal(t, map[string]int{"feature_1": 20}, sentCounts(t, s))
	assert.False(t, server.Exists("flagsmith:analytics:"+fixtures.EnvironmentAPIKey))
}

func TestAnalyticsCancelledFlushKeepsCounts(t *testing.T) {
	s := &analyticsServer{}
	persist := store.NewMemoryStore()
	processor := newTestProcessor(t, s, persist, time.Hour)
	processor.TrackFeature("feature_1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := processor.Flush(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	persisted, err := persist.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"feature_1": 1}, persisted)
}

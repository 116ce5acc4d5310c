package flagsmith

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

const AnalyticsEndpoint = "analytics/flags/"

// AnalyticsStore persists analytics counts that have not been flushed yet.
// A store may be shared by several processes, so it only ever changes by
// deltas. Implementations are provided by the store package.
type AnalyticsStore interface {
	// Add increments the persisted counts by the positive entries of counts.
	Add(ctx context.Context, counts map[string]int) error
	// Take atomically removes every persisted count and returns it.
	Take(ctx context.Context) (map[string]int, error)
}

type analyticDataStore struct {
	mu   sync.Mutex
	data map[string]int
}

func (s *analyticDataStore) snapshot() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyCounts(s.data)
}

func (s *analyticDataStore) add(counts map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for feature, n := range counts {
		s.data[feature] += n
	}
}

func (s *analyticDataStore) drain() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := s.data
	s.data = make(map[string]int)
	return data
}

// AnalyticsProcessor counts flag evaluations per feature and periodically
// posts them to the API.
type AnalyticsProcessor struct {
	ctx      context.Context
	client   *resty.Client
	persist  AnalyticsStore
	endpoint string
	log      *slog.Logger
	done     chan struct{}

	// unsaved holds counts the store refused, until the next flush.
	unsaved *analyticDataStore

	// flushMu serialises flushes of this processor.
	flushMu sync.Mutex
}

// NewAnalyticsProcessor starts the flush loop, which runs until ctx is done.
// Counts already in persist, including those left by a previous process,
// are sent by the first flush.
func NewAnalyticsProcessor(ctx context.Context, client *resty.Client, baseURL string, persist AnalyticsStore, flushPeriod time.Duration, log *slog.Logger) *AnalyticsProcessor {
	if flushPeriod <= 0 {
		flushPeriod = DefaultAnalyticsFlushPeriod
	}
	processor := &AnalyticsProcessor{
		ctx:      ctx,
		client:   client,
		persist:  persist,
		endpoint: baseURL + AnalyticsEndpoint,
		log:      log.With(slog.String("worker", "analytics")),
		done:     make(chan struct{}),
		unsaved:  &analyticDataStore{data: make(map[string]int)},
	}
	go processor.start(ctx, flushPeriod)
	return processor
}

func (a *AnalyticsProcessor) start(ctx context.Context, flushPeriod time.Duration) {
	defer close(a.done)
	ticker := time.NewTicker(flushPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := a.Flush(ctx); err != nil {
				a.log.Warn("failed to send analytics data", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Flush takes the persisted counts and posts them. On failure the counts
// are added back for the next attempt.
func (a *AnalyticsProcessor) Flush(ctx context.Context) error {
	a.flushMu.Lock()
	defer a.flushMu.Unlock()

	sent, takeErr := a.persist.Take(ctx)
	if takeErr != nil {
		a.log.Warn("failed to take persisted analytics data", "error", takeErr)
	}
	if sent == nil {
		sent = make(map[string]int)
	}
	for feature, n := range a.unsaved.drain() {
		sent[feature] += n
	}
	if len(sent) == 0 {
		if takeErr != nil {
			return newClientError("analytics flush", takeErr)
		}
		return nil
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(sent).
		Post(a.endpoint)
	if err != nil {
		analyticsFlushesTotal.WithLabelValues(outcomeFailure).Inc()
		a.restore(ctx, sent)
		return newClientError("analytics flush", err)
	}
	if !resp.IsSuccess() {
		analyticsFlushesTotal.WithLabelValues(outcomeFailure).Inc()
		a.restore(ctx, sent)
		return newAPIError("analytics flush", resp.StatusCode(), resp.Status())
	}
	analyticsFlushesTotal.WithLabelValues(outcomeSuccess).Inc()

	a.log.Debug("analytics data sent", slog.Any("features", SortedKeys(sent)))
	return nil
}

func (a *AnalyticsProcessor) TrackFeature(featureName string) {
	analyticsEventsTrackedTotal.Inc()
	a.save(context.WithoutCancel(a.ctx), map[string]int{featureName: 1})
}

// restore puts back counts whose flush failed. It outlives ctx so a
// cancelled flush does not drop them from the store.
func (a *AnalyticsProcessor) restore(ctx context.Context, counts map[string]int) {
	a.save(context.WithoutCancel(ctx), counts)
}

func (a *AnalyticsProcessor) save(ctx context.Context, counts map[string]int) {
	if err := a.persist.Add(ctx, counts); err != nil {
		a.log.Warn("failed to persist analytics data", "error", err)
		a.unsaved.add(counts)
	}
}

// wait blocks until the flush loop has exited.
func (a *AnalyticsProcessor) wait() {
	<-a.done
}

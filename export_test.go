package flagsmith

import (
	"context"

	"github.com/go-resty/resty/v2"
)

// This file exports internal functions for testing purposes only.

// GetUserAgentForTest exposes the getUserAgent function for external tests.
func GetUserAgentForTest() string {
	return getUserAgent()
}

// AnalyticsCountsForTest returns a copy of the pending analytics counts.
func AnalyticsCountsForTest(c *Client) map[string]int {
	if c.analyticsProcessor == nil {
		return nil
	}
	return c.analyticsProcessor.pendingCounts()
}

func (c *Client) ExposeRestyClient() *resty.Client {
	return c.client
}

type countLoader interface {
	Load(ctx context.Context) (map[string]int, error)
}

// pendingCounts returns the counts not sent yet, persisted or held back
// in memory.
func (a *AnalyticsProcessor) pendingCounts() map[string]int {
	counts := a.unsaved.snapshot()
	if loader, ok := a.persist.(countLoader); ok {
		persisted, _ := loader.Load(context.Background())
		for feature, n := range persisted {
			counts[feature] += n
		}
	}
	return counts
}

package flagsmith

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/go-resty/resty/v2"
)

const (
	flagsEndpoint      = "flags/"
	identitiesEndpoint = "identities/"
	traitsEndpoint     = "traits/"
)

// Client provides various methods to query the Flagsmith API.
type Client struct {
	apiKey       string
	config       config
	client       *resty.Client
	customClient bool

	analyticsProcessor *AnalyticsProcessor
	log                *slog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewClient creates instance of Client with given configuration.
//
// It panics if environmentKey is empty, or if analytics is enabled without
// an analytics store.
func NewClient(environmentKey string, options ...Option) *Client {
	if environmentKey == "" {
		panic("environment key must be provided.")
	}

	c := &Client{
		apiKey: environmentKey,
		config: defaultConfig(),
		client: resty.New(),
		log:    slog.Default(),
		ctx:    context.Background(),
	}

	for _, opt := range options {
		if opt != nil {
			opt(c)
		}
	}

	if c.config.enableAnalytics && c.config.analyticsStore == nil {
		panic("analytics store must be provided to use analytics.")
	}

	c.log = c.log.WithGroup("flagsmith")

	c.client.SetHeaders(c.config.customHeaders)
	c.client.SetHeaders(map[string]string{
		"Accept":            "application/json",
		"X-Environment-Key": c.apiKey,
		"User-Agent":        getUserAgent(),
	})
	if c.config.proxyURL != "" {
		c.client.SetProxy(c.config.proxyURL)
	}
	if !c.customClient || c.client.GetClient().Timeout == 0 {
		c.client.SetTimeout(c.config.timeout)
	}
	c.client.SetLogger(restySlogLogger{c.log})
	c.client.OnBeforeRequest(newRestyLogRequestMiddleware(c.log))
	c.client.OnAfterResponse(newRestyLogResponseMiddleware(c.log))

	c.ctx, c.cancel = context.WithCancel(c.ctx)

	if c.config.enableAnalytics {
		c.analyticsProcessor = NewAnalyticsProcessor(c.ctx, c.client, c.config.baseURL, c.config.analyticsStore, c.config.analyticsFlushPeriod, c.log)
	}

	c.log.Debug("client initialised",
		slog.String("base_url", c.config.baseURL),
		slog.Bool("analytics", c.config.enableAnalytics),
	)
	return c
}

// Close stops the analytics flush loop and closes the analytics store if it
// implements io.Closer. Counts not yet flushed remain in the store. It is
// safe to call Close more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.analyticsProcessor != nil {
			c.analyticsProcessor.wait()
		}
		if closer, ok := c.config.analyticsStore.(io.Closer); ok {
			err = closer.Close()
		}
	})
	return err
}

// GetFeatureFlags returns the flags of the environment, or the flags of
// identity if it is not empty.
func (c *Client) GetFeatureFlags(ctx context.Context, identity string) ([]Flag, error) {
	if identity != "" {
		res, err := c.GetIdentity(ctx, identity)
		if err != nil {
			return nil, err
		}
		return res.Flags, nil
	}

	flags := make([]Flag, 0)
	req := c.client.NewRequest().
		SetResult(&flags)
	if err := c.do(ctx, "get flags", flagsEndpoint, req, resty.MethodGet); err != nil {
		return nil, err
	}
	return flags, nil
}

// HasFeatureFlag reports whether the feature exists and is enabled. The
// evaluation is recorded in analytics.
func (c *Client) HasFeatureFlag(ctx context.Context, featureName, identity string) (bool, error) {
	flags, err := c.GetFeatureFlags(ctx, identity)
	if err != nil {
		return false, err
	}
	c.trackFeature(featureName)
	return findEnabledFlag(flags, featureName) != nil, nil
}

// GetValueForFeature returns the value of the feature, or nil if it does not
// exist or is disabled. The evaluation is recorded in analytics.
//
// Returned value can have one of following types: bool, int, float64, string.
func (c *Client) GetValueForFeature(ctx context.Context, featureName, identity string) (interface{}, error) {
	flags, err := c.GetFeatureFlags(ctx, identity)
	if err != nil {
		return nil, err
	}
	c.trackFeature(featureName)
	if flag := findEnabledFlag(flags, featureName); flag != nil {
		return flag.FeatureStateValue, nil
	}
	return nil, nil
}

// GetTrait returns the trait with the given key, or nil if identity has none.
func (c *Client) GetTrait(ctx context.Context, key, identity string) (*Trait, error) {
	res, err := c.GetIdentity(ctx, identity)
	if err != nil {
		return nil, err
	}
	return findTrait(res.Traits, key), nil
}

// GetTraits returns all traits of identity.
func (c *Client) GetTraits(ctx context.Context, identity string) ([]Trait, error) {
	res, err := c.GetIdentity(ctx, identity)
	if err != nil {
		return nil, err
	}
	return res.Traits, nil
}

// SetTrait stores trait for identity and returns the trait as saved by the API.
func (c *Client) SetTrait(ctx context.Context, trait Trait, identity string) (*TraitWithIdentity, error) {
	body := TraitWithIdentity{
		Identity:   Identity{Identifier: identity},
		TraitKey:   trait.TraitKey,
		TraitValue: trait.TraitValue,
	}
	result := new(TraitWithIdentity)
	req := c.client.NewRequest().
		SetBody(body).
		SetResult(result)
	if err := c.do(ctx, "set trait", traitsEndpoint, req, resty.MethodPost); err != nil {
		return nil, err
	}
	return result, nil
}

// GetIdentity returns the flags and traits of identity.
func (c *Client) GetIdentity(ctx context.Context, identity string) (*IdentityFlagsAndTraits, error) {
	result := &IdentityFlagsAndTraits{
		Flags:  make([]Flag, 0),
		Traits: make([]Trait, 0),
	}
	req := c.client.NewRequest().
		SetQueryParam("identifier", identity).
		SetResult(result)
	if err := c.do(ctx, "get identity", identitiesEndpoint, req, resty.MethodGet); err != nil {
		return nil, err
	}
	return result, nil
}

// FlushAnalytics sends pending analytics counts immediately. It does nothing
// when analytics is disabled.
func (c *Client) FlushAnalytics(ctx context.Context) error {
	if c.analyticsProcessor == nil {
		return nil
	}
	return c.analyticsProcessor.Flush(ctx)
}

func (c *Client) trackFeature(featureName string) {
	if c.analyticsProcessor != nil {
		c.analyticsProcessor.TrackFeature(featureName)
	}
}

// do executes a prepared request and maps transport, decoding and status
// failures to the client's error types.
func (c *Client) do(ctx context.Context, op, endpoint string, req *resty.Request, method string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	resp, err := req.
		SetContext(ctx).
		ForceContentType("application/json").
		Execute(method, c.config.baseURL+endpoint)
	if err == nil && !resp.IsSuccess() {
		err = newAPIError(op, resp.StatusCode(), resp.Status())
	} else if err != nil {
		err = newClientError(op, err)
	}
	requestsTotal.WithLabelValues(endpoint, outcome(err)).Inc()
	if err != nil {
		c.log.Warn("request failed", slog.String("operation", op), "error", err)
	}
	return err
}

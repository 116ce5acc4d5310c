package flagsmith

import (
	"context"
	"fmt"
)

// Result is the outcome of an asynchronous operation: either Value is set
// or Err is non-nil.
type Result[T any] struct {
	Value T
	Err   error
}

// Get returns the value and the error of the result.
func (r Result[T]) Get() (T, error) {
	return r.Value, r.Err
}

// runAsync runs fn on a new goroutine and passes its outcome to callback
// exactly once. A panic in fn is delivered to callback as an error.
func runAsync[T any](ctx context.Context, fn func(ctx context.Context) (T, error), callback func(Result[T])) {
	go func() {
		var res Result[T]
		func() {
			defer func() {
				if r := recover(); r != nil {
					res = Result[T]{Err: newClientError("async operation", fmt.Errorf("panic: %v", r))}
				}
			}()
			v, err := fn(ctx)
			res = Result[T]{Value: v, Err: err}
		}()
		if callback != nil {
			callback(res)
		}
	}()
}

// GetFeatureFlagsAsync is the callback form of GetFeatureFlags.
func (c *Client) GetFeatureFlagsAsync(ctx context.Context, identity string, callback func(Result[[]Flag])) {
	runAsync(ctx, func(ctx context.Context) ([]Flag, error) {
		return c.GetFeatureFlags(ctx, identity)
	}, callback)
}

// HasFeatureFlagAsync is the callback form of HasFeatureFlag.
func (c *Client) HasFeatureFlagAsync(ctx context.Context, featureName, identity string, callback func(Result[bool])) {
	runAsync(ctx, func(ctx context.Context) (bool, error) {
		return c.HasFeatureFlag(ctx, featureName, identity)
	}, callback)
}

// GetValueForFeatureAsync is the callback form of GetValueForFeature.
func (c *Client) GetValueForFeatureAsync(ctx context.Context, featureName, identity string, callback func(Result[interface{}])) {
	runAsync(ctx, func(ctx context.Context) (interface{}, error) {
		return c.GetValueForFeature(ctx, featureName, identity)
	}, callback)
}

// GetTraitAsync is the callback form of GetTrait.
func (c *Client) GetTraitAsync(ctx context.Context, key, identity string, callback func(Result[*Trait])) {
	runAsync(ctx, func(ctx context.Context) (*Trait, error) {
		return c.GetTrait(ctx, key, identity)
	}, callback)
}

// GetTraitsAsync is the callback form of GetTraits.
func (c *Client) GetTraitsAsync(ctx context.Context, identity string, callback func(Result[[]Trait])) {
	runAsync(ctx, func(ctx context.Context) ([]Trait, error) {
		return c.GetTraits(ctx, identity)
	}, callback)
}

// SetTraitAsync is the callback form of SetTrait.
func (c *Client) SetTraitAsync(ctx context.Context, trait Trait, identity string, callback func(Result[*TraitWithIdentity])) {
	runAsync(ctx, func(ctx context.Context) (*TraitWithIdentity, error) {
		return c.SetTrait(ctx, trait, identity)
	}, callback)
}

// GetIdentityAsync is the callback form of GetIdentity.
func (c *Client) GetIdentityAsync(ctx context.Context, identity string, callback func(Result[*IdentityFlagsAndTraits])) {
	runAsync(ctx, func(ctx context.Context) (*IdentityFlagsAndTraits, error) {
		return c.GetIdentity(ctx, identity)
	}, callback)
}

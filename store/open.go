package store

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Store is the common behaviour of every implementation in this package.
type Store interface {
	// Load returns the stored counts without changing them.
	Load(ctx context.Context) (map[string]int, error)
	// Add increments the stored counts by the positive entries of counts.
	Add(ctx context.Context, counts map[string]int) error
	// Take removes every stored count and returns what was removed.
	Take(ctx context.Context) (map[string]int, error)
}

// Open returns the store described by dsn. The namespace separates the
// counts of different environments sharing a Redis server.
func Open(ctx context.Context, dsn, namespace string) (Store, error) {
	if dsn == "" || dsn == "memory" {
		return NewMemoryStore(), nil
	}

	u, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedStore, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "file":
		path := u.Path
		if path == "" {
			path = u.Opaque
		}
		if path == "" {
			return nil, fmt.Errorf("%w: file store needs a path", ErrUnsupportedStore)
		}
		return NewFileStore(path), nil
	case "redis", "rediss":
		client, err := connectRedis(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return NewRedisStore(client, namespace), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedStore, dsn)
	}
}

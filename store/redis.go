package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "flagsmith:analytics:"

// RedisStore keeps analytics counts in a Redis hash. Increments use HINCRBY
// and Take reads and deletes the hash in one MULTI/EXEC, so any number of
// processes may share the hash.
type RedisStore struct {
	client redis.UniversalClient
	key    string
}

// NewRedisStore returns a store writing to the hash "flagsmith:analytics:<namespace>".
func NewRedisStore(client redis.UniversalClient, namespace string) *RedisStore {
	return &RedisStore{
		client: client,
		key:    redisKeyPrefix + namespace,
	}
}

func (s *RedisStore) Load(ctx context.Context) (map[string]int, error) {
	raw, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, err
	}
	return decodeCounts(raw)
}

func (s *RedisStore) Add(ctx context.Context, counts map[string]int) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for feature, n := range counts {
			if n > 0 {
				pipe.HIncrBy(ctx, s.key, feature, int64(n))
			}
		}
		return nil
	})
	return err
}

// Take removes the hash and returns its counts. Fields that are not
// integers are dropped and reported through ErrInvalidCount alongside the
// valid counts.
func (s *RedisStore) Take(ctx context.Context) (map[string]int, error) {
	var all *redis.MapStringStringCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		all = pipe.HGetAll(ctx, s.key)
		pipe.Del(ctx, s.key)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decodeCounts(all.Val())
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func decodeCounts(raw map[string]string) (map[string]int, error) {
	counts := make(map[string]int, len(raw))
	var errs []error
	for feature, v := range raw {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("feature %q: %w", feature, err))
			continue
		}
		counts[feature] = n
	}
	if len(errs) > 0 {
		return counts, errors.Join(append([]error{ErrInvalidCount}, errs...)...)
	}
	return counts, nil
}

// connectRedis parses the URL and checks the server answers a PING.
func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Join(ErrUnsupportedStore, err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Join(ErrRedisNotReady, err)
	}
	return client, nil
}

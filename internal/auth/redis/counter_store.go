// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StockSense Contributors

// Package redis implements the rate-limit counter store on Redis.
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/stocksense/stocksense/internal/auth"
)

// DefaultKeyPrefix namespaces counter keys.
const DefaultKeyPrefix = "stocksense:ratelimit"

// hitScript applies one fixed-window transition atomically. Counters are
// hashes with fields count and start (unix milliseconds) and expire with
// their window, so no janitor is needed.
var hitScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
local state = redis.call('HMGET', KEYS[1], 'count', 'start')
local count = tonumber(state[1] or '0')
local start = tonumber(state[2] or '0')
if count == 0 or now >= start + window then
  redis.call('HSET', KEYS[1], 'count', 1, 'start', now)
  redis.call('PEXPIRE', KEYS[1], window)
  return {1, now, 1}
end
if count >= max then
  return {count, start, 0}
end
count = redis.call('HINCRBY', KEYS[1], 'count', 1)
return {count, start, 1}
`)

// CounterStore implements auth.CounterStore using Redis.
type CounterStore struct {
	client redis.Scripter
	prefix string
}

// NewCounterStore creates a CounterStore. An empty prefix uses DefaultKeyPrefix.
func NewCounterStore(client redis.Scripter, prefix string) *CounterStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &CounterStore{client: client, prefix: prefix}
}

// Hit records an attempt at now.
func (s *CounterStore) Hit(ctx context.Context, identifier string, action auth.Action, limit auth.Limit, now time.Time) (auth.Counter, bool, error) {
	key := s.key(identifier, action)
	res, err := hitScript.Run(ctx, s.client, []string{key},
		now.UnixMilli(), limit.Window.Milliseconds(), limit.MaxAttempts,
	).Int64Slice()
	if err != nil {
		return auth.Counter{}, false, oops.Code("RATELIMIT_HIT_FAILED").
			With("operation", "run hit script").
			With("action", string(action)).
			Wrap(err)
	}
	if len(res) != 3 {
		return auth.Counter{}, false, oops.Code("RATELIMIT_HIT_FAILED").
			With("action", string(action)).
			Errorf("unexpected script reply of length %d", len(res))
	}

	return auth.Counter{
		Identifier:  identifier,
		Action:      action,
		Attempts:    int(res[0]),
		WindowStart: time.UnixMilli(res[1]).UTC(),
	}, res[2] == 1, nil
}

func (s *CounterStore) key(identifier string, action auth.Action) string {
	return s.prefix + ":" + string(action) + ":" + identifier
}

// Connect parses a redis:// URL and verifies the server answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, oops.Code("REDIS_URL_INVALID").Wrap(err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, oops.Code("REDIS_CONNECT_FAILED").
			With("addr", opts.Addr).
			Wrap(err)
	}
	return client, nil
}

var _ auth.CounterStore = (*CounterStore)(nil)

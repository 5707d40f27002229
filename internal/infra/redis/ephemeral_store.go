package redis

import (
	"context"
	"time"

	"gatekeeper/internal/domain/repository"
	"gatekeeper/internal/errors"

	"github.com/redis/go-redis/v9"
)

// ephemeralStore implements repository.EphemeralStore on Redis. TTLs ride
// on SETEX, so expiry needs no sweeper and an expired key reads as absent.
type ephemeralStore struct {
	client *redis.Client
}

// NewEphemeralStore is the constructor for ephemeralStore.
func NewEphemeralStore(client *redis.Client) repository.EphemeralStore {
	return &ephemeralStore{client: client}
}

// Set writes value under key with the given time-to-live.
func (s *ephemeralStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return errors.Wrapf(err, "set %s", key)
	}

	return nil
}

// Get returns the value for key, reporting absence instead of erroring.
func (s *ephemeralStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}

		return nil, false, errors.Wrapf(err, "get %s", key)
	}

	return value, true, nil
}

// Take atomically reads and removes key via GETDEL, so concurrent takers
// resolve to exactly one winner.
func (s *ephemeralStore) Take(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.GetDel(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}

		return nil, false, errors.Wrapf(err, "take %s", key)
	}

	return value, true, nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *ephemeralStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return errors.Wrapf(err, "delete %s", key)
	}

	return nil
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/Davzs/adezz/internal/models"
	"github.com/Davzs/adezz/internal/utils"
)

const (
	listingKeyPrefix        = "listing:"
	listingVersionKeyPrefix = "listing-version:"
	// A version outlives any cached copy taken under it.
	listingVersionTTL = 24 * time.Hour
)

// ListingCache keeps read-through copies of listings in Redis.
// Per-user view entries are not cached. Every listing has a version that
// Invalidate bumps; a copy read under an older version is never stored.
type ListingCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewListingCache(rdb *redis.Client, ttl time.Duration) *ListingCache {
	return &ListingCache{rdb: rdb, ttl: ttl}
}

func listingKey(id utils.SixID) string {
	return listingKeyPrefix + id.String()
}

func listingVersionKey(id utils.SixID) string {
	return listingVersionKeyPrefix + id.String()
}

// Get returns the cached listing, or nil on a miss.
func (c *ListingCache) Get(ctx context.Context, id utils.SixID) (*models.Listing, error) {
	raw, err := c.rdb.Get(ctx, listingKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get %s: %w", id, err)
	}
	var listing models.Listing
	if err := json.Unmarshal(raw, &listing); err != nil {
		// A value we cannot decode is as good as a miss.
		_ = c.rdb.Del(ctx, listingKey(id)).Err()
		return nil, nil
	}
	return &listing, nil
}

// Version returns the listing's current cache version. Read it before
// loading the listing from the database and pass it to Set.
func (c *ListingCache) Version(ctx context.Context, id utils.SixID) (int64, error) {
	return readVersion(ctx, c.rdb, id)
}

type versionReader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readVersion(ctx context.Context, r versionReader, id utils.SixID) (int64, error) {
	v, err := r.Get(ctx, listingVersionKey(id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cache version %s: %w", id, err)
	}
	return v, nil
}

// Set stores listing unless it was invalidated after version was read. It
// reports whether the copy was stored.
func (c *ListingCache) Set(ctx context.Context, listing *models.Listing, version int64) (bool, error) {
	raw, err := json.Marshal(listing)
	if err != nil {
		return false, fmt.Errorf("cache encode %s: %w", listing.ID, err)
	}

	stored := false
	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readVersion(ctx, tx, listing.ID)
		if err != nil {
			return err
		}
		if current != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, listingKey(listing.ID), raw, c.ttl)
			return nil
		})
		if err == nil {
			stored = true
		}
		return err
	}, listingVersionKey(listing.ID))

	if errors.Is(err, redis.TxFailedErr) {
		// Invalidated while we were writing.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache set %s: %w", listing.ID, err)
	}
	return stored, nil
}

// Invalidate bumps the listing's version and drops the cached copy.
func (c *ListingCache) Invalidate(ctx context.Context, id utils.SixID) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, listingVersionKey(id))
		pipe.Expire(ctx, listingVersionKey(id), listingVersionTTL)
		pipe.Del(ctx, listingKey(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache invalidate %s: %w", id, err)
	}
	return nil
}

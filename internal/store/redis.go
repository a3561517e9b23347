package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/finsim/market-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for assets and companies. Writes go to the primary store and
// invalidate the cache; reads check Redis first then fall back to the primary.
// Reads inside a transaction always go to the primary.
type CachedStore struct {
	Store
	rdb *redis.Client
	ttl time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		Store: primary,
		rdb:   rdb,
		ttl:   ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	var touched map[string]bool
	err := s.Store.InTx(ctx, func(tx Tx) error {
		// A retried attempt starts with a clean record.
		rec := &recordingTx{Tx: tx, companies: make(map[string]bool)}
		touched = rec.companies
		return fn(rec)
	})
	if err != nil {
		return err
	}
	for id := range touched {
		s.invalidate(ctx, companyKey(id))
	}
	return nil
}

func (s *CachedStore) UpdatePrice(ctx context.Context, ticker string, fn PriceFunc) (*model.Asset, error) {
	a, err := s.Store.UpdatePrice(ctx, ticker, fn)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, assetKey(ticker), a)
	return a, nil
}

func (s *CachedStore) UpsertAsset(ctx context.Context, a *model.Asset) error {
	if err := s.Store.UpsertAsset(ctx, a); err != nil {
		return err
	}
	// Invalidate cache; next read will re-populate.
	s.invalidate(ctx, assetKey(a.Ticker))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetAsset(ctx context.Context, ticker string) (*model.Asset, error) {
	return readThrough(ctx, s, assetKey(ticker), func(ctx context.Context) (*model.Asset, error) {
		return s.Store.GetAsset(ctx, ticker)
	})
}

func (s *CachedStore) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	return readThrough(ctx, s, companyKey(id), func(ctx context.Context) (*model.Company, error) {
		return s.Store.GetCompany(ctx, id)
	})
}

// readThrough serves key from Redis or loads it from the primary. The loaded
// value is cached only if key's version did not change while loading, so a
// write that commits during the load is never overwritten by the older row.
func readThrough[T any](ctx context.Context, s *CachedStore, key string, load func(context.Context) (*T, error)) (*T, error) {
	var v T
	if s.lookup(ctx, key, &v) {
		return &v, nil
	}

	var fresh *T
	var loadErr error
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		fresh, loadErr = load(ctx)
		if loadErr != nil {
			return loadErr
		}
		data, err := json.Marshal(fresh)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}, versionKey(key))
	if loadErr != nil {
		return nil, loadErr
	}
	if fresh == nil {
		// Redis failed before the load ran.
		slog.Warn("cache read failed", "key", key, "err", err)
		return load(ctx)
	}
	if err != nil && !errors.Is(err, redis.TxFailedErr) {
		slog.Warn("cache write failed", "key", key, "err", err)
	}
	return fresh, nil
}

// --- Cache helpers ---

func (s *CachedStore) lookup(ctx context.Context, key string, dst any) bool {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("cache read failed", "key", key, "err", err)
		}
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

// cache stores v under key and bumps its version.
func (s *CachedStore) cache(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		s.bump(ctx, pipe, key)
		pipe.Set(ctx, key, data, s.ttl)
		return nil
	})
	if err != nil {
		slog.Warn("cache write failed", "key", key, "err", err)
	}
}

// invalidate drops key and bumps its version.
func (s *CachedStore) invalidate(ctx context.Context, key string) {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		s.bump(ctx, pipe, key)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		slog.Warn("cache invalidation failed", "key", key, "err", err)
	}
}

func (s *CachedStore) bump(ctx context.Context, pipe redis.Pipeliner, key string) {
	pipe.Incr(ctx, versionKey(key))
	pipe.Expire(ctx, versionKey(key), versionTTL)
}

// versionTTL outlives any in-flight load.
const versionTTL = time.Hour

func assetKey(ticker string) string { return fmt.Sprintf("asset:%s", ticker) }
func companyKey(id string) string   { return fmt.Sprintf("company:%s", id) }
func versionKey(key string) string  { return key + ":ver" }

// recordingTx notes which companies a transaction writes so their cache
// entries can be dropped after commit.
type recordingTx struct {
	Tx
	companies map[string]bool
}

func (t *recordingTx) SetCash(ctx context.Context, owner model.Owner, cash decimal.Decimal) error {
	if owner.Kind == model.OwnerCompany {
		t.companies[owner.ID] = true
	}
	return t.Tx.SetCash(ctx, owner, cash)
}

func (t *recordingTx) InsertCompany(ctx context.Context, c *model.Company) error {
	t.companies[c.ID] = true
	return t.Tx.InsertCompany(ctx, c)
}

func (t *recordingTx) SetTotalShares(ctx context.Context, companyID string, totalShares decimal.Decimal) error {
	t.companies[companyID] = true
	return t.Tx.SetTotalShares(ctx, companyID, totalShares)
}

// Package memory provides an in-process Store backed by maps. It honors
// the same error and versioning contract as the durable backends, so it
// doubles as the reference implementation in tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	revenue "github.com/splitpot/revenue"
	"github.com/splitpot/revenue/analytics"
	"github.com/splitpot/revenue/coupon"
	"github.com/splitpot/revenue/entry"
	"github.com/splitpot/revenue/id"
)

type Store struct {
	mu sync.RWMutex

	closed bool

	// Ledger storage, append order
	entries []*entry.Entry

	// Coupon storage
	coupons         map[string]*coupon.Coupon
	lifetimeCoupons map[string]*coupon.LifetimeCoupon

	// Snapshot cache
	snapshots   map[string]*analytics.Snapshot
	cacheExpiry map[string]time.Time
}

func New() *Store {
	return &Store{
		entries:         make([]*entry.Entry, 0),
		coupons:         make(map[string]*coupon.Coupon),
		lifetimeCoupons: make(map[string]*coupon.LifetimeCoupon),
		snapshots:       make(map[string]*analytics.Snapshot),
		cacheExpiry:     make(map[string]time.Time),
	}
}

// Ledger implementation

func (s *Store) AppendEntry(_ context.Context, e *entry.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return revenue.ErrStoreClosed
	}

	cp := *e
	s.entries = append(s.entries, &cp)
	return nil
}

func (s *Store) QueryEntries(_ context.Context, f entry.Filter) ([]*entry.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, revenue.ErrStoreClosed
	}

	result := make([]*entry.Entry, 0)
	for _, e := range s.entries {
		if f.Matches(e) {
			cp := *e
			result = append(result, &cp)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Store) ListRecentEntries(_ context.Context, limit int) ([]*entry.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, revenue.ErrStoreClosed
	}

	result := make([]*entry.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		cp := *e
		result = append(result, &cp)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

// Coupon implementation

func (s *Store) CreateCoupon(_ context.Context, c *coupon.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return revenue.ErrStoreClosed
	}

	for _, existing := range s.coupons {
		if existing.Code == c.Code {
			return revenue.ErrDuplicateCode
		}
	}

	cp := *c
	s.coupons[c.ID.String()] = &cp
	return nil
}

func (s *Store) GetCoupon(_ context.Context, couponID id.CouponID) (*coupon.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, revenue.ErrStoreClosed
	}

	if c, ok := s.coupons[couponID.String()]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, revenue.ErrCouponNotFound
}

func (s *Store) GetCouponByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, revenue.ErrStoreClosed
	}

	for _, c := range s.coupons {
		if c.Code == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, revenue.ErrCouponNotFound
}

func (s *Store) ListCoupons(_ context.Context, opts coupon.ListOpts) ([]*coupon.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, revenue.ErrStoreClosed
	}

	result := make([]*coupon.Coupon, 0)
	for _, c := range s.coupons {
		if opts.UnusedOnly && c.IsUsed {
			continue
		}
		cp := *c
		result = append(result, &cp)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) UpdateCouponVersioned(_ context.Context, c *coupon.Coupon, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return revenue.ErrStoreClosed
	}

	stored, ok := s.coupons[c.ID.String()]
	if !ok {
		return revenue.ErrCouponNotFound
	}
	if stored.Version != expectedVersion {
		return revenue.ErrVersionConflict
	}

	cp := *c
	cp.Version = expectedVersion + 1
	cp.Touch()
	s.coupons[c.ID.String()] = &cp

	// Reflect the bump back to the caller like a RETURNING clause would.
	c.Version = cp.Version
	c.UpdatedAt = cp.UpdatedAt
	return nil
}

// Lifetime coupon implementation

func (s *Store) CreateLifetimeCoupon(_ context.Context, c *coupon.LifetimeCoupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return revenue.ErrStoreClosed
	}

	for _, existing := range s.lifetimeCoupons {
		if existing.Code == c.Code {
			return revenue.ErrDuplicateCode
		}
	}

	cp := *c
	s.lifetimeCoupons[c.ID.String()] = &cp
	return nil
}

func (s *Store) GetLifetimeCoupon(_ context.Context, couponID id.LifetimeCouponID) (*coupon.LifetimeCoupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, revenue.ErrStoreClosed
	}

	if c, ok := s.lifetimeCoupons[couponID.String()]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, revenue.ErrCouponNotFound
}

func (s *Store) GetLifetimeCouponByCode(_ context.Context, code string) (*coupon.LifetimeCoupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, revenue.ErrStoreClosed
	}

	for _, c := range s.lifetimeCoupons {
		if c.Code == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, revenue.ErrCouponNotFound
}

func (s *Store) ListLifetimeCoupons(_ context.Context, opts coupon.ListOpts) ([]*coupon.LifetimeCoupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, revenue.ErrStoreClosed
	}

	result := make([]*coupon.LifetimeCoupon, 0)
	for _, c := range s.lifetimeCoupons {
		if opts.UnusedOnly && c.AtCap() {
			continue
		}
		cp := *c
		result = append(result, &cp)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) UpdateLifetimeCouponVersioned(_ context.Context, c *coupon.LifetimeCoupon, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return revenue.ErrStoreClosed
	}

	stored, ok := s.lifetimeCoupons[c.ID.String()]
	if !ok {
		return revenue.ErrCouponNotFound
	}
	if stored.Version != expectedVersion {
		return revenue.ErrVersionConflict
	}

	cp := *c
	cp.Version = expectedVersion + 1
	cp.Touch()
	s.lifetimeCoupons[c.ID.String()] = &cp

	c.Version = cp.Version
	c.UpdatedAt = cp.UpdatedAt
	return nil
}

// Snapshot cache implementation

func (s *Store) GetCachedSnapshot(_ context.Context, key string) (*analytics.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, revenue.ErrStoreClosed
	}

	snap, ok := s.snapshots[key]
	if !ok {
		return nil, revenue.ErrNotFound
	}
	if expiry, ok := s.cacheExpiry[key]; ok && time.Now().After(expiry) {
		return nil, revenue.ErrNotFound
	}
	return snap, nil
}

func (s *Store) SetCachedSnapshot(_ context.Context, key string, snap *analytics.Snapshot, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return revenue.ErrStoreClosed
	}

	s.snapshots[key] = snap
	s.cacheExpiry[key] = time.Now().Add(ttl)
	return nil
}

func (s *Store) InvalidateSnapshots(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return revenue.ErrStoreClosed
	}

	s.snapshots = make(map[string]*analytics.Snapshot)
	s.cacheExpiry = make(map[string]time.Time)
	return nil
}

func (s *Store) PurgeExpiredSnapshots(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, revenue.ErrStoreClosed
	}

	var purged int64
	now := time.Now()
	for key, expiry := range s.cacheExpiry {
		if now.After(expiry) {
			delete(s.snapshots, key)
			delete(s.cacheExpiry, key)
			purged++
		}
	}
	return purged, nil
}

// Core implementation

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return revenue.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// page applies offset/limit to an already sorted slice.
func page[T any](items []T, offset, limit int) []T {
	start := offset
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if limit == 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

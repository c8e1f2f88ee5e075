// Package store defines the unified storage interface for the revenue
// engine and hosts its backend implementations.
package store

import (
	"context"
	"time"

	"github.com/splitpot/revenue/analytics"
	"github.com/splitpot/revenue/coupon"
	"github.com/splitpot/revenue/entry"
	"github.com/splitpot/revenue/id"
)

// Store is the unified storage interface for all revenue entities.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
//
// Error contract: missing records map to the package sentinels (never a
// driver error), deadline expiry maps to ErrStoreTimeout, and versioned
// updates return ErrVersionConflict when the stored version differs from
// the expected one.
type Store interface {
	// Ledger methods. The ledger is append-only: there is no update or
	// delete for entries.
	AppendEntry(ctx context.Context, e *entry.Entry) error
	QueryEntries(ctx context.Context, f entry.Filter) ([]*entry.Entry, error)
	ListRecentEntries(ctx context.Context, limit int) ([]*entry.Entry, error)

	// Coupon methods
	CreateCoupon(ctx context.Context, c *coupon.Coupon) error
	GetCoupon(ctx context.Context, couponID id.CouponID) (*coupon.Coupon, error)
	GetCouponByCode(ctx context.Context, code string) (*coupon.Coupon, error)
	ListCoupons(ctx context.Context, opts coupon.ListOpts) ([]*coupon.Coupon, error)
	UpdateCouponVersioned(ctx context.Context, c *coupon.Coupon, expectedVersion int64) error

	// Lifetime coupon methods
	CreateLifetimeCoupon(ctx context.Context, c *coupon.LifetimeCoupon) error
	GetLifetimeCoupon(ctx context.Context, couponID id.LifetimeCouponID) (*coupon.LifetimeCoupon, error)
	GetLifetimeCouponByCode(ctx context.Context, code string) (*coupon.LifetimeCoupon, error)
	ListLifetimeCoupons(ctx context.Context, opts coupon.ListOpts) ([]*coupon.LifetimeCoupon, error)
	UpdateLifetimeCouponVersioned(ctx context.Context, c *coupon.LifetimeCoupon, expectedVersion int64) error

	// Snapshot cache methods
	GetCachedSnapshot(ctx context.Context, key string) (*analytics.Snapshot, error)
	SetCachedSnapshot(ctx context.Context, key string, snap *analytics.Snapshot, ttl time.Duration) error
	InvalidateSnapshots(ctx context.Context) error
	PurgeExpiredSnapshots(ctx context.Context) (int64, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Package plugin provides an extensible hook system for the revenue engine.
// Plugins can hook into lifecycle events to extend functionality.
package plugin

import (
	"context"
	"time"

	"github.com/splitpot/revenue/analytics"
	"github.com/splitpot/revenue/coupon"
	"github.com/splitpot/revenue/entry"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine any) error
}

// OnShutdown is called when the engine is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnEntryAppended is called after an entry is durably appended.
type OnEntryAppended interface {
	Plugin
	OnEntryAppended(ctx context.Context, e *entry.Entry) error
}

// ──────────────────────────────────────────────────
// Coupon hooks
// ──────────────────────────────────────────────────

// OnCouponGenerated is called after a single-use coupon is created.
type OnCouponGenerated interface {
	Plugin
	OnCouponGenerated(ctx context.Context, c *coupon.Coupon) error
}

// OnCouponRedeemed is called after a single-use coupon is redeemed and its
// credit entry is appended.
type OnCouponRedeemed interface {
	Plugin
	OnCouponRedeemed(ctx context.Context, c *coupon.Coupon, credit *entry.Entry) error
}

// OnCouponExpired is called after a coupon is administratively expired.
type OnCouponExpired interface {
	Plugin
	OnCouponExpired(ctx context.Context, c *coupon.Coupon) error
}

// OnLifetimeCouponCreated is called after a lifetime coupon is created.
type OnLifetimeCouponCreated interface {
	Plugin
	OnLifetimeCouponCreated(ctx context.Context, c *coupon.LifetimeCoupon) error
}

// OnLifetimeCouponRedeemed is called after a lifetime coupon redemption.
type OnLifetimeCouponRedeemed interface {
	Plugin
	OnLifetimeCouponRedeemed(ctx context.Context, c *coupon.LifetimeCoupon, g *coupon.Grant) error
}

// OnRedemptionConflict is called when a redemption loses a versioned
// update race, before the retry re-read.
type OnRedemptionConflict interface {
	Plugin
	OnRedemptionConflict(ctx context.Context, code string, attempt int) error
}

// ──────────────────────────────────────────────────
// Analytics hooks
// ──────────────────────────────────────────────────

// OnSnapshotComputed is called after a snapshot is recomputed from the
// ledger (cache hits do not fire it).
type OnSnapshotComputed interface {
	Plugin
	OnSnapshotComputed(ctx context.Context, snap *analytics.Snapshot, elapsed time.Duration) error
}

// ──────────────────────────────────────────────────
// Coupon validators
// ──────────────────────────────────────────────────

// CouponValidator provides custom coupon validation logic. Validators run
// before redemption; a non-nil error rejects the redemption.
type CouponValidator interface {
	Plugin
	ValidateCoupon(ctx context.Context, c *coupon.Coupon, redeemerID string) error
}

package revenue

import (
	"github.com/splitpot/revenue/analytics"
	"github.com/splitpot/revenue/coupon"
	"github.com/splitpot/revenue/entry"
	"github.com/splitpot/revenue/types"
)

// Re-export common types for convenience so users don't have to import
// the leaf packages.

// Money is re-exported from types package.
type Money = types.Money

// Entity is re-exported from types package.
type Entity = types.Entity

// Entry is re-exported from entry package.
type Entry = entry.Entry

// Coupon is re-exported from coupon package.
type Coupon = coupon.Coupon

// LifetimeCoupon is re-exported from coupon package.
type LifetimeCoupon = coupon.LifetimeCoupon

// Grant is re-exported from coupon package.
type Grant = coupon.Grant

// Snapshot is re-exported from analytics package.
type Snapshot = analytics.Snapshot

// Scope is re-exported from analytics package.
type Scope = analytics.Scope

// DateRange is re-exported from analytics package.
type DateRange = analytics.DateRange

// Re-export Money constructors
var (
	Cents    = types.Cents
	Dollars  = types.Dollars
	ParseUSD = types.ParseUSD
)

// Re-export Entity constructor
var NewEntity = types.NewEntity

// Re-export scope constants
const (
	ScopeOwner = analytics.ScopeOwner
	ScopeAdmin = analytics.ScopeAdmin
)

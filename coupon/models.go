package coupon

import (
	"strings"
	"time"

	"github.com/splitpot/revenue/id"
	"github.com/splitpot/revenue/types"
)

// Coupon is a single-use credit. Redemption flips IsUsed exactly once;
// Version backs the optimistic-concurrency update that enforces it.
type Coupon struct {
	types.Entity
	ID          id.CouponID `bun:"id,pk" json:"id"`
	Code        string      `bun:"code,notnull,unique" json:"code"`
	Amount      types.Money `bun:"amount,notnull" json:"amount"`
	Description string      `bun:"description" json:"description,omitempty"`
	ExpiresAt   time.Time   `bun:"expires_at,notnull" json:"expiresAt"`
	IsUsed      bool        `bun:"is_used,notnull" json:"isUsed"`
	UsedBy      string      `bun:"used_by" json:"usedBy,omitempty"`
	UsedAt      *time.Time  `bun:"used_at" json:"usedAt,omitempty"`
	Version     int64       `bun:"version,notnull" json:"-"`
}

// Expired reports whether the coupon is past its expiry at the given time.
func (c *Coupon) Expired(at time.Time) bool {
	return at.After(c.ExpiresAt)
}

// LifetimeCoupon grants feature access and may be redeemed multiple times
// up to MaxRedemptions (0 means unbounded).
type LifetimeCoupon struct {
	types.Entity
	ID                 id.LifetimeCouponID `bun:"id,pk" json:"id"`
	Code               string              `bun:"code,notnull,unique" json:"code"`
	Description        string              `bun:"description" json:"description,omitempty"`
	ExpiresAt          time.Time           `bun:"expires_at,notnull" json:"expiresAt"`
	MaxRedemptions     int                 `bun:"max_redemptions,notnull" json:"maxRedemptions"`
	CurrentRedemptions int                 `bun:"current_redemptions,notnull" json:"currentRedemptions"`
	Features           []string            `bun:"features,array" json:"lifetimeFeatures,omitempty"`
	Version            int64               `bun:"version,notnull" json:"-"`
}

// Expired reports whether the coupon is past its expiry at the given time.
func (c *LifetimeCoupon) Expired(at time.Time) bool {
	return at.After(c.ExpiresAt)
}

// AtCap reports whether the redemption cap has been reached.
func (c *LifetimeCoupon) AtCap() bool {
	return c.MaxRedemptions > 0 && c.CurrentRedemptions >= c.MaxRedemptions
}

// Grant is the result of a successful lifetime redemption. Remaining is -1
// when the coupon is unbounded.
type Grant struct {
	Code       string    `json:"code"`
	Features   []string  `json:"features"`
	RedeemedAt time.Time `json:"redeemedAt"`
	Remaining  int       `json:"remaining"`
}

// NormalizeCode canonicalizes a coupon code for storage and lookup.
// Codes are case-insensitive on input and stored uppercase.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

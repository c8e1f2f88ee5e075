package postgres

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"

	"github.com/splitpot/revenue/coupon"
	"github.com/splitpot/revenue/entry"
	"github.com/splitpot/revenue/id"
	"github.com/splitpot/revenue/types"
)

// ==================== Entry models ====================

type entryModel struct {
	bun.BaseModel `bun:"table:revenue_entries"`

	ID        string    `bun:"id,pk"`
	Amount    int64     `bun:"amount_cents"`
	Source    string    `bun:"source"`
	Status    string    `bun:"status"`
	Chain     string    `bun:"chain"`
	GameType  string    `bun:"game_type"`
	GroupID   string    `bun:"group_id"`
	UserID    string    `bun:"user_id"`
	CouponID  *string   `bun:"coupon_id"`
	CreatedAt time.Time `bun:"created_at"`
}

func toEntryModel(e *entry.Entry) *entryModel {
	m := &entryModel{
		ID:        e.ID.String(),
		Amount:    e.Amount.Cents(),
		Source:    string(e.Source),
		Status:    string(e.Status),
		Chain:     e.Chain,
		GameType:  e.GameType,
		GroupID:   e.GroupID,
		UserID:    e.UserID,
		CreatedAt: e.CreatedAt,
	}
	if !e.CouponID.IsNil() {
		s := e.CouponID.String()
		m.CouponID = &s
	}
	return m
}

func fromEntryModel(m *entryModel) (*entry.Entry, error) {
	entryID, err := id.ParseEntryID(m.ID)
	if err != nil {
		return nil, err
	}

	e := &entry.Entry{
		ID:        entryID,
		Amount:    types.Cents(m.Amount),
		Source:    entry.Source(m.Source),
		Status:    entry.Status(m.Status),
		Chain:     m.Chain,
		GameType:  m.GameType,
		GroupID:   m.GroupID,
		UserID:    m.UserID,
		CreatedAt: m.CreatedAt,
	}
	if m.CouponID != nil && *m.CouponID != "" {
		couponID, err := id.Parse(*m.CouponID)
		if err != nil {
			return nil, err
		}
		e.CouponID = couponID
	}
	return e, nil
}

// ==================== Coupon models ====================

type couponModel struct {
	bun.BaseModel `bun:"table:revenue_coupons"`

	ID          string     `bun:"id,pk"`
	Code        string     `bun:"code"`
	Amount      int64      `bun:"amount_cents"`
	Description string     `bun:"description"`
	ExpiresAt   time.Time  `bun:"expires_at"`
	IsUsed      bool       `bun:"is_used"`
	UsedBy      string     `bun:"used_by"`
	UsedAt      *time.Time `bun:"used_at"`
	Version     int64      `bun:"version"`
	CreatedAt   time.Time  `bun:"created_at"`
	UpdatedAt   time.Time  `bun:"updated_at"`
}

func toCouponModel(c *coupon.Coupon) *couponModel {
	return &couponModel{
		ID:          c.ID.String(),
		Code:        c.Code,
		Amount:      c.Amount.Cents(),
		Description: c.Description,
		ExpiresAt:   c.ExpiresAt,
		IsUsed:      c.IsUsed,
		UsedBy:      c.UsedBy,
		UsedAt:      c.UsedAt,
		Version:     c.Version,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func fromCouponModel(m *couponModel) (*coupon.Coupon, error) {
	couponID, err := id.ParseCouponID(m.ID)
	if err != nil {
		return nil, err
	}

	return &coupon.Coupon{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          couponID,
		Code:        m.Code,
		Amount:      types.Cents(m.Amount),
		Description: m.Description,
		ExpiresAt:   m.ExpiresAt,
		IsUsed:      m.IsUsed,
		UsedBy:      m.UsedBy,
		UsedAt:      m.UsedAt,
		Version:     m.Version,
	}, nil
}

// ==================== Lifetime coupon models ====================

type lifetimeCouponModel struct {
	bun.BaseModel `bun:"table:revenue_lifetime_coupons"`

	ID                 string          `bun:"id,pk"`
	Code               string          `bun:"code"`
	Description        string          `bun:"description"`
	ExpiresAt          time.Time       `bun:"expires_at"`
	MaxRedemptions     int             `bun:"max_redemptions"`
	CurrentRedemptions int             `bun:"current_redemptions"`
	Features           json.RawMessage `bun:"features,type:jsonb"`
	Version            int64           `bun:"version"`
	CreatedAt          time.Time       `bun:"created_at"`
	UpdatedAt          time.Time       `bun:"updated_at"`
}

func toLifetimeCouponModel(c *coupon.LifetimeCoupon) *lifetimeCouponModel {
	features, _ := json.Marshal(c.Features) //nolint:errcheck // best-effort

	return &lifetimeCouponModel{
		ID:                 c.ID.String(),
		Code:               c.Code,
		Description:        c.Description,
		ExpiresAt:          c.ExpiresAt,
		MaxRedemptions:     c.MaxRedemptions,
		CurrentRedemptions: c.CurrentRedemptions,
		Features:           features,
		Version:            c.Version,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}

func fromLifetimeCouponModel(m *lifetimeCouponModel) (*coupon.LifetimeCoupon, error) {
	couponID, err := id.ParseLifetimeCouponID(m.ID)
	if err != nil {
		return nil, err
	}

	var features []string
	if len(m.Features) > 0 {
		_ = json.Unmarshal(m.Features, &features) //nolint:errcheck // best-effort
	}

	return &coupon.LifetimeCoupon{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                 couponID,
		Code:               m.Code,
		Description:        m.Description,
		ExpiresAt:          m.ExpiresAt,
		MaxRedemptions:     m.MaxRedemptions,
		CurrentRedemptions: m.CurrentRedemptions,
		Features:           features,
		Version:            m.Version,
	}, nil
}

// ==================== Snapshot cache models ====================

type snapshotModel struct {
	bun.BaseModel `bun:"table:revenue_snapshot_cache"`

	Key       string          `bun:"key,pk"`
	Payload   json.RawMessage `bun:"payload,type:jsonb"`
	ExpiresAt time.Time       `bun:"expires_at"`
}

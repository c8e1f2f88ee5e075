package mongo

import (
	"time"

	"github.com/splitpot/revenue/coupon"
	"github.com/splitpot/revenue/entry"
	"github.com/splitpot/revenue/id"
	"github.com/splitpot/revenue/types"
)

// ==================== Entry models ====================

type entryModel struct {
	ID        string    `bson:"_id"`
	Amount    int64     `bson:"amount_cents"`
	Source    string    `bson:"source"`
	Status    string    `bson:"status"`
	Chain     string    `bson:"chain,omitempty"`
	GameType  string    `bson:"game_type,omitempty"`
	GroupID   string    `bson:"group_id,omitempty"`
	UserID    string    `bson:"user_id,omitempty"`
	CouponID  string    `bson:"coupon_id,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

func toEntryModel(e *entry.Entry) *entryModel {
	return &entryModel{
		ID:        e.ID.String(),
		Amount:    e.Amount.Cents(),
		Source:    string(e.Source),
		Status:    string(e.Status),
		Chain:     e.Chain,
		GameType:  e.GameType,
		GroupID:   e.GroupID,
		UserID:    e.UserID,
		CouponID:  e.CouponID.String(),
		CreatedAt: e.CreatedAt,
	}
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
	if m.CouponID != "" {
		couponID, err := id.Parse(m.CouponID)
		if err != nil {
			return nil, err
		}
		e.CouponID = couponID
	}
	return e, nil
}

// ==================== Coupon models ====================

type couponModel struct {
	ID          string     `bson:"_id"`
	Code        string     `bson:"code"`
	Amount      int64      `bson:"amount_cents"`
	Description string     `bson:"description,omitempty"`
	ExpiresAt   time.Time  `bson:"expires_at"`
	IsUsed      bool       `bson:"is_used"`
	UsedBy      string     `bson:"used_by,omitempty"`
	UsedAt      *time.Time `bson:"used_at,omitempty"`
	Version     int64      `bson:"version"`
	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
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
	ID                 string    `bson:"_id"`
	Code               string    `bson:"code"`
	Description        string    `bson:"description,omitempty"`
	ExpiresAt          time.Time `bson:"expires_at"`
	MaxRedemptions     int       `bson:"max_redemptions"`
	CurrentRedemptions int       `bson:"current_redemptions"`
	Features           []string  `bson:"features,omitempty"`
	Version            int64     `bson:"version"`
	CreatedAt          time.Time `bson:"created_at"`
	UpdatedAt          time.Time `bson:"updated_at"`
}

func toLifetimeCouponModel(c *coupon.LifetimeCoupon) *lifetimeCouponModel {
	return &lifetimeCouponModel{
		ID:                 c.ID.String(),
		Code:               c.Code,
		Description:        c.Description,
		ExpiresAt:          c.ExpiresAt,
		MaxRedemptions:     c.MaxRedemptions,
		CurrentRedemptions: c.CurrentRedemptions,
		Features:           c.Features,
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
		Features:           m.Features,
		Version:            m.Version,
	}, nil
}

// ==================== Snapshot cache models ====================

type snapshotModel struct {
	Key       string    `bson:"_id"`
	Payload   []byte    `bson:"payload"`
	ExpiresAt time.Time `bson:"expires_at"`
}

package entry

import (
	"time"

	"github.com/splitpot/revenue/id"
	"github.com/splitpot/revenue/types"
)

// Entry is one immutable monetary event in the ledger. Amounts are always
// positive; direction comes from Source (withdrawal subtracts).
type Entry struct {
	ID        id.EntryID  `json:"id"`
	Amount    types.Money `json:"amount"`
	Source    Source      `json:"source"`
	Status    Status      `json:"status"`
	Chain     string      `json:"chain,omitempty"`
	GameType  string      `json:"gameType,omitempty"`
	GroupID   string      `json:"groupId,omitempty"`
	UserID    string      `json:"userId,omitempty"`
	CouponID  id.CouponID `json:"couponId,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Source classifies where the money movement came from. The set is closed;
// anything else is rejected at ingestion.
type Source string

const (
	SourceGameFees      Source = "game_fees"
	SourceSubscriptions Source = "subscriptions"
	SourceDeposit       Source = "deposit"
	SourceWithdrawal    Source = "withdrawal"
)

// Valid reports whether s is a member of the closed source set.
func (s Source) Valid() bool {
	switch s {
	case SourceGameFees, SourceSubscriptions, SourceDeposit, SourceWithdrawal:
		return true
	default:
		return false
	}
}

// Status is the settlement state of an entry. Only confirmed entries count
// toward revenue and liquidity.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Valid reports whether s is a member of the closed status set.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusFailed:
		return true
	default:
		return false
	}
}

// Filter narrows a ledger query. Zero fields match everything; From/To
// bound CreatedAt inclusively at From and exclusively at To.
type Filter struct {
	Sources  []Source
	Statuses []Status
	From     time.Time
	To       time.Time
	GroupID  string
}

// MatchesSource reports whether src passes the source filter.
func (f Filter) MatchesSource(src Source) bool {
	if len(f.Sources) == 0 {
		return true
	}
	for _, s := range f.Sources {
		if s == src {
			return true
		}
	}

	return false
}

// MatchesStatus reports whether st passes the status filter.
func (f Filter) MatchesStatus(st Status) bool {
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if s == st {
			return true
		}
	}

	return false
}

// Matches reports whether e passes every filter dimension.
func (f Filter) Matches(e *Entry) bool {
	if !f.MatchesSource(e.Source) || !f.MatchesStatus(e.Status) {
		return false
	}
	if f.GroupID != "" && e.GroupID != f.GroupID {
		return false
	}
	if !f.From.IsZero() && e.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !e.CreatedAt.Before(f.To) {
		return false
	}

	return true
}

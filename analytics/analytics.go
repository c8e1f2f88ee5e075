// Package analytics derives revenue snapshots from ledger entries.
//
// Snapshots are never stored; they are recomputed from the ledger on
// demand by a deterministic single-pass fold. Month buckets use UTC.
package analytics

import (
	"sort"
	"time"

	"github.com/splitpot/revenue/entry"
	"github.com/splitpot/revenue/types"
)

// Scope selects how much of a snapshot a caller may see.
type Scope string

const (
	ScopeOwner Scope = "owner"
	ScopeAdmin Scope = "admin"
)

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	return s == ScopeOwner || s == ScopeAdmin
}

// DateRange bounds a snapshot computation. Zero fields mean unbounded.
// From is inclusive, To exclusive.
type DateRange struct {
	From time.Time
	To   time.Time
}

// activeWindow is how far back a group's latest confirmed entry may be
// for the group to count as active.
const activeWindow = 30 * 24 * time.Hour

// SystemMetrics is the admin-only platform health section.
type SystemMetrics struct {
	TotalDeposited           types.Money `json:"totalDeposited"`
	TotalWithdrawn           types.Money `json:"totalWithdrawn"`
	SystemLiquidity          types.Money `json:"systemLiquidity"`
	TotalSystemBalance       types.Money `json:"totalSystemBalance"`
	TotalSubscriptionRevenue types.Money `json:"totalSubscriptionRevenue"`
	ActiveGroups             int         `json:"activeGroups"`
	TotalGroups              int         `json:"totalGroups"`
}

// MonthlyRow is one (month, source) aggregate. Month is "YYYY-MM" in UTC.
type MonthlyRow struct {
	Month  string       `json:"month"`
	Source entry.Source `json:"source"`
	Amount types.Money  `json:"amount"`
}

// MonthlyStat is the per-month revenue total across owner revenue sources.
type MonthlyStat struct {
	Month   string      `json:"month"`
	Revenue types.Money `json:"revenue"`
	Entries int         `json:"entries"`
}

// Snapshot is a derived, point-in-time view of the ledger. Only confirmed
// entries contribute to totals; pending entries are surfaced separately
// and failed entries are ignored entirely.
type Snapshot struct {
	TotalRevenue        types.Money    `json:"totalRevenue"`
	GameFeesRevenue     types.Money    `json:"gameFeesRevenue"`
	SubscriptionRevenue types.Money    `json:"subscriptionRevenue"`
	MonthlyBreakdown    []MonthlyRow   `json:"monthlyBreakdown"`
	MonthlyStats        []MonthlyStat  `json:"monthlyStats"`
	SystemMetrics       *SystemMetrics `json:"systemMetrics,omitempty"`
	PendingAmount       types.Money    `json:"pendingAmount"`
	PendingCount        int            `json:"pendingCount"`
	ComputedAt          time.Time      `json:"computedAt"`
}

// ForScope returns the projection of s a given scope may see. Owner scope
// drops system metrics and the pending section.
func (s *Snapshot) ForScope(scope Scope) *Snapshot {
	if scope == ScopeAdmin {
		return s
	}

	owner := *s
	owner.SystemMetrics = nil
	owner.PendingAmount = 0
	owner.PendingCount = 0

	return &owner
}

// Fold reduces entries into a Snapshot in one pass. The input order does
// not affect totals; breakdown rows come out sorted by month then source.
// now anchors the active-group window and ComputedAt.
func Fold(entries []*entry.Entry, now time.Time) *Snapshot {
	snap := &Snapshot{
		MonthlyBreakdown: []MonthlyRow{},
		MonthlyStats:     []MonthlyStat{},
		ComputedAt:       now.UTC(),
	}
	metrics := &SystemMetrics{}

	type monthSource struct {
		month  string
		source entry.Source
	}

	breakdown := make(map[monthSource]types.Money)
	monthRevenue := make(map[string]types.Money)
	monthEntries := make(map[string]int)
	groups := make(map[string]time.Time)
	activeCutoff := now.Add(-activeWindow)

	for _, e := range entries {
		if e.GroupID != "" && e.Status == entry.StatusConfirmed {
			if last, ok := groups[e.GroupID]; !ok || e.CreatedAt.After(last) {
				groups[e.GroupID] = e.CreatedAt
			}
		}

		switch e.Status {
		case entry.StatusPending:
			snap.PendingAmount = snap.PendingAmount.Add(e.Amount)
			snap.PendingCount++

			continue
		case entry.StatusFailed:
			continue
		case entry.StatusConfirmed:
		}

		month := e.CreatedAt.UTC().Format("2006-01")
		key := monthSource{month: month, source: e.Source}
		breakdown[key] = breakdown[key].Add(e.Amount)

		switch e.Source {
		case entry.SourceGameFees:
			snap.GameFeesRevenue = snap.GameFeesRevenue.Add(e.Amount)
			monthRevenue[month] = monthRevenue[month].Add(e.Amount)
			monthEntries[month]++
		case entry.SourceSubscriptions:
			snap.SubscriptionRevenue = snap.SubscriptionRevenue.Add(e.Amount)
			metrics.TotalSubscriptionRevenue = metrics.TotalSubscriptionRevenue.Add(e.Amount)
			monthRevenue[month] = monthRevenue[month].Add(e.Amount)
			monthEntries[month]++
		case entry.SourceDeposit:
			metrics.TotalDeposited = metrics.TotalDeposited.Add(e.Amount)
		case entry.SourceWithdrawal:
			metrics.TotalWithdrawn = metrics.TotalWithdrawn.Add(e.Amount)
		}
	}

	snap.TotalRevenue = snap.GameFeesRevenue.Add(snap.SubscriptionRevenue)
	metrics.SystemLiquidity = metrics.TotalDeposited.Sub(metrics.TotalWithdrawn)
	metrics.TotalSystemBalance = metrics.SystemLiquidity.Sub(snap.TotalRevenue)

	metrics.TotalGroups = len(groups)
	for _, last := range groups {
		if !last.Before(activeCutoff) {
			metrics.ActiveGroups++
		}
	}
	snap.SystemMetrics = metrics

	for key, amount := range breakdown {
		snap.MonthlyBreakdown = append(snap.MonthlyBreakdown, MonthlyRow{
			Month:  key.month,
			Source: key.source,
			Amount: amount,
		})
	}
	sort.Slice(snap.MonthlyBreakdown, func(i, j int) bool {
		a, b := snap.MonthlyBreakdown[i], snap.MonthlyBreakdown[j]
		if a.Month != b.Month {
			return a.Month < b.Month
		}

		return a.Source < b.Source
	})

	for month, revenue := range monthRevenue {
		snap.MonthlyStats = append(snap.MonthlyStats, MonthlyStat{
			Month:   month,
			Revenue: revenue,
			Entries: monthEntries[month],
		})
	}
	sort.Slice(snap.MonthlyStats, func(i, j int) bool {
		return snap.MonthlyStats[i].Month < snap.MonthlyStats[j].Month
	})

	return snap
}

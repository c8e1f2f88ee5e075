package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	revenue "github.com/splitpot/revenue"
	"github.com/splitpot/revenue/analytics"
	"github.com/splitpot/revenue/coupon"
	"github.com/splitpot/revenue/entry"
	"github.com/splitpot/revenue/id"
	"github.com/splitpot/revenue/store/memory"
	"github.com/splitpot/revenue/types"
)

func newCoupon(code string) *coupon.Coupon {
	return &coupon.Coupon{
		Entity:    types.NewEntity(),
		ID:        id.NewCouponID(),
		Code:      code,
		Amount:    types.Dollars(25),
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
}

func TestAppendAndQueryEntries(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, src := range []entry.Source{entry.SourceDeposit, entry.SourceGameFees, entry.SourceWithdrawal} {
		e := &entry.Entry{
			ID:        id.NewEntryID(),
			Amount:    types.Dollars(10),
			Source:    src,
			Status:    entry.StatusConfirmed,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := s.AppendEntry(ctx, e); err != nil {
			t.Fatalf("AppendEntry error: %v", err)
		}
	}

	all, err := s.QueryEntries(ctx, entry.Filter{})
	if err != nil {
		t.Fatalf("QueryEntries error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d entries, want 3", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].CreatedAt.Before(all[i-1].CreatedAt) {
			t.Error("QueryEntries not ascending by CreatedAt")
		}
	}

	deposits, err := s.QueryEntries(ctx, entry.Filter{Sources: []entry.Source{entry.SourceDeposit}})
	if err != nil {
		t.Fatalf("QueryEntries error: %v", err)
	}
	if len(deposits) != 1 || deposits[0].Source != entry.SourceDeposit {
		t.Errorf("source filter returned %+v", deposits)
	}
}

func TestListRecentEntries(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_ = s.AppendEntry(ctx, &entry.Entry{
			ID:        id.NewEntryID(),
			Amount:    types.Dollars(1),
			Source:    entry.SourceDeposit,
			Status:    entry.StatusConfirmed,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	recent, err := s.ListRecentEntries(ctx, 3)
	if err != nil {
		t.Fatalf("ListRecentEntries error: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("got %d entries, want 3", len(recent))
	}
	if !recent[0].CreatedAt.After(recent[1].CreatedAt) {
		t.Error("ListRecentEntries not descending")
	}
}

func TestCouponCRUD(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	c := newCoupon("WELCOME25")
	if err := s.CreateCoupon(ctx, c); err != nil {
		t.Fatalf("CreateCoupon error: %v", err)
	}

	if err := s.CreateCoupon(ctx, newCoupon("WELCOME25")); !errors.Is(err, revenue.ErrDuplicateCode) {
		t.Errorf("duplicate code error = %v, want ErrDuplicateCode", err)
	}

	got, err := s.GetCouponByCode(ctx, "WELCOME25")
	if err != nil {
		t.Fatalf("GetCouponByCode error: %v", err)
	}
	if got.ID.String() != c.ID.String() {
		t.Errorf("GetCouponByCode returned wrong coupon")
	}

	if _, err := s.GetCouponByCode(ctx, "MISSING"); !errors.Is(err, revenue.ErrCouponNotFound) {
		t.Errorf("missing code error = %v, want ErrCouponNotFound", err)
	}
	if _, err := s.GetCoupon(ctx, id.NewCouponID()); !errors.Is(err, revenue.ErrCouponNotFound) {
		t.Errorf("missing id error = %v, want ErrCouponNotFound", err)
	}
}

func TestUpdateCouponVersioned(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	c := newCoupon("VERSIONED")
	if err := s.CreateCoupon(ctx, c); err != nil {
		t.Fatalf("CreateCoupon error: %v", err)
	}

	c.IsUsed = true
	if err := s.UpdateCouponVersioned(ctx, c, 0); err != nil {
		t.Fatalf("UpdateCouponVersioned error: %v", err)
	}
	if c.Version != 1 {
		t.Errorf("Version = %d, want 1 after update", c.Version)
	}

	// A writer still holding version 0 must lose.
	stale := *c
	if err := s.UpdateCouponVersioned(ctx, &stale, 0); !errors.Is(err, revenue.ErrVersionConflict) {
		t.Errorf("stale update error = %v, want ErrVersionConflict", err)
	}
}

func TestConcurrentVersionedUpdateOneWinner(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	c := newCoupon("RACE")
	if err := s.CreateCoupon(ctx, c); err != nil {
		t.Fatalf("CreateCoupon error: %v", err)
	}

	const writers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			cp := *c
			cp.IsUsed = true
			if err := s.UpdateCouponVersioned(ctx, &cp, 0); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("winners = %d, want exactly 1", wins)
	}
}

func TestLifetimeCouponVersioned(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	c := &coupon.LifetimeCoupon{
		Entity:         types.NewEntity(),
		ID:             id.NewLifetimeCouponID(),
		Code:           "LIFETIME",
		ExpiresAt:      time.Now().Add(365 * 24 * time.Hour),
		MaxRedemptions: 2,
	}
	if err := s.CreateLifetimeCoupon(ctx, c); err != nil {
		t.Fatalf("CreateLifetimeCoupon error: %v", err)
	}

	c.CurrentRedemptions = 1
	if err := s.UpdateLifetimeCouponVersioned(ctx, c, 0); err != nil {
		t.Fatalf("UpdateLifetimeCouponVersioned error: %v", err)
	}

	got, err := s.GetLifetimeCouponByCode(ctx, "LIFETIME")
	if err != nil {
		t.Fatalf("GetLifetimeCouponByCode error: %v", err)
	}
	if got.CurrentRedemptions != 1 || got.Version != 1 {
		t.Errorf("got redemptions=%d version=%d, want 1/1", got.CurrentRedemptions, got.Version)
	}

	stale := *got
	stale.CurrentRedemptions = 2
	if err := s.UpdateLifetimeCouponVersioned(ctx, &stale, 0); !errors.Is(err, revenue.ErrVersionConflict) {
		t.Errorf("stale update error = %v, want ErrVersionConflict", err)
	}
}

func TestListCouponsOrderingAndPaging(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	for i, code := range []string{"AAA", "BBB", "CCC"} {
		c := newCoupon(code)
		c.CreatedAt = time.Date(2025, 1, 1+i, 0, 0, 0, 0, time.UTC)
		if err := s.CreateCoupon(ctx, c); err != nil {
			t.Fatalf("CreateCoupon error: %v", err)
		}
	}

	all, err := s.ListCoupons(ctx, coupon.ListOpts{})
	if err != nil {
		t.Fatalf("ListCoupons error: %v", err)
	}
	if len(all) != 3 || all[0].Code != "CCC" {
		t.Errorf("expected newest first, got %+v", all)
	}

	paged, err := s.ListCoupons(ctx, coupon.ListOpts{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("ListCoupons error: %v", err)
	}
	if len(paged) != 1 || paged[0].Code != "BBB" {
		t.Errorf("paging returned %+v, want [BBB]", paged)
	}
}

func TestSnapshotCache(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	snap := &analytics.Snapshot{TotalRevenue: types.Dollars(42)}
	if err := s.SetCachedSnapshot(ctx, "admin|all", snap, time.Minute); err != nil {
		t.Fatalf("SetCachedSnapshot error: %v", err)
	}

	got, err := s.GetCachedSnapshot(ctx, "admin|all")
	if err != nil {
		t.Fatalf("GetCachedSnapshot error: %v", err)
	}
	if got.TotalRevenue != snap.TotalRevenue {
		t.Error("cached snapshot mismatch")
	}

	if _, err := s.GetCachedSnapshot(ctx, "other"); !errors.Is(err, revenue.ErrNotFound) {
		t.Errorf("missing key error = %v, want ErrNotFound", err)
	}

	if err := s.InvalidateSnapshots(ctx); err != nil {
		t.Fatalf("InvalidateSnapshots error: %v", err)
	}
	if _, err := s.GetCachedSnapshot(ctx, "admin|all"); !errors.Is(err, revenue.ErrNotFound) {
		t.Errorf("post-invalidate error = %v, want ErrNotFound", err)
	}
}

func TestSnapshotCacheExpiry(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	snap := &analytics.Snapshot{}
	if err := s.SetCachedSnapshot(ctx, "k", snap, -time.Second); err != nil {
		t.Fatalf("SetCachedSnapshot error: %v", err)
	}

	if _, err := s.GetCachedSnapshot(ctx, "k"); !errors.Is(err, revenue.ErrNotFound) {
		t.Errorf("expired entry error = %v, want ErrNotFound", err)
	}

	purged, err := s.PurgeExpiredSnapshots(ctx)
	if err != nil {
		t.Fatalf("PurgeExpiredSnapshots error: %v", err)
	}
	if purged != 1 {
		t.Errorf("purged = %d, want 1", purged)
	}
}

func TestClosedStore(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	if err := s.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	if err := s.Ping(ctx); !errors.Is(err, revenue.ErrStoreClosed) {
		t.Errorf("Ping after close = %v, want ErrStoreClosed", err)
	}
	if err := s.AppendEntry(ctx, &entry.Entry{}); !errors.Is(err, revenue.ErrStoreClosed) {
		t.Errorf("AppendEntry after close = %v, want ErrStoreClosed", err)
	}
}

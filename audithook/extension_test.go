package audithook_test

import (
	"context"
	"testing"

	"github.com/splitpot/revenue/audithook"
	"github.com/splitpot/revenue/coupon"
	"github.com/splitpot/revenue/entry"
	"github.com/splitpot/revenue/id"
	"github.com/splitpot/revenue/types"
)

type captureRecorder struct {
	events []*audithook.AuditEvent
}

func (r *captureRecorder) Record(_ context.Context, e *audithook.AuditEvent) error {
	r.events = append(r.events, e)
	return nil
}

func TestRecordsCouponRedemption(t *testing.T) {
	ctx := context.Background()
	rec := &captureRecorder{}
	ext := audithook.New(rec)

	c := &coupon.Coupon{
		ID:     id.NewCouponID(),
		Code:   "SUMMER25",
		Amount: types.Dollars(25),
		UsedBy: "user1",
	}
	credit := &entry.Entry{ID: id.NewEntryID()}

	if err := ext.OnCouponRedeemed(ctx, c, credit); err != nil {
		t.Fatalf("OnCouponRedeemed error: %v", err)
	}

	if len(rec.events) != 1 {
		t.Fatalf("got %d events, want 1", len(rec.events))
	}
	evt := rec.events[0]
	if evt.Action != audithook.ActionCouponRedeemed {
		t.Errorf("action = %q, want %q", evt.Action, audithook.ActionCouponRedeemed)
	}
	if evt.ResourceID != c.ID.String() {
		t.Errorf("resource_id = %q, want %q", evt.ResourceID, c.ID)
	}
	if evt.Metadata["redeemed_by"] != "user1" {
		t.Errorf("redeemed_by = %v, want user1", evt.Metadata["redeemed_by"])
	}
}

func TestEnabledActionsFilter(t *testing.T) {
	ctx := context.Background()
	rec := &captureRecorder{}
	ext := audithook.New(rec, audithook.WithEnabledActions(audithook.ActionCouponExpired))

	c := &coupon.Coupon{ID: id.NewCouponID(), Code: "X"}
	if err := ext.OnCouponGenerated(ctx, c); err != nil {
		t.Fatal(err)
	}
	if err := ext.OnCouponExpired(ctx, c); err != nil {
		t.Fatal(err)
	}

	if len(rec.events) != 1 {
		t.Fatalf("got %d events, want 1", len(rec.events))
	}
	if rec.events[0].Action != audithook.ActionCouponExpired {
		t.Errorf("recorded %q, want only %q", rec.events[0].Action, audithook.ActionCouponExpired)
	}
}

func TestDisabledActionsFilter(t *testing.T) {
	ctx := context.Background()
	rec := &captureRecorder{}
	ext := audithook.New(rec, audithook.WithDisabledActions(audithook.ActionEntryAppended))

	e := &entry.Entry{ID: id.NewEntryID(), Source: entry.SourceDeposit, Status: entry.StatusConfirmed}
	if err := ext.OnEntryAppended(ctx, e); err != nil {
		t.Fatal(err)
	}
	if len(rec.events) != 0 {
		t.Errorf("got %d events, want 0", len(rec.events))
	}
}

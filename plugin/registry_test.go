package plugin_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/splitpot/revenue/coupon"
	"github.com/splitpot/revenue/entry"
	"github.com/splitpot/revenue/plugin"
)

type recordingPlugin struct {
	name     string
	appended int
	redeemed int
	valErr   error
}

func (p *recordingPlugin) Name() string { return p.name }

func (p *recordingPlugin) OnEntryAppended(_ context.Context, _ *entry.Entry) error {
	p.appended++
	return nil
}

func (p *recordingPlugin) OnCouponRedeemed(_ context.Context, _ *coupon.Coupon, _ *entry.Entry) error {
	p.redeemed++
	return nil
}

func (p *recordingPlugin) ValidateCoupon(_ context.Context, _ *coupon.Coupon, _ string) error {
	return p.valErr
}

type slowPlugin struct{ done chan struct{} }

func (p *slowPlugin) Name() string { return "slow" }

func (p *slowPlugin) OnEntryAppended(_ context.Context, _ *entry.Entry) error {
	<-p.done
	return nil
}

func TestRegisterAndDispatch(t *testing.T) {
	ctx := context.Background()
	r := plugin.NewRegistry()
	p := &recordingPlugin{name: "rec"}

	if err := r.Register(p); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d, want 1", r.Count())
	}
	if r.Get("rec") == nil {
		t.Error("Get returned nil for registered plugin")
	}
	if r.Get("other") != nil {
		t.Error("Get returned plugin for unknown name")
	}

	r.EmitEntryAppended(ctx, &entry.Entry{})
	r.EmitEntryAppended(ctx, &entry.Entry{})
	r.EmitCouponRedeemed(ctx, &coupon.Coupon{}, &entry.Entry{})

	if p.appended != 2 {
		t.Errorf("appended = %d, want 2", p.appended)
	}
	if p.redeemed != 1 {
		t.Errorf("redeemed = %d, want 1", p.redeemed)
	}
}

func TestRegisterDuplicateName(t *testing.T) {
	r := plugin.NewRegistry()

	if err := r.Register(&recordingPlugin{name: "dup"}); err != nil {
		t.Fatalf("first Register error: %v", err)
	}
	if err := r.Register(&recordingPlugin{name: "dup"}); err == nil {
		t.Error("duplicate Register succeeded, want error")
	}
}

func TestValidateCouponPropagatesError(t *testing.T) {
	ctx := context.Background()
	r := plugin.NewRegistry()

	wantErr := errors.New("blocked redeemer")
	if err := r.Register(&recordingPlugin{name: "ok"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(&recordingPlugin{name: "deny", valErr: wantErr}); err != nil {
		t.Fatal(err)
	}

	if err := r.ValidateCoupon(ctx, &coupon.Coupon{}, "user1"); !errors.Is(err, wantErr) {
		t.Errorf("ValidateCoupon = %v, want %v", err, wantErr)
	}
}

func TestEmitHonorsContextCancel(t *testing.T) {
	r := plugin.NewRegistry()
	p := &slowPlugin{done: make(chan struct{})}
	if err := r.Register(p); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	r.EmitEntryAppended(ctx, &entry.Entry{})
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("emission blocked for %v despite canceled context", elapsed)
	}
	close(p.done)
}

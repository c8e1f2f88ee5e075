// Package audithook bridges revenue engine lifecycle events to an audit
// trail backend.
//
// It defines a local Recorder interface so the package does not depend on
// any specific audit system. Callers inject a RecorderFunc adapter that
// bridges to their backend at wiring time; NewLogging records through slog.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/splitpot/revenue/coupon"
	"github.com/splitpot/revenue/entry"
	"github.com/splitpot/revenue/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                   = (*Extension)(nil)
	_ plugin.OnEntryAppended          = (*Extension)(nil)
	_ plugin.OnCouponGenerated        = (*Extension)(nil)
	_ plugin.OnCouponRedeemed         = (*Extension)(nil)
	_ plugin.OnCouponExpired          = (*Extension)(nil)
	_ plugin.OnLifetimeCouponCreated  = (*Extension)(nil)
	_ plugin.OnLifetimeCouponRedeemed = (*Extension)(nil)
	_ plugin.OnRedemptionConflict     = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is the audit record emitted for each engine mutation.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges engine lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewLogging creates an Extension that records audit events to the given
// slog logger. Useful as a default when no dedicated audit backend exists.
func NewLogging(logger *slog.Logger, opts ...Option) *Extension {
	rec := RecorderFunc(func(ctx context.Context, event *AuditEvent) error {
		logger.InfoContext(ctx, "audit",
			"action", event.Action,
			"resource", event.Resource,
			"resource_id", event.ResourceID,
			"outcome", event.Outcome,
			"severity", event.Severity,
			"metadata", event.Metadata,
		)
		return nil
	})
	return New(rec, opts...)
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnEntryAppended implements plugin.OnEntryAppended.
func (e *Extension) OnEntryAppended(ctx context.Context, en *entry.Entry) error {
	return e.record(ctx, ActionEntryAppended, SeverityInfo, OutcomeSuccess,
		ResourceEntry, en.ID.String(), CategoryLedger,
		"source", string(en.Source),
		"status", string(en.Status),
		"amount", en.Amount.String(),
	)
}

// ──────────────────────────────────────────────────
// Coupon hooks
// ──────────────────────────────────────────────────

// OnCouponGenerated implements plugin.OnCouponGenerated.
func (e *Extension) OnCouponGenerated(ctx context.Context, c *coupon.Coupon) error {
	return e.record(ctx, ActionCouponGenerated, SeverityInfo, OutcomeSuccess,
		ResourceCoupon, c.ID.String(), CategoryCoupon,
		"code", c.Code,
		"amount", c.Amount.String(),
		"expires_at", c.ExpiresAt.Format(time.RFC3339),
	)
}

// OnCouponRedeemed implements plugin.OnCouponRedeemed.
func (e *Extension) OnCouponRedeemed(ctx context.Context, c *coupon.Coupon, credit *entry.Entry) error {
	return e.record(ctx, ActionCouponRedeemed, SeverityInfo, OutcomeSuccess,
		ResourceCoupon, c.ID.String(), CategoryCoupon,
		"code", c.Code,
		"redeemed_by", c.UsedBy,
		"credit_entry", credit.ID.String(),
	)
}

// OnCouponExpired implements plugin.OnCouponExpired.
func (e *Extension) OnCouponExpired(ctx context.Context, c *coupon.Coupon) error {
	return e.record(ctx, ActionCouponExpired, SeverityInfo, OutcomeSuccess,
		ResourceCoupon, c.ID.String(), CategoryCoupon,
		"code", c.Code,
	)
}

// OnLifetimeCouponCreated implements plugin.OnLifetimeCouponCreated.
func (e *Extension) OnLifetimeCouponCreated(ctx context.Context, c *coupon.LifetimeCoupon) error {
	return e.record(ctx, ActionLifetimeCreated, SeverityInfo, OutcomeSuccess,
		ResourceLifetimeCoupon, c.ID.String(), CategoryCoupon,
		"code", c.Code,
		"max_redemptions", c.MaxRedemptions,
	)
}

// OnLifetimeCouponRedeemed implements plugin.OnLifetimeCouponRedeemed.
func (e *Extension) OnLifetimeCouponRedeemed(ctx context.Context, c *coupon.LifetimeCoupon, g *coupon.Grant) error {
	return e.record(ctx, ActionLifetimeRedeemed, SeverityInfo, OutcomeSuccess,
		ResourceLifetimeCoupon, c.ID.String(), CategoryCoupon,
		"code", c.Code,
		"remaining", g.Remaining,
	)
}

// OnRedemptionConflict implements plugin.OnRedemptionConflict.
func (e *Extension) OnRedemptionConflict(ctx context.Context, code string, attempt int) error {
	return e.record(ctx, ActionRedemptionConflict, SeverityWarning, OutcomeFailure,
		ResourceCoupon, "", CategoryCoupon,
		"code", code,
		"attempt", attempt,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audithook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}

// Package observability provides a metrics extension that records engine
// lifecycle event counts as Prometheus metrics.
package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/splitpot/revenue/analytics"
	"github.com/splitpot/revenue/coupon"
	"github.com/splitpot/revenue/entry"
	"github.com/splitpot/revenue/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                   = (*MetricsExtension)(nil)
	_ plugin.OnEntryAppended          = (*MetricsExtension)(nil)
	_ plugin.OnCouponGenerated        = (*MetricsExtension)(nil)
	_ plugin.OnCouponRedeemed         = (*MetricsExtension)(nil)
	_ plugin.OnCouponExpired          = (*MetricsExtension)(nil)
	_ plugin.OnLifetimeCouponCreated  = (*MetricsExtension)(nil)
	_ plugin.OnLifetimeCouponRedeemed = (*MetricsExtension)(nil)
	_ plugin.OnRedemptionConflict     = (*MetricsExtension)(nil)
	_ plugin.OnSnapshotComputed       = (*MetricsExtension)(nil)
)

// MetricsExtension records engine-wide lifecycle metrics.
// Register it as an engine plugin to automatically track revenue metrics.
type MetricsExtension struct {
	EntriesAppended *prometheus.CounterVec

	CouponsGenerated    prometheus.Counter
	CouponsRedeemed     prometheus.Counter
	CouponsExpired      prometheus.Counter
	LifetimeCreated     prometheus.Counter
	LifetimeRedeemed    prometheus.Counter
	RedemptionConflicts prometheus.Counter

	SnapshotsComputed prometheus.Counter
	SnapshotLatency   prometheus.Histogram
}

// NewMetricsExtension creates a MetricsExtension and registers its
// collectors with the given registerer. Pass prometheus.DefaultRegisterer
// for the process-global registry.
func NewMetricsExtension(reg prometheus.Registerer) *MetricsExtension {
	m := &MetricsExtension{
		EntriesAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "revenue_entries_appended_total",
			Help: "Ledger entries appended, by source and status.",
		}, []string{"source", "status"}),

		CouponsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "revenue_coupons_generated_total",
			Help: "Single-use coupons generated.",
		}),
		CouponsRedeemed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "revenue_coupons_redeemed_total",
			Help: "Single-use coupons redeemed.",
		}),
		CouponsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "revenue_coupons_expired_total",
			Help: "Coupons administratively expired.",
		}),
		LifetimeCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "revenue_lifetime_coupons_created_total",
			Help: "Lifetime coupons created.",
		}),
		LifetimeRedeemed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "revenue_lifetime_coupons_redeemed_total",
			Help: "Lifetime coupon redemptions.",
		}),
		RedemptionConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "revenue_redemption_conflicts_total",
			Help: "Versioned updates lost to a concurrent redemption.",
		}),

		SnapshotsComputed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "revenue_snapshots_computed_total",
			Help: "Snapshot recomputations (cache misses).",
		}),
		SnapshotLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "revenue_snapshot_compute_seconds",
			Help:    "Time spent folding the ledger into a snapshot.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.EntriesAppended,
		m.CouponsGenerated,
		m.CouponsRedeemed,
		m.CouponsExpired,
		m.LifetimeCreated,
		m.LifetimeRedeemed,
		m.RedemptionConflicts,
		m.SnapshotsComputed,
		m.SnapshotLatency,
	)
	return m
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnEntryAppended implements plugin.OnEntryAppended.
func (m *MetricsExtension) OnEntryAppended(_ context.Context, e *entry.Entry) error {
	m.EntriesAppended.WithLabelValues(string(e.Source), string(e.Status)).Inc()
	return nil
}

// OnCouponGenerated implements plugin.OnCouponGenerated.
func (m *MetricsExtension) OnCouponGenerated(_ context.Context, _ *coupon.Coupon) error {
	m.CouponsGenerated.Inc()
	return nil
}

// OnCouponRedeemed implements plugin.OnCouponRedeemed.
func (m *MetricsExtension) OnCouponRedeemed(_ context.Context, _ *coupon.Coupon, _ *entry.Entry) error {
	m.CouponsRedeemed.Inc()
	return nil
}

// OnCouponExpired implements plugin.OnCouponExpired.
func (m *MetricsExtension) OnCouponExpired(_ context.Context, _ *coupon.Coupon) error {
	m.CouponsExpired.Inc()
	return nil
}

// OnLifetimeCouponCreated implements plugin.OnLifetimeCouponCreated.
func (m *MetricsExtension) OnLifetimeCouponCreated(_ context.Context, _ *coupon.LifetimeCoupon) error {
	m.LifetimeCreated.Inc()
	return nil
}

// OnLifetimeCouponRedeemed implements plugin.OnLifetimeCouponRedeemed.
func (m *MetricsExtension) OnLifetimeCouponRedeemed(_ context.Context, _ *coupon.LifetimeCoupon, _ *coupon.Grant) error {
	m.LifetimeRedeemed.Inc()
	return nil
}

// OnRedemptionConflict implements plugin.OnRedemptionConflict.
func (m *MetricsExtension) OnRedemptionConflict(_ context.Context, _ string, _ int) error {
	m.RedemptionConflicts.Inc()
	return nil
}

// OnSnapshotComputed implements plugin.OnSnapshotComputed.
func (m *MetricsExtension) OnSnapshotComputed(_ context.Context, _ *analytics.Snapshot, elapsed time.Duration) error {
	m.SnapshotsComputed.Inc()
	m.SnapshotLatency.Observe(elapsed.Seconds())
	return nil
}

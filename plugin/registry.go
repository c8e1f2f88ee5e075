package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/splitpot/revenue/analytics"
	"github.com/splitpot/revenue/coupon"
	"github.com/splitpot/revenue/entry"
)

// Registry manages all registered plugins and provides efficient dispatch.
// Interface membership is cached at registration so emission is a slice walk.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	onInit                   []OnInit
	onShutdown               []OnShutdown
	onEntryAppended          []OnEntryAppended
	onCouponGenerated        []OnCouponGenerated
	onCouponRedeemed         []OnCouponRedeemed
	onCouponExpired          []OnCouponExpired
	onLifetimeCouponCreated  []OnLifetimeCouponCreated
	onLifetimeCouponRedeemed []OnLifetimeCouponRedeemed
	onRedemptionConflict     []OnRedemptionConflict
	onSnapshotComputed       []OnSnapshotComputed
	couponValidators         []CouponValidator
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{logger: slog.Default()}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnEntryAppended); ok {
		r.onEntryAppended = append(r.onEntryAppended, v)
	}
	if v, ok := p.(OnCouponGenerated); ok {
		r.onCouponGenerated = append(r.onCouponGenerated, v)
	}
	if v, ok := p.(OnCouponRedeemed); ok {
		r.onCouponRedeemed = append(r.onCouponRedeemed, v)
	}
	if v, ok := p.(OnCouponExpired); ok {
		r.onCouponExpired = append(r.onCouponExpired, v)
	}
	if v, ok := p.(OnLifetimeCouponCreated); ok {
		r.onLifetimeCouponCreated = append(r.onLifetimeCouponCreated, v)
	}
	if v, ok := p.(OnLifetimeCouponRedeemed); ok {
		r.onLifetimeCouponRedeemed = append(r.onLifetimeCouponRedeemed, v)
	}
	if v, ok := p.(OnRedemptionConflict); ok {
		r.onRedemptionConflict = append(r.onRedemptionConflict, v)
	}
	if v, ok := p.(OnSnapshotComputed); ok {
		r.onSnapshotComputed = append(r.onSnapshotComputed, v)
	}
	if v, ok := p.(CouponValidator); ok {
		r.couponValidators = append(r.couponValidators, v)
	}

	r.logger.Info("plugin registered", "name", p.Name())
	return nil
}

// Get returns a plugin by name, or nil.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine any) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnInit", func() error {
			return p.OnInit(ctx, engine)
		})
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnShutdown", func() error {
			return p.OnShutdown(ctx)
		})
	}
}

// EmitEntryAppended emits an entry appended event.
func (r *Registry) EmitEntryAppended(ctx context.Context, e *entry.Entry) {
	r.mu.RLock()
	plugins := r.onEntryAppended
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnEntryAppended", func() error {
			return p.OnEntryAppended(ctx, e)
		})
	}
}

// EmitCouponGenerated emits a coupon generated event.
func (r *Registry) EmitCouponGenerated(ctx context.Context, c *coupon.Coupon) {
	r.mu.RLock()
	plugins := r.onCouponGenerated
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnCouponGenerated", func() error {
			return p.OnCouponGenerated(ctx, c)
		})
	}
}

// EmitCouponRedeemed emits a coupon redeemed event.
func (r *Registry) EmitCouponRedeemed(ctx context.Context, c *coupon.Coupon, credit *entry.Entry) {
	r.mu.RLock()
	plugins := r.onCouponRedeemed
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnCouponRedeemed", func() error {
			return p.OnCouponRedeemed(ctx, c, credit)
		})
	}
}

// EmitCouponExpired emits a coupon expired event.
func (r *Registry) EmitCouponExpired(ctx context.Context, c *coupon.Coupon) {
	r.mu.RLock()
	plugins := r.onCouponExpired
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnCouponExpired", func() error {
			return p.OnCouponExpired(ctx, c)
		})
	}
}

// EmitLifetimeCouponCreated emits a lifetime coupon created event.
func (r *Registry) EmitLifetimeCouponCreated(ctx context.Context, c *coupon.LifetimeCoupon) {
	r.mu.RLock()
	plugins := r.onLifetimeCouponCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnLifetimeCouponCreated", func() error {
			return p.OnLifetimeCouponCreated(ctx, c)
		})
	}
}

// EmitLifetimeCouponRedeemed emits a lifetime coupon redeemed event.
func (r *Registry) EmitLifetimeCouponRedeemed(ctx context.Context, c *coupon.LifetimeCoupon, g *coupon.Grant) {
	r.mu.RLock()
	plugins := r.onLifetimeCouponRedeemed
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnLifetimeCouponRedeemed", func() error {
			return p.OnLifetimeCouponRedeemed(ctx, c, g)
		})
	}
}

// EmitRedemptionConflict emits a redemption conflict event.
func (r *Registry) EmitRedemptionConflict(ctx context.Context, code string, attempt int) {
	r.mu.RLock()
	plugins := r.onRedemptionConflict
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnRedemptionConflict", func() error {
			return p.OnRedemptionConflict(ctx, code, attempt)
		})
	}
}

// EmitSnapshotComputed emits a snapshot computed event.
func (r *Registry) EmitSnapshotComputed(ctx context.Context, snap *analytics.Snapshot, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onSnapshotComputed
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnSnapshotComputed", func() error {
			return p.OnSnapshotComputed(ctx, snap, elapsed)
		})
	}
}

// ValidateCoupon runs all registered validators; the first failure wins.
// Unlike event emission, validator errors propagate to the caller.
func (r *Registry) ValidateCoupon(ctx context.Context, c *coupon.Coupon, redeemerID string) error {
	r.mu.RLock()
	validators := r.couponValidators
	r.mu.RUnlock()

	for _, v := range validators {
		if err := v.ValidateCoupon(ctx, c, redeemerID); err != nil {
			return err
		}
	}
	return nil
}

// call invokes a plugin hook with a timeout and logs failures. Hooks must
// never block the request path.
func (r *Registry) call(ctx context.Context, pluginName, hook string, fn func() error) {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	var err error
	select {
	case err = <-done:
	case <-time.After(5 * time.Second):
		err = fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		err = ctx.Err()
	}

	if err != nil {
		r.logger.Warn("plugin hook failed",
			"plugin", pluginName,
			"hook", hook,
			"error", err,
		)
	}
}

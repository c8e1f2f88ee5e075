package revenue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/splitpot/revenue/analytics"
	"github.com/splitpot/revenue/coupon"
	"github.com/splitpot/revenue/entry"
	"github.com/splitpot/revenue/id"
	"github.com/splitpot/revenue/plugin"
	"github.com/splitpot/revenue/store"
	"github.com/splitpot/revenue/types"
)

// Engine is the main revenue accounting engine.
type Engine struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger

	// Background workers
	stopChan chan struct{}
	wg       sync.WaitGroup

	// Configuration
	snapshotCacheTTL time.Duration
	janitorInterval  time.Duration
	codeLength       int
	codeAttempts     int
	redeemRetries    int
}

// New creates a new Engine instance.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:            s,
		plugins:          plugin.NewRegistry(),
		logger:           slog.Default(),
		stopChan:         make(chan struct{}),
		snapshotCacheTTL: 30 * time.Second,
		janitorInterval:  time.Minute,
		codeLength:       coupon.DefaultCodeLength,
		codeAttempts:     5,
		redeemRetries:    3,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithSnapshotCacheTTL sets how long computed snapshots stay cached.
func WithSnapshotCacheTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		e.snapshotCacheTTL = ttl
	}
}

// WithJanitorInterval sets how often expired cache entries are purged.
func WithJanitorInterval(interval time.Duration) Option {
	return func(e *Engine) {
		e.janitorInterval = interval
	}
}

// WithCodeConfig configures automatic coupon code generation: the code
// length and how many collision retries to attempt before giving up.
func WithCodeConfig(length, attempts int) Option {
	return func(e *Engine) {
		e.codeLength = length
		e.codeAttempts = attempts
	}
}

// Start migrates the store, initializes plugins, and begins background
// workers.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.store.Migrate(ctx); err != nil {
		return err
	}

	e.plugins.EmitInit(ctx, e)

	e.wg.Add(1)
	go e.cacheJanitor(ctx)

	e.logger.Info("revenue engine started",
		"cache_ttl", e.snapshotCacheTTL,
		"janitor_interval", e.janitorInterval,
	)

	return nil
}

// Stop shuts down the Engine.
func (e *Engine) Stop() error {
	close(e.stopChan)
	e.wg.Wait()

	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

// cacheJanitor drops expired snapshot cache entries on an interval.
func (e *Engine) cacheJanitor(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			purged, err := e.store.PurgeExpiredSnapshots(ctx)
			if err != nil {
				e.logger.Error("snapshot cache purge failed", "error", err)
				continue
			}
			if purged > 0 {
				e.logger.Debug("purged expired snapshots", "count", purged)
			}
		}
	}
}

// ──────────────────────────────────────────────────
// Ledger
// ──────────────────────────────────────────────────

// AppendInput describes a monetary event to record.
type AppendInput struct {
	Amount   types.Money
	Source   entry.Source
	Status   entry.Status
	Chain    string
	GameType string
	GroupID  string
	UserID   string
}

// Append validates and durably records a monetary event. Nothing is
// written when validation fails.
func (e *Engine) Append(ctx context.Context, in AppendInput) (*entry.Entry, error) {
	if !in.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !in.Source.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, in.Source)
	}
	if !in.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, in.Status)
	}

	en := &entry.Entry{
		ID:        id.NewEntryID(),
		Amount:    in.Amount,
		Source:    in.Source,
		Status:    in.Status,
		Chain:     in.Chain,
		GameType:  in.GameType,
		GroupID:   in.GroupID,
		UserID:    in.UserID,
		CreatedAt: time.Now().UTC(),
	}

	if err := e.store.AppendEntry(ctx, en); err != nil {
		return nil, err
	}

	e.invalidateSnapshots(ctx)
	e.plugins.EmitEntryAppended(ctx, en)
	return en, nil
}

// Summarize derives a revenue snapshot for the given scope and range,
// serving from the snapshot cache when a fresh enough copy exists.
func (e *Engine) Summarize(ctx context.Context, scope analytics.Scope, rng analytics.DateRange) (*analytics.Snapshot, error) {
	if !scope.Valid() {
		return nil, NewValidationError("scope", fmt.Sprintf("unknown scope %q", scope))
	}

	key := snapshotCacheKey(rng)
	if cached, err := e.store.GetCachedSnapshot(ctx, key); err == nil {
		return cached.ForScope(scope), nil
	}

	start := time.Now()
	entries, err := e.store.QueryEntries(ctx, entry.Filter{From: rng.From, To: rng.To})
	if err != nil {
		return nil, err
	}

	snap := analytics.Fold(entries, time.Now())
	elapsed := time.Since(start)

	if err := e.store.SetCachedSnapshot(ctx, key, snap, e.snapshotCacheTTL); err != nil {
		e.logger.Warn("snapshot cache write failed", "error", err)
	}
	e.plugins.EmitSnapshotComputed(ctx, snap, elapsed)

	return snap.ForScope(scope), nil
}

// RecentTransactions returns the newest ledger entries, most recent first.
func (e *Engine) RecentTransactions(ctx context.Context, limit int) ([]*entry.Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	return e.store.ListRecentEntries(ctx, limit)
}

// ──────────────────────────────────────────────────
// Coupons
// ──────────────────────────────────────────────────

// GenerateInput describes a single-use coupon to create. Leave Code empty
// to have one generated.
type GenerateInput struct {
	Code        string
	Amount      types.Money
	Description string
	ExpiresAt   time.Time
}

// Generate creates a single-use coupon. Custom codes are normalized and
// checked for duplicates; generated codes retry on collision a bounded
// number of times.
func (e *Engine) Generate(ctx context.Context, in GenerateInput) (*coupon.Coupon, error) {
	if !in.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !in.ExpiresAt.After(time.Now()) {
		return nil, ErrInvalidExpiry
	}

	c := &coupon.Coupon{
		Entity:      types.NewEntity(),
		ID:          id.NewCouponID(),
		Amount:      in.Amount,
		Description: in.Description,
		ExpiresAt:   in.ExpiresAt.UTC(),
	}

	if in.Code != "" {
		c.Code = coupon.NormalizeCode(in.Code)
		if err := e.store.CreateCoupon(ctx, c); err != nil {
			return nil, err
		}
	} else if err := e.createWithGeneratedCode(ctx, c); err != nil {
		return nil, err
	}

	e.plugins.EmitCouponGenerated(ctx, c)
	return c, nil
}

// createWithGeneratedCode assigns random codes until an insert succeeds
// or the attempt budget runs out. The unique code index arbitrates races.
func (e *Engine) createWithGeneratedCode(ctx context.Context, c *coupon.Coupon) error {
	for attempt := 0; attempt < e.codeAttempts; attempt++ {
		code, err := coupon.RandomCode(e.codeLength)
		if err != nil {
			return err
		}
		c.Code = code

		err = e.store.CreateCoupon(ctx, c)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrDuplicateCode) {
			return err
		}
	}
	return ErrCodeGenerationExhausted
}

// Redeem redeems a single-use coupon for redeemerID and credits the
// amount as a confirmed deposit entry linked to the coupon. Exactly one
// concurrent caller succeeds; the losers observe ErrCouponAlreadyUsed.
func (e *Engine) Redeem(ctx context.Context, code, redeemerID string) (*entry.Entry, error) {
	norm := coupon.NormalizeCode(code)

	for attempt := 0; attempt < e.redeemRetries; attempt++ {
		c, err := e.store.GetCouponByCode(ctx, norm)
		if err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		if c.IsUsed {
			return nil, ErrCouponAlreadyUsed
		}
		if c.Expired(now) {
			return nil, ErrCouponExpired
		}
		if err := e.plugins.ValidateCoupon(ctx, c, redeemerID); err != nil {
			return nil, err
		}

		expected := c.Version
		c.IsUsed = true
		c.UsedBy = redeemerID
		c.UsedAt = &now

		err = e.store.UpdateCouponVersioned(ctx, c, expected)
		if errors.Is(err, ErrVersionConflict) {
			e.plugins.EmitRedemptionConflict(ctx, norm, attempt+1)
			continue
		}
		if err != nil {
			return nil, err
		}

		credit := &entry.Entry{
			ID:        id.NewEntryID(),
			Amount:    c.Amount,
			Source:    entry.SourceDeposit,
			Status:    entry.StatusConfirmed,
			UserID:    redeemerID,
			CouponID:  c.ID,
			CreatedAt: now,
		}
		if err := e.store.AppendEntry(ctx, credit); err != nil {
			// The coupon is already burned; surface the failure rather
			// than pretend the credit landed.
			e.logger.Error("coupon redeemed but credit append failed",
				"code", norm,
				"coupon_id", c.ID,
				"error", err,
			)
			return nil, fmt.Errorf("append redemption credit: %w", err)
		}

		e.invalidateSnapshots(ctx)
		e.plugins.EmitCouponRedeemed(ctx, c, credit)
		e.plugins.EmitEntryAppended(ctx, credit)
		return credit, nil
	}

	return nil, ErrVersionConflict
}

// ExpireCoupon administratively voids a coupon without crediting anyone.
// Expiring an already used or expired coupon is a no-op.
func (e *Engine) ExpireCoupon(ctx context.Context, couponID id.CouponID) error {
	for attempt := 0; attempt < e.redeemRetries; attempt++ {
		c, err := e.store.GetCoupon(ctx, couponID)
		if err != nil {
			return err
		}
		if c.IsUsed {
			return nil
		}

		expected := c.Version
		now := time.Now().UTC()
		c.IsUsed = true
		c.UsedAt = &now

		err = e.store.UpdateCouponVersioned(ctx, c, expected)
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		if err != nil {
			return err
		}

		e.plugins.EmitCouponExpired(ctx, c)
		return nil
	}

	return ErrVersionConflict
}

// ListCoupons lists single-use coupons, newest first.
func (e *Engine) ListCoupons(ctx context.Context, opts coupon.ListOpts) ([]*coupon.Coupon, error) {
	return e.store.ListCoupons(ctx, opts)
}

// ──────────────────────────────────────────────────
// Lifetime coupons
// ──────────────────────────────────────────────────

// CreateLifetimeInput describes a lifetime coupon to create. Leave Code
// empty to have one generated; ExpiresAt defaults to one year out.
type CreateLifetimeInput struct {
	Code           string
	Description    string
	ExpiresAt      time.Time
	MaxRedemptions int
	Features       []string
}

// CreateLifetime creates a multi-redemption lifetime coupon.
func (e *Engine) CreateLifetime(ctx context.Context, in CreateLifetimeInput) (*coupon.LifetimeCoupon, error) {
	if in.MaxRedemptions < 0 {
		return nil, NewValidationError("maxRedemptions", "must not be negative")
	}

	expiresAt := in.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = time.Now().AddDate(1, 0, 0)
	}
	if !expiresAt.After(time.Now()) {
		return nil, ErrInvalidExpiry
	}

	c := &coupon.LifetimeCoupon{
		Entity:         types.NewEntity(),
		ID:             id.NewLifetimeCouponID(),
		Description:    in.Description,
		ExpiresAt:      expiresAt.UTC(),
		MaxRedemptions: in.MaxRedemptions,
		Features:       in.Features,
	}
	if c.Description == "" {
		c.Description = "Lifetime Premium Access"
	}

	if in.Code != "" {
		c.Code = coupon.NormalizeCode(in.Code)
		if err := e.store.CreateLifetimeCoupon(ctx, c); err != nil {
			return nil, err
		}
	} else if err := e.createLifetimeWithGeneratedCode(ctx, c); err != nil {
		return nil, err
	}

	e.plugins.EmitLifetimeCouponCreated(ctx, c)
	return c, nil
}

func (e *Engine) createLifetimeWithGeneratedCode(ctx context.Context, c *coupon.LifetimeCoupon) error {
	for attempt := 0; attempt < e.codeAttempts; attempt++ {
		code, err := coupon.RandomCode(e.codeLength)
		if err != nil {
			return err
		}
		c.Code = code

		err = e.store.CreateLifetimeCoupon(ctx, c)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrDuplicateCode) {
			return err
		}
	}
	return ErrCodeGenerationExhausted
}

// RedeemLifetime redeems one slot of a lifetime coupon for redeemerID.
// The redemption count never exceeds the cap, regardless of concurrency.
func (e *Engine) RedeemLifetime(ctx context.Context, code, redeemerID string) (*coupon.Grant, error) {
	norm := coupon.NormalizeCode(code)

	for attempt := 0; attempt < e.redeemRetries; attempt++ {
		c, err := e.store.GetLifetimeCouponByCode(ctx, norm)
		if err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		if c.Expired(now) {
			return nil, ErrCouponExpired
		}
		if c.AtCap() {
			return nil, ErrRedemptionCapReached
		}

		expected := c.Version
		c.CurrentRedemptions++

		err = e.store.UpdateLifetimeCouponVersioned(ctx, c, expected)
		if errors.Is(err, ErrVersionConflict) {
			e.plugins.EmitRedemptionConflict(ctx, norm, attempt+1)
			continue
		}
		if err != nil {
			return nil, err
		}

		remaining := -1
		if c.MaxRedemptions > 0 {
			remaining = c.MaxRedemptions - c.CurrentRedemptions
		}

		grant := &coupon.Grant{
			Code:       c.Code,
			Features:   c.Features,
			RedeemedAt: now,
			Remaining:  remaining,
		}

		e.logger.Info("lifetime coupon redeemed",
			"code", norm,
			"redeemed_by", redeemerID,
			"remaining", remaining,
		)
		e.plugins.EmitLifetimeCouponRedeemed(ctx, c, grant)
		return grant, nil
	}

	return nil, ErrVersionConflict
}

// ListLifetimeCoupons lists lifetime coupons, newest first.
func (e *Engine) ListLifetimeCoupons(ctx context.Context, opts coupon.ListOpts) ([]*coupon.LifetimeCoupon, error) {
	return e.store.ListLifetimeCoupons(ctx, opts)
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// Ping reports store health.
func (e *Engine) Ping(ctx context.Context) error {
	return e.store.Ping(ctx)
}

func (e *Engine) invalidateSnapshots(ctx context.Context) {
	if err := e.store.InvalidateSnapshots(ctx); err != nil {
		e.logger.Warn("snapshot cache invalidation failed", "error", err)
	}
}

func snapshotCacheKey(rng analytics.DateRange) string {
	return fmt.Sprintf("snapshot|%d|%d", rng.From.UnixNano(), rng.To.UnixNano())
}

// Package postgres implements store.Store on PostgreSQL via the bun ORM.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	revenue "github.com/splitpot/revenue"
	"github.com/splitpot/revenue/analytics"
	"github.com/splitpot/revenue/coupon"
	"github.com/splitpot/revenue/entry"
	"github.com/splitpot/revenue/id"
	revenuestore "github.com/splitpot/revenue/store"
)

// compile-time interface check
var _ revenuestore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via bun.
type Store struct {
	db *bun.DB
}

// New creates a PostgreSQL store over an existing bun database.
func New(db *bun.DB) *Store {
	return &Store{db: db}
}

// Open connects to PostgreSQL using the given DSN and returns a store.
func Open(dsn string) *Store {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return New(bun.NewDB(sqldb, pgdialect.New()))
}

// DB returns the underlying bun database for direct access.
func (s *Store) DB() *bun.DB { return s.db }

// Migrate applies the registered migrations.
func (s *Store) Migrate(ctx context.Context) error {
	migrator := migrate.NewMigrator(s.db, Migrations)
	if err := migrator.Init(ctx); err != nil {
		return fmt.Errorf("revenue/postgres: init migrations: %w", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("revenue/postgres: migration failed: %w", wrapErr(err, nil))
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return wrapErr(s.db.PingContext(ctx), nil)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Ledger ====================

func (s *Store) AppendEntry(ctx context.Context, e *entry.Entry) error {
	m := toEntryModel(e)
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return wrapErr(err, nil)
	}
	return nil
}

func (s *Store) QueryEntries(ctx context.Context, f entry.Filter) ([]*entry.Entry, error) {
	var models []entryModel
	q := s.db.NewSelect().Model(&models)

	if len(f.Sources) > 0 {
		sources := make([]string, len(f.Sources))
		for i, src := range f.Sources {
			sources[i] = string(src)
		}
		q = q.Where("source IN (?)", bun.In(sources))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		q = q.Where("status IN (?)", bun.In(statuses))
	}
	if f.GroupID != "" {
		q = q.Where("group_id = ?", f.GroupID)
	}
	if !f.From.IsZero() {
		q = q.Where("created_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("created_at < ?", f.To)
	}
	q = q.Order("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, wrapErr(err, nil)
	}

	result := make([]*entry.Entry, len(models))
	for i := range models {
		e, err := fromEntryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}

func (s *Store) ListRecentEntries(ctx context.Context, limit int) ([]*entry.Entry, error) {
	var models []entryModel
	q := s.db.NewSelect().Model(&models).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, wrapErr(err, nil)
	}

	result := make([]*entry.Entry, len(models))
	for i := range models {
		e, err := fromEntryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}

// ==================== Coupons ====================

func (s *Store) CreateCoupon(ctx context.Context, c *coupon.Coupon) error {
	m := toCouponModel(c)
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return wrapErr(err, nil)
	}
	return nil
}

func (s *Store) GetCoupon(ctx context.Context, couponID id.CouponID) (*coupon.Coupon, error) {
	m := new(couponModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", couponID.String()).
		Scan(ctx)
	if err != nil {
		return nil, wrapErr(err, revenue.ErrCouponNotFound)
	}
	return fromCouponModel(m)
}

func (s *Store) GetCouponByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	m := new(couponModel)
	err := s.db.NewSelect().Model(m).
		Where("code = ?", code).
		Scan(ctx)
	if err != nil {
		return nil, wrapErr(err, revenue.ErrCouponNotFound)
	}
	return fromCouponModel(m)
}

func (s *Store) ListCoupons(ctx context.Context, opts coupon.ListOpts) ([]*coupon.Coupon, error) {
	var models []couponModel
	q := s.db.NewSelect().Model(&models)
	if opts.UnusedOnly {
		q = q.Where("is_used = FALSE")
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.Order("created_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, wrapErr(err, nil)
	}

	result := make([]*coupon.Coupon, len(models))
	for i := range models {
		c, err := fromCouponModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = c
	}
	return result, nil
}

func (s *Store) UpdateCouponVersioned(ctx context.Context, c *coupon.Coupon, expectedVersion int64) error {
	m := toCouponModel(c)
	m.Version = expectedVersion + 1
	m.UpdatedAt = now()

	res, err := s.db.NewUpdate().Model(m).
		WherePK().
		Where("version = ?", expectedVersion).
		Exec(ctx)
	if err != nil {
		return wrapErr(err, nil)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return s.versionedMiss(ctx, "revenue_coupons", c.ID.String())
	}

	c.Version = m.Version
	c.UpdatedAt = m.UpdatedAt
	return nil
}

// ==================== Lifetime coupons ====================

func (s *Store) CreateLifetimeCoupon(ctx context.Context, c *coupon.LifetimeCoupon) error {
	m := toLifetimeCouponModel(c)
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return wrapErr(err, nil)
	}
	return nil
}

func (s *Store) GetLifetimeCoupon(ctx context.Context, couponID id.LifetimeCouponID) (*coupon.LifetimeCoupon, error) {
	m := new(lifetimeCouponModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", couponID.String()).
		Scan(ctx)
	if err != nil {
		return nil, wrapErr(err, revenue.ErrCouponNotFound)
	}
	return fromLifetimeCouponModel(m)
}

func (s *Store) GetLifetimeCouponByCode(ctx context.Context, code string) (*coupon.LifetimeCoupon, error) {
	m := new(lifetimeCouponModel)
	err := s.db.NewSelect().Model(m).
		Where("code = ?", code).
		Scan(ctx)
	if err != nil {
		return nil, wrapErr(err, revenue.ErrCouponNotFound)
	}
	return fromLifetimeCouponModel(m)
}

func (s *Store) ListLifetimeCoupons(ctx context.Context, opts coupon.ListOpts) ([]*coupon.LifetimeCoupon, error) {
	var models []lifetimeCouponModel
	q := s.db.NewSelect().Model(&models)
	if opts.UnusedOnly {
		q = q.Where("max_redemptions = 0 OR current_redemptions < max_redemptions")
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.Order("created_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, wrapErr(err, nil)
	}

	result := make([]*coupon.LifetimeCoupon, len(models))
	for i := range models {
		c, err := fromLifetimeCouponModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = c
	}
	return result, nil
}

func (s *Store) UpdateLifetimeCouponVersioned(ctx context.Context, c *coupon.LifetimeCoupon, expectedVersion int64) error {
	m := toLifetimeCouponModel(c)
	m.Version = expectedVersion + 1
	m.UpdatedAt = now()

	res, err := s.db.NewUpdate().Model(m).
		WherePK().
		Where("version = ?", expectedVersion).
		Exec(ctx)
	if err != nil {
		return wrapErr(err, nil)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return s.versionedMiss(ctx, "revenue_lifetime_coupons", c.ID.String())
	}

	c.Version = m.Version
	c.UpdatedAt = m.UpdatedAt
	return nil
}

// ==================== Snapshot cache ====================

func (s *Store) GetCachedSnapshot(ctx context.Context, key string) (*analytics.Snapshot, error) {
	m := new(snapshotModel)
	err := s.db.NewSelect().Model(m).
		Where("key = ?", key).
		Where("expires_at > ?", now()).
		Scan(ctx)
	if err != nil {
		return nil, wrapErr(err, revenue.ErrNotFound)
	}

	snap := new(analytics.Snapshot)
	if err := json.Unmarshal(m.Payload, snap); err != nil {
		return nil, fmt.Errorf("revenue/postgres: decode cached snapshot: %w", err)
	}
	return snap, nil
}

func (s *Store) SetCachedSnapshot(ctx context.Context, key string, snap *analytics.Snapshot, ttl time.Duration) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("revenue/postgres: encode snapshot: %w", err)
	}

	m := &snapshotModel{
		Key:       key,
		Payload:   payload,
		ExpiresAt: now().Add(ttl),
	}
	_, err = s.db.NewInsert().Model(m).
		On("CONFLICT (key) DO UPDATE").
		Set("payload = EXCLUDED.payload").
		Set("expires_at = EXCLUDED.expires_at").
		Exec(ctx)
	return wrapErr(err, nil)
}

func (s *Store) InvalidateSnapshots(ctx context.Context) error {
	_, err := s.db.NewDelete().Model((*snapshotModel)(nil)).Where("TRUE").Exec(ctx)
	return wrapErr(err, nil)
}

func (s *Store) PurgeExpiredSnapshots(ctx context.Context) (int64, error) {
	res, err := s.db.NewDelete().Model((*snapshotModel)(nil)).
		Where("expires_at <= ?", now()).
		Exec(ctx)
	if err != nil {
		return 0, wrapErr(err, nil)
	}
	return res.RowsAffected()
}

// ==================== Helpers ====================

// versionedMiss distinguishes a lost version race from a missing row after
// an UPDATE touched nothing.
func (s *Store) versionedMiss(ctx context.Context, table, idValue string) error {
	exists, err := s.db.NewSelect().
		Table(table).
		Where("id = ?", idValue).
		Exists(ctx)
	if err != nil {
		return wrapErr(err, nil)
	}
	if !exists {
		return revenue.ErrCouponNotFound
	}
	return revenue.ErrVersionConflict
}

func now() time.Time {
	return time.Now().UTC()
}

// wrapErr maps driver-level failures onto the package sentinels. notFound
// is the sentinel to use for sql.ErrNoRows, or nil when no-rows cannot
// occur for the query.
func wrapErr(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		if notFound != nil {
			return notFound
		}
		return revenue.ErrNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", revenue.ErrStoreTimeout, err)
	case errors.Is(err, sql.ErrConnDone):
		return fmt.Errorf("%w: %w", revenue.ErrStoreClosed, err)
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %w", revenue.ErrDuplicateCode, err)
	default:
		return err
	}
}

// isUniqueViolation checks for SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == "23505"
}

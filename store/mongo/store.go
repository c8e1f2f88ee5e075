// Package mongo implements store.Store on MongoDB via the official driver.
package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	revenue "github.com/splitpot/revenue"
	"github.com/splitpot/revenue/analytics"
	"github.com/splitpot/revenue/coupon"
	"github.com/splitpot/revenue/entry"
	"github.com/splitpot/revenue/id"
	revenuestore "github.com/splitpot/revenue/store"
)

// Collection name constants.
const (
	colEntries         = "revenue_entries"
	colCoupons         = "revenue_coupons"
	colLifetimeCoupons = "revenue_lifetime_coupons"
	colSnapshots       = "revenue_snapshot_cache"
)

// compile-time interface check
var _ revenuestore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New creates a MongoDB store over an existing client and database name.
func New(client *mongo.Client, database string) *Store {
	return &Store{
		client: client,
		db:     client.Database(database),
	}
}

// Open connects to MongoDB using the given URI and returns a store.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("revenue/mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("revenue/mongo: ping: %w", wrapErr(err, nil))
	}
	return New(client, database), nil
}

// Migrate creates indexes for all revenue collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		colEntries: {
			{Keys: bson.D{{Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "source", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "group_id", Value: 1}}},
		},
		colCoupons: {
			{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
		colLifetimeCoupons: {
			{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
		colSnapshots: {
			{Keys: bson.D{{Key: "expires_at", Value: 1}}},
		},
	}

	for col, models := range indexes {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("revenue/mongo: migrate %s indexes: %w", col, wrapErr(err, nil))
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return wrapErr(s.client.Ping(ctx, nil), nil)
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// ==================== Ledger ====================

func (s *Store) AppendEntry(ctx context.Context, e *entry.Entry) error {
	_, err := s.db.Collection(colEntries).InsertOne(ctx, toEntryModel(e))
	if err != nil {
		return fmt.Errorf("revenue/mongo: append entry: %w", wrapErr(err, nil))
	}
	return nil
}

func (s *Store) QueryEntries(ctx context.Context, f entry.Filter) ([]*entry.Entry, error) {
	filter := bson.M{}
	if len(f.Sources) > 0 {
		sources := make([]string, len(f.Sources))
		for i, src := range f.Sources {
			sources[i] = string(src)
		}
		filter["source"] = bson.M{"$in": sources}
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		filter["status"] = bson.M{"$in": statuses}
	}
	if f.GroupID != "" {
		filter["group_id"] = f.GroupID
	}
	created := bson.M{}
	if !f.From.IsZero() {
		created["$gte"] = f.From
	}
	if !f.To.IsZero() {
		created["$lt"] = f.To
	}
	if len(created) > 0 {
		filter["created_at"] = created
	}

	cursor, err := s.db.Collection(colEntries).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("revenue/mongo: query entries: %w", wrapErr(err, nil))
	}

	var models []entryModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("revenue/mongo: decode entries: %w", wrapErr(err, nil))
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
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}

	cursor, err := s.db.Collection(colEntries).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("revenue/mongo: list recent entries: %w", wrapErr(err, nil))
	}

	var models []entryModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("revenue/mongo: decode entries: %w", wrapErr(err, nil))
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
	_, err := s.db.Collection(colCoupons).InsertOne(ctx, toCouponModel(c))
	if err != nil {
		return fmt.Errorf("revenue/mongo: create coupon: %w", wrapErr(err, nil))
	}
	return nil
}

func (s *Store) GetCoupon(ctx context.Context, couponID id.CouponID) (*coupon.Coupon, error) {
	var m couponModel
	err := s.db.Collection(colCoupons).
		FindOne(ctx, bson.M{"_id": couponID.String()}).
		Decode(&m)
	if err != nil {
		return nil, wrapErr(err, revenue.ErrCouponNotFound)
	}
	return fromCouponModel(&m)
}

func (s *Store) GetCouponByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	var m couponModel
	err := s.db.Collection(colCoupons).
		FindOne(ctx, bson.M{"code": code}).
		Decode(&m)
	if err != nil {
		return nil, wrapErr(err, revenue.ErrCouponNotFound)
	}
	return fromCouponModel(&m)
}

func (s *Store) ListCoupons(ctx context.Context, opts coupon.ListOpts) ([]*coupon.Coupon, error) {
	filter := bson.M{}
	if opts.UnusedOnly {
		filter["is_used"] = false
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if opts.Limit > 0 {
		findOpts = findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts = findOpts.SetSkip(int64(opts.Offset))
	}

	cursor, err := s.db.Collection(colCoupons).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("revenue/mongo: list coupons: %w", wrapErr(err, nil))
	}

	var models []couponModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("revenue/mongo: decode coupons: %w", wrapErr(err, nil))
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
	m.UpdatedAt = time.Now().UTC()

	res, err := s.db.Collection(colCoupons).ReplaceOne(ctx,
		bson.M{"_id": m.ID, "version": expectedVersion}, m)
	if err != nil {
		return fmt.Errorf("revenue/mongo: update coupon: %w", wrapErr(err, nil))
	}
	if res.MatchedCount == 0 {
		return s.versionedMiss(ctx, colCoupons, m.ID)
	}

	c.Version = m.Version
	c.UpdatedAt = m.UpdatedAt
	return nil
}

// ==================== Lifetime coupons ====================

func (s *Store) CreateLifetimeCoupon(ctx context.Context, c *coupon.LifetimeCoupon) error {
	_, err := s.db.Collection(colLifetimeCoupons).InsertOne(ctx, toLifetimeCouponModel(c))
	if err != nil {
		return fmt.Errorf("revenue/mongo: create lifetime coupon: %w", wrapErr(err, nil))
	}
	return nil
}

func (s *Store) GetLifetimeCoupon(ctx context.Context, couponID id.LifetimeCouponID) (*coupon.LifetimeCoupon, error) {
	var m lifetimeCouponModel
	err := s.db.Collection(colLifetimeCoupons).
		FindOne(ctx, bson.M{"_id": couponID.String()}).
		Decode(&m)
	if err != nil {
		return nil, wrapErr(err, revenue.ErrCouponNotFound)
	}
	return fromLifetimeCouponModel(&m)
}

func (s *Store) GetLifetimeCouponByCode(ctx context.Context, code string) (*coupon.LifetimeCoupon, error) {
	var m lifetimeCouponModel
	err := s.db.Collection(colLifetimeCoupons).
		FindOne(ctx, bson.M{"code": code}).
		Decode(&m)
	if err != nil {
		return nil, wrapErr(err, revenue.ErrCouponNotFound)
	}
	return fromLifetimeCouponModel(&m)
}

func (s *Store) ListLifetimeCoupons(ctx context.Context, opts coupon.ListOpts) ([]*coupon.LifetimeCoupon, error) {
	filter := bson.M{}
	if opts.UnusedOnly {
		filter["$or"] = bson.A{
			bson.M{"max_redemptions": 0},
			bson.M{"$expr": bson.M{"$lt": bson.A{"$current_redemptions", "$max_redemptions"}}},
		}
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if opts.Limit > 0 {
		findOpts = findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts = findOpts.SetSkip(int64(opts.Offset))
	}

	cursor, err := s.db.Collection(colLifetimeCoupons).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("revenue/mongo: list lifetime coupons: %w", wrapErr(err, nil))
	}

	var models []lifetimeCouponModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("revenue/mongo: decode lifetime coupons: %w", wrapErr(err, nil))
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
	m.UpdatedAt = time.Now().UTC()

	res, err := s.db.Collection(colLifetimeCoupons).ReplaceOne(ctx,
		bson.M{"_id": m.ID, "version": expectedVersion}, m)
	if err != nil {
		return fmt.Errorf("revenue/mongo: update lifetime coupon: %w", wrapErr(err, nil))
	}
	if res.MatchedCount == 0 {
		return s.versionedMiss(ctx, colLifetimeCoupons, m.ID)
	}

	c.Version = m.Version
	c.UpdatedAt = m.UpdatedAt
	return nil
}

// ==================== Snapshot cache ====================

func (s *Store) GetCachedSnapshot(ctx context.Context, key string) (*analytics.Snapshot, error) {
	var m snapshotModel
	err := s.db.Collection(colSnapshots).
		FindOne(ctx, bson.M{"_id": key, "expires_at": bson.M{"$gt": time.Now().UTC()}}).
		Decode(&m)
	if err != nil {
		return nil, wrapErr(err, revenue.ErrNotFound)
	}

	snap := new(analytics.Snapshot)
	if err := json.Unmarshal(m.Payload, snap); err != nil {
		return nil, fmt.Errorf("revenue/mongo: decode cached snapshot: %w", err)
	}
	return snap, nil
}

func (s *Store) SetCachedSnapshot(ctx context.Context, key string, snap *analytics.Snapshot, ttl time.Duration) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("revenue/mongo: encode snapshot: %w", err)
	}

	m := &snapshotModel{
		Key:       key,
		Payload:   payload,
		ExpiresAt: time.Now().UTC().Add(ttl),
	}
	_, err = s.db.Collection(colSnapshots).ReplaceOne(ctx,
		bson.M{"_id": key}, m, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("revenue/mongo: cache snapshot: %w", wrapErr(err, nil))
	}
	return nil
}

func (s *Store) InvalidateSnapshots(ctx context.Context) error {
	_, err := s.db.Collection(colSnapshots).DeleteMany(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("revenue/mongo: invalidate snapshots: %w", wrapErr(err, nil))
	}
	return nil
}

func (s *Store) PurgeExpiredSnapshots(ctx context.Context) (int64, error) {
	res, err := s.db.Collection(colSnapshots).DeleteMany(ctx,
		bson.M{"expires_at": bson.M{"$lte": time.Now().UTC()}})
	if err != nil {
		return 0, fmt.Errorf("revenue/mongo: purge snapshots: %w", wrapErr(err, nil))
	}
	return res.DeletedCount, nil
}

// ==================== Helpers ====================

// versionedMiss distinguishes a lost version race from a missing document.
func (s *Store) versionedMiss(ctx context.Context, col, idValue string) error {
	count, err := s.db.Collection(col).CountDocuments(ctx, bson.M{"_id": idValue})
	if err != nil {
		return wrapErr(err, nil)
	}
	if count == 0 {
		return revenue.ErrCouponNotFound
	}
	return revenue.ErrVersionConflict
}

// isNoDocuments checks for the driver's no-documents sentinel.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// wrapErr maps driver-level failures onto the package sentinels.
func wrapErr(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case isNoDocuments(err):
		if notFound != nil {
			return notFound
		}
		return revenue.ErrNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", revenue.ErrStoreTimeout, err)
	case mongo.IsTimeout(err):
		return fmt.Errorf("%w: %w", revenue.ErrStoreTimeout, err)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %w", revenue.ErrDuplicateCode, err)
	default:
		return err
	}
}

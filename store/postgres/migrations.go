package postgres

import (
	"context"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

// Migrations is the bun migration set for the revenue store.
var Migrations = migrate.NewMigrations()

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS revenue_entries (
    id           TEXT PRIMARY KEY,
    amount_cents BIGINT NOT NULL,
    source       TEXT NOT NULL,
    status       TEXT NOT NULL,
    chain        TEXT NOT NULL DEFAULT '',
    game_type    TEXT NOT NULL DEFAULT '',
    group_id     TEXT NOT NULL DEFAULT '',
    user_id      TEXT NOT NULL DEFAULT '',
    coupon_id    TEXT,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_revenue_entries_created ON revenue_entries (created_at);
CREATE INDEX IF NOT EXISTS idx_revenue_entries_source_status ON revenue_entries (source, status);
CREATE INDEX IF NOT EXISTS idx_revenue_entries_group ON revenue_entries (group_id) WHERE group_id <> '';
`)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS revenue_entries`)
			return err
		},
	)

	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS revenue_coupons (
    id           TEXT PRIMARY KEY,
    code         TEXT NOT NULL,
    amount_cents BIGINT NOT NULL,
    description  TEXT NOT NULL DEFAULT '',
    expires_at   TIMESTAMPTZ NOT NULL,
    is_used      BOOLEAN NOT NULL DEFAULT FALSE,
    used_by      TEXT NOT NULL DEFAULT '',
    used_at      TIMESTAMPTZ,
    version      BIGINT NOT NULL DEFAULT 0,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_revenue_coupons_code ON revenue_coupons (code);
CREATE INDEX IF NOT EXISTS idx_revenue_coupons_created ON revenue_coupons (created_at);
`)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS revenue_coupons`)
			return err
		},
	)

	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS revenue_lifetime_coupons (
    id                  TEXT PRIMARY KEY,
    code                TEXT NOT NULL,
    description         TEXT NOT NULL DEFAULT '',
    expires_at          TIMESTAMPTZ NOT NULL,
    max_redemptions     INT NOT NULL DEFAULT 0,
    current_redemptions INT NOT NULL DEFAULT 0,
    features            JSONB NOT NULL DEFAULT '[]',
    version             BIGINT NOT NULL DEFAULT 0,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_revenue_lifetime_code ON revenue_lifetime_coupons (code);
CREATE INDEX IF NOT EXISTS idx_revenue_lifetime_created ON revenue_lifetime_coupons (created_at);
`)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS revenue_lifetime_coupons`)
			return err
		},
	)

	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS revenue_snapshot_cache (
    key        TEXT PRIMARY KEY,
    payload    JSONB NOT NULL,
    expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_revenue_snapshot_expires ON revenue_snapshot_cache (expires_at);
`)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS revenue_snapshot_cache`)
			return err
		},
	)
}

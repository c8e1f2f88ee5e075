// Package revenue provides an embeddable revenue accounting and coupon
// engine for Go applications.
//
// Revenue is designed as a library, not a service. Import it directly into
// your application and drive it through the Engine type. It provides:
//
//   - An append-only ledger of monetary events (fees, subscriptions,
//     deposits, withdrawals) with pending/confirmed/failed lifecycle
//   - Single-pass revenue aggregation into cached snapshots with
//     per-month, per-source breakdowns and system liquidity metrics
//   - Single-use coupons redeemable for ledger credit, safe under
//     concurrent redemption via optimistic versioned updates
//   - Multi-redemption lifetime coupons with capped redemption counts
//   - A plugin system for audit trails, metrics, and custom validation
//
// # Quick Start
//
// Create an engine with your preferred store:
//
//	import (
//	    "github.com/splitpot/revenue"
//	    "github.com/splitpot/revenue/store/postgres"
//	)
//
//	store, err := postgres.Open(databaseURL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	eng := revenue.New(store)
//
//	// Start the engine (runs migrations, begins background workers)
//	if err := eng.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Stop()
//
// # Core Concepts
//
// Entries record monetary events and are never updated or deleted:
//
//	en, err := eng.Append(ctx, revenue.AppendInput{
//	    Amount: revenue.Dollars(100),
//	    Source: entry.SourceGameFees,
//	    Status: entry.StatusConfirmed,
//	})
//
// Snapshots summarize the ledger for a scope. Owners see revenue totals;
// admins additionally see system liquidity and pending activity:
//
//	snap, err := eng.Summarize(ctx, revenue.ScopeAdmin, revenue.DateRange{})
//
// Coupons credit their face value to the redeemer exactly once:
//
//	c, err := eng.Generate(ctx, revenue.GenerateInput{
//	    Amount:    revenue.Dollars(25),
//	    ExpiresAt: time.Now().AddDate(0, 1, 0),
//	})
//	credit, err := eng.Redeem(ctx, c.Code, "user_123")
//
// # Money
//
// All monetary amounts use integer arithmetic: the Money type holds USD
// cents. JSON encoding uses decimal major units (25.5 means $25.50), and
// parsing rejects sub-cent precision.
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	txn_01h2xcejqtf2nbrexx3vqjhp41  // Entry ID
//	cpn_01h2xcejqtf2nbrexx3vqjhp41  // Coupon ID
//	ltc_01h455vb4pex5vsknk084sn02q  // Lifetime coupon ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package revenue

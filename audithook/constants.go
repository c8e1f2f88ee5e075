package audithook

// Action constants for audit events.
const (
	// Ledger actions
	ActionEntryAppended = "entry.appended"

	// Coupon actions
	ActionCouponGenerated    = "coupon.generated"
	ActionCouponRedeemed     = "coupon.redeemed"
	ActionCouponExpired      = "coupon.expired"
	ActionLifetimeCreated    = "lifetime_coupon.created"
	ActionLifetimeRedeemed   = "lifetime_coupon.redeemed"
	ActionRedemptionConflict = "coupon.redemption_conflict"
)

// Resource constants for audit events.
const (
	ResourceEntry          = "entry"
	ResourceCoupon         = "coupon"
	ResourceLifetimeCoupon = "lifetime_coupon"
)

// Category constants for audit events.
const (
	CategoryLedger = "ledger"
	CategoryCoupon = "coupon"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

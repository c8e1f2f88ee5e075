package coupon

// ListOpts narrows and pages a coupon listing. Results are ordered by
// CreatedAt descending.
type ListOpts struct {
	// UnusedOnly keeps only coupons still available for redemption: not
	// yet redeemed for single-use coupons, under the cap for lifetime.
	UnusedOnly bool
	Limit      int
	Offset     int
}

// internal/service/payout/fees.go
package payout

// Transfer fee tiers, flat amounts in kobo. The backend recompute here is
// authoritative; any client-supplied figure is advisory only.
const (
	tierOneCeiling = 500_000   // up to NGN 5,000
	tierTwoCeiling = 5_000_000 // up to NGN 50,000

	tierOneFee   = 1_000 // NGN 10
	tierTwoFee   = 2_500 // NGN 25
	tierThreeFee = 5_000 // NGN 50
)

// TransferFee returns the flat payout fee for a requested amount in kobo.
func TransferFee(requestedAmount int64) int64 {
	switch {
	case requestedAmount <= tierOneCeiling:
		return tierOneFee
	case requestedAmount <= tierTwoCeiling:
		return tierTwoFee
	default:
		return tierThreeFee
	}
}

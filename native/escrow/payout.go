package escrow

import "math/big"

// BpsDenominator is the basis-point scale used by all fee arithmetic.
const BpsDenominator = 10_000

var bpsDen = big.NewInt(BpsDenominator)

// BpsOf returns floor(amount * bps / 10000). A nil or negative amount yields
// zero; value is never created out of rounding.
func BpsOf(amount *big.Int, bps uint32) *big.Int {
	if amount == nil || amount.Sign() <= 0 || bps == 0 {
		return big.NewInt(0)
	}
	cut := new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(bps)))
	return cut.Div(cut, bpsDen)
}

// SubSat returns max(a-b, 0). All payout subtractions saturate so rounding
// dust accrues platform-favorable instead of ever going negative.
func SubSat(a, b *big.Int) *big.Int {
	if a == nil {
		return big.NewInt(0)
	}
	if b == nil || b.Sign() <= 0 {
		return new(big.Int).Set(a)
	}
	diff := new(big.Int).Sub(a, b)
	if diff.Sign() < 0 {
		return big.NewInt(0)
	}
	return diff
}

// FeeSplit returns the platform fee and insurance cut for a payout base.
func FeeSplit(amount *big.Int, feeBps, insuranceBps uint32) (fee, insurance *big.Int) {
	return BpsOf(amount, feeBps), BpsOf(amount, insuranceBps)
}

// RetentionDue returns the portion of the escrow total withheld until the
// warranty window ends.
func RetentionDue(total *big.Int, retentionBps uint32) *big.Int {
	return BpsOf(total, retentionBps)
}

// Payout is the fee/insurance/penalty breakdown of a single release. Gross is
// the payout base; Seller is what remains for the seller after all cuts.
type Payout struct {
	Gross     *big.Int
	Fee       *big.Int
	Insurance *big.Int
	Penalty   *big.Int
	Seller    *big.Int
}

// ComputePayout applies the fee split and, when late is set, the late-delivery
// penalty on the post-fee seller net. Milestone releases and full releases run
// this same computation over different bases.
func ComputePayout(gross *big.Int, feeBps, insuranceBps, latePenaltyBps uint32, late bool) Payout {
	fee, insurance := FeeSplit(gross, feeBps, insuranceBps)
	seller := SubSat(gross, new(big.Int).Add(fee, insurance))
	penalty := big.NewInt(0)
	if late {
		penalty = BpsOf(seller, latePenaltyBps)
		seller = SubSat(seller, penalty)
	}
	if gross == nil {
		gross = big.NewInt(0)
	} else {
		gross = new(big.Int).Set(gross)
	}
	return Payout{Gross: gross, Fee: fee, Insurance: insurance, Penalty: penalty, Seller: seller}
}

// SplitDispute divides the remaining balance between buyer and seller for a
// Split outcome. The buyer amount is the exact complement of the seller gross;
// no value is lost to rounding.
func SplitDispute(total *big.Int, sellerPctBps uint32) (buyer, sellerGross *big.Int) {
	sellerGross = BpsOf(total, sellerPctBps)
	buyer = SubSat(total, sellerGross)
	return buyer, sellerGross
}

package giftcard

import "math/bits"

// Breakdown is the three-way division of a purchase amount. Residual absorbs
// the rounding remainder so the parts always sum to the original amount.
type Breakdown struct {
	Commission uint64
	Bonus      uint64
	Residual   uint64
}

func checkedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrArithmetic
	}
	return sum, nil
}

func checkedSub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrArithmetic
	}
	return diff, nil
}

func checkedMul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrArithmetic
	}
	return lo, nil
}

func percentage(amount uint64, pct uint32) (uint64, error) {
	product, err := checkedMul(amount, uint64(pct))
	if err != nil {
		return 0, err
	}
	return product / 100, nil
}

// Split divides a purchase amount into commission, bonus and residual shares
// per the installed config. Division is truncating and the residual is derived
// by subtraction, never computed independently, so
// commission + bonus + residual == amount holds exactly.
func Split(amount uint64, cfg *ContractConfig) (Breakdown, error) {
	if err := cfg.Validate(); err != nil {
		return Breakdown{}, err
	}
	if !cfg.ValidAmount(amount) {
		return Breakdown{}, ErrInvalidAmount
	}
	commission, err := percentage(amount, cfg.CommissionPercentage)
	if err != nil {
		return Breakdown{}, err
	}
	bonus, err := percentage(amount, cfg.BonusPercentage)
	if err != nil {
		return Breakdown{}, err
	}
	remainder, err := checkedSub(amount, commission)
	if err != nil {
		return Breakdown{}, err
	}
	residual, err := checkedSub(remainder, bonus)
	if err != nil {
		return Breakdown{}, err
	}
	return Breakdown{Commission: commission, Bonus: bonus, Residual: residual}, nil
}

package giftcard

import (
	"errors"
	"math"
	"testing"
)

func TestSplitExactness(t *testing.T) {
	configs := []*ContractConfig{
		{CommissionPercentage: 90, BonusPercentage: 5},
		{CommissionPercentage: 0, BonusPercentage: 0},
		{CommissionPercentage: 100, BonusPercentage: 0},
		{CommissionPercentage: 33, BonusPercentage: 33},
		{CommissionPercentage: 1, BonusPercentage: 99},
	}
	for _, cfg := range configs {
		cfg.Normalize()
		for _, amount := range cfg.ValidAmounts {
			split, err := Split(amount, cfg)
			if err != nil {
				t.Fatalf("split(%d, %d/%d): %v", amount, cfg.CommissionPercentage, cfg.BonusPercentage, err)
			}
			if split.Commission+split.Bonus+split.Residual != amount {
				t.Fatalf("split(%d, %d/%d) does not sum: %+v", amount, cfg.CommissionPercentage, cfg.BonusPercentage, split)
			}
		}
	}
}

func TestSplitFloorsAndResidualAbsorbsRemainder(t *testing.T) {
	cfg := (&ContractConfig{
		CommissionPercentage: 33,
		BonusPercentage:      33,
		ValidAmounts:         []uint64{101},
	}).Normalize()
	split, err := Split(101, cfg)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if split.Commission != 33 || split.Bonus != 33 {
		t.Fatalf("expected floored shares of 33, got %+v", split)
	}
	if split.Residual != 35 {
		t.Fatalf("residual must absorb the rounding remainder, got %d", split.Residual)
	}
}

func TestSplitScenarioNumbers(t *testing.T) {
	cfg := (&ContractConfig{CommissionPercentage: 90, BonusPercentage: 5}).Normalize()
	split, err := Split(200_000_000, cfg)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if split.Commission != 180_000_000 {
		t.Fatalf("commission = %d", split.Commission)
	}
	if split.Bonus != 10_000_000 {
		t.Fatalf("bonus = %d", split.Bonus)
	}
	if split.Residual != 10_000_000 {
		t.Fatalf("residual = %d", split.Residual)
	}
}

func TestSplitRejectsUnknownDenomination(t *testing.T) {
	cfg := (&ContractConfig{CommissionPercentage: 90, BonusPercentage: 5}).Normalize()
	if _, err := Split(150_000_000, cfg); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestSplitRejectsInvalidConfig(t *testing.T) {
	cfg := (&ContractConfig{CommissionPercentage: 70, BonusPercentage: 40}).Normalize()
	if _, err := Split(200_000_000, cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestSplitOverflowFailsCleanly(t *testing.T) {
	cfg := (&ContractConfig{
		CommissionPercentage: 90,
		BonusPercentage:      5,
		ValidAmounts:         []uint64{math.MaxUint64},
	}).Normalize()
	if _, err := Split(math.MaxUint64, cfg); !errors.Is(err, ErrArithmetic) {
		t.Fatalf("expected ErrArithmetic, got %v", err)
	}
}

func TestCheckedHelpers(t *testing.T) {
	if _, err := checkedAdd(math.MaxUint64, 1); !errors.Is(err, ErrArithmetic) {
		t.Fatalf("expected add overflow")
	}
	if _, err := checkedSub(1, 2); !errors.Is(err, ErrArithmetic) {
		t.Fatalf("expected sub underflow")
	}
	if _, err := checkedMul(math.MaxUint64, 2); !errors.Is(err, ErrArithmetic) {
		t.Fatalf("expected mul overflow")
	}
	if sum, err := checkedAdd(2, 3); err != nil || sum != 5 {
		t.Fatalf("add: %d %v", sum, err)
	}
}

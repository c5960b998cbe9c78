package giftcard

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Default contract parameters applied when an installed config leaves the
// corresponding field unset.
const (
	DefaultReferralLimit        = uint32(3)
	DefaultCommissionPercentage = uint32(90)
	DefaultBonusPercentage      = uint32(5)
)

// DefaultValidAmounts returns the accepted gift card denominations in base
// units when a config does not override them.
func DefaultValidAmounts() []uint64 {
	return []uint64{200_000_000, 1_000_000_000, 3_000_000_000}
}

// Principal identifies an externally-addressable account acting as buyer,
// referrer, owner or fund destination.
type Principal [32]byte

// IsZero reports whether the principal is the all-zero placeholder.
func (p Principal) IsZero() bool {
	return p == Principal{}
}

// Hex returns the lowercase hex encoding of the principal.
func (p Principal) Hex() string {
	return hex.EncodeToString(p[:])
}

// ParsePrincipal decodes a hex-encoded principal.
func ParsePrincipal(s string) (Principal, error) {
	var p Principal
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return p, fmt.Errorf("giftcard: invalid principal %q: %w", s, err)
	}
	if len(raw) != len(p) {
		return p, fmt.Errorf("giftcard: invalid principal length %d", len(raw))
	}
	copy(p[:], raw)
	return p, nil
}

// ContractConfig carries the owner-governed sale parameters.
type ContractConfig struct {
	ReferralLimit        uint32
	CommissionPercentage uint32
	BonusPercentage      uint32
	CommissionLevels     []uint32
	ValidAmounts         []uint64
}

// Normalize fills unset structural fields with their defaults and returns the
// receiver for chaining. A nil receiver yields the fully defaulted config;
// zero percentages on a non-nil config are kept as given, since 0% is a valid
// share.
func (c *ContractConfig) Normalize() *ContractConfig {
	if c == nil {
		return &ContractConfig{
			ReferralLimit:        DefaultReferralLimit,
			CommissionPercentage: DefaultCommissionPercentage,
			BonusPercentage:      DefaultBonusPercentage,
			ValidAmounts:         DefaultValidAmounts(),
		}
	}
	if c.ReferralLimit == 0 {
		c.ReferralLimit = DefaultReferralLimit
	}
	if len(c.ValidAmounts) == 0 {
		c.ValidAmounts = DefaultValidAmounts()
	}
	return c
}

// Validate rejects configs whose percentages cannot produce an exact split.
func (c *ContractConfig) Validate() error {
	if c == nil {
		return ErrInvalidConfig
	}
	if c.CommissionPercentage > 100 || c.BonusPercentage > 100 {
		return ErrInvalidConfig
	}
	if c.CommissionPercentage+c.BonusPercentage > 100 {
		return ErrInvalidConfig
	}
	for _, amount := range c.ValidAmounts {
		if amount == 0 {
			return ErrInvalidConfig
		}
	}
	return nil
}

// ValidAmount reports whether amount is an accepted denomination.
func (c *ContractConfig) ValidAmount(amount uint64) bool {
	if c == nil {
		return false
	}
	for _, valid := range c.ValidAmounts {
		if amount == valid {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the config.
func (c *ContractConfig) Clone() *ContractConfig {
	if c == nil {
		return nil
	}
	clone := *c
	clone.CommissionLevels = append([]uint32(nil), c.CommissionLevels...)
	clone.ValidAmounts = append([]uint64(nil), c.ValidAmounts...)
	return &clone
}

// Relationship is an immutable record linking a purchasing user to the
// referrer credited for that purchase. Timestamps are unix seconds.
type Relationship struct {
	User      Principal
	Referrer  Principal
	Timestamp uint64
}

// UserRecord tracks a participating principal's package and referral
// earnings. Both fields are monotonically non-decreasing.
type UserRecord struct {
	Key            Principal
	CurrentPackage uint64
	TotalEarnings  uint64
}

// Clone returns a copy of the record.
func (u *UserRecord) Clone() *UserRecord {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

// LedgerState is the durable singleton record for the gift card sale. The
// relationship log is persisted separately; everything else lives here.
type LedgerState struct {
	Owner                      Principal
	FounderWallet              Principal
	Paused                     bool
	TotalSold                  uint64
	TotalCommissionDistributed uint64
	BonusPoolAccrued           uint64
	ReferralCount              uint64
	Config                     ContractConfig
	Blacklist                  []Principal
}

// Clone returns a deep copy of the ledger state.
func (l *LedgerState) Clone() *LedgerState {
	if l == nil {
		return nil
	}
	clone := *l
	clone.Config = *l.Config.Clone()
	clone.Blacklist = append([]Principal(nil), l.Blacklist...)
	return &clone
}

// IsBlacklisted reports whether the principal is barred from purchasing.
func (l *LedgerState) IsBlacklisted(p Principal) bool {
	if l == nil {
		return false
	}
	for _, entry := range l.Blacklist {
		if entry == p {
			return true
		}
	}
	return false
}

// addToBlacklist inserts the principal keeping the set sorted and free of
// duplicates. Returns true when the set changed.
func (l *LedgerState) addToBlacklist(p Principal) bool {
	if l.IsBlacklisted(p) {
		return false
	}
	l.Blacklist = append(l.Blacklist, p)
	sort.Slice(l.Blacklist, func(i, j int) bool {
		return string(l.Blacklist[i][:]) < string(l.Blacklist[j][:])
	})
	return true
}

// removeFromBlacklist deletes the principal. Returns true when the set
// changed.
func (l *LedgerState) removeFromBlacklist(p Principal) bool {
	for i, entry := range l.Blacklist {
		if entry == p {
			l.Blacklist = append(l.Blacklist[:i], l.Blacklist[i+1:]...)
			return true
		}
	}
	return false
}

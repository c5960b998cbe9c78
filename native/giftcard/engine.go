package giftcard

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"solbox/core/types"
)

var errNilState = errors.New("giftcard engine: state not configured")

// TreasuryAddress is the module-owned principal that receives residual funds
// when no founder wallet was configured at initialization.
var TreasuryAddress = func() Principal {
	var p Principal
	copy(p[:], ethcrypto.Keccak256([]byte("giftcard/treasury")))
	return p
}()

// engineState is the narrow view of the state manager the engine operates
// against. Transfer is the environment's value-movement primitive; the engine
// treats it as all-or-nothing and validates balances before invoking it.
type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	GetAccount(addr [32]byte) (*types.Account, error)
	Transfer(from, to [32]byte, amount uint64) error
	AppendEvent(evt *types.Event)
}

// PurchaseReceipt summarises a completed gift card purchase, including the
// referrer actually credited after spillover resolution.
type PurchaseReceipt struct {
	User      Principal
	Referrer  Principal
	Amount    uint64
	Split     Breakdown
	Timestamp uint64
}

// Engine implements the gift card sale state machine. Every operation runs
// against a consistent snapshot of the ledger: all preconditions, arithmetic
// and balance checks complete before the first transfer or state write, so a
// failed transition leaves state untouched.
type Engine struct {
	state engineState
	nowFn func() int64
}

// NewEngine constructs an engine without a state backend. Callers must wire
// one via SetState before invoking operations.
func NewEngine() *Engine {
	return &Engine{nowFn: func() int64 { return time.Now().Unix() }}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetNowFunc overrides the time source used to stamp relationships. Primarily
// intended for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) now() uint64 {
	if e == nil || e.nowFn == nil {
		return uint64(time.Now().Unix())
	}
	ts := e.nowFn()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.state == nil || evt == nil {
		return
	}
	e.state.AppendEvent(evt)
}

func (e *Engine) requireState() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return nil
}

func (e *Engine) loadLedger() (*LedgerState, error) {
	if err := e.requireState(); err != nil {
		return nil, err
	}
	ledger, ok, err := loadLedger(e.state)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	return ledger, nil
}

func requireOwner(ledger *LedgerState, caller Principal) error {
	if ledger.Owner != caller {
		return ErrUnauthorized
	}
	return nil
}

// residualDestination returns the principal credited with the treasury share
// of a purchase or upgrade.
func (l *LedgerState) residualDestination() Principal {
	if !l.FounderWallet.IsZero() {
		return l.FounderWallet
	}
	return TreasuryAddress
}

// ensureFunds verifies the payer can cover the given amount before any
// transfer is attempted, keeping failed purchases free of partial movement.
func (e *Engine) ensureFunds(payer Principal, amount uint64) error {
	account, err := e.state.GetAccount([32]byte(payer))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if account.Balance.Cmp(new(big.Int).SetUint64(amount)) < 0 {
		return fmt.Errorf("%w: insufficient balance", ErrTransferFailed)
	}
	return nil
}

func (e *Engine) transfer(from, to Principal, amount uint64) error {
	// A credit back to the payer never moves funds; the founder wallet can
	// buy and upgrade like anyone else.
	if amount == 0 || from == to {
		return nil
	}
	if err := e.state.Transfer([32]byte(from), [32]byte(to), amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return nil
}

// Initialize creates the ledger singleton. It is callable exactly once; the
// caller becomes the immutable owner and the founder wallet, when non-zero,
// becomes the residual destination for the life of the contract.
func (e *Engine) Initialize(caller, founderWallet Principal, cfg *ContractConfig) (*LedgerState, error) {
	if err := e.requireState(); err != nil {
		return nil, err
	}
	if caller.IsZero() {
		return nil, ErrUnauthorized
	}
	if _, ok, err := loadLedger(e.state); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrAlreadyInitialized
	}
	normalized := cfg.Clone().Normalize()
	if err := normalized.Validate(); err != nil {
		return nil, err
	}
	ledger := &LedgerState{
		Owner:         caller,
		FounderWallet: founderWallet,
		Config:        *normalized,
		Blacklist:     []Principal{},
	}
	if err := storeLedger(e.state, ledger); err != nil {
		return nil, err
	}
	if err := storeRelationships(e.state, []Relationship{}); err != nil {
		return nil, err
	}
	e.emit(NewInitializedEvent(ledger))
	return ledger.Clone(), nil
}

// UpdateConfig replaces the contract configuration. Owner-only. Config
// changes remain available while paused: pause stops user-facing fund
// movement, not governance.
func (e *Engine) UpdateConfig(caller Principal, cfg *ContractConfig) error {
	ledger, err := e.loadLedger()
	if err != nil {
		return err
	}
	if err := requireOwner(ledger, caller); err != nil {
		return err
	}
	normalized := cfg.Clone().Normalize()
	if err := normalized.Validate(); err != nil {
		return err
	}
	ledger.Config = *normalized
	if err := storeLedger(e.state, ledger); err != nil {
		return err
	}
	e.emit(NewConfigUpdatedEvent(normalized))
	return nil
}

// UpdateCommissionConfig replaces only the commission percentage and the
// reserved multi-level parameters. Owner-only.
func (e *Engine) UpdateCommissionConfig(caller Principal, pct uint32, levels []uint32) error {
	ledger, err := e.loadLedger()
	if err != nil {
		return err
	}
	if err := requireOwner(ledger, caller); err != nil {
		return err
	}
	if pct > 100 || pct+ledger.Config.BonusPercentage > 100 {
		return ErrInvalidConfig
	}
	ledger.Config.CommissionPercentage = pct
	ledger.Config.CommissionLevels = append([]uint32(nil), levels...)
	if err := storeLedger(e.state, ledger); err != nil {
		return err
	}
	e.emit(NewCommissionConfigUpdatedEvent(pct, levels))
	return nil
}

// TogglePause flips the pause flag and returns the new state. Owner-only.
func (e *Engine) TogglePause(caller Principal) (bool, error) {
	ledger, err := e.loadLedger()
	if err != nil {
		return false, err
	}
	if err := requireOwner(ledger, caller); err != nil {
		return false, err
	}
	ledger.Paused = !ledger.Paused
	if err := storeLedger(e.state, ledger); err != nil {
		return false, err
	}
	e.emit(NewPauseToggledEvent(ledger.Paused))
	return ledger.Paused, nil
}

// AddToBlacklist bars a principal from purchasing and upgrading. Owner-only
// and idempotent; re-adding an entry is a no-op without an event.
func (e *Engine) AddToBlacklist(caller, user Principal) error {
	ledger, err := e.loadLedger()
	if err != nil {
		return err
	}
	if err := requireOwner(ledger, caller); err != nil {
		return err
	}
	if !ledger.addToBlacklist(user) {
		return nil
	}
	if err := storeLedger(e.state, ledger); err != nil {
		return err
	}
	e.emit(NewBlacklistUpdatedEvent(user, "add"))
	return nil
}

// RemoveFromBlacklist lifts a bar. Owner-only and idempotent.
func (e *Engine) RemoveFromBlacklist(caller, user Principal) error {
	ledger, err := e.loadLedger()
	if err != nil {
		return err
	}
	if err := requireOwner(ledger, caller); err != nil {
		return err
	}
	if !ledger.removeFromBlacklist(user) {
		return nil
	}
	if err := storeLedger(e.state, ledger); err != nil {
		return err
	}
	e.emit(NewBlacklistUpdatedEvent(user, "remove"))
	return nil
}

// GrantPackage sets a user's package directly, bypassing payment. Owner-only;
// used for manual or compensatory provisioning.
func (e *Engine) GrantPackage(caller, user Principal, pkg uint64) error {
	ledger, err := e.loadLedger()
	if err != nil {
		return err
	}
	if err := requireOwner(ledger, caller); err != nil {
		return err
	}
	if !ledger.Config.ValidAmount(pkg) {
		return ErrInvalidAmount
	}
	record, err := loadOrCreateUser(e.state, user)
	if err != nil {
		return err
	}
	record.CurrentPackage = pkg
	if err := storeUser(e.state, record); err != nil {
		return err
	}
	e.emit(NewPackageGrantedEvent(user, pkg))
	return nil
}

// UpgradePackage moves a user to a strictly higher denomination, charging only
// the difference. Requires the contract active and the user not blacklisted.
func (e *Engine) UpgradePackage(user Principal, newPackage uint64) error {
	ledger, err := e.loadLedger()
	if err != nil {
		return err
	}
	if ledger.Paused {
		return ErrContractPaused
	}
	if ledger.IsBlacklisted(user) {
		return ErrUserBlacklisted
	}
	if !ledger.Config.ValidAmount(newPackage) {
		return ErrInvalidAmount
	}
	record, err := loadOrCreateUser(e.state, user)
	if err != nil {
		return err
	}
	if newPackage <= record.CurrentPackage {
		return ErrInvalidUpgrade
	}
	difference, err := checkedSub(newPackage, record.CurrentPackage)
	if err != nil {
		return err
	}
	if err := e.ensureFunds(user, difference); err != nil {
		return err
	}
	if err := e.transfer(user, ledger.residualDestination(), difference); err != nil {
		return err
	}
	oldPackage := record.CurrentPackage
	record.CurrentPackage = newPackage
	if err := storeUser(e.state, record); err != nil {
		return err
	}
	e.emit(NewPackageUpgradedEvent(user, oldPackage, newPackage, difference))
	return nil
}

// BuyGiftCard executes a purchase: splits the amount, resolves the credited
// referrer (with spillover when the requested one is saturated), records the
// referral relationship, updates the aggregate counters and the referrer's
// earnings, and moves the commission and residual shares. The bonus share is
// withheld from both transfers and accrues to the ledger's bonus pool counter.
func (e *Engine) BuyGiftCard(user, referrer Principal, amount uint64) (*PurchaseReceipt, error) {
	ledger, err := e.loadLedger()
	if err != nil {
		return nil, err
	}
	if ledger.Paused {
		return nil, ErrContractPaused
	}
	if ledger.IsBlacklisted(user) {
		return nil, ErrUserBlacklisted
	}
	if referrer.IsZero() {
		return nil, ErrInvalidReferrer
	}
	if user == referrer {
		return nil, ErrSelfReferral
	}
	split, err := Split(amount, &ledger.Config)
	if err != nil {
		return nil, err
	}
	relationships, err := loadRelationships(e.state)
	if err != nil {
		return nil, err
	}
	if hasRelationship(relationships, user) {
		return nil, ErrAlreadyPurchased
	}
	finalReferrer, err := ResolvePlacement(referrer, user, relationships, ledger.Config.ReferralLimit)
	if err != nil {
		return nil, err
	}

	// All counter updates are computed with checked arithmetic before any
	// write so an overflow rejects the transition cleanly.
	totalSold, err := checkedAdd(ledger.TotalSold, amount)
	if err != nil {
		return nil, err
	}
	totalCommission, err := checkedAdd(ledger.TotalCommissionDistributed, split.Commission)
	if err != nil {
		return nil, err
	}
	bonusPool, err := checkedAdd(ledger.BonusPoolAccrued, split.Bonus)
	if err != nil {
		return nil, err
	}
	referralCount, err := checkedAdd(ledger.ReferralCount, 1)
	if err != nil {
		return nil, err
	}
	referrerRecord, err := loadOrCreateUser(e.state, finalReferrer)
	if err != nil {
		return nil, err
	}
	earnings, err := checkedAdd(referrerRecord.TotalEarnings, split.Commission)
	if err != nil {
		return nil, err
	}
	payable, err := checkedAdd(split.Commission, split.Residual)
	if err != nil {
		return nil, err
	}
	if err := e.ensureFunds(user, payable); err != nil {
		return nil, err
	}
	buyerRecord, err := loadOrCreateUser(e.state, user)
	if err != nil {
		return nil, err
	}
	if amount > buyerRecord.CurrentPackage {
		buyerRecord.CurrentPackage = amount
	}

	if err := e.transfer(user, finalReferrer, split.Commission); err != nil {
		return nil, err
	}
	if err := e.transfer(user, ledger.residualDestination(), split.Residual); err != nil {
		return nil, err
	}

	timestamp := e.now()
	relationships = append(relationships, Relationship{User: user, Referrer: finalReferrer, Timestamp: timestamp})
	if err := storeRelationships(e.state, relationships); err != nil {
		return nil, err
	}
	referrerRecord.TotalEarnings = earnings
	if err := storeUser(e.state, referrerRecord); err != nil {
		return nil, err
	}
	if err := storeUser(e.state, buyerRecord); err != nil {
		return nil, err
	}
	ledger.TotalSold = totalSold
	ledger.TotalCommissionDistributed = totalCommission
	ledger.BonusPoolAccrued = bonusPool
	ledger.ReferralCount = referralCount
	if err := storeLedger(e.state, ledger); err != nil {
		return nil, err
	}

	e.emit(NewPurchasedEvent(user, finalReferrer, amount, split))
	return &PurchaseReceipt{
		User:      user,
		Referrer:  finalReferrer,
		Amount:    amount,
		Split:     split,
		Timestamp: timestamp,
	}, nil
}

// Ledger returns a copy of the current ledger state.
func (e *Engine) Ledger() (*LedgerState, error) {
	ledger, err := e.loadLedger()
	if err != nil {
		return nil, err
	}
	return ledger.Clone(), nil
}

// User returns a copy of the record for the given principal.
func (e *Engine) User(p Principal) (*UserRecord, bool, error) {
	if err := e.requireState(); err != nil {
		return nil, false, err
	}
	record, ok, err := loadUser(e.state, p)
	if err != nil || !ok {
		return nil, ok, err
	}
	return record.Clone(), true, nil
}

// Relationships returns the append-only referral log in insertion order.
func (e *Engine) Relationships() ([]Relationship, error) {
	if err := e.requireState(); err != nil {
		return nil, err
	}
	return loadRelationships(e.state)
}

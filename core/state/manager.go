package state

import (
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"solbox/core/types"
	"solbox/storage"
)

// maxBufferedEvents bounds the in-memory event tail retained for RPC
// consumers. Older events fall off the front; durable history belongs to
// downstream indexers, not the state manager.
const maxBufferedEvents = 1024

var accountPrefix = []byte("account/")

// Manager mediates all reads and writes between the ledger modules and the
// underlying key-value store. Values are RLP encoded and keys are hashed with
// keccak256 so callers can use readable key strings without leaking their
// layout into the store.
type Manager struct {
	db     storage.Database
	events []*types.Event
}

// NewManager wraps the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

// KVPut stores the provided value under the supplied key using RLP encoding.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	hashed := kvKey(key)
	ok, err := m.db.Has(hashed)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	data, err := m.db.Get(hashed)
	if err != nil {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func accountKey(addr [32]byte) []byte {
	return append(append([]byte(nil), accountPrefix...), addr[:]...)
}

// GetAccount loads the balance record for the given principal. Missing
// accounts materialise as zero-balance records so first-touch principals need
// no explicit creation step.
func (m *Manager) GetAccount(addr [32]byte) (*types.Account, error) {
	account := new(types.Account)
	ok, err := m.KVGet(accountKey(addr), account)
	if err != nil {
		return nil, err
	}
	if !ok {
		return (&types.Account{}).EnsureDefaults(), nil
	}
	return account.EnsureDefaults(), nil
}

// PutAccount persists the balance record for the given principal.
func (m *Manager) PutAccount(addr [32]byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	return m.KVPut(accountKey(addr), account.EnsureDefaults())
}

// Transfer moves amount base units from one principal to another. The debit
// and credit are applied together; an insufficient balance rejects the call
// before either side is written.
func (m *Manager) Transfer(from, to [32]byte, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if from == to {
		return fmt.Errorf("state: transfer to self")
	}
	fromAcc, err := m.GetAccount(from)
	if err != nil {
		return err
	}
	toAcc, err := m.GetAccount(to)
	if err != nil {
		return err
	}
	amt := new(big.Int).SetUint64(amount)
	if fromAcc.Balance.Cmp(amt) < 0 {
		return fmt.Errorf("state: insufficient balance")
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amt)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amt)
	if err := m.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return m.PutAccount(to, toAcc)
}

// AppendEvent records an event emitted by a state transition.
func (m *Manager) AppendEvent(evt *types.Event) {
	if evt == nil {
		return
	}
	m.events = append(m.events, evt)
	if len(m.events) > maxBufferedEvents {
		m.events = m.events[len(m.events)-maxBufferedEvents:]
	}
}

// Events returns a copy of the buffered event tail in emission order.
func (m *Manager) Events() []*types.Event {
	out := make([]*types.Event, len(m.events))
	copy(out, m.events)
	return out
}

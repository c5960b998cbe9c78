package giftcard

import "fmt"

// kvStore abstracts the subset of state manager functionality the gift card
// module needs for persistence.
type kvStore interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var (
	ledgerKey        = []byte("giftcard/ledger")
	relationshipsKey = []byte("giftcard/relationships")
	userPrefix       = []byte("giftcard/user/")
)

func userKey(p Principal) []byte {
	return append(append([]byte(nil), userPrefix...), p[:]...)
}

func loadLedger(st kvStore) (*LedgerState, bool, error) {
	ledger := new(LedgerState)
	ok, err := st.KVGet(ledgerKey, ledger)
	if err != nil {
		return nil, false, fmt.Errorf("giftcard: load ledger: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return ledger, true, nil
}

func storeLedger(st kvStore, ledger *LedgerState) error {
	if ledger == nil {
		return fmt.Errorf("giftcard: nil ledger")
	}
	if err := st.KVPut(ledgerKey, ledger); err != nil {
		return fmt.Errorf("giftcard: store ledger: %w", err)
	}
	return nil
}

// loadRelationships returns the full append-only relationship log in
// insertion order. The log is the source of truth for placement; counts are
// always folded from it rather than cached.
func loadRelationships(st kvStore) ([]Relationship, error) {
	var relationships []Relationship
	if _, err := st.KVGet(relationshipsKey, &relationships); err != nil {
		return nil, fmt.Errorf("giftcard: load relationships: %w", err)
	}
	return relationships, nil
}

func storeRelationships(st kvStore, relationships []Relationship) error {
	if err := st.KVPut(relationshipsKey, relationships); err != nil {
		return fmt.Errorf("giftcard: store relationships: %w", err)
	}
	return nil
}

// hasRelationship reports whether the user already appears as the purchasing
// side of a recorded relationship.
func hasRelationship(relationships []Relationship, user Principal) bool {
	for _, rel := range relationships {
		if rel.User == user {
			return true
		}
	}
	return false
}

func loadUser(st kvStore, p Principal) (*UserRecord, bool, error) {
	record := new(UserRecord)
	ok, err := st.KVGet(userKey(p), record)
	if err != nil {
		return nil, false, fmt.Errorf("giftcard: load user: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return record, true, nil
}

// loadOrCreateUser returns the stored record for p, or a fresh zeroed record
// when the principal has never participated.
func loadOrCreateUser(st kvStore, p Principal) (*UserRecord, error) {
	record, ok, err := loadUser(st, p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &UserRecord{Key: p}, nil
	}
	return record, nil
}

func storeUser(st kvStore, record *UserRecord) error {
	if record == nil {
		return fmt.Errorf("giftcard: nil user record")
	}
	if err := st.KVPut(userKey(record.Key), record); err != nil {
		return fmt.Errorf("giftcard: store user: %w", err)
	}
	return nil
}

package types

// Event represents a typed event emitted during state transitions. Attributes
// carry string-encoded payload fields so downstream consumers never need the
// native module types to decode them.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

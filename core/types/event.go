package types

// Event represents a typed event emitted during a state transition. Attribute
// values are strings so payloads stay deterministic for indexers.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

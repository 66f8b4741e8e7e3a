// Package registry owns the in-memory mapping between verification session
// IDs and the realtime connections waiting on them. All mutation of that
// mapping goes through the Registry; nothing else may hold a copy
package registry

// Event codes pushed to realtime clients
const (
	CodeConnected = "CONNECTED"
	CodeVerified  = "VERIFIED"
	CodeTimeout   = "TIMEOUT"
	CodeError     = "ERROR"
)

// Error messages carried by ERROR events
const (
	ReasonMissingVID = "missing_vid"
	ReasonInvalidVID = "invalid_or_expired_vid"
)

// Event is the JSON shape written to a realtime connection
type Event struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
	Email   string `json:"email,omitempty"`
}

// Conn is a single live client on the realtime channel. Implementations
// must tolerate Send and Close being called after the transport is gone
type Conn interface {
	Send(Event) error
	Close() error
}

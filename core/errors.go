package core

import "errors"

// Error kinds per the taxonomy: ConfigError is fatal at startup, InvariantViolation
// and StreamError and StoreError are local and logged, LawRejection is not an error.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return "config: " + e.Field + ": " + e.Reason
}

// InvariantViolation is returned when an operation would break an invariant
// (e.g. I1, I2). The triggering operation is refused; the caller continues.
type InvariantViolation struct {
	Invariant string
	Detail    string
}

func (e *InvariantViolation) Error() string {
	return "invariant " + e.Invariant + " violated: " + e.Detail
}

// StreamError wraps a stream-service failure (append/read/ack/delete).
type StreamError struct {
	Op     string
	Stream string
	Err    error
}

func (e *StreamError) Error() string {
	return "stream " + e.Stream + " " + e.Op + ": " + e.Err.Error()
}

func (e *StreamError) Unwrap() error { return e.Err }

// StoreError wraps a long-term-memory read/write failure. Read misses are
// not StoreErrors - they are empty results.
type StoreError struct {
	Op         string
	Collection string
	Err        error
}

func (e *StoreError) Error() string {
	return "store " + e.Collection + " " + e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }

var (
	// ErrNoProvider-equivalent sentinels for resolution hierarchies.
	ErrNoClock       = errors.New("no clock configured: set via context, explicit, or global")
	ErrNoEmbedder    = errors.New("no embedder configured")
	ErrNotFound      = errors.New("not found")
	ErrDegenerate    = errors.New("vector is degenerate (magnitude below EPS)")
	ErrShuttingDown  = errors.New("cycle driver is shutting down")
	ErrMaxWindows    = errors.New("would exceed MAX_WINDOWS")
	ErrConnectionLow = errors.New("connection weight below MIN_CONNECTION")
)

// Package coreerr defines the error kinds the indexing core surfaces,
// grouped per spec §7. Components return these (or wrap them with
// fmt.Errorf's %w, following the teacher's style) rather than ad hoc
// strings, so a caller can distinguish "kill the session" conditions from
// "recoverable, tell the user" ones with errors.As/errors.Is.
package coreerr

import "fmt"

// Kind classifies an error per spec §7's seven categories (Multiple
// waiters is modeled by latch.ErrMultipleWaiters directly, since it has no
// payload worth carrying here).
type Kind int

const (
	KindTransport Kind = iota
	KindFraming
	KindProtocol
	KindTimeout
	KindParse
	KindStaleness
	KindDiscoveryMiss
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindFraming:
		return "framing"
	case KindProtocol:
		return "protocol"
	case KindTimeout:
		return "timeout"
	case KindParse:
		return "parse"
	case KindStaleness:
		return "staleness"
	case KindDiscoveryMiss:
		return "discovery_miss"
	default:
		return "unknown"
	}
}

// Error is a typed core error. Fatal reports whether the error kills the
// owning ClangdSession (spec §7: only spawn failure and framed-stream
// corruption are fatal-to-session; everything else is recoverable).
type Error struct {
	Kind    Kind
	Op      string // the operation that failed, e.g. "session.initialize"
	Message string
	Fatal   bool
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a non-fatal Error.
func New(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// NewFatal builds a session-killing Error.
func NewFatal(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Fatal: true, Err: err}
}

// OperationTimeout builds the timeout error spec §4.11 step 5 names
// explicitly for LSP initialization, but is reused for any bounded wait
// (latch wait, request timeout).
func OperationTimeout(op string) *Error {
	return &Error{Kind: KindTimeout, Op: op, Message: "operation timed out"}
}

// DiscoveryMissError is the structured error spec §7 kind 7 requires: a
// workspace session asked for an unknown build directory returns this,
// listing the directories the workspace does know about.
type DiscoveryMissError struct {
	Requested string
	Known     []string
}

func (e *DiscoveryMissError) Error() string {
	return fmt.Sprintf("unknown build directory %q; known directories: %v", e.Requested, e.Known)
}

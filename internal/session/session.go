// Package session implements the per-invocation Session Kernel (C7):
// single-threaded cooperative execution producing a strictly monotonic
// stream of Frames, cooperative cancellation, and invocation metrics.
// Grounded on the teacher's session.Executor in its use of a guarding
// mutex and a small metrics struct, generalized from the teacher's
// LLM-turn loop to the spec's yield/cancel/finish frame model.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/seanchatmangpt/autonomic-cli/internal/capability"
)

// StreamID tags the logical channel a Frame belongs to.
type StreamID int

const (
	Stdout StreamID = iota
	Stderr
	Log
	Progress
	Result
)

// State is a session's lifecycle phase.
type State int

const (
	Active State = iota
	Cancelled
	Finished
)

func (s State) String() string {
	switch s {
	case Active:
		return "Active"
	case Cancelled:
		return "Cancelled"
	case Finished:
		return "Finished"
	default:
		return "Unknown"
	}
}

// Frame is one sequenced unit of session output.
type Frame struct {
	Sequence uint64
	StreamID StreamID
	Payload  []byte
	Ts       int64
}

var (
	// ErrCancelled is returned by yield_* after cancel() has been called.
	ErrCancelled = errors.New("session: cancelled")
	// ErrClosed is returned by yield_* after finish() has been called.
	ErrClosed = errors.New("session: closed")
)

// Metrics accumulates per-session counters, exported to telemetry.
type Metrics struct {
	FramesSent   uint64
	BytesSent    uint64
	AvgLatencyMs float64
}

// Session is the per-invocation execution context. It is not safe for
// concurrent use from more than one logical task — the scheduling model
// is single-threaded cooperative within a session, per design — but the
// host process runs many Sessions in parallel, each independently locked.
type Session struct {
	mu sync.Mutex

	id                string
	startedAt         int64
	capabilityContract capability.Contract
	nextSeq           uint64
	state             State
	metrics           Metrics

	onFrame func(Frame)
}

// New creates an Active session bound to a capability contract. onFrame,
// if non-nil, is invoked synchronously for every emitted frame (the sink
// the driver wires to stdout/log consumers).
func New(id string, contract capability.Contract, onFrame func(Frame)) *Session {
	return &Session{
		id:                 id,
		startedAt:          nowMillis(),
		capabilityContract: contract,
		state:              Active,
		onFrame:            onFrame,
	}
}

func nowMillis() int64 { return time.Now().UnixMilli() }

// ID returns the session's identifier.
func (s *Session) ID() string { return s.id }

// YieldData emits a data frame on the given stream, returning the frame
// that was sequenced and sent.
func (s *Session) YieldData(stream StreamID, payload []byte) (Frame, error) {
	return s.yield(stream, payload)
}

// YieldLog emits a Log-stream frame carrying a level-tagged message. attrs
// is flattened into the payload as "key=value" pairs appended after the
// message; nil attrs are fine.
func (s *Session) YieldLog(level string, message string, attrs map[string]string) (Frame, error) {
	payload := "[" + level + "] " + message
	for k, v := range attrs {
		payload += " " + k + "=" + v
	}
	return s.yield(Log, []byte(payload))
}

func (s *Session) yield(stream StreamID, payload []byte) (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Cancelled:
		return Frame{}, ErrCancelled
	case Finished:
		return Frame{}, ErrClosed
	}

	f := Frame{
		Sequence: s.nextSeq,
		StreamID: stream,
		Payload:  payload,
		Ts:       nowMillis(),
	}
	s.nextSeq++
	s.metrics.FramesSent++
	s.metrics.BytesSent += uint64(len(payload))

	if s.onFrame != nil {
		s.onFrame(f)
	}
	return f, nil
}

// Cancel performs the one-shot Active->Cancelled transition. Calling it
// more than once, or on a Finished session, is a no-op.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Active {
		s.state = Cancelled
	}
}

// Finish performs the Active->Finished transition, preventing further
// yields. On a session that is not Active it is a no-op: a Cancelled
// session stays Cancelled, and its yields remain rejected.
func (s *Session) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Active {
		s.state = Finished
	}
}

// IsActive reports whether the session is still accepting yields.
func (s *Session) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == Active
}

// IsCancelled reports whether cancel() has fired.
func (s *Session) IsCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == Cancelled
}

// State returns the session's current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Metrics returns a copy of the session's accumulated metrics.
func (s *Session) Metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

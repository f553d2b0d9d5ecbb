package fridge

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Transport is the write half of an established BLE connection. The caller
// owns connect/disconnect and notification subscription, and feeds received
// buffers to Session.HandleNotification.
type Transport interface {
	Write(ctx context.Context, p []byte) error
}

// Result is the outcome of a Send.
type Result int

const (
	// Acknowledged: the device echoed the command back unchanged.
	Acknowledged Result = iota
	// Timeout: no matching echo arrived inside the wait window. The caller
	// may retry.
	Timeout
	// Rejected: the device echoed the command opcode with a different
	// payload, i.e. it refused or clamped what we sent.
	Rejected
)

func (r Result) String() string {
	switch r {
	case Acknowledged:
		return "acknowledged"
	case Timeout:
		return "timeout"
	case Rejected:
		return "rejected"
	}
	return "unknown"
}

// ErrSessionBusy means a command is already awaiting its echo. The echo
// carries no sequence number, so interleaved commands could not be told
// apart; callers retry after the pending command resolves.
var ErrSessionBusy = errors.New("fridge: command already in flight")

// TransportError wraps a write failure. The session is unusable until the
// caller reconnects and builds a fresh one.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "fridge: transport write: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DefaultEchoWait bounds how long Send waits for the device to echo a
// command before reporting Timeout.
const DefaultEchoWait = 5 * time.Second

type pendingCommand struct {
	kind    Kind
	payload []byte // data bytes of the sent frame, for echo mirroring
	done    chan Result
}

// Session drives one device connection: it encodes and writes commands,
// pairs device echoes with the command that caused them, and feeds status
// frames to its Reconciler. At most one command is in flight at a time.
type Session struct {
	tr       Transport
	rec      *Reconciler
	echoWait time.Duration

	mu      sync.Mutex
	demux   Demux
	pending *pendingCommand
}

// NewSession wires a session to an established transport. echoWait of 0
// means DefaultEchoWait.
func NewSession(tr Transport, echoWait time.Duration) *Session {
	if echoWait == 0 {
		echoWait = DefaultEchoWait
	}
	return &Session{
		tr:       tr,
		rec:      NewReconciler(),
		echoWait: echoWait,
	}
}

// Snapshot returns the current reconciled device state.
func (s *Session) Snapshot() Snapshot {
	return s.rec.Snapshot()
}

// Subscribe registers a status listener; see Reconciler.Subscribe.
func (s *Session) Subscribe(fn func(Snapshot)) {
	s.rec.Subscribe(fn)
}

// Send encodes c, writes it, and waits for the device to echo it back.
// A second Send while one is pending fails fast with ErrSessionBusy before
// touching the transport. Cancelling ctx discards the pending command; a
// late echo for it is silently ignored.
func (s *Session) Send(ctx context.Context, c Command) (Result, error) {
	frame, err := Encode(c)
	if err != nil {
		return Rejected, err
	}

	p := &pendingCommand{
		kind:    c.Kind,
		payload: frame[frameOverhead+1 : len(frame)-2],
		done:    make(chan Result, 1),
	}

	s.mu.Lock()
	if s.pending != nil {
		s.mu.Unlock()
		return Rejected, ErrSessionBusy
	}
	s.pending = p
	s.mu.Unlock()

	log.Tracef("writing %s frame % x", c.Kind, frame)
	if err := s.tr.Write(ctx, frame); err != nil {
		s.clearPending(p)
		return Rejected, &TransportError{Err: err}
	}

	timer := time.NewTimer(s.echoWait)
	defer timer.Stop()
	select {
	case res := <-p.done:
		return res, nil
	case <-timer.C:
		s.clearPending(p)
		log.Debugf("no echo for %s command within %v", c.Kind, s.echoWait)
		return Timeout, nil
	case <-ctx.Done():
		s.clearPending(p)
		return Timeout, ctx.Err()
	}
}

// HandleNotification consumes one raw notification buffer from the
// transport. It runs decode and apply synchronously and never blocks;
// register it as the notification callback for the connection.
func (s *Session) HandleNotification(p []byte) {
	s.mu.Lock()
	frames := s.demux.Push(p)
	s.mu.Unlock()

	for _, f := range frames {
		if f.IsStatus() {
			// A status frame is also the reply a pending query waits for.
			s.resolve(Query, nil)
			if err := s.rec.Apply(f); err != nil {
				log.Debugf("dropping status frame: %v", err)
			}
			continue
		}
		s.handleEcho(f)
	}
}

func (s *Session) handleEcho(f Frame) {
	matched := s.resolve(Kind(f.Cmd), func(p *pendingCommand) Result {
		if !bytes.Equal(f.Payload, p.payload) {
			return Rejected
		}
		return Acknowledged
	})
	if !matched {
		log.Tracef("ignoring unmatched echo (cmd %#x, %d payload bytes)", f.Cmd, len(f.Payload))
	}
}

// resolve completes the pending command if its kind matches. grade, when
// non-nil, decides the result from the pending entry.
func (s *Session) resolve(k Kind, grade func(*pendingCommand) Result) bool {
	s.mu.Lock()
	p := s.pending
	if p == nil || p.kind != k {
		s.mu.Unlock()
		return false
	}
	s.pending = nil
	s.mu.Unlock()

	res := Acknowledged
	if grade != nil {
		res = grade(p)
	}
	p.done <- res
	return true
}

// clearPending removes p only if it is still the outstanding command, so a
// command resolved by a racing echo is not clobbered.
func (s *Session) clearPending(p *pendingCommand) {
	s.mu.Lock()
	if s.pending == p {
		s.pending = nil
	}
	s.mu.Unlock()
}

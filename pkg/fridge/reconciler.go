package fridge

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Reconciler folds decoded status frames into the canonical device snapshot
// and fans each update out to subscribers. It owns the snapshot; everyone
// else sees copies.
type Reconciler struct {
	mu   sync.RWMutex
	snap Snapshot
	subs []func(Snapshot)
}

func NewReconciler() *Reconciler {
	return &Reconciler{}
}

// Subscribe registers a listener called with a snapshot copy after every
// successful Apply, whether or not any field changed, so liveness stays
// visible. Listeners run on the notification goroutine and must not block.
func (r *Reconciler) Subscribe(fn func(Snapshot)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, fn)
}

// Snapshot returns a copy of the current device state.
func (r *Reconciler) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

// Apply folds one status frame into the snapshot. Fields the frame does not
// carry keep their previous values.
func (r *Reconciler) Apply(f Frame) error {
	if !f.IsStatus() {
		return fmt.Errorf("fridge: not a status frame (cmd %#x, %d payload bytes)", f.Cmd, len(f.Payload))
	}

	r.mu.Lock()
	if err := r.snap.applyStatus(f.Payload); err != nil {
		r.mu.Unlock()
		return err
	}
	snap := r.snap
	subs := append(([]func(Snapshot))(nil), r.subs...)
	r.mu.Unlock()

	log.WithFields(log.Fields{
		"on":   snap.PoweredOn,
		"mode": snap.Mode,
		"left": snap.Left.Current,
		"batt": snap.Battery.Volts(),
	}).Trace("status applied")

	for _, fn := range subs {
		fn(snap)
	}
	return nil
}

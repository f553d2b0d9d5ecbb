package main

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Gruni22/alpicool-ha-ble/pkg/fridge"
)

// commandTimeout bounds each user-triggered write end to end.
const commandTimeout = 10 * time.Second

// Fridge is the daemon's view of the device: the latest snapshot plus the
// protocol session user actions are written through. HomeKit and the HTTP
// surface both read from here.
type Fridge struct {
	mu      sync.RWMutex
	session *fridge.Session
	snap    fridge.Snapshot
	seen    bool
}

// Attach wires a freshly built session in and subscribes for updates.
// Called by the bluetooth client once the connection is up.
func (f *Fridge) Attach(s *fridge.Session) {
	f.mu.Lock()
	f.session = s
	f.mu.Unlock()
	s.Subscribe(f.update)
}

func (f *Fridge) update(snap fridge.Snapshot) {
	f.mu.Lock()
	prev := f.snap
	f.snap = snap
	f.seen = true
	f.mu.Unlock()

	if prev.PoweredOn != snap.PoweredOn {
		f.Log().Warn("on state changed")
	}
}

// Snapshot gets the latest reported fridge state.
func (f *Fridge) Snapshot() fridge.Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.snap
}

// Ready reports whether at least one status frame has arrived.
func (f *Fridge) Ready() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.seen && f.session != nil
}

// Log some basic stats to the console
func (f *Fridge) Log() *log.Entry {
	s := f.Snapshot()
	return log.WithFields(log.Fields{
		"on":       s.PoweredOn,
		"mode":     s.Mode,
		"lck":      s.Locked,
		"set-temp": s.Left.Target,
		"temp":     s.Left.Current,
		"input":    s.Battery.Volts(),
	})
}

// send pushes one command through the session, tolerating a busy poll tick.
func (f *Fridge) send(c fridge.Command) {
	f.mu.RLock()
	session := f.session
	f.mu.RUnlock()
	if session == nil {
		log.Warn("Ignoring command, no connection yet")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	res, err := session.Send(ctx, c)
	switch {
	case errors.Is(err, fridge.ErrSessionBusy):
		log.Warnf("Dropping %s command, session busy", c.Kind)
	case err != nil:
		log.Errorf("Command %s failed: %s", c.Kind, err)
	case res != fridge.Acknowledged:
		log.Warnf("Command %s result: %s", c.Kind, res)
	default:
		log.Debugf("Command %s acknowledged", c.Kind)
	}
}

// setValues does the read-modify-write cycle the protocol requires: a Set
// always carries the full settings image.
func (f *Fridge) setValues(mutate func(*fridge.Settings)) {
	if !f.Ready() {
		log.Warn("Ignoring command, no status seen yet")
		return
	}
	s := fridge.SettingsFromSnapshot(f.Snapshot())
	mutate(&s)
	f.send(fridge.NewSetCommand(s))
}

// SetOn sends the soft power state to the fridge
func (f *Fridge) SetOn(turnOn bool) {
	log.Warnf("SetOn: %v", turnOn)
	if f.Snapshot().PoweredOn == turnOn {
		return
	}
	f.setValues(func(s *fridge.Settings) { s.PoweredOn = turnOn })
}

// SetEcoMode sends the compressor profile to the fridge
func (f *Fridge) SetEcoMode(useEcoMode bool) {
	log.Warnf("SetEcoMode: %v", useEcoMode)
	if (f.Snapshot().Mode == fridge.ModeEco) == useEcoMode {
		return
	}
	f.setValues(func(s *fridge.Settings) { s.EcoMode = useEcoMode })
}

// SetLocked sends the keypad lock state to the fridge
func (f *Fridge) SetLocked(lockIt bool) {
	log.Warnf("SetLocked: %v", lockIt)
	if f.Snapshot().Locked == lockIt {
		return
	}
	f.setValues(func(s *fridge.Settings) { s.Locked = lockIt })
}

// SetLeftTarget sets the left (or only) zone thermostat.
func (f *Fridge) SetLeftTarget(temp int) {
	log.Infof("SetLeftTarget: %v", temp)
	f.send(fridge.NewSetLeftCommand(temp))
}

// SetRightTarget sets the right zone thermostat on dual-zone units.
func (f *Fridge) SetRightTarget(temp int) {
	log.Infof("SetRightTarget: %v", temp)
	if !f.Snapshot().Right.Available {
		log.Warn("Ignoring right zone command on single-zone hardware")
		return
	}
	f.send(fridge.NewSetRightCommand(temp))
}

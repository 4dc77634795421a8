// Package activation drives the double-park activation flow for a single
// vehicle session: plate selection or registration, the PIN challenge, and
// the status commit against the registry.
//
// The machine's displayed status is always the last value confirmed by the
// registry. No operation advances state on a guess; a write that is not
// acknowledged leaves the session exactly where it was.
package activation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/parksyde/doublepark/internal/flow"
	"github.com/parksyde/doublepark/internal/models"
	"github.com/parksyde/doublepark/internal/registry"
	"github.com/parksyde/doublepark/internal/session"
)

// Session states. Inactive is the idle-equivalent display after a
// confirmed deactivation; a new plate may be selected from it.
const (
	StateIdle        = "idle"
	StateSelected    = "selected"
	StateAuthorizing = "authorizing"
	StateActive      = "active"
	StateInactive    = "inactive"
)

// Transition events.
const (
	eventSelect            = "select"
	eventChallenge         = "challenge"
	eventAdoptActive       = "adopt_active"
	eventGrantActivate     = "grant_activate"
	eventGrantDeactivate   = "grant_deactivate"
	eventRequestDeactivate = "request_deactivate"
	eventCancelActivate    = "cancel_activate"
	eventCancelDeactivate  = "cancel_deactivate"
)

// Snapshot is the read-only view exposed to the presentation layer.
type Snapshot struct {
	State        string
	Plate        string
	Vehicle      *models.Vehicle
	Deactivating bool
	Err          error
}

// Machine is one activation session. Operations are serialized: a new
// registry call is only issued after the previous one resolves.
type Machine struct {
	reg    registry.Registry
	sess   *session.Session
	logger *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc

	// opMu serializes the five operations end to end. stateMu guards
	// the fields below and is never held across a registry call.
	opMu    sync.Mutex
	stateMu sync.Mutex

	fsm          *fsm.FSM
	plate        string
	vehicle      *models.Vehicle
	pinBuffer    string
	deactivating bool
	lastErr      error
	closed       bool
}

// New creates an activation session in the idle state.
func New(reg registry.Registry, sess *session.Session, logger *zap.SugaredLogger) *Machine {
	ctx, cancel := context.WithCancel(context.Background())

	m := &Machine{reg: reg, sess: sess, logger: logger, ctx: ctx, cancel: cancel}
	m.fsm = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: eventSelect, Src: []string{StateIdle, StateSelected, StateInactive}, Dst: StateSelected},
			{Name: eventChallenge, Src: []string{StateSelected}, Dst: StateAuthorizing},
			{Name: eventAdoptActive, Src: []string{StateSelected}, Dst: StateActive},
			{Name: eventGrantActivate, Src: []string{StateAuthorizing}, Dst: StateActive},
			{Name: eventGrantDeactivate, Src: []string{StateAuthorizing}, Dst: StateInactive},
			{Name: eventRequestDeactivate, Src: []string{StateActive}, Dst: StateAuthorizing},
			{Name: eventCancelActivate, Src: []string{StateAuthorizing}, Dst: StateSelected},
			{Name: eventCancelDeactivate, Src: []string{StateAuthorizing}, Dst: StateActive},
		},
		fsm.Callbacks{},
	)
	return m
}

// Close tears the session down. In-flight registry calls are canceled and
// their late results discarded; every later operation fails.
func (m *Machine) Close() {
	m.stateMu.Lock()
	m.closed = true
	m.stateMu.Unlock()
	m.cancel()
}

// SelectPlate chooses a registered plate and adopts the registry's truth
// for it. A not-active vehicle moves to the PIN challenge; an already
// active one goes straight to the active view, with the PIN required only
// at deactivation.
func (m *Machine) SelectPlate(plate string) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	plate = models.NormalizePlate(plate)
	if err := m.begin(); err != nil {
		return err
	}
	if plate == "" {
		return m.fail(fmt.Errorf("%w: plate number is empty", flow.ErrValidation))
	}

	vehicle, err := m.reg.Lookup(m.ctx, plate)
	if discard := m.discardLate(); discard != nil {
		return discard
	}
	if err != nil {
		return m.fail(err)
	}
	if vehicle == nil {
		return m.fail(fmt.Errorf("%w: plate %s is not registered", flow.ErrLookup, plate))
	}

	return m.adopt(vehicle)
}

// RegisterPlate registers a new plate for the session principal and
// selects it. New vehicles are not active, so the flow always proceeds to
// the PIN challenge.
func (m *Machine) RegisterPlate(newPlate string) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	plate := models.NormalizePlate(newPlate)
	if err := m.begin(); err != nil {
		return err
	}
	if plate == "" {
		return m.fail(fmt.Errorf("%w: plate number is empty", flow.ErrValidation))
	}

	principal, ok := m.sess.Current()
	if !ok {
		return m.fail(fmt.Errorf("%w: no authenticated owner", flow.ErrAuthorization))
	}

	existing, err := m.reg.Lookup(m.ctx, plate)
	if discard := m.discardLate(); discard != nil {
		return discard
	}
	if err != nil {
		return m.fail(err)
	}
	if existing != nil {
		return m.fail(fmt.Errorf("%w: %s", flow.ErrDuplicate, plate))
	}

	vehicle, err := m.reg.Create(m.ctx, plate, principal)
	if discard := m.discardLate(); discard != nil {
		return discard
	}
	if err != nil {
		return m.fail(err)
	}

	return m.adopt(vehicle)
}

// SubmitPIN verifies the PIN against the session principal and, on a
// match, commits the status toggle. The attempt buffer is cleared after
// every submit; only a confirmed registry response advances the state.
func (m *Machine) SubmitPIN(pin string) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if err := m.begin(); err != nil {
		return err
	}

	m.stateMu.Lock()
	m.pinBuffer = pin
	current := m.fsm.Current()
	deactivating := m.deactivating
	plate := m.plate
	m.stateMu.Unlock()

	// The buffer never survives a submit, whatever the outcome.
	defer m.clearPIN()

	if current != StateAuthorizing {
		return m.fail(fmt.Errorf("%w: no authorization in progress", flow.ErrValidation))
	}
	if !validPIN(pin) {
		return m.fail(fmt.Errorf("%w: PIN must be 4 digits", flow.ErrValidation))
	}

	principal, ok := m.sess.Current()
	if !ok {
		return m.fail(fmt.Errorf("%w: no authenticated owner", flow.ErrAuthorization))
	}
	if pin != principal.Pin {
		return m.fail(flow.ErrAuthorization)
	}

	if plate == "" {
		// Authorizing with no selected plate is a programming fault,
		// not a user error.
		panic("activation: commit with no selected plate")
	}

	target := !deactivating
	vehicle, err := m.reg.UpdateStatus(m.ctx, plate, target)
	if discard := m.discardLate(); discard != nil {
		return discard
	}
	if err != nil {
		return m.fail(err)
	}

	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	m.vehicle = vehicle
	m.deactivating = false
	event := eventGrantActivate
	if !vehicle.DoubleParked {
		event = eventGrantDeactivate
	}
	if err := m.fsm.Event(m.ctx, event); err != nil {
		return fmt.Errorf("activation transition: %w", err)
	}

	m.logger.Infow("Vehicle status committed",
		"plate", vehicle.Plate,
		"double_parked", vehicle.DoubleParked,
	)
	return nil
}

// RequestDeactivate re-enters the PIN challenge from the active view,
// recording that the pending commit is a deactivation.
func (m *Machine) RequestDeactivate() error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if err := m.begin(); err != nil {
		return err
	}

	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	if err := m.fsm.Event(m.ctx, eventRequestDeactivate); err != nil {
		m.lastErr = fmt.Errorf("%w: nothing to deactivate", flow.ErrValidation)
		return m.lastErr
	}
	m.deactivating = true
	return nil
}

// CancelAuthorization abandons the PIN challenge without contacting the
// registry: back to the selection view when activating, back to the
// active view when deactivating.
func (m *Machine) CancelAuthorization() error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if err := m.begin(); err != nil {
		return err
	}

	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	m.pinBuffer = ""
	m.lastErr = nil

	event := eventCancelActivate
	if m.deactivating {
		event = eventCancelDeactivate
	}
	if err := m.fsm.Event(m.ctx, event); err != nil {
		m.lastErr = fmt.Errorf("%w: no authorization in progress", flow.ErrValidation)
		return m.lastErr
	}
	m.deactivating = false
	return nil
}

// Snapshot returns the current state for the presentation layer.
func (m *Machine) Snapshot() Snapshot {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	snap := Snapshot{
		State:        m.fsm.Current(),
		Plate:        m.plate,
		Deactivating: m.deactivating,
		Err:          m.lastErr,
	}
	if m.vehicle != nil {
		v := *m.vehicle
		snap.Vehicle = &v
	}
	return snap
}

// begin clears the error slot for a fresh attempt and refuses work on a
// closed session.
func (m *Machine) begin() error {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	if m.closed {
		return fmt.Errorf("activation session closed")
	}
	m.lastErr = nil
	return nil
}

// discardLate reports closure that happened while a registry call was in
// flight. The result is dropped on the floor: no state mutation.
func (m *Machine) discardLate() error {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	if m.closed {
		return context.Canceled
	}
	return nil
}

// adopt installs a confirmed registry record as local truth and routes
// the flow: active records go straight to the active view, the rest to
// the PIN challenge.
func (m *Machine) adopt(vehicle *models.Vehicle) error {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	if err := m.fsm.Event(m.ctx, eventSelect); err != nil {
		// Re-selecting from the selection view is a self-transition,
		// which the FSM reports as NoTransitionError.
		var noop fsm.NoTransitionError
		if !errors.As(err, &noop) {
			m.lastErr = fmt.Errorf("%w: cannot select a plate now", flow.ErrValidation)
			return m.lastErr
		}
	}
	m.plate = vehicle.Plate
	m.vehicle = vehicle
	m.deactivating = false

	event := eventChallenge
	if vehicle.DoubleParked {
		event = eventAdoptActive
	}
	if err := m.fsm.Event(m.ctx, event); err != nil {
		return fmt.Errorf("activation transition: %w", err)
	}

	m.logger.Infow("Plate selected",
		"plate", vehicle.Plate,
		"double_parked", vehicle.DoubleParked,
	)
	return nil
}

func (m *Machine) fail(err error) error {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	m.lastErr = err
	return err
}

func (m *Machine) clearPIN() {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	m.pinBuffer = ""
}

func validPIN(pin string) bool {
	if len(pin) != 4 {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package motor

import "log"

// Persister saves parameters after a successful SET_*
type Persister interface {
	Save(p Parameters) error
}

// Machine is the motor state machine. It owns the state, the parameter store,
// the emergency latch and the motion flag, and is driven from a single goroutine.
type Machine struct {
	state  State
	params *ParameterStore
	latch  Latch
	moving bool

	drive        Drive
	persist      Persister
	stopRecovers bool
}

// Option configures a Machine
type Option func(*Machine)

// WithPersister saves parameters after every accepted SET_*
func WithPersister(p Persister) Option {
	return func(m *Machine) { m.persist = p }
}

// WithStopRecovery selects whether STOP in EMERGENCY clears the latch.
// Enabled by default.
func WithStopRecovery(enabled bool) Option {
	return func(m *Machine) { m.stopRecovers = enabled }
}

// NewMachine creates a machine in StateInit
func NewMachine(params *ParameterStore, drive Drive, opts ...Option) *Machine {
	if drive == nil {
		drive = NopDrive{}
	}
	m := &Machine{
		state:        StateInit,
		params:       params,
		drive:        drive,
		stopRecovers: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current state
func (m *Machine) State() State { return m.state }

// Latched reports whether the emergency latch is set
func (m *Machine) Latched() bool { return m.latch.IsSet() }

// Moving reports whether the motor is commanded to move
func (m *Machine) Moving() bool { return m.moving }

// Parameters returns a snapshot of the stored parameters
func (m *Machine) Parameters() Parameters { return m.params.Snapshot() }

// Apply runs one action through the machine and returns exactly one result.
// value is only read by SET_* actions.
func (m *Machine) Apply(a Action, value uint16) Result {
	if a.IsQuery() {
		return m.query(a)
	}

	// Latched emergency absorbs everything except the recovery action
	if m.latch.IsSet() && !m.isRecovery(a) {
		return respond(ResponseEmergencyActive)
	}

	switch a {
	case ActionEmergency:
		m.drive.Halt()
		m.moving = false
		m.latch.Set()
		m.state = StateEmergency
		return respond(ResponseOK)
	case ActionToIdle:
		if m.moving {
			m.drive.Halt()
			m.moving = false
		}
		m.state = StateIdle
		return respond(ResponseOK)
	}

	switch m.state {
	case StateInit:
		return m.applyInit(a)
	case StateIdle:
		return m.applyIdle(a, value)
	case StateRunning:
		return m.applyRunning(a, value)
	case StateVelChange:
		return m.applyVelChange(a, value)
	case StateBraking:
		return m.applyBraking(a)
	case StateEmergency:
		return m.applyEmergency(a)
	}
	return respond(ResponseErr)
}

func (m *Machine) isRecovery(a Action) bool {
	return m.stopRecovers && a == ActionStop && m.state == StateEmergency
}

func (m *Machine) query(a Action) Result {
	if a == ActionIsMotorStop {
		var stopped uint16
		if !m.moving {
			stopped = 1
		}
		return Result{Response: ResponseOK, Value: stopped, HasValue: true}
	}
	f, _ := a.field()
	return Result{Response: ResponseOK, Value: m.params.Get(f), HasValue: true}
}

func (m *Machine) applyInit(a Action) Result {
	switch a {
	case ActionInitDone:
		m.state = StateIdle
		return respond(ResponseOK)
	}
	return respond(ResponseErr)
}

func (m *Machine) applyIdle(a Action, value uint16) Result {
	switch a {
	case ActionStart:
		m.drive.BeginRun(m.params.Snapshot())
		m.moving = true
		m.state = StateRunning
		return respond(ResponseOK)
	case ActionStop:
		return respond(ResponseNotMoving)
	case ActionSetFrec, ActionSetAcel, ActionSetDesacel, ActionSetDir:
		return respond(m.store(a, value))
	}
	return respond(ResponseErr)
}

func (m *Machine) applyRunning(a Action, value uint16) Result {
	switch a {
	case ActionStop:
		m.drive.BeginBrake(m.params.Snapshot())
		m.state = StateBraking
		return respond(ResponseOK)
	case ActionStart, ActionSetDir:
		return respond(ResponseMoving)
	case ActionSetFrec, ActionSetAcel, ActionSetDesacel:
		r := m.store(a, value)
		if r == ResponseOK {
			m.drive.BeginRamp(m.params.Snapshot())
			m.state = StateVelChange
		}
		return respond(r)
	}
	return respond(ResponseErr)
}

func (m *Machine) applyVelChange(a Action, value uint16) Result {
	switch a {
	case ActionToConstRunning:
		m.state = StateRunning
		return respond(ResponseOK)
	case ActionStop:
		m.drive.BeginBrake(m.params.Snapshot())
		m.state = StateBraking
		return respond(ResponseOK)
	case ActionStart, ActionSetDir:
		return respond(ResponseMoving)
	case ActionSetFrec, ActionSetAcel, ActionSetDesacel:
		r := m.store(a, value)
		if r == ResponseOK {
			m.drive.BeginRamp(m.params.Snapshot())
		}
		return respond(r)
	}
	return respond(ResponseErr)
}

func (m *Machine) applyBraking(a Action) Result {
	switch a {
	case ActionMotorStopped:
		m.moving = false
		m.state = StateIdle
		return respond(ResponseOK)
	case ActionStop:
		return respond(ResponseNotMoving)
	case ActionStart, ActionSetFrec, ActionSetAcel, ActionSetDesacel, ActionSetDir:
		return respond(ResponseMoving)
	}
	return respond(ResponseErr)
}

// applyEmergency is only reached with the latch clear, i.e. for the recovery action
func (m *Machine) applyEmergency(a Action) Result {
	switch a {
	case ActionStop:
		m.drive.Halt()
		m.moving = false
		m.latch.Clear()
		m.state = StateIdle
		return respond(ResponseOK)
	}
	return respond(ResponseErr)
}

func (m *Machine) store(a Action, value uint16) Response {
	f, _ := a.field()
	r := m.params.Set(f, value)
	if r == ResponseOK && m.persist != nil {
		if err := m.persist.Save(m.params.Snapshot()); err != nil {
			log.Printf("Failed to persist parameters: %v", err)
		}
	}
	return r
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package motor holds the motor controller state machine and the state it owns:
// the parameter store, the emergency latch and the motion flag.
package motor

import "fmt"

// State is the controller state
type State int

const (
	StateInit State = iota
	StateIdle
	StateRunning
	StateVelChange
	StateBraking
	StateEmergency
)

// AllStates lists every state
var AllStates = []State{StateInit, StateIdle, StateRunning, StateVelChange, StateBraking, StateEmergency}

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateVelChange:
		return "VEL_CHANGE"
	case StateBraking:
		return "BRAKING"
	case StateEmergency:
		return "EMERGENCY"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Action is an event applied to the state machine
type Action int

const (
	ActionNone Action = iota
	ActionInitDone
	ActionToIdle
	ActionStart
	ActionStop
	ActionMotorStopped
	ActionEmergency
	ActionSetFrec
	ActionSetAcel
	ActionSetDesacel
	ActionSetDir
	ActionToConstRunning
	ActionGetFrec
	ActionGetAcel
	ActionGetDesacel
	ActionGetDir
	ActionIsMotorStop
)

// AllActions lists every action
var AllActions = []Action{
	ActionNone, ActionInitDone, ActionToIdle, ActionStart, ActionStop,
	ActionMotorStopped, ActionEmergency, ActionSetFrec, ActionSetAcel,
	ActionSetDesacel, ActionSetDir, ActionToConstRunning, ActionGetFrec,
	ActionGetAcel, ActionGetDesacel, ActionGetDir, ActionIsMotorStop,
}

var actionNames = [...]string{
	ActionNone:           "NONE",
	ActionInitDone:       "INIT_DONE",
	ActionToIdle:         "TO_IDLE",
	ActionStart:          "START",
	ActionStop:           "STOP",
	ActionMotorStopped:   "MOTOR_STOPPED",
	ActionEmergency:      "EMERGENCY",
	ActionSetFrec:        "SET_FREC",
	ActionSetAcel:        "SET_ACEL",
	ActionSetDesacel:     "SET_DESACEL",
	ActionSetDir:         "SET_DIR",
	ActionToConstRunning: "TO_CONST_RUNNING",
	ActionGetFrec:        "GET_FREC",
	ActionGetAcel:        "GET_ACEL",
	ActionGetDesacel:     "GET_DESACEL",
	ActionGetDir:         "GET_DIR",
	ActionIsMotorStop:    "IS_MOTOR_STOP",
}

func (a Action) String() string {
	if a >= 0 && int(a) < len(actionNames) {
		return actionNames[a]
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// IsQuery reports whether the action only reads state
func (a Action) IsQuery() bool {
	switch a {
	case ActionGetFrec, ActionGetAcel, ActionGetDesacel, ActionGetDir, ActionIsMotorStop:
		return true
	}
	return false
}

// field maps SET_* and GET_* actions to the parameter they touch
func (a Action) field() (Field, bool) {
	switch a {
	case ActionSetFrec, ActionGetFrec:
		return FieldFrequency, true
	case ActionSetAcel, ActionGetAcel:
		return FieldAcceleration, true
	case ActionSetDesacel, ActionGetDesacel:
		return FieldDeceleration, true
	case ActionSetDir, ActionGetDir:
		return FieldDirection, true
	}
	return 0, false
}

// Response is the state machine's answer to an action
type Response int

const (
	ResponseOK Response = iota
	ResponseErr
	ResponseMoving
	ResponseNotMoving
	ResponseOutRange
	ResponseEmergencyActive
)

func (r Response) String() string {
	switch r {
	case ResponseOK:
		return "OK"
	case ResponseErr:
		return "ERR"
	case ResponseMoving:
		return "MOVING"
	case ResponseNotMoving:
		return "NOT_MOVING"
	case ResponseOutRange:
		return "OUT_RANGE"
	case ResponseEmergencyActive:
		return "EMERGENCY_ACTIVE"
	}
	return fmt.Sprintf("Response(%d)", int(r))
}

// Result is a response plus the value read by a query
type Result struct {
	Response Response
	Value    uint16
	HasValue bool
}

func (r Result) String() string {
	if r.HasValue {
		return fmt.Sprintf("%s(%d)", r.Response, r.Value)
	}
	return r.Response.String()
}

func respond(r Response) Result {
	return Result{Response: r}
}

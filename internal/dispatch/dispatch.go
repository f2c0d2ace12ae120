// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package dispatch translates decoded wire commands into state machine actions
// and their results back into wire replies.
package dispatch

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/Thermoquad/rotostat/internal/motor"
	"github.com/Thermoquad/rotostat/pkg/lvfv"
)

// ErrBusy is reported when a command arrives while another is unresolved
var ErrBusy = errors.New("command already in flight")

// Submitter accepts actions for the state machine.
// Implemented by *motor.Controller.
type Submitter interface {
	Submit(ctx context.Context, a motor.Action, value uint16) (motor.Result, error)
}

// Dispatcher maps commands 1:1 onto actions. At most one command is in flight;
// others are rejected with ERR.
//
// The timeout bounds how long a command may wait for the state machine to pick
// it up. A command that times out is withdrawn and answered ERR without effect;
// a command already being applied is always answered with its own result.
type Dispatcher struct {
	target   Submitter
	timeout  time.Duration
	inFlight atomic.Bool
}

// New creates a dispatcher
func New(target Submitter, timeout time.Duration) *Dispatcher {
	return &Dispatcher{target: target, timeout: timeout}
}

// Dispatch submits cmd and returns the wire reply. Only decoded commands reach
// it; codec errors are answered by the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd lvfv.Command) lvfv.Reply {
	action, ok := ActionFor(cmd.Request)
	if !ok {
		log.Printf("No action for %s", cmd.Request)
		return lvfv.Reply{Response: lvfv.RespErr}
	}

	if !d.inFlight.CompareAndSwap(false, true) {
		log.Printf("Rejected %s: %v", cmd, ErrBusy)
		return lvfv.Reply{Response: lvfv.RespErr}
	}
	defer d.inFlight.Store(false)

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	res, err := d.target.Submit(ctx, action, cmd.Value)
	if err != nil {
		log.Printf("Dispatch %s failed: %v", cmd, err)
		return lvfv.Reply{Response: lvfv.RespErr}
	}
	return ReplyFor(res)
}

// Busy reports whether a command is awaiting its result
func (d *Dispatcher) Busy() bool {
	return d.inFlight.Load()
}

// ActionFor maps a wire request to its action. RESPONSE has no action.
func ActionFor(r lvfv.Request) (motor.Action, bool) {
	switch r {
	case lvfv.ReqStart:
		return motor.ActionStart, true
	case lvfv.ReqStop:
		return motor.ActionStop, true
	case lvfv.ReqSetFrec:
		return motor.ActionSetFrec, true
	case lvfv.ReqSetAcel:
		return motor.ActionSetAcel, true
	case lvfv.ReqSetDesacel:
		return motor.ActionSetDesacel, true
	case lvfv.ReqSetDir:
		return motor.ActionSetDir, true
	case lvfv.ReqGetFrec:
		return motor.ActionGetFrec, true
	case lvfv.ReqGetAcel:
		return motor.ActionGetAcel, true
	case lvfv.ReqGetDesacel:
		return motor.ActionGetDesacel, true
	case lvfv.ReqGetDir:
		return motor.ActionGetDir, true
	case lvfv.ReqIsStop:
		return motor.ActionIsMotorStop, true
	case lvfv.ReqEmergency:
		return motor.ActionEmergency, true
	}
	return motor.ActionNone, false
}

// ResponseFor maps a state machine response to its wire code
func ResponseFor(r motor.Response) lvfv.Response {
	switch r {
	case motor.ResponseOK:
		return lvfv.RespOK
	case motor.ResponseMoving:
		return lvfv.RespErrMoving
	case motor.ResponseNotMoving:
		return lvfv.RespErrNotMoving
	case motor.ResponseOutRange:
		return lvfv.RespErrDataOutRange
	case motor.ResponseEmergencyActive:
		return lvfv.RespErrEmergencyActive
	}
	return lvfv.RespErr
}

// ReplyFor maps a full result, carrying query values through
func ReplyFor(res motor.Result) lvfv.Reply {
	return lvfv.Reply{Response: ResponseFor(res.Response), Value: res.Value, HasValue: res.HasValue}
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package motor

import (
	"log"
	"math"
	"sync"
	"time"
)

// Drive executes motion. Calls are made from the state machine goroutine and
// must not block; completion is reported back as an action.
type Drive interface {
	// BeginRun starts the motor towards p.Frequency
	BeginRun(p Parameters)
	// BeginRamp changes speed to p.Frequency and reports TO_CONST_RUNNING when done
	BeginRamp(p Parameters)
	// BeginBrake decelerates to standstill and reports MOTOR_STOPPED when done
	BeginBrake(p Parameters)
	// Halt stops output immediately and drops any pending completion
	Halt()
	// Current reports whether a completion of generation gen still belongs to
	// the motion in progress
	Current(gen uint64) bool
}

// EventSink receives completion actions from a drive, tagged with the
// generation of the motion that completed
type EventSink interface {
	Complete(a Action, gen uint64) bool
}

// NopDrive ignores every request. Completions must be posted by the caller.
type NopDrive struct{}

func (NopDrive) BeginRun(Parameters)   {}
func (NopDrive) BeginRamp(Parameters)  {}
func (NopDrive) BeginBrake(Parameters) {}
func (NopDrive) Halt()                 {}
func (NopDrive) Current(uint64) bool   { return true }

// minRampTime keeps zero-length ramps asynchronous
const minRampTime = time.Millisecond

// SimulatedDrive models ramp timing without hardware. A ramp of Δf Hz at r Hz/s
// takes Δf/r seconds multiplied by the time scale.
type SimulatedDrive struct {
	sink      EventSink
	timeScale float64

	mu         sync.Mutex
	output     uint16 // commanded frequency in Hz
	generation uint64
	timer      *time.Timer
}

// NewSimulatedDrive creates a drive reporting completions to sink.
// A timeScale of 0 completes every ramp after minRampTime.
func NewSimulatedDrive(sink EventSink, timeScale float64) *SimulatedDrive {
	return &SimulatedDrive{sink: sink, timeScale: timeScale}
}

// SetSink replaces the completion sink. Used when the sink is created after the drive.
func (d *SimulatedDrive) SetSink(sink EventSink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sink = sink
}

// Output returns the commanded frequency
func (d *SimulatedDrive) Output() uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.output
}

func (d *SimulatedDrive) BeginRun(p Parameters) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
	d.output = p.Frequency
}

func (d *SimulatedDrive) BeginRamp(p Parameters) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rate := p.Acceleration
	if p.Frequency < d.output {
		rate = p.Deceleration
	}
	delta := math.Abs(float64(p.Frequency) - float64(d.output))
	d.output = p.Frequency
	d.scheduleLocked(d.rampTime(delta, rate), ActionToConstRunning)
}

func (d *SimulatedDrive) BeginBrake(p Parameters) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delta := float64(d.output)
	d.output = 0
	d.scheduleLocked(d.rampTime(delta, p.Deceleration), ActionMotorStopped)
}

func (d *SimulatedDrive) Halt() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
	d.output = 0
}

// Current reports whether gen is the generation of the latest motion request
func (d *SimulatedDrive) Current(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return gen == d.generation
}

func (d *SimulatedDrive) rampTime(delta float64, rate uint16) time.Duration {
	if rate == 0 {
		return minRampTime
	}
	dur := time.Duration(delta / float64(rate) * d.timeScale * float64(time.Second))
	if dur < minRampTime {
		return minRampTime
	}
	return dur
}

func (d *SimulatedDrive) cancelLocked() {
	d.generation++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *SimulatedDrive) scheduleLocked(after time.Duration, a Action) {
	d.cancelLocked()
	gen := d.generation
	d.timer = time.AfterFunc(after, func() {
		d.mu.Lock()
		if gen != d.generation {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		sink := d.sink
		d.mu.Unlock()

		if sink != nil && !sink.Complete(a, gen) {
			log.Printf("Drive completion %s dropped: event queue full", a)
		}
	})
}

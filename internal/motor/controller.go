// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package motor

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
)

var (
	// ErrMailboxFull is returned when the controller cannot accept another request
	ErrMailboxFull = errors.New("controller mailbox full")

	// ErrStopped is returned once the controller loop has exited
	ErrStopped = errors.New("controller stopped")
)

// eventQueueSize bounds internal completion events (drive, startup)
const eventQueueSize = 16

// Status is a snapshot of the machine published after every action
type Status struct {
	State      State
	Latched    bool
	Moving     bool
	Parameters Parameters
}

// Request lifecycle. A request is applied only if the controller claims it
// before the submitter abandons it.
const (
	requestPending int32 = iota
	requestClaimed
	requestAbandoned
)

type request struct {
	action Action
	value  uint16
	reply  chan Result
	state  *atomic.Int32
}

func newRequest(a Action, value uint16) request {
	return request{action: a, value: value, reply: make(chan Result, 1), state: new(atomic.Int32)}
}

// event is an internal action. Drive completions carry the motion generation
// they belong to and are dropped once the drive has moved on.
type event struct {
	action Action
	gen    uint64
	tagged bool
}

// Controller runs a Machine on a single goroutine fed by bounded mailboxes.
// Emergency requests use their own mailbox and are always drained first.
type Controller struct {
	machine   *Machine
	mailbox   chan request
	emergency chan request
	events    chan event
	done      chan struct{}

	mu     sync.RWMutex
	status Status
}

// NewController creates a controller around m with a mailbox of mailboxSize requests
func NewController(m *Machine, mailboxSize int) *Controller {
	if mailboxSize < 1 {
		mailboxSize = 1
	}
	c := &Controller{
		machine:   m,
		mailbox:   make(chan request, mailboxSize),
		emergency: make(chan request, 1),
		events:    make(chan event, eventQueueSize),
		done:      make(chan struct{}),
	}
	c.publish()
	return c
}

// Run processes requests until ctx is cancelled. INIT_DONE is posted as soon
// as the loop starts.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)

	c.Post(ActionInitDone)

	for {
		// Pending emergency wins over anything already queued
		select {
		case r := <-c.emergency:
			c.handle(r)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-c.emergency:
			c.handle(r)
		case r := <-c.mailbox:
			c.handle(r)
		case ev := <-c.events:
			if ev.tagged && !c.machine.drive.Current(ev.gen) {
				log.Printf("Dropped stale %s", ev.action)
				continue
			}
			res := c.apply(ev.action, 0)
			if res.Response != ResponseOK {
				log.Printf("Event %s in %s: %s", ev.action, c.machine.State(), res)
			}
		}
	}
}

// Submit hands an action to the controller and waits for its result.
// Returns ErrMailboxFull without queueing when the mailbox is full.
//
// If ctx ends while the request is still queued, the request is withdrawn and
// never applied. Once the controller has started applying it, Submit waits for
// the result regardless of ctx, so an error return always means no effect.
func (c *Controller) Submit(ctx context.Context, a Action, value uint16) (Result, error) {
	r := newRequest(a, value)

	box := c.mailbox
	if a == ActionEmergency {
		box = c.emergency
	}

	select {
	case <-c.done:
		return Result{}, ErrStopped
	default:
	}

	select {
	case box <- r:
	default:
		return Result{}, ErrMailboxFull
	}

	select {
	case res := <-r.reply:
		return res, nil
	case <-ctx.Done():
		if r.state.CompareAndSwap(requestPending, requestAbandoned) {
			return Result{}, ctx.Err()
		}
	case <-c.done:
		if r.state.CompareAndSwap(requestPending, requestAbandoned) {
			return Result{}, ErrStopped
		}
	}

	// Claimed by the loop: the result is on its way
	return <-r.reply, nil
}

// Post queues an internal event without waiting. Returns false if the event
// queue is full.
func (c *Controller) Post(a Action) bool {
	return c.queueEvent(event{action: a})
}

// Complete queues a drive completion for motion generation gen
func (c *Controller) Complete(a Action, gen uint64) bool {
	return c.queueEvent(event{action: a, gen: gen, tagged: true})
}

func (c *Controller) queueEvent(ev event) bool {
	select {
	case c.events <- ev:
		return true
	default:
		return false
	}
}

// Emergency signals an emergency detected outside the wire protocol. It takes
// priority over every queued request.
func (c *Controller) Emergency() {
	select {
	case c.emergency <- newRequest(ActionEmergency, 0):
	default:
		// one already pending
	}
}

// Status returns the latest published snapshot
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Done is closed when Run returns
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

func (c *Controller) handle(r request) {
	if !r.state.CompareAndSwap(requestPending, requestClaimed) {
		log.Printf("Skipped withdrawn %s", r.action)
		return
	}
	r.reply <- c.apply(r.action, r.value)
}

func (c *Controller) apply(a Action, value uint16) Result {
	before := c.machine.State()
	res := c.machine.Apply(a, value)
	if after := c.machine.State(); after != before {
		log.Printf("State %s -> %s (%s)", before, after, a)
	}
	c.publish()
	return res
}

func (c *Controller) publish() {
	s := Status{
		State:      c.machine.State(),
		Latched:    c.machine.Latched(),
		Moving:     c.machine.Moving(),
		Parameters: c.machine.Parameters(),
	}
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

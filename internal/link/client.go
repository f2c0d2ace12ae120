// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Thermoquad/rotostat/internal/config"
	"github.com/Thermoquad/rotostat/pkg/lvfv"
)

var (
	// ErrTimeout is returned when no reply arrives in time
	ErrTimeout = errors.New("timed out waiting for reply")

	// ErrConnectionLost is returned once the connection has failed
	ErrConnectionLost = errors.New("connection lost")
)

// Client talks to a controller from the host side
type Client struct {
	conn      io.ReadWriter
	mode      string
	pollDelay time.Duration
	timeout   time.Duration

	mu      sync.Mutex // one exchange at a time
	replies chan lvfv.Reply
	readErr chan error
}

// NewClient creates a client and starts reading replies from conn
func NewClient(conn io.ReadWriter, mode string, pollDelay, timeout time.Duration) *Client {
	c := &Client{
		conn:      conn,
		mode:      mode,
		pollDelay: pollDelay,
		timeout:   timeout,
		replies:   make(chan lvfv.Reply, 8),
		readErr:   make(chan error, 1),
	}
	go c.readLoop()
	return c
}

func (c *Client) readLoop() {
	decoder := lvfv.NewDecoder()
	buf := make([]byte, 64)
	for {
		n, err := c.conn.Read(buf)
		for i := 0; i < n; i++ {
			packet, decodeErr := decoder.DecodeByte(buf[i])
			if decodeErr != nil || packet == nil {
				continue
			}
			select {
			case c.replies <- lvfv.DecodeResponse(packet.Frame()):
			default:
				// nobody waiting; Do drains stale replies anyway
			}
		}
		if err != nil {
			c.readErr <- err
			return
		}
	}
}

// Do sends cmd and returns the controller's reply. In poll mode the reply is
// fetched with a RESPONSE request after the poll delay.
func (c *Client) Do(ctx context.Context, cmd lvfv.Command) (lvfv.Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.drain()

	packet, err := lvfv.EncodeCommandPacket(cmd)
	if err != nil {
		return lvfv.Reply{}, err
	}
	if _, err := c.conn.Write(packet); err != nil {
		return lvfv.Reply{}, fmt.Errorf("%w: send %s: %w", ErrConnectionLost, cmd, err)
	}

	if c.mode == config.ModePoll && cmd.Request != lvfv.ReqResponse {
		select {
		case <-time.After(c.pollDelay):
		case <-ctx.Done():
			return lvfv.Reply{}, ctx.Err()
		}
		if _, err := c.conn.Write(lvfv.EncodePacket(mustFrame(lvfv.PollCommand()))); err != nil {
			return lvfv.Reply{}, fmt.Errorf("%w: poll: %w", ErrConnectionLost, err)
		}
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case reply := <-c.replies:
		return reply, nil
	case err := <-c.readErr:
		c.readErr <- err // keep it for later calls
		return lvfv.Reply{}, fmt.Errorf("%w: %w", ErrConnectionLost, err)
	case <-timer.C:
		return lvfv.Reply{}, fmt.Errorf("%s: %w", cmd, ErrTimeout)
	case <-ctx.Done():
		return lvfv.Reply{}, ctx.Err()
	}
}

func (c *Client) drain() {
	for {
		select {
		case <-c.replies:
		default:
			return
		}
	}
}

// SequenceError reports the step that stopped a command sequence
type SequenceError struct {
	Step  lvfv.Command
	Reply lvfv.Reply
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Step, e.Reply)
}

// StartSequence loads frequency, acceleration and deceleration, then starts
// the motor. It stops at the first reply that is not OK.
func (c *Client) StartSequence(ctx context.Context, frec, acel, desacel uint16) error {
	steps := []lvfv.Command{
		lvfv.SetFrequencyCommand(frec),
		lvfv.SetAccelerationCommand(acel),
		lvfv.SetDecelerationCommand(desacel),
		lvfv.StartCommand(),
	}
	for _, step := range steps {
		reply, err := c.Do(ctx, step)
		if err != nil {
			return err
		}
		if reply.Response != lvfv.RespOK {
			return &SequenceError{Step: step, Reply: reply}
		}
	}
	return nil
}

// WaitReady sends STOP until the controller answers ERR_NOT_MOVING, which means
// it is up, idle and unlatched. Gives up after attempts tries.
func (c *Client) WaitReady(ctx context.Context, attempts int, interval time.Duration) error {
	var last lvfv.Reply
	var lastErr error
	for i := 0; i < attempts; i++ {
		last, lastErr = c.Do(ctx, lvfv.StopCommand())
		if lastErr == nil && last.Response == lvfv.RespErrNotMoving {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if lastErr != nil {
		return fmt.Errorf("controller not ready after %d attempts: %w", attempts, lastErr)
	}
	return fmt.Errorf("controller not ready after %d attempts: last reply %s", attempts, last)
}

func mustFrame(cmd lvfv.Command) lvfv.Frame {
	f, err := lvfv.EncodeRequest(cmd)
	if err != nil {
		panic(fmt.Sprintf("link: %v", err))
	}
	return f
}

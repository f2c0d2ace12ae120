// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/Thermoquad/rotostat/internal/config"
	"github.com/Thermoquad/rotostat/internal/dispatch"
	"github.com/Thermoquad/rotostat/internal/motor"
	"github.com/Thermoquad/rotostat/pkg/lvfv"
)

// ============================================================
// Test Helpers
// ============================================================

// countingDispatcher answers every command with a fixed reply
type countingDispatcher struct {
	calls int
	reply lvfv.Reply
}

func (d *countingDispatcher) Dispatch(ctx context.Context, cmd lvfv.Command) lvfv.Reply {
	d.calls++
	return d.reply
}

// rig wires a client to a session backed by a real controller over net.Pipe
type rig struct {
	client     *Client
	controller *motor.Controller
	stats      *lvfv.Statistics
}

func newRig(t *testing.T, mode string) *rig {
	t.Helper()
	cfg := config.Default()
	store, err := motor.NewParameterStore(cfg.Limits(), cfg.Defaults())
	if err != nil {
		t.Fatal(err)
	}
	drive := motor.NewSimulatedDrive(nil, 0)
	controller := motor.NewController(motor.NewMachine(store, drive), cfg.Controller.MailboxSize)
	drive.SetSink(controller)

	ctx, cancel := context.WithCancel(context.Background())
	go controller.Run(ctx)

	hostEnd, controllerEnd := net.Pipe()
	stats := lvfv.NewStatistics()
	session := NewSession("test", controllerEnd, dispatch.New(controller, time.Second), mode, stats)
	go session.Serve(ctx)

	t.Cleanup(func() {
		cancel()
		hostEnd.Close()
		controllerEnd.Close()
	})

	return &rig{
		client:     NewClient(hostEnd, mode, 5*time.Millisecond, time.Second),
		controller: controller,
		stats:      stats,
	}
}

func (r *rig) do(t *testing.T, cmd lvfv.Command) lvfv.Reply {
	t.Helper()
	reply, err := r.client.Do(context.Background(), cmd)
	if err != nil {
		t.Fatalf("%s: %v", cmd, err)
	}
	return reply
}

// ============================================================
// Session Tests
// ============================================================

func TestSession_CodecErrorsNeverDispatched(t *testing.T) {
	d := &countingDispatcher{reply: lvfv.Reply{Response: lvfv.RespOK}}
	s := NewSession("test", nil, d, config.ModeDuplex, nil)

	tests := []struct {
		frame    []byte
		expected lvfv.Response
	}{
		{[]byte{0x42, ';', 0, 0}, lvfv.RespErrCmdUnknown},
		{[]byte{}, lvfv.RespErrNoCommand},
		{[]byte{byte(lvfv.ReqSetFrec), ';', 0, 0}, lvfv.RespErrDataMissing},
		{[]byte{byte(lvfv.ReqSetFrec), 0xFF, 0x00, ';'}, lvfv.RespErrDataInvalid},
	}
	for _, tt := range tests {
		reply, send := s.HandleFrame(context.Background(), tt.frame)
		if !send || reply.Response != tt.expected {
			t.Errorf("% X: reply %s send=%v, want %s", tt.frame, reply, send, tt.expected)
		}
	}
	if d.calls != 0 {
		t.Errorf("dispatcher called %d times for codec errors", d.calls)
	}
}

func TestSession_PollModeHoldsReply(t *testing.T) {
	d := &countingDispatcher{reply: lvfv.Reply{Response: lvfv.RespErrMoving}}
	s := NewSession("test", nil, d, config.ModePoll, nil)
	ctx := context.Background()

	// Before any command the poll answers OK
	if reply, send := s.HandleFrame(ctx, []byte{byte(lvfv.ReqResponse), ';', 0, 0}); !send || reply.Response != lvfv.RespOK {
		t.Errorf("initial poll = %s, %v", reply, send)
	}

	if _, send := s.HandleFrame(ctx, []byte{byte(lvfv.ReqStart), ';', 0, 0}); send {
		t.Error("poll mode must not answer commands directly")
	}
	reply, send := s.HandleFrame(ctx, []byte{byte(lvfv.ReqResponse), ';', 0, 0})
	if !send || reply.Response != lvfv.RespErrMoving {
		t.Errorf("poll = %s, want ERR_MOVING", reply)
	}
	if d.calls != 1 {
		t.Errorf("RESPONSE was dispatched")
	}
}

// ============================================================
// Client / Session Tests
// ============================================================

func TestLink_DuplexExchange(t *testing.T) {
	r := newRig(t, config.ModeDuplex)

	if err := r.client.WaitReady(context.Background(), 10, 5*time.Millisecond); err != nil {
		t.Fatalf("WaitReady: %v", err)
	}
	if got := r.do(t, lvfv.SetFrequencyCommand(151)); got.Response != lvfv.RespErrDataOutRange {
		t.Errorf("SET_FREC 151 = %s", got)
	}
	if got := r.do(t, lvfv.QueryCommand(lvfv.ReqGetDir)); got != (lvfv.Reply{Response: lvfv.RespOK, Value: 1, HasValue: true}) {
		t.Errorf("GET_DIR = %s", got)
	}

	total, valid := r.stats.Counts()
	if total == 0 || total != valid {
		t.Errorf("stats total=%d valid=%d", total, valid)
	}
}

func TestLink_PollExchange(t *testing.T) {
	r := newRig(t, config.ModePoll)

	if err := r.client.WaitReady(context.Background(), 10, 5*time.Millisecond); err != nil {
		t.Fatalf("WaitReady: %v", err)
	}
	if got := r.do(t, lvfv.StartCommand()); got.Response != lvfv.RespOK {
		t.Errorf("START = %s", got)
	}
	if got := r.do(t, lvfv.StartCommand()); got.Response != lvfv.RespErrMoving {
		t.Errorf("second START = %s", got)
	}
	if got := r.do(t, lvfv.QueryCommand(lvfv.ReqIsStop)); got.Value != 0 {
		t.Errorf("IS_STOP while running = %s", got)
	}
}

func TestLink_StartSequence(t *testing.T) {
	r := newRig(t, config.ModeDuplex)
	ctx := context.Background()
	if err := r.client.WaitReady(ctx, 10, 5*time.Millisecond); err != nil {
		t.Fatal(err)
	}

	if err := r.client.StartSequence(ctx, 80, 10, 8); err != nil {
		t.Fatalf("StartSequence: %v", err)
	}
	if got := r.do(t, lvfv.QueryCommand(lvfv.ReqGetFrec)); got.Value != 80 {
		t.Errorf("GET_FREC = %s", got)
	}

	// Running now: the first step answers ERR_DATA_OUT_RANGE and aborts
	err := r.client.StartSequence(ctx, 999, 10, 8)
	var seqErr *SequenceError
	if !errors.As(err, &seqErr) {
		t.Fatalf("expected SequenceError, got %v", err)
	}
	if seqErr.Step.Request != lvfv.ReqSetFrec || seqErr.Reply.Response != lvfv.RespErrDataOutRange {
		t.Errorf("unexpected abort: %v", seqErr)
	}
}

func TestLink_EmergencyAndRecovery(t *testing.T) {
	r := newRig(t, config.ModeDuplex)
	ctx := context.Background()
	if err := r.client.WaitReady(ctx, 10, 5*time.Millisecond); err != nil {
		t.Fatal(err)
	}

	r.do(t, lvfv.StartCommand())
	if got := r.do(t, lvfv.EmergencyCommand()); got.Response != lvfv.RespOK {
		t.Fatalf("EMERGENCY = %s", got)
	}
	if got := r.do(t, lvfv.StartCommand()); got.Response != lvfv.RespErrEmergencyActive {
		t.Errorf("START while latched = %s", got)
	}

	// WaitReady recovers with STOP then sees ERR_NOT_MOVING
	if err := r.client.WaitReady(ctx, 5, time.Millisecond); err != nil {
		t.Fatalf("WaitReady after emergency: %v", err)
	}
	if r.controller.Status().Latched {
		t.Error("latch still set")
	}
}

func TestClient_Timeout(t *testing.T) {
	hostEnd, other := net.Pipe()
	defer hostEnd.Close()
	defer other.Close()

	// Peer reads but never answers
	go func() {
		buf := make([]byte, 64)
		for {
			if _, err := other.Read(buf); err != nil {
				return
			}
		}
	}()

	c := NewClient(hostEnd, config.ModeDuplex, 0, 20*time.Millisecond)
	if _, err := c.Do(context.Background(), lvfv.StopCommand()); !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestClient_ConnectionLost(t *testing.T) {
	hostEnd, other := net.Pipe()
	defer hostEnd.Close()
	other.Close()

	c := NewClient(hostEnd, config.ModeDuplex, 0, time.Second)
	for i := 0; i < 2; i++ {
		if _, err := c.Do(context.Background(), lvfv.StopCommand()); !errors.Is(err, ErrConnectionLost) {
			t.Errorf("attempt %d: expected ErrConnectionLost, got %v", i, err)
		}
	}
}

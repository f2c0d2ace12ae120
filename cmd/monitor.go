// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/rotostat/internal/link"
	"github.com/Thermoquad/rotostat/pkg/lvfv"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive TUI for monitoring and driving the motor",
	Long: `Monitor and control an LVFV controller via an interactive terminal UI.

The TUI polls the controller once per second with GET_FREC, GET_ACEL,
GET_DESACEL, GET_DIR and IS_STOP and shows the results together with link
statistics and an event log.

Keys:
  s      START
  x      STOP (also clears a latched emergency stop)
  e      EMERGENCY
  d      toggle direction (SET_DIR)
  tab    focus the frequency input, enter sends SET_FREC
  q      quit

The connection is re-established automatically if it is lost.

Supports both serial and WebSocket connections.`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

// errNotConnected is returned while a reconnect is in progress
var errNotConnected = errors.New("not connected")

// statsConn counts every packet the controller sends back
type statsConn struct {
	Connection
	decoder *lvfv.Decoder
	stats   *lvfv.Statistics
}

func (s *statsConn) Read(p []byte) (int, error) {
	n, err := s.Connection.Read(p)
	for i := 0; i < n; i++ {
		packet, decodeErr := s.decoder.DecodeByte(p[i])
		if decodeErr != nil {
			s.stats.Update(decodeErr, nil)
		} else if packet != nil {
			s.stats.Update(nil, nil)
		}
	}
	return n, err
}

// connectionManager handles connection lifecycle and reconnection
type connectionManager struct {
	mode      string
	pollDelay time.Duration
	timeout   time.Duration
	stats     *lvfv.Statistics

	mu       sync.RWMutex
	conn     Connection
	client   *link.Client
	connInfo string
	lost     bool

	p    *tea.Program
	done chan struct{}
}

func (cm *connectionManager) setConn(conn Connection, connInfo string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	wrapped := &statsConn{Connection: conn, decoder: lvfv.NewDecoder(), stats: cm.stats}
	cm.conn = conn
	cm.client = link.NewClient(wrapped, cm.mode, cm.pollDelay, cm.timeout)
	cm.connInfo = connInfo
	cm.lost = false
}

func (cm *connectionManager) getClient() *link.Client {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if cm.lost {
		return nil
	}
	return cm.client
}

// do sends one command. A lost connection starts a reconnect in the background.
func (cm *connectionManager) do(cmd lvfv.Command) (lvfv.Reply, error) {
	client := cm.getClient()
	if client == nil {
		return lvfv.Reply{}, errNotConnected
	}

	reply, err := client.Do(context.Background(), cmd)
	if errors.Is(err, link.ErrConnectionLost) {
		cm.markLost()
	}
	return reply, err
}

func (cm *connectionManager) markLost() {
	cm.mu.Lock()
	if cm.lost {
		cm.mu.Unlock()
		return
	}
	cm.lost = true
	cm.conn.Close()
	cm.mu.Unlock()

	cm.p.Send(connectionLostMsg{})
	go cm.reconnect()
}

// reconnect attempts to reconnect with exponential backoff
func (cm *connectionManager) reconnect() {
	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-cm.done:
			return
		case <-time.After(backoff):
		}

		conn, connInfo, err := OpenConnection()
		if err == nil {
			cm.setConn(conn, connInfo)
			cm.p.Send(reconnectedMsg{connInfo: connInfo})
			return
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (cm *connectionManager) close() {
	close(cm.done)
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.conn != nil {
		cm.conn.Close()
	}
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}

	cm := &connectionManager{
		mode:      cfg.Transport.Mode,
		pollDelay: cfg.Transport.PollDelay,
		timeout:   time.Duration(replyTimeout) * time.Millisecond,
		stats:     lvfv.NewStatistics(),
		done:      make(chan struct{}),
	}
	cm.setConn(conn, connInfo)

	m := initialMonitorModel(cm, connInfo)
	p := tea.NewProgram(m, tea.WithAltScreen())
	cm.p = p

	_, err = p.Run()
	cm.close()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

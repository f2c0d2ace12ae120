// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"sync"

	"go.uber.org/multierr"
)

// sessionTracker counts live WebSocket sessions so shutdown can wait for them.
// Once closeAll has run, new sessions are refused.
type sessionTracker struct {
	mu      sync.Mutex
	open    map[Connection]struct{}
	closing bool
	wg      sync.WaitGroup
}

func newSessionTracker() *sessionTracker {
	return &sessionTracker{open: make(map[Connection]struct{})}
}

// begin registers conn. It returns false, closing conn, after shutdown started.
func (t *sessionTracker) begin(conn Connection) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closing {
		conn.Close()
		return false
	}
	t.wg.Add(1)
	t.open[conn] = struct{}{}
	return true
}

// end releases a connection registered by begin
func (t *sessionTracker) end(conn Connection) {
	t.mu.Lock()
	delete(t.open, conn)
	t.mu.Unlock()
	t.wg.Done()
}

// closeAll refuses new sessions and closes the open ones
func (t *sessionTracker) closeAll() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closing = true
	var err error
	for conn := range t.open {
		err = multierr.Append(err, conn.Close())
	}
	return err
}

func (t *sessionTracker) wait() {
	t.wg.Wait()
}

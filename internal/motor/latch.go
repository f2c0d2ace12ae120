// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package motor

// Latch is the emergency latch. Once set it stays set until Clear.
type Latch struct {
	set bool
}

// Set latches the emergency
func (l *Latch) Set() {
	l.set = true
}

// IsSet reports whether the emergency is latched
func (l *Latch) IsSet() bool {
	return l.set
}

// Clear releases the latch. Only the recovery transition calls it.
func (l *Latch) Clear() {
	l.set = false
}

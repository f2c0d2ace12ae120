// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package motor

import "fmt"

// Field names one motion parameter
type Field int

const (
	FieldFrequency Field = iota
	FieldAcceleration
	FieldDeceleration
	FieldDirection
)

// AllFields lists every parameter
var AllFields = []Field{FieldFrequency, FieldAcceleration, FieldDeceleration, FieldDirection}

func (f Field) String() string {
	switch f {
	case FieldFrequency:
		return "frequency"
	case FieldAcceleration:
		return "acceleration"
	case FieldDeceleration:
		return "deceleration"
	case FieldDirection:
		return "direction"
	}
	return fmt.Sprintf("Field(%d)", int(f))
}

// Bounds is an inclusive [Min, Max] range
type Bounds struct {
	Min uint16
	Max uint16
}

// Contains reports whether v lies within the bounds
func (b Bounds) Contains(v uint16) bool {
	return v >= b.Min && v <= b.Max
}

// Limits are the accepted values for every parameter
type Limits struct {
	Frequency    Bounds
	Acceleration Bounds
	Deceleration Bounds
	Directions   [2]uint16
}

// Accepts reports whether value is valid for field
func (l Limits) Accepts(f Field, value uint16) bool {
	switch f {
	case FieldFrequency:
		return l.Frequency.Contains(value)
	case FieldAcceleration:
		return l.Acceleration.Contains(value)
	case FieldDeceleration:
		return l.Deceleration.Contains(value)
	case FieldDirection:
		return value == l.Directions[0] || value == l.Directions[1]
	}
	return false
}

// Parameters is a snapshot of the motion parameters
type Parameters struct {
	Frequency    uint16 `cbor:"1,keyasint" yaml:"frequency"`
	Acceleration uint16 `cbor:"2,keyasint" yaml:"acceleration"`
	Deceleration uint16 `cbor:"3,keyasint" yaml:"deceleration"`
	Direction    uint16 `cbor:"4,keyasint" yaml:"direction"`
}

// Get returns the value of one field
func (p Parameters) Get(f Field) uint16 {
	switch f {
	case FieldFrequency:
		return p.Frequency
	case FieldAcceleration:
		return p.Acceleration
	case FieldDeceleration:
		return p.Deceleration
	case FieldDirection:
		return p.Direction
	}
	return 0
}

func (p *Parameters) set(f Field, value uint16) {
	switch f {
	case FieldFrequency:
		p.Frequency = value
	case FieldAcceleration:
		p.Acceleration = value
	case FieldDeceleration:
		p.Deceleration = value
	case FieldDirection:
		p.Direction = value
	}
}

// ParameterStore holds validated motion parameters.
// It is owned by the state machine goroutine and not safe for concurrent use.
type ParameterStore struct {
	limits Limits
	values Parameters
}

// NewParameterStore creates a store holding defaults.
// Returns an error if any default lies outside limits.
func NewParameterStore(limits Limits, defaults Parameters) (*ParameterStore, error) {
	for _, f := range AllFields {
		if !limits.Accepts(f, defaults.Get(f)) {
			return nil, fmt.Errorf("default %s %d outside limits", f, defaults.Get(f))
		}
	}
	return &ParameterStore{limits: limits, values: defaults}, nil
}

// Get returns the stored value of field
func (s *ParameterStore) Get(f Field) uint16 {
	return s.values.Get(f)
}

// Set stores value if it is within limits. Out-of-range values leave the store
// untouched and return ResponseOutRange.
func (s *ParameterStore) Set(f Field, value uint16) Response {
	if !s.limits.Accepts(f, value) {
		return ResponseOutRange
	}
	s.values.set(f, value)
	return ResponseOK
}

// Restore loads previously saved values, skipping any that fall outside the
// current limits. Returns the fields that were rejected.
func (s *ParameterStore) Restore(saved Parameters) []Field {
	var rejected []Field
	for _, f := range AllFields {
		if s.Set(f, saved.Get(f)) != ResponseOK {
			rejected = append(rejected, f)
		}
	}
	return rejected
}

// Snapshot returns a copy of the stored values
func (s *ParameterStore) Snapshot() Parameters {
	return s.values
}

// Limits returns the configured limits
func (s *ParameterStore) Limits() Limits {
	return s.limits
}

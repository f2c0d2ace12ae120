// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package nvs persists motion parameters across restarts.
//
// The file holds a CBOR array [version, parameters] followed by a big-endian
// CRC-16-CCITT of the CBOR bytes.
package nvs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/Thermoquad/rotostat/internal/motor"
	"github.com/Thermoquad/rotostat/pkg/lvfv"
)

const recordVersion = 1

// ErrNotFound is returned by Load when nothing has been saved yet
var ErrNotFound = errors.New("no saved parameters")

type record struct {
	_          struct{} `cbor:",toarray"`
	Version    uint8
	Parameters motor.Parameters
}

// Store is a file-backed parameter store
type Store struct {
	path string
	mu   sync.Mutex
}

// Open returns a store backed by path. The directory is created on first save.
func Open(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file
func (s *Store) Path() string {
	return s.path
}

// Load reads the saved parameters
func (s *Store) Load() (motor.Parameters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return motor.Parameters{}, ErrNotFound
	}
	if err != nil {
		return motor.Parameters{}, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	if len(data) < 3 {
		return motor.Parameters{}, fmt.Errorf("%s: truncated record", s.path)
	}
	body, trailer := data[:len(data)-2], data[len(data)-2:]
	stored := uint16(trailer[0])<<8 | uint16(trailer[1])
	if calculated := lvfv.CalculateCRC(body); calculated != stored {
		return motor.Parameters{}, fmt.Errorf("%s: %w: expected 0x%04X, got 0x%04X", s.path, lvfv.ErrCRCMismatch, calculated, stored)
	}

	var rec record
	if err := cbor.Unmarshal(body, &rec); err != nil {
		return motor.Parameters{}, fmt.Errorf("failed to decode %s: %w", s.path, err)
	}
	if rec.Version != recordVersion {
		return motor.Parameters{}, fmt.Errorf("%s: unsupported record version %d", s.path, rec.Version)
	}
	return rec.Parameters, nil
}

// Save writes p, replacing the previous record atomically
func (s *Store) Save(p motor.Parameters) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	body, err := cbor.Marshal(record{Version: recordVersion, Parameters: p})
	if err != nil {
		return fmt.Errorf("failed to encode parameters: %w", err)
	}
	crc := lvfv.CalculateCRC(body)
	data := append(body, byte(crc>>8), byte(crc&0xFF))

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(s.path), err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}

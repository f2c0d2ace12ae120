// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lvfv

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Statistics tracks link packet statistics and error rates.
// It is safe for concurrent use.
type Statistics struct {
	mu sync.Mutex

	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalPackets   uint64
	ValidPackets   uint64
	CRCErrors      uint64
	DecodeErrors   uint64
	CodecErrors    uint64
	NoCommand      uint64
	UnknownCommand uint64
	DataMissing    uint64
	DataInvalid    uint64

	// Rates (calculated)
	PacketRate float64 // packets/sec
	ErrorRate  float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update records one link packet. decodeErr is the link decoder error, codecErr
// the error returned by DecodeRequest for the packet's frame.
func (s *Statistics) Update(decodeErr, codecErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.TotalPackets++
	s.LastUpdateTime = time.Now()

	if decodeErr != nil {
		if errors.Is(decodeErr, ErrCRCMismatch) {
			s.CRCErrors++
		} else {
			s.DecodeErrors++
		}
		return
	}

	var ce *CodecError
	if !errors.As(codecErr, &ce) {
		s.ValidPackets++
		return
	}

	s.CodecErrors++
	switch ce.Code {
	case RespErrNoCommand:
		s.NoCommand++
	case RespErrCmdUnknown:
		s.UnknownCommand++
	case RespErrDataMissing:
		s.DataMissing++
	case RespErrDataInvalid:
		s.DataInvalid++
	}
}

// CalculateRates calculates packet and error rates
func (s *Statistics) CalculateRates() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calculateRates()
}

func (s *Statistics) calculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.PacketRate = float64(s.TotalPackets) / elapsed
		errorCount := s.CRCErrors + s.DecodeErrors + s.CodecErrors
		s.ErrorRate = float64(errorCount) / elapsed
	}
}

// Counts returns the total and valid packet counters
func (s *Statistics) Counts() (total, valid uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.TotalPackets, s.ValidPackets
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calculateRates()

	percent := func(n uint64) float64 {
		if s.TotalPackets == 0 {
			return 0
		}
		return float64(n) * 100.0 / float64(s.TotalPackets)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Link Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Packets:   %8d\n", s.TotalPackets)
	result += fmt.Sprintf("Valid Packets:   %8d (%.1f%%)\n", s.ValidPackets, percent(s.ValidPackets))

	if s.CRCErrors > 0 {
		result += fmt.Sprintf("CRC Errors:      %8d (%.1f%%)\n", s.CRCErrors, percent(s.CRCErrors))
	}
	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d (%.1f%%)\n", s.DecodeErrors, percent(s.DecodeErrors))
	}
	if s.CodecErrors > 0 {
		result += fmt.Sprintf("Codec Errors:    %8d (%.1f%%)\n", s.CodecErrors, percent(s.CodecErrors))
		if s.NoCommand > 0 {
			result += fmt.Sprintf("  No Command:       %5d\n", s.NoCommand)
		}
		if s.UnknownCommand > 0 {
			result += fmt.Sprintf("  Unknown Command:  %5d\n", s.UnknownCommand)
		}
		if s.DataMissing > 0 {
			result += fmt.Sprintf("  Data Missing:     %5d\n", s.DataMissing)
		}
		if s.DataInvalid > 0 {
			result += fmt.Sprintf("  Data Invalid:     %5d\n", s.DataInvalid)
		}
	}

	result += fmt.Sprintf("Packet Rate:     %8.1f pkts/sec\n", s.PacketRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "=====================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.StartTime = now
	s.LastUpdateTime = now
	s.TotalPackets = 0
	s.ValidPackets = 0
	s.CRCErrors = 0
	s.DecodeErrors = 0
	s.CodecErrors = 0
	s.NoCommand = 0
	s.UnknownCommand = 0
	s.DataMissing = 0
	s.DataInvalid = 0
	s.PacketRate = 0
	s.ErrorRate = 0
}

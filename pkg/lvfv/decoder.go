// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lvfv

import (
	"errors"
	"fmt"
	"time"
)

// Decoder states
const (
	stateIdle = iota
	stateLength
	stateFrame
	stateCRC1
	stateCRC2
	stateEnd
)

var (
	// ErrCRCMismatch is wrapped by every checksum failure
	ErrCRCMismatch = errors.New("CRC mismatch")

	// ErrFraming is wrapped by every framing failure (bad length, stray END, overflow)
	ErrFraming = errors.New("framing error")
)

// maxRawSize bounds the raw capture: every stuffed byte plus START and END
const maxRawSize = 2*MaxPacketSize + 2

// Decoder implements the link packet decoder state machine
type Decoder struct {
	state      int
	buffer     []byte
	escapeNext bool
	length     int
	crc        uint16
	rawBuffer  []byte // wire bytes of the current or last packet, framing included
}

// NewDecoder creates a new link decoder
func NewDecoder() *Decoder {
	return &Decoder{
		state:     stateIdle,
		buffer:    make([]byte, 0, MaxPacketSize),
		rawBuffer: make([]byte, 0, maxRawSize),
	}
}

// Reset resets the decoder state to idle
func (d *Decoder) Reset() {
	d.restart()
	d.rawBuffer = d.rawBuffer[:0]
}

// restart returns to idle but keeps the raw bytes of the packet just ended
func (d *Decoder) restart() {
	d.state = stateIdle
	d.buffer = d.buffer[:0]
	d.escapeNext = false
	d.length = 0
	d.crc = 0
}

// fail ends the current packet with err
func (d *Decoder) fail(err error) error {
	d.restart()
	return err
}

// GetRawBytes returns the wire bytes of the packet in progress, or of the
// packet most recently completed or rejected. Bytes outside packets are not
// kept.
func (d *Decoder) GetRawBytes() []byte {
	return d.rawBuffer
}

// DecodeByte processes a single byte through the decoder state machine.
// Returns a completed packet, or nil if the packet is incomplete.
// Returns an error wrapping ErrCRCMismatch or ErrFraming if decoding fails.
func (d *Decoder) DecodeByte(b byte) (*Packet, error) {
	// Framing bytes are never escaped on the wire
	if b == StartByte {
		d.Reset()
		d.rawBuffer = append(d.rawBuffer, b)
		d.state = stateLength
		return nil, nil
	}

	if d.state == stateIdle {
		if b == EndByte {
			return nil, fmt.Errorf("%w: unexpected END byte outside a packet", ErrFraming)
		}
		// Waiting for START byte
		return nil, nil
	}

	if len(d.rawBuffer) >= maxRawSize {
		return nil, d.fail(fmt.Errorf("%w: packet longer than %d bytes", ErrFraming, maxRawSize))
	}
	d.rawBuffer = append(d.rawBuffer, b)

	switch b {
	case EndByte:
		return d.finish()
	case EscByte:
		if d.escapeNext {
			return nil, d.fail(fmt.Errorf("%w: double escape", ErrFraming))
		}
		d.escapeNext = true
		return nil, nil
	}

	if d.escapeNext {
		b ^= EscXor
		d.escapeNext = false
	}

	switch d.state {
	case stateLength:
		if int(b) > MaxFramePayload {
			return nil, d.fail(fmt.Errorf("%w: invalid length %d (max %d)", ErrFraming, b, MaxFramePayload))
		}
		d.length = int(b)
		d.buffer = append(d.buffer, b)
		if d.length == 0 {
			d.state = stateCRC1
		} else {
			d.state = stateFrame
		}
		return nil, nil

	case stateFrame:
		d.buffer = append(d.buffer, b)
		if len(d.buffer)-1 >= d.length {
			d.state = stateCRC1
		}
		return nil, nil

	case stateCRC1:
		d.crc = uint16(b) << 8
		d.state = stateCRC2
		return nil, nil

	case stateCRC2:
		d.crc |= uint16(b)
		d.state = stateEnd
		return nil, nil

	default:
		return nil, d.fail(fmt.Errorf("%w: trailing byte 0x%02X after CRC", ErrFraming, b))
	}
}

func (d *Decoder) finish() (*Packet, error) {
	if d.state != stateEnd || d.escapeNext {
		state := d.state
		return nil, d.fail(fmt.Errorf("%w: unexpected END byte in state %d", ErrFraming, state))
	}

	calculated := CalculateCRC(d.buffer)
	if calculated != d.crc {
		return nil, d.fail(fmt.Errorf("%w: expected 0x%04X, got 0x%04X", ErrCRCMismatch, calculated, d.crc))
	}

	frame := make([]byte, d.length)
	copy(frame, d.buffer[1:])
	packet := &Packet{frame: frame, crc: d.crc, timestamp: time.Now()}

	d.restart()
	return packet, nil
}

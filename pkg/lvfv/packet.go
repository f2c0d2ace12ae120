// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lvfv

import "time"

// Packet is one link packet received from a host transport
type Packet struct {
	frame     []byte
	crc       uint16
	timestamp time.Time
}

// NewPacket creates a packet around a raw frame
func NewPacket(frame []byte) *Packet {
	return &Packet{
		frame:     frame,
		crc:       CalculateCRC(linkData(frame)),
		timestamp: time.Now(),
	}
}

// Frame returns the raw frame bytes carried by the packet.
// Frames are not required to be canonical; the codec decides what they mean.
func (p *Packet) Frame() []byte {
	return p.frame
}

// CRC returns the packet's CRC value
func (p *Packet) CRC() uint16 {
	return p.crc
}

// Timestamp returns the packet's decode timestamp
func (p *Packet) Timestamp() time.Time {
	return p.timestamp
}

// linkData builds the CRC'd section: length byte followed by the frame
func linkData(frame []byte) []byte {
	data := make([]byte, 0, 1+len(frame))
	data = append(data, uint8(len(frame)))
	return append(data, frame...)
}

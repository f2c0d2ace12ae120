// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lvfv

import "fmt"

// EncodePacketFromBytes wraps a raw frame in a link packet.
// Returns the packet bytes ready for transmission, including framing and byte stuffing.
func EncodePacketFromBytes(frame []byte) ([]byte, error) {
	if len(frame) > MaxFramePayload {
		return nil, fmt.Errorf("frame too large: %d bytes (max %d)", len(frame), MaxFramePayload)
	}

	data := linkData(frame)
	crc := CalculateCRC(data)

	// CRC is appended big-endian
	data = append(data, byte(crc>>8), byte(crc&0xFF))

	stuffed := stuffBytes(data)

	packet := make([]byte, 0, len(stuffed)+2)
	packet = append(packet, StartByte)
	packet = append(packet, stuffed...)
	packet = append(packet, EndByte)

	return packet, nil
}

// EncodePacket wraps a canonical frame in a link packet
func EncodePacket(f Frame) []byte {
	data, err := EncodePacketFromBytes(f[:])
	if err != nil {
		panic(fmt.Sprintf("lvfv: encode error: %v", err))
	}
	return data
}

// EncodeCommandPacket encodes a command straight to a link packet
func EncodeCommandPacket(c Command) ([]byte, error) {
	f, err := EncodeRequest(c)
	if err != nil {
		return nil, err
	}
	return EncodePacket(f), nil
}

// EncodeReplyPacket encodes a reply straight to a link packet
func EncodeReplyPacket(r Reply) []byte {
	return EncodePacket(EncodeResponse(r))
}

// stuffBytes applies byte stuffing to escape special bytes.
// Special bytes (START, END, ESC) are replaced with ESC + (byte XOR EscXor).
func stuffBytes(data []byte) []byte {
	result := make([]byte, 0, len(data)*2)

	for _, b := range data {
		if b == StartByte || b == EndByte || b == EscByte {
			result = append(result, EscByte, b^EscXor)
		} else {
			result = append(result, b)
		}
	}

	return result
}

// UnstuffBytes removes byte stuffing from escaped data.
// This is the inverse of stuffBytes.
func UnstuffBytes(data []byte) ([]byte, error) {
	result := make([]byte, 0, len(data))
	escapeNext := false

	for _, b := range data {
		if escapeNext {
			result = append(result, b^EscXor)
			escapeNext = false
		} else if b == EscByte {
			escapeNext = true
		} else {
			result = append(result, b)
		}
	}

	if escapeNext {
		return nil, fmt.Errorf("incomplete escape sequence at end of data")
	}

	return result, nil
}

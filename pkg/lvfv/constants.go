// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package lvfv provides a Go implementation of the LVFV motor controller wire protocol.
//
// Every exchange is a fixed four byte frame carrying one request or response code,
// an optional big-endian 16-bit value and a ';' terminator. On host transports
// (serial, WebSocket) each frame travels inside a link packet with START/END
// framing, byte stuffing and a CRC-16-CCITT trailer.
package lvfv

// Frame layout
const (
	FrameSize  = 4
	Terminator = ';' // 0x3B

	// MaxValue is the largest value a frame may carry. Values are non-negative
	// 15-bit magnitudes; the top bit of the high byte must be clear.
	MaxValue = 0x7FFF
)

// Link framing bytes
const (
	StartByte = 0x7E
	EndByte   = 0x7F
	EscByte   = 0x7D
	EscXor    = 0x20
)

// Link packet size limits
const (
	MaxFramePayload = FrameSize
	MaxPacketSize   = 1 + MaxFramePayload + 2 // length + frame + CRC
)

// CRC-16-CCITT configuration
const (
	crcPolynomial = 0x1021
	crcInitial    = 0xFFFF
)

// Request codes (host -> controller)
const (
	ReqStart      Request = 10
	ReqStop       Request = 11
	ReqSetFrec    Request = 12
	ReqSetAcel    Request = 13
	ReqSetDesacel Request = 14
	ReqSetDir     Request = 15
	ReqGetFrec    Request = 16
	ReqGetAcel    Request = 17
	ReqGetDesacel Request = 18
	ReqGetDir     Request = 19
	ReqIsStop     Request = 20
	ReqEmergency  Request = 21

	// ReqResponse marks a poll for the previous result on half-duplex links.
	// It never carries a command of its own.
	ReqResponse Request = 0x50
)

// Response codes (controller -> host). RespLastValue is an exclusive upper bound.
const (
	RespOK                 Response = 0xA0
	RespErr                Response = 0xA1
	RespErrCmdUnknown      Response = 0xA2
	RespErrNoCommand       Response = 0xA3
	RespErrMoving          Response = 0xA4
	RespErrNotMoving       Response = 0xA5
	RespErrDataMissing     Response = 0xA6
	RespErrDataInvalid     Response = 0xA7
	RespErrDataOutRange    Response = 0xA8
	RespErrEmergencyActive Response = 0xA9
	RespLastValue          Response = 0xAA
)

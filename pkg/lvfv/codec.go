// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lvfv

import "fmt"

// CodecError is a framing or payload error resolved at the codec.
// Code is the response that answers the offending frame.
type CodecError struct {
	Code   Response
	Reason string
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

// Reply returns the wire reply for the error
func (e *CodecError) Reply() Reply {
	return Reply{Response: e.Code}
}

func codecErr(code Response, format string, args ...interface{}) *CodecError {
	return &CodecError{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// splitFrame locates the terminator and returns the code byte and the bytes
// between code and terminator. A terminator in the last slot always wins so a
// value whose high byte equals ';' still decodes as a full payload.
func splitFrame(frame []byte) (byte, []byte, bool) {
	if len(frame) == 0 || frame[0] == 0 {
		return 0, nil, false
	}
	if len(frame) >= FrameSize && frame[FrameSize-1] == Terminator {
		return frame[0], frame[1 : FrameSize-1], true
	}
	for i := 1; i < len(frame) && i < FrameSize; i++ {
		if frame[i] == Terminator {
			return frame[0], frame[1:i], true
		}
	}
	return 0, nil, false
}

// DecodeRequest decodes a request frame.
// Returns a *CodecError carrying NO_COMMAND, CMD_UNKNOWN, DATA_MISSING or
// DATA_INVALID when the frame cannot be turned into a command.
func DecodeRequest(frame []byte) (Command, error) {
	code, data, ok := splitFrame(frame)
	if !ok {
		return Command{}, codecErr(RespErrNoCommand, "no terminated command in % X", frame)
	}

	req := Request(code)
	if !req.Valid() {
		return Command{}, codecErr(RespErrCmdUnknown, "unknown request 0x%02X", code)
	}

	if !req.IsSetter() {
		return Command{Request: req}, nil
	}

	switch {
	case len(data) == 0:
		return Command{}, codecErr(RespErrDataMissing, "%s without value", req)
	case len(data) != 2:
		return Command{}, codecErr(RespErrDataInvalid, "%s with %d value bytes", req, len(data))
	case data[0]&0x80 != 0:
		return Command{}, codecErr(RespErrDataInvalid, "%s value 0x%02X%02X is negative", req, data[0], data[1])
	}

	value := uint16(data[0])<<8 | uint16(data[1])
	return Command{Request: req, Value: value, HasValue: true}, nil
}

// EncodeRequest encodes a command into its canonical frame.
// Values are only written for setter requests.
func EncodeRequest(c Command) (Frame, error) {
	if !c.Request.Valid() {
		return Frame{}, fmt.Errorf("unknown request 0x%02X", uint8(c.Request))
	}
	if !c.Request.IsSetter() {
		return shortFrame(uint8(c.Request)), nil
	}
	if c.Value > MaxValue {
		return Frame{}, fmt.Errorf("%s value %d exceeds %d", c.Request, c.Value, MaxValue)
	}
	return valueFrame(uint8(c.Request), c.Value), nil
}

// EncodeResponse encodes a reply into its canonical frame.
// Panics when the response code lies outside [RespOK, RespLastValue).
func EncodeResponse(r Reply) Frame {
	if !r.Response.Valid() {
		panic(fmt.Sprintf("lvfv: response code 0x%02X out of range", uint8(r.Response)))
	}
	if r.HasValue {
		return valueFrame(uint8(r.Response), r.Value)
	}
	return shortFrame(uint8(r.Response))
}

// DecodeResponse decodes a response frame on the host side.
// Frames without a terminator decode as ERR_NO_COMMAND and codes outside the
// response range as ERR_CMD_UNKNOWN.
func DecodeResponse(frame []byte) Reply {
	code, data, ok := splitFrame(frame)
	if !ok {
		return Reply{Response: RespErrNoCommand}
	}
	resp := Response(code)
	if !resp.Valid() {
		return Reply{Response: RespErrCmdUnknown}
	}
	if len(data) == 2 {
		return Reply{Response: resp, Value: uint16(data[0])<<8 | uint16(data[1]), HasValue: true}
	}
	return Reply{Response: resp}
}

func shortFrame(code uint8) Frame {
	return Frame{code, Terminator, 0, 0}
}

func valueFrame(code uint8, value uint16) Frame {
	return Frame{code, byte(value >> 8), byte(value), Terminator}
}

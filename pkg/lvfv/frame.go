// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lvfv

import "fmt"

// Request is a wire request code
type Request uint8

// Response is a wire response code
type Response uint8

// Frame is one canonical wire frame
type Frame [FrameSize]byte

// Command is a decoded request with its optional value
type Command struct {
	Request  Request
	Value    uint16
	HasValue bool
}

// Reply is a response code with its optional value
type Reply struct {
	Response Response
	Value    uint16
	HasValue bool
}

var requestNames = map[Request]string{
	ReqStart:      "START",
	ReqStop:       "STOP",
	ReqSetFrec:    "SET_FREC",
	ReqSetAcel:    "SET_ACEL",
	ReqSetDesacel: "SET_DESACEL",
	ReqSetDir:     "SET_DIR",
	ReqGetFrec:    "GET_FREC",
	ReqGetAcel:    "GET_ACEL",
	ReqGetDesacel: "GET_DESACEL",
	ReqGetDir:     "GET_DIR",
	ReqIsStop:     "IS_STOP",
	ReqEmergency:  "EMERGENCY",
	ReqResponse:   "RESPONSE",
}

var responseNames = map[Response]string{
	RespOK:                 "OK",
	RespErr:                "ERR",
	RespErrCmdUnknown:      "ERR_CMD_UNKNOWN",
	RespErrNoCommand:       "ERR_NO_COMMAND",
	RespErrMoving:          "ERR_MOVING",
	RespErrNotMoving:       "ERR_NOT_MOVING",
	RespErrDataMissing:     "ERR_DATA_MISSING",
	RespErrDataInvalid:     "ERR_DATA_INVALID",
	RespErrDataOutRange:    "ERR_DATA_OUT_RANGE",
	RespErrEmergencyActive: "ERR_EMERGENCY_ACTIVE",
}

func (r Request) String() string {
	if name, ok := requestNames[r]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(r))
}

// Valid reports whether r is a known request code
func (r Request) Valid() bool {
	_, ok := requestNames[r]
	return ok
}

// IsSetter reports whether the request requires a value
func (r Request) IsSetter() bool {
	switch r {
	case ReqSetFrec, ReqSetAcel, ReqSetDesacel, ReqSetDir:
		return true
	}
	return false
}

// IsQuery reports whether the request only reads controller state
func (r Request) IsQuery() bool {
	switch r {
	case ReqGetFrec, ReqGetAcel, ReqGetDesacel, ReqGetDir, ReqIsStop:
		return true
	}
	return false
}

// ParseRequest looks up a request by its wire name (case-sensitive, e.g. "SET_FREC")
func ParseRequest(name string) (Request, bool) {
	for r, n := range requestNames {
		if n == name {
			return r, true
		}
	}
	return 0, false
}

func (r Response) String() string {
	if name, ok := responseNames[r]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(r))
}

// Valid reports whether r lies in [RespOK, RespLastValue)
func (r Response) Valid() bool {
	return r >= RespOK && r < RespLastValue
}

func (c Command) String() string {
	if c.HasValue {
		return fmt.Sprintf("%s(%d)", c.Request, c.Value)
	}
	return c.Request.String()
}

func (r Reply) String() string {
	if r.HasValue {
		return fmt.Sprintf("%s(%d)", r.Response, r.Value)
	}
	return r.Response.String()
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lvfv

import (
	"errors"
	"strings"
	"testing"
)

// allRequests lists every request code in wire order
var allRequests = []Request{
	ReqStart, ReqStop, ReqSetFrec, ReqSetAcel, ReqSetDesacel, ReqSetDir,
	ReqGetFrec, ReqGetAcel, ReqGetDesacel, ReqGetDir, ReqIsStop, ReqEmergency,
	ReqResponse,
}

// codeOf extracts the response carried by a *CodecError, failing the test otherwise
func codeOf(t *testing.T, err error) Response {
	t.Helper()
	var ce *CodecError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CodecError, got %T (%v)", err, err)
	}
	return ce.Code
}

// ============================================================
// Request Decoding Tests
// ============================================================

func TestDecodeRequest_NoPayload(t *testing.T) {
	for _, req := range allRequests {
		if req.IsSetter() {
			continue
		}
		t.Run(req.String(), func(t *testing.T) {
			cmd, err := DecodeRequest([]byte{byte(req), Terminator, 0, 0})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cmd.Request != req || cmd.HasValue {
				t.Errorf("expected bare %s, got %s", req, cmd)
			}
		})
	}
}

func TestDecodeRequest_WithPayload(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
		req   Request
		value uint16
	}{
		{"SET_FREC 50", []byte{12, 0x00, 0x32, ';'}, ReqSetFrec, 50},
		{"SET_ACEL 5", []byte{13, 0x00, 0x05, ';'}, ReqSetAcel, 5},
		{"SET_DESACEL 3", []byte{14, 0x00, 0x03, ';'}, ReqSetDesacel, 3},
		{"SET_DIR 0", []byte{15, 0x00, 0x00, ';'}, ReqSetDir, 0},
		{"max value", []byte{12, 0x7F, 0xFF, ';'}, ReqSetFrec, MaxValue},
		{"high byte is terminator", []byte{12, ';', 0x01, ';'}, ReqSetFrec, 0x3B01},
		{"low byte is terminator", []byte{12, 0x00, ';', ';'}, ReqSetFrec, 0x3B},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := DecodeRequest(tt.frame)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cmd.Request != tt.req || !cmd.HasValue || cmd.Value != tt.value {
				t.Errorf("expected %s(%d), got %s", tt.req, tt.value, cmd)
			}
		})
	}
}

func TestDecodeRequest_QueryIgnoresPayload(t *testing.T) {
	cmd, err := DecodeRequest([]byte{byte(ReqGetFrec), 0x12, 0x34, ';'})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.HasValue {
		t.Errorf("query should not carry a value, got %s", cmd)
	}
}

func TestDecodeRequest_Errors(t *testing.T) {
	tests := []struct {
		name     string
		frame    []byte
		expected Response
	}{
		{"empty frame", []byte{}, RespErrNoCommand},
		{"nil frame", nil, RespErrNoCommand},
		{"zero code", []byte{0, ';', 0, 0}, RespErrNoCommand},
		{"no terminator", []byte{byte(ReqStart), 0, 0, 0}, RespErrNoCommand},
		{"code only", []byte{byte(ReqStart)}, RespErrNoCommand},
		{"unknown code", []byte{0x42, ';', 0, 0}, RespErrCmdUnknown},
		{"response code as request", []byte{byte(RespOK), ';', 0, 0}, RespErrCmdUnknown},
		{"setter without value", []byte{byte(ReqSetFrec), ';', 0, 0}, RespErrDataMissing},
		{"setter with one byte", []byte{byte(ReqSetAcel), 0x05, ';', 0}, RespErrDataInvalid},
		{"setter negative value", []byte{byte(ReqSetFrec), 0x80, 0x01, ';'}, RespErrDataInvalid},
		{"setter all ones", []byte{byte(ReqSetDesacel), 0xFF, 0xFF, ';'}, RespErrDataInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRequest(tt.frame)
			if err == nil {
				t.Fatalf("expected %s, got no error", tt.expected)
			}
			if got := codeOf(t, err); got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestDecodeRequest_UnknownBytesAlwaysCmdUnknown(t *testing.T) {
	for code := 1; code < 256; code++ {
		if Request(code).Valid() {
			continue
		}
		_, err := DecodeRequest([]byte{byte(code), ';', 0, 0})
		if err == nil {
			t.Fatalf("code 0x%02X: expected error", code)
		}
		if got := codeOf(t, err); got != RespErrCmdUnknown {
			t.Errorf("code 0x%02X: expected ERR_CMD_UNKNOWN, got %s", code, got)
		}
	}
}

// ============================================================
// Request Encoding Tests
// ============================================================

func TestEncodeRequest_RoundTrip(t *testing.T) {
	for _, req := range allRequests {
		values := []uint16{0}
		if req.IsSetter() {
			values = []uint16{0, 1, 50, 150, 0x3B, 0x3B3B, MaxValue}
		}
		for _, v := range values {
			cmd := Command{Request: req, Value: v, HasValue: req.IsSetter()}
			frame, err := EncodeRequest(cmd)
			if err != nil {
				t.Fatalf("%s: encode failed: %v", cmd, err)
			}
			decoded, err := DecodeRequest(frame[:])
			if err != nil {
				t.Fatalf("%s: decode failed: %v", cmd, err)
			}
			if decoded != cmd {
				t.Errorf("round trip mismatch: %s -> % X -> %s", cmd, frame, decoded)
			}
			again, _ := EncodeRequest(decoded)
			if again != frame {
				t.Errorf("frame mismatch: % X != % X", again, frame)
			}
		}
	}
}

func TestEncodeRequest_Errors(t *testing.T) {
	if _, err := EncodeRequest(Command{Request: 0x42}); err == nil {
		t.Error("expected error for unknown request")
	}
	if _, err := EncodeRequest(SetFrequencyCommand(MaxValue + 1)); err == nil {
		t.Error("expected error for value above MaxValue")
	}
}

// ============================================================
// Response Tests
// ============================================================

func TestEncodeResponse_Layout(t *testing.T) {
	got := EncodeResponse(Reply{Response: RespOK})
	if got != (Frame{0xA0, ';', 0, 0}) {
		t.Errorf("short reply: got % X", got)
	}

	got = EncodeResponse(Reply{Response: RespOK, Value: 150, HasValue: true})
	if got != (Frame{0xA0, 0x00, 0x96, ';'}) {
		t.Errorf("value reply: got % X", got)
	}
}

func TestEncodeResponse_PanicsOutOfRange(t *testing.T) {
	for _, code := range []Response{0x00, 0x9F, RespLastValue, 0xFF} {
		t.Run(code.String(), func(t *testing.T) {
			defer func() {
				r := recover()
				if r == nil {
					t.Fatal("expected panic")
				}
				if !strings.Contains(r.(string), "out of range") {
					t.Errorf("unexpected panic message: %v", r)
				}
			}()
			EncodeResponse(Reply{Response: code})
		})
	}
}

func TestDecodeResponse_RoundTrip(t *testing.T) {
	for code := RespOK; code < RespLastValue; code++ {
		for _, reply := range []Reply{
			{Response: code},
			{Response: code, Value: 0x3B3B, HasValue: true},
			{Response: code, Value: 1, HasValue: true},
		} {
			frame := EncodeResponse(reply)
			if got := DecodeResponse(frame[:]); got != reply {
				t.Errorf("round trip mismatch: %s -> % X -> %s", reply, frame, got)
			}
		}
	}
}

func TestDecodeResponse_Unknown(t *testing.T) {
	tests := []struct {
		name     string
		frame    []byte
		expected Response
	}{
		{"below range", []byte{0x9F, ';', 0, 0}, RespErrCmdUnknown},
		{"last value", []byte{byte(RespLastValue), ';', 0, 0}, RespErrCmdUnknown},
		{"request code", []byte{byte(ReqStart), ';', 0, 0}, RespErrCmdUnknown},
		{"no terminator", []byte{byte(RespOK), 0, 0, 0}, RespErrNoCommand},
		{"empty", nil, RespErrNoCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodeResponse(tt.frame); got.Response != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

// ============================================================
// Name Tests
// ============================================================

func TestParseRequest(t *testing.T) {
	for _, req := range allRequests {
		got, ok := ParseRequest(req.String())
		if !ok || got != req {
			t.Errorf("ParseRequest(%q) = %v, %v", req.String(), got, ok)
		}
	}
	if _, ok := ParseRequest("JUMP"); ok {
		t.Error("expected unknown name to fail")
	}
}

func TestUnknownCodeNames(t *testing.T) {
	if got := Request(0x42).String(); got != "UNKNOWN(0x42)" {
		t.Errorf("unexpected request name %q", got)
	}
	if got := Response(0x10).String(); got != "UNKNOWN(0x10)" {
		t.Errorf("unexpected response name %q", got)
	}
}

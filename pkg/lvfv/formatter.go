// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lvfv

import (
	"fmt"
	"strings"
)

// Direction values as reported by GET_DIR with the default configuration
const (
	directionCounterClockwise = 0
	directionClockwise        = 1
)

// FormatRequestFrame renders a request frame for logs
func FormatRequestFrame(frame []byte) string {
	cmd, err := DecodeRequest(frame)
	if err != nil {
		return fmt.Sprintf("[% X] invalid request: %v", frame, err)
	}
	return fmt.Sprintf("[% X] %s", frame, describeCommand(cmd))
}

// FormatResponseFrame renders a response frame for logs
func FormatResponseFrame(frame []byte) string {
	return fmt.Sprintf("[% X] %s", frame, DecodeResponse(frame))
}

// FormatPacket renders a link packet, guessing the direction from the code byte
func FormatPacket(p *Packet) string {
	frame := p.Frame()
	ts := p.Timestamp().Format("15:04:05.000")

	var body string
	if len(frame) > 0 && Response(frame[0]).Valid() {
		body = "RESP " + FormatResponseFrame(frame)
	} else {
		body = "REQ  " + FormatRequestFrame(frame)
	}
	return fmt.Sprintf("[%s] %s (CRC 0x%04X)\n", ts, body, p.CRC())
}

// FormatQueryValue renders the value of a query reply with its unit
func FormatQueryValue(req Request, value uint16) string {
	switch req {
	case ReqGetFrec:
		return fmt.Sprintf("%d Hz", value)
	case ReqGetAcel, ReqGetDesacel:
		return fmt.Sprintf("%d Hz/s", value)
	case ReqGetDir:
		switch value {
		case directionClockwise:
			return fmt.Sprintf("%d (clockwise)", value)
		case directionCounterClockwise:
			return fmt.Sprintf("%d (counter-clockwise)", value)
		}
		return fmt.Sprintf("%d", value)
	case ReqIsStop:
		if value != 0 {
			return "stopped"
		}
		return "moving"
	}
	return fmt.Sprintf("%d", value)
}

func describeCommand(c Command) string {
	var sb strings.Builder
	sb.WriteString(c.Request.String())
	if c.HasValue {
		switch c.Request {
		case ReqSetFrec:
			fmt.Fprintf(&sb, " frequency=%d Hz", c.Value)
		case ReqSetAcel:
			fmt.Fprintf(&sb, " acceleration=%d Hz/s", c.Value)
		case ReqSetDesacel:
			fmt.Fprintf(&sb, " deceleration=%d Hz/s", c.Value)
		case ReqSetDir:
			fmt.Fprintf(&sb, " direction=%d", c.Value)
		}
	}
	return sb.String()
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package link carries protocol frames over byte-stream transports: the
// controller-side Session and the host-side Client.
package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/Thermoquad/rotostat/internal/config"
	"github.com/Thermoquad/rotostat/pkg/lvfv"
)

// Dispatcher resolves decoded commands. Implemented by *dispatch.Dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd lvfv.Command) lvfv.Reply
}

// Session serves one host connection on the controller side.
//
// In duplex mode every packet is answered with its reply. In poll mode command
// packets are answered with nothing and the reply is held until the host sends
// a RESPONSE request.
type Session struct {
	conn       io.ReadWriter
	dispatcher Dispatcher
	mode       string
	stats      *lvfv.Statistics
	name       string

	lastReply lvfv.Reply
}

// NewSession creates a session. stats may be shared between sessions.
func NewSession(name string, conn io.ReadWriter, d Dispatcher, mode string, stats *lvfv.Statistics) *Session {
	if stats == nil {
		stats = lvfv.NewStatistics()
	}
	return &Session{
		conn:       conn,
		dispatcher: d,
		mode:       mode,
		stats:      stats,
		name:       name,
		lastReply:  lvfv.Reply{Response: lvfv.RespOK},
	}
}

// Serve reads packets until the connection fails or ctx is cancelled.
// Returns nil when the peer closed the connection.
func (s *Session) Serve(ctx context.Context) error {
	decoder := lvfv.NewDecoder()
	buf := make([]byte, 64)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := s.conn.Read(buf)
		for i := 0; i < n; i++ {
			packet, decodeErr := decoder.DecodeByte(buf[i])
			if decodeErr != nil {
				s.stats.Update(decodeErr, nil)
				log.Printf("[%s] Link error: %v", s.name, decodeErr)
				if errors.Is(decodeErr, lvfv.ErrCRCMismatch) {
					if err := s.respond(lvfv.Reply{Response: lvfv.RespErrNoCommand}); err != nil {
						return err
					}
				}
				continue
			}
			if packet == nil {
				continue
			}
			reply, send := s.HandleFrame(ctx, packet.Frame())
			if !send {
				continue
			}
			if err := s.write(reply); err != nil {
				return err
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read failed: %w", err)
		}
	}
}

// HandleFrame decodes and resolves one frame. Returns the reply and whether it
// should be sent now.
func (s *Session) HandleFrame(ctx context.Context, frame []byte) (lvfv.Reply, bool) {
	cmd, err := lvfv.DecodeRequest(frame)
	s.stats.Update(nil, err)

	var reply lvfv.Reply
	switch {
	case err != nil:
		var ce *lvfv.CodecError
		if !errors.As(err, &ce) {
			reply = lvfv.Reply{Response: lvfv.RespErr}
		} else {
			reply = ce.Reply()
		}
		log.Printf("[%s] Rejected frame: %v", s.name, err)

	case cmd.Request == lvfv.ReqResponse:
		return s.lastReply, true

	default:
		reply = s.dispatcher.Dispatch(ctx, cmd)
		if reply.Response != lvfv.RespOK {
			log.Printf("[%s] %s -> %s", s.name, cmd, reply)
		}
	}

	s.lastReply = reply
	return reply, s.mode != config.ModePoll
}

// respond answers a broken packet the same way HandleFrame answers a frame
func (s *Session) respond(reply lvfv.Reply) error {
	s.lastReply = reply
	if s.mode == config.ModePoll {
		return nil
	}
	return s.write(reply)
}

func (s *Session) write(reply lvfv.Reply) error {
	if _, err := s.conn.Write(lvfv.EncodeReplyPacket(reply)); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}

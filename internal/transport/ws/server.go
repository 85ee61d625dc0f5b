// Package ws accepts long-lived gateway connections that stream agent
// interactions and heartbeats into the office.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"clawoffice.ai/internal/protocol"
	"clawoffice.ai/internal/sim/dispatch"
	"clawoffice.ai/internal/sim/office"
)

// Office is the part of the office loop a gateway session talks to.
type Office interface {
	Interact(ctx context.Context, ev dispatch.Interaction) (dispatch.Request, error)
	Heartbeat(ctx context.Context, beats map[string]time.Time) error
	People() []string
}

type Server struct {
	office Office
	log    *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(o Office, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		office: o,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sid, gateway := s.handshake(conn)
		if sid == "" {
			return
		}
		s.log.Printf("gateway %s connected as %s", gateway, sid)
		defer s.log.Printf("gateway %s (%s) disconnected", gateway, sid)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Reader loop. Replies are written from here, so there is a single writer.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.ProtocolVersion != protocol.Version {
				continue
			}
			switch base.Type {
			case protocol.TypeInteraction:
				var m protocol.InteractionMsg
				if err := json.Unmarshal(msg, &m); err != nil {
					continue
				}
				ack := s.interact(ctx, m)
				if m.Ref == "" {
					continue
				}
				if err := writeJSON(conn, ack); err != nil {
					return
				}
			case protocol.TypeHeartbeat:
				var m protocol.HeartbeatMsg
				if err := json.Unmarshal(msg, &m); err != nil {
					continue
				}
				if err := s.office.Heartbeat(ctx, beatsFromMillis(m.Beats)); err != nil {
					s.log.Printf("%s heartbeat: %v", sid, err)
				}
			}
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) (sid, gateway string) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", ""
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", ""
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", ""
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", ""
	}
	if hello.Gateway == "" {
		hello.Gateway = "gateway"
	}

	sid = fmt.Sprintf("G%d", s.nextID.Add(1))
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sid,
		Agents:          s.office.People(),
	}
	if err := writeJSON(conn, welcome); err != nil {
		return "", ""
	}
	return sid, hello.Gateway
}

func (s *Server) interact(ctx context.Context, m protocol.InteractionMsg) protocol.AckMsg {
	ack := protocol.AckMsg{Type: protocol.TypeAck, ProtocolVersion: protocol.Version, Ref: m.Ref}
	ev := dispatch.Interaction{
		From:     m.From,
		To:       m.To,
		Type:     m.Kind,
		Content:  m.Content,
		Priority: m.Priority,
	}
	if m.Timestamp > 0 {
		ev.Timestamp = time.UnixMilli(m.Timestamp).UTC()
	}
	req, err := s.office.Interact(ctx, ev)
	if err != nil {
		ack.Code = errorCode(err)
		ack.Message = err.Error()
		return ack
	}
	ack.RequestID = req.ID
	return ack
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, dispatch.ErrQueueFull):
		return protocol.ErrQueueFull
	case errors.Is(err, office.ErrStopped), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return protocol.ErrBusy
	}
	return protocol.ErrBadRequest
}

func beatsFromMillis(in map[string]int64) map[string]time.Time {
	out := make(map[string]time.Time, len(in))
	for name, ms := range in {
		if ms <= 0 {
			continue
		}
		out[name] = time.UnixMilli(ms).UTC()
	}
	return out
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"clawoffice.ai/internal/protocol"
	"clawoffice.ai/internal/sim/office"
)

type Server struct {
	office *office.Office
	log    *log.Logger

	// AllowRemote lifts the loopback-only restriction.
	AllowRemote bool

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(o *office.Office, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		office: o,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(Bootstrap(s.office))
	}
}

// Bootstrap describes the static office a renderer needs before frames.
func Bootstrap(o *office.Office) protocol.BootstrapResponse {
	l := o.Layout()
	resp := protocol.BootstrapResponse{
		ProtocolVersion: protocol.Version,
		Tick:            o.CurrentTick(),
		Floor:           protocol.FloorInfo{MinX: l.Floor.MinX, MaxX: l.Floor.MaxX, MinZ: l.Floor.MinZ, MaxZ: l.Floor.MaxZ},
		Door:            protocol.DoorInfo{Name: l.Door.Name, X: l.Door.X, Z: l.Door.Z},
		Meeting:         protocol.MeetingInfo{X: l.Meeting.CenterX, Z: l.Meeting.CenterZ, Seats: l.Meeting.Seats},
	}
	if iv := o.FrameInterval(); iv > 0 {
		resp.FrameHz = int(time.Second / iv)
	}
	addDesk := func(m string, role, dept string) {
		d, ok := l.Desk(m)
		if !ok {
			return
		}
		resp.Desks = append(resp.Desks, protocol.DeskInfo{Name: m, Role: role, Department: dept, X: d.X, Z: d.Z, Rotation: d.Rotation})
	}
	addDesk(l.Orchestrator.Name, l.Orchestrator.Role, "")
	for _, dept := range l.Departments {
		addDesk(dept.Head.Name, dept.Head.Role, dept.Name)
		for _, a := range dept.Agents {
			addDesk(a.Name, a.Role, dept.Name)
		}
	}
	if cat := o.Catalog(); cat != nil {
		resp.Catalog = protocol.CatalogDigest{Digest: cat.Digest(), Routes: cat.Len()}
	}
	return resp
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub protocol.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad subscribe"), time.Now().Add(time.Second))
			return
		}
		if sub.Type != protocol.TypeSubscribe || sub.ProtocolVersion != protocol.Version {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		out := make(chan []byte, 1)

		joinReq := office.ObserverJoinRequest{
			SessionID: sid,
			Out:       out,
			Agents:    sub.Agents,
		}
		select {
		case s.office.ObserverJoin() <- joinReq:
		default:
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server busy"), time.Now().Add(time.Second))
			return
		}
		defer func() {
			select {
			case s.office.ObserverLeave() <- sid:
			default:
				// Office loop is stopping; nothing else to do.
			}
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b, ok := <-out:
					if !ok {
						writeErr <- nil
						_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "office stopped"), time.Now().Add(time.Second))
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: a later SUBSCRIBE replaces the filter.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var sub protocol.SubscribeMsg
			if err := json.Unmarshal(msg, &sub); err != nil {
				continue
			}
			if sub.Type != protocol.TypeSubscribe || sub.ProtocolVersion != protocol.Version {
				continue
			}
			select {
			case s.office.ObserverJoin() <- office.ObserverJoinRequest{SessionID: sid, Out: out, Agents: sub.Agents}:
			default:
				// Drop updates under load; the client may resend.
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (s *Server) allowed(r *http.Request) bool {
	return s.AllowRemote || isLoopbackRemote(r.RemoteAddr)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clawoffice.ai/internal/protocol"
	"clawoffice.ai/internal/sim/dispatch"
)

type fakeOffice struct {
	mu     sync.Mutex
	events []dispatch.Interaction
	beats  []map[string]time.Time
	full   bool
}

func (f *fakeOffice) Interact(_ context.Context, ev dispatch.Interaction) (dispatch.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return dispatch.Request{}, dispatch.ErrQueueFull
	}
	f.events = append(f.events, ev)
	return dispatch.Request{ID: "req-1", From: ev.From, To: ev.To}, nil
}

func (f *fakeOffice) Heartbeat(_ context.Context, beats map[string]time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beats = append(f.beats, beats)
	return nil
}

func (f *fakeOffice) People() []string { return []string{"CEO", "pm-agent"} }

func (f *fakeOffice) beatCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.beats)
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, b))
}

func readAs[T any](t *testing.T, conn *websocket.Conn) T {
	t.Helper()
	var v T
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(msg, &v))
	return v
}

func TestGatewaySession(t *testing.T) {
	fo := &fakeOffice{}
	srv := httptest.NewServer(NewServer(fo, nil).Handler())
	defer srv.Close()
	conn := dial(t, srv)

	send(t, conn, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, Gateway: "openclaw"})
	w := readAs[protocol.WelcomeMsg](t, conn)
	assert.Equal(t, protocol.TypeWelcome, w.Type)
	assert.Equal(t, "G1", w.SessionID)
	assert.Equal(t, []string{"CEO", "pm-agent"}, w.Agents)

	send(t, conn, protocol.InteractionMsg{
		Type: protocol.TypeInteraction, ProtocolVersion: protocol.Version,
		Ref: "a1", From: "orchestrator", To: "tech", Kind: "delegation", Timestamp: 1767225600000,
	})
	ack := readAs[protocol.AckMsg](t, conn)
	assert.Equal(t, "a1", ack.Ref)
	assert.Equal(t, "req-1", ack.RequestID)
	assert.Empty(t, ack.Code)

	send(t, conn, protocol.HeartbeatMsg{
		Type: protocol.TypeHeartbeat, ProtocolVersion: protocol.Version,
		Beats: map[string]int64{"pm-agent": 1767225600000, "ghost": 0},
	})
	require.Eventually(t, func() bool { return fo.beatCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	fo.mu.Lock()
	defer fo.mu.Unlock()
	require.Len(t, fo.events, 1)
	assert.Equal(t, "tech", fo.events[0].To)
	assert.Equal(t, time.UnixMilli(1767225600000).UTC(), fo.events[0].Timestamp)
	assert.Len(t, fo.beats[0], 1)
}

func TestGatewayQueueFullAck(t *testing.T) {
	fo := &fakeOffice{full: true}
	srv := httptest.NewServer(NewServer(fo, nil).Handler())
	defer srv.Close()
	conn := dial(t, srv)

	send(t, conn, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version})
	_ = readAs[protocol.WelcomeMsg](t, conn)
	send(t, conn, protocol.InteractionMsg{Type: protocol.TypeInteraction, ProtocolVersion: protocol.Version, Ref: "x", From: "CEO", To: "pm-agent"})
	ack := readAs[protocol.AckMsg](t, conn)
	assert.Equal(t, protocol.ErrQueueFull, ack.Code)
	assert.Empty(t, ack.RequestID)
}

func TestGatewayRejectsMissingHello(t *testing.T) {
	srv := httptest.NewServer(NewServer(&fakeOffice{}, nil).Handler())
	defer srv.Close()
	conn := dial(t, srv)

	send(t, conn, protocol.HeartbeatMsg{Type: protocol.TypeHeartbeat, ProtocolVersion: protocol.Version})
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, websocket.ClosePolicyViolation, ce.Code)
}

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"clawoffice.ai/internal/protocol"
)

var kinds = []string{"delegation", "response"}

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/gateway", "gateway ws url")
		name     = flag.String("name", "bot", "gateway name")
		interval = flag.Duration("every", 4*time.Second, "interval between synthetic interactions")
		seed     = flag.Int64("seed", 0, "random seed (0 = time based)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		Gateway:         *name,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	_, msg, err := conn.ReadMessage()
	if err != nil {
		logger.Fatalf("read WELCOME: %v", err)
	}
	var w protocol.WelcomeMsg
	if err := json.Unmarshal(msg, &w); err != nil || w.Type != protocol.TypeWelcome {
		logger.Fatalf("expected WELCOME, got %s", string(msg))
	}
	logger.Printf("WELCOME session=%s agents=%d", w.SessionID, len(w.Agents))
	if len(w.Agents) < 2 {
		logger.Fatalf("need at least two agents, got %d", len(w.Agents))
	}

	go func() {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var ack protocol.AckMsg
			if err := json.Unmarshal(msg, &ack); err != nil || ack.Type != protocol.TypeAck {
				continue
			}
			if ack.Code != "" {
				logger.Printf("ACK %s rejected: %s %s", ack.Ref, ack.Code, ack.Message)
			} else {
				logger.Printf("ACK %s request=%s", ack.Ref, ack.RequestID)
			}
		}
	}()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	r := rand.New(rand.NewSource(*seed))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	t := time.NewTicker(*interval)
	defer t.Stop()

	for n := 1; ; n++ {
		select {
		case <-stop:
			return
		case <-t.C:
		}
		if err := conn.WriteJSON(heartbeat(w.Agents)); err != nil {
			logger.Printf("send HEARTBEAT: %v", err)
			return
		}
		if err := conn.WriteJSON(interaction(r, w.Agents, n)); err != nil {
			logger.Printf("send INTERACTION: %v", err)
			return
		}
	}
}

func heartbeat(agents []string) protocol.HeartbeatMsg {
	now := time.Now().UnixMilli()
	beats := make(map[string]int64, len(agents))
	for _, a := range agents {
		beats[a] = now
	}
	return protocol.HeartbeatMsg{Type: protocol.TypeHeartbeat, ProtocolVersion: protocol.Version, Beats: beats}
}

func interaction(r *rand.Rand, agents []string, n int) protocol.InteractionMsg {
	from := agents[r.Intn(len(agents))]
	to := agents[r.Intn(len(agents))]
	for to == from {
		to = agents[r.Intn(len(agents))]
	}
	kind := kinds[r.Intn(len(kinds))]
	return protocol.InteractionMsg{
		Type:            protocol.TypeInteraction,
		ProtocolVersion: protocol.Version,
		Ref:             fmt.Sprintf("B%d", n),
		From:            from,
		To:              to,
		Kind:            kind,
		Content:         fmt.Sprintf("%s #%d", kind, n),
		Timestamp:       time.Now().UnixMilli(),
	}
}

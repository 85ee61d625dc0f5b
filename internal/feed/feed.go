// Package feed connects the office to Kafka: interactions and heartbeats in,
// movement and presence events out.
package feed

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"clawoffice.ai/internal/sim/dispatch"
)

const (
	TopicInteractions = "office.interactions"
	TopicHeartbeats   = "office.heartbeats"
	TopicMovements    = "office.movements"
	TopicPresence     = "office.presence"
)

type Config struct {
	Brokers []string
	GroupID string

	InteractionsTopic string
	HeartbeatsTopic   string
	MovementsTopic    string
	PresenceTopic     string

	MaxWait time.Duration
}

// ParseBrokers splits a comma separated broker list.
func ParseBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func (c Config) withDefaults() Config {
	if c.GroupID == "" {
		c.GroupID = "clawoffice"
	}
	if c.InteractionsTopic == "" {
		c.InteractionsTopic = TopicInteractions
	}
	if c.HeartbeatsTopic == "" {
		c.HeartbeatsTopic = TopicHeartbeats
	}
	if c.MovementsTopic == "" {
		c.MovementsTopic = TopicMovements
	}
	if c.PresenceTopic == "" {
		c.PresenceTopic = TopicPresence
	}
	if c.MaxWait <= 0 {
		c.MaxWait = time.Second
	}
	return c
}

// interactionWire is the interaction payload on the wire. Timestamp is unix
// milliseconds.
type interactionWire struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Type      string `json:"type"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
	Priority  string `json:"priority"`
}

func decodeInteraction(b []byte) (dispatch.Interaction, error) {
	var w interactionWire
	if err := json.Unmarshal(b, &w); err != nil {
		return dispatch.Interaction{}, err
	}
	if w.From == "" || w.To == "" {
		return dispatch.Interaction{}, fmt.Errorf("interaction needs from and to")
	}
	ev := dispatch.Interaction{
		From:     w.From,
		To:       w.To,
		Type:     w.Type,
		Content:  w.Content,
		Priority: w.Priority,
	}
	if w.Timestamp > 0 {
		ev.Timestamp = time.UnixMilli(w.Timestamp).UTC()
	}
	return ev, nil
}

// decodeHeartbeats reads {agent: unixMillis}. Non-positive entries are skipped.
func decodeHeartbeats(b []byte) (map[string]time.Time, error) {
	var in map[string]int64
	if err := json.Unmarshal(b, &in); err != nil {
		return nil, err
	}
	out := make(map[string]time.Time, len(in))
	for name, ms := range in {
		if ms > 0 {
			out[name] = time.UnixMilli(ms).UTC()
		}
	}
	return out, nil
}

package protocol

// HELLO (gateway -> server). First message on the gateway connection.
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Gateway         string `json:"gateway"`
}

// WELCOME (server -> gateway).
type WelcomeMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	SessionID       string   `json:"session_id"`
	Agents          []string `json:"agents"`
}

// INTERACTION (gateway -> server). Timestamp is unix milliseconds; zero
// means "now".
type InteractionMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Ref             string `json:"ref,omitempty"`
	From            string `json:"from"`
	To              string `json:"to"`
	Kind            string `json:"kind,omitempty"`
	Content         string `json:"content,omitempty"`
	Timestamp       int64  `json:"timestamp,omitempty"`
	Priority        string `json:"priority,omitempty"`
}

// HEARTBEAT (gateway -> server). Beats maps agent name to its last activity
// in unix milliseconds.
type HeartbeatMsg struct {
	Type            string           `json:"type"`
	ProtocolVersion string           `json:"protocol_version"`
	Beats           map[string]int64 `json:"beats"`
}

// ACK (server -> gateway) answers an INTERACTION carrying a Ref.
type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Ref             string `json:"ref"`
	RequestID       string `json:"request_id,omitempty"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
}

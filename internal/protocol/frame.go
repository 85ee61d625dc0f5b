package protocol

// SUBSCRIBE (client -> server). First message on the observer connection.
// Agents narrows the frame to the listed agents; empty means everyone.
type SubscribeMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Agents          []string `json:"agents,omitempty"`
}

// FRAME (server -> client), one per office tick.
type FrameMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Tick            uint64       `json:"tick"`
	Agents          []AgentPose  `json:"agents"`
	Door            DoorState    `json:"door"`
	Queue           QueueSummary `json:"queue"`
}

type AgentPose struct {
	Name     string  `json:"name"`
	X        float64 `json:"x"`
	Z        float64 `json:"z"`
	Yaw      float64 `json:"yaw"`
	Phase    string  `json:"phase"`
	Clip     string  `json:"clip,omitempty"`
	Visible  bool    `json:"visible"`
	Attached bool    `json:"attached"`
}

type DoorState struct {
	Angle float64 `json:"angle"`
}

type QueueSummary struct {
	IsProcessing bool `json:"is_processing"`
	QueueLength  int  `json:"queue_length"`
	// Current is the id of the request being animated.
	Current *string `json:"current"`
}

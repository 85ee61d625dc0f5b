package protocol

// BootstrapResponse is served once to renderers before they subscribe.
type BootstrapResponse struct {
	ProtocolVersion string        `json:"protocol_version"`
	Tick            uint64        `json:"tick"`
	FrameHz         int           `json:"frame_hz"`
	Floor           FloorInfo     `json:"floor"`
	Door            DoorInfo      `json:"door"`
	Meeting         MeetingInfo   `json:"meeting"`
	Desks           []DeskInfo    `json:"desks"`
	Catalog         CatalogDigest `json:"catalog"`
}

type FloorInfo struct {
	MinX float64 `json:"min_x"`
	MaxX float64 `json:"max_x"`
	MinZ float64 `json:"min_z"`
	MaxZ float64 `json:"max_z"`
}

type DoorInfo struct {
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Z    float64 `json:"z"`
}

type MeetingInfo struct {
	X     float64 `json:"x"`
	Z     float64 `json:"z"`
	Seats int     `json:"seats"`
}

type DeskInfo struct {
	Name       string  `json:"name"`
	Role       string  `json:"role,omitempty"`
	Department string  `json:"department,omitempty"`
	X          float64 `json:"x"`
	Z          float64 `json:"z"`
	Rotation   float64 `json:"rotation"`
}

type CatalogDigest struct {
	Digest string `json:"digest"`
	Routes int    `json:"routes"`
}

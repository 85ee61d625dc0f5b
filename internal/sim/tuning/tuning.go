package tuning

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Tuning holds the pacing constants of the office loop. Durations are in
// milliseconds in the file.
type Tuning struct {
	FrameRateHz int `yaml:"frame_rate_hz"`

	Walk     Walk     `yaml:"walk"`
	Clips    Clips    `yaml:"clips"`
	Dispatch Dispatch `yaml:"dispatch"`
	Presence Presence `yaml:"presence"`
}

type Walk struct {
	SpeedMPS      float64 `yaml:"speed_mps"`
	TurnMs        int     `yaml:"turn_ms"`
	DoorSwingMs   int     `yaml:"door_swing_ms"`
	DoorPassMs    int     `yaml:"door_pass_ms"`
	DoorOpenAngle float64 `yaml:"door_open_angle"`
}

// Clips lists the one-shot clip durations. A zero duration marks the clip as
// missing from the agent model.
type Clips struct {
	StandUpMs int `yaml:"stand_up_ms"`
	SitDownMs int `yaml:"sit_down_ms"`
	TalkMs    int `yaml:"talk_ms"`
	// Walk only gates the loop clip; position still moves without it.
	HasWalk bool `yaml:"has_walk"`
}

type Dispatch struct {
	InterDepartureMs int `yaml:"inter_departure_ms"`
	SpawnSettleMs    int `yaml:"spawn_settle_ms"`
	MaxQueue         int `yaml:"max_queue"`
}

type Presence struct {
	ThresholdSec     int `yaml:"threshold_sec"`
	SweepIntervalSec int `yaml:"sweep_interval_sec"`
}

func Defaults() Tuning {
	return Tuning{
		FrameRateHz: 30,
		Walk: Walk{
			SpeedMPS:      1.5,
			TurnMs:        500,
			DoorSwingMs:   500,
			DoorPassMs:    500,
			DoorOpenAngle: 1.5707963267948966,
		},
		Clips: Clips{
			StandUpMs: 1200,
			SitDownMs: 1200,
			TalkMs:    3000,
			HasWalk:   true,
		},
		Dispatch: Dispatch{
			InterDepartureMs: 1000,
			SpawnSettleMs:    500,
			MaxQueue:         1024,
		},
		Presence: Presence{
			ThresholdSec:     300,
			SweepIntervalSec: 30,
		},
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if t.FrameRateHz <= 0 {
		return t, fmt.Errorf("tuning.yaml: frame_rate_hz must be > 0")
	}
	if t.Walk.SpeedMPS <= 0 {
		return t, fmt.Errorf("tuning.yaml: walk.speed_mps must be > 0")
	}
	return t, nil
}

func Ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func (t Tuning) FrameInterval() time.Duration { return time.Second / time.Duration(t.FrameRateHz) }

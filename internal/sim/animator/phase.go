package animator

type Phase int

const (
	PhaseSeatedIdle Phase = iota
	PhaseStanding
	PhaseWalking
	PhaseTalking
	PhaseAtDoor
	PhaseSittingRemote
	PhaseWalkingBack
	PhaseSittingDown
	PhaseAbsent
	PhaseAtMeeting
)

var phaseNames = [...]string{
	PhaseSeatedIdle:    "SEATED_IDLE",
	PhaseStanding:      "STANDING",
	PhaseWalking:       "WALKING",
	PhaseTalking:       "TALKING",
	PhaseAtDoor:        "AT_DOOR",
	PhaseSittingRemote: "SITTING_REMOTE",
	PhaseWalkingBack:   "WALKING_BACK",
	PhaseSittingDown:   "SITTING_DOWN",
	PhaseAbsent:        "ABSENT",
	PhaseAtMeeting:     "AT_MEETING",
}

func (p Phase) String() string {
	if int(p) < 0 || int(p) >= len(phaseNames) {
		return "UNKNOWN"
	}
	return phaseNames[p]
}

// Clip names as exported by the agent models.
const (
	ClipSeated  = "sitting_idle"
	ClipStandUp = "stand_up"
	ClipWalk    = "walk"
	ClipTalk    = "talk"
	ClipSitDown = "sit_down"
	ClipIdle    = "idle"
)

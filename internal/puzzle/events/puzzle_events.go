package events

// Event type constants
const (
	TypeEpisodeReset      = "episode.reset"
	TypeStepApplied       = "step.applied"
	TypeStepIgnored       = "step.ignored"
	TypeEpisodeTerminated = "episode.terminated"
	TypeEpisodeTruncated  = "episode.truncated"
)

// AllTypes lists every event type the engines publish
var AllTypes = []string{
	TypeEpisodeReset,
	TypeStepApplied,
	TypeStepIgnored,
	TypeEpisodeTerminated,
	TypeEpisodeTruncated,
}

// EpisodeResetEvent is published when an engine restores an initial board
type EpisodeResetEvent struct {
	BaseEvent
	Puzzle string `json:"puzzle"`
	Board  string `json:"board"`
}

// NewEpisodeResetEvent creates a new EpisodeResetEvent
func NewEpisodeResetEvent(envID, puzzle, board string) *EpisodeResetEvent {
	return &EpisodeResetEvent{
		BaseEvent: newBase(TypeEpisodeReset, envID),
		Puzzle:    puzzle,
		Board:     board,
	}
}

// StepAppliedEvent is published for every counted step, legal or not
type StepAppliedEvent struct {
	BaseEvent
	Puzzle     string  `json:"puzzle"`
	Action     string  `json:"action"`
	Moved      bool    `json:"moved"`
	Reward     float64 `json:"reward"`
	Step       int     `json:"step"`
	Terminated bool    `json:"terminated"`
	Truncated  bool    `json:"truncated"`
}

// NewStepAppliedEvent creates a new StepAppliedEvent
func NewStepAppliedEvent(envID, puzzle, action string, moved bool, reward float64, step int, terminated, truncated bool) *StepAppliedEvent {
	return &StepAppliedEvent{
		BaseEvent:  newBase(TypeStepApplied, envID),
		Puzzle:     puzzle,
		Action:     action,
		Moved:      moved,
		Reward:     reward,
		Step:       step,
		Terminated: terminated,
		Truncated:  truncated,
	}
}

// StepIgnoredEvent is published when a step arrives after the episode ended
type StepIgnoredEvent struct {
	BaseEvent
	Puzzle string `json:"puzzle"`
	Action string `json:"action"`
	Step   int    `json:"step"`
}

// NewStepIgnoredEvent creates a new StepIgnoredEvent
func NewStepIgnoredEvent(envID, puzzle, action string, step int) *StepIgnoredEvent {
	return &StepIgnoredEvent{
		BaseEvent: newBase(TypeStepIgnored, envID),
		Puzzle:    puzzle,
		Action:    action,
		Step:      step,
	}
}

// EpisodeEndedEvent is published once when an episode terminates or truncates
type EpisodeEndedEvent struct {
	BaseEvent
	Puzzle string `json:"puzzle"`
	Steps  int    `json:"steps"`
}

// NewEpisodeEndedEvent creates an episode.terminated event when solved,
// episode.truncated otherwise.
func NewEpisodeEndedEvent(envID, puzzle string, steps int, solved bool) *EpisodeEndedEvent {
	eventType := TypeEpisodeTruncated
	if solved {
		eventType = TypeEpisodeTerminated
	}
	return &EpisodeEndedEvent{
		BaseEvent: newBase(eventType, envID),
		Puzzle:    puzzle,
		Steps:     steps,
	}
}

// Solved reports whether the episode ended by reaching the goal
func (e *EpisodeEndedEvent) Solved() bool {
	return e.EventType == TypeEpisodeTerminated
}

package subscribers

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/events"
)

// LoggerSubscriber logs episode events to structured logs
type LoggerSubscriber struct {
	id              string
	logger          zerolog.Logger
	logLevel        zerolog.Level
	eventTypeFilter map[string]bool // nil logs everything
	devMode         bool
}

// NewLoggerSubscriber creates a new logger subscriber
func NewLoggerSubscriber(id string, logger zerolog.Logger, logLevel zerolog.Level) *LoggerSubscriber {
	return &LoggerSubscriber{
		id:       id,
		logger:   logger.With().Str("subscriber", "event_logger").Logger(),
		logLevel: logLevel,
	}
}

// ID returns the subscriber's unique identifier
func (ls *LoggerSubscriber) ID() string {
	return ls.id
}

// SetEventFilter sets which event types to log (empty means log all)
func (ls *LoggerSubscriber) SetEventFilter(eventTypes []string) {
	if len(eventTypes) == 0 {
		ls.eventTypeFilter = nil
		return
	}

	ls.eventTypeFilter = make(map[string]bool)
	for _, eventType := range eventTypes {
		ls.eventTypeFilter[eventType] = true
	}
}

// SetDevMode attaches the full event JSON to every log line
func (ls *LoggerSubscriber) SetDevMode(enabled bool) {
	ls.devMode = enabled
}

// InterestedIn returns true if the subscriber wants to receive this event type
func (ls *LoggerSubscriber) InterestedIn(eventType string) bool {
	if ls.eventTypeFilter == nil {
		return true
	}
	return ls.eventTypeFilter[eventType]
}

// HandleEvent logs the event with type-specific fields
func (ls *LoggerSubscriber) HandleEvent(event events.Event) {
	eventLogger := ls.logger.With().
		Str("event_type", event.Type()).
		Str("env_id", event.EnvID()).
		Time("timestamp", event.Timestamp()).
		Logger()

	logEvent := eventLogger.WithLevel(ls.logLevel)
	if ls.logLevel == zerolog.NoLevel {
		logEvent = eventLogger.Info()
	}

	switch e := event.(type) {
	case *events.EpisodeResetEvent:
		logEvent.
			Str("puzzle", e.Puzzle).
			Str("board", e.Board)

	case *events.StepAppliedEvent:
		logEvent.
			Str("puzzle", e.Puzzle).
			Str("action", e.Action).
			Bool("moved", e.Moved).
			Float64("reward", e.Reward).
			Int("step", e.Step).
			Bool("terminated", e.Terminated).
			Bool("truncated", e.Truncated)

	case *events.StepIgnoredEvent:
		logEvent.
			Str("puzzle", e.Puzzle).
			Str("action", e.Action).
			Int("step", e.Step)

	case *events.EpisodeEndedEvent:
		logEvent.
			Str("puzzle", e.Puzzle).
			Int("steps", e.Steps).
			Bool("solved", e.Solved())
	}

	if ls.devMode {
		if jsonData, err := json.Marshal(event); err == nil {
			logEvent.RawJSON("event_data", jsonData)
		}
	}

	logEvent.Msg("Episode event")
}

package events

import (
	"time"
)

// Event is anything published on the bus about one environment
type Event interface {
	Type() string
	Timestamp() time.Time
	EnvID() string
}

// BaseEvent carries the fields every event shares. Concrete events embed
// it so they satisfy Event and marshal with the same three keys.
type BaseEvent struct {
	EventType string    `json:"type"`
	Time      time.Time `json:"timestamp"`
	Env       string    `json:"env_id"`
}

func (e BaseEvent) Type() string         { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }
func (e BaseEvent) EnvID() string        { return e.Env }

func newBase(eventType, envID string) BaseEvent {
	return BaseEvent{EventType: eventType, Time: time.Now(), Env: envID}
}

type EventHandler func(Event)

// Subscriber receives the events it declares interest in. IDs are unique
// per bus.
type Subscriber interface {
	ID() string
	HandleEvent(Event)
	InterestedIn(eventType string) bool
}

// Publisher is what engines and environments need from a bus
type Publisher interface {
	Publish(Event)
}

package events

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// EventBus fans events out to subscribers on the publishing goroutine
type EventBus struct {
	mu           sync.RWMutex
	subscribers  map[string]Subscriber
	funcHandlers map[string][]EventHandler
	logger       zerolog.Logger
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers:  make(map[string]Subscriber),
		funcHandlers: make(map[string][]EventHandler),
		logger:       log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers s under its ID. A later subscriber with the same ID
// takes its place.
func (eb *EventBus) Subscribe(s Subscriber) {
	eb.mu.Lock()
	eb.subscribers[s.ID()] = s
	eb.mu.Unlock()

	eb.logger.Debug().Str("subscriber_id", s.ID()).Msg("Subscribed")
}

func (eb *EventBus) Unsubscribe(subscriberID string) {
	eb.mu.Lock()
	delete(eb.subscribers, subscriberID)
	eb.mu.Unlock()

	eb.logger.Debug().Str("subscriber_id", subscriberID).Msg("Unsubscribed")
}

// SubscribeFunc attaches handler to a single event type and returns a
// label for it, "<type>_func_<n>".
func (eb *EventBus) SubscribeFunc(eventType string, handler EventHandler) string {
	eb.mu.Lock()
	eb.funcHandlers[eventType] = append(eb.funcHandlers[eventType], handler)
	n := len(eb.funcHandlers[eventType])
	eb.mu.Unlock()

	label := fmt.Sprintf("%s_func_%d", eventType, n)
	eb.logger.Debug().Str("event_type", eventType).Str("handler_id", label).Msg("Subscribed handler")
	return label
}

// delivery is one recipient picked while the bus lock was held
type delivery struct {
	name string
	fn   func(Event)
}

// Publish hands event to every interested recipient. Recipients are picked
// under the lock and called after it is released, so a handler may itself
// subscribe or publish. A recipient that panics is logged and the rest
// still run.
func (eb *EventBus) Publish(event Event) {
	eventType := event.Type()

	eb.mu.RLock()
	targets := make([]delivery, 0, len(eb.subscribers)+len(eb.funcHandlers[eventType]))
	for id, s := range eb.subscribers {
		if s.InterestedIn(eventType) {
			targets = append(targets, delivery{name: id, fn: s.HandleEvent})
		}
	}
	for i, h := range eb.funcHandlers[eventType] {
		targets = append(targets, delivery{name: fmt.Sprintf("%s_func_%d", eventType, i+1), fn: h})
	}
	eb.mu.RUnlock()

	eb.logger.Debug().
		Str("event_type", eventType).
		Str("env_id", event.EnvID()).
		Int("recipients", len(targets)).
		Msg("Publishing event")

	for _, t := range targets {
		eb.deliver(t, event)
	}
}

func (eb *EventBus) deliver(t delivery, event Event) {
	defer func() {
		if r := recover(); r != nil {
			eb.logger.Error().
				Str("recipient", t.name).
				Str("event_type", event.Type()).
				Interface("panic", r).
				Msg("Event recipient panicked")
		}
	}()
	t.fn(event)
}

func (eb *EventBus) SubscriberCount() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers)
}

func (eb *EventBus) FuncHandlerCount(eventType string) int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.funcHandlers[eventType])
}

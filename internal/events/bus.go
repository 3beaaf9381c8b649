package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventPositionClosed  EventType = "POSITION_CLOSED"
	EventChallengeFailed EventType = "CHALLENGE_FAILED"
	EventChallengePassed EventType = "CHALLENGE_PASSED"
	EventBackfillDone    EventType = "BACKFILL_DONE"
	EventError           EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Subscribers run in goroutines so a slow consumer cannot stall the
	// polling cycle
	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event)
		}
	}

	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishPositionClosed publishes a position closed event
func (eb *EventBus) PublishPositionClosed(ticket, symbol, side, reason string, closePrice, pnl float64) {
	eb.Publish(Event{
		Type: EventPositionClosed,
		Data: map[string]interface{}{
			"ticket":      ticket,
			"symbol":      symbol,
			"side":        side,
			"reason":      reason,
			"close_price": closePrice,
			"pnl":         pnl,
		},
	})
}

// PublishChallengeFailed publishes a daily-loss challenge failure
func (eb *EventBus) PublishChallengeFailed(userChallengeID int64, dailyPnL float64) {
	eb.Publish(Event{
		Type: EventChallengeFailed,
		Data: map[string]interface{}{
			"user_challenge_id": userChallengeID,
			"daily_pnl":         dailyPnL,
		},
	})
}

// PublishChallengePassed publishes a profit-target challenge pass
func (eb *EventBus) PublishChallengePassed(userChallengeID int64, totalProfit float64) {
	eb.Publish(Event{
		Type: EventChallengePassed,
		Data: map[string]interface{}{
			"user_challenge_id": userChallengeID,
			"total_profit":      totalProfit,
		},
	})
}

// PublishBackfillDone publishes a completed historical backfill
func (eb *EventBus) PublishBackfillDone(symbols int, rows int64) {
	eb.Publish(Event{
		Type: EventBackfillDone,
		Data: map[string]interface{}{
			"symbols": symbols,
			"rows":    rows,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventError,
		Data: data,
	})
}

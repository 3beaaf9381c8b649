package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPublishNotifiesTypedSubscribers(t *testing.T) {
	bus := NewEventBus()

	var mu sync.Mutex
	var got []Event
	done := make(chan struct{}, 1)

	bus.Subscribe(EventPositionClosed, func(e Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
		done <- struct{}{}
	})

	bus.PublishPositionClosed("T-1001", "EURUSD", "BUY", "stop_loss", 1.095, -505.0)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("subscriber was not notified")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, got, 1)
	assert.Equal(t, EventPositionClosed, got[0].Type)
	assert.Equal(t, "EURUSD", got[0].Data["symbol"])
	assert.Equal(t, "stop_loss", got[0].Data["reason"])
	assert.False(t, got[0].Timestamp.IsZero())
}

func TestPublishSkipsOtherTypes(t *testing.T) {
	bus := NewEventBus()

	called := make(chan Event, 1)
	bus.Subscribe(EventChallengeFailed, func(e Event) { called <- e })

	bus.PublishChallengePassed(7, 10500)

	select {
	case <-called:
		t.Fatal("subscriber received an event of the wrong type")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeAllReceivesEverything(t *testing.T) {
	bus := NewEventBus()

	received := make(chan EventType, 4)
	bus.SubscribeAll(func(e Event) { received <- e.Type })

	bus.PublishChallengeFailed(1, -1100)
	bus.PublishChallengePassed(2, 10500)
	bus.PublishError("poller", "quote fetch failed", nil)

	seen := map[EventType]bool{}
	for i := 0; i < 3; i++ {
		select {
		case et := <-received:
			seen[et] = true
		case <-time.After(time.Second):
			t.Fatal("missing event")
		}
	}
	assert.True(t, seen[EventChallengeFailed])
	assert.True(t, seen[EventChallengePassed])
	assert.True(t, seen[EventError])
}

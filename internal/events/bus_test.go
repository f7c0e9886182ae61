package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(ch <-chan Event, n int, t *testing.T) []Event {
	t.Helper()
	var got []Event
	timeout := time.After(2 * time.Second)
	for len(got) < n {
		select {
		case e := <-ch:
			got = append(got, e)
		case <-timeout:
			t.Fatalf("timed out after %d of %d events", len(got), n)
		}
	}
	return got
}

func TestSubscribeReceivesMatchingType(t *testing.T) {
	bus := NewBus()
	ch := make(chan Event, 4)
	bus.Subscribe(EventPatternDetected, func(e Event) { ch <- e })

	bus.Publish(Event{Type: EventPatternDetected, Symbol: "AAPL"})
	bus.Publish(Event{Type: EventTradeCreated, Symbol: "AAPL"})

	got := collect(ch, 1, t)
	assert.Equal(t, EventPatternDetected, got[0].Type)
	assert.Equal(t, "AAPL", got[0].Symbol)

	select {
	case e := <-ch:
		t.Fatalf("unexpected event %s for non-subscribed type", e.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeAllReceivesEverything(t *testing.T) {
	bus := NewBus()
	ch := make(chan Event, 4)
	bus.SubscribeAll(func(e Event) { ch <- e })

	bus.Publish(Event{Type: EventPatternDetected})
	bus.Publish(Event{Type: EventScanCompleted})

	got := collect(ch, 2, t)
	types := map[EventType]bool{got[0].Type: true, got[1].Type: true}
	assert.True(t, types[EventPatternDetected])
	assert.True(t, types[EventScanCompleted])
}

func TestPublishStampsTimestamp(t *testing.T) {
	bus := NewBus()
	ch := make(chan Event, 1)
	bus.Subscribe(EventError, func(e Event) { ch <- e })

	bus.Publish(Event{Type: EventError})

	got := collect(ch, 1, t)
	require.False(t, got[0].Timestamp.IsZero())
}

func TestPublishDoesNotBlockOnSlowSubscriber(t *testing.T) {
	bus := NewBus()
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	bus.Subscribe(EventScanCompleted, func(e Event) {
		<-release
		wg.Done()
	})

	done := make(chan struct{})
	go func() {
		bus.Publish(Event{Type: EventScanCompleted})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
	close(release)
	wg.Wait()
}

func TestConcurrentPublish(t *testing.T) {
	bus := NewBus()
	var mu sync.Mutex
	count := 0
	bus.SubscribeAll(func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(Event{Type: EventRegimeChanged})
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 20
	}, 2*time.Second, 10*time.Millisecond)
}

package broadcast

import (
	"sync"
	"testing"
	"time"
)

func TestPublishReachesAttachedStream(t *testing.T) {
	b := New()
	defer b.Release()

	id, events := b.Attach()
	defer b.Detach(id)

	b.Publish(TopicOrderCreated, map[string]string{"id": "42"})

	select {
	case data := <-events:
		var evt Event
		if err := json.Unmarshal(data, &evt); err != nil {
			t.Fatalf("unmarshal frame: %s", err)
		}
		if evt.Event != TopicOrderCreated {
			t.Fatalf("event = %q, want %q", evt.Event, TopicOrderCreated)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}
}

func TestDetachClosesStream(t *testing.T) {
	b := New()
	defer b.Release()

	id, events := b.Attach()
	b.Detach(id)

	select {
	case _, open := <-events:
		if open {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
}

func TestPublishWhileDetaching(t *testing.T) {
	b := New()
	defer b.Release()

	// a stream may detach between the fan-out submit and the worker
	// running; the send must never hit a closed channel
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				id, events := b.Attach()
				b.Publish(TopicOrderUpdated, map[string]string{"id": "1"})
				b.Detach(id)
				for range events {
				}
			}
		}()
	}
	wg.Wait()
}

func TestSubscribeReceivesPayload(t *testing.T) {
	b := New()
	defer b.Release()

	got := make(chan string, 1)
	err := b.Subscribe(TopicNotification, func(payload map[string]string) {
		got <- payload["message"]
	})
	if err != nil {
		t.Fatalf("subscribe: %s", err)
	}

	b.Publish(TopicNotification, map[string]string{"message": "mesa 4 lista"})

	select {
	case msg := <-got:
		if msg != "mesa 4 lista" {
			t.Fatalf("message = %q", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber not invoked")
	}
}

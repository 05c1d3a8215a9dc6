package broadcast

import (
	"sync"
	"time"

	"github.com/asaskevich/EventBus"
	jsoniter "github.com/json-iterator/go"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/miguelvacuau169-jpg/rincon-laurel-app/pkg/common"
)

// Topics published by the order ledger and the closure engine.
const (
	TopicOrderCreated       = "order_created"
	TopicOrderUpdated       = "order_updated"
	TopicOrderDeleted       = "order_deleted"
	TopicProductCreated     = "product_created"
	TopicProductUpdated     = "product_updated"
	TopicProductDeleted     = "product_deleted"
	TopicDailyClosure       = "daily_closure_created"
	TopicNotification       = "notification"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Event is the wire envelope delivered to connected clients.
type Event struct {
	Event     string      `json:"event"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Broadcaster fans events out to in-process subscribers (EventBus) and to
// connected stream clients. Publish is fire-and-forget: it never blocks the
// calling mutation and delivery failures are only logged.
type Broadcaster struct {
	bus  EventBus.Bus
	pool *ants.Pool

	mu      sync.RWMutex
	streams map[int64]chan []byte
}

func New() *Broadcaster {
	pool, err := ants.NewPool(64, ants.WithNonblocking(true))
	if err != nil {
		panic(err)
	}
	return &Broadcaster{
		bus:     EventBus.New(),
		pool:    pool,
		streams: make(map[int64]chan []byte),
	}
}

// Publish serializes the payload and delivers it asynchronously to every
// subscriber and attached stream.
func (b *Broadcaster) Publish(topic string, payload interface{}) {
	b.bus.Publish(topic, payload)

	data, err := json.Marshal(Event{Event: topic, Data: payload, Timestamp: time.Now()})
	if err != nil {
		zap.S().Errorf("broadcast marshal %s: %s", topic, err.Error())
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.streams {
		id, ch := id, ch
		err := b.pool.Submit(func() {
			// Detach closes the channel under the write lock, so the
			// send happens under the read lock after a membership check
			b.mu.RLock()
			defer b.mu.RUnlock()
			if _, ok := b.streams[id]; !ok {
				return
			}
			select {
			case ch <- data:
			default:
				// slow client, drop the event
				zap.S().Debugf("broadcast: dropped %s for stream %d", topic, id)
			}
		})
		if err != nil {
			zap.S().Debugf("broadcast pool submit: %s", err.Error())
		}
	}
}

// Subscribe registers an in-process handler for a topic.
func (b *Broadcaster) Subscribe(topic string, fn interface{}) error {
	return b.bus.SubscribeAsync(topic, fn, false)
}

// Attach registers a stream client and returns its id and channel.
func (b *Broadcaster) Attach() (int64, <-chan []byte) {
	id := common.UUIDint64()
	ch := make(chan []byte, 16)
	b.mu.Lock()
	b.streams[id] = ch
	b.mu.Unlock()
	return id, ch
}

// Detach removes a stream client.
func (b *Broadcaster) Detach(id int64) {
	b.mu.Lock()
	if ch, ok := b.streams[id]; ok {
		delete(b.streams, id)
		close(ch)
	}
	b.mu.Unlock()
}

// Release stops the fan-out pool.
func (b *Broadcaster) Release() {
	b.mu.Lock()
	for id, ch := range b.streams {
		delete(b.streams, id)
		close(ch)
	}
	b.mu.Unlock()
	b.pool.Release()
}

package api

import (
	"context"
	"sync"

	"foodcart/internal/model"
)

// EventBroker fans order events out to stream subscribers.
type EventBroker interface {
	Subscribe(topic string) chan model.OrderEvent
	Unsubscribe(topic string, ch chan model.OrderEvent)
	Publish(topic string, evt model.OrderEvent)
}

// TopicOrders carries every order event.
const TopicOrders = "orders"

// Broker is the in-process EventBroker used when REDIS_URL is unset.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan model.OrderEvent]struct{} // topic -> set of channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan model.OrderEvent]struct{}{}}
}

func (b *Broker) Subscribe(topic string) chan model.OrderEvent {
	ch := make(chan model.OrderEvent, 8)
	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = map[chan model.OrderEvent]struct{}{}
	}
	b.subs[topic][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(topic string, ch chan model.OrderEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[topic]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, topic)
	}
	close(ch)
}

// Publish never blocks; slow subscribers miss events.
func (b *Broker) Publish(topic string, evt model.OrderEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[topic] {
		select {
		case ch <- evt:
		default:
		}
	}
}

// serverNotifier hands assignment-service events to Server.publish.
type serverNotifier struct{ s *Server }

func (n serverNotifier) OrderEvent(_ context.Context, evt model.OrderEvent) {
	n.s.publish(evt)
}

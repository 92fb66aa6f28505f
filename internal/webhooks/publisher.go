// Package webhooks delivers order events to an external HTTP endpoint with
// signing and retry.
package webhooks

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"foodcart/internal/model"
)

// Delivery is one queued webhook call.
type Delivery struct {
	ID        string
	EventType string
	Payload   []byte
	Attempts  int
	NextAt    time.Time
	LastError string
	LastCode  int
}

type envelope struct {
	ID   string           `json:"id"`
	Type string           `json:"type"`
	TS   string           `json:"ts"`
	Data model.OrderEvent `json:"data"`
}

// Enqueue schedules evt for immediate delivery.
func (w *Worker) Enqueue(evt model.OrderEvent) {
	body, _ := json.Marshal(envelope{
		ID:   "evt_" + uuid.NewString(),
		Type: evt.Type,
		TS:   time.Now().UTC().Format(time.RFC3339),
		Data: evt,
	})
	w.mu.Lock()
	w.queue = append(w.queue, &Delivery{ID: uuid.NewString(), EventType: evt.Type, Payload: body, NextAt: w.now()})
	w.mu.Unlock()
}

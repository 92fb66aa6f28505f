package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"foodcart/internal/model"
)

const heartbeatEvery = 15 * time.Second

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

func newStatusEvent(orderID int64, from, to model.OrderStatus) model.OrderEvent {
	return model.OrderEvent{
		ID:      uuid.NewString(),
		Type:    "order.status.changed",
		OrderID: orderID,
		From:    from,
		To:      to,
		TS:      time.Now().UTC().Format(time.RFC3339),
	}
}

// OrderEventsStreamHandler handles GET /v1/orders/events/stream (SSE).
func (s *Server) OrderEventsStreamHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.Broker.Subscribe(TopicOrders)
	defer s.Broker.Unsubscribe(TopicOrders, ch)

	heartbeat := func() {
		fmt.Fprintf(w, "event: heartbeat\n")
		fmt.Fprintf(w, "data: {\"ts\":\"%s\"}\n\n", time.Now().UTC().Format(time.RFC3339))
		flusher.Flush()
	}
	heartbeat()

	ticker := time.NewTicker(heartbeatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			b, _ := json.Marshal(evt)
			fmt.Fprintf(w, "event: %s\n", evt.Type)
			fmt.Fprintf(w, "data: %s\n\n", b)
			flusher.Flush()
		case <-ticker.C:
			heartbeat()
		}
	}
}

type wsMessage struct {
	Type    string            `json:"type"`
	Payload *model.OrderEvent `json:"payload,omitempty"`
}

// OrderEventsWSHandler handles GET /v1/orders/events/ws. Every order event is
// pushed as {"type":"event","payload":{...}}; the server pings periodically
// and answers client "ping" messages with "pong".
func (s *Server) OrderEventsWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	ch := s.Broker.Subscribe(TopicOrders)
	defer s.Broker.Unsubscribe(TopicOrders, ch)

	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(60 * time.Second)) })

	// gorilla allows one concurrent reader and one concurrent writer; all
	// writes happen on this goroutine, the reader only forwards pings.
	pings := make(chan struct{}, 1)
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			var msg wsMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			if msg.Type == "ping" {
				select {
				case pings <- struct{}{}:
				default:
				}
			}
		}
	}()

	if err := conn.WriteJSON(wsMessage{Type: "connection_ack"}); err != nil {
		return
	}
	ticker := time.NewTicker(heartbeatEvery)
	defer ticker.Stop()
	for {
		var err error
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			return
		case <-pings:
			err = conn.WriteJSON(wsMessage{Type: "pong"})
		case evt, ok := <-ch:
			if !ok {
				return
			}
			err = conn.WriteJSON(wsMessage{Type: "event", Payload: &evt})
		case <-ticker.C:
			err = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		}
		if err != nil {
			s.Log.Debug("order events ws closed", "err", err)
			return
		}
	}
}

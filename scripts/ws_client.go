// Package main runs a demo WebSocket client for order events.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Pick any product from the catalog
	resp, err := http.Get(base + "/v1/products")
	if err != nil {
		log.Fatal(err)
	}
	var products struct {
		Items []struct {
			ID int64 `json:"id"`
		} `json:"items"`
	}
	err = json.NewDecoder(resp.Body).Decode(&products)
	_ = resp.Body.Close()
	if err != nil {
		log.Fatal(err)
	}
	if len(products.Items) == 0 {
		log.Fatal("catalog is empty; create a product first")
	}

	// Register an order
	body, _ := json.Marshal(map[string]any{
		"firstname":   "Demo",
		"phonenumber": "+79990000000",
		"address":     "Moscow, Tverskaya 1",
		"products":    []map[string]any{{"product": products.Items[0].ID, "quantity": 1}},
	})
	resp, err = http.Post(base+"/api/orders", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatal(err)
	}
	var order struct {
		ID int64 `json:"id"`
	}
	err = json.NewDecoder(resp.Body).Decode(&order)
	_ = resp.Body.Close()
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("Order ID: %d", order.ID)

	// Connect WS
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/orders/events/ws"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
		}
	}()

	// Trigger an order event by accepting the order
	time.Sleep(500 * time.Millisecond)
	req, _ := http.NewRequest(http.MethodPut, fmt.Sprintf("%s/v1/orders/%d/status", base, order.ID), bytes.NewReader([]byte(`{"status":"A"}`)))
	req.Header.Set("Content-Type", "application/json")
	if resp, err := http.DefaultClient.Do(req); err == nil {
		_ = resp.Body.Close()
	}
	if err := c.WriteJSON(wsMessage{Type: "ping"}); err != nil {
		log.Fatal(err)
	}

	// Wait briefly to receive a few messages
	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}

package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"foodcart/internal/model"
)

func statusEvent() model.OrderEvent {
	return model.OrderEvent{ID: "e1", Type: "order.status.changed", OrderID: 7, From: model.StatusCreated, To: model.StatusPreparing}
}

func TestWorkerProcessOnce_SuccessAndSignature(t *testing.T) {
	var (
		mu              sync.Mutex
		gotSig, gotType string
		gotTS           int64
		gotBody         []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotSig = r.Header.Get("X-Signature")
		gotType = r.Header.Get("X-Event-Type")
		gotTS, _ = strconv.ParseInt(r.Header.Get("X-Signature-Timestamp"), 10, 64)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(200)
	}))
	defer srv.Close()

	w := NewWorker(srv.URL, "secret", 3, nil)
	w.HTTP = srv.Client()
	w.Enqueue(statusEvent())
	w.processOnce(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if gotType != "order.status.changed" {
		t.Fatalf("event type header: %q", gotType)
	}
	if !Verify("secret", gotTS, gotBody, gotSig) {
		t.Fatalf("signature does not verify: %q", gotSig)
	}
	var env struct {
		Type string           `json:"type"`
		Data model.OrderEvent `json:"data"`
	}
	if err := json.Unmarshal(gotBody, &env); err != nil || env.Data.OrderID != 7 {
		t.Fatalf("payload: %s %v", gotBody, err)
	}
	if w.Pending() != 0 || len(w.Failed()) != 0 {
		t.Fatalf("delivered item should leave the queue")
	}
}

func TestWorkerRetriesThenFails(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(500)
	}))
	defer srv.Close()

	now := time.Unix(1_700_000_000, 0)
	w := NewWorker(srv.URL, "", 2, nil)
	w.HTTP = srv.Client()
	w.now = func() time.Time { return now }
	w.Enqueue(statusEvent())

	w.processOnce(context.Background())
	if w.Pending() != 1 || len(w.Failed()) != 0 {
		t.Fatalf("first failure should be retried")
	}
	// not due yet
	w.processOnce(context.Background())
	if n := calls.Load(); n != 1 {
		t.Fatalf("retried before backoff elapsed: %d calls", n)
	}
	now = now.Add(nextBackoff(0))
	w.processOnce(context.Background())
	failed := w.Failed()
	if len(failed) != 1 || failed[0].Attempts != 2 || failed[0].LastCode != 500 || w.Pending() != 0 {
		t.Fatalf("expected dead delivery after 2 attempts: %+v", failed)
	}
}

func TestWorkerRunDeliversQueued(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	w := NewWorker(srv.URL, "", 1, nil)
	w.HTTP = srv.Client()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	for i := 0; i < 3; i++ {
		w.Enqueue(statusEvent())
	}
	deadline := time.Now().Add(3 * time.Second)
	for calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done
	if n := calls.Load(); n != 3 || w.Pending() != 0 {
		t.Fatalf("delivered %d of 3, %d pending", n, w.Pending())
	}
}

func TestNextBackoff(t *testing.T) {
	if nextBackoff(-1) != time.Second || nextBackoff(3) != 8*time.Second || nextBackoff(50) != 1024*time.Second {
		t.Fatalf("unexpected backoff schedule")
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	body := []byte(`{"id":"evt1"}`)
	sig := Sign("k", 10, body)
	if !Verify("k", 10, body, sig) {
		t.Fatal("valid signature rejected")
	}
	if Verify("k", 11, body, sig) || Verify("k", 10, []byte(`{}`), sig) || Verify("other", 10, body, sig) || Verify("k", 10, body, "zz") {
		t.Fatal("tampered signature accepted")
	}
}

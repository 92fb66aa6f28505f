package webhooks

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"foodcart/internal/metrics"
)

type Worker struct {
	URL         string
	Secret      string
	HTTP        *http.Client
	MaxAttempts int
	Log         *slog.Logger

	mu     sync.Mutex
	queue  []*Delivery
	failed []Delivery
	now    func() time.Time
}

func NewWorker(url, secret string, maxAttempts int, log *slog.Logger) *Worker {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		URL:         url,
		Secret:      secret,
		HTTP:        &http.Client{Timeout: 5 * time.Second},
		MaxAttempts: maxAttempts,
		Log:         log.With("component", "webhooks"),
		now:         time.Now,
	}
}

// Run delivers due items once a second until ctx is done. Events reach the
// queue through Enqueue.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processOnce(ctx)
		}
	}
}

// Failed returns deliveries that exhausted MaxAttempts.
func (w *Worker) Failed() []Delivery {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Delivery(nil), w.failed...)
}

// Pending returns the number of queued deliveries.
func (w *Worker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

func (w *Worker) due() []*Delivery {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	var due, rest []*Delivery
	for _, d := range w.queue {
		if !d.NextAt.After(now) {
			due = append(due, d)
		} else {
			rest = append(rest, d)
		}
	}
	w.queue = rest
	return due
}

func (w *Worker) processOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	for _, d := range w.due() {
		code, err := w.send(ctx, d)
		d.Attempts++
		d.LastCode = code
		if err == nil && code >= 200 && code < 300 {
			metrics.WebhookDeliveries.WithLabelValues("delivered").Inc()
			continue
		}
		d.LastError = ""
		if err != nil {
			d.LastError = err.Error()
		}
		w.mu.Lock()
		if d.Attempts >= w.MaxAttempts {
			w.failed = append(w.failed, *d)
			w.mu.Unlock()
			metrics.WebhookDeliveries.WithLabelValues("failed").Inc()
			w.Log.Warn("webhook delivery failed", "delivery", d.ID, "event", d.EventType, "attempts", d.Attempts, "code", code, "err", d.LastError)
			continue
		}
		d.NextAt = w.now().Add(nextBackoff(d.Attempts - 1))
		w.queue = append(w.queue, d)
		w.mu.Unlock()
		metrics.WebhookDeliveries.WithLabelValues("retry").Inc()
	}
}

func (w *Worker) send(ctx context.Context, d *Delivery) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(d.Payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", d.EventType)
	req.Header.Set("X-Delivery-Id", d.ID)
	if w.Secret != "" {
		ts := w.now().Unix()
		req.Header.Set("X-Signature-Timestamp", strconv.FormatInt(ts, 10))
		req.Header.Set("X-Signature", Sign(w.Secret, ts, d.Payload))
	}
	resp, err := w.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Hour {
		base = time.Hour
	}
	return base
}

// Package webhook fires outbound webhook events to registered URLs.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/jejecipher/internal/db"
)

// SignatureHeader carries the hex HMAC-SHA256 of the body when the webhook
// has a secret.
const SignatureHeader = "X-Jejecipher-Signature"

// Dispatcher fires webhooks stored in the database.
type Dispatcher struct {
	database *db.DB
	log      *zap.Logger
	client   *http.Client
	delays   []time.Duration
	wg       sync.WaitGroup
}

// New creates a Dispatcher with a default HTTP client.
func New(database *db.DB, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		database: database,
		log:      log.Named("webhook"),
		client:   &http.Client{Timeout: 10 * time.Second},
		delays:   []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second},
	}
}

// Payload is the JSON body sent to webhook URLs.
type Payload struct {
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

type target struct {
	id     int
	url    string
	events string
	secret string
}

// Fire sends an event to all matching enabled webhook URLs in the
// background. Each delivery is tried up to three times, waiting 1s and
// then 2s between attempts.
func (d *Dispatcher) Fire(event string, data interface{}) {
	rows, err := d.database.Query(`SELECT id, url, events, secret FROM webhooks WHERE enabled=1`)
	if err != nil {
		d.log.Warn("query webhooks", zap.Error(err))
		return
	}
	var targets []target
	for rows.Next() {
		var t target
		if err := rows.Scan(&t.id, &t.url, &t.events, &t.secret); err != nil {
			continue
		}
		if t.events != "" && !matchesEvent(t.events, event) {
			continue
		}
		targets = append(targets, t)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		d.log.Warn("scan webhooks", zap.Error(err))
		return
	}
	if len(targets) == 0 {
		return
	}

	body, err := json.Marshal(Payload{Event: event, Timestamp: time.Now(), Data: data})
	if err != nil {
		d.log.Warn("marshal payload", zap.String("event", event), zap.Error(err))
		return
	}
	for _, t := range targets {
		d.wg.Add(1)
		go func(t target) {
			defer d.wg.Done()
			d.fireOne(t, body)
		}(t)
	}
}

// Wait blocks until every in-flight delivery has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) fireOne(t target, body []byte) {
	var lastStatus int
	for i, delay := range d.delays {
		if i > 0 {
			time.Sleep(delay)
		}
		status, err := d.post(context.Background(), t.url, t.secret, body)
		lastStatus = status
		if err == nil && status < 400 {
			break
		}
		d.log.Warn("delivery failed",
			zap.Int("attempt", i+1), zap.String("url", t.url),
			zap.Int("status", status), zap.Error(err))
	}
	_, _ = d.database.Exec(
		`UPDATE webhooks SET last_status=?, last_fired=? WHERE id=?`,
		lastStatus, time.Now().UTC(), t.id,
	)
}

func (d *Dispatcher) post(ctx context.Context, url, secret string, body []byte) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 8*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("webhook.post: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(SignatureHeader, Sign(secret, body))
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("webhook.post: do: %w", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// Sign returns the hex HMAC-SHA256 of body keyed by secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func matchesEvent(events, event string) bool {
	for _, e := range strings.Split(events, ",") {
		e = strings.TrimSpace(e)
		if e == event || e == "*" {
			return true
		}
		if strings.HasSuffix(e, ".*") && strings.HasPrefix(event, strings.TrimSuffix(e, "*")) {
			return true
		}
	}
	return false
}

// TestWebhook fires a test payload to a single webhook by ID.
func (d *Dispatcher) TestWebhook(ctx context.Context, id int) error {
	var url, secret string
	if err := d.database.QueryRowContext(ctx,
		`SELECT url, secret FROM webhooks WHERE id=?`, id).Scan(&url, &secret); err != nil {
		return fmt.Errorf("webhook.TestWebhook: %w", err)
	}
	body, _ := json.Marshal(Payload{
		Event:     "webhook.test",
		Timestamp: time.Now(),
		Data:      map[string]string{"message": "This is a test from jejecipher"},
	})
	status, err := d.post(ctx, url, secret, body)
	if err != nil {
		return fmt.Errorf("webhook.TestWebhook: post: %w", err)
	}
	if status >= 400 {
		return fmt.Errorf("webhook.TestWebhook: server returned %d", status)
	}
	return nil
}

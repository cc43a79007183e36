package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/jobboard/internal/id"
	"go.uber.org/zap"
)

const (
	HeaderSignature = "X-Jobboard-Signature"
	HeaderTimestamp = "X-Jobboard-Timestamp"
	HeaderEvent     = "X-Jobboard-Event"
	HeaderDelivery  = "X-Jobboard-Delivery"
)

// Delivery is one event bound for one endpoint. Receivers deduplicate on ID,
// so a caller retrying the same event must pass the same ID every time. A
// blank ID gets a fresh one per Send.
type Delivery struct {
	ID       string
	Endpoint string
	Event    string
	Payload  any
}

type Config struct {
	SigningSecret  string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Logger         *zap.Logger
}

// Client posts signed JSON events. Within one Send it retries transport
// errors and non-2xx answers with doubling backoff, except answers that
// Permanent rejects.
type Client struct {
	httpClient *http.Client
	secret     []byte
	backoff    backoff
	logger     *zap.Logger
}

type backoff struct {
	attempts int
	initial  time.Duration
	max      time.Duration
}

// wait returns the pause after the given failed attempt (1-based).
func (b backoff) wait(attempt int) time.Duration {
	d := b.initial
	for i := 1; i < attempt && d < b.max; i++ {
		d *= 2
	}
	return min(d, b.max)
}

func NewClient(cfg Config) *Client {
	b := backoff{
		attempts: max(1, cfg.MaxAttempts),
		initial:  cfg.InitialBackoff,
		max:      cfg.MaxBackoff,
	}
	if b.initial <= 0 {
		b.initial = time.Second
	}
	b.max = max(b.max, b.initial)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		secret:     []byte(cfg.SigningSecret),
		backoff:    b,
		logger:     logger,
	}
}

// Send delivers d. A blank endpoint is a no-op.
func (c *Client) Send(ctx context.Context, d Delivery) error {
	d.Endpoint = strings.TrimSpace(d.Endpoint)
	if d.Endpoint == "" {
		return nil
	}
	if d.ID == "" {
		d.ID = id.New()
	}

	body, err := json.Marshal(d.Payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	header := c.headers(d, body, time.Now().UTC())

	log := c.logger.With(zap.String("event", d.Event), zap.String("delivery", d.ID))
	var (
		lastErr error
		attempt int
	)
	for attempt = 1; attempt <= c.backoff.attempts; attempt++ {
		if lastErr = c.post(ctx, d.Endpoint, header, body); lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt == c.backoff.attempts || Permanent(lastErr) {
			break
		}

		wait := c.backoff.wait(attempt)
		log.Debug("webhook attempt failed",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(lastErr),
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("webhook delivery %s failed after %d attempts: %w", d.ID, attempt, lastErr)
}

// headers signs body once; every attempt of a delivery carries the same
// timestamp, signature and id.
func (c *Client) headers(d Delivery, body []byte, now time.Time) http.Header {
	timestamp := strconv.FormatInt(now.Unix(), 10)

	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(timestamp + "."))
	mac.Write(body)

	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	h.Set(HeaderTimestamp, timestamp)
	h.Set(HeaderSignature, "sha256="+hex.EncodeToString(mac.Sum(nil)))
	h.Set(HeaderEvent, d.Event)
	h.Set(HeaderDelivery, d.ID)
	return h
}

func (c *Client) post(ctx context.Context, endpoint string, header http.Header, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header = header.Clone()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

// StatusError reports a non-2xx answer from the receiver.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook returned status=%d", e.StatusCode)
}

// Permanent reports whether the receiver refused the delivery in a way a
// retry cannot change: any 4xx other than 408 and 429.
func Permanent(err error) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	code := statusErr.StatusCode
	return code >= 400 && code < 500 && code != http.StatusRequestTimeout && code != http.StatusTooManyRequests
}

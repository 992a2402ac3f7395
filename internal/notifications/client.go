package notifications

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"orders_sync/internal/orders"
	"orders_sync/internal/processing"

	"github.com/rs/zerolog/log"
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	topic      string
	enabled    bool
	priority   string
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	// Circuit breaker state
	failures    int
	lastFailure time.Time
	circuitOpen bool
	mutex       sync.RWMutex
	// Sync state, so a failing run is reported once
	failing bool
	// Metrics
	totalSent    int64
	totalFailed  int64
	totalRetries int64
}

type NotificationError struct {
	Type       string
	StatusCode int
	Attempt    int
	Underlying error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notification failed [%s] attempt %d: %v", e.Type, e.Attempt, e.Underlying)
}

func (e *NotificationError) Unwrap() error {
	return e.Underlying
}

func (e *NotificationError) IsRetryable() bool {
	switch e.Type {
	case "network", "server", "timeout":
		return true
	case "rate_limit":
		return true
	case "auth", "client":
		return false
	default:
		return e.StatusCode >= 500
	}
}

func NewClient(baseURL, topic string, enabled bool, priority string, maxRetries int, baseDelay, maxDelay time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		topic:      topic,
		enabled:    enabled,
		priority:   priority,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
	}
}

func (c *Client) SendNotification(ctx context.Context, message string) error {
	if !c.enabled {
		log.Debug().Msg("Notifications disabled, skipping")
		return nil
	}

	// Check circuit breaker
	if c.isCircuitOpen() {
		log.Warn().Msg("Circuit breaker open, skipping notification")
		return &NotificationError{
			Type:       "circuit_open",
			StatusCode: 0,
			Attempt:    0,
			Underlying: fmt.Errorf("circuit breaker is open"),
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.calculateBackoff(attempt)
			log.Debug().
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("Retrying notification after delay")

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			c.incrementRetries()
		}

		err := c.sendSingleNotification(ctx, message, attempt+1)
		if err == nil {
			c.recordSuccess()
			return nil
		}

		lastErr = err

		// Check if error is retryable
		var notifErr *NotificationError
		if errors.As(err, &notifErr) {
			if !notifErr.IsRetryable() {
				log.Warn().
					Err(err).
					Int("attempt", attempt+1).
					Msg("Non-retryable error, giving up")
				c.recordFailure()
				return err
			}
		}

		log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_retries", c.maxRetries).
			Msg("Notification attempt failed")
	}

	c.recordFailure()
	return &NotificationError{
		Type:       "max_retries_exceeded",
		StatusCode: 0,
		Attempt:    c.maxRetries + 1,
		Underlying: lastErr,
	}
}

func (c *Client) sendSingleNotification(ctx context.Context, message string, attempt int) error {
	url := fmt.Sprintf("%s/%s", c.baseURL, c.topic)

	log.Debug().
		Str("url", url).
		Str("message", message).
		Int("attempt", attempt).
		Msg("Sending notification")

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBufferString(message))
	if err != nil {
		return &NotificationError{
			Type:       "client",
			StatusCode: 0,
			Attempt:    attempt,
			Underlying: err,
		}
	}

	req.Header.Set("Content-Type", "text/plain")
	if c.priority != "" {
		req.Header.Set("Priority", c.priority)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NotificationError{
			Type:       "network",
			StatusCode: 0,
			Attempt:    attempt,
			Underlying: err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		errType := c.categorizeHTTPError(resp.StatusCode)
		return &NotificationError{
			Type:       errType,
			StatusCode: resp.StatusCode,
			Attempt:    attempt,
			Underlying: fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status),
		}
	}

	log.Debug().
		Int("status_code", resp.StatusCode).
		Int("attempt", attempt).
		Msg("Notification sent successfully")

	return nil
}

func (c *Client) SendNotificationAsync(ctx context.Context, message string) {
	go func() {
		if err := c.SendNotification(ctx, message); err != nil {
			log.Warn().Err(err).Msg("Async notification failed")
		}
	}()
}

// ObserveCycle sends a summary after cycles that wrote or rejected rows, and a
// message when cycles start failing or recover. Repeated failures of the same
// run are not re-sent.
func (c *Client) ObserveCycle(ctx context.Context, report processing.CycleReport, err error) {
	if !c.enabled {
		return
	}

	c.mutex.Lock()
	wasFailing := c.failing
	c.failing = err != nil
	c.mutex.Unlock()

	switch {
	case err != nil && !wasFailing:
		c.SendNotificationAsync(ctx, formatFailureMessage(err))
	case err == nil && wasFailing:
		c.SendNotificationAsync(ctx, "Orders sync recovered")
	}

	if err == nil && (report.Written() > 0 || len(report.Failures) > 0) {
		log.Debug().
			Str("cycle", report.ID).
			Int("written", report.Written()).
			Msg("Sending cycle summary notification")
		c.SendNotificationAsync(ctx, formatCycleMessage(report))
	}
}

func formatCycleMessage(report processing.CycleReport) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Orders sync: %d inserted, %d updated", report.Inserted, report.Updated))
	if report.Rate.IsPositive() {
		sb.WriteString(fmt.Sprintf(" at rate %s", report.Rate.String()))
	}
	sb.WriteString("\n")

	maxFailuresToShow := 10
	for i, f := range report.Failures {
		if i == maxFailuresToShow {
			sb.WriteString(fmt.Sprintf("... and %d more failed rows\n", len(report.Failures)-maxFailuresToShow))
			break
		}
		sb.WriteString(fmt.Sprintf("row %d (id %d) %s: %v\n", f.Position, f.ID, f.Kind, f.Err))
	}

	return strings.TrimSuffix(sb.String(), "\n")
}

func formatFailureMessage(err error) string {
	switch {
	case errors.Is(err, orders.ErrSourceUnavailable):
		return fmt.Sprintf("Orders sync: spreadsheet unavailable\n%v", err)
	case errors.Is(err, orders.ErrRateUnavailable):
		return fmt.Sprintf("Orders sync: exchange rate unavailable\n%v", err)
	case orders.IsConnectionError(err):
		return fmt.Sprintf("Orders sync: database unavailable\n%v", err)
	}
	return fmt.Sprintf("Orders sync failed\n%v", err)
}

// Circuit breaker and retry helper methods

func (c *Client) isCircuitOpen() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.circuitOpen {
		return false
	}

	// Check if we should try to close the circuit (half-open state)
	if time.Since(c.lastFailure) > 30*time.Second {
		c.circuitOpen = false
		c.failures = 0
		log.Info().Msg("Circuit breaker moving to half-open state")
	}

	return c.circuitOpen
}

func (c *Client) recordSuccess() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.totalSent++
	if c.circuitOpen {
		c.circuitOpen = false
		c.failures = 0
		log.Info().Msg("Circuit breaker closed after successful notification")
	}
}

func (c *Client) recordFailure() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.totalFailed++
	c.failures++
	c.lastFailure = time.Now()

	// Open circuit breaker after 5 consecutive failures
	if c.failures >= 5 && !c.circuitOpen {
		c.circuitOpen = true
		log.Warn().
			Int("failures", c.failures).
			Msg("Circuit breaker opened due to consecutive failures")
	}
}

func (c *Client) incrementRetries() {
	c.mutex.Lock()
	c.totalRetries++
	c.mutex.Unlock()
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	// Exponential backoff with jitter
	base := float64(c.baseDelay)
	backoff := base * math.Pow(2, float64(attempt-1))

	// Add jitter (Â±25%)
	jitter := rand.Float64()*0.5 - 0.25  // -0.25 to +0.25
	backoff = backoff * (1 + jitter)

	// Cap at maxDelay
	maxBackoff := float64(c.maxDelay)
	if backoff > maxBackoff {
		backoff = maxBackoff
	}

	return time.Duration(backoff)
}

func (c *Client) categorizeHTTPError(statusCode int) string {
	switch {
	case statusCode == 401 || statusCode == 403:
		return "auth"
	case statusCode == 429:
		return "rate_limit"
	case statusCode >= 400 && statusCode < 500:
		return "client"
	case statusCode >= 500:
		return "server"
	default:
		return "unknown"
	}
}

// GetMetrics returns current notification metrics
func (c *Client) GetMetrics() (sent, failed, retries int64) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.totalSent, c.totalFailed, c.totalRetries
}

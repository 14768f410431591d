package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"
)

// HTTPNotifier delivers notifications by POSTing JSON to a remote endpoint,
// retrying transient failures with exponential backoff. Client errors (4xx)
// are permanent and not retried.
type HTTPNotifier struct {
	log        hclog.Logger
	endpoint   string
	client     *http.Client
	maxElapsed time.Duration
}

// NewHTTPNotifier returns a notifier posting to endpoint. maxElapsed bounds
// the total retry window; zero means the backoff default.
func NewHTTPNotifier(log hclog.Logger, endpoint string, maxElapsed time.Duration) *HTTPNotifier {
	return &HTTPNotifier{
		log:        log.Named("http-notifier"),
		endpoint:   endpoint,
		client:     &http.Client{Timeout: 30 * time.Second},
		maxElapsed: maxElapsed,
	}
}

// Notify implements Notifier.
func (n *HTTPNotifier) Notify(ctx context.Context, notification Notification) error {
	body, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("error encoding notification: %w", err)
	}

	operation := func() error {
		req, err := http.NewRequestWithContext(
			ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("error building request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.client.Do(req)
		if err != nil {
			return fmt.Errorf("error posting notification: %w", err)
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return backoff.Permanent(
				fmt.Errorf("notification rejected: status %d", resp.StatusCode))
		default:
			return fmt.Errorf("notification failed: status %d", resp.StatusCode)
		}
	}

	bo := backoff.NewExponentialBackOff()
	if n.maxElapsed > 0 {
		bo.MaxElapsedTime = n.maxElapsed
	}

	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return fmt.Errorf("error delivering to %q: %w", notification.Entity, err)
	}

	n.log.Debug("notification delivered",
		"entity", notification.Entity,
		"post", notification.PostID,
	)
	return nil
}

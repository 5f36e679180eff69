package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// HTTP delivery defaults.
const (
	httpTimeout          = 10 * time.Second
	breakerOpenTimeout   = time.Minute
	breakerTripThreshold = 3
)

// httpPoster posts JSON payloads behind a circuit breaker so an unreachable
// chat service fails fast instead of piling up goroutines.
type httpPoster struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func newHTTPPoster(name string) *httpPoster {
	return &httpPoster{
		client: &http.Client{Timeout: httpTimeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: breakerOpenTimeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= breakerTripThreshold
			},
		}),
	}
}

func (p *httpPoster) postJSON(ctx context.Context, url string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = p.breaker.Execute(func() (interface{}, error) {
		return nil, p.do(ctx, url, data)
	})
	return err
}

func (p *httpPoster) do(ctx context.Context, url string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("POST failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	return nil
}

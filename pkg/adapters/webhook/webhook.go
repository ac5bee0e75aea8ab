// Package webhook implements the outbound HTTP caller behind webhook action
// nodes.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/zapflow/zapflow/pkg/protocol"
)

const requestTimeout = 30 * time.Second

// Caller performs JSON webhook calls.
type Caller struct {
	httpClient *http.Client
	logger     *slog.Logger
}

func NewCaller(logger *slog.Logger) *Caller {
	return &Caller{
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger,
	}
}

// Call sends the payload as JSON and decodes the JSON response. Non-2xx
// statuses and transport failures are adapter errors, so the engine retries
// them.
func (c *Caller) Call(ctx context.Context, method, url string, payload map[string]any) (map[string]any, error) {
	var body io.Reader

	if method != http.MethodGet && payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal webhook payload: %w", err)
		}

		body = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build webhook request: %w", err)
	}

	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, protocol.NewAdapterError("webhook", err)
	}

	defer func() {
		err := response.Body.Close()
		if err != nil {
			c.logger.WarnContext(ctx, "failed to close webhook response body", "error", err)
		}
	}()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, protocol.NewAdapterError("webhook",
			fmt.Errorf("call to %s returned status %d", url, response.StatusCode))
	}

	result := map[string]any{"status_code": response.StatusCode}

	var decoded map[string]any

	err = json.NewDecoder(io.LimitReader(response.Body, 1<<20)).Decode(&decoded)
	if err == nil {
		for key, value := range decoded {
			result[key] = value
		}
	}

	return result, nil
}

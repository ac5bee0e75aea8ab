// Package handover dispatches conversation transfers to an external routing
// service: another chatbot or a human department queue.
package handover

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/zapflow/zapflow/pkg/protocol"
)

const requestTimeout = 15 * time.Second

// Dispatcher posts transfer requests to the routing service.
type Dispatcher struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

func NewDispatcher(baseURL string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    baseURL,
		logger:     logger,
	}
}

type transferRequest struct {
	Kind    string `json:"kind"`
	Target  string `json:"target"`
	Contact string `json:"contact"`
}

func (d *Dispatcher) Transfer(ctx context.Context, kind protocol.TransferKind, target, contact string) (map[string]any, error) {
	body, err := json.Marshal(transferRequest{
		Kind:    string(kind),
		Target:  target,
		Contact: contact,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transfer request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/transfers", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build transfer request: %w", err)
	}

	request.Header.Set("Content-Type", "application/json")

	response, err := d.httpClient.Do(request)
	if err != nil {
		return nil, protocol.NewAdapterError("handover", err)
	}

	defer func() {
		err := response.Body.Close()
		if err != nil {
			d.logger.WarnContext(ctx, "failed to close transfer response body", "error", err)
		}
	}()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, protocol.NewAdapterError("handover",
			fmt.Errorf("transfer returned status %d", response.StatusCode))
	}

	result := make(map[string]any)

	err = json.NewDecoder(response.Body).Decode(&result)
	if err != nil {
		d.logger.WarnContext(ctx, "could not decode transfer response", "error", err)

		result = map[string]any{}
	}

	result["transferred"] = true

	return result, nil
}

// Package whatsapp delivers messages through the WhatsApp Cloud API. The
// channel ID passed to Send is the WhatsApp Business phone number ID.
package whatsapp

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

const defaultBaseURL = "https://graph.facebook.com/v18.0"

const requestTimeout = 30 * time.Second

// Client calls the WhatsApp Cloud API.
type Client struct {
	httpClient  *http.Client
	accessToken string
	baseURL     string
	logger      *slog.Logger
}

// NewClient creates a WhatsApp client with the given Graph API access token.
func NewClient(accessToken string, logger *slog.Logger) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: requestTimeout},
		accessToken: accessToken,
		baseURL:     defaultBaseURL,
		logger:      logger,
	}
}

// WithBaseURL overrides the Graph API base URL. Used by tests.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = baseURL

	return c
}

type textMessage struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// Send delivers a text message to a contact through the given phone number.
func (c *Client) Send(ctx context.Context, channelID, recipient, content string) (protocol.DeliveryResult, error) {
	message := textMessage{
		MessagingProduct: "whatsapp",
		To:               recipient,
		Type:             "text",
	}
	message.Text.Body = content

	body, err := json.Marshal(message)
	if err != nil {
		return protocol.DeliveryResult{}, fmt.Errorf("failed to marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, channelID)

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return protocol.DeliveryResult{}, fmt.Errorf("failed to build request: %w", err)
	}

	request.Header.Set("Authorization", "Bearer "+c.accessToken)
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return protocol.DeliveryResult{}, protocol.NewAdapterError("whatsapp", err)
	}

	defer func() {
		err := response.Body.Close()
		if err != nil {
			c.logger.WarnContext(ctx, "failed to close response body", "error", err)
		}
	}()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(response.Body, 4096))

		return protocol.DeliveryResult{}, protocol.NewAdapterError("whatsapp",
			fmt.Errorf("send returned status %d: %s", response.StatusCode, payload))
	}

	var parsed sendResponse

	err = json.NewDecoder(response.Body).Decode(&parsed)
	if err != nil {
		c.logger.WarnContext(ctx, "could not decode send response", "error", err)
	}

	result := protocol.DeliveryResult{Delivered: true, Channel: channelID}
	if len(parsed.Messages) > 0 {
		result.MessageID = parsed.Messages[0].ID
	}

	return result, nil
}

type mediaInfo struct {
	URL string `json:"url"`
}

// DownloadMedia fetches the raw bytes of a received media object, resolving
// the media ID to its download URL first.
func (c *Client) DownloadMedia(ctx context.Context, mediaID string) ([]byte, error) {
	info, err := c.mediaURL(ctx, mediaID)
	if err != nil {
		return nil, err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, info, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build media request: %w", err)
	}

	request.Header.Set("Authorization", "Bearer "+c.accessToken)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, protocol.NewAdapterError("whatsapp", err)
	}

	defer func() {
		err := response.Body.Close()
		if err != nil {
			c.logger.WarnContext(ctx, "failed to close media body", "error", err)
		}
	}()

	if response.StatusCode != http.StatusOK {
		return nil, protocol.NewAdapterError("whatsapp",
			fmt.Errorf("media download returned status %d", response.StatusCode))
	}

	payload, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, protocol.NewAdapterError("whatsapp", fmt.Errorf("failed to read media body: %w", err))
	}

	return payload, nil
}

func (c *Client) mediaURL(ctx context.Context, mediaID string) (string, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+mediaID, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build media lookup request: %w", err)
	}

	request.Header.Set("Authorization", "Bearer "+c.accessToken)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return "", protocol.NewAdapterError("whatsapp", err)
	}

	defer func() {
		err := response.Body.Close()
		if err != nil {
			c.logger.WarnContext(ctx, "failed to close media lookup body", "error", err)
		}
	}()

	if response.StatusCode != http.StatusOK {
		return "", protocol.NewAdapterError("whatsapp",
			fmt.Errorf("media lookup returned status %d", response.StatusCode))
	}

	var info mediaInfo

	err = json.NewDecoder(response.Body).Decode(&info)
	if err != nil {
		return "", fmt.Errorf("failed to decode media info: %w", err)
	}

	if info.URL == "" {
		return "", protocol.NewAdapterError("whatsapp", fmt.Errorf("media %s has no download URL", mediaID))
	}

	return info.URL, nil
}

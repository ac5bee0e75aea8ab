package whatsapp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapflow/zapflow/pkg/protocol"
)

func TestClient_Send(t *testing.T) {
	t.Parallel()

	var received map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/556199990000/messages", r.URL.Path)
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.abc"}]}`))
	}))
	defer server.Close()

	client := NewClient("token-123", slog.Default()).WithBaseURL(server.URL)

	result, err := client.Send(context.Background(), "556199990000", "5511988887777", "Olá!")
	require.NoError(t, err)
	assert.True(t, result.Delivered)
	assert.Equal(t, "wamid.abc", result.MessageID)

	assert.Equal(t, "whatsapp", received["messaging_product"])
	assert.Equal(t, "5511988887777", received["to"])

	text, ok := received["text"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Olá!", text["body"])
}

func TestClient_SendErrorStatusIsAdapterError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient("token", slog.Default()).WithBaseURL(server.URL)

	_, err := client.Send(context.Background(), "556199990000", "5511988887777", "oi")
	require.Error(t, err)
	assert.True(t, protocol.IsAdapterError(err))
}

func TestClient_DownloadMedia(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)

	defer server.Close()

	mux.HandleFunc("/media-1", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"url": server.URL + "/download/media-1"})
	})
	mux.HandleFunc("/download/media-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte("audio-bytes"))
	})

	client := NewClient("token", slog.Default()).WithBaseURL(server.URL)

	payload, err := client.DownloadMedia(context.Background(), "media-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("audio-bytes"), payload)
}

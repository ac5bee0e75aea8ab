package webhook

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

func TestCaller_Call(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "T-42", payload["ticket"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"accepted":true}`))
	}))
	defer server.Close()

	caller := NewCaller(slog.Default())

	result, err := caller.Call(context.Background(), http.MethodPost, server.URL, map[string]any{"ticket": "T-42"})
	require.NoError(t, err)
	assert.Equal(t, true, result["accepted"])
	assert.Equal(t, http.StatusOK, result["status_code"])
}

func TestCaller_NonSuccessStatusIsAdapterError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	caller := NewCaller(slog.Default())

	_, err := caller.Call(context.Background(), http.MethodPost, server.URL, nil)
	require.Error(t, err)
	assert.True(t, protocol.IsAdapterError(err))
}

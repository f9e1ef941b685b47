package flipflop

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/solmate-labs/solmate-bot/internal/errors"
	"github.com/solmate-labs/solmate-bot/pkg/config"
)

func writeJSON(w http.ResponseWriter, payload map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(config.FlipflopConfig{
		BaseURL:       srv.URL,
		QueryTimeout:  2 * time.Second,
		ActionTimeout: 2 * time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClient_MintData(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/mint-data", r.URL.Path)
		assert.Equal(t, "TokenAddr111", r.URL.Query().Get("token"))
		assert.Equal(t, "Wallet111", r.URL.Query().Get("wallet"))

		writeJSON(w, map[string]any{
			"success": true,
			"data": MintData{
				TokenAddress: "TokenAddr111",
				Symbol:       "FLIP",
				Decimals:     9,
				WalletMinted: 4200,
			},
		})
	}))

	data, err := c.MintData(context.Background(), "TokenAddr111", "Wallet111")
	require.NoError(t, err)
	assert.Equal(t, "FLIP", data.Symbol)
	assert.Equal(t, uint64(4200), data.WalletMinted)
}

func TestClient_MintRejected(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/mint", r.URL.Path)

		var req MintRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "urc-1", req.URC)

		writeJSON(w, map[string]any{
			"success": false,
			"error":   "insufficient funds for mint fee",
		})
	}))

	_, err := c.Mint(context.Background(), MintRequest{Wallet: "W", TokenAddress: "T", URC: "urc-1"})
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "errors.insufficient_balance", appErr.UserMessage)
}

func TestClient_NotFound(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := c.URCData(context.Background(), "missing")
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "errors.not_found", appErr.UserMessage)
}

func TestClient_Timeout(t *testing.T) {
	block := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	// release the handler before srv.Close waits on it
	t.Cleanup(func() { close(block) })

	c := New(config.FlipflopConfig{
		BaseURL:       srv.URL,
		QueryTimeout:  50 * time.Millisecond,
		ActionTimeout: 50 * time.Millisecond,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := c.Refund(context.Background(), RefundRequest{Wallet: "W", TokenAddress: "T"})
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "errors.timeout", appErr.UserMessage)
}

func TestClient_SetURC(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/urc", r.URL.Path)
		writeJSON(w, map[string]any{"success": true})
	}))

	err := c.SetURC(context.Background(), SetURCRequest{Wallet: "W", TokenAddress: "T", Code: "my-code"})
	assert.NoError(t, err)
}

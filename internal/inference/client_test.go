package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloomweaver/backend/internal/common"
	"github.com/bloomweaver/backend/internal/logging"
)

func sseServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Options{APIKey: "test-key", BaseURL: srv.URL}, logging.NewJSON())
}

func TestStream_AccumulatesDeltas(t *testing.T) {
	client := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req completionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		assert.Equal(t, "llama-3.1-8b-instant", req.Model)

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{}}],\"usage\":{\"completion_tokens\":2}}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	var deltas []string
	res, err := client.Stream(context.Background(), Request{
		Model:    "llama-3.1-8b-instant",
		Messages: []Message{{Role: "user", Content: "hi"}},
	}, func(delta string) {
		deltas = append(deltas, delta)
	})

	require.NoError(t, err)
	assert.Equal(t, "Hello", res.Content)
	assert.Equal(t, int64(2), res.CompletionTokens)
	assert.Equal(t, []string{"Hel", "lo"}, deltas)
}

func TestStream_SkipsMalformedFrames(t *testing.T) {
	client := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, ": keepalive comment\n\n")
		fmt.Fprint(w, "data: not json at all\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	res, err := client.Stream(context.Background(), Request{Model: "m"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Content)
	assert.Zero(t, res.CompletionTokens)
}

func TestStream_UpstreamErrorMessage(t *testing.T) {
	client := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limit exceeded"}}`)
	})

	res, err := client.Stream(context.Background(), Request{Model: "m"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrorUpstream)
	assert.Contains(t, err.Error(), "rate limit exceeded")
	assert.NotNil(t, res)
	assert.Empty(t, res.Content)
}

func TestStream_UpstreamErrorWithoutBody(t *testing.T) {
	client := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Stream(context.Background(), Request{Model: "m"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrorUpstream)
	assert.Contains(t, err.Error(), "502")
}

func TestStream_PartialContentOnInterrupt(t *testing.T) {
	client := sseServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\n")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		// Drop the connection mid-stream.
		conn, _, err := w.(http.Hijacker).Hijack()
		require.NoError(t, err)
		conn.Close()
	})

	res, err := client.Stream(context.Background(), Request{Model: "m"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrorUpstream)
	assert.Equal(t, "partial", res.Content)
}

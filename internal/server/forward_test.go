package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clawrouter/claw-router/internal/routing"
	"github.com/clawrouter/claw-router/internal/telemetry"
	"github.com/clawrouter/claw-router/internal/types"
)

// errAfterReader hands back data once, then always fails with err instead
// of returning io.EOF, simulating a body read cut short by a client
// disconnect or a canceled request context.
type errAfterReader struct {
	data []byte
	err  error
	sent bool
}

func (r *errAfterReader) Read(p []byte) (int, error) {
	if r.sent {
		return 0, r.err
	}
	r.sent = true
	return copy(p, r.data), nil
}

func TestCopyStreaming_CleanEOFReturnsNil(t *testing.T) {
	w := httptest.NewRecorder()
	body := &errAfterReader{data: []byte("data: hello\n\n"), err: io.EOF}

	err := copyStreaming(w, body)

	assert.NoError(t, err)
	assert.Equal(t, "data: hello\n\n", w.Body.String())
}

func TestCopyStreaming_CanceledContextReturnsError(t *testing.T) {
	w := httptest.NewRecorder()
	body := &errAfterReader{data: []byte("data: partial\n\n"), err: context.Canceled}

	err := copyStreaming(w, body)

	assert.ErrorIs(t, err, context.Canceled)
	// The bytes read before cancellation still reach the client; only the
	// terminal telemetry event is at stake, not the partial body.
	assert.Equal(t, "data: partial\n\n", w.Body.String())
}

// recordingHooks captures which telemetry callback fired, so tests can
// assert that a canceled stream suppresses OnCompleted in favor of
// OnError rather than firing both or neither.
type recordingHooks struct {
	completed int32
	errored   int32
	lastErr   error
}

func (h *recordingHooks) OnRouted(requestID string, decision *routing.RoutingDecision) {}
func (h *recordingHooks) OnCompleted(requestID string, usage telemetry.UsageRecord) {
	atomic.AddInt32(&h.completed, 1)
}
func (h *recordingHooks) OnError(requestID string, err error) {
	atomic.AddInt32(&h.errored, 1)
	h.lastErr = err
}

var _ telemetry.Hooks = (*recordingHooks)(nil)

func fakeUpstreamResponse(body io.ReadCloser) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
		Body:       body,
	}
}

func TestStreamSuccess_ClientDisconnectDuringStreamSuppressesOnCompleted(t *testing.T) {
	hooks := &recordingHooks{}
	srv := &Server{hooks: hooks, logger: discardLogger()}

	body := io.NopCloser(&errAfterReader{data: []byte("data: chunk\n\n"), err: context.Canceled})
	resp := fakeUpstreamResponse(body)
	decision := &routing.RoutingDecision{Model: "gpt-4o-mini"}
	req := &types.ChatRequest{Stream: true}

	w := httptest.NewRecorder()
	srv.streamSuccess(w, resp, req, decision, "gpt-4o-mini", "req-1")

	assert.EqualValues(t, 0, atomic.LoadInt32(&hooks.completed))
	assert.EqualValues(t, 1, atomic.LoadInt32(&hooks.errored))
	assert.ErrorIs(t, hooks.lastErr, context.Canceled)
}

func TestStreamSuccess_CleanStreamFiresOnCompletedOnce(t *testing.T) {
	hooks := &recordingHooks{}
	srv := &Server{hooks: hooks, logger: discardLogger()}

	body := io.NopCloser(&errAfterReader{data: []byte("data: chunk\n\n"), err: io.EOF})
	resp := fakeUpstreamResponse(body)
	decision := &routing.RoutingDecision{Model: "gpt-4o-mini"}
	req := &types.ChatRequest{Stream: true}

	w := httptest.NewRecorder()
	srv.streamSuccess(w, resp, req, decision, "gpt-4o-mini", "req-2")

	assert.EqualValues(t, 1, atomic.LoadInt32(&hooks.completed))
	assert.EqualValues(t, 0, atomic.LoadInt32(&hooks.errored))
}

func TestStreamSuccess_NonStreamingCopyErrorSuppressesOnCompleted(t *testing.T) {
	hooks := &recordingHooks{}
	srv := &Server{hooks: hooks, logger: discardLogger()}

	body := io.NopCloser(&errAfterReader{data: []byte(`{"partial":`), err: context.Canceled})
	resp := fakeUpstreamResponse(body)
	decision := &routing.RoutingDecision{Model: "gpt-4o-mini"}
	req := &types.ChatRequest{Stream: false}

	w := httptest.NewRecorder()
	srv.streamSuccess(w, resp, req, decision, "gpt-4o-mini", "req-3")

	assert.EqualValues(t, 0, atomic.LoadInt32(&hooks.completed))
	assert.EqualValues(t, 1, atomic.LoadInt32(&hooks.errored))
}

package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeStatus(t *testing.T, w *httptest.ResponseRecorder) statusResponse {
	t.Helper()
	var resp statusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestLiveEndpoint_AllHealthy(t *testing.T) {
	h := New()
	h.AddLivenessCheck("noop", time.Second, func(context.Context) error { return nil })

	w := httptest.NewRecorder()
	h.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeStatus(t, w).Status)
}

func TestProbe_FailureThreshold(t *testing.T) {
	boom := errors.New("down")
	p := newProbe("db", time.Second, func(context.Context) error { return boom })

	ctx := context.Background()

	// Below the threshold the probe still reports healthy.
	p.run(ctx)
	p.run(ctx)
	assert.True(t, p.healthy.Load())

	p.run(ctx)
	assert.False(t, p.healthy.Load())

	msg, failed := p.failure()
	assert.True(t, failed)
	assert.Equal(t, "down", msg)
}

func TestProbe_RecoversAfterSuccess(t *testing.T) {
	var err error = errors.New("down")
	p := newProbe("db", time.Second, func(context.Context) error { return err })

	ctx := context.Background()
	for range defaultFailureThreshold {
		p.run(ctx)
	}
	require.False(t, p.healthy.Load())

	err = nil
	p.run(ctx)
	assert.True(t, p.healthy.Load())
}

func TestReadyEndpoint_NotReadyUntilMarked(t *testing.T) {
	h := New()

	w := httptest.NewRecorder()
	h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decodeStatus(t, w)
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Contains(t, resp.Checks, "_readiness")

	h.SetReady(true)
	w = httptest.NewRecorder()
	h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIsReady_FailingReadinessCheck(t *testing.T) {
	h := New()
	h.AddReadinessCheck("db", time.Second, func(context.Context) error {
		return errors.New("connection refused")
	})
	h.SetReady(true)

	require.True(t, h.IsReady(), "probe starts healthy before any run")

	ctx := context.Background()
	for _, p := range h.readiness {
		for range defaultFailureThreshold {
			p.run(ctx)
		}
	}
	assert.False(t, h.IsReady())
}

func TestStartStop(t *testing.T) {
	h := New()
	ran := make(chan struct{}, 1)
	h.AddLivenessCheck("tick", time.Second, func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	})

	h.Start(context.Background(), 10*time.Millisecond)
	defer h.Stop()

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("check never ran")
	}
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(1_000_000)(context.Background()))
	assert.Error(t, GoroutineCountCheck(0)(context.Background()))
}

func TestUptimeCheck(t *testing.T) {
	assert.Error(t, UptimeCheck(time.Now(), time.Hour)(context.Background()))
	assert.NoError(t, UptimeCheck(time.Now().Add(-time.Hour), time.Minute)(context.Background()))
}

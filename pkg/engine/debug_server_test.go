package engine

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/retain/pkg/core"
)

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestDebugHandler_Health(t *testing.T) {
	r := newTestRunner(t, counter{})
	rec := get(t, r.DebugHandler(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestDebugHandler_MethodNotAllowed(t *testing.T) {
	r := newTestRunner(t, counter{})
	rec := httptest.NewRecorder()
	r.DebugHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestDebugHandler_ElementTree(t *testing.T) {
	r := newTestRunner(t, counter{})
	rec := get(t, r.DebugHandler(), "/element-tree")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "no tree before Start")

	_, err := r.Start()
	require.NoError(t, err)

	rec = get(t, r.DebugHandler(), "/element-tree")
	require.Equal(t, http.StatusOK, rec.Code)
	var tree core.DiagnosticsNode
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tree))
	assert.Equal(t, "engine.counter", tree.WidgetType)
	assert.True(t, tree.HasState)
	require.Len(t, tree.Children, 1)
	assert.Equal(t, "*engine.leafRender", tree.Children[0].RenderObject)

	rec = get(t, r.DebugHandler(), "/element-tree?format=yaml")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "widget: engine.counter"))
}

func TestDebugHandler_FramesAndStatus(t *testing.T) {
	r := newTestRunner(t, counter{})
	_, err := r.Start()
	require.NoError(t, err)
	r.Dispatch(func() { panic("bad callback") })
	_, _ = r.StepFrame()
	_, err = r.StepFrame()
	require.NoError(t, err)

	rec := get(t, r.DebugHandler(), "/frames?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	var timeline FrameTimeline
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &timeline))
	require.Len(t, timeline.Reports, 2)
	assert.Equal(t, uint64(2), timeline.Reports[0].Cycle)

	rec = get(t, r.DebugHandler(), "/frames?errors=true")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &timeline))
	require.Len(t, timeline.Reports, 1)
	assert.Contains(t, timeline.Reports[0].Errors[0], "bad callback")

	rec = get(t, r.DebugHandler(), "/status")
	var status RunnerStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Started)
	assert.Equal(t, uint64(3), status.Cycles)
	assert.Equal(t, 2, status.Elements)

	rec = get(t, r.DebugHandler(), "/status?format=yaml")
	assert.Contains(t, rec.Body.String(), "started: true")
}

func TestServeDebug_FailFastOnPortConflict(t *testing.T) {
	blocker, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer blocker.Close()

	r := newTestRunner(t, counter{})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err = r.serveDebug(ctx, blocker.Addr().String())
	assert.ErrorContains(t, err, "debug server listen")
}

func TestServeDebug_StopsWithContext(t *testing.T) {
	r := newTestRunner(t, counter{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.serveDebug(ctx, "127.0.0.1:0") }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}

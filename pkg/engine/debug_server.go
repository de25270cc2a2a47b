package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DebugHandler serves the runner's diagnostics over HTTP:
//
//	/health        liveness
//	/element-tree  element tree snapshot (?format=yaml for YAML)
//	/frames        retained frame reports (?limit=N, ?slow=true, ?errors=true)
//	/status        runner state
func (r *Runner) DebugHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", r.handleHealth)
	mux.HandleFunc("/element-tree", r.handleElementTree)
	mux.HandleFunc("/frames", r.handleFrames)
	mux.HandleFunc("/status", r.handleStatus)
	return mux
}

// serveDebug runs the diagnostics server on addr until ctx is done.
func (r *Runner) serveDebug(ctx context.Context, addr string) error {
	// Bind first to fail fast on port conflicts.
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("debug server listen: %w", err)
	}
	server := &http.Server{
		Handler:           r.DebugHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	r.logger.Info("debug server listening", "addr", listener.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return fmt.Errorf("debug server: %w", err)
	}
}

func allowGet(w http.ResponseWriter, req *http.Request) bool {
	if req.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	// Encode to a buffer first so we can still report errors.
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, fmt.Sprintf("json encode error: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (r *Runner) handleHealth(w http.ResponseWriter, req *http.Request) {
	if !allowGet(w, req) {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (r *Runner) handleElementTree(w http.ResponseWriter, req *http.Request) {
	if !allowGet(w, req) {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			http.Error(w, fmt.Sprintf("panic: %v", rec), http.StatusInternalServerError)
		}
	}()

	if r.Root() == nil {
		http.Error(w, "no element tree", http.StatusServiceUnavailable)
		return
	}
	tree := r.Snapshot()

	if req.URL.Query().Get("format") == "yaml" {
		var buf bytes.Buffer
		if err := tree.DumpYAML(&buf); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.Write(buf.Bytes())
		return
	}
	writeJSON(w, tree)
}

func (r *Runner) handleFrames(w http.ResponseWriter, req *http.Request) {
	if !allowGet(w, req) {
		return
	}
	timeline := r.Reports()
	applyFrameFilters(req, &timeline)
	writeJSON(w, timeline)
}

// RunnerStatus is the /status response shape.
type RunnerStatus struct {
	Started  bool   `json:"started" yaml:"started"`
	Stopped  bool   `json:"stopped" yaml:"stopped"`
	Failed   string `json:"failed,omitempty" yaml:"failed,omitempty"`
	Cycles   uint64 `json:"cycles" yaml:"cycles"`
	Dirty    int    `json:"dirty" yaml:"dirty"`
	Elements int    `json:"elements" yaml:"elements"`
}

// Status reports the runner's current state.
func (r *Runner) Status() RunnerStatus {
	r.frameLock.Lock()
	defer r.frameLock.Unlock()
	status := RunnerStatus{
		Started: r.started,
		Stopped: r.stopped.Load(),
		Cycles:  r.cycle.Load(),
		Dirty:   r.owner.DirtyCount(),
	}
	if r.failed != nil {
		status.Failed = r.failed.Error()
	}
	status.Elements = countElements(r.root)
	return status
}

func (r *Runner) handleStatus(w http.ResponseWriter, req *http.Request) {
	if !allowGet(w, req) {
		return
	}
	status := r.Status()
	if req.URL.Query().Get("format") == "yaml" {
		data, err := yaml.Marshal(status)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.Write(data)
		return
	}
	writeJSON(w, status)
}

func applyFrameFilters(req *http.Request, timeline *FrameTimeline) {
	query := req.URL.Query()
	limit := 0
	if value := query.Get("limit"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	var filters []func(FrameReport) bool
	if parseBoolQuery(req, "slow") {
		threshold := time.Duration(timeline.ThresholdMs * float64(time.Millisecond))
		filters = append(filters, func(f FrameReport) bool { return f.Duration > threshold })
	}
	if parseBoolQuery(req, "errors") {
		filters = append(filters, func(f FrameReport) bool {
			return len(f.Errors) > 0 || len(f.Teardowns) > 0 || f.Failed
		})
	}
	if len(filters) > 0 {
		filtered := make([]FrameReport, 0, len(timeline.Reports))
	outer:
		for _, report := range timeline.Reports {
			for _, f := range filters {
				if !f(report) {
					continue outer
				}
			}
			filtered = append(filtered, report)
		}
		timeline.Reports = filtered
	}

	if limit > 0 && len(timeline.Reports) > limit {
		timeline.Reports = timeline.Reports[len(timeline.Reports)-limit:]
	}
}

func parseBoolQuery(req *http.Request, key string) bool {
	value := req.URL.Query().Get(key)
	if value == "" {
		return false
	}
	parsed, err := strconv.ParseBool(value)
	return err == nil && parsed
}

package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/go-drift/retain/pkg/config"
	"github.com/go-drift/retain/pkg/core"
	"github.com/go-drift/retain/pkg/errors"
	"github.com/go-drift/retain/pkg/layout"
)

var (
	// ErrNotStarted is returned by StepFrame before Start.
	ErrNotStarted = stderrors.New("runner not started")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = stderrors.New("runner already started")
	// ErrStopped is returned once Stop has torn the tree down.
	ErrStopped = stderrors.New("runner stopped")
	// ErrFailed wraps the invariant violation that halted the runner. Cycles
	// are refused until SetRoot installs a fresh tree.
	ErrFailed = stderrors.New("runner halted after an invariant violation")
)

// Backend receives the render objects that need layout and paint after each
// cycle, shallowest first. The core never lays out or paints on its own.
type Backend interface {
	Flush(layout, paint []layout.RenderObject)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(layout, paint []layout.RenderObject)

func (f BackendFunc) Flush(layout, paint []layout.RenderObject) { f(layout, paint) }

// Option configures a Runner.
type Option func(*Runner)

// WithOwner uses owner instead of a fresh BuildOwner.
func WithOwner(owner *core.BuildOwner) Option {
	return func(r *Runner) { r.owner = owner }
}

// WithLogger sets the logger for cycle and failure records.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithConfig applies cfg to the runner and its build owner.
func WithConfig(cfg *config.Config) Option {
	return func(r *Runner) { r.cfg = cfg }
}

// WithConfigWatch makes Run reload the config file at path when it changes.
func WithConfigWatch(path string) Option {
	return func(r *Runner) { r.watchPath = path }
}

// WithBackend hands dirty render objects to backend after each cycle.
func WithBackend(backend Backend) Option {
	return func(r *Runner) { r.backend = backend }
}

// Runner drives an element tree: it mounts the root, runs queued callbacks
// and flushes rebuilds once per cycle. StepFrame and the tree belong to one
// goroutine at a time; Dispatch, RequestFrame and SetRoot may be called from
// any goroutine.
type Runner struct {
	frameLock sync.Mutex
	owner     *core.BuildOwner
	root      core.Element
	widget    core.Widget
	logger    *slog.Logger
	backend   Backend
	reports   *ReportBuffer

	cfgMu     sync.Mutex
	cfg       *config.Config
	watchPath string

	dispatchMu    sync.Mutex
	dispatchQueue []func()

	wake    chan struct{}
	stopCh  chan struct{}
	cycle   atomic.Uint64
	started bool
	stopped atomic.Bool
	failed  *errors.InvariantError
	// cycleErrs collects the errors of the running cycle.
	cycleErrs []error
}

// NewRunner creates a runner for root. Nothing is mounted until Start.
func NewRunner(root core.Widget, opts ...Option) *Runner {
	r := &Runner{
		widget: root,
		wake:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.owner == nil {
		r.owner = core.NewBuildOwner()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.cfg == nil {
		r.cfg = config.Default()
	}
	r.reports = NewReportBuffer(r.cfg.Debug.Reports, r.cfg.Debug.SlowCycle.Std())
	r.applyConfig(r.cfg)
	r.owner.OnNeedsFrame = r.RequestFrame
	return r
}

// Owner returns the runner's build owner.
func (r *Runner) Owner() *core.BuildOwner {
	return r.owner
}

// Config returns the configuration in effect.
func (r *Runner) Config() *config.Config {
	r.cfgMu.Lock()
	defer r.cfgMu.Unlock()
	return r.cfg
}

func (r *Runner) applyConfig(cfg *config.Config) {
	r.cfgMu.Lock()
	r.cfg = cfg
	r.cfgMu.Unlock()
	r.owner.MaxFlushPasses = cfg.Scheduler.MaxFlushPasses
	r.owner.SetDebugMode(cfg.Debug.Checks)
	r.reports.SetThreshold(cfg.Debug.SlowCycle.Std())
}

// Start mounts the root widget and returns the report of that first cycle.
func (r *Runner) Start() (*FrameReport, error) {
	r.frameLock.Lock()
	defer r.frameLock.Unlock()

	if r.stopped.Load() {
		return nil, ErrStopped
	}
	if r.started {
		return nil, ErrAlreadyStarted
	}
	r.started = true

	report := r.beginReport()
	root, err := core.MountRoot(r.widget, r.owner)
	r.root = root
	return r.finishReport(report, err)
}

// Root returns the mounted root element, or nil.
func (r *Runner) Root() core.Element {
	r.frameLock.Lock()
	defer r.frameLock.Unlock()
	return r.root
}

// RequestFrame wakes Run to step a cycle if work is pending. It never
// blocks.
func (r *Runner) RequestFrame() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Dispatch queues callback to run on the UI goroutine at the start of the
// next cycle, before rebuilds are flushed.
func (r *Runner) Dispatch(callback func()) {
	if callback == nil {
		return
	}
	r.dispatchMu.Lock()
	r.dispatchQueue = append(r.dispatchQueue, callback)
	r.dispatchMu.Unlock()
	r.RequestFrame()
}

func (r *Runner) drainDispatchQueue() []func() {
	r.dispatchMu.Lock()
	callbacks := r.dispatchQueue
	r.dispatchQueue = nil
	r.dispatchMu.Unlock()
	return callbacks
}

func (r *Runner) hasDispatch() bool {
	r.dispatchMu.Lock()
	defer r.dispatchMu.Unlock()
	return len(r.dispatchQueue) > 0
}

// SetRoot replaces the root widget on the next cycle. The existing tree is
// reconciled against it; a runner halted by an invariant violation discards
// its tree and mounts root fresh.
func (r *Runner) SetRoot(root core.Widget) {
	r.Dispatch(func() { r.replaceRoot(root) })
}

func (r *Runner) replaceRoot(widget core.Widget) {
	r.widget = widget
	if r.failed != nil {
		if err := r.discardTree(); err != nil {
			r.logger.Warn("discarding failed tree", "err", err)
		}
		r.failed = nil
		root, err := core.MountRoot(widget, r.owner)
		r.root = root
		r.noteError(err)
		return
	}
	root, err := core.UpdateRoot(r.root, widget, r.owner)
	r.root = root
	r.noteError(err)
}

// discardTree unmounts the current tree, tolerating the damage an invariant
// violation may have left behind.
func (r *Runner) discardTree() (err error) {
	root := r.root
	r.root = nil
	if root == nil || root.Lifecycle() != core.LifecycleActive {
		return nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("unmount: %v", rec)
		}
	}()
	return core.UnmountRoot(root)
}

func (r *Runner) noteError(err error) {
	if err == nil {
		return
	}
	var inv *errors.InvariantError
	if stderrors.As(err, &inv) {
		r.failed = inv
	}
	r.cycleErrs = append(r.cycleErrs, err)
}

// StepFrame runs one update cycle: queued callbacks first, then a build
// flush. It returns the cycle's report along with the joined errors of the
// cycle: uncaught build errors or the invariant violation that halted the
// runner.
func (r *Runner) StepFrame() (*FrameReport, error) {
	r.frameLock.Lock()
	defer r.frameLock.Unlock()

	if r.stopped.Load() {
		return nil, ErrStopped
	}
	if !r.started {
		return nil, ErrNotStarted
	}

	report := r.beginReport()
	for _, callback := range r.drainDispatchQueue() {
		r.runCallback(callback)
	}
	if r.failed != nil {
		err := fmt.Errorf("%w: %w", ErrFailed, r.failed)
		report.Failed = true
		report.Duration = time.Since(report.Started)
		r.cycleErrs = nil
		return report, err
	}
	r.noteError(r.owner.FlushBuild())
	return r.finishReport(report, nil)
}

func (r *Runner) runCallback(callback func()) {
	defer func() {
		if rec := recover(); rec != nil {
			if inv, ok := rec.(*errors.InvariantError); ok {
				errors.ReportInvariant(inv)
				r.noteError(inv)
				return
			}
			perr := &errors.PanicError{
				Op:         "dispatch",
				Value:      rec,
				StackTrace: errors.CaptureStack(),
				Timestamp:  time.Now(),
			}
			errors.ReportPanic(perr)
			r.noteError(perr)
		}
	}()
	callback()
}

func (r *Runner) beginReport() *FrameReport {
	cycle := r.cycle.Add(1)
	r.logger.Debug("cycle start", "cycle", cycle)
	return &FrameReport{Cycle: cycle, Started: time.Now()}
}

func (r *Runner) finishReport(report *FrameReport, err error) (*FrameReport, error) {
	r.noteError(err)
	errs := r.cycleErrs
	r.cycleErrs = nil

	pipeline := r.owner.Pipeline()
	report.Stats = r.owner.TakeStats()
	report.DirtyLayout = pipeline.DirtyLayoutCount()
	report.DirtyPaint = pipeline.DirtyPaintCount()
	for _, teardown := range r.owner.TakeTeardownErrors() {
		report.Teardowns = append(report.Teardowns, teardown.Error())
	}
	for _, e := range errs {
		report.Errors = append(report.Errors, e.Error())
	}
	report.Failed = r.failed != nil
	if r.backend != nil && !report.Failed {
		r.backend.Flush(pipeline.TakeLayout(), pipeline.TakePaint())
	}
	report.Duration = time.Since(report.Started)
	r.reports.Add(*report)

	joined := stderrors.Join(errs...)
	switch {
	case report.Failed:
		r.logger.Error("cycle halted", "cycle", report.Cycle, "err", r.failed)
		return report, fmt.Errorf("%w: %w", ErrFailed, r.failed)
	case joined != nil:
		r.logger.Error("cycle failed", "cycle", report.Cycle, "errors", len(errs))
	default:
		r.logger.Debug("cycle end",
			"cycle", report.Cycle,
			"rebuilds", report.Stats.Rebuilds,
			"passes", report.Stats.Passes,
			"duration", report.Duration,
		)
	}
	return report, joined
}

// needsFrame reports whether a cycle would do anything.
func (r *Runner) needsFrame() bool {
	if r.hasDispatch() {
		return true
	}
	if r.owner.DirtyCount() > 0 {
		return true
	}
	return r.backend != nil && r.owner.NeedsWork()
}

// Run mounts the root if needed and steps a cycle whenever work is requested
// or trigger fires with work pending. It also reloads the watched config
// file and serves diagnostics when configured. Run returns when ctx is done
// or Stop is called; cycle errors are logged, not returned.
func (r *Runner) Run(ctx context.Context, trigger <-chan struct{}) error {
	r.frameLock.Lock()
	started := r.started
	r.frameLock.Unlock()
	if !started {
		if _, err := r.Start(); err != nil && !stderrors.Is(err, ErrAlreadyStarted) {
			if stderrors.Is(err, ErrStopped) {
				return err
			}
			r.logger.Error("initial mount failed", "err", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-r.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		return r.loop(ctx, trigger)
	})
	if r.watchPath != "" {
		p.Go(func(ctx context.Context) error {
			return config.Watch(ctx, r.watchPath, r.onConfigChange)
		})
	}
	if addr := r.Config().Debug.Addr; addr != "" {
		p.Go(func(ctx context.Context) error {
			return r.serveDebug(ctx, addr)
		})
	}
	err := p.Wait()
	if r.stopped.Load() {
		return nil
	}
	return err
}

func (r *Runner) loop(ctx context.Context, trigger <-chan struct{}) error {
	// Work queued before Run started.
	if r.needsFrame() {
		r.step()
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.wake:
			if r.needsFrame() {
				r.step()
			}
		case _, ok := <-trigger:
			if !ok {
				trigger = nil
				continue
			}
			if r.needsFrame() {
				r.step()
			}
		}
	}
}

func (r *Runner) step() {
	if _, err := r.StepFrame(); err != nil {
		if stderrors.Is(err, ErrStopped) {
			return
		}
		// Already logged by finishReport unless the runner was halted earlier.
		if stderrors.Is(err, ErrFailed) {
			r.logger.Debug("cycle refused", "err", err)
		}
	}
}

func (r *Runner) onConfigChange(cfg *config.Config, err error) {
	if err != nil {
		r.logger.Warn("config reload failed", "err", err)
		return
	}
	r.Dispatch(func() {
		r.applyConfig(cfg)
		r.logger.Info("config reloaded", "maxFlushPasses", cfg.Scheduler.MaxFlushPasses)
	})
}

// Stop tears the tree down and makes further cycles fail. Run returns once
// its current cycle finishes. Teardown failures are returned joined.
func (r *Runner) Stop() error {
	if r.stopped.Swap(true) {
		return nil
	}
	close(r.stopCh)

	r.frameLock.Lock()
	defer r.frameLock.Unlock()
	err := r.discardTree()
	var errs []error
	if err != nil {
		errs = append(errs, err)
	}
	for _, teardown := range r.owner.TakeTeardownErrors() {
		errs = append(errs, teardown)
	}
	return stderrors.Join(errs...)
}

// Snapshot describes the mounted element tree.
func (r *Runner) Snapshot() core.DiagnosticsNode {
	depth := r.Config().Debug.TreeDepth
	r.frameLock.Lock()
	defer r.frameLock.Unlock()
	return core.DescribeTree(r.root, depth)
}

// Reports returns the retained frame reports, oldest first.
func (r *Runner) Reports() FrameTimeline {
	return r.reports.Snapshot()
}

package engine

import (
	"sync"
	"time"

	"github.com/go-drift/retain/pkg/core"
)

const (
	reportSamplesDefault      = 240
	defaultSlowCycleThreshold = 16667 * time.Microsecond
)

// FrameReport describes one update cycle.
type FrameReport struct {
	Cycle    uint64          `json:"cycle" yaml:"cycle"`
	Started  time.Time       `json:"started" yaml:"started"`
	Duration time.Duration   `json:"duration" yaml:"duration"`
	Stats    core.BuildStats `json:"stats" yaml:"stats"`
	// DirtyLayout and DirtyPaint count render objects left for the backend.
	DirtyLayout int      `json:"dirtyLayout" yaml:"dirtyLayout"`
	DirtyPaint  int      `json:"dirtyPaint" yaml:"dirtyPaint"`
	Errors      []string `json:"errors,omitempty" yaml:"errors,omitempty"`
	Teardowns   []string `json:"teardowns,omitempty" yaml:"teardowns,omitempty"`
	// Failed is set when the cycle ended with the runner halted.
	Failed bool `json:"failed,omitempty" yaml:"failed,omitempty"`
}

// FrameTimeline is the diagnostics response shape.
type FrameTimeline struct {
	Reports     []FrameReport `json:"reports"`
	SlowCycles  int           `json:"slowCycles"`
	ThresholdMs float64       `json:"thresholdMs"`
}

// ReportBuffer stores recent frame reports in a ring buffer.
type ReportBuffer struct {
	mu        sync.RWMutex
	reports   []FrameReport
	index     int
	count     int
	slow      int
	threshold time.Duration
}

// NewReportBuffer creates a buffer holding up to capacity reports. Cycles
// longer than threshold are counted as slow.
func NewReportBuffer(capacity int, threshold time.Duration) *ReportBuffer {
	if capacity <= 0 {
		capacity = reportSamplesDefault
	}
	if threshold <= 0 {
		threshold = defaultSlowCycleThreshold
	}
	return &ReportBuffer{
		reports:   make([]FrameReport, capacity),
		threshold: threshold,
	}
}

// Capacity returns the buffer capacity.
func (b *ReportBuffer) Capacity() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.reports)
}

// SetThreshold updates the slow cycle threshold.
func (b *ReportBuffer) SetThreshold(threshold time.Duration) {
	if threshold <= 0 {
		threshold = defaultSlowCycleThreshold
	}
	b.mu.Lock()
	b.threshold = threshold
	b.mu.Unlock()
}

// Add records a report.
func (b *ReportBuffer) Add(report FrameReport) {
	b.mu.Lock()
	b.reports[b.index] = report
	b.index = (b.index + 1) % len(b.reports)
	if b.count < len(b.reports) {
		b.count++
	}
	if report.Duration > b.threshold {
		b.slow++
	}
	b.mu.Unlock()
}

// Snapshot returns the reports oldest first.
func (b *ReportBuffer) Snapshot() FrameTimeline {
	b.mu.RLock()
	defer b.mu.RUnlock()

	timeline := FrameTimeline{
		SlowCycles:  b.slow,
		ThresholdMs: durationToMillis(b.threshold),
	}
	if b.count == 0 {
		return timeline
	}

	result := make([]FrameReport, b.count)
	if b.count < len(b.reports) {
		copy(result, b.reports[:b.count])
	} else {
		copy(result, b.reports[b.index:])
		copy(result[len(b.reports)-b.index:], b.reports[:b.index])
	}
	timeline.Reports = result
	return timeline
}

func durationToMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func countElements(root core.Element) int {
	if root == nil {
		return 0
	}
	count := 1
	root.VisitChildren(func(child core.Element) bool {
		count += countElements(child)
		return true
	})
	return count
}

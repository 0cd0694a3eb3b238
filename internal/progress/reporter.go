// Package progress reports bulk ingest progress through the logger.
package progress

import (
	"sync"
	"time"

	"github.com/bstardust/photo-ingest/internal/logger"
)

// Summary is the final tally of a run.
type Summary struct {
	Total     int
	Completed int
	Skipped   int
	Failed    int
	Duration  time.Duration
}

// Reporter tracks and reports ingest progress
type Reporter struct {
	mu             sync.Mutex
	total          int
	completed      int
	skipped        int
	failed         int
	failures       map[string]error
	startTime      time.Time
	lastUpdateTime time.Time
	updateInterval time.Duration
	now            func() time.Time
}

// New creates a reporter that logs at most once per interval.
func New(interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Reporter{
		updateInterval: interval,
		now:            time.Now,
	}
}

// Start resets the counters for a run of total files.
func (r *Reporter) Start(total int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.total = total
	r.completed = 0
	r.skipped = 0
	r.failed = 0
	r.failures = map[string]error{}
	r.startTime = r.now()
	r.lastUpdateTime = r.startTime

	logger.Info("Starting ingest of %d files", total)
}

// Complete marks a file as ingested
func (r *Reporter) Complete(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.completed++
	r.updateProgress()
}

// Skip marks a file as skipped, e.g. not an image
func (r *Reporter) Skip(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.skipped++
	r.updateProgress()
}

// Error marks a file as failed
func (r *Reporter) Error(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.failed++
	r.failures[name] = err
	logger.Error("Failed to ingest %s: %v", name, err)
	r.updateProgress()
}

// Failures returns the error of every failed file.
func (r *Reporter) Failures() map[string]error {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]error, len(r.failures))
	for k, v := range r.failures {
		out[k] = v
	}
	return out
}

// Finish logs and returns the final tally.
func (r *Reporter) Finish() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Summary{
		Total:     r.total,
		Completed: r.completed,
		Skipped:   r.skipped,
		Failed:    r.failed,
		Duration:  r.now().Sub(r.startTime),
	}
	logger.Info("Ingest complete: %d/%d files stored, %d skipped, %d errors in %s",
		s.Completed, s.Total, s.Skipped, s.Failed, s.Duration.Round(time.Millisecond))
	return s
}

// updateProgress logs a progress line when the interval has passed
func (r *Reporter) updateProgress() {
	now := r.now()
	if now.Sub(r.lastUpdateTime) < r.updateInterval {
		return
	}
	r.lastUpdateTime = now

	processed := r.completed + r.skipped + r.failed
	if processed == 0 || r.total == 0 {
		return
	}

	percentage := float64(processed) / float64(r.total) * 100

	eta := "unknown"
	if r.completed > 0 {
		perFile := now.Sub(r.startTime) / time.Duration(processed)
		eta = (perFile * time.Duration(r.total-processed)).Round(time.Second).String()
	}

	logger.Info("Progress: %.1f%% (%d/%d, %d stored, %d skipped, %d errors) ETA: %s",
		percentage, processed, r.total, r.completed, r.skipped, r.failed, eta)
}

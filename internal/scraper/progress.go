package scraper

import (
	"sync"
	"time"
)

// Progress tracks where a run is. It is written by the walkers and read
// concurrently by the status API.
type Progress struct {
	mu          sync.RWMutex
	runID       string
	startedAt   time.Time
	finishedAt  time.Time
	resuming    bool
	category    string
	subcategory string
	lastProduct string
	recorded    int
	skipped     int
	failures    map[FailureKind]int
}

// ProgressSnapshot is a point-in-time copy of Progress.
type ProgressSnapshot struct {
	RunID          string              `json:"run_id"`
	StartedAt      time.Time           `json:"started_at"`
	FinishedAt     *time.Time          `json:"finished_at,omitempty"`
	Elapsed        string              `json:"elapsed"`
	ResumeActive   bool                `json:"resume_active"`
	Category       string              `json:"category,omitempty"`
	Subcategory    string              `json:"subcategory,omitempty"`
	LastProduct    string              `json:"last_product,omitempty"`
	RecordsWritten int                 `json:"records_written"`
	Skipped        int                 `json:"products_skipped"`
	Failures       map[FailureKind]int `json:"failures"`
}

// NewProgress creates an empty tracker. The scraper starts it when a run begins.
func NewProgress() *Progress {
	return &Progress{failures: make(map[FailureKind]int)}
}

func (p *Progress) start(runID string, resuming bool, at time.Time) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runID = runID
	p.resuming = resuming
	p.startedAt = at
}

func (p *Progress) finish(at time.Time) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finishedAt = at
}

func (p *Progress) enter(category, subcategory string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.category = category
	p.subcategory = subcategory
}

func (p *Progress) resumeEnded() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resuming = false
}

func (p *Progress) record(product string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recorded++
	p.lastProduct = product
}

func (p *Progress) skip() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.skipped++
}

func (p *Progress) fail(kind FailureKind) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[kind]++
}

// Snapshot returns a copy safe to serialise.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	failures := make(map[FailureKind]int, len(p.failures))
	for k, v := range p.failures {
		failures[k] = v
	}

	snap := ProgressSnapshot{
		RunID:          p.runID,
		StartedAt:      p.startedAt,
		ResumeActive:   p.resuming,
		Category:       p.category,
		Subcategory:    p.subcategory,
		LastProduct:    p.lastProduct,
		RecordsWritten: p.recorded,
		Skipped:        p.skipped,
		Failures:       failures,
	}

	end := time.Now()
	if !p.finishedAt.IsZero() {
		finished := p.finishedAt
		snap.FinishedAt = &finished
		end = finished
	}
	if !p.startedAt.IsZero() {
		snap.Elapsed = end.Sub(p.startedAt).Round(time.Second).String()
	}

	return snap
}

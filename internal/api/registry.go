package api

import (
	"sync"
	"time"

	"github.com/mergelens/pkg/models"
)

// maxFinishedRuns bounds how many terminal summaries a long-lived
// server retains; the oldest finished runs are evicted first. Active
// runs are never evicted.
const maxFinishedRuns = 1000

// Registry tracks runs in memory: which merge requests have a review
// in flight, and recent summaries for the status endpoint.
type Registry struct {
	mu       sync.Mutex
	active   map[string]string // ReviewRequest.Key() -> run ID
	runs     map[string]*models.RunSummary
	finished []string // terminal run IDs, oldest first
	history  int
	started  int
	done     int
	failed   int
}

func NewRegistry() *Registry {
	return &Registry{
		active:  make(map[string]string),
		runs:    make(map[string]*models.RunSummary),
		history: maxFinishedRuns,
	}
}

// Begin registers a run for req. When a run for the same merge request
// is already active it returns that run's ID and false.
func (r *Registry) Begin(req models.ReviewRequest, runID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.active[req.Key()]; ok {
		return existing, false
	}

	r.active[req.Key()] = runID
	r.runs[runID] = &models.RunSummary{
		RunID:     runID,
		Request:   req,
		Status:    models.StatusReceived,
		StartedAt: time.Now().UTC().Format(time.RFC3339),
	}
	r.started++
	return runID, true
}

// Finish records the terminal summary and frees the merge request for
// future runs.
func (r *Registry) Finish(req models.ReviewRequest, summary *models.RunSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.active, req.Key())
	r.runs[summary.RunID] = summary
	if summary.Status == models.StatusFailed {
		r.failed++
	} else {
		r.done++
	}

	r.finished = append(r.finished, summary.RunID)
	for len(r.finished) > r.history {
		delete(r.runs, r.finished[0])
		r.finished = r.finished[1:]
	}
}

// Get returns the latest known summary for a run ID.
func (r *Registry) Get(runID string) (*models.RunSummary, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.runs[runID]
	return s, ok
}

// Stats is the shape served by GET /stats.
type Stats struct {
	ActiveReviews int `json:"active_reviews"`
	TotalStarted  int `json:"total_started"`
	Completed     int `json:"completed"`
	Failed        int `json:"failed"`
}

func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		ActiveReviews: len(r.active),
		TotalStarted:  r.started,
		Completed:     r.done,
		Failed:        r.failed,
	}
}

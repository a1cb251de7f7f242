package api

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mergelens/pkg/models"
)

func TestRegistryDuplicateRun(t *testing.T) {
	reg := NewRegistry()
	req := models.ReviewRequest{ProjectID: "42", MRIID: 7}

	id, started := reg.Begin(req, "run-1")
	require.True(t, started)
	require.Equal(t, "run-1", id)

	id, started = reg.Begin(req, "run-2")
	assert.False(t, started)
	assert.Equal(t, "run-1", id)

	reg.Finish(req, &models.RunSummary{RunID: "run-1", Request: req, Status: models.StatusDone})

	_, started = reg.Begin(req, "run-3")
	assert.True(t, started)
}

func TestRegistryEvictsOldestFinishedRuns(t *testing.T) {
	reg := NewRegistry()
	reg.history = 2

	for i := 1; i <= 3; i++ {
		req := models.ReviewRequest{ProjectID: "42", MRIID: i}
		runID := fmt.Sprintf("run-%d", i)
		_, started := reg.Begin(req, runID)
		require.True(t, started)
		reg.Finish(req, &models.RunSummary{RunID: runID, Request: req, Status: models.StatusDone})
	}

	_, ok := reg.Get("run-1")
	assert.False(t, ok, "oldest finished run should be evicted")
	for _, id := range []string{"run-2", "run-3"} {
		_, ok := reg.Get(id)
		assert.True(t, ok, id)
	}

	stats := reg.Stats()
	assert.Equal(t, 3, stats.TotalStarted)
	assert.Equal(t, 3, stats.Completed)
}

func TestRegistryNeverEvictsActiveRuns(t *testing.T) {
	reg := NewRegistry()
	reg.history = 1

	activeReq := models.ReviewRequest{ProjectID: "42", MRIID: 100}
	_, started := reg.Begin(activeReq, "run-active")
	require.True(t, started)

	for i := 1; i <= 3; i++ {
		req := models.ReviewRequest{ProjectID: "42", MRIID: i}
		runID := fmt.Sprintf("run-%d", i)
		reg.Begin(req, runID)
		reg.Finish(req, &models.RunSummary{RunID: runID, Request: req, Status: models.StatusDone})
	}

	s, ok := reg.Get("run-active")
	require.True(t, ok)
	assert.Equal(t, models.StatusReceived, s.Status)
}

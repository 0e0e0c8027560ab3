package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pgjobs/goodjob/internal/repository"
)

// StatsHandler exposes per-queue, per-state job counts (spec.md §6.5
// stats()).
type StatsHandler struct {
	jobs repository.JobStore
}

func NewStatsHandler(jobs repository.JobStore) *StatsHandler {
	return &StatsHandler{jobs: jobs}
}

type statsRow struct {
	QueueName string `json:"queue_name"`
	State     string `json:"state"`
	Count     int64  `json:"count"`
}

func (h *StatsHandler) Stats(c *gin.Context) {
	counts, err := h.jobs.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternal})
		return
	}

	rows := make([]statsRow, 0, len(counts))
	for _, sc := range counts {
		rows = append(rows, statsRow{QueueName: sc.QueueName, State: string(sc.State), Count: sc.Count})
	}
	c.JSON(http.StatusOK, gin.H{"stats": rows})
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pgjobs/goodjob/internal/pause"
)

const (
	targetKindQueue    = "queue"
	targetKindJobClass = "job_class"
)

// PauseHandler exposes the Pause Registry's mutating endpoints (spec.md
// §4.8, §6.5): pause/resume a queue or a job class.
type PauseHandler struct {
	registry *pause.Registry
}

func NewPauseHandler(registry *pause.Registry) *PauseHandler {
	return &PauseHandler{registry: registry}
}

func (h *PauseHandler) PauseQueue(c *gin.Context) {
	h.toggle(c, targetKindQueue, c.Param("name"), true)
}

func (h *PauseHandler) ResumeQueue(c *gin.Context) {
	h.toggle(c, targetKindQueue, c.Param("name"), false)
}

func (h *PauseHandler) PauseJobClass(c *gin.Context) {
	h.toggle(c, targetKindJobClass, c.Param("name"), true)
}

func (h *PauseHandler) ResumeJobClass(c *gin.Context) {
	h.toggle(c, targetKindJobClass, c.Param("name"), false)
}

func (h *PauseHandler) toggle(c *gin.Context, kind, target string, pausing bool) {
	if target == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": errMissingTarget})
		return
	}

	var err error
	if pausing {
		err = h.registry.Pause(c.Request.Context(), kind, target)
	} else {
		err = h.registry.Resume(c.Request.Context(), kind, target)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternal})
		return
	}

	c.JSON(http.StatusOK, gin.H{"target_kind": kind, "target": target, "paused": pausing})
}

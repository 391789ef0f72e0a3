package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nhle/command-center/internal/model"
	"github.com/nhle/command-center/internal/source"
	"github.com/nhle/command-center/internal/store"
)

// defaultSnoozeMinutes applies when a snooze action carries no duration.
const defaultSnoozeMinutes = 30

// handleListNotifications serves the persisted feed, newest first.
// Archived rows are excluded unless status=archived is requested.
func (s *Server) handleListNotifications(c *gin.Context) {
	opts := store.ListOptions{Limit: 50}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		opts.Limit = limit
	}

	if raw := c.Query("status"); raw != "" {
		status := model.TriageStatus(raw)
		switch status {
		case model.StatusUnread, model.StatusRead, model.StatusSnoozed,
			model.StatusArchived, model.StatusActioned:
			opts.Status = &status
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
	}

	notifications, err := s.store.List(c.Request.Context(), opts)
	if err != nil {
		s.log.Error("listing notifications failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// handleAction applies a triage action to one notification. Status
// changes are persisted first and broadcast to every client afterwards.
func (s *Server) handleAction(c *gin.Context) {
	id := c.Param("id")

	var req model.ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch req.Action {
	case model.ActionMarkRead:
		s.applyStatus(c, id, model.StatusRead, nil, 0)
	case model.ActionArchive:
		s.applyStatus(c, id, model.StatusArchived, nil, 0)
	case model.ActionSnooze:
		minutes := req.IntPayload("snooze_minutes", defaultSnoozeMinutes)
		if minutes <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid snooze duration"})
			return
		}
		until := time.Now().UTC().Add(time.Duration(minutes) * time.Minute)
		s.applyStatus(c, id, model.StatusSnoozed, &until, minutes)
	case model.ActionReply:
		s.handleReply(c, id, req)
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "unknown action " + strconv.Quote(req.Action),
		})
	}
}

// applyStatus persists a status transition and broadcasts the update.
func (s *Server) applyStatus(
	c *gin.Context,
	id string,
	status model.TriageStatus,
	snoozedUntil *time.Time,
	snoozeMinutes int,
) {
	found, err := s.store.SetStatus(c.Request.Context(), id, status, snoozedUntil)
	if err != nil {
		var transitionErr *store.InvalidTransitionError
		if errors.As(err, &transitionErr) {
			c.JSON(http.StatusConflict, gin.H{"error": transitionErr.Error()})
			return
		}
		s.log.Error("status update failed", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "status update failed"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}

	s.hub.SendUpdate(model.NotificationUpdate{
		ID:            id,
		Status:        status,
		SnoozeMinutes: snoozeMinutes,
	})
	c.JSON(http.StatusOK, gin.H{"id": id, "triage_status": status})
}

// handleReply routes a reply through the adapter named by the payload's
// routing fields, then marks the row actioned.
func (s *Server) handleReply(c *gin.Context, id string, req model.ActionRequest) {
	body := req.StringPayload("body")
	srcName := req.StringPayload("source")
	account := req.StringPayload("source_account")
	sourceID := req.StringPayload("source_id")
	if body == "" || srcName == "" || account == "" || sourceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "reply requires body, source, source_account and source_id",
		})
		return
	}

	adapter, err := s.registry.ResolveForReply(model.Source(srcName), account)
	if err != nil {
		if source.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		s.log.Error("resolving reply route failed", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reply routing failed"})
		return
	}
	if !adapter.CanReply() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": srcName + " does not support replies",
		})
		return
	}

	if err := adapter.Reply(c.Request.Context(), sourceID, body); err != nil {
		if errors.Is(err, source.ErrUnsupported) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		s.log.Error("reply failed",
			"id", id, "source", srcName, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "reply delivery failed"})
		return
	}

	s.applyStatus(c, id, model.StatusActioned, nil, 0)
}

// handleCreateTask creates a task in one of the configured trackers.
func (s *Server) handleCreateTask(c *gin.Context) {
	var req model.TaskCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.registry.CreateTask(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, source.ErrUnsupported) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error": "no tracker configured for " + strconv.Quote(req.Target),
			})
			return
		}
		s.log.Error("task creation failed",
			"target", req.Target, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "task creation failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"task": result})
}

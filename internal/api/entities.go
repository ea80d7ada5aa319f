package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ghetolay/WowBot/internal/api/middleware"
	"github.com/ghetolay/WowBot/internal/dynmsg"
	"github.com/ghetolay/WowBot/internal/logger"
)

type entityHandler struct {
	tracker *dynmsg.Tracker
}

// EntityView is the JSON form of a live entity.
type EntityView struct {
	Type       string   `json:"type"`
	ID         string   `json:"id"`
	GuildID    string   `json:"guild_id"`
	ChannelID  string   `json:"channel_id"`
	MessageIDs []string `json:"message_ids"`
	Link       string   `json:"link"`
	Status     string   `json:"status"`
	Attached   bool     `json:"attached"`
	Errors     []string `json:"errors,omitempty"`
}

func view(e *dynmsg.Entity) EntityView {
	v := EntityView{
		Type:      e.TypeID(),
		ID:        e.ID(),
		GuildID:   e.GuildID(),
		ChannelID: e.ChannelID(),
		Link:      e.Ref().Link(),
		Status:    e.Status().String(),
		Attached:  e.Attached(),
	}
	for _, m := range e.Messages() {
		v.MessageIDs = append(v.MessageIDs, m.ID)
	}
	for _, err := range e.Errors() {
		v.Errors = append(v.Errors, err.Error())
	}
	return v
}

// list handles GET /v1/entities?type=
func (h *entityHandler) list(c *gin.Context) {
	typeID := c.Query("type")
	items := []EntityView{}
	if h.tracker != nil {
		for _, e := range h.tracker.List() {
			if typeID != "" && e.TypeID() != typeID {
				continue
			}
			items = append(items, view(e))
		}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *entityHandler) find(c *gin.Context) (*dynmsg.Entity, bool) {
	if h.tracker != nil {
		if e, ok := h.tracker.Get(c.Param("id")); ok {
			return e, true
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "entity not found"})
	return nil, false
}

// get handles GET /v1/entities/:id
func (h *entityHandler) get(c *gin.Context) {
	e, ok := h.find(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, view(e))
}

// refresh handles POST /v1/entities/:id/refresh
func (h *entityHandler) refresh(c *gin.Context) {
	e, ok := h.find(c)
	if !ok {
		return
	}
	e.Refresh()
	if c.Query("wait") == "true" {
		e.Wait()
	}
	c.JSON(http.StatusAccepted, view(e))
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

// setStatus handles POST /v1/entities/:id/status
func (h *entityHandler) setStatus(c *gin.Context) {
	e, ok := h.find(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	status, ok := dynmsg.ParseStatus(strings.ToLower(req.Status))
	if !ok || status == dynmsg.StatusDisconnected {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown status %q", req.Status)})
		return
	}
	if !e.Attached() {
		c.JSON(http.StatusConflict, gin.H{"error": "entity is detached"})
		return
	}

	subject, _ := middleware.GetSubject(c)
	if status == dynmsg.StatusError {
		reason := req.Reason
		if reason == "" {
			reason = "flagged from the admin API"
		}
		e.Fail(fmt.Errorf("%s", reason))
	} else {
		e.ResetStatus(status)
	}
	logger.Infof("[api] %s %s set to %s by %q", e.TypeID(), e.ID(), status, subject)

	e.Refresh()
	e.Wait()
	c.JSON(http.StatusOK, view(e))
}

package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/gen62/genchat/internal/session"
)

type sendReq struct {
	Message string `json:"message" binding:"required"`
}

func (h *Handler) Send(c *gin.Context) {
	var req sendReq
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if err := h.Ctrl.Send(req.Message); err != nil {
		if errors.Is(err, session.ErrGenerationBusy) {
			Fail(c, http.StatusConflict, 40901, "generation already in progress")
			return
		}
		Fail(c, http.StatusInternalServerError, 50001, "failed to send message")
		return
	}
	ok(c, h.stateView())
}

func (h *Handler) Stop(c *gin.Context) {
	h.Ctrl.Stop()
	ok(c, h.stateView())
}

type editReq struct {
	SessionID string `json:"session_id" binding:"required"`
	Content   string `json:"content" binding:"required"`
}

func (h *Handler) EditMessage(c *gin.Context) {
	idx, bad := messageIndex(c)
	if bad {
		return
	}
	var req editReq
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if err := h.Ctrl.EditMessage(req.SessionID, idx, req.Content); err != nil {
		if errors.Is(err, session.ErrGenerationBusy) {
			Fail(c, http.StatusConflict, 40901, "generation already in progress")
			return
		}
		Fail(c, http.StatusInternalServerError, 50001, "failed to edit message")
		return
	}
	ok(c, h.stateView())
}

type switchReq struct {
	SessionID string `json:"session_id" binding:"required"`
	Direction string `json:"direction" binding:"required"`
}

func (h *Handler) SwitchVersion(c *gin.Context) {
	idx, bad := messageIndex(c)
	if bad {
		return
	}
	var req switchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	dir := session.Direction(req.Direction)
	if dir != session.DirectionPrev && dir != session.DirectionNext {
		Fail(c, http.StatusBadRequest, 10002, "direction must be prev or next")
		return
	}
	// Out-of-bounds switches are silent no-ops; the unchanged state is the answer.
	h.Ctrl.SwitchVersion(req.SessionID, idx, dir)
	ok(c, h.stateView())
}

type feedbackReq struct {
	SessionID string `json:"session_id" binding:"required"`
	Kind      string `json:"kind" binding:"required"`
}

func (h *Handler) ToggleFeedback(c *gin.Context) {
	idx, bad := messageIndex(c)
	if bad {
		return
	}
	var req feedbackReq
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	kind := session.FeedbackKind(req.Kind)
	if kind != session.FeedbackLike && kind != session.FeedbackDislike {
		Fail(c, http.StatusBadRequest, 10002, "kind must be like or dislike")
		return
	}
	h.Store.ToggleFeedback(req.SessionID, idx, kind)
	ok(c, h.stateView())
}

func messageIndex(c *gin.Context) (int, bool) {
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil || idx < 0 {
		Fail(c, http.StatusBadRequest, 10003, "invalid message index")
		return 0, true
	}
	return idx, false
}

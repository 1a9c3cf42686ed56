package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type prepareAudioReq struct {
	Text string `json:"text" binding:"required"`
}

func (h *Handler) PrepareAudio(c *gin.Context) {
	var req prepareAudioReq
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	h.Audio.Prepare(req.Text)
	ok(c, h.Audio.Status())
}

func (h *Handler) ToggleAudio(c *gin.Context) {
	h.Audio.PlayPause()
	ok(c, h.Audio.Status())
}

type seekReq struct {
	Percent int `json:"percent"`
}

func (h *Handler) SeekAudioPreview(c *gin.Context) {
	var req seekReq
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	h.Audio.SeekPreview(req.Percent)
	ok(c, h.Audio.Status())
}

func (h *Handler) SeekAudioCommit(c *gin.Context) {
	var req seekReq
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	h.Audio.SeekCommit(req.Percent)
	ok(c, h.Audio.Status())
}

type closeAudioReq struct {
	Animated bool `json:"animated"`
}

func (h *Handler) CloseAudio(c *gin.Context) {
	var req closeAudioReq
	_ = c.ShouldBindJSON(&req) // allow empty body: immediate close
	h.Audio.Close(req.Animated)
	ok(c, h.Audio.Status())
}

func (h *Handler) HideAudio(c *gin.Context) {
	h.Audio.Hide()
	ok(c, h.Audio.Status())
}

func (h *Handler) AudioState(c *gin.Context) {
	ok(c, h.Audio.Status())
}

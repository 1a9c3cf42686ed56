package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gen62/genchat/internal/session"
)

// stateView is the snapshot the UI renders from. Sessions come pre-sorted.
type stateView struct {
	BaseURL          string            `json:"baseUrl"`
	Model            string            `json:"model"`
	Sessions         []session.Session `json:"sessions"`
	CurrentSessionID string            `json:"currentSessionId"`
	Username         string            `json:"username"`
	IsLoggedIn       bool              `json:"isLoggedIn"`
	IsDarkMode       bool              `json:"isDarkMode"`
	IsGenerating     bool              `json:"isGenerating"`
}

func (h *Handler) stateView() stateView {
	st := h.Store.Snapshot()
	return stateView{
		BaseURL:          st.BaseURL,
		Model:            st.Model,
		Sessions:         h.Store.SortedSessions(),
		CurrentSessionID: st.CurrentSessionID,
		Username:         st.Username,
		IsLoggedIn:       st.IsLoggedIn,
		IsDarkMode:       st.IsDarkMode,
		IsGenerating:     h.Ctrl.IsGenerating(),
	}
}

func (h *Handler) GetState(c *gin.Context) {
	ok(c, h.stateView())
}

func (h *Handler) ListSessions(c *gin.Context) {
	ok(c, gin.H{"sessions": h.Store.SortedSessions()})
}

func (h *Handler) SearchSessions(c *gin.Context) {
	matches := h.Store.SearchSessions(c.Query("q"))
	ok(c, gin.H{"sessions": matches})
}

func (h *Handler) NewChat(c *gin.Context) {
	h.Store.StartNewChat()
	ok(c, h.stateView())
}

func (h *Handler) SelectSession(c *gin.Context) {
	if !h.Store.SelectSession(c.Param("id")) {
		Fail(c, http.StatusNotFound, 40004, "session not found")
		return
	}
	ok(c, h.stateView())
}

func (h *Handler) DeleteSession(c *gin.Context) {
	if !h.Store.DeleteSession(c.Param("id")) {
		Fail(c, http.StatusNotFound, 40004, "session not found")
		return
	}
	ok(c, h.stateView())
}

type renameReq struct {
	Title string `json:"title" binding:"required"`
}

func (h *Handler) RenameSession(c *gin.Context) {
	var req renameReq
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	h.Store.RenameSession(c.Param("id"), req.Title)
	ok(c, h.stateView())
}

func (h *Handler) TogglePin(c *gin.Context) {
	if !h.Store.TogglePin(c.Param("id")) {
		Fail(c, http.StatusNotFound, 40004, "session not found")
		return
	}
	ok(c, h.stateView())
}

type configureURLReq struct {
	URL string `json:"url" binding:"required"`
}

func (h *Handler) ConfigureURL(c *gin.Context) {
	var req configureURLReq
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if !h.Ctrl.CheckConnection(c.Request.Context(), req.URL) {
		Fail(c, http.StatusBadGateway, 50201, "could not reach ollama at that url")
		return
	}
	h.Ctrl.ConfigureURL(c.Request.Context(), req.URL)
	ok(c, h.stateView())
}

func (h *Handler) ResetConfig(c *gin.Context) {
	h.Store.ResetConfig()
	ok(c, h.stateView())
}

type loginReq struct {
	Username string `json:"username" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	h.Store.Login(req.Username)
	ok(c, h.stateView())
}

func (h *Handler) ToggleTheme(c *gin.Context) {
	h.Store.ToggleDarkMode()
	ok(c, h.stateView())
}

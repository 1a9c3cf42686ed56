package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/gen62/genchat/internal/audio"
	"github.com/gen62/genchat/internal/httpapi/handlers"
	"github.com/gen62/genchat/internal/session"
)

func NewRouter(store *session.Store, ctrl *session.Controller, transport *audio.Transport, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery())

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	h := handlers.NewHandler(store, ctrl, transport, logger)

	r.GET("/ping", h.Ping)
	r.GET("/state", h.GetState)

	// Chat
	r.POST("/chat/send", h.Send)
	r.POST("/chat/stop", h.Stop)
	r.POST("/chat/messages/:index/edit", h.EditMessage)
	r.POST("/chat/messages/:index/version", h.SwitchVersion)
	r.POST("/chat/messages/:index/feedback", h.ToggleFeedback)

	// Sessions
	r.GET("/sessions", h.ListSessions)
	r.GET("/sessions/search", h.SearchSessions)
	r.POST("/sessions", h.NewChat)
	r.POST("/sessions/:id/select", h.SelectSession)
	r.POST("/sessions/:id/rename", h.RenameSession)
	r.POST("/sessions/:id/pin", h.TogglePin)
	r.DELETE("/sessions/:id", h.DeleteSession)

	// Configuration / local login / theme
	r.POST("/config/url", h.ConfigureURL)
	r.POST("/config/reset", h.ResetConfig)
	r.POST("/login", h.Login)
	r.POST("/theme/toggle", h.ToggleTheme)

	// Audio narration
	r.GET("/audio/state", h.AudioState)
	r.POST("/audio/prepare", h.PrepareAudio)
	r.POST("/audio/toggle", h.ToggleAudio)
	r.POST("/audio/seek/preview", h.SeekAudioPreview)
	r.POST("/audio/seek/commit", h.SeekAudioCommit)
	r.POST("/audio/close", h.CloseAudio)
	r.POST("/audio/hide", h.HideAudio)

	return r
}

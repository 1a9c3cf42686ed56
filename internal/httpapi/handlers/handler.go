package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/gen62/genchat/internal/audio"
	"github.com/gen62/genchat/internal/session"
)

// Handler exposes the core's UI intents over HTTP. It holds no state of its
// own; everything routes into the store, the generation controller, or the
// audio transport.
type Handler struct {
	Store  *session.Store
	Ctrl   *session.Controller
	Audio  *audio.Transport
	Logger zerolog.Logger
}

func NewHandler(store *session.Store, ctrl *session.Controller, transport *audio.Transport, logger zerolog.Logger) *Handler {
	return &Handler{
		Store:  store,
		Ctrl:   ctrl,
		Audio:  transport,
		Logger: logger.With().Str("component", "httpapi").Logger(),
	}
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "ok",
		"data":    data,
	})
}

// Fail writes the error envelope. Exported for the router's NoRoute/NoMethod
// hooks.
func Fail(c *gin.Context, httpStatus int, code int, msg string) {
	c.JSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
		"data":    nil,
	})
}

func (h *Handler) Ping(c *gin.Context) {
	ok(c, gin.H{"message": "pong"})
}

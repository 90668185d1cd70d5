package handler

import (
	"errors"
	"net/http"

	"session-service/internal/logger"
	"session-service/internal/session"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	store session.Store
}

func NewHandler(store session.Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/sessions", h.Create)
	r.GET("/sessions", h.FindByPrincipal)
	r.GET("/sessions/:id", h.Get)
	r.DELETE("/sessions/:id", h.Delete)
	r.POST("/sessions/:id/rotate", h.Rotate)
	r.PUT("/sessions/:id/attributes/:name", h.SetAttribute)
	r.DELETE("/sessions/:id/attributes/:name", h.RemoveAttribute)
}

// load fetches a session for one of the mutating endpoints and writes
// the error response itself when the session is unavailable.
func (h *Handler) load(c *gin.Context) *session.Session {
	sess, err := h.store.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return nil
	}
	if sess == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil
	}
	return sess
}

// fail maps store errors onto responses: malformed ids are the
// caller's fault, everything else is a storage failure and must stay
// observably distinct from not-found.
func (h *Handler) fail(c *gin.Context, err error) {
	if errors.Is(err, session.ErrMalformedID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed session id"})
		return
	}
	logger.Error("session store failure", map[string]any{
		"path":  c.Request.URL.Path,
		"error": err.Error(),
	})
	c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
}

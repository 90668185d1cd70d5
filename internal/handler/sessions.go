package handler

import (
	"net/http"
	"time"

	"session-service/internal/session"

	"github.com/gin-gonic/gin"
)

type createRequest struct {
	MaxInactiveSeconds int64          `json:"max_inactive_seconds"`
	Principal          string         `json:"principal"`
	Attributes         map[string]any `json:"attributes"`
}

type sessionResponse struct {
	SessionID          string         `json:"session_id"`
	CreationTime       time.Time      `json:"creation_time"`
	LastAccessedTime   time.Time      `json:"last_accessed_time"`
	MaxInactiveSeconds int64          `json:"max_inactive_seconds"`
	ExpiryTime         time.Time      `json:"expiry_time"`
	Principal          string         `json:"principal,omitempty"`
	Attributes         map[string]any `json:"attributes"`
}

func toResponse(s *session.Session) sessionResponse {
	attrs := make(map[string]any)
	for _, name := range s.AttributeNames() {
		v, _ := s.Attribute(name)
		attrs[name] = v
	}
	principal, _ := session.Principal(s)
	return sessionResponse{
		SessionID:          s.ID(),
		CreationTime:       s.CreationTime(),
		LastAccessedTime:   s.LastAccessedTime(),
		MaxInactiveSeconds: int64(s.MaxInactiveInterval() / time.Second),
		ExpiryTime:         s.ExpiryTime(),
		Principal:          principal,
		Attributes:         attrs,
	}
}

func (h *Handler) Create(c *gin.Context) {
	var req createRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
	}

	sess := h.store.CreateSession(c.Request.Context())
	if req.MaxInactiveSeconds > 0 {
		sess.SetMaxInactiveInterval(time.Duration(req.MaxInactiveSeconds) * time.Second)
	}
	if req.Principal != "" {
		sess.SetAttribute(session.PrincipalNameIndexName, req.Principal)
	}
	for name, value := range req.Attributes {
		sess.SetAttribute(name, value)
	}

	if err := h.store.Save(c.Request.Context(), sess); err != nil {
		h.fail(c, err)
		return
	}

	session.SetCookie(c.Writer, sess.ID(), sess.ExpiryTime(), session.CookieOptions{
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})

	c.JSON(http.StatusCreated, toResponse(sess))
}

func (h *Handler) Get(c *gin.Context) {
	sess := h.load(c)
	if sess == nil {
		return
	}
	c.JSON(http.StatusOK, toResponse(sess))
}

func (h *Handler) Delete(c *gin.Context) {
	if err := h.store.DeleteByID(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	session.ClearCookie(c.Writer, session.CookieOptions{
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
	c.Status(http.StatusNoContent)
}

// Rotate issues a fresh session id, the fixation-protection primitive.
// The old id stops resolving once the save commits.
func (h *Handler) Rotate(c *gin.Context) {
	sess := h.load(c)
	if sess == nil {
		return
	}

	newID := sess.RotateID()
	if err := h.store.Save(c.Request.Context(), sess); err != nil {
		h.fail(c, err)
		return
	}

	session.SetCookie(c.Writer, newID, sess.ExpiryTime(), session.CookieOptions{
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})

	c.JSON(http.StatusOK, gin.H{"session_id": newID})
}

type attributeRequest struct {
	Value any `json:"value"`
}

func (h *Handler) SetAttribute(c *gin.Context) {
	var req attributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	sess := h.load(c)
	if sess == nil {
		return
	}

	sess.SetAttribute(c.Param("name"), req.Value)
	if err := h.store.Save(c.Request.Context(), sess); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) RemoveAttribute(c *gin.Context) {
	sess := h.load(c)
	if sess == nil {
		return
	}

	sess.RemoveAttribute(c.Param("name"))
	if err := h.store.Save(c.Request.Context(), sess); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) FindByPrincipal(c *gin.Context) {
	principal := c.Query("principal")
	if principal == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "principal query parameter required"})
		return
	}

	found, err := h.store.FindByIndexNameAndIndexValue(
		c.Request.Context(),
		session.PrincipalNameIndexName,
		principal,
	)
	if err != nil {
		h.fail(c, err)
		return
	}

	sessions := make(map[string]sessionResponse, len(found))
	for id, sess := range found {
		sessions[id] = toResponse(sess)
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

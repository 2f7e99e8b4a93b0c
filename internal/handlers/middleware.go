package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const subjectCtxKey = "subject"

var (
	errMissingAuthHeader = errors.New("missing Authorization header")
	errAuthHeaderFormat  = errors.New("invalid Authorization header format")
)

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errMissingAuthHeader
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != "Bearer" || token == "" {
		return "", errAuthHeaderFormat
	}
	return token, nil
}

// subjectMiddleware rejects requests without a valid token and stores the token subject.
func (h *Handler) subjectMiddleware(c *gin.Context) {
	token, err := bearerToken(c.GetHeader("Authorization"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	subject, err := h.services.ParseToken(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid or expired token",
		})
		return
	}

	c.Set(subjectCtxKey, subject)
	c.Next()
}

// commandAudit records who started or stopped a zone and how the request ended.
func (h *Handler) commandAudit(c *gin.Context) {
	c.Next()
	if h.log == nil {
		return
	}
	h.log.Infow("zone_command_request",
		"subject", c.GetString(subjectCtxKey),
		"zone", c.Param("id"),
		"method", c.Request.Method,
		"status", c.Writer.Status(),
	)
}

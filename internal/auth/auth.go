// Package auth guards the write surface with a single operator capability.
//
// The analytics engine has exactly one writer: the ingestion operator.
// Reads are public; registration and transfer recording require the
// operator's bearer key.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ContextKeyOperator marks an authenticated operator request in gin context.
const ContextKeyOperator = "isOperator"

// Manager validates the operator key. The configured key is stored as a
// SHA-256 digest so comparisons are constant-time over fixed-length values.
type Manager struct {
	keyHash [32]byte
}

// NewManager creates a manager for the given operator key.
func NewManager(operatorKey string) *Manager {
	return &Manager{keyHash: sha256.Sum256([]byte(operatorKey))}
}

// Validate reports whether the presented key is the operator key.
func (m *Manager) Validate(presented string) bool {
	h := sha256.Sum256([]byte(presented))
	return subtle.ConstantTimeCompare(h[:], m.keyHash[:]) == 1
}

// bearerToken extracts the credential from the Authorization header
// (with or without the Bearer prefix) or the X-Operator-Key header.
func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return c.GetHeader("X-Operator-Key")
}

// RequireOperator rejects requests that do not carry the operator key.
func RequireOperator(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" || !m.Validate(token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Operator key required. Include 'Authorization: Bearer <key>' header.",
			})
			return
		}
		c.Set(ContextKeyOperator, true)
		c.Next()
	}
}

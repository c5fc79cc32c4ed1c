// Package validation provides input validation middleware for the API.
package validation

import (
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (1MB)
const MaxRequestSize = 1 << 20

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// IsValidEthAddress checks if a string is a valid Ethereum address
func IsValidEthAddress(addr string) bool {
	return common.IsHexAddress(addr)
}

// SanitizeAddress normalizes an Ethereum address to lower-case 0x form.
// Profiles are keyed by this normalized string.
func SanitizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if !strings.HasPrefix(addr, "0x") && len(addr) == 40 {
		addr = "0x" + addr
	}
	return strings.ToLower(addr)
}

// AddressParamMiddleware validates and normalizes the :address URL parameter
// on routes that use it, rejecting malformed addresses early.
func AddressParamMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		addr := c.Param("address")
		if addr == "" {
			c.Next()
			return
		}
		if !IsValidEthAddress(addr) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_address",
				"message": "address must be a valid Ethereum address (0x + 40 hex chars)",
			})
			return
		}
		// Rewrite the param so downstream handlers key profiles by the
		// normalized form; 0xABC and 0xabc are the same account.
		sanitized := SanitizeAddress(addr)
		for i := range c.Params {
			if c.Params[i].Key == "address" {
				c.Params[i].Value = sanitized
			}
		}
		c.Next()
	}
}

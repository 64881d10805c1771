package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// TokenHeader carries the admin token on privileged requests.
const TokenHeader = "x-admin-token"

// ACL is the authorization surface the gates consult. Both calls are
// snapshot reads against the metadata index.
type ACL interface {
	IsBlacklisted(addr string) bool
	IsValidToken(token string) bool
}

// BlacklistGate rejects blacklisted client addresses before any request
// body is touched.
func BlacklistGate(acl ACL) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if acl.IsBlacklisted(ip) {
			log.Warn().Str("client", ip).Msg("Blocked request from blacklisted address")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "address is blacklisted"})
			return
		}
		c.Next()
	}
}

// TokenGate requires a valid admin token on privileged routes.
func TokenGate(acl ACL) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !acl.IsValidToken(c.GetHeader(TokenHeader)) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing token"})
			return
		}
		c.Next()
	}
}

package auth

import (
	"errors"
	"net/http"
	"strings"

	"frameworks/pkg/ctxkeys"

	"github.com/gin-gonic/gin"
)

// ServiceUserID is the user id injected for calls authenticated with SERVICE_TOKEN.
const ServiceUserID = "00000000-0000-0000-0000-000000000000"

// JWTAuthMiddleware accepts a user JWT (Authorization header or access_token
// cookie) or the shared service token. On success the identity is copied into
// the gin context under ctxkeys names.
func JWTAuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrUnauthenticated.Error()})
			return
		}

		if len(secret) > 0 {
			claims, err := ValidateJWT(token, secret)
			if err == nil {
				c.Set(string(ctxkeys.KeyUserID), claims.UserID)
				c.Set(string(ctxkeys.KeyAccountID), claims.AccountID)
				c.Set(string(ctxkeys.KeyEmail), claims.Email)
				c.Set(string(ctxkeys.KeyRole), claims.Role)
				c.Set(string(ctxkeys.KeyAuthType), "jwt")
				c.Next()
				return
			}
			if errors.Is(err, ErrExpiredJWT) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
				return
			}
		}

		if serviceToken := GetServiceToken(); serviceToken != "" && ValidateServiceToken(token, serviceToken) == nil {
			c.Set(string(ctxkeys.KeyUserID), ServiceUserID)
			c.Set(string(ctxkeys.KeyRole), "service")
			c.Set(string(ctxkeys.KeyAuthType), "service")
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrInvalidJWT.Error()})
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if cookieToken, err := c.Cookie("access_token"); err == nil && cookieToken != "" {
			return cookieToken, true
		}
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// Package auth resolves the calling chat user for HTTP requests and applies
// per-caller rate limits.
package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
)

// HeaderCallerID carries the caller id when no JWT secret is configured.
const HeaderCallerID = "X-Caller-ID"

const callerKey = "auth.caller"

// ParseBearer extracts the token from an Authorization header value.
func ParseBearer(header string) (string, error) {
	if header == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}

// ParseJWT validates an HS256 token and returns its subject, the chat user id.
func ParseJWT(tokenStr, secret string) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is empty")
	}
	tok, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return "", err
	}
	c, _ := tok.Claims.(*jwt.RegisteredClaims)
	if c == nil || strings.TrimSpace(c.Subject) == "" {
		return "", errors.New("invalid claims")
	}
	return c.Subject, nil
}

// Caller authenticates the request and stores the caller id for handlers.
// With an empty secret the X-Caller-ID header is trusted as is.
func Caller(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var id string
		if secret == "" {
			id = strings.TrimSpace(c.GetHeader(HeaderCallerID))
			if id == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + HeaderCallerID})
				return
			}
		} else {
			tok, err := ParseBearer(c.GetHeader("Authorization"))
			if err == nil {
				id, err = ParseJWT(tok, secret)
			}
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
				return
			}
		}
		c.Set(callerKey, id)
		c.Next()
	}
}

// CallerID returns the id stored by Caller.
func CallerID(c *gin.Context) string {
	return c.GetString(callerKey)
}

package api

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const tokenTTL = 24 * time.Hour

type session struct {
	userID  int64
	expires time.Time
}

var (
	sessionsMu sync.RWMutex
	sessions   = make(map[string]session)
)

// GenerateToken issues an opaque session token for the user. Tokens live in
// memory only; a restart logs everyone out.
func GenerateToken(userID int64) (string, error) {
	token := uuid.NewString()
	sessionsMu.Lock()
	sessions[token] = session{userID: userID, expires: time.Now().Add(tokenTTL)}
	sessionsMu.Unlock()
	return token, nil
}

func validateToken(token string) (int64, error) {
	sessionsMu.RLock()
	s, ok := sessions[token]
	sessionsMu.RUnlock()

	if !ok {
		return 0, fmt.Errorf("unknown token")
	}
	if time.Now().After(s.expires) {
		sessionsMu.Lock()
		delete(sessions, token)
		sessionsMu.Unlock()
		return 0, fmt.Errorf("token expired")
	}
	return s.userID, nil
}

// AuthMiddleware authenticates requests via the Authorization bearer token.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		userID, err := validateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}

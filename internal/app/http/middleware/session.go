package middleware

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/gin-gonic/gin"
)

const sessionCookie = "fa_session"

// SessionMiddleware gives anonymous buyers a stable opaque session id,
// which becomes the session side of order ownership.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := c.Cookie(sessionCookie)
		if err != nil || sid == "" {
			sid = newSessionID()
			c.SetCookie(sessionCookie, sid, 60*60*24*30, "/", "", false, true)
		}
		c.Set("session_id", sid)
		c.Next()
	}
}

func newSessionID() string {
	bytes := make([]byte, 16)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

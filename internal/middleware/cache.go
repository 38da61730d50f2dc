package middleware

import (
	"github.com/gin-gonic/gin"
)

// NoStore marks responses as uncacheable. Permission sets and menus are
// principal specific and change whenever roles change.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store, private")
		c.Writer.Header().Add("Vary", "Authorization")
		c.Next()
	}
}

package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ivanreeve/poop-tracker/internal"
	"github.com/ivanreeve/poop-tracker/internal/response"
)

const identityKey = "user"

func AuthMiddleware(provider Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if strings.HasPrefix(header, "Bearer ") {
			token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			if token != "" {
				id, err := provider.Validate(c.Request.Context(), token)
				if err == nil {
					c.Set(identityKey, id)
					c.Next()
					return
				}
			}
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.NewAppError(http.StatusUnauthorized, "Unauthorized"))
	}
}

// IdentityFrom returns the identity AuthMiddleware stored on c.
func IdentityFrom(c *gin.Context) (*internal.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	id, ok := v.(*internal.Identity)
	return id, ok && id != nil
}

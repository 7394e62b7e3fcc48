package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/recetario/backend/internal/models"
)

// ActorKey is the context key the auth middleware stores the resolved user
// under.
const ActorKey = "actor"

// TokenResolver resolves an opaque bearer token to its user.
type TokenResolver interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// AuthMiddleware extracts the bearer credential from the Authorization
// header and resolves the acting user. Requests without a valid credential
// are rejected before reaching the handler.
func AuthMiddleware(identity TokenResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		user, err := identity.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credential"})
			c.Abort()
			return
		}

		c.Set(ActorKey, user)
		c.Next()
	}
}

// Actor returns the authenticated user stored by AuthMiddleware.
func Actor(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(ActorKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/rcollings/realtyads/internal/user"
)

const userIDKey = "authUserID"

// UserLoader resolves a user id to a profile for role checks.
type UserLoader interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*user.User, error)
}

// RequireSignIn rejects requests without a valid bearer token and
// stores the caller's user id in the gin context.
func RequireSignIn(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			abort(c, http.StatusUnauthorized, "sign in required")
			return
		}

		id, err := verify(secret, strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			abort(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		c.Set(userIDKey, id)
		c.Next()
	}
}

// RequireAdmin loads the signed-in caller and rejects anyone without
// the admin role. Must run after RequireSignIn.
func RequireAdmin(users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := UserID(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "sign in required")
			return
		}

		u, err := users.FindByID(c.Request.Context(), id)
		if err != nil {
			abort(c, http.StatusUnauthorized, "sign in required")
			return
		}
		if !u.IsAdmin() {
			abort(c, http.StatusForbidden, "admin access only")
			return
		}

		c.Next()
	}
}

// UserID returns the authenticated caller's id set by RequireSignIn.
func UserID(c *gin.Context) (primitive.ObjectID, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return primitive.NilObjectID, false
	}
	id, ok := v.(primitive.ObjectID)
	return id, ok
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}

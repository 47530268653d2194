package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/ds124wfegd/interpreter-booking/internal/entity"

	"github.com/gin-gonic/gin"
)

const (
	ActorKey    = "actor"
	ActorHeader = "X-User-ID"
)

// UserLookup resolves the acting user. Authentication happens upstream.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*entity.User, error)
}

// Actor loads the user named by the X-User-ID header into the context.
func Actor(users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(ActorHeader)
		id, err := strconv.ParseInt(raw, 10, 64)
		if raw == "" || err != nil || id <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "missing or invalid " + ActorHeader})
			return
		}

		user, err := users.GetByID(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, entity.ErrUserNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unknown user"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to resolve user"})
			return
		}
		if !user.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "user is disabled"})
			return
		}

		c.Set(ActorKey, user)
		c.Next()
	}
}

// RequireRole lets through only users with one of the roles.
func RequireRole(roles ...entity.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentActor(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "no acting user"})
			return
		}
		for _, r := range roles {
			if user.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "forbidden"})
	}
}

func CurrentActor(c *gin.Context) *entity.User {
	v, ok := c.Get(ActorKey)
	if !ok {
		return nil
	}
	user, _ := v.(*entity.User)
	return user
}

func actorID(v interface{}) int64 {
	if u, ok := v.(*entity.User); ok && u != nil {
		return u.ID
	}
	return 0
}

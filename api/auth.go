package api

import (
	"strings"

	"github.com/Domenick1991/tourbooking/internal/domain"
	"github.com/gin-gonic/gin"
)

// ActorResolver is the identity provider: it turns a credential into a
// verified caller.
type ActorResolver interface {
	ResolveActor(credential string) (domain.Actor, error)
}

const actorKey = "actor"

// requireActor rejects requests without a valid bearer token and stores the
// caller in the gin context.
func requireActor(resolver ActorResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			writeError(c, domain.Unauthenticated("bearer token required"))
			return
		}

		actor, err := resolver.ResolveActor(token)
		if err != nil {
			writeError(c, err)
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// requireRole must run after requireActor.
func requireRole(role domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !actorFrom(c).Is(role) {
			writeError(c, domain.Forbidden("%s role required", role))
			return
		}
		c.Next()
	}
}

func actorFrom(c *gin.Context) domain.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(domain.Actor); ok {
			return actor
		}
	}
	return domain.Actor{}
}

package auth

import (
	"context"

	"chepochem.org/internal/rbac"
)

type actorContextKey struct{}

// ContextWithActor attaches the authenticated actor to the context.
func ContextWithActor(ctx context.Context, actor rbac.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the authenticated actor. When no actor was
// attached it returns the anonymous actor and ok=false.
func ActorFromContext(ctx context.Context) (rbac.Actor, bool) {
	if ctx == nil {
		return rbac.Actor{}, false
	}
	actor, ok := ctx.Value(actorContextKey{}).(rbac.Actor)
	if !ok {
		return rbac.Actor{}, false
	}
	return actor, true
}

// Package auth carries the calling user through request contexts.
// Authentication happens upstream; this package only transports the result.
package auth

import "context"

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const actorContextKey contextKey = "actor"

// Actor identifies the user a request is made on behalf of.
// The zero value is an anonymous caller.
type Actor struct {
	UserID int64
}

// Anonymous is the actor used when no user is attached to a request.
var Anonymous = Actor{}

// Authenticated reports whether the actor refers to a real user.
func (a Actor) Authenticated() bool {
	return a.UserID > 0
}

// ContextWithActor adds the actor to the context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

// ActorFromContext retrieves the actor from the context.
// Returns Anonymous if none is present.
func ActorFromContext(ctx context.Context) Actor {
	actor, ok := ctx.Value(actorContextKey).(Actor)
	if !ok {
		return Anonymous
	}
	return actor
}

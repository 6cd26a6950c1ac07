package core

import "context"

type actorKey struct{}

// WithActor returns a context identifying the user performing mutations.
// Mutations run under such a context append History rows.
func WithActor(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

// ActorFromContext returns the actor set by WithActor.
func ActorFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(actorKey{}).(string)
	return id, ok && id != ""
}

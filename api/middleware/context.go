package middleware

import (
	"context"

	"github.com/davidnajera/mentiondesk-backend/pkg/types"
)

type ctxKey string

const ctxActor ctxKey = "actor"

// ActorFromContext returns the authenticated actor seeded by Auth.
func ActorFromContext(ctx context.Context) (types.Actor, bool) {
	actor, ok := ctx.Value(ctxActor).(types.Actor)
	return actor, ok
}

func withActor(ctx context.Context, actor types.Actor) context.Context {
	return context.WithValue(ctx, ctxActor, actor)
}

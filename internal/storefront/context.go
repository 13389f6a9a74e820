/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package storefront

import (
	"context"

	"github.com/friendsincode/storehours/internal/models"
)

type ctxKey string

const actorKey ctxKey = "actor"

// WithActor returns a context carrying the actor behind a change.
func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext returns the actor set by WithActor, or the zero actor.
func ActorFromContext(ctx context.Context) models.Actor {
	actor, _ := ctx.Value(actorKey).(models.Actor)
	return actor
}

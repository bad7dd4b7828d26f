package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/mercatohq/mercato-backend/pkg/auth"
)

type contextKey string

const (
	ctxActorID   contextKey = "actor_id"
	ctxActorKind contextKey = "actor_kind"
	ctxCartToken contextKey = "cart_token"
)

// ActorIDFromContext returns the authenticated actor id, if any.
func ActorIDFromContext(ctx context.Context) *uuid.UUID {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxActorID).(uuid.UUID); ok && v != uuid.Nil {
		return &v
	}
	return nil
}

// ActorKindFromContext returns the authenticated actor kind, if any.
func ActorKindFromContext(ctx context.Context) auth.ActorKind {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxActorKind).(auth.ActorKind); ok {
		return v
	}
	return ""
}

// CartTokenFromContext returns the session token the client presented, if any.
func CartTokenFromContext(ctx context.Context) *string {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxCartToken).(string); ok && v != "" {
		return &v
	}
	return nil
}

// WithActor injects the authenticated identity into the context.
func WithActor(ctx context.Context, id uuid.UUID, kind auth.ActorKind) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxActorID, id)
	return context.WithValue(ctx, ctxActorKind, kind)
}

// WithCartToken injects the presented session token into the context.
func WithCartToken(ctx context.Context, token string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxCartToken, token)
}

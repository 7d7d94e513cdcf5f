// Package service holds the business rules that sit between HTTP handlers and repositories.
package service

import (
	"context"
	"log/slog"

	"launchpad/internal/middleware"
	"launchpad/internal/models"
	"launchpad/internal/notifications"
	"launchpad/internal/observability"
)

// ChangePublisher receives row changes for the realtime channel.
type ChangePublisher interface {
	PublishChange(ctx context.Context, change notifications.Change) error
}

type noopPublisher struct{}

func (noopPublisher) PublishChange(context.Context, notifications.Change) error { return nil }

func publisherOrNoop(p ChangePublisher) ChangePublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}

// publish is best effort; subscribers refetch on their next read.
func publish(ctx context.Context, p ChangePublisher, table, event string, record any) {
	change, err := notifications.NewChange(table, event, record)
	if err == nil {
		err = p.PublishChange(ctx, change)
	}
	if err != nil {
		observability.LogAsyncOperationError(ctx, middleware.Logger, "realtime_publish", err,
			slog.String("table", table), slog.String("event", event))
	}
}

// AdminCheck reports whether userID is an administrator.
type AdminCheck func(ctx context.Context, userID uint) (bool, error)

// ensureOwnerOrAdmin returns nil when actorID owns the resource or is an admin.
func ensureOwnerOrAdmin(ctx context.Context, isAdmin AdminCheck, actorID, ownerID uint, message string) error {
	if actorID != 0 && actorID == ownerID {
		return nil
	}
	if actorID == 0 || isAdmin == nil {
		return models.NewForbiddenError(message)
	}
	admin, err := isAdmin(ctx, actorID)
	if err != nil {
		return err
	}
	if !admin {
		return models.NewForbiddenError(message)
	}
	return nil
}

// viewerIsAdmin is false for anonymous viewers and lookup failures.
func viewerIsAdmin(ctx context.Context, isAdmin AdminCheck, viewerID uint) bool {
	if viewerID == 0 || isAdmin == nil {
		return false
	}
	admin, err := isAdmin(ctx, viewerID)
	return err == nil && admin
}

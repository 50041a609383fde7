package service_interfaces

import (
	"context"

	"github.com/sovr-labs/anchor-clearing-engine/src/internal/adapter/mirror"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/domain"
)

type EventPublisher interface {
	Publish(ctx context.Context, event domain.AnchorEvent) error
}

type MirrorPublisher interface {
	Publish(ctx context.Context, record mirror.Record) error
}

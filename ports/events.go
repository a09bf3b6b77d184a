package ports

import (
	"context"

	"github.com/layer-3/tollgate/core"
)

// EventPublisher publishes events to notify other instances
type EventPublisher interface {
	PublishLogout(ctx context.Context, address string) error
	PublishSettlement(ctx context.Context, event core.SettlementEvent) error
}

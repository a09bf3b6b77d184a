package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/ports"
)

const (
	// LogoutTopic carries session logout notifications
	LogoutTopic = "tollgate.logout"

	// SettlementTopic carries confirmed settlement notifications
	SettlementTopic = "tollgate.settlement"
)

// LogoutEvent represents a logout event
type LogoutEvent struct {
	Address string `json:"address"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishLogout publishes a logout event
func (p *WatermillPublisher) PublishLogout(ctx context.Context, address string) error {
	return p.publish(LogoutTopic, LogoutEvent{Address: address})
}

// PublishSettlement publishes a confirmed settlement event
func (p *WatermillPublisher) PublishSettlement(ctx context.Context, event core.SettlementEvent) error {
	return p.publish(SettlementTopic, event)
}

func (p *WatermillPublisher) publish(topic string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.New().String(), payload)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

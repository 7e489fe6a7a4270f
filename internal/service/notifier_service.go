package service

import (
	"context"
	"fmt"

	"ai-paperchat-be/internal/pkg/logger"
	"ai-paperchat-be/pkg/events"
	pktNats "ai-paperchat-be/pkg/nats"

	"github.com/google/uuid"
)

// PushDelivery defines how to push real-time updates.
// Typically implemented by the WebSocket Hub.
type PushDelivery interface {
	Send(userID uuid.UUID, eventType string, data interface{})
	Broadcast(eventType string, data interface{})
}

// NotifierService relays paper lifecycle events from the bus to the sockets
// of the paper's owner. Events are not stored; a client that is offline
// catches up from the paper list endpoint instead.
type NotifierService struct {
	subscriber *pktNats.Subscriber
	delivery   PushDelivery
	logger     logger.ILogger
}

func NewNotifierService(sub *pktNats.Subscriber, delivery PushDelivery, log logger.ILogger) *NotifierService {
	return &NotifierService{
		subscriber: sub,
		delivery:   delivery,
		logger:     log,
	}
}

// Start begins listening to the event bus.
func (s *NotifierService) Start() {
	err := s.subscriber.Subscribe("events.>", "notifier-worker", s.handleEvent)
	if err != nil {
		s.logger.Error("NotifierService", "Failed to start notifier subscriber", map[string]interface{}{"error": err})
		return
	}
	s.logger.Info("NotifierService", "Notifier started, listening to events.>", nil)
}

func (s *NotifierService) handleEvent(ctx context.Context, event events.Event) error {
	payload := event.Payload()

	uidStr, ok := payload["user_id"].(string)
	if !ok || uidStr == "" {
		s.logger.Warn("NotifierService", fmt.Sprintf("Event %s carries no user_id, dropping", event.EventType()), nil)
		return nil
	}
	if uidStr == "*" {
		if s.delivery != nil {
			s.delivery.Broadcast(event.EventType(), payload)
		}
		s.logger.Info("NotifierService", fmt.Sprintf("Broadcast %s to all users", event.EventType()), nil)
		return nil
	}
	userID, err := uuid.Parse(uidStr)
	if err != nil {
		s.logger.Warn("NotifierService", fmt.Sprintf("Event %s carries bad user_id %q", event.EventType(), uidStr), map[string]interface{}{"error": err.Error()})
		return nil
	}

	if s.delivery != nil {
		s.delivery.Send(userID, event.EventType(), payload)
	}
	s.logger.Info("NotifierService", fmt.Sprintf("Pushed %s to user %s", event.EventType(), userID), nil)
	return nil
}

package messaging

import (
	"context"

	"github.com/feral-file/ff-marketplace-sync/internal/domain"
)

// Publisher defines the interface for publishing lifecycle transitions to the message broker
//
//go:generate mockgen -source=publisher.go -destination=../mocks/publisher.go -package=mocks -mock_names=Publisher=MockPublisher
type Publisher interface {
	// PublishTransition publishes a committed transaction status change
	PublishTransition(ctx context.Context, event domain.TransitionEvent) error
	// Close closes the connection
	Close()
}

type nopPublisher struct{}

// NewNopPublisher returns a publisher that drops every event, used when no broker is configured
func NewNopPublisher() Publisher {
	return nopPublisher{}
}

func (nopPublisher) PublishTransition(context.Context, domain.TransitionEvent) error {
	return nil
}

func (nopPublisher) Close() {}

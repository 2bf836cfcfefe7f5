// Package notifications alerts operators when a page observation is
// dropped: either fail-fast because the store was known down, or after
// the save exhausted its retry budget.
package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Notification is one alert about a dropped save.
type Notification struct {
	ID        string
	Title     string
	Message   string
	PageURL   string
	CreatedAt time.Time
}

// DeliveryChannel defines the interface for notification delivery
type DeliveryChannel interface {
	Name() string
	Deliver(ctx context.Context, n *Notification) error
}

// Service fans dropped-save alerts out to its delivery channels. It
// implements the relay's Notifier interface.
type Service struct {
	channels []DeliveryChannel
}

// NewService creates an empty notification service.
func NewService() *Service {
	return &Service{}
}

// AddChannel adds a delivery channel to the service
func (s *Service) AddChannel(ch DeliveryChannel) {
	s.channels = append(s.channels, ch)
}

// NotifySaveFailed alerts every channel that a visit for pageURL was
// dropped. Delivery failures are logged, never propagated: alerting
// must not add failure modes to the save path.
func (s *Service) NotifySaveFailed(ctx context.Context, pageURL string, cause error) {
	n := &Notification{
		ID:        uuid.New().String(),
		Title:     "Page visit dropped",
		Message:   fmt.Sprintf("Failed to save visit for %s: %v", pageURL, cause),
		PageURL:   pageURL,
		CreatedAt: time.Now().UTC(),
	}

	for _, ch := range s.channels {
		if err := ch.Deliver(ctx, n); err != nil {
			log.Warn().
				Err(err).
				Str("notification_id", n.ID).
				Str("channel", ch.Name()).
				Msg("Failed to deliver notification")
		}
	}

	log.Info().
		Str("notification_id", n.ID).
		Str("url", pageURL).
		Msg("Save failure notification created")
}

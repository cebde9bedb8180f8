package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/SerLarMan/practica-final-backend/internal/domain"
)

const (
	SubjectBookingCreated       = "bookings.created"
	SubjectBookingStatusChanged = "bookings.status_changed"
)

// BookingEvent is the payload handed to the notification collaborator. The
// engine only emits; delivery (email, toasts) happens downstream.
type BookingEvent struct {
	BookingID   uuid.UUID            `json:"bookingId"`
	ResourceID  uuid.UUID            `json:"resourceId"`
	RequesterID string               `json:"requesterId"`
	FromStatus  domain.BookingStatus `json:"fromStatus,omitempty"`
	ToStatus    domain.BookingStatus `json:"toStatus"`
	Actor       string               `json:"actor"`
	Reason      string               `json:"reason,omitempty"`
	Timestamp   time.Time            `json:"timestamp"`
}

type Publisher interface {
	Publish(ctx context.Context, subject string, data any) error
	Close() error
}

type NATSPublisher struct {
	conn *nats.Conn
}

func Connect(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	return p.conn.Publish(subject, payload)
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

// Noop drops every event. Used when no NATS URL is configured, such as local
// development without the notification stack.
type Noop struct{}

func (Noop) Publish(ctx context.Context, subject string, data any) error { return nil }
func (Noop) Close() error                                                { return nil }

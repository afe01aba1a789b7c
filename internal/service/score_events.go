package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/noah-isme/screening-api/internal/dto"
	"github.com/noah-isme/screening-api/internal/observability"
)

// Score event types.
const (
	ScoreEventUpdated = "score.updated"
	ScoreEventDeleted = "applicant.deleted"
)

// ScoreEvent announces a change to an applicant's derived scores.
type ScoreEvent struct {
	Type        string                     `json:"type"`
	Source      string                     `json:"source"`
	ApplicantID uint                       `json:"applicant_id"`
	Summary     *dto.ApplicantScoreSummary `json:"summary,omitempty"`
	SentAt      time.Time                  `json:"sent_at"`
}

// ScoreEventPublisher delivers score events to other services.
type ScoreEventPublisher interface {
	Publish(ctx context.Context, event ScoreEvent) error
}

// NewNATSScoreEventPublisher publishes events on subject. A nil connection or
// empty subject yields a publisher that drops events.
func NewNATSScoreEventPublisher(conn *nats.Conn, subject string) ScoreEventPublisher {
	if conn == nil || subject == "" {
		return noopScoreEventPublisher{}
	}
	return &natsScoreEventPublisher{conn: conn, subject: subject, nodeID: uuid.NewString()}
}

type natsScoreEventPublisher struct {
	conn    *nats.Conn
	subject string
	nodeID  string
}

func (p *natsScoreEventPublisher) Publish(_ context.Context, event ScoreEvent) error {
	if event.Source == "" {
		event.Source = p.nodeID
	}
	if event.SentAt.IsZero() {
		event.SentAt = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(p.subject+"."+event.Type, payload); err != nil {
		return err
	}
	observability.ScoreEventsPublished().WithLabelValues(event.Type).Inc()
	return nil
}

type noopScoreEventPublisher struct{}

func (noopScoreEventPublisher) Publish(context.Context, ScoreEvent) error { return nil }

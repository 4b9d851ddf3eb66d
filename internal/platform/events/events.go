// Package events publishes entry lifecycle events to downstream consumers.
// Events are emitted after the owning transaction commits; a failed publish
// never undoes the write.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const (
	TypeSubmitted = "entry.submitted"
	TypeUrgent    = "entry.urgent"
	TypeDeleted   = "entry.deleted"
)

// Event describes one change to a progress entry. PreviousUrgency is set
// when a same-day entry was replaced.
type Event struct {
	ID              string    `json:"event_id"`
	Type            string    `json:"type"`
	ConditionType   string    `json:"condition_type"`
	EntryID         int64     `json:"entry_id"`
	PatientID       int64     `json:"patient_id"`
	SubmissionDate  string    `json:"submission_date"`
	UrgencyStatus   string    `json:"urgency_status,omitempty"`
	PreviousUrgency string    `json:"previous_urgency,omitempty"`
	Status          string    `json:"status,omitempty"`
	Replaced        bool      `json:"replaced"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// Stamp fills in the event id and timestamp when they are unset.
func (e *Event) Stamp() {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
}

// Key partitions events so that one patient's entries for one condition stay
// ordered.
func (e Event) Key() string {
	return e.ConditionType + ":" + strconv.FormatInt(e.PatientID, 10)
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// ---------------------------------------------------------------------------
// Kafka
// ---------------------------------------------------------------------------

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes JSON encoded events to a single topic.
type KafkaPublisher struct {
	w     messageWriter
	topic string
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 5 * time.Second,
		},
		topic: topic,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	e.Stamp()
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(e.Key()),
		Value: value,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", e.Type, p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

// ---------------------------------------------------------------------------
// Log
// ---------------------------------------------------------------------------

// LogPublisher writes events to the service log. It is used when no broker
// is configured.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With().Str("component", "events").Logger()}
}

func (p *LogPublisher) Publish(_ context.Context, e Event) error {
	e.Stamp()
	p.logger.Info().
		Str("event_id", e.ID).
		Str("type", e.Type).
		Str("condition_type", e.ConditionType).
		Int64("entry_id", e.EntryID).
		Int64("patient_id", e.PatientID).
		Str("submission_date", e.SubmissionDate).
		Str("urgency_status", e.UrgencyStatus).
		Bool("replaced", e.Replaced).
		Msg("entry event")
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// ---------------------------------------------------------------------------
// Recorder
// ---------------------------------------------------------------------------

// Recorder keeps published events in memory. Tests use it to assert what a
// service emitted.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	e.Stamp()
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

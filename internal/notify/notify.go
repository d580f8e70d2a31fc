// Package notify announces catalog changes and keeps the admin badge counters.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"ingredient-catalog-service/internal/domain"
)

// Kind is the entity an event refers to.
type Kind string

const (
	KindProduct       Kind = "product"
	KindContact       Kind = "contact"
	KindSampleRequest Kind = "sample_request"
)

// Action is what happened to the entity.
type Action string

const (
	ActionCreated  Action = "created"
	ActionUpdated  Action = "updated"
	ActionDeleted  Action = "deleted"
	ActionImported Action = "imported"
)

// Event is a single change notification.
type Event struct {
	ID         string
	Kind       Kind
	Action     Action
	Partition  domain.Partition // empty for submissions
	Key        string           // product code or submission id
	OccurredAt time.Time
}

// NewEvent stamps a new event with a fresh id and the current time.
func NewEvent(kind Kind, action Action, partition domain.Partition, key string) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		Action:     action,
		Partition:  partition,
		Key:        key,
		OccurredAt: time.Now().UTC(),
	}
}

// MessageKey is used for partitioning so events of one entity stay ordered.
func (e Event) MessageKey() string {
	if e.Partition != "" {
		return fmt.Sprintf("%s:%s:%s", e.Kind, e.Partition, e.Key)
	}
	return fmt.Sprintf("%s:%s", e.Kind, e.Key)
}

// Encode returns the protojson form of the event.
func (e Event) Encode() ([]byte, error) {
	fields := map[string]any{
		"id":          e.ID,
		"kind":        string(e.Kind),
		"action":      string(e.Action),
		"key":         e.Key,
		"occurred_at": e.OccurredAt.Format(time.RFC3339Nano),
	}
	if e.Partition != "" {
		fields["partition"] = string(e.Partition)
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("notify: failed to build event payload: %w", err)
	}
	return protojson.Marshal(s)
}

// Publisher sends change events. Implementations must not block the caller
// on broker availability.
type Publisher interface {
	Publish(ctx context.Context, event Event)
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}
func (NopPublisher) Close() error                   { return nil }

// Badge names an admin notification counter.
type Badge string

const (
	BadgeContacts Badge = "contacts"
	BadgeSamples  Badge = "samples"
)

// ErrUnknownBadge is returned for a badge name outside the known set.
var ErrUnknownBadge = errors.New("notify: unknown badge")

// ParseBadge validates a badge name from a URL.
func ParseBadge(s string) (Badge, error) {
	switch Badge(s) {
	case BadgeContacts, BadgeSamples:
		return Badge(s), nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownBadge, s)
}

// Counts is the unacknowledged submission count per badge.
type Counts struct {
	Contacts int64 `json:"contacts"`
	Samples  int64 `json:"samples"`
}

// Badges tracks unseen submissions for the admin dashboard.
type Badges interface {
	Increment(ctx context.Context, badge Badge) error
	Counts(ctx context.Context) (Counts, error)
	Ack(ctx context.Context, badge Badge) error
}

// NopBadges reports zero for everything.
type NopBadges struct{}

func (NopBadges) Increment(context.Context, Badge) error { return nil }
func (NopBadges) Counts(context.Context) (Counts, error) { return Counts{}, nil }
func (NopBadges) Ack(context.Context, Badge) error       { return nil }

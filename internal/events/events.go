package events

import (
	"context"
	"errors"
	"time"
)

const (
	TypeRelationToggled = "relation.toggled"
	TypePostUpserted    = "post.upserted"
	TypePostDeleted     = "post.deleted"
	TypeProfileUpserted = "profile.upserted"
)

// Ref points at a stored entity whose cached renders are stale.
type Ref struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

// Event is emitted after a write has committed.
type Event struct {
	Type     string    `json:"type"`
	Kind     string    `json:"kind,omitempty"`
	ActorID  string    `json:"actor_id,omitempty"`
	TargetID string    `json:"target_id"`
	Related  bool      `json:"related"`
	Count    int64     `json:"count"`
	Stale    []Ref     `json:"stale"`
	At       time.Time `json:"at"`
}

// Subject is the NATS subject the event is published on.
func (e Event) Subject() string {
	switch e.Type {
	case TypeRelationToggled:
		return "relations." + e.Kind + ".toggled"
	case TypePostUpserted:
		return "posts.upserted"
	case TypePostDeleted:
		return "posts.deleted"
	case TypeProfileUpserted:
		return "profiles.upserted"
	}
	return "events." + e.Type
}

// Notifier receives committed-change events.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Fanout delivers an event to every notifier and joins their errors.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range f {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Noop discards events.
type Noop struct{}

func (Noop) Notify(context.Context, Event) error { return nil }

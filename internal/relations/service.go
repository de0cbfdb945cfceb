package relations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anonto42/garage-club/backend/internal/events"
	"github.com/anonto42/garage-club/backend/internal/metrics"
	"github.com/anonto42/garage-club/backend/internal/models"
	"github.com/anonto42/garage-club/backend/internal/repositories"
	"github.com/cenkalti/backoff/v5"
	log "github.com/sirupsen/logrus"
)

// Config tunes conflict retries.
type Config struct {
	// MaxAttempts bounds how many times a conflicting toggle is tried.
	MaxAttempts int
	// Backoff is the first retry delay; later delays grow exponentially with jitter.
	Backoff time.Duration
}

// Result is the outcome of a toggle call.
type Result struct {
	Kind     string `json:"kind"`
	TargetID string `json:"target_id"`
	Related  bool   `json:"related"`
	Changed  bool   `json:"changed"`
	Count    int64  `json:"count"`
}

// Service runs counted relation toggles and signals stale caches.
type Service struct {
	repo     repositories.RelationRepository
	notifier events.Notifier
	cfg      Config
}

// NewService creates a new Service
func NewService(repo repositories.RelationRepository, notifier events.Notifier, cfg Config) *Service {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 20 * time.Millisecond
	}
	if notifier == nil {
		notifier = events.Noop{}
	}
	return &Service{repo: repo, notifier: notifier, cfg: cfg}
}

// Toggle flips the relation of actorID to targetID. currentlyRelated is the
// caller's view before the call; the desired state is its negation. The store
// decides against the stored record inside the atomic unit, so a stale claim
// results in no write instead of a second counter delta.
func (s *Service) Toggle(ctx context.Context, actorID, kindName, targetID string, currentlyRelated bool) (Result, error) {
	if actorID == "" {
		metrics.RelationToggles.WithLabelValues(kindName, "unauthenticated").Inc()
		return Result{}, models.ErrUnauthenticated
	}
	kind, err := s.validate(actorID, kindName, targetID)
	if err != nil {
		metrics.RelationToggles.WithLabelValues(kindName, "invalid").Inc()
		return Result{}, err
	}
	want := !currentlyRelated
	logger := log.WithFields(log.Fields{"kind": kind.Name, "target_id": targetID, "actor_id": actorID, "want": want})

	attempts := 0
	res, err := backoff.Retry(ctx, func() (repositories.ToggleResult, error) {
		attempts++
		res, err := s.repo.Toggle(ctx, kind, actorID, targetID, want)
		if err != nil && !errors.Is(err, models.ErrTransactionConflict) {
			return res, backoff.Permanent(err)
		}
		return res, err
	},
		backoff.WithBackOff(s.newBackOff()),
		backoff.WithMaxTries(uint(s.cfg.MaxAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.WithFields(log.Fields{"attempt": attempts, "next": next}).Debug("toggle conflicted, retrying")
		}),
	)
	err = unwrapPermanent(err)
	metrics.RelationToggleAttempts.WithLabelValues(kind.Name).Observe(float64(attempts))
	if err != nil {
		metrics.RelationToggles.WithLabelValues(kind.Name, outcome(err)).Inc()
		logger.WithError(err).Warn("toggle failed")
		return Result{}, err
	}

	out := Result{Kind: kind.Name, TargetID: targetID, Related: res.Related, Changed: res.Changed, Count: res.Count}
	if !res.Changed {
		metrics.RelationToggles.WithLabelValues(kind.Name, "unchanged").Inc()
		logger.Info("toggle claim was stale, nothing written")
		return out, nil
	}
	metrics.RelationToggles.WithLabelValues(kind.Name, "ok").Inc()

	ev := events.Event{
		Type:     events.TypeRelationToggled,
		Kind:     kind.Name,
		ActorID:  actorID,
		TargetID: targetID,
		Related:  res.Related,
		Count:    res.Count,
		Stale:    staleRefs(kind, actorID, targetID),
		At:       time.Now().UTC(),
	}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		metrics.InvalidationFailures.WithLabelValues(ev.Type).Inc()
		logger.WithError(err).Error("invalidation failed after committed toggle")
	}
	return out, nil
}

// Status reports whether actorID currently holds the relation to targetID.
func (s *Service) Status(ctx context.Context, actorID, kindName, targetID string) (bool, error) {
	if actorID == "" {
		return false, models.ErrUnauthenticated
	}
	kind, err := s.validate(actorID, kindName, targetID)
	if err != nil && !errors.Is(err, errSelf) {
		return false, err
	}
	return s.repo.IsRelated(ctx, kind, actorID, targetID)
}

// Count returns the denormalized counter of targetID.
func (s *Service) Count(ctx context.Context, kindName, targetID string) (int64, error) {
	kind, err := lookup(kindName, targetID)
	if err != nil {
		return 0, err
	}
	return s.repo.GetCount(ctx, kind, targetID)
}

// Reconcile recounts the relation records of targetID and rewrites its counter.
func (s *Service) Reconcile(ctx context.Context, kindName, targetID string) (before, after int64, err error) {
	kind, err := lookup(kindName, targetID)
	if err != nil {
		return 0, 0, err
	}
	before, after, err = s.repo.Reconcile(ctx, kind, targetID)
	if err != nil {
		return 0, 0, err
	}
	if before != after {
		log.WithFields(log.Fields{"kind": kind.Name, "target_id": targetID, "before": before, "after": after}).
			Warn("counter drift repaired")
		ev := events.Event{
			Type:     events.TypeRelationToggled,
			Kind:     kind.Name,
			TargetID: targetID,
			Count:    after,
			Stale:    []events.Ref{{Collection: kind.TargetCollection, ID: targetID}},
			At:       time.Now().UTC(),
		}
		if nerr := s.notifier.Notify(ctx, ev); nerr != nil {
			metrics.InvalidationFailures.WithLabelValues(ev.Type).Inc()
			log.WithError(nerr).Error("invalidation failed after reconcile")
		}
	}
	return before, after, nil
}

var errSelf = fmt.Errorf("relation to self: %w", models.ErrInvalidArgument)

func (s *Service) validate(actorID, kindName, targetID string) (models.Kind, error) {
	kind, err := lookup(kindName, targetID)
	if err != nil {
		return kind, err
	}
	if !models.ValidID(actorID) {
		return kind, fmt.Errorf("actor id: %w", models.ErrInvalidArgument)
	}
	if !kind.AllowSelf && actorID == targetID {
		return kind, errSelf
	}
	return kind, nil
}

func lookup(kindName, targetID string) (models.Kind, error) {
	kind, ok := models.LookupKind(kindName)
	if !ok {
		return kind, fmt.Errorf("unknown relation kind %q: %w", kindName, models.ErrInvalidArgument)
	}
	if !models.ValidID(targetID) {
		return kind, fmt.Errorf("target id: %w", models.ErrInvalidArgument)
	}
	return kind, nil
}

func staleRefs(kind models.Kind, actorID, targetID string) []events.Ref {
	refs := []events.Ref{{Collection: kind.TargetCollection, ID: targetID}}
	if kind.HasActorCounter() {
		refs = append(refs, events.Ref{Collection: kind.ActorCollection, ID: actorID})
	}
	return refs
}

func (s *Service) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.Backoff
	b.MaxInterval = 20 * s.cfg.Backoff
	return b
}

// unwrapPermanent strips the marker Retry leaves on an error returned by
// the final attempt.
func unwrapPermanent(err error) error {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Unwrap()
	}
	return err
}

func outcome(err error) string {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrTransactionConflict):
		return "conflict"
	case errors.Is(err, models.ErrInvalidArgument):
		return "invalid"
	default:
		return "error"
	}
}

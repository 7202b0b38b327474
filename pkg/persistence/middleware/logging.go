package middleware

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aretw0/espalier/pkg/domain"
	"github.com/aretw0/espalier/pkg/ports"
)

// NewLogging creates a middleware that logs persistence traffic.
// Successful operations log at Debug; conflicts at Info (they are
// expected outcomes, not faults); everything else at Error.
func NewLogging(logger *slog.Logger) Middleware {
	return func(next ports.Persister) ports.Persister {
		return &loggingPersister{next: next, logger: logger}
	}
}

type loggingPersister struct {
	next   ports.Persister
	logger *slog.Logger
}

func (p *loggingPersister) Save(ctx context.Context, state *domain.State, expectedPrev uint64) error {
	err := p.next.Save(ctx, state, expectedPrev)

	var attrs []any
	if state != nil {
		attrs = []any{
			"entity", state.EntityID,
			"partition", state.PartitionKey,
			"sequence", state.Sequence,
		}
	}

	switch {
	case err == nil:
		p.logger.DebugContext(ctx, "snapshot saved", attrs...)
	case errors.Is(err, domain.ErrConflict):
		var cerr *domain.ConflictError
		if errors.As(err, &cerr) {
			attrs = append(attrs, "expected_prev", cerr.Expected, "actual", cerr.Actual)
		}
		p.logger.InfoContext(ctx, "snapshot save conflicted", attrs...)
	default:
		p.logger.ErrorContext(ctx, "snapshot save failed", append(attrs, "err", err)...)
	}

	return err
}

func (p *loggingPersister) Load(ctx context.Context, entityID, partition string) (*domain.State, error) {
	state, err := p.next.Load(ctx, entityID, partition)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		p.logger.ErrorContext(ctx, "snapshot load failed", "entity", entityID, "partition", partition, "err", err)
	}
	return state, err
}

func (p *loggingPersister) LoadHistory(ctx context.Context, entityID, partition string, limit, offset int) ([]*domain.State, error) {
	history, err := p.next.LoadHistory(ctx, entityID, partition, limit, offset)
	if err != nil {
		p.logger.ErrorContext(ctx, "history load failed", "entity", entityID, "partition", partition, "err", err)
	}
	return history, err
}

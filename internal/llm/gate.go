package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/dialectic-sh/dialectic/internal/domain"
)

// ErrGenerationFailure marks errors from the generation backend itself:
// transport failures, non-2xx responses, empty output, timeouts. Callers use
// errors.Is to tell these apart from their own cancellation.
var ErrGenerationFailure = errors.New("generation failure")

// Gate bounds concurrent access to the generation backend with a fixed number
// of slots. A stream holds its slot until its channel closes. The per-call
// timeout starts after the slot is acquired, so queue time does not count
// against generation time.
type Gate struct {
	inner   domain.GenerationClient
	sem     *semaphore.Weighted
	timeout time.Duration
}

func NewGate(inner domain.GenerationClient, slots int64, timeout time.Duration) *Gate {
	if slots < 1 {
		slots = 1
	}
	return &Gate{
		inner:   inner,
		sem:     semaphore.NewWeighted(slots),
		timeout: timeout,
	}
}

func (g *Gate) Generate(ctx context.Context, req domain.GenerateRequest) (string, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer g.sem.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	out, err := g.inner.Generate(callCtx, req)
	if err != nil {
		// Caller cancellation is not a backend failure.
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %w", ErrGenerationFailure, err)
	}
	return out, nil
}

func (g *Gate) GenerateStream(ctx context.Context, req domain.GenerateRequest) (<-chan domain.StreamDelta, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	inner, err := g.inner.GenerateStream(callCtx, req)
	if err != nil {
		cancel()
		g.sem.Release(1)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailure, err)
	}

	out := make(chan domain.StreamDelta)
	go func() {
		defer close(out)
		defer g.sem.Release(1)
		defer cancel()
		for delta := range inner {
			if delta.Err != nil {
				delta.Err = fmt.Errorf("%w: %w", ErrGenerationFailure, delta.Err)
			}
			select {
			case out <- delta:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Package claim grants exclusive ownership of a work item through a single
// conditional status update in the shared store.
package claim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"adflow/internal/domain"
	"adflow/internal/ledger"
)

// StaleRecoveredMessage is written to the error field of an item whose claim
// was abandoned.
const StaleRecoveredMessage = "stale claim recovered"

// Store is the conditional-update surface of the relational store.
type Store interface {
	// CompareAndSwap moves id to `to` only when its stored status is one of
	// from, in one atomic statement. errMsg replaces the stored error message
	// (empty clears it).
	CompareAndSwap(ctx context.Context, entity domain.Entity, id string, from []domain.Status, to domain.Status, errMsg string) (bool, error)
	// RecoverStale moves id from working to `to` only when it is still in
	// working and was last updated before cutoff.
	RecoverStale(ctx context.Context, entity domain.Entity, id string, working domain.Status, cutoff time.Time, to domain.Status, errMsg string) (bool, error)
	// Snapshot reads the current status and last update time.
	Snapshot(ctx context.Context, entity domain.Entity, id string) (domain.Status, time.Time, error)
}

// Request describes one claim attempt.
type Request struct {
	Entity domain.Entity
	ID     string
	From   []domain.Status
	To     domain.Status
	// StaleAfter enables stale-claim recovery when positive.
	StaleAfter time.Duration
}

// Ticket is held by the invocation that won a claim.
type Ticket struct {
	Entity  domain.Entity
	ID      string
	Working domain.Status
}

// Options configures a Coordinator.
type Options struct {
	Logger *zerolog.Logger
	Now    func() time.Time
}

// Coordinator performs claims and terminal writes.
type Coordinator struct {
	store  Store
	logger zerolog.Logger
	now    func() time.Time
}

// NewCoordinator builds a Coordinator over store.
func NewCoordinator(store Store, opts Options) *Coordinator {
	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Coordinator{store: store, logger: logger, now: now}
}

// Claim attempts the transition described by req. It returns false with a nil
// error when another invocation holds a fresh claim.
func (c *Coordinator) Claim(ctx context.Context, req Request) (bool, error) {
	if err := ledger.Validate(req.Entity, req.From, req.To); err != nil {
		return false, err
	}
	ok, err := c.store.CompareAndSwap(ctx, req.Entity, req.ID, req.From, req.To, "")
	if err != nil {
		return false, fmt.Errorf("claim %s %s: %w", req.Entity, req.ID, err)
	}
	if ok {
		return true, nil
	}

	current, updatedAt, err := c.store.Snapshot(ctx, req.Entity, req.ID)
	if err != nil {
		return false, fmt.Errorf("claim %s %s: %w", req.Entity, req.ID, err)
	}
	if !ledger.IsWorking(req.Entity, current) {
		if containsStatus(req.From, current) {
			// The row moved between our update and the read; treat as a lost race.
			return false, nil
		}
		return false, fmt.Errorf("%w: %s %s is %s, want one of %v", domain.ErrInvalidTransition, req.Entity, req.ID, current, req.From)
	}
	if req.StaleAfter <= 0 {
		return false, nil
	}
	cutoff := c.now().Add(-req.StaleAfter)
	if !updatedAt.Before(cutoff) {
		return false, nil
	}

	machine := ledger.MustFor(req.Entity)
	recovered, err := c.store.RecoverStale(ctx, req.Entity, req.ID, current, cutoff, machine.Recovery, StaleRecoveredMessage)
	if err != nil {
		return false, fmt.Errorf("recover stale %s %s: %w", req.Entity, req.ID, err)
	}
	if recovered {
		c.logger.Warn().
			Str("entity", string(req.Entity)).
			Str("id", req.ID).
			Str("status", string(current)).
			Time("updated_at", updatedAt).
			Msg("claim: recovered stale claim")
	}

	// One retry, whether we or a racing caller performed the recovery.
	ok, err = c.store.CompareAndSwap(ctx, req.Entity, req.ID, req.From, req.To, "")
	if err != nil {
		return false, fmt.Errorf("claim %s %s: %w", req.Entity, req.ID, err)
	}
	return ok, nil
}

// Acquire is Claim mapped onto errors: a fresh competing claim yields
// domain.ErrConflict.
func (c *Coordinator) Acquire(ctx context.Context, req Request) (*Ticket, error) {
	ok, err := c.Claim(ctx, req)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s %s is already being processed", domain.ErrConflict, req.Entity, req.ID)
	}
	c.logger.Debug().Str("entity", string(req.Entity)).Str("id", req.ID).Str("status", string(req.To)).Msg("claim: acquired")
	return &Ticket{Entity: req.Entity, ID: req.ID, Working: req.To}, nil
}

// Finish writes the terminal status that releases a ticket. It reports false
// when the claim was lost to stale recovery in the meantime.
func (c *Coordinator) Finish(ctx context.Context, t *Ticket, to domain.Status, errMsg string) (bool, error) {
	if !ledger.CanTransition(t.Entity, t.Working, to) {
		return false, fmt.Errorf("%w: %s %s -> %s", domain.ErrInvalidTransition, t.Entity, t.Working, to)
	}
	ok, err := c.store.CompareAndSwap(ctx, t.Entity, t.ID, []domain.Status{t.Working}, to, errMsg)
	if err != nil {
		return false, fmt.Errorf("finish %s %s: %w", t.Entity, t.ID, err)
	}
	if !ok {
		c.logger.Warn().Str("entity", string(t.Entity)).Str("id", t.ID).Str("status", string(to)).Msg("claim: lost before terminal write")
	}
	return ok, nil
}

// Transition performs an unclaimed conditional move, e.g. a retry reset.
func (c *Coordinator) Transition(ctx context.Context, entity domain.Entity, id string, from []domain.Status, to domain.Status) (bool, error) {
	if err := ledger.Validate(entity, from, to); err != nil {
		return false, err
	}
	return c.store.CompareAndSwap(ctx, entity, id, from, to, "")
}

// RecoverStale moves a working item untouched for longer than staleAfter to
// `to`. It is used by retry operations that also pick up abandoned work.
func (c *Coordinator) RecoverStale(ctx context.Context, entity domain.Entity, id string, working domain.Status, staleAfter time.Duration, to domain.Status) (bool, error) {
	if !ledger.CanTransition(entity, working, to) {
		return false, fmt.Errorf("%w: %s %s -> %s", domain.ErrInvalidTransition, entity, working, to)
	}
	return c.store.RecoverStale(ctx, entity, id, working, c.now().Add(-staleAfter), to, StaleRecoveredMessage)
}

// Outcome is the terminal result reported by a work body.
type Outcome struct {
	Status  domain.Status
	Message string
}

// Succeeded builds a success Outcome.
func Succeeded(status domain.Status) Outcome {
	return Outcome{Status: status}
}

// Run executes work under ticket and always writes a terminal status: the
// outcome returned by work, or the entity's recovery status when work fails
// or panics. The terminal write uses a detached context so a cancelled
// request still releases its claim.
func (c *Coordinator) Run(ctx context.Context, t *Ticket, work func(ctx context.Context) (Outcome, error)) (out Outcome, err error) {
	machine := ledger.MustFor(t.Entity)
	out = Outcome{Status: machine.Recovery, Message: "processing aborted"}

	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Status: machine.Recovery, Message: fmt.Sprintf("panic: %v", r)}
			err = fmt.Errorf("claim: work panicked: %v", r)
		}
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if _, finishErr := c.Finish(releaseCtx, t, out.Status, out.Message); finishErr != nil {
			c.logger.Error().Err(finishErr).Str("entity", string(t.Entity)).Str("id", t.ID).Msg("claim: terminal write failed")
			err = errors.Join(err, finishErr)
		}
	}()

	result, workErr := work(ctx)
	if workErr != nil {
		msg := result.Message
		if msg == "" {
			msg = workErr.Error()
		}
		status := result.Status
		if status == "" || !ledger.IsTerminal(t.Entity, status) {
			status = machine.Recovery
		}
		out = Outcome{Status: status, Message: msg}
		return out, workErr
	}
	out = result
	return out, nil
}

func containsStatus(list []domain.Status, s domain.Status) bool {
	for _, candidate := range list {
		if candidate == s {
			return true
		}
	}
	return false
}

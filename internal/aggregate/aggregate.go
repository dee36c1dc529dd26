// Package aggregate derives a parent's status from its children and advances
// the parent with a conditional update, so repeated and concurrent
// recomputations move it at most once.
package aggregate

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"adflow/internal/claim"
	"adflow/internal/domain"
	"adflow/internal/ledger"
)

// Rule maps the child statuses of one pipeline stage to the parent's next
// status.
type Rule struct {
	Name   string
	Parent domain.Entity
	Child  domain.Entity
	// From is the parent's in-progress status for this stage.
	From domain.Status
	// Next picks the parent status once every child is terminal.
	Next func(c Counts) domain.Status
}

// Counts tallies child statuses.
type Counts struct {
	Total    int
	Terminal int
	ByStatus map[domain.Status]int
}

// AllTerminal reports whether no child is pending or working.
func (c Counts) AllTerminal() bool { return c.Terminal == c.Total }

// Count tallies statuses of child entity kind.
func Count(child domain.Entity, statuses []domain.Status) Counts {
	c := Counts{Total: len(statuses), ByStatus: make(map[domain.Status]int, 4)}
	for _, s := range statuses {
		c.ByStatus[s]++
		if ledger.IsTerminal(child, s) {
			c.Terminal++
		}
	}
	return c
}

var (
	// JobExpansion moves an expanding job to ready once every source image
	// expansion finished, successfully or not.
	JobExpansion = Rule{
		Name:   "job_expansion",
		Parent: domain.EntityImageJob,
		Child:  domain.EntitySourceImage,
		From:   domain.StatusExpanding,
		Next:   func(Counts) domain.Status { return domain.StatusReady },
	}
	// JobTranslation completes a processing job; it fails only when every
	// translation failed.
	JobTranslation = Rule{
		Name:   "job_translation",
		Parent: domain.EntityImageJob,
		Child:  domain.EntityImageTranslation,
		From:   domain.StatusProcessing,
		Next: func(c Counts) domain.Status {
			if c.Total > 0 && c.ByStatus[domain.StatusFailed] == c.Total {
				return domain.StatusFailed
			}
			return domain.StatusCompleted
		},
	}
	// CampaignPush marks a campaign pushed when it has no ads or at least one
	// ad reached the platform.
	CampaignPush = Rule{
		Name:   "campaign_push",
		Parent: domain.EntityCampaign,
		Child:  domain.EntityAd,
		From:   domain.StatusPushing,
		Next: func(c Counts) domain.Status {
			if c.Total == 0 || c.ByStatus[domain.StatusPushed] > 0 {
				return domain.StatusPushed
			}
			return domain.StatusError
		},
	}
)

// Recompute returns the parent's next status and true when every child is
// terminal. It depends only on the counts, never on which child changed.
func Recompute(rule Rule, children []domain.Status) (domain.Status, bool) {
	c := Count(rule.Child, children)
	if !c.AllTerminal() {
		return "", false
	}
	return rule.Next(c), true
}

// Advancer applies rules through the claim coordinator.
type Advancer struct {
	coord  *claim.Coordinator
	logger zerolog.Logger
}

// NewAdvancer builds an Advancer; a nil logger discards output.
func NewAdvancer(coord *claim.Coordinator, logger *zerolog.Logger) *Advancer {
	l := zerolog.New(io.Discard)
	if logger != nil {
		l = *logger
	}
	return &Advancer{coord: coord, logger: l}
}

// Apply recomputes rule over children and, when they are all terminal, moves
// parentID out of rule.From. It returns the status written and whether this
// call performed the move.
func (a *Advancer) Apply(ctx context.Context, rule Rule, parentID string, children []domain.Status) (domain.Status, bool, error) {
	next, ready := Recompute(rule, children)
	if !ready {
		return "", false, nil
	}
	moved, err := a.coord.Transition(ctx, rule.Parent, parentID, []domain.Status{rule.From}, next)
	if err != nil {
		return "", false, fmt.Errorf("aggregate %s %s: %w", rule.Name, parentID, err)
	}
	if moved {
		a.logger.Info().
			Str("entity", string(rule.Parent)).
			Str("id", parentID).
			Str("status", string(next)).
			Int("children", len(children)).
			Msg("aggregate: parent advanced")
	}
	return next, moved, nil
}

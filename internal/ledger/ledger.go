// Package ledger holds the status machines of every work entity. It performs
// no I/O; writers consult it before issuing a conditional update.
package ledger

import (
	"fmt"

	"adflow/internal/domain"
)

// Machine describes the legal states and transitions of one entity.
type Machine struct {
	Entity  domain.Entity
	Initial domain.Status
	// Working states mark an item as claimed by an in-flight invocation.
	Working []domain.Status
	// Terminal states end an automatic lifecycle stage.
	Terminal []domain.Status
	// Recovery is the state a stale claim is moved to before it is re-claimed.
	Recovery domain.Status
	// Transitions maps a target state to its legal source states.
	Transitions map[domain.Status][]domain.Status
}

var machines = map[domain.Entity]Machine{
	domain.EntityImageJob: {
		Entity:   domain.EntityImageJob,
		Initial:  domain.StatusDraft,
		Working:  []domain.Status{domain.StatusExpanding, domain.StatusProcessing},
		Terminal: []domain.Status{domain.StatusCompleted, domain.StatusFailed},
		Recovery: domain.StatusFailed,
		Transitions: map[domain.Status][]domain.Status{
			domain.StatusExpanding:  {domain.StatusDraft},
			domain.StatusReady:      {domain.StatusDraft, domain.StatusExpanding},
			domain.StatusProcessing: {domain.StatusReady, domain.StatusCompleted, domain.StatusFailed},
			domain.StatusCompleted:  {domain.StatusProcessing},
			domain.StatusFailed:     {domain.StatusExpanding, domain.StatusProcessing},
		},
	},
	domain.EntitySourceImage: {
		Entity:   domain.EntitySourceImage,
		Initial:  domain.StatusPending,
		Working:  []domain.Status{domain.StatusProcessing},
		Terminal: []domain.Status{domain.StatusCompleted, domain.StatusFailed},
		Recovery: domain.StatusFailed,
		Transitions: map[domain.Status][]domain.Status{
			domain.StatusProcessing: {domain.StatusPending, domain.StatusFailed},
			domain.StatusCompleted:  {domain.StatusProcessing},
			domain.StatusFailed:     {domain.StatusProcessing},
			domain.StatusPending:    {domain.StatusFailed, domain.StatusProcessing},
		},
	},
	domain.EntityImageTranslation: {
		Entity:   domain.EntityImageTranslation,
		Initial:  domain.StatusPending,
		Working:  []domain.Status{domain.StatusProcessing},
		Terminal: []domain.Status{domain.StatusCompleted, domain.StatusFailed},
		Recovery: domain.StatusFailed,
		Transitions: map[domain.Status][]domain.Status{
			domain.StatusProcessing: {domain.StatusPending, domain.StatusFailed},
			domain.StatusCompleted:  {domain.StatusProcessing},
			domain.StatusFailed:     {domain.StatusProcessing},
			domain.StatusPending:    {domain.StatusFailed, domain.StatusProcessing},
		},
	},
	domain.EntityTranslation: {
		Entity:   domain.EntityTranslation,
		Initial:  domain.StatusDraft,
		Working:  []domain.Status{domain.StatusTranslating, domain.StatusPublishing},
		Terminal: []domain.Status{domain.StatusTranslated, domain.StatusPublished, domain.StatusError},
		Recovery: domain.StatusError,
		Transitions: map[domain.Status][]domain.Status{
			domain.StatusTranslating: {domain.StatusDraft, domain.StatusTranslated, domain.StatusError},
			domain.StatusTranslated:  {domain.StatusTranslating},
			domain.StatusPublishing:  {domain.StatusTranslated, domain.StatusPublished, domain.StatusError},
			domain.StatusPublished:   {domain.StatusPublishing},
			domain.StatusError:       {domain.StatusTranslating, domain.StatusPublishing},
			domain.StatusDraft:       {domain.StatusError},
		},
	},
	domain.EntityABTest: {
		Entity:   domain.EntityABTest,
		Initial:  domain.StatusDraft,
		Terminal: []domain.Status{domain.StatusCompleted},
		Transitions: map[domain.Status][]domain.Status{
			domain.StatusActive:    {domain.StatusDraft},
			domain.StatusCompleted: {domain.StatusActive},
		},
	},
	domain.EntityCampaign: {
		Entity:   domain.EntityCampaign,
		Initial:  domain.StatusDraft,
		Working:  []domain.Status{domain.StatusPushing},
		Terminal: []domain.Status{domain.StatusPushed, domain.StatusError},
		Recovery: domain.StatusError,
		Transitions: map[domain.Status][]domain.Status{
			domain.StatusPushing: {domain.StatusDraft, domain.StatusError},
			domain.StatusPushed:  {domain.StatusPushing},
			domain.StatusError:   {domain.StatusPushing},
		},
	},
	domain.EntityAd: {
		Entity:   domain.EntityAd,
		Initial:  domain.StatusPending,
		Working:  []domain.Status{domain.StatusUploading},
		Terminal: []domain.Status{domain.StatusPushed, domain.StatusError},
		Recovery: domain.StatusError,
		Transitions: map[domain.Status][]domain.Status{
			domain.StatusUploading: {domain.StatusPending, domain.StatusError},
			domain.StatusPushed:    {domain.StatusUploading},
			domain.StatusError:     {domain.StatusUploading},
		},
	},
}

// For returns the machine of an entity.
func For(entity domain.Entity) (Machine, bool) {
	m, ok := machines[entity]
	return m, ok
}

// MustFor is For for entities known at compile time.
func MustFor(entity domain.Entity) Machine {
	m, ok := machines[entity]
	if !ok {
		panic(fmt.Sprintf("ledger: unknown entity %q", entity))
	}
	return m
}

// CanTransition reports whether moving entity from one status to another is
// legal.
func CanTransition(entity domain.Entity, from, to domain.Status) bool {
	m, ok := machines[entity]
	if !ok {
		return false
	}
	return contains(m.Transitions[to], from)
}

// Sources returns the legal source states for a target state.
func Sources(entity domain.Entity, to domain.Status) []domain.Status {
	m, ok := machines[entity]
	if !ok {
		return nil
	}
	return append([]domain.Status(nil), m.Transitions[to]...)
}

// Initial returns the state an entity is created in.
func Initial(entity domain.Entity) domain.Status {
	return machines[entity].Initial
}

// IsWorking reports whether status marks an active claim.
func IsWorking(entity domain.Entity, status domain.Status) bool {
	return contains(machines[entity].Working, status)
}

// IsTerminal reports whether status ends an automatic lifecycle stage.
func IsTerminal(entity domain.Entity, status domain.Status) bool {
	return contains(machines[entity].Terminal, status)
}

// IsKnown reports whether status belongs to the entity's state set.
func IsKnown(entity domain.Entity, status domain.Status) bool {
	m, ok := machines[entity]
	if !ok {
		return false
	}
	if status == m.Initial || contains(m.Working, status) || contains(m.Terminal, status) {
		return true
	}
	if _, ok := m.Transitions[status]; ok {
		return true
	}
	for _, sources := range m.Transitions {
		if contains(sources, status) {
			return true
		}
	}
	return false
}

// Validate checks that every source in from can legally move to to.
func Validate(entity domain.Entity, from []domain.Status, to domain.Status) error {
	if _, ok := machines[entity]; !ok {
		return fmt.Errorf("ledger: unknown entity %q", entity)
	}
	if len(from) == 0 {
		return fmt.Errorf("%w: %s has no source states for %s", domain.ErrInvalidTransition, entity, to)
	}
	for _, src := range from {
		if !CanTransition(entity, src, to) {
			return fmt.Errorf("%w: %s %s -> %s", domain.ErrInvalidTransition, entity, src, to)
		}
	}
	return nil
}

func contains(list []domain.Status, s domain.Status) bool {
	for _, candidate := range list {
		if candidate == s {
			return true
		}
	}
	return false
}

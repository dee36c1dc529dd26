package pipeline

import (
	"context"
	"fmt"

	"adflow/internal/domain"
)

// NewABTest pairs a control translation with a fresh variant.
type NewABTest struct {
	ControlTranslationID string
	SplitPercentage      int
}

// CreateABTest creates a draft test and its variant translation, seeded from
// the control's content.
func (s *Service) CreateABTest(ctx context.Context, in NewABTest) (*domain.ABTest, error) {
	split := in.SplitPercentage
	if split == 0 {
		split = 50
	}
	if split < 1 || split > 99 {
		return nil, fmt.Errorf("%w: split percentage must be between 1 and 99", domain.ErrInvalidInput)
	}
	control, err := s.Pages.GetTranslation(ctx, in.ControlTranslationID)
	if err != nil {
		return nil, err
	}
	variant := &domain.Translation{
		PageID:            control.PageID,
		Language:          control.Language,
		Variant:           domain.WinnerVariant,
		Status:            domain.StatusDraft,
		SourceContent:     control.SourceContent,
		TranslatedContent: control.TranslatedContent,
	}
	if err := s.Pages.CreateTranslation(ctx, variant); err != nil {
		return nil, fmt.Errorf("create variant: %w", err)
	}
	test := &domain.ABTest{
		PageID:               control.PageID,
		Language:             control.Language,
		ControlTranslationID: control.ID,
		VariantTranslationID: variant.ID,
		SplitPercentage:      split,
		Status:               domain.StatusDraft,
	}
	if err := s.ABTests.CreateABTest(ctx, test); err != nil {
		return nil, fmt.Errorf("create ab test: %w", err)
	}
	return test, nil
}

// StartABTest activates a draft test.
func (s *Service) StartABTest(ctx context.Context, id string) (*domain.ABTest, error) {
	if _, err := s.ABTests.GetABTest(ctx, id); err != nil {
		return nil, err
	}
	if err := s.transition(ctx, domain.EntityABTest, id, []domain.Status{domain.StatusDraft}, domain.StatusActive); err != nil {
		return nil, err
	}
	return s.ABTests.GetABTest(ctx, id)
}

// CompleteABTest ends an active test and records the winner.
func (s *Service) CompleteABTest(ctx context.Context, id, winner string) (*domain.ABTest, error) {
	if winner != domain.WinnerControl && winner != domain.WinnerVariant {
		return nil, fmt.Errorf("%w: winner must be %q or %q", domain.ErrInvalidInput, domain.WinnerControl, domain.WinnerVariant)
	}
	if _, err := s.ABTests.GetABTest(ctx, id); err != nil {
		return nil, err
	}
	if err := s.transition(ctx, domain.EntityABTest, id, []domain.Status{domain.StatusActive}, domain.StatusCompleted); err != nil {
		return nil, err
	}
	if err := s.ABTests.SetWinner(ctx, id, winner); err != nil {
		return nil, fmt.Errorf("set winner: %w", err)
	}
	return s.ABTests.GetABTest(ctx, id)
}

// DeleteABTest removes a test and its variant; the control stays.
func (s *Service) DeleteABTest(ctx context.Context, id string) error {
	if _, err := s.ABTests.GetABTest(ctx, id); err != nil {
		return err
	}
	return s.ABTests.DeleteABTest(ctx, id)
}

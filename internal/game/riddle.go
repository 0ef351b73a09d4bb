package game

import (
	"context"
	"fmt"

	"github.com/skrafl/server/internal/store"
)

// RiddleOfDay returns the daily puzzle for a locale and date (YYYY-MM-DD).
// The locale is resolved through the registry so regional variants share
// their language's riddle when no specific one exists.
func (s *Service) RiddleOfDay(ctx context.Context, b store.Backend, localeCode, date string) (*store.Riddle, error) {
	loc := s.reg.Get(localeCode)
	r, err := b.Riddles().Get(ctx, loc.Code, date)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("%w: no riddle for %s on %s", store.ErrNotFound, loc.Code, date)
	}
	return r, nil
}

// SetRiddle stores or replaces the daily puzzle. The solution must spell
// with the locale's alphabet.
func (s *Service) SetRiddle(ctx context.Context, b store.Backend, r *store.Riddle) error {
	loc := s.reg.Get(r.Locale)
	solution, err := loc.Alphabet.Normalize(r.Solution)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrIllegalState, err)
	}
	stored := *r
	stored.Locale = loc.Code
	stored.Solution = solution
	return b.Riddles().Put(ctx, &stored)
}

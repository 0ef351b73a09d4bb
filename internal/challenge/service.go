// Package challenge implements matchmaking: issuing, retracting,
// declining and accepting challenges, where acceptance creates the game.
package challenge

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/skrafl/server/internal/game"
	"github.com/skrafl/server/internal/store"
)

type Service struct {
	games  *game.Service
	notify game.Notifier
	log    *zap.Logger
	now    func() time.Time
}

func NewService(games *game.Service, notify game.Notifier, log *zap.Logger) *Service {
	return &Service{
		games:  games,
		notify: notify,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Issue creates a challenge from src to dest. Blocked or nonexistent
// recipients refuse the challenge.
func (s *Service) Issue(ctx context.Context, b store.Backend, src, dest string, prefs store.GamePrefs) (*store.Challenge, error) {
	if src == dest {
		return nil, fmt.Errorf("%w: cannot challenge oneself", store.ErrIllegalState)
	}
	u, err := b.Users().Get(ctx, dest)
	if err != nil {
		return nil, err
	}
	if u == nil || u.Inactive {
		return nil, fmt.Errorf("%w: user %s", store.ErrNotFound, dest)
	}
	blocked, err := b.Blocks().Has(ctx, dest, src)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, fmt.Errorf("%w: recipient has blocked the challenger", store.ErrForbidden)
	}

	c := &store.Challenge{
		Key:       b.GenerateID(),
		Src:       src,
		Dest:      dest,
		Prefs:     prefs,
		Timestamp: s.now(),
	}
	if err := b.Challenges().Add(ctx, c); err != nil {
		return nil, err
	}
	s.notifyUser(ctx, dest, game.EventChallenge)
	return c, nil
}

// Retract withdraws a challenge previously issued by src. An empty key
// targets the newest challenge toward dest.
func (s *Service) Retract(ctx context.Context, b store.Backend, src, dest, key string) error {
	c, err := b.Challenges().Find(ctx, src, dest, key)
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("%w: no such challenge", store.ErrNotFound)
	}
	return b.Challenges().Delete(ctx, c.Key)
}

// Decline removes a challenge received by dest without creating a game.
func (s *Service) Decline(ctx context.Context, b store.Backend, dest, src, key string) error {
	c, err := b.Challenges().Find(ctx, src, dest, key)
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("%w: no such challenge", store.ErrNotFound)
	}
	if err := b.Challenges().Delete(ctx, c.Key); err != nil {
		return err
	}
	s.notifyUser(ctx, src, game.EventChallenge)
	return nil
}

// Accept consumes the challenge and creates the game in one transaction,
// so a concurrent retract cannot race a half-created game. The game is
// played in the accepting user's locale.
func (s *Service) Accept(ctx context.Context, b store.Backend, dest, src, key string) (*store.Game, error) {
	var created *store.Game
	err := b.Transaction(ctx, func(ctx context.Context, b store.Backend) error {
		c, err := b.Challenges().Find(ctx, src, dest, key)
		if err != nil {
			return err
		}
		if c == nil {
			return fmt.Errorf("%w: no such challenge", store.ErrNotFound)
		}
		accepter, err := b.Users().Get(ctx, dest)
		if err != nil {
			return err
		}
		if accepter == nil {
			return fmt.Errorf("%w: user %s", store.ErrNotFound, dest)
		}
		if err := b.Challenges().Delete(ctx, c.Key); err != nil {
			return err
		}
		created, err = s.games.New(ctx, b, &c.Src, &c.Dest, 0, c.Prefs, accepter.Locale)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.notifyUser(ctx, src, game.EventChallenge)
	return created, nil
}

// ListIssued and ListReceived return the user's pending challenges,
// newest first.
func (s *Service) ListIssued(ctx context.Context, b store.Backend, userID string) ([]*store.Challenge, error) {
	return b.Challenges().ListIssued(ctx, userID)
}

func (s *Service) ListReceived(ctx context.Context, b store.Backend, userID string) ([]*store.Challenge, error) {
	return b.Challenges().ListReceived(ctx, userID)
}

func (s *Service) notifyUser(ctx context.Context, userID, event string) {
	if s.notify == nil {
		return
	}
	if err := s.notify.Notify(ctx, userID, event); err != nil {
		s.log.Warn("notification failed",
			zap.String("user", userID), zap.String("event", event), zap.Error(err))
	}
}

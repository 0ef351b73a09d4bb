// Package user implements account lifecycle, lookups, social edges and
// the full cascade delete.
package user

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/skrafl/server/internal/store"
)

type Service struct {
	log *zap.Logger
	now func() time.Time
}

func NewService(log *zap.Logger) *Service {
	return &Service{
		log: log,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// NewAccount carries the caller-supplied fields of a fresh account.
type NewAccount struct {
	Account  string
	Email    string
	Nickname string
	Image    string
	Locale   string
	Prefs    store.Prefs
}

// Create registers a new account with computed lookup fields and default
// preferences. A duplicate account id is a Conflict.
func (s *Service) Create(ctx context.Context, b store.Backend, na *NewAccount) (*store.User, error) {
	if na.Nickname == "" {
		return nil, fmt.Errorf("%w: nickname required", store.ErrIllegalState)
	}
	locale := na.Locale
	if locale == "" {
		locale = store.DefaultLocale
	}
	prefs := store.DefaultPrefs().Merged(na.Prefs)
	now := s.now()
	u := &store.User{
		ID:            b.GenerateID(),
		Account:       na.Account,
		Email:         strings.ToLower(na.Email),
		Nickname:      na.Nickname,
		NickLower:     strings.ToLower(na.Nickname),
		FullNameLower: strings.ToLower(prefs.FullName()),
		Image:         na.Image,
		Locale:        locale,
		Prefs:         prefs,
		Ready:         true,
		ReadyTimed:    true,
		Elo:           store.DefaultElo,
		HumanElo:      store.DefaultElo,
		ManualElo:     store.DefaultElo,
		Timestamp:     now,
		LastLogin:     now,
	}
	if err := b.Users().Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login resolves an external-auth subject to a user, creating the account
// on first sight, and stamps last_login.
func (s *Service) Login(ctx context.Context, b store.Backend, na *NewAccount) (*store.User, error) {
	u, err := b.Users().ByAccount(ctx, na.Account)
	if err != nil {
		return nil, err
	}
	if u == nil && na.Email != "" {
		// Legacy accounts may predate the external subject; link by email.
		if u, err = b.Users().ByEmail(ctx, strings.ToLower(na.Email)); err != nil {
			return nil, err
		}
		if u != nil {
			if err := b.Users().Update(ctx, u.ID, store.Updates{"account": na.Account}); err != nil {
				return nil, err
			}
			u.Account = na.Account
		}
	}
	if u == nil {
		return s.Create(ctx, b, na)
	}
	now := s.now()
	if err := b.Users().Update(ctx, u.ID, store.Updates{"last_login": now}); err != nil {
		return nil, err
	}
	u.LastLogin = now
	return u, nil
}

// Get loads a user by id, translating absence into NotFound.
func (s *Service) Get(ctx context.Context, b store.Backend, id string) (*store.User, error) {
	u, err := b.Users().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: user %s", store.ErrNotFound, id)
	}
	return u, nil
}

// Update applies profile changes, keeping the derived lookup fields in
// step: a nickname change rewrites nick_lower, a prefs change rewrites
// full_name_lower, and locale or chat settings propagate to their
// denormalized columns.
func (s *Service) Update(ctx context.Context, b store.Backend, id string, up store.Updates) error {
	derived := store.Updates{}
	for k, v := range up {
		derived[k] = v
	}
	if nick, ok := up["nickname"].(string); ok {
		if nick == "" {
			return fmt.Errorf("%w: nickname cannot be empty", store.ErrIllegalState)
		}
		derived["nick_lower"] = strings.ToLower(nick)
	}
	if p, ok := up["prefs"].(store.Prefs); ok {
		derived["full_name_lower"] = strings.ToLower(p.FullName())
		derived["chat_disabled"] = p.GetBool("chat_disabled", false)
		derived["ready"] = p.GetBool("ready", true)
		derived["ready_timed"] = p.GetBool("ready_timed", true)
	}
	return b.Users().Update(ctx, id, derived)
}

// Search finds users by nickname or full-name prefix, case-insensitively.
func (s *Service) Search(ctx context.Context, b store.Backend, prefix, locale string, limit int) ([]*store.User, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return nil, nil
	}
	return b.Users().SearchPrefix(ctx, prefix, locale, limit)
}

// SimilarElo returns up to n users rated around elo: the closest half
// below (descending) followed by the closest half at or above
// (ascending). The caller filters out itself and blocked users.
func (s *Service) SimilarElo(ctx context.Context, b store.Backend, elo int, locale string, n int) ([]*store.User, error) {
	if n <= 0 {
		n = 20
	}
	below, err := b.Users().BelowHumanElo(ctx, elo, locale, n/2)
	if err != nil {
		return nil, err
	}
	above, err := b.Users().AtOrAboveHumanElo(ctx, elo, locale, n-len(below))
	if err != nil {
		return nil, err
	}
	return append(below, above...), nil
}

// Delete removes the account and every record keyed on it. Finished and
// live games are retained with the seat nulled so opponents keep their
// history and scoreboards.
func (s *Service) Delete(ctx context.Context, b store.Backend, id string) error {
	u, err := b.Users().Get(ctx, id)
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("%w: user %s", store.ErrNotFound, id)
	}

	steps := []func(context.Context, string) error{
		b.Elo().DeleteForUser,
		b.Stats().DeleteForUser,
		b.Favorites().DeleteForUser,
		b.Blocks().DeleteForUser,
		b.Challenges().DeleteForUser,
		b.Chat().DeleteForUser,
		b.Zombies().DeleteForUser,
		b.Reports().DeleteForUser,
		b.Promos().DeleteForUser,
		b.Transactions().DeleteForUser,
		b.Submissions().DeleteForUser,
		b.Images().DeleteForUser,
		b.Games().NullPlayer,
	}
	for _, step := range steps {
		if err := step(ctx, id); err != nil {
			return err
		}
	}
	if err := b.Users().Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("account deleted", zap.String("user", id))
	return nil
}

// AddFavorite and RemoveFavorite manage the directional favorite edge.
func (s *Service) AddFavorite(ctx context.Context, b store.Backend, src, dest string) error {
	if src == dest {
		return fmt.Errorf("%w: cannot favor oneself", store.ErrIllegalState)
	}
	return b.Favorites().Add(ctx, src, dest)
}

func (s *Service) RemoveFavorite(ctx context.Context, b store.Backend, src, dest string) error {
	return b.Favorites().Remove(ctx, src, dest)
}

func (s *Service) Favorites(ctx context.Context, b store.Backend, src string) ([]string, error) {
	return b.Favorites().ListByUser(ctx, src)
}

// Block suppresses interaction from blocked toward blocker.
func (s *Service) Block(ctx context.Context, b store.Backend, blocker, blocked string) error {
	if blocker == blocked {
		return fmt.Errorf("%w: cannot block oneself", store.ErrIllegalState)
	}
	return b.Blocks().Add(ctx, blocker, blocked)
}

func (s *Service) Unblock(ctx context.Context, b store.Backend, blocker, blocked string) error {
	return b.Blocks().Remove(ctx, blocker, blocked)
}

// BlockedSet returns the ids blocked by the user as a set, for filtering
// lists and chat.
func (s *Service) BlockedSet(ctx context.Context, b store.Backend, blocker string) (map[string]bool, error) {
	ids, err := b.Blocks().ListBlockedBy(ctx, blocker)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// Report files a conduct report against a user.
func (s *Service) Report(ctx context.Context, b store.Backend, reporter, reported string, code int, text string) error {
	return b.Reports().Add(ctx, &store.Report{
		Reporter:  reporter,
		Reported:  reported,
		Code:      code,
		Text:      text,
		Timestamp: s.now(),
	})
}

// RecordPromo notes that a promotion was shown to the user.
func (s *Service) RecordPromo(ctx context.Context, b store.Backend, userID, promotion string) error {
	return b.Promos().Add(ctx, &store.Promo{
		UserID:    userID,
		Promotion: promotion,
		Timestamp: s.now(),
	})
}

// PromoSeenCount returns how many times a promotion has been shown to the
// user, so clients can cap the nag frequency.
func (s *Service) PromoSeenCount(ctx context.Context, b store.Backend, userID, promotion string) (int, error) {
	promos, err := b.Promos().ListForUser(ctx, userID, promotion)
	if err != nil {
		return 0, err
	}
	return len(promos), nil
}

// RecordPlanChange logs a subscription event from the payment processor
// and updates the user's current plan. An empty plan clears it.
func (s *Service) RecordPlanChange(ctx context.Context, b store.Backend, userID, plan, kind string) error {
	if err := b.Transactions().Add(ctx, &store.Transaction{
		UserID:    userID,
		Plan:      plan,
		Kind:      kind,
		Timestamp: s.now(),
	}); err != nil {
		return err
	}
	var p *string
	if plan != "" {
		p = &plan
	}
	return b.Users().Update(ctx, userID, store.Updates{"plan": p})
}

// SubmitWord files a user-proposed dictionary addition for review.
func (s *Service) SubmitWord(ctx context.Context, b store.Backend, userID, locale, word, comment string) error {
	word = strings.TrimSpace(word)
	if word == "" {
		return fmt.Errorf("%w: empty word", store.ErrIllegalState)
	}
	return b.Submissions().Add(ctx, &store.Submission{
		UserID:    userID,
		Locale:    locale,
		Word:      word,
		Comment:   comment,
		Timestamp: s.now(),
	})
}

// SetImage stores a profile image blob and records the serving URL on the
// user.
func (s *Service) SetImage(ctx context.Context, b store.Backend, userID string, mimeType string, blob []byte, url string) error {
	if err := b.Images().Put(ctx, &store.Image{
		UserID:    userID,
		MimeType:  mimeType,
		Data:      blob,
		Timestamp: s.now(),
	}); err != nil {
		return err
	}
	return b.Users().Update(ctx, userID, store.Updates{"image": url})
}

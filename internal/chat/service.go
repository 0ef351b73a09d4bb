// Package chat implements in-game and direct-message chat with
// read-marker semantics: an empty message is the sender's high-water
// mark in a conversation.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/skrafl/server/internal/game"
	"github.com/skrafl/server/internal/store"
)

type Service struct {
	notify game.Notifier
	log    *zap.Logger
	now    func() time.Time
}

func NewService(notify game.Notifier, log *zap.Logger) *Service {
	return &Service{
		notify: notify,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// UserChannel returns the canonical direct-message channel between two
// users: the lexicographically smaller id comes first, so both parties
// resolve to the same channel.
func UserChannel(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return "user:" + a + ":" + b
}

// GameChannel returns the in-game chat channel of a game.
func GameChannel(gameID string) string {
	return "game:" + gameID
}

// channelCounterpart extracts the other participant of a DM channel, or
// "" for game channels.
func channelCounterpart(channel, userID string) string {
	if !strings.HasPrefix(channel, "user:") {
		return ""
	}
	parts := strings.SplitN(channel[len("user:"):], ":", 2)
	if len(parts) != 2 {
		return ""
	}
	if parts[0] == userID {
		return parts[1]
	}
	return parts[0]
}

// Send posts a message (or, with empty text, a read marker) to a channel.
// Game channels admit only the two players; DM channels are refused when
// either side has blocked the other or disabled chat.
func (s *Service) Send(ctx context.Context, b store.Backend, userID, channel, text string) (string, error) {
	var recipient *string
	switch {
	case strings.HasPrefix(channel, "game:"):
		g, err := b.Games().Get(ctx, strings.TrimPrefix(channel, "game:"))
		if err != nil {
			return "", err
		}
		if g == nil {
			return "", fmt.Errorf("%w: no such game", store.ErrNotFound)
		}
		if !isParticipant(g, userID) {
			return "", fmt.Errorf("%w: not a participant", store.ErrForbidden)
		}
		if opp := opponentOf(g, userID); opp != nil {
			recipient = opp
		}
	case strings.HasPrefix(channel, "user:"):
		other := channelCounterpart(channel, userID)
		if other == "" {
			return "", fmt.Errorf("%w: malformed channel %q", store.ErrIllegalState, channel)
		}
		if channel != UserChannel(userID, other) {
			return "", fmt.Errorf("%w: non-canonical channel %q", store.ErrIllegalState, channel)
		}
		if err := s.checkDMAllowed(ctx, b, userID, other, text); err != nil {
			return "", err
		}
		recipient = &other
	default:
		return "", fmt.Errorf("%w: unknown channel %q", store.ErrIllegalState, channel)
	}

	id, err := b.Chat().Add(ctx, &store.ChatMessage{
		Channel:   channel,
		UserID:    userID,
		Recipient: recipient,
		Text:      text,
		Timestamp: s.now(),
	})
	if err != nil {
		return "", err
	}
	// Read markers are bookkeeping; only real messages notify.
	if text != "" && recipient != nil && s.notify != nil {
		if err := s.notify.Notify(ctx, *recipient, game.EventChat); err != nil {
			s.log.Warn("notification failed",
				zap.String("user", *recipient), zap.Error(err))
		}
	}
	return id, nil
}

// checkDMAllowed refuses real messages across a block or to a user with
// chat disabled. Read markers always pass so conversations can still be
// acknowledged.
func (s *Service) checkDMAllowed(ctx context.Context, b store.Backend, from, to, text string) error {
	if text == "" {
		return nil
	}
	for _, pair := range [][2]string{{to, from}, {from, to}} {
		blocked, err := b.Blocks().Has(ctx, pair[0], pair[1])
		if err != nil {
			return err
		}
		if blocked {
			return fmt.Errorf("%w: chat blocked", store.ErrForbidden)
		}
	}
	u, err := b.Users().Get(ctx, to)
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("%w: user %s", store.ErrNotFound, to)
	}
	if u.ChatDisabled {
		return fmt.Errorf("%w: recipient has disabled chat", store.ErrForbidden)
	}
	return nil
}

// MarkRead records userID's read marker in the DM conversation with other.
func (s *Service) MarkRead(ctx context.Context, b store.Backend, userID, other string) error {
	_, err := s.Send(ctx, b, userID, UserChannel(userID, other), "")
	return err
}

// History returns up to maxLen real messages of a channel, newest first.
// Read markers do not count against maxLen but are included so clients
// can place the unread divider. The window widens until it holds maxLen
// real messages or the channel is exhausted.
func (s *Service) History(ctx context.Context, b store.Backend, userID, channel string, maxLen int) ([]*store.ChatMessage, error) {
	if strings.HasPrefix(channel, "user:") && channelCounterpart(channel, userID) == "" {
		return nil, fmt.Errorf("%w: not a participant", store.ErrForbidden)
	}
	limit := maxLen*2 + 8
	for {
		msgs, err := b.Chat().ListNewestFirst(ctx, channel, limit)
		if err != nil {
			return nil, err
		}
		out := make([]*store.ChatMessage, 0, len(msgs))
		real := 0
		for _, m := range msgs {
			if m.Text != "" {
				if real >= maxLen {
					break
				}
				real++
			}
			out = append(out, m)
		}
		// len(msgs) < limit means the channel has no further messages.
		if real >= maxLen || len(msgs) < limit {
			return out, nil
		}
		limit *= 2
	}
}

// Conversation is one DM thread summary.
type Conversation struct {
	Other   string
	Last    *store.ChatMessage
	Unread  bool
	LastTs  time.Time
	Preview string

	ownSeen bool // scan state: the user's own message or marker was seen
}

// Conversations lists the user's DM threads, newest first, skipping
// threads whose counterpart is in blockedSet.
func (s *Service) Conversations(ctx context.Context, b store.Backend, userID string, limit int, blockedSet map[string]bool) ([]*Conversation, error) {
	msgs, err := b.Chat().ListForUser(ctx, userID, limit*20)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]*Conversation)
	order := []*Conversation{}
	for _, m := range msgs {
		other := channelCounterpart(m.Channel, userID)
		if other == "" || blockedSet[other] {
			continue
		}
		conv := seen[other]
		if conv == nil {
			if len(order) >= limit {
				continue
			}
			conv = &Conversation{Other: other}
			seen[other] = conv
			order = append(order, conv)
		}
		// Newest-first scan: the first real message seen is the thread
		// head; unread when it is the counterpart's and no own marker or
		// message preceded it (i.e. came after it in time).
		if conv.Last == nil && m.Text != "" {
			conv.Last = m
			conv.LastTs = m.Timestamp
			conv.Preview = m.Text
			conv.Unread = m.UserID != userID && !conv.ownSeen
		}
		if m.UserID == userID {
			conv.ownSeen = true
		}
	}
	out := order[:0]
	for _, c := range order {
		if c.Last != nil {
			out = append(out, c)
		}
	}
	return out, nil
}

// CheckUnread reports whether a channel holds a message the user has not
// seen. The scan runs newest to oldest: a real message from another
// sender decides unread, the user's own read marker decides read, and
// everything else (the user's own messages, other senders' markers) is
// passed over. The window widens until a rule fires or the channel is
// exhausted.
func (s *Service) CheckUnread(ctx context.Context, b store.Backend, channel, userID string) (bool, error) {
	limit := 64
	for {
		msgs, err := b.Chat().ListNewestFirst(ctx, channel, limit)
		if err != nil {
			return false, err
		}
		for _, m := range msgs {
			if m.UserID != userID && m.Text != "" {
				return true, nil
			}
			if m.UserID == userID && m.Text == "" {
				return false, nil
			}
		}
		if len(msgs) < limit {
			return false, nil
		}
		limit *= 2
	}
}

// AnyUnread reports whether any of the user's DM threads is unread, by
// running the channel scan over each thread the user appears in.
func (s *Service) AnyUnread(ctx context.Context, b store.Backend, userID string) (bool, error) {
	msgs, err := b.Chat().ListForUser(ctx, userID, 200)
	if err != nil {
		return false, err
	}
	seen := make(map[string]bool)
	for _, m := range msgs {
		if seen[m.Channel] {
			continue
		}
		seen[m.Channel] = true
		unread, err := s.CheckUnread(ctx, b, m.Channel, userID)
		if err != nil {
			return false, err
		}
		if unread {
			return true, nil
		}
	}
	return false, nil
}

func isParticipant(g *store.Game, userID string) bool {
	return (g.Player0 != nil && *g.Player0 == userID) ||
		(g.Player1 != nil && *g.Player1 == userID)
}

func opponentOf(g *store.Game, userID string) *string {
	if g.Player0 != nil && *g.Player0 == userID {
		return g.Player1
	}
	return g.Player0
}

package storetest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/skrafl/server/internal/store"
)

type userRepo struct{ m *Memory }

func (r *userRepo) Get(ctx context.Context, id string) (*store.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return cloneUser(r.m.users[id]), nil
}

func (r *userRepo) GetMulti(ctx context.Context, ids []string) (map[string]*store.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	result := make(map[string]*store.User, len(ids))
	for _, id := range ids {
		if u := r.m.users[id]; u != nil {
			result[id] = cloneUser(u)
		}
	}
	return result, nil
}

func (r *userRepo) ByAccount(ctx context.Context, account string) (*store.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if u.Account == account && account != "" {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (r *userRepo) ByEmail(ctx context.Context, email string) (*store.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var best *store.User
	for _, u := range r.m.users {
		if u.Email != email {
			continue
		}
		if best == nil || userEmailRank(u) > userEmailRank(best) ||
			(userEmailRank(u) == userEmailRank(best) && u.Timestamp.After(best.Timestamp)) {
			best = u
		}
	}
	return cloneUser(best), nil
}

func userEmailRank(u *store.User) int {
	if !u.Inactive && u.Elo > 0 {
		return 1
	}
	return 0
}

func (r *userRepo) ByNickname(ctx context.Context, nickLower string) (*store.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if u.NickLower == nickLower {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (r *userRepo) SearchPrefix(ctx context.Context, prefix, locale string, limit int) ([]*store.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var result []*store.User
	for _, u := range r.m.users {
		if u.Inactive {
			continue
		}
		if locale != "" && u.Locale != locale {
			continue
		}
		if strings.HasPrefix(u.NickLower, prefix) || strings.HasPrefix(u.FullNameLower, prefix) {
			result = append(result, cloneUser(u))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].NickLower < result[j].NickLower })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *userRepo) BelowHumanElo(ctx context.Context, elo int, locale string, limit int) ([]*store.User, error) {
	return r.byHumanElo(func(u *store.User) bool { return u.HumanElo < elo }, false, locale, limit)
}

func (r *userRepo) AtOrAboveHumanElo(ctx context.Context, elo int, locale string, limit int) ([]*store.User, error) {
	return r.byHumanElo(func(u *store.User) bool { return u.HumanElo >= elo }, true, locale, limit)
}

func (r *userRepo) byHumanElo(match func(*store.User) bool, asc bool, locale string, limit int) ([]*store.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var result []*store.User
	for _, u := range r.m.users {
		if u.Inactive || !match(u) {
			continue
		}
		if locale != "" && u.Locale != locale {
			continue
		}
		result = append(result, cloneUser(u))
	}
	sort.Slice(result, func(i, j int) bool {
		if asc {
			return result[i].HumanElo < result[j].HumanElo
		}
		return result[i].HumanElo > result[j].HumanElo
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *userRepo) Create(ctx context.Context, u *store.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.users[u.ID]; ok {
		return fmt.Errorf("%w: user %s", store.ErrConflict, u.ID)
	}
	if u.Account != "" {
		for _, other := range r.m.users {
			if other.Account == u.Account {
				return fmt.Errorf("%w: account %s", store.ErrConflict, u.Account)
			}
		}
	}
	r.m.users[u.ID] = cloneUser(u)
	return nil
}

func (r *userRepo) Update(ctx context.Context, id string, up store.Updates) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u := r.m.users[id]
	if u == nil {
		return notFound("user", id)
	}
	return applyUserUpdates(u, up)
}

func (r *userRepo) Delete(ctx context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.users[id]; !ok {
		return notFound("user", id)
	}
	delete(r.m.users, id)
	return nil
}

func applyUserUpdates(u *store.User, up store.Updates) error {
	for k, v := range up {
		switch k {
		case "account":
			u.Account = v.(string)
		case "email":
			u.Email = v.(string)
		case "nickname":
			u.Nickname = v.(string)
		case "nick_lower":
			u.NickLower = v.(string)
		case "full_name_lower":
			u.FullNameLower = v.(string)
		case "image":
			u.Image = v.(string)
		case "image_blob":
			u.ImageBlob = v.([]byte)
		case "locale":
			u.Locale = v.(string)
		case "location":
			u.Location = v.(string)
		case "prefs":
			u.Prefs = v.(store.Prefs)
		case "inactive":
			u.Inactive = v.(bool)
		case "ready":
			u.Ready = v.(bool)
		case "ready_timed":
			u.ReadyTimed = v.(bool)
		case "chat_disabled":
			u.ChatDisabled = v.(bool)
		case "plan":
			u.Plan = asStringPtr(v)
		case "elo":
			u.Elo = v.(int)
		case "human_elo":
			u.HumanElo = v.(int)
		case "manual_elo":
			u.ManualElo = v.(int)
		case "highest_score":
			u.HighestScore = v.(int)
		case "highest_score_game":
			u.HighestScoreGameID = v.(string)
		case "best_word":
			u.BestWord = v.(string)
		case "best_word_score":
			u.BestWordScore = v.(int)
		case "best_word_game":
			u.BestWordGameID = v.(string)
		case "games":
			u.GamesPlayed = v.(int)
		case "last_login":
			u.LastLogin = v.(time.Time)
		default:
			return fmt.Errorf("unknown user field %q", k)
		}
	}
	return nil
}

type gameRepo struct{ m *Memory }

func (r *gameRepo) Get(ctx context.Context, id string) (*store.Game, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return cloneGame(r.m.games[id]), nil
}

func (r *gameRepo) Create(ctx context.Context, g *store.Game) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.games[g.ID]; ok {
		return fmt.Errorf("%w: game %s", store.ErrConflict, g.ID)
	}
	r.m.games[g.ID] = cloneGame(g)
	return nil
}

func (r *gameRepo) Update(ctx context.Context, id string, up store.Updates) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	g := r.m.games[id]
	if g == nil {
		return notFound("game", id)
	}
	return applyGameUpdates(g, up)
}

func (r *gameRepo) LiveForUser(ctx context.Context, userID string) ([]*store.Game, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var result []*store.Game
	for _, g := range r.m.games {
		if !g.Over && hasPlayer(g, userID) {
			result = append(result, cloneGame(g))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].TsLastMove.After(result[j].TsLastMove)
	})
	return result, nil
}

func (r *gameRepo) FinishedForUser(ctx context.Context, userID string, versus *string, limit int) ([]*store.Game, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var result []*store.Game
	for _, g := range r.m.games {
		if !g.Over || !hasPlayer(g, userID) {
			continue
		}
		if versus != nil && !hasPlayer(g, *versus) {
			continue
		}
		result = append(result, cloneGame(g))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].TsLastMove.After(result[j].TsLastMove)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *gameRepo) FinishedBetween(ctx context.Context, from, to time.Time) ([]*store.Game, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var result []*store.Game
	for _, g := range r.m.games {
		if g.Over && g.TsLastMove.After(from) && !g.TsLastMove.After(to) {
			result = append(result, cloneGame(g))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].TsLastMove.Before(result[j].TsLastMove)
	})
	return result, nil
}

func (r *gameRepo) NullPlayer(ctx context.Context, userID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, g := range r.m.games {
		if g.Player0 != nil && *g.Player0 == userID {
			g.Player0 = nil
		}
		if g.Player1 != nil && *g.Player1 == userID {
			g.Player1 = nil
		}
	}
	return nil
}

func hasPlayer(g *store.Game, userID string) bool {
	return (g.Player0 != nil && *g.Player0 == userID) ||
		(g.Player1 != nil && *g.Player1 == userID)
}

func applyGameUpdates(g *store.Game, up store.Updates) error {
	for k, v := range up {
		switch k {
		case "player0":
			g.Player0 = asStringPtr(v)
		case "player1":
			g.Player1 = asStringPtr(v)
		case "rack0":
			g.Rack0 = v.(string)
		case "rack1":
			g.Rack1 = v.(string)
		case "irack0":
			g.IRack0 = v.(string)
		case "irack1":
			g.IRack1 = v.(string)
		case "score0":
			g.Score0 = v.(int)
		case "score1":
			g.Score1 = v.(int)
		case "to_move":
			g.ToMove = v.(int)
		case "over":
			g.Over = v.(bool)
		case "ts_last_move":
			g.TsLastMove = v.(time.Time)
		case "moves":
			g.Moves = append([]store.Move(nil), v.([]store.Move)...)
		case "prefs":
			g.Prefs = v.(store.GamePrefs)
		case "tile_count":
			g.TileCount = v.(int)
		case "elo0":
			g.Elo0 = asIntPtr(v)
		case "elo1":
			g.Elo1 = asIntPtr(v)
		case "elo0_adj":
			g.Elo0Adj = asIntPtr(v)
		case "elo1_adj":
			g.Elo1Adj = asIntPtr(v)
		case "human_elo0":
			g.HumanElo0 = asIntPtr(v)
		case "human_elo1":
			g.HumanElo1 = asIntPtr(v)
		case "human_elo0_adj":
			g.HumanElo0Adj = asIntPtr(v)
		case "human_elo1_adj":
			g.HumanElo1Adj = asIntPtr(v)
		case "manual_elo0":
			g.ManualElo0 = asIntPtr(v)
		case "manual_elo1":
			g.ManualElo1 = asIntPtr(v)
		case "manual_elo0_adj":
			g.ManualElo0Adj = asIntPtr(v)
		case "manual_elo1_adj":
			g.ManualElo1Adj = asIntPtr(v)
		default:
			return fmt.Errorf("unknown game field %q", k)
		}
	}
	return nil
}

type eloRepo struct{ m *Memory }

func (r *eloRepo) Get(ctx context.Context, userID, locale string) (*store.EloRating, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if e := r.m.elo[key2(userID, locale)]; e != nil {
		cp := *e
		return &cp, nil
	}
	return nil, nil
}

func (r *eloRepo) Put(ctx context.Context, rating *store.EloRating) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cp := *rating
	r.m.elo[key2(rating.UserID, rating.Locale)] = &cp
	return nil
}

func (r *eloRepo) DeleteForUser(ctx context.Context, userID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for k := range r.m.elo {
		if strings.HasPrefix(k, userID+"\x00") {
			delete(r.m.elo, k)
		}
	}
	return nil
}

type robotRepo struct{ m *Memory }

func (r *robotRepo) Get(ctx context.Context, locale string, level int) (*store.RobotElo, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if e := r.m.robots[key2(locale, fmt.Sprint(level))]; e != nil {
		cp := *e
		return &cp, nil
	}
	return nil, nil
}

func (r *robotRepo) Put(ctx context.Context, rating *store.RobotElo) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cp := *rating
	r.m.robots[key2(rating.Locale, fmt.Sprint(rating.Level))] = &cp
	return nil
}

type statsRepo struct{ m *Memory }

func (r *statsRepo) LatestBefore(ctx context.Context, userID string, ts time.Time) (*store.UserStats, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var best *store.UserStats
	for _, s := range r.m.stats {
		if s.UserID != userID || s.Timestamp.After(ts) {
			continue
		}
		if best == nil || s.Timestamp.After(best.Timestamp) {
			best = s
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (r *statsRepo) DeleteAt(ctx context.Context, userIDs []string, ts time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	ids := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		ids[id] = true
	}
	kept := r.m.stats[:0]
	for _, s := range r.m.stats {
		if s.Timestamp.Equal(ts) && ids[s.UserID] {
			continue
		}
		kept = append(kept, s)
	}
	r.m.stats = kept
	return nil
}

func (r *statsRepo) PutMulti(ctx context.Context, rows []*store.UserStats) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, s := range rows {
		cp := *s
		r.m.stats = append(r.m.stats, &cp)
	}
	return nil
}

func (r *statsRepo) LatestPerUserBefore(ctx context.Context, ts time.Time) ([]*store.UserStats, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	latest := make(map[string]*store.UserStats)
	for _, s := range r.m.stats {
		if s.Timestamp.After(ts) {
			continue
		}
		if cur := latest[s.UserID]; cur == nil || s.Timestamp.After(cur.Timestamp) {
			latest[s.UserID] = s
		}
	}
	result := make([]*store.UserStats, 0, len(latest))
	for _, s := range latest {
		cp := *s
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })
	return result, nil
}

func (r *statsRepo) DeleteForUser(ctx context.Context, userID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	kept := r.m.stats[:0]
	for _, s := range r.m.stats {
		if s.UserID != userID {
			kept = append(kept, s)
		}
	}
	r.m.stats = kept
	return nil
}

type favoriteRepo struct{ m *Memory }

func (r *favoriteRepo) Add(ctx context.Context, src, dest string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.favorites[key2(src, dest)] = true
	return nil
}

func (r *favoriteRepo) Remove(ctx context.Context, src, dest string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	delete(r.m.favorites, key2(src, dest))
	return nil
}

func (r *favoriteRepo) ListByUser(ctx context.Context, src string) ([]string, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return edgeTargets(r.m.favorites, src), nil
}

func (r *favoriteRepo) Has(ctx context.Context, src, dest string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.m.favorites[key2(src, dest)], nil
}

func (r *favoriteRepo) DeleteForUser(ctx context.Context, userID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	deleteEdges(r.m.favorites, userID)
	return nil
}

type blockRepo struct{ m *Memory }

func (r *blockRepo) Add(ctx context.Context, blocker, blocked string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.blocks[key2(blocker, blocked)] = true
	return nil
}

func (r *blockRepo) Remove(ctx context.Context, blocker, blocked string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	delete(r.m.blocks, key2(blocker, blocked))
	return nil
}

func (r *blockRepo) ListBlockedBy(ctx context.Context, blocker string) ([]string, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return edgeTargets(r.m.blocks, blocker), nil
}

func (r *blockRepo) ListBlockersOf(ctx context.Context, blocked string) ([]string, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var result []string
	for k := range r.m.blocks {
		parts := strings.SplitN(k, "\x00", 2)
		if parts[1] == blocked {
			result = append(result, parts[0])
		}
	}
	sort.Strings(result)
	return result, nil
}

func (r *blockRepo) Has(ctx context.Context, blocker, blocked string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.m.blocks[key2(blocker, blocked)], nil
}

func (r *blockRepo) DeleteForUser(ctx context.Context, userID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	deleteEdges(r.m.blocks, userID)
	return nil
}

func edgeTargets(edges map[string]bool, src string) []string {
	var result []string
	for k := range edges {
		parts := strings.SplitN(k, "\x00", 2)
		if parts[0] == src {
			result = append(result, parts[1])
		}
	}
	sort.Strings(result)
	return result
}

func deleteEdges(edges map[string]bool, userID string) {
	for k := range edges {
		parts := strings.SplitN(k, "\x00", 2)
		if parts[0] == userID || parts[1] == userID {
			delete(edges, k)
		}
	}
}

type challengeRepo struct{ m *Memory }

func (r *challengeRepo) Add(ctx context.Context, c *store.Challenge) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.challenges[c.Key]; ok {
		return fmt.Errorf("%w: challenge %s", store.ErrConflict, c.Key)
	}
	cp := *c
	r.m.challenges[c.Key] = &cp
	return nil
}

func (r *challengeRepo) Find(ctx context.Context, src, dest, key string) (*store.Challenge, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var best *store.Challenge
	for _, c := range r.m.challenges {
		if c.Src != src || c.Dest != dest {
			continue
		}
		if key != "" && c.Key != key {
			continue
		}
		if best == nil || c.Timestamp.After(best.Timestamp) {
			best = c
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (r *challengeRepo) Delete(ctx context.Context, key string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	delete(r.m.challenges, key)
	return nil
}

func (r *challengeRepo) ListIssued(ctx context.Context, userID string) ([]*store.Challenge, error) {
	return r.list(func(c *store.Challenge) bool { return c.Src == userID })
}

func (r *challengeRepo) ListReceived(ctx context.Context, userID string) ([]*store.Challenge, error) {
	return r.list(func(c *store.Challenge) bool { return c.Dest == userID })
}

func (r *challengeRepo) list(match func(*store.Challenge) bool) ([]*store.Challenge, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var result []*store.Challenge
	for _, c := range r.m.challenges {
		if match(c) {
			cp := *c
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	return result, nil
}

func (r *challengeRepo) DeleteForUser(ctx context.Context, userID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for k, c := range r.m.challenges {
		if c.Src == userID || c.Dest == userID {
			delete(r.m.challenges, k)
		}
	}
	return nil
}

type chatRepo struct{ m *Memory }

func (r *chatRepo) Add(ctx context.Context, msg *store.ChatMessage) (string, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if msg.ID == "" {
		r.m.seq++
		msg.ID = fmt.Sprintf("msg-%06d", r.m.seq)
	}
	cp := *msg
	r.m.chat = append(r.m.chat, &cp)
	return msg.ID, nil
}

func (r *chatRepo) ListNewestFirst(ctx context.Context, channel string, limit int) ([]*store.ChatMessage, error) {
	return r.list(func(m *store.ChatMessage) bool { return m.Channel == channel }, limit)
}

func (r *chatRepo) ListForUser(ctx context.Context, userID string, limit int) ([]*store.ChatMessage, error) {
	return r.list(func(m *store.ChatMessage) bool {
		if !strings.HasPrefix(m.Channel, "user:") {
			return false
		}
		return m.UserID == userID || (m.Recipient != nil && *m.Recipient == userID)
	}, limit)
}

func (r *chatRepo) list(match func(*store.ChatMessage) bool, limit int) ([]*store.ChatMessage, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var result []*store.ChatMessage
	for _, m := range r.m.chat {
		if match(m) {
			cp := *m
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].Timestamp.After(result[j].Timestamp)
		}
		return result[i].ID > result[j].ID
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *chatRepo) DeleteForUser(ctx context.Context, userID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	kept := r.m.chat[:0]
	for _, m := range r.m.chat {
		if m.UserID != userID {
			kept = append(kept, m)
		}
	}
	r.m.chat = kept
	return nil
}

type zombieRepo struct{ m *Memory }

func (r *zombieRepo) Add(ctx context.Context, gameID, userID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	k := key2(gameID, userID)
	if _, ok := r.m.zombies[k]; !ok {
		r.m.zombies[k] = &store.Zombie{
			GameID: gameID, UserID: userID, Timestamp: time.Now().UTC(),
		}
	}
	return nil
}

func (r *zombieRepo) Delete(ctx context.Context, gameID, userID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	delete(r.m.zombies, key2(gameID, userID))
	return nil
}

func (r *zombieRepo) ListForUser(ctx context.Context, userID string) ([]*store.Zombie, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var result []*store.Zombie
	for _, z := range r.m.zombies {
		if z.UserID == userID {
			cp := *z
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	return result, nil
}

func (r *zombieRepo) DeleteForUser(ctx context.Context, userID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for k, z := range r.m.zombies {
		if z.UserID == userID {
			delete(r.m.zombies, k)
		}
	}
	return nil
}

type ratingRepo struct{ m *Memory }

func (r *ratingRepo) ReplaceAll(ctx context.Context, rows []*store.RatingRow) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.ratings = make(map[store.RatingKind][]*store.RatingRow)
	for _, row := range rows {
		cp := *row
		r.m.ratings[row.Kind] = append(r.m.ratings[row.Kind], &cp)
	}
	return nil
}

func (r *ratingRepo) List(ctx context.Context, kind store.RatingKind) ([]*store.RatingRow, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	rows := r.m.ratings[kind]
	result := make([]*store.RatingRow, 0, len(rows))
	for _, row := range rows {
		cp := *row
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Rank < result[j].Rank })
	return result, nil
}

type reportRepo struct{ m *Memory }

func (r *reportRepo) Add(ctx context.Context, rep *store.Report) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cp := *rep
	r.m.reports = append(r.m.reports, &cp)
	return nil
}

func (r *reportRepo) DeleteForUser(ctx context.Context, userID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	kept := r.m.reports[:0]
	for _, rep := range r.m.reports {
		if rep.Reporter != userID && rep.Reported != userID {
			kept = append(kept, rep)
		}
	}
	r.m.reports = kept
	return nil
}

type promoRepo struct{ m *Memory }

func (r *promoRepo) Add(ctx context.Context, p *store.Promo) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cp := *p
	r.m.promos = append(r.m.promos, &cp)
	return nil
}

func (r *promoRepo) ListForUser(ctx context.Context, userID, promotion string) ([]*store.Promo, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var result []*store.Promo
	for _, p := range r.m.promos {
		if p.UserID != userID {
			continue
		}
		if promotion != "" && p.Promotion != promotion {
			continue
		}
		cp := *p
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	return result, nil
}

func (r *promoRepo) DeleteForUser(ctx context.Context, userID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	kept := r.m.promos[:0]
	for _, p := range r.m.promos {
		if p.UserID != userID {
			kept = append(kept, p)
		}
	}
	r.m.promos = kept
	return nil
}

type transactionRepo struct{ m *Memory }

func (r *transactionRepo) Add(ctx context.Context, t *store.Transaction) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cp := *t
	r.m.txns = append(r.m.txns, &cp)
	return nil
}

func (r *transactionRepo) DeleteForUser(ctx context.Context, userID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	kept := r.m.txns[:0]
	for _, t := range r.m.txns {
		if t.UserID != userID {
			kept = append(kept, t)
		}
	}
	r.m.txns = kept
	return nil
}

type submissionRepo struct{ m *Memory }

func (r *submissionRepo) Add(ctx context.Context, s *store.Submission) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cp := *s
	r.m.submissions = append(r.m.submissions, &cp)
	return nil
}

func (r *submissionRepo) DeleteForUser(ctx context.Context, userID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	kept := r.m.submissions[:0]
	for _, s := range r.m.submissions {
		if s.UserID != userID {
			kept = append(kept, s)
		}
	}
	r.m.submissions = kept
	return nil
}

type completionRepo struct{ m *Memory }

func (r *completionRepo) Add(ctx context.Context, c *store.Completion) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cp := *c
	r.m.completions = append(r.m.completions, &cp)
	return nil
}

func (r *completionRepo) Latest(ctx context.Context, procType string) (*store.Completion, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var best *store.Completion
	for _, c := range r.m.completions {
		if c.ProcType != procType {
			continue
		}
		if best == nil || c.Timestamp.After(best.Timestamp) {
			best = c
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

type riddleRepo struct{ m *Memory }

func (r *riddleRepo) Get(ctx context.Context, locale, date string) (*store.Riddle, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if rd := r.m.riddles[key2(locale, date)]; rd != nil {
		cp := *rd
		return &cp, nil
	}
	return nil, nil
}

func (r *riddleRepo) Put(ctx context.Context, rd *store.Riddle) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cp := *rd
	r.m.riddles[key2(rd.Locale, rd.Date)] = &cp
	return nil
}

type imageRepo struct{ m *Memory }

func (r *imageRepo) Put(ctx context.Context, img *store.Image) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cp := *img
	cp.Data = append([]byte(nil), img.Data...)
	r.m.images[img.UserID] = &cp
	return nil
}

func (r *imageRepo) Get(ctx context.Context, userID string) (*store.Image, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if img := r.m.images[userID]; img != nil {
		cp := *img
		cp.Data = append([]byte(nil), img.Data...)
		return &cp, nil
	}
	return nil, nil
}

func (r *imageRepo) DeleteForUser(ctx context.Context, userID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	delete(r.m.images, userID)
	return nil
}

func cloneUser(u *store.User) *store.User {
	if u == nil {
		return nil
	}
	cp := *u
	if u.Prefs != nil {
		cp.Prefs = make(store.Prefs, len(u.Prefs))
		for k, v := range u.Prefs {
			cp.Prefs[k] = v
		}
	}
	cp.ImageBlob = append([]byte(nil), u.ImageBlob...)
	return &cp
}

func cloneGame(g *store.Game) *store.Game {
	if g == nil {
		return nil
	}
	cp := *g
	cp.Moves = append([]store.Move(nil), g.Moves...)
	return &cp
}

func asStringPtr(v any) *string {
	switch t := v.(type) {
	case nil:
		return nil
	case *string:
		return t
	case string:
		return &t
	}
	panic(fmt.Sprintf("unexpected string value %T", v))
}

func asIntPtr(v any) *int {
	switch t := v.(type) {
	case nil:
		return nil
	case *int:
		return t
	case int:
		return &t
	}
	panic(fmt.Sprintf("unexpected int value %T", v))
}

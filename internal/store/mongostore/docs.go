package mongostore

import (
	"time"

	"github.com/skrafl/server/internal/store"
)

func nowUTC() time.Time { return time.Now().UTC() }

// Document shapes for the collections. Field names match the keys used in
// store.Updates maps so keyword writes apply without translation.

type userDoc struct {
	ID            string      `bson:"_id"`
	Account       string      `bson:"account"`
	Email         string      `bson:"email"`
	Nickname      string      `bson:"nickname"`
	NickLower     string      `bson:"nick_lower"`
	FullNameLower string      `bson:"full_name_lower"`
	Image         string      `bson:"image"`
	ImageBlob     []byte      `bson:"image_blob,omitempty"`
	Locale        string      `bson:"locale"`
	Location      string      `bson:"location"`
	Prefs         store.Prefs `bson:"prefs"`
	Inactive      bool        `bson:"inactive"`
	Ready         bool        `bson:"ready"`
	ReadyTimed    bool        `bson:"ready_timed"`
	ChatDisabled  bool        `bson:"chat_disabled"`
	Plan          *string     `bson:"plan"`

	Elo       int `bson:"elo"`
	HumanElo  int `bson:"human_elo"`
	ManualElo int `bson:"manual_elo"`

	HighestScore       int    `bson:"highest_score"`
	HighestScoreGameID string `bson:"highest_score_game"`
	BestWord           string `bson:"best_word"`
	BestWordScore      int    `bson:"best_word_score"`
	BestWordGameID     string `bson:"best_word_game"`

	GamesPlayed int       `bson:"games"`
	Timestamp   time.Time `bson:"timestamp"`
	LastLogin   time.Time `bson:"last_login"`
}

func toUserDoc(u *store.User) *userDoc {
	return &userDoc{
		ID: u.ID, Account: u.Account, Email: u.Email,
		Nickname: u.Nickname, NickLower: u.NickLower,
		FullNameLower: u.FullNameLower, Image: u.Image,
		ImageBlob: u.ImageBlob, Locale: u.Locale, Location: u.Location,
		Prefs: u.Prefs, Inactive: u.Inactive, Ready: u.Ready,
		ReadyTimed: u.ReadyTimed, ChatDisabled: u.ChatDisabled,
		Plan: u.Plan, Elo: u.Elo, HumanElo: u.HumanElo,
		ManualElo: u.ManualElo, HighestScore: u.HighestScore,
		HighestScoreGameID: u.HighestScoreGameID, BestWord: u.BestWord,
		BestWordScore: u.BestWordScore, BestWordGameID: u.BestWordGameID,
		GamesPlayed: u.GamesPlayed, Timestamp: u.Timestamp,
		LastLogin: u.LastLogin,
	}
}

func (d *userDoc) entity() *store.User {
	return &store.User{
		ID: d.ID, Account: d.Account, Email: d.Email,
		Nickname: d.Nickname, NickLower: d.NickLower,
		FullNameLower: d.FullNameLower, Image: d.Image,
		ImageBlob: d.ImageBlob, Locale: d.Locale, Location: d.Location,
		Prefs: d.Prefs, Inactive: d.Inactive, Ready: d.Ready,
		ReadyTimed: d.ReadyTimed, ChatDisabled: d.ChatDisabled,
		Plan: d.Plan, Elo: d.Elo, HumanElo: d.HumanElo,
		ManualElo: d.ManualElo, HighestScore: d.HighestScore,
		HighestScoreGameID: d.HighestScoreGameID, BestWord: d.BestWord,
		BestWordScore: d.BestWordScore, BestWordGameID: d.BestWordGameID,
		GamesPlayed: d.GamesPlayed, Timestamp: d.Timestamp.UTC(),
		LastLogin: d.LastLogin.UTC(),
	}
}

type gameDoc struct {
	ID         string          `bson:"_id"`
	Player0    *string         `bson:"player0"`
	Player1    *string         `bson:"player1"`
	Locale     string          `bson:"locale"`
	Rack0      string          `bson:"rack0"`
	Rack1      string          `bson:"rack1"`
	IRack0     string          `bson:"irack0"`
	IRack1     string          `bson:"irack1"`
	Score0     int             `bson:"score0"`
	Score1     int             `bson:"score1"`
	ToMove     int             `bson:"to_move"`
	RobotLevel int             `bson:"robot_level"`
	Over       bool            `bson:"over"`
	Timestamp  time.Time       `bson:"timestamp"`
	TsLastMove time.Time       `bson:"ts_last_move"`
	Moves      []store.Move    `bson:"moves"`
	Prefs      store.GamePrefs `bson:"prefs"`
	TileCount  int             `bson:"tile_count"`

	Elo0          *int `bson:"elo0"`
	Elo1          *int `bson:"elo1"`
	Elo0Adj       *int `bson:"elo0_adj"`
	Elo1Adj       *int `bson:"elo1_adj"`
	HumanElo0     *int `bson:"human_elo0"`
	HumanElo1     *int `bson:"human_elo1"`
	HumanElo0Adj  *int `bson:"human_elo0_adj"`
	HumanElo1Adj  *int `bson:"human_elo1_adj"`
	ManualElo0    *int `bson:"manual_elo0"`
	ManualElo1    *int `bson:"manual_elo1"`
	ManualElo0Adj *int `bson:"manual_elo0_adj"`
	ManualElo1Adj *int `bson:"manual_elo1_adj"`
}

func toGameDoc(g *store.Game) *gameDoc {
	return &gameDoc{
		ID: g.ID, Player0: g.Player0, Player1: g.Player1,
		Locale: g.Locale, Rack0: g.Rack0, Rack1: g.Rack1,
		IRack0: g.IRack0, IRack1: g.IRack1,
		Score0: g.Score0, Score1: g.Score1, ToMove: g.ToMove,
		RobotLevel: g.RobotLevel, Over: g.Over,
		Timestamp: g.Timestamp, TsLastMove: g.TsLastMove,
		Moves: g.Moves, Prefs: g.Prefs, TileCount: g.TileCount,
		Elo0: g.Elo0, Elo1: g.Elo1, Elo0Adj: g.Elo0Adj, Elo1Adj: g.Elo1Adj,
		HumanElo0: g.HumanElo0, HumanElo1: g.HumanElo1,
		HumanElo0Adj: g.HumanElo0Adj, HumanElo1Adj: g.HumanElo1Adj,
		ManualElo0: g.ManualElo0, ManualElo1: g.ManualElo1,
		ManualElo0Adj: g.ManualElo0Adj, ManualElo1Adj: g.ManualElo1Adj,
	}
}

func (d *gameDoc) entity() *store.Game {
	return &store.Game{
		ID: d.ID, Player0: d.Player0, Player1: d.Player1,
		Locale: d.Locale, Rack0: d.Rack0, Rack1: d.Rack1,
		IRack0: d.IRack0, IRack1: d.IRack1,
		Score0: d.Score0, Score1: d.Score1, ToMove: d.ToMove,
		RobotLevel: d.RobotLevel, Over: d.Over,
		Timestamp: d.Timestamp.UTC(), TsLastMove: d.TsLastMove.UTC(),
		Moves: d.Moves, Prefs: d.Prefs, TileCount: d.TileCount,
		Elo0: d.Elo0, Elo1: d.Elo1, Elo0Adj: d.Elo0Adj, Elo1Adj: d.Elo1Adj,
		HumanElo0: d.HumanElo0, HumanElo1: d.HumanElo1,
		HumanElo0Adj: d.HumanElo0Adj, HumanElo1Adj: d.HumanElo1Adj,
		ManualElo0: d.ManualElo0, ManualElo1: d.ManualElo1,
		ManualElo0Adj: d.ManualElo0Adj, ManualElo1Adj: d.ManualElo1Adj,
	}
}

type eloDoc struct {
	UserID    string    `bson:"user_id"`
	Locale    string    `bson:"locale"`
	Elo       int       `bson:"elo"`
	HumanElo  int       `bson:"human_elo"`
	ManualElo int       `bson:"manual_elo"`
	Timestamp time.Time `bson:"timestamp"`
}

type robotDoc struct {
	Locale    string    `bson:"locale"`
	Level     int       `bson:"level"`
	Elo       int       `bson:"elo"`
	Timestamp time.Time `bson:"timestamp"`
}

type statsDoc struct {
	UserID     string    `bson:"user_id"`
	RobotLevel int       `bson:"robot_level"`
	Timestamp  time.Time `bson:"timestamp"`

	Games       int `bson:"games"`
	HumanGames  int `bson:"human_games"`
	ManualGames int `bson:"manual_games"`

	Wins         int `bson:"wins"`
	Losses       int `bson:"losses"`
	HumanWins    int `bson:"human_wins"`
	HumanLosses  int `bson:"human_losses"`
	ManualWins   int `bson:"manual_wins"`
	ManualLosses int `bson:"manual_losses"`

	Score              int `bson:"score"`
	ScoreAgainst       int `bson:"score_against"`
	HumanScore         int `bson:"human_score"`
	HumanScoreAgainst  int `bson:"human_score_against"`
	ManualScore        int `bson:"manual_score"`
	ManualScoreAgainst int `bson:"manual_score_against"`

	Elo       int `bson:"elo"`
	HumanElo  int `bson:"human_elo"`
	ManualElo int `bson:"manual_elo"`
}

func toStatsDoc(s *store.UserStats) *statsDoc {
	return &statsDoc{
		UserID: s.UserID, RobotLevel: s.RobotLevel, Timestamp: s.Timestamp,
		Games: s.Games, HumanGames: s.HumanGames, ManualGames: s.ManualGames,
		Wins: s.Wins, Losses: s.Losses,
		HumanWins: s.HumanWins, HumanLosses: s.HumanLosses,
		ManualWins: s.ManualWins, ManualLosses: s.ManualLosses,
		Score: s.Score, ScoreAgainst: s.ScoreAgainst,
		HumanScore: s.HumanScore, HumanScoreAgainst: s.HumanScoreAgainst,
		ManualScore: s.ManualScore, ManualScoreAgainst: s.ManualScoreAgainst,
		Elo: s.Elo, HumanElo: s.HumanElo, ManualElo: s.ManualElo,
	}
}

func (d *statsDoc) entity() *store.UserStats {
	return &store.UserStats{
		UserID: d.UserID, RobotLevel: d.RobotLevel, Timestamp: d.Timestamp.UTC(),
		Games: d.Games, HumanGames: d.HumanGames, ManualGames: d.ManualGames,
		Wins: d.Wins, Losses: d.Losses,
		HumanWins: d.HumanWins, HumanLosses: d.HumanLosses,
		ManualWins: d.ManualWins, ManualLosses: d.ManualLosses,
		Score: d.Score, ScoreAgainst: d.ScoreAgainst,
		HumanScore: d.HumanScore, HumanScoreAgainst: d.HumanScoreAgainst,
		ManualScore: d.ManualScore, ManualScoreAgainst: d.ManualScoreAgainst,
		Elo: d.Elo, HumanElo: d.HumanElo, ManualElo: d.ManualElo,
	}
}

type challengeDoc struct {
	Key       string          `bson:"_id"`
	Src       string          `bson:"src"`
	Dest      string          `bson:"dest"`
	Prefs     store.GamePrefs `bson:"prefs"`
	Timestamp time.Time       `bson:"timestamp"`
}

type chatDoc struct {
	ID        string    `bson:"_id"`
	Channel   string    `bson:"channel"`
	UserID    string    `bson:"user_id"`
	Recipient *string   `bson:"recipient"`
	Text      string    `bson:"msg"`
	Timestamp time.Time `bson:"timestamp"`
}

type zombieDoc struct {
	GameID    string    `bson:"game_id"`
	UserID    string    `bson:"user_id"`
	Timestamp time.Time `bson:"timestamp"`
}

type ratingStatsDoc struct {
	Games        int `bson:"games"`
	Elo          int `bson:"elo"`
	Score        int `bson:"score"`
	ScoreAgainst int `bson:"score_against"`
	Wins         int `bson:"wins"`
	Losses       int `bson:"losses"`
}

type ratingDoc struct {
	Kind       string    `bson:"kind"`
	Rank       int       `bson:"rank"`
	UserID     *string   `bson:"user_id"`
	RobotLevel int       `bson:"robot_level"`
	Timestamp  time.Time `bson:"timestamp"`

	Current   ratingStatsDoc `bson:"current"`
	Yesterday ratingStatsDoc `bson:"yesterday"`
	WeekAgo   ratingStatsDoc `bson:"week_ago"`
	MonthAgo  ratingStatsDoc `bson:"month_ago"`
}

func toRatingStatsDoc(s store.RatingStats) ratingStatsDoc {
	return ratingStatsDoc{
		Games: s.Games, Elo: s.Elo, Score: s.Score,
		ScoreAgainst: s.ScoreAgainst, Wins: s.Wins, Losses: s.Losses,
	}
}

func (d ratingStatsDoc) entity() store.RatingStats {
	return store.RatingStats{
		Games: d.Games, Elo: d.Elo, Score: d.Score,
		ScoreAgainst: d.ScoreAgainst, Wins: d.Wins, Losses: d.Losses,
	}
}

func toRatingDoc(r *store.RatingRow) *ratingDoc {
	return &ratingDoc{
		Kind: string(r.Kind), Rank: r.Rank, UserID: r.UserID,
		RobotLevel: r.RobotLevel, Timestamp: r.Timestamp,
		Current:   toRatingStatsDoc(r.RatingStats),
		Yesterday: toRatingStatsDoc(r.Yesterday),
		WeekAgo:   toRatingStatsDoc(r.WeekAgo),
		MonthAgo:  toRatingStatsDoc(r.MonthAgo),
	}
}

func (d *ratingDoc) entity() *store.RatingRow {
	return &store.RatingRow{
		Kind: store.RatingKind(d.Kind), Rank: d.Rank, UserID: d.UserID,
		RobotLevel: d.RobotLevel, Timestamp: d.Timestamp.UTC(),
		RatingStats: d.Current.entity(),
		Yesterday:   d.Yesterday.entity(),
		WeekAgo:     d.WeekAgo.entity(),
		MonthAgo:    d.MonthAgo.entity(),
	}
}

type reportDoc struct {
	ID        string    `bson:"_id"`
	Reporter  string    `bson:"reporter"`
	Reported  string    `bson:"reported"`
	Code      int       `bson:"code"`
	Text      string    `bson:"text"`
	Timestamp time.Time `bson:"timestamp"`
}

type promoDoc struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	Promotion string    `bson:"promotion"`
	Timestamp time.Time `bson:"timestamp"`
}

type transactionDoc struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	Plan      string    `bson:"plan"`
	Kind      string    `bson:"kind"`
	Timestamp time.Time `bson:"timestamp"`
}

type submissionDoc struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	Locale    string    `bson:"locale"`
	Word      string    `bson:"word"`
	Comment   string    `bson:"comment"`
	Timestamp time.Time `bson:"timestamp"`
}

type completionDoc struct {
	ID        string     `bson:"_id"`
	ProcType  string     `bson:"proctype"`
	TsFrom    time.Time  `bson:"ts_from"`
	TsTo      time.Time  `bson:"ts_to"`
	Success   bool       `bson:"success"`
	Reason    string     `bson:"reason"`
	Progress  *time.Time `bson:"progress,omitempty"`
	Timestamp time.Time  `bson:"timestamp"`
}

type riddleDoc struct {
	ID       string `bson:"_id"`
	Locale   string `bson:"locale"`
	Date     string `bson:"date"`
	Solution string `bson:"solution"`
}

type imageDoc struct {
	UserID    string    `bson:"_id"`
	MimeType  string    `bson:"mime_type"`
	Data      []byte    `bson:"data"`
	Timestamp time.Time `bson:"timestamp"`
}

package store

import "time"

// DefaultLocale is assigned to accounts created without an explicit locale.
const DefaultLocale = "is_IS"

// DefaultElo seeds every new rating triple.
const DefaultElo = 1200

// User is one player account. Entities returned by repositories are
// read-only views; mutation goes through UserRepo.Update with an Updates
// map so both storage substrates share the same write path.
type User struct {
	ID            string
	Account       string // external-auth subject, unique when present
	Email         string // lowercased
	Nickname      string
	NickLower     string // always lower(Nickname)
	FullNameLower string // always lower(Prefs["full_name"])
	Image         string
	ImageBlob     []byte
	Locale        string
	Location      string
	Prefs         Prefs
	Inactive      bool
	Ready         bool
	ReadyTimed    bool
	ChatDisabled  bool
	Plan          *string

	// Cached view of the EloRating in the user's current locale,
	// rewritten by the nightly pipeline.
	Elo       int
	HumanElo  int
	ManualElo int

	HighestScore       int
	HighestScoreGameID string
	BestWord           string
	BestWordScore      int
	BestWordGameID     string

	GamesPlayed int // career game count
	Timestamp   time.Time
	LastLogin   time.Time
}

// EloRating is the per-(user, locale) rating triple.
type EloRating struct {
	UserID    string
	Locale    string
	Elo       int
	HumanElo  int
	ManualElo int
	Timestamp time.Time
}

// RobotElo is the global rating of one robot difficulty level per locale.
type RobotElo struct {
	Locale    string
	Level     int
	Elo       int
	Timestamp time.Time
}

// Move is one entry in a game's append-only move list. Tiles is either a
// placement string (blanks prefixed with '?') or one of the sentinels
// PASS, "EXCH <tiles>", RSGN, TIME, OVER.
type Move struct {
	Coord     string    `json:"coord" bson:"coord"`
	Tiles     string    `json:"tiles" bson:"tiles"`
	Score     int       `json:"score" bson:"score"`
	Rack      string    `json:"rack" bson:"rack"`
	Timestamp time.Time `json:"ts" bson:"ts"`
}

// Game is one two-player game. A nil player id denotes a robot seat
// (or a deleted account; deletion nulls the slot, robot style).
type Game struct {
	ID         string
	Player0    *string
	Player1    *string
	Locale     string
	Rack0      string // current racks
	Rack1      string
	IRack0     string // racks at game start, for replay
	IRack1     string
	Score0     int
	Score1     int
	ToMove     int // 0 or 1; always len(Moves) mod 2
	RobotLevel int // 0 if human vs human
	Over       bool
	Timestamp  time.Time
	TsLastMove time.Time
	Moves      []Move
	Prefs      GamePrefs
	TileCount  int

	// Ratings as they were when the game finalized, nil while live.
	Elo0         *int
	Elo1         *int
	Elo0Adj      *int
	Elo1Adj      *int
	HumanElo0    *int
	HumanElo1    *int
	HumanElo0Adj *int
	HumanElo1Adj *int
	ManualElo0    *int
	ManualElo1    *int
	ManualElo0Adj *int
	ManualElo1Adj *int
}

// GamePrefs are the game options proposed in a challenge and frozen onto
// the created game.
type GamePrefs struct {
	Duration int  `json:"duration" bson:"duration" yaml:"duration"` // minutes per side, 0 = untimed
	Manual   bool `json:"manual" bson:"manual" yaml:"manual"`       // manual word-check ("pro mode")
	NewBag   bool `json:"newbag" bson:"newbag" yaml:"newbag"`
	Fairplay bool `json:"fairplay" bson:"fairplay" yaml:"fairplay"`
}

// Challenge is a directed matchmaking intent. Key disambiguates multiple
// concurrent challenges between the same pair.
type Challenge struct {
	Key       string
	Src       string
	Dest      string
	Prefs     GamePrefs
	Timestamp time.Time
}

// Favorite is src's favor of dest. Idempotent, directional.
type Favorite struct {
	Src  string
	Dest string
}

// Block suppresses interaction from blocked toward blocker. Directional.
type Block struct {
	Blocker string
	Blocked string
}

// ChatMessage is one message in a channel. An empty Text is a read
// marker: the sender's high-water mark in the conversation.
type ChatMessage struct {
	ID        string
	Channel   string
	UserID    string // sender
	Recipient *string
	Text      string
	Timestamp time.Time
}

// Zombie marks a finished game the user has not acknowledged yet.
type Zombie struct {
	GameID    string
	UserID    string
	Timestamp time.Time
}

// UserStats is one nightly snapshot of a user's career totals as of the
// snapshot boundary. Append-only; (UserID, RobotLevel, Timestamp) is the key.
type UserStats struct {
	UserID     string
	RobotLevel int
	Timestamp  time.Time

	Games       int
	HumanGames  int
	ManualGames int

	Wins         int
	Losses       int
	HumanWins    int
	HumanLosses  int
	ManualWins   int
	ManualLosses int

	Score              int
	ScoreAgainst       int
	HumanScore         int
	HumanScoreAgainst  int
	ManualScore        int
	ManualScoreAgainst int

	Elo       int
	HumanElo  int
	ManualElo int
}

// RatingKind selects which Elo variant a ranking table is built from.
type RatingKind string

const (
	RatingAll    RatingKind = "all"
	RatingHuman  RatingKind = "human"
	RatingManual RatingKind = "manual"
)

// RatingStats is one historical cell of a RatingRow.
type RatingStats struct {
	Games        int
	Elo          int
	Score        int
	ScoreAgainst int
	Wins         int
	Losses       int
}

// RatingRow is one precomputed rank in the top-100 table. A sentinel row
// (UserID nil, RobotLevel -1, Games -1) fills unused ranks.
type RatingRow struct {
	Kind       RatingKind
	Rank       int // 1..100
	UserID     *string
	RobotLevel int
	Timestamp  time.Time

	RatingStats
	Yesterday RatingStats
	WeekAgo   RatingStats
	MonthAgo  RatingStats
}

// Report is a user-on-user conduct report.
type Report struct {
	ID        string
	Reporter  string
	Reported  string
	Code      int
	Text      string
	Timestamp time.Time
}

// Promo records that a promotion was shown to a user.
type Promo struct {
	ID        string
	UserID    string
	Promotion string
	Timestamp time.Time
}

// Transaction records a plan change (e.g. friend subscription events).
type Transaction struct {
	ID        string
	UserID    string
	Plan      string
	Kind      string
	Timestamp time.Time
}

// Submission is a user-proposed dictionary word.
type Submission struct {
	ID        string
	UserID    string
	Locale    string
	Word      string
	Comment   string
	Timestamp time.Time
}

// Completion is one entry in the background-process completion log.
// Operators use it to detect skipped or interrupted nightly runs.
type Completion struct {
	ID       string
	ProcType string
	TsFrom   time.Time
	TsTo     time.Time
	Success  bool
	Reason   string
	// Progress holds the last fully processed game timestamp when a run
	// was cut short by its deadline; zero on clean completion.
	Progress  time.Time
	Timestamp time.Time
}

// Riddle is a daily puzzle definition per locale.
type Riddle struct {
	ID       string
	Locale   string
	Date     string // YYYY-MM-DD
	Solution string
}

// Image is a user's uploaded profile image blob.
type Image struct {
	UserID    string
	MimeType  string
	Data      []byte
	Timestamp time.Time
}

package database

import "time"

// Tick is one persisted market data observation.
type Tick struct {
	Symbol    string
	Bid       float64
	Ask       float64
	High      float64
	Low       float64
	Volume    int64
	Timestamp time.Time
}

// TriggerCandidate is the slice of a position needed to decide a
// stop-loss/take-profit close.
type TriggerCandidate struct {
	ID           int64
	Side         string
	Volume       float64
	OpenPrice    float64
	StopLoss     *float64
	TakeProfit   *float64
	CurrentPrice float64
}

// ClosedTrade is the result of a transactional position close.
type ClosedTrade struct {
	PositionID      int64
	Ticket          string
	UserChallengeID int64
	Symbol          string
	Side            string
	Volume          float64
	EntryPrice      float64
	ExitPrice       float64
	PnL             float64
	Commission      float64
	Swap            float64
	OpenTime        time.Time
	CloseTime       time.Time
	NewBalance      float64
}

// ChallengeState is the rule-evaluation view of a user challenge.
type ChallengeState struct {
	UserChallengeID int64
	MaxDailyLoss    *float64
	ProfitTarget    *float64
	CurrentBalance  float64
	AccountSize     float64
	Status          string
}

// DailyStats aggregates today's closed trades for one user challenge.
type DailyStats struct {
	PnL        float64
	TradeCount int64
}

// Challenge status values. Transitions are one-way from ACTIVE.
const (
	ChallengeActive = "ACTIVE"
	ChallengeFailed = "FAILED"
	ChallengePassed = "PASSED"
)

// Position side values.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

package engine

import (
	"context"

	"prop-trading-engine/internal/database"
)

type ruleOutcome int

const (
	ruleNone ruleOutcome = iota
	ruleFailed
	rulePassed
)

// evaluateRules decides the challenge transition for today's realized P&L.
// The daily-loss check wins over the profit target. Challenges already in
// a terminal state are never touched.
func evaluateRules(dailyPnL float64, st *database.ChallengeState) ruleOutcome {
	if st == nil || st.Status != database.ChallengeActive {
		return ruleNone
	}
	if st.MaxDailyLoss != nil && dailyPnL <= -*st.MaxDailyLoss {
		return ruleFailed
	}
	if st.ProfitTarget != nil && st.CurrentBalance-st.AccountSize >= *st.ProfitTarget {
		return rulePassed
	}
	return ruleNone
}

// evaluateChallenge applies the daily-loss and profit-target rules to a
// challenge touched by a close. Failures here are logged only; the close
// itself has already committed.
func (e *Engine) evaluateChallenge(ctx context.Context, userChallengeID int64) {
	stats, err := e.repo.DailyStats(ctx, userChallengeID)
	if err != nil {
		e.log.Error().Err(err).Int64("user_challenge_id", userChallengeID).Msg("daily stats query failed")
		return
	}

	st, err := e.repo.ChallengeState(ctx, userChallengeID)
	if err != nil {
		e.log.Error().Err(err).Int64("user_challenge_id", userChallengeID).Msg("challenge state query failed")
		return
	}

	switch evaluateRules(stats.PnL, st) {
	case ruleFailed:
		if err := e.repo.FailChallenge(ctx, userChallengeID); err != nil {
			e.log.Error().Err(err).Int64("user_challenge_id", userChallengeID).Msg("challenge fail transition failed")
			return
		}
		incChallengeOutcome("failed")
		e.log.Warn().
			Int64("user_challenge_id", userChallengeID).
			Float64("daily_pnl", stats.PnL).
			Float64("max_daily_loss", *st.MaxDailyLoss).
			Msg("challenge failed, daily loss limit exceeded")
		e.bus.PublishChallengeFailed(userChallengeID, stats.PnL)

	case rulePassed:
		if err := e.repo.PassChallenge(ctx, userChallengeID); err != nil {
			e.log.Error().Err(err).Int64("user_challenge_id", userChallengeID).Msg("challenge pass transition failed")
			return
		}
		incChallengeOutcome("passed")
		totalProfit := st.CurrentBalance - st.AccountSize
		e.log.Info().
			Int64("user_challenge_id", userChallengeID).
			Float64("total_profit", totalProfit).
			Msg("challenge passed, profit target reached")
		e.bus.PublishChallengePassed(userChallengeID, totalProfit)
	}
}

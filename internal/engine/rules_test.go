package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"prop-trading-engine/internal/database"
)

func activeChallenge(maxDailyLoss, profitTarget *float64, currentBalance, accountSize float64) *database.ChallengeState {
	return &database.ChallengeState{
		UserChallengeID: 1,
		MaxDailyLoss:    maxDailyLoss,
		ProfitTarget:    profitTarget,
		CurrentBalance:  currentBalance,
		AccountSize:     accountSize,
		Status:          database.ChallengeActive,
	}
}

func TestEvaluateRulesDailyLossFailure(t *testing.T) {
	// Accumulated -600 today plus a -500 close puts daily P&L at -1100,
	// past the 1000 limit
	st := activeChallenge(f(1000), f(10000), 98900, 100000)
	assert.Equal(t, ruleFailed, evaluateRules(-1100, st))

	// Exactly at the limit also fails
	assert.Equal(t, ruleFailed, evaluateRules(-1000, st))

	// Just inside the limit does not
	assert.Equal(t, ruleNone, evaluateRules(-999.99, st))
}

func TestEvaluateRulesProfitTarget(t *testing.T) {
	// Balance 110500 on a 100000 account with a 10000 target
	st := activeChallenge(f(1000), f(10000), 110500, 100000)
	assert.Equal(t, rulePassed, evaluateRules(500, st))

	// Exactly at the target passes
	st = activeChallenge(nil, f(10000), 110000, 100000)
	assert.Equal(t, rulePassed, evaluateRules(0, st))

	// Below the target does not
	st = activeChallenge(nil, f(10000), 109999, 100000)
	assert.Equal(t, ruleNone, evaluateRules(0, st))
}

func TestEvaluateRulesDailyLossWinsOverProfitTarget(t *testing.T) {
	// Both conditions hold; the loss limit decides
	st := activeChallenge(f(1000), f(10000), 112000, 100000)
	assert.Equal(t, ruleFailed, evaluateRules(-1500, st))
}

func TestEvaluateRulesUnsetLimits(t *testing.T) {
	// No limits configured: never transitions
	st := activeChallenge(nil, nil, 50000, 100000)
	assert.Equal(t, ruleNone, evaluateRules(-1e9, st))
	assert.Equal(t, ruleNone, evaluateRules(1e9, st))
}

func TestEvaluateRulesTerminalStatesAreFinal(t *testing.T) {
	for _, status := range []string{database.ChallengeFailed, database.ChallengePassed} {
		st := activeChallenge(f(1000), f(10000), 150000, 100000)
		st.Status = status
		assert.Equal(t, ruleNone, evaluateRules(-5000, st), status)
		assert.Equal(t, ruleNone, evaluateRules(5000, st), status)
	}
}

func TestEvaluateRulesMissingChallenge(t *testing.T) {
	assert.Equal(t, ruleNone, evaluateRules(-5000, nil))
}

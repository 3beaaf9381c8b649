package engine

import (
	"context"
	"errors"

	"prop-trading-engine/internal/database"
)

// Close reasons, also used as metric labels.
const (
	reasonStopLoss   = "stop_loss"
	reasonTakeProfit = "take_profit"
)

// closeDecision decides whether a position must be closed and at what
// price. The close price is the crossed level itself, not the market
// price. Stop-loss is checked before take-profit on both sides.
func closeDecision(side string, currentPrice float64, stopLoss, takeProfit *float64) (float64, string, bool) {
	if side == database.SideBuy {
		if stopLoss != nil && currentPrice <= *stopLoss {
			return *stopLoss, reasonStopLoss, true
		}
		if takeProfit != nil && currentPrice >= *takeProfit {
			return *takeProfit, reasonTakeProfit, true
		}
		return 0, "", false
	}

	if stopLoss != nil && currentPrice >= *stopLoss {
		return *stopLoss, reasonStopLoss, true
	}
	if takeProfit != nil && currentPrice <= *takeProfit {
		return *takeProfit, reasonTakeProfit, true
	}
	return 0, "", false
}

// evaluateTriggers closes every position on the symbol whose current price
// has crossed its stop-loss or take-profit, then re-evaluates the touched
// challenges.
func (e *Engine) evaluateTriggers(ctx context.Context, symbol string, contractSize float64) error {
	candidates, err := e.repo.TriggerCandidates(ctx, symbol)
	if err != nil {
		return err
	}

	for _, c := range candidates {
		closePrice, reason, ok := closeDecision(c.Side, c.CurrentPrice, c.StopLoss, c.TakeProfit)
		if !ok {
			continue
		}

		trade, err := e.repo.ClosePosition(ctx, c.ID, closePrice, contractSize)
		if err != nil {
			if errors.Is(err, database.ErrPositionGone) {
				continue
			}
			e.log.Error().
				Err(err).
				Int64("position_id", c.ID).
				Str("symbol", symbol).
				Msg("position close failed, will retry next tick")
			continue
		}

		incPositionClosed(reason)
		e.log.Info().
			Str("ticket", trade.Ticket).
			Str("symbol", trade.Symbol).
			Str("side", trade.Side).
			Str("reason", reason).
			Float64("close_price", trade.ExitPrice).
			Float64("pnl", trade.PnL).
			Msg("position closed")
		e.bus.PublishPositionClosed(trade.Ticket, trade.Symbol, trade.Side, reason, trade.ExitPrice, trade.PnL)

		e.evaluateChallenge(ctx, trade.UserChallengeID)
	}
	return nil
}

package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrPositionGone means the position vanished between trigger evaluation
// and close-out; the close is silently abandoned.
var ErrPositionGone = errors.New("position no longer exists")

// Repository provides data access over the shared connection pool.
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// UpsertTick writes one tick, overwriting an existing row for the same
// (symbol, timestamp).
func (r *Repository) UpsertTick(ctx context.Context, tick Tick) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO market_data (symbol, bid, ask, high, low, volume, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (symbol, timestamp) DO UPDATE SET
			bid = EXCLUDED.bid,
			ask = EXCLUDED.ask,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			volume = EXCLUDED.volume`,
		tick.Symbol, tick.Bid, tick.Ask, tick.High, tick.Low, tick.Volume, tick.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("error upserting tick for %s: %w", tick.Symbol, err)
	}
	return nil
}

// InsertTicks bulk-inserts historical ticks, skipping rows that already
// exist. Returns the number of rows actually inserted.
func (r *Repository) InsertTicks(ctx context.Context, ticks []Tick) (int64, error) {
	if len(ticks) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, tick := range ticks {
		batch.Queue(`
			INSERT INTO market_data (symbol, bid, ask, high, low, volume, timestamp)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (symbol, timestamp) DO NOTHING`,
			tick.Symbol, tick.Bid, tick.Ask, tick.High, tick.Low, tick.Volume, tick.Timestamp,
		)
	}

	results := r.db.Pool.SendBatch(ctx, batch)
	defer results.Close()

	var inserted int64
	for range ticks {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("error inserting historical ticks: %w", err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

// MarkToMarket updates current price, floating profit and swap for every
// open position on the symbol in a single statement. When todayOnly is set
// the update is restricted to positions created today.
func (r *Repository) MarkToMarket(ctx context.Context, symbol string, bid, ask, contractSize float64, todayOnly bool) (int64, error) {
	query := `
		UPDATE positions p
		SET
			current_price = CASE WHEN p.type = 'BUY' THEN $1::numeric ELSE $2::numeric END,
			profit = CASE
				WHEN p.type = 'BUY' THEN (($1::numeric - open_price) * volume * $3::numeric)
				ELSE ((open_price - $2::numeric) * volume * $3::numeric)
			END,
			swap = CASE
				WHEN p.type = 'BUY' THEN (0.000001 * volume * open_price)
				ELSE (-0.000001 * volume * open_price)
			END,
			updated_at = $4
		WHERE p.symbol = $5`
	if todayOnly {
		query += ` AND p.created_at::date = CURRENT_DATE`
	}

	tag, err := r.db.Pool.Exec(ctx, query, bid, ask, contractSize, time.Now().UTC(), symbol)
	if err != nil {
		return 0, fmt.Errorf("error marking positions for %s: %w", symbol, err)
	}
	return tag.RowsAffected(), nil
}

// TriggerCandidates loads the positions on a symbol that have a current
// price to compare against their stop-loss/take-profit levels.
func (r *Repository) TriggerCandidates(ctx context.Context, symbol string) ([]TriggerCandidate, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, type, volume, open_price, stop_loss, take_profit, current_price
		FROM positions
		WHERE symbol = $1 AND current_price IS NOT NULL`,
		symbol,
	)
	if err != nil {
		return nil, fmt.Errorf("error loading trigger candidates for %s: %w", symbol, err)
	}
	defer rows.Close()

	var candidates []TriggerCandidate
	for rows.Next() {
		var c TriggerCandidate
		if err := rows.Scan(&c.ID, &c.Side, &c.Volume, &c.OpenPrice, &c.StopLoss, &c.TakeProfit, &c.CurrentPrice); err != nil {
			return nil, fmt.Errorf("error scanning trigger candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// ClosePosition performs the transactional close-out: insert the trades
// row, credit the account and challenge balances, delete the position.
// Either everything commits or nothing is observable.
func (r *Repository) ClosePosition(ctx context.Context, positionID int64, closePrice, contractSize float64) (*ClosedTrade, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("error starting close transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		trade            ClosedTrade
		tradingAccountID int64
		balance          float64
	)
	err = tx.QueryRow(ctx, `
		SELECT p.id, p.trading_account_id, p.ticket, p.symbol, p.type, p.volume,
		       p.open_price, p.open_time, p.commission, p.swap,
		       uc.id, ta.balance
		FROM positions p
		JOIN trading_accounts ta ON ta.id = p.trading_account_id
		JOIN user_challenges uc ON uc.trading_account_id = ta.id
		JOIN challenges c ON c.id = uc.challenge_id
		WHERE p.id = $1
		FOR UPDATE OF p, ta`,
		positionID,
	).Scan(
		&trade.PositionID, &tradingAccountID, &trade.Ticket, &trade.Symbol, &trade.Side,
		&trade.Volume, &trade.EntryPrice, &trade.OpenTime, &trade.Commission, &trade.Swap,
		&trade.UserChallengeID, &balance,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPositionGone
		}
		return nil, fmt.Errorf("error loading position %d: %w", positionID, err)
	}

	trade.ExitPrice = closePrice
	trade.CloseTime = time.Now().UTC()
	trade.PnL = closePnL(trade.Side, trade.EntryPrice, closePrice, trade.Volume, contractSize, trade.Commission, trade.Swap)
	trade.NewBalance = balance + trade.PnL

	_, err = tx.Exec(ctx, `
		INSERT INTO trades (
			user_challenge_id, symbol, side, lot_size, entry_price,
			exit_price, pnl, commission, swap, status, open_time, close_time
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'CLOSED', $10, $11)`,
		trade.UserChallengeID, trade.Symbol, trade.Side, trade.Volume, trade.EntryPrice,
		trade.ExitPrice, trade.PnL, trade.Commission, trade.Swap, trade.OpenTime, trade.CloseTime,
	)
	if err != nil {
		return nil, fmt.Errorf("error inserting trade: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE trading_accounts SET balance = $1, updated_at = $2 WHERE id = $3`,
		trade.NewBalance, trade.CloseTime, tradingAccountID,
	)
	if err != nil {
		return nil, fmt.Errorf("error updating account balance: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE user_challenges SET current_balance = $1, updated_at = $2 WHERE id = $3`,
		trade.NewBalance, trade.CloseTime, trade.UserChallengeID,
	)
	if err != nil {
		return nil, fmt.Errorf("error updating challenge balance: %w", err)
	}

	_, err = tx.Exec(ctx, `DELETE FROM positions WHERE id = $1`, positionID)
	if err != nil {
		return nil, fmt.Errorf("error deleting position: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("error committing close transaction: %w", err)
	}
	return &trade, nil
}

// closePnL computes realized profit for a closed position.
func closePnL(side string, openPrice, closePrice, volume, contractSize, commission, swap float64) float64 {
	if side == SideBuy {
		return (closePrice-openPrice)*volume*contractSize - commission - swap
	}
	return (openPrice-closePrice)*volume*contractSize - commission - swap
}

// DailyStats aggregates today's closed trades for a user challenge.
func (r *Repository) DailyStats(ctx context.Context, userChallengeID int64) (DailyStats, error) {
	var stats DailyStats
	err := r.db.Pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(pnl), 0), COUNT(*)
		FROM trades
		WHERE user_challenge_id = $1
		  AND close_time::date = CURRENT_DATE
		  AND status = 'CLOSED'`,
		userChallengeID,
	).Scan(&stats.PnL, &stats.TradeCount)
	if err != nil {
		return stats, fmt.Errorf("error aggregating daily stats: %w", err)
	}
	return stats, nil
}

// ChallengeState loads the rule-evaluation view of a user challenge.
// Returns nil when the challenge does not exist.
func (r *Repository) ChallengeState(ctx context.Context, userChallengeID int64) (*ChallengeState, error) {
	st := ChallengeState{UserChallengeID: userChallengeID}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT c.max_daily_loss, c.profit_target, uc.current_balance, c.account_size, uc.status
		FROM user_challenges uc
		JOIN challenges c ON c.id = uc.challenge_id
		WHERE uc.id = $1`,
		userChallengeID,
	).Scan(&st.MaxDailyLoss, &st.ProfitTarget, &st.CurrentBalance, &st.AccountSize, &st.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error loading challenge state: %w", err)
	}
	return &st, nil
}

// FailChallenge marks an active challenge FAILED and disables its trading
// account. Challenges already FAILED or PASSED are left untouched.
func (r *Repository) FailChallenge(ctx context.Context, userChallengeID int64) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error starting fail transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	tag, err := tx.Exec(ctx, `
		UPDATE user_challenges SET status = 'FAILED', updated_at = $1
		WHERE id = $2 AND status = 'ACTIVE'`,
		now, userChallengeID,
	)
	if err != nil {
		return fmt.Errorf("error failing challenge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Already in a terminal state
		return tx.Commit(ctx)
	}

	_, err = tx.Exec(ctx, `
		UPDATE trading_accounts SET is_active = false, updated_at = $1
		WHERE user_challenge_id = $2`,
		now, userChallengeID,
	)
	if err != nil {
		return fmt.Errorf("error disabling trading account: %w", err)
	}
	return tx.Commit(ctx)
}

// PassChallenge marks an active challenge PASSED.
func (r *Repository) PassChallenge(ctx context.Context, userChallengeID int64) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE user_challenges SET status = 'PASSED', updated_at = $1
		WHERE id = $2 AND status = 'ACTIVE'`,
		time.Now().UTC(), userChallengeID,
	)
	if err != nil {
		return fmt.Errorf("error passing challenge: %w", err)
	}
	return nil
}

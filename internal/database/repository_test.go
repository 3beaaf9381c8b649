package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Repository queries need a live PostgreSQL instance; the P&L arithmetic
// is pure and is pinned here.

func TestClosePnLBuy(t *testing.T) {
	t.Run("stop loss close", func(t *testing.T) {
		// BUY 1 lot EURUSD opened at 1.10000, closed at the 1.09500 stop
		pnl := closePnL(SideBuy, 1.10000, 1.09500, 1, 100000, 5.00, 0)
		assert.InDelta(t, -505.00, pnl, 1e-6)
	})

	t.Run("profitable close", func(t *testing.T) {
		pnl := closePnL(SideBuy, 1.10000, 1.11000, 1, 100000, 5.00, 0.11)
		assert.InDelta(t, 994.89, pnl, 1e-6)
	})
}

func TestClosePnLSell(t *testing.T) {
	t.Run("take profit close", func(t *testing.T) {
		// SELL 0.5 lots USDJPY opened at 150.00, closed at the 149.00 target
		pnl := closePnL(SideSell, 150.00, 149.00, 0.5, 100000, 0, 0)
		assert.InDelta(t, 50000.00, pnl, 1e-6)
	})

	t.Run("losing close", func(t *testing.T) {
		pnl := closePnL(SideSell, 150.00, 151.00, 0.5, 100000, 10.00, -0.5)
		assert.InDelta(t, -50009.50, pnl, 1e-6)
	})
}

func TestClosePnLCommissionAndSwapAlwaysDeducted(t *testing.T) {
	// A flat close still pays commission and swap on both sides
	assert.InDelta(t, -7.25, closePnL(SideBuy, 1.1, 1.1, 1, 100000, 7.00, 0.25), 1e-6)
	assert.InDelta(t, -7.25, closePnL(SideSell, 1.1, 1.1, 1, 100000, 7.00, 0.25), 1e-6)
}

func TestClosePnLContractSize(t *testing.T) {
	// BTC contract size 1: price move maps 1:1 into P&L
	assert.InDelta(t, 500.00, closePnL(SideBuy, 42000, 42500, 1, 1, 0, 0), 1e-6)

	// Index contract size 100
	assert.InDelta(t, 1000.00, closePnL(SideSell, 5010, 5000, 1, 100, 0, 0), 1e-6)
}

package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"

	"paper-trader/internal/infrastructure"
	"paper-trader/internal/model"
)

// TradeStore persists the engine's decision records. Unlike ticks, every
// record matters for the audit trail, so writes go through immediately.
type TradeStore struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTradeStore(db *pgxpool.Pool, logger *zap.Logger) *TradeStore {
	return &TradeStore{db: db, logger: logger}
}

func (s *TradeStore) Save(ctx context.Context, trade model.Trade) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO paper_trades
			(trade_id, time, symbol, side, price, amount, fee, pnl, cash_after, position_after, executed, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (trade_id) DO NOTHING`,
		trade.ID, trade.Timestamp, trade.Symbol, string(trade.Side),
		trade.Price, trade.Amount, trade.Fee, trade.PnL,
		trade.CashAfter, trade.PositionAfter, trade.Executed, trade.Reason)
	if err != nil {
		return err
	}
	infrastructure.DBInsertRate.WithLabelValues("paper_trades").Inc()
	return nil
}

// List returns decision records for a symbol in chronological order.
func (s *TradeStore) List(ctx context.Context, symbol string, since time.Time, limit int) ([]model.Trade, error) {
	rows, err := s.db.Query(ctx, `
		SELECT trade_id, time, symbol, side, price, amount, fee, pnl, cash_after, position_after, executed, reason
		FROM paper_trades
		WHERE symbol = $1 AND time >= $2
		ORDER BY time ASC
		LIMIT $3`,
		symbol, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trades := make([]model.Trade, 0)
	for rows.Next() {
		var t model.Trade
		var side string
		if err := rows.Scan(&t.ID, &t.Timestamp, &t.Symbol, &side,
			&t.Price, &t.Amount, &t.Fee, &t.PnL,
			&t.CashAfter, &t.PositionAfter, &t.Executed, &t.Reason); err != nil {
			s.logger.Error("failed to scan paper trade", zap.Error(err))
			continue
		}
		t.Side = model.Action(side)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

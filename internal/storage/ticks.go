package storage

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"

	"paper-trader/internal/infrastructure"
	"paper-trader/internal/model"
)

// TickSaver buffers raw ticks and copies them into the database in batches,
// flushing on a timer or when the buffer fills up.
type TickSaver struct {
	db        *pgxpool.Pool
	logger    *zap.Logger
	interval  time.Duration
	batchSize int

	mu     sync.Mutex
	buffer []model.Tick
}

func NewTickSaver(db *pgxpool.Pool, logger *zap.Logger, interval time.Duration, batchSize int) *TickSaver {
	return &TickSaver{
		db:        db,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
		buffer:    make([]model.Tick, 0, batchSize),
	}
}

func (s *TickSaver) Add(tick model.Tick) {
	s.mu.Lock()
	s.buffer = append(s.buffer, tick)
	full := len(s.buffer) >= s.batchSize
	s.mu.Unlock()

	if full {
		s.flush(context.Background())
	}
}

// Run flushes the buffer on the configured interval until cancelled.
func (s *TickSaver) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.flush(context.Background()) // final drain
			return
		case <-ticker.C:
			s.flush(ctx)
		}
	}
}

func (s *TickSaver) flush(ctx context.Context) {
	s.mu.Lock()
	if len(s.buffer) == 0 {
		s.mu.Unlock()
		return
	}
	batch := s.buffer
	s.buffer = make([]model.Tick, 0, s.batchSize)
	s.mu.Unlock()

	rows := make([][]interface{}, 0, len(batch))
	for _, t := range batch {
		rows = append(rows, []interface{}{
			t.Timestamp, t.ID, t.Symbol, t.Exchange, t.Price, t.Amount, t.Side,
		})
	}

	copied, err := s.db.CopyFrom(ctx,
		pgx.Identifier{"ticks"},
		[]string{"time", "trade_id", "symbol", "exchange", "price", "amount", "side"},
		pgx.CopyFromRows(rows))
	if err != nil {
		s.logger.Error("failed to copy ticks", zap.Error(err), zap.Int("count", len(batch)))
		return
	}
	infrastructure.DBInsertRate.WithLabelValues("ticks").Add(float64(copied))
}

package storage

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"

	"paper-trader/internal/infrastructure"
	"paper-trader/internal/model"
)

// KlineSaver buffers completed candles and upserts them in batches. Upsert
// keeps the table idempotent when the processor re-emits a window after a
// restart.
type KlineSaver struct {
	db        *pgxpool.Pool
	logger    *zap.Logger
	interval  time.Duration
	batchSize int

	mu     sync.Mutex
	buffer []model.KLine
}

func NewKlineSaver(db *pgxpool.Pool, logger *zap.Logger, interval time.Duration, batchSize int) *KlineSaver {
	return &KlineSaver{
		db:        db,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
		buffer:    make([]model.KLine, 0, batchSize),
	}
}

func (s *KlineSaver) Add(kline model.KLine) {
	s.mu.Lock()
	s.buffer = append(s.buffer, kline)
	full := len(s.buffer) >= s.batchSize
	s.mu.Unlock()

	if full {
		s.flush(context.Background())
	}
}

func (s *KlineSaver) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.flush(context.Background())
			return
		case <-ticker.C:
			s.flush(ctx)
		}
	}
}

func (s *KlineSaver) flush(ctx context.Context) {
	s.mu.Lock()
	if len(s.buffer) == 0 {
		s.mu.Unlock()
		return
	}
	batch := s.buffer
	s.buffer = make([]model.KLine, 0, s.batchSize)
	s.mu.Unlock()

	for _, k := range batch {
		_, err := s.db.Exec(ctx, `
			INSERT INTO klines (time, symbol, exchange, period, open, high, low, close, volume)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (time, symbol, exchange, period) DO UPDATE
			SET open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
			    close = EXCLUDED.close, volume = EXCLUDED.volume`,
			k.Timestamp, k.Symbol, k.Exchange, k.Period, k.Open, k.High, k.Low, k.Close, k.Volume)
		if err != nil {
			s.logger.Error("failed to upsert kline",
				zap.Error(err), zap.String("symbol", k.Symbol), zap.Time("time", k.Timestamp))
			continue
		}
		infrastructure.DBInsertRate.WithLabelValues("klines").Inc()
	}
}

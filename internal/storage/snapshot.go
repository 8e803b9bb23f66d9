package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"

	"paper-trader/internal/ledger"
)

// ErrNoSnapshot is returned by Load when no snapshot has been saved yet.
var ErrNoSnapshot = errors.New("no engine snapshot found")

// SnapshotStore persists the engine's portfolio state so a restarted process
// resumes where it left off instead of starting from the initial balance.
type SnapshotStore struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewSnapshotStore(db *pgxpool.Pool, logger *zap.Logger) *SnapshotStore {
	return &SnapshotStore{db: db, logger: logger}
}

func (s *SnapshotStore) Save(ctx context.Context, symbol string, snap ledger.Snapshot, stepCount int) error {
	state, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO engine_snapshots (symbol, state, step_count, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (symbol) DO UPDATE
		SET state = EXCLUDED.state, step_count = EXCLUDED.step_count, updated_at = EXCLUDED.updated_at`,
		symbol, state, stepCount, time.Now())
	return err
}

func (s *SnapshotStore) Load(ctx context.Context, symbol string) (ledger.Snapshot, int, error) {
	var state []byte
	var stepCount int
	err := s.db.QueryRow(ctx,
		"SELECT state, step_count FROM engine_snapshots WHERE symbol = $1",
		symbol).Scan(&state, &stepCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Snapshot{}, 0, ErrNoSnapshot
	}
	if err != nil {
		return ledger.Snapshot{}, 0, err
	}

	var snap ledger.Snapshot
	if err := json.Unmarshal(state, &snap); err != nil {
		return ledger.Snapshot{}, 0, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return snap, stepCount, nil
}

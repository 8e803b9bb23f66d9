package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// ScoreMessage is the payload advisory producers publish on signal.<kind>.<symbol>.
type ScoreMessage struct {
	Symbol    string    `json:"symbol"`
	Score     float64   `json:"score"`
	Timestamp time.Time `json:"ts"`
}

// NATSScoreSource caches the latest advisory score published for one
// kind/symbol pair. FetchScore returns the cached value; the caller decides
// what to do when no fresh score is available.
type NATSScoreSource struct {
	kind   string
	symbol string
	maxAge time.Duration
	logger *zap.Logger

	mu        sync.RWMutex
	lastScore float64
	lastSeen  time.Time
}

// NewNATSScoreSource subscribes to signal.<kind>.<symbol> and starts caching
// scores. maxAge bounds how stale a cached score may be before FetchScore
// reports an error; zero disables the staleness check.
func NewNATSScoreSource(js nats.JetStreamContext, kind, symbol string, maxAge time.Duration, logger *zap.Logger) (*NATSScoreSource, error) {
	s := &NATSScoreSource{
		kind:   kind,
		symbol: symbol,
		maxAge: maxAge,
		logger: logger,
	}

	subject := fmt.Sprintf("signal.%s.%s", kind, symbol)
	_, err := js.Subscribe(subject, func(msg *nats.Msg) {
		var sm ScoreMessage
		if err := json.Unmarshal(msg.Data, &sm); err != nil {
			logger.Error("failed to unmarshal score message",
				zap.String("subject", subject), zap.Error(err))
			return
		}
		s.mu.Lock()
		s.lastScore = sm.Score
		s.lastSeen = sm.Timestamp
		if s.lastSeen.IsZero() {
			s.lastSeen = time.Now()
		}
		s.mu.Unlock()
	}, nats.DeliverNew())
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	logger.Info("score source subscribed", zap.String("subject", subject))
	return s, nil
}

func (s *NATSScoreSource) FetchScore(_ context.Context) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lastSeen.IsZero() {
		return 0, fmt.Errorf("no %s score received for %s yet", s.kind, s.symbol)
	}
	if s.maxAge > 0 && time.Since(s.lastSeen) > s.maxAge {
		return 0, fmt.Errorf("%s score for %s is stale (last seen %s)",
			s.kind, s.symbol, s.lastSeen.Format(time.RFC3339))
	}
	return s.lastScore, nil
}

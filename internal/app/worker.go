package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"paper-trader/internal/infrastructure"
	"paper-trader/internal/model"
	"paper-trader/internal/storage"
)

// NormalizeSymbol unifies different exchange symbol formats into a standard one (e.g. BTCUSDT)
func NormalizeSymbol(s string) string {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, "/", "")
	s = strings.ReplaceAll(s, "_", "")
	return s
}

// startIngestionWorker streams live trades from the exchange onto the
// market.raw subjects.
func (a *App) startIngestionWorker(ctx context.Context) {
	go func() {
		tickChan := make(chan model.Tick, 1000)
		go a.priceFeed.Run(ctx, tickChan)
		go a.backupFeed.Run(ctx, tickChan)

		for {
			select {
			case <-ctx.Done():
				return
			case tick := <-tickChan:
				tick.Symbol = NormalizeSymbol(tick.Symbol)

				subject := fmt.Sprintf("market.raw.%s.%s", tick.Exchange, tick.Symbol)
				data, err := json.Marshal(tick)
				if err != nil {
					a.Logger.Error("failed to marshal tick", zap.Error(err))
					continue
				}
				if _, err := a.JS.Publish(subject, data); err != nil {
					a.Logger.Error("failed to publish to NATS", zap.Error(err))
				}
				infrastructure.TickProcessRate.WithLabelValues(tick.Symbol).Inc()
			}
		}
	}()
}

// startPersistenceService subscribes to NATS and saves ticks, klines and
// engine decisions to the database
func (a *App) startPersistenceService(tickSaver *storage.TickSaver, klineSaver *storage.KlineSaver) {
	// 1. Raw ticks
	_, err := a.JS.Subscribe("market.raw.*.*", func(m *nats.Msg) {
		var tick model.Tick
		if err := json.Unmarshal(m.Data, &tick); err != nil {
			a.Logger.Error("failed to unmarshal tick", zap.Error(err))
			return
		}
		tickSaver.Add(tick)
	}, nats.Durable("tick_saver"), nats.ManualAck())
	if err != nil {
		a.Logger.Fatal("failed to subscribe to ticks", zap.Error(err))
	}

	// 2. K-lines
	_, err = a.JS.Subscribe("market.kline.*.*", func(m *nats.Msg) {
		var kline model.KLine
		if err := json.Unmarshal(m.Data, &kline); err != nil {
			a.Logger.Error("failed to unmarshal kline", zap.Error(err))
			return
		}
		klineSaver.Add(kline)
	}, nats.Durable("kline_saver"), nats.ManualAck())
	if err != nil {
		a.Logger.Fatal("failed to subscribe to klines", zap.Error(err))
	}

	// 3. Engine decision records
	_, err = a.JS.Subscribe("engine.step.*", func(m *nats.Msg) {
		var step model.StepResult
		if err := json.Unmarshal(m.Data, &step); err != nil {
			a.Logger.Error("failed to unmarshal step result", zap.Error(err))
			return
		}
		if step.Trade == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.tradeStore.Save(ctx, *step.Trade); err != nil {
			a.Logger.Error("failed to save trade record", zap.Error(err))
		}
		cancel()
	}, nats.Durable("trade_saver"), nats.ManualAck())
	if err != nil {
		a.Logger.Fatal("failed to subscribe to engine steps", zap.Error(err))
	}
}

// snapshotLoop periodically persists the engine's portfolio state.
func (a *App) snapshotLoop(ctx context.Context) {
	interval, err := time.ParseDuration(a.Config.SnapshotInterval)
	if err != nil {
		a.Logger.Error("invalid SNAPSHOT_INTERVAL, snapshots disabled", zap.Error(err))
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, steps := a.Runner.Snapshot()
			saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := a.snapshotStore.Save(saveCtx, a.Config.Symbol, snap, steps); err != nil {
				a.Logger.Error("failed to save engine snapshot", zap.Error(err))
			}
			cancel()
		}
	}
}

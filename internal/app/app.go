package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"paper-trader/api"
	"paper-trader/internal/config"
	"paper-trader/internal/engine"
	"paper-trader/internal/feed"
	"paper-trader/internal/infrastructure"
	"paper-trader/internal/ledger"
	"paper-trader/internal/processor"
	"paper-trader/internal/push"
	"paper-trader/internal/risk"
	sig "paper-trader/internal/signal"
	"paper-trader/internal/storage"
)

// App defines the application structure and its dependencies
type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	DB         *pgxpool.Pool
	NC         *nats.Conn
	JS         nats.JetStreamContext
	Gateway    *push.Gateway
	Runner     *engine.Runner
	HTTPServer *http.Server

	priceFeed     *feed.BinanceFeed
	backupFeed    *feed.CoinbaseFeed
	tradeStore    *storage.TradeStore
	snapshotStore *storage.SnapshotStore
	engineCancel  context.CancelFunc
}

// NewApp creates a new application instance
func NewApp() (*App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	infrastructure.Init()
	logger := infrastructure.Logger

	return &App{
		Config: &cfg,
		Logger: logger,
	}, nil
}

// Init initializes all application components
func (a *App) Init(ctx context.Context) error {
	// 1. Database
	dbPool, err := pgxpool.Connect(ctx, a.Config.DB_DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.DB = dbPool

	if err := a.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	// 2. NATS
	nc, js, err := infrastructure.InitNATS(a.Config.NatsURL, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	a.NC = nc
	a.JS = js

	// 3. Services
	a.Gateway = push.NewGateway(js, a.Logger)
	a.tradeStore = storage.NewTradeStore(a.DB, a.Logger)
	a.snapshotStore = storage.NewSnapshotStore(a.DB, a.Logger)
	a.priceFeed = feed.NewBinanceFeed(a.Logger, a.Config.Symbol)
	a.backupFeed = feed.NewCoinbaseFeed(a.Logger, a.Config.CoinbaseSymbol)

	// 4. Decision engine
	if err := a.initEngine(ctx); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	return nil
}

// initEngine wires the aggregator, ledger, risk gate and feeds into the live
// runner, resuming from a persisted snapshot when one exists.
func (a *App) initEngine(ctx context.Context) error {
	cfg := a.Config

	interval, err := time.ParseDuration(cfg.EngineInterval)
	if err != nil {
		return fmt.Errorf("invalid ENGINE_INTERVAL: %w", err)
	}
	scoreMaxAge, err := time.ParseDuration(cfg.ScoreMaxAge)
	if err != nil {
		return fmt.Errorf("invalid SCORE_MAX_AGE: %w", err)
	}

	aggregator, err := sig.NewAggregator(cfg.WeightSentiment, cfg.WeightQuantum, cfg.WeightAI)
	if err != nil {
		return err
	}
	gate, err := risk.NewGate(risk.Limits{
		MaxPositionSizePct: cfg.MaxPositionSizePct,
		MaxDrawdownPct:     cfg.MaxDrawdownPct,
	})
	if err != nil {
		return err
	}
	led, err := ledger.New(decimal.NewFromFloat(cfg.InitialBalance), ledger.PolicyReject)
	if err != nil {
		return err
	}

	sentiment, err := feed.NewNATSScoreSource(a.JS, "sentiment", cfg.Symbol, scoreMaxAge, a.Logger)
	if err != nil {
		return err
	}
	quantum, err := feed.NewNATSScoreSource(a.JS, "quantum", cfg.Symbol, scoreMaxAge, a.Logger)
	if err != nil {
		return err
	}
	ai, err := feed.NewNATSScoreSource(a.JS, "ai", cfg.Symbol, scoreMaxAge, a.Logger)
	if err != nil {
		return err
	}

	runner, err := engine.NewRunner(
		engine.RunnerConfig{
			Symbol:         cfg.Symbol,
			FeeRate:        decimal.NewFromFloat(cfg.FeeRate),
			TradePct:       decimal.NewFromFloat(cfg.TradePct),
			MinTradeAmount: decimal.NewFromFloat(cfg.MinTradeAmount),
			Interval:       interval,
		},
		aggregator, gate, led,
		sentiment, quantum, ai,
		feed.NewFallbackPriceSource(a.priceFeed, a.backupFeed),
		push.NewStepPublisher(a.JS, cfg.Symbol),
		a.Logger,
	)
	if err != nil {
		return err
	}
	a.Runner = runner

	// Resume from the last snapshot if there is one.
	snap, steps, err := a.snapshotStore.Load(ctx, cfg.Symbol)
	switch {
	case errors.Is(err, storage.ErrNoSnapshot):
		a.Logger.Info("no engine snapshot, starting fresh",
			zap.Float64("initial_balance", cfg.InitialBalance))
	case err != nil:
		return fmt.Errorf("failed to load engine snapshot: %w", err)
	default:
		if err := runner.RestoreSnapshot(snap, steps); err != nil {
			return fmt.Errorf("failed to restore engine snapshot: %w", err)
		}
		a.Logger.Info("resumed engine from snapshot",
			zap.Int("steps", steps), zap.String("cash", snap.Cash.String()))
	}

	return nil
}

// Run starts the application services and the HTTP server
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.engineCancel = cancel

	// Persistence
	tickSaver := storage.NewTickSaver(a.DB, a.Logger, 1*time.Second, 1000)
	klineSaver := storage.NewKlineSaver(a.DB, a.Logger, 1*time.Second, 100)
	go tickSaver.Run(ctx)
	go klineSaver.Run(ctx)
	a.startPersistenceService(tickSaver, klineSaver)

	// Stream processor
	klineProcessor := processor.NewKlineProcessor(a.JS, a.Logger)
	if err := klineProcessor.Run(ctx); err != nil {
		return fmt.Errorf("failed to start kline processor: %w", err)
	}

	// Market data ingestion
	a.startIngestionWorker(ctx)

	// Decision engine + snapshot loop
	go func() {
		if err := a.Runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.Logger.Error("engine loop exited", zap.Error(err))
		}
	}()
	go a.snapshotLoop(ctx)

	// HTTP server
	a.HTTPServer = &http.Server{
		Addr:    ":" + a.Config.Port,
		Handler: a.setupRouter(),
	}

	go func() {
		a.Logger.Info("starting http server", zap.String("port", a.Config.Port))
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	return a.waitForShutdown()
}

// waitForShutdown handles graceful shutdown signals
func (a *App) waitForShutdown() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	a.Logger.Info("shutting down...")
	a.engineCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Persist the final portfolio state before closing connections.
	snap, steps := a.Runner.Snapshot()
	if err := a.snapshotStore.Save(ctx, a.Config.Symbol, snap, steps); err != nil {
		a.Logger.Error("failed to save final snapshot", zap.Error(err))
	}

	if err := a.HTTPServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.NC.Close()
	a.DB.Close()

	return nil
}

// initDatabase runs the database initialization script
func (a *App) initDatabase(ctx context.Context) error {
	sqlFile := "scripts/init.sql"
	content, err := os.ReadFile(sqlFile)
	if err != nil {
		return fmt.Errorf("failed to read init script: %w", err)
	}

	_, err = a.DB.Exec(ctx, string(content))
	if err != nil {
		return fmt.Errorf("failed to execute init script: %w", err)
	}

	a.Logger.Info("database initialized successfully")
	return nil
}

// setupRouter configures the Gin router and its routes
func (a *App) setupRouter() *gin.Engine {
	r := gin.Default()

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	apiHandler := api.NewHandler(a.DB, a.Logger, a.Runner)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/register", apiHandler.Register)
		v1.POST("/login", apiHandler.Login)
		v1.GET("/klines/:symbol", apiHandler.GetHistoryKLines)
		v1.GET("/engine/status", apiHandler.GetEngineStatus)
		v1.GET("/engine/trades", apiHandler.GetEngineTrades)
	}

	protected := r.Group("/api/v1")
	protected.Use(api.AuthMiddleware())
	{
		protected.POST("/backtest", apiHandler.RunBacktest)
		protected.POST("/engine/reset", apiHandler.ResetEngine)
	}

	r.GET("/ws", func(c *gin.Context) {
		a.Gateway.ServeHTTP(c.Writer, c.Request)
	})

	return r
}

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"paper-trader/internal/engine"
	"paper-trader/internal/model"
	"paper-trader/internal/risk"
	"paper-trader/internal/signal"
	"paper-trader/internal/strategy"
)

type Handler struct {
	db     *pgxpool.Pool
	logger *zap.Logger
	runner *engine.Runner
	loader *engine.DataLoader
}

func NewHandler(db *pgxpool.Pool, logger *zap.Logger, runner *engine.Runner) *Handler {
	return &Handler{
		db:     db,
		logger: logger,
		runner: runner,
		loader: engine.NewDataLoader(db),
	}
}

// Auth Handlers

func (h *Handler) Register(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=6"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to hash password"})
		return
	}

	var userID int64
	err = h.db.QueryRow(c.Request.Context(),
		"INSERT INTO users (email, password_hash) VALUES ($1, $2) RETURNING id",
		req.Email, string(hash)).Scan(&userID)

	if err != nil {
		h.logger.Error("failed to register user", zap.Error(err))
		c.JSON(http.StatusConflict, gin.H{"error": "email already exists"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "user created", "id": userID})
}

func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var userID int64
	var hash string
	err := h.db.QueryRow(c.Request.Context(),
		"SELECT id, password_hash FROM users WHERE email = $1", req.Email).Scan(&userID, &hash)

	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}

	token, err := GenerateToken(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Data Handlers

func normalizeSymbol(s string) string {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, "/", "")
	return s
}

func (h *Handler) GetHistoryKLines(c *gin.Context) {
	symbol := normalizeSymbol(c.Param("symbol"))
	period := c.DefaultQuery("period", "1m")

	rows, err := h.db.Query(c.Request.Context(),
		"SELECT symbol, exchange, open, high, low, close, volume, time FROM klines WHERE symbol = $1 AND period = $2 ORDER BY time DESC LIMIT 100",
		symbol, period)
	if err != nil {
		h.logger.Error("failed to query klines", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	defer rows.Close()

	klines := make([]model.KLine, 0)
	for rows.Next() {
		var k model.KLine
		if err := rows.Scan(&k.Symbol, &k.Exchange, &k.Open, &k.High, &k.Low, &k.Close, &k.Volume, &k.Timestamp); err != nil {
			h.logger.Error("failed to scan kline", zap.Error(err))
			continue
		}
		k.Period = period
		klines = append(klines, k)
	}

	c.JSON(http.StatusOK, klines)
}

// Engine Handlers

func (h *Handler) GetEngineStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.runner.Status())
}

func (h *Handler) GetEngineTrades(c *gin.Context) {
	c.JSON(http.StatusOK, h.runner.Trades())
}

func (h *Handler) ResetEngine(c *gin.Context) {
	var req struct {
		InitialBalance *decimal.Decimal `json:"initial_balance"`
	}
	// An empty body resets to the original balance.
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.runner.Reset(req.InitialBalance); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.runner.Status())
}

// Backtest Handlers

type backtestRequest struct {
	Symbol         string                 `json:"symbol" binding:"required"`
	StrategyType   string                 `json:"strategy_type"`
	Config         map[string]interface{} `json:"config"`
	Scores         []engine.ScoreRow      `json:"scores"`
	InitialBalance decimal.Decimal        `json:"initial_balance"`
	FeeRate        decimal.Decimal        `json:"fee_rate"`
	TradePct       decimal.Decimal        `json:"trade_pct"`
	StartTime      time.Time              `json:"start_time" binding:"required"`
	EndTime        time.Time              `json:"end_time" binding:"required"`
}

func (h *Handler) RunBacktest(c *gin.Context) {
	var req backtestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	symbol := normalizeSymbol(req.Symbol)

	// 1. Fetch history data for the run
	klines, err := h.loader.LoadCandles(c.Request.Context(), symbol, req.StartTime, req.EndTime, "1m")
	if err != nil {
		h.logger.Error("failed to fetch history for backtest", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch data"})
		return
	}
	if len(klines) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no candles in requested range"})
		return
	}

	// 2. Setup the decider: a classic strategy, or recorded scores through
	// the aggregator when no strategy type is given.
	var decider engine.Decider
	name := req.StrategyType
	if req.StrategyType != "" {
		strat, err := strategy.NewStrategy(req.StrategyType, req.Config)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		decider = engine.StrategyDecider{Strategy: strat}
		name = strat.Name()
	} else if len(req.Scores) > 0 {
		decider = &engine.AggregatorDecider{
			Aggregator: signal.DefaultAggregator(),
			Scores:     req.Scores,
		}
		name = "score_replay"
	} else {
		c.JSON(http.StatusBadRequest, gin.H{"error": "either strategy_type or scores is required"})
		return
	}

	// 3. Run the backtest
	initial := req.InitialBalance
	if !initial.IsPositive() {
		initial = decimal.NewFromInt(10000)
	}
	feeRate := req.FeeRate
	if feeRate.IsZero() {
		feeRate = decimal.NewFromFloat(0.001)
	}
	tradePct := req.TradePct
	if !tradePct.IsPositive() {
		tradePct = decimal.NewFromInt(1)
	}

	tester, err := engine.NewBacktester(engine.BacktestConfig{
		Symbol:         symbol,
		InitialCapital: initial,
		FeeRate:        feeRate,
		TradePct:       tradePct,
		RiskLimits:     risk.Limits{MaxPositionSizePct: 1.0, MaxDrawdownPct: 1.0},
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := tester.Run(klines, decider)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report := engine.BuildReport(result, name, 0)
	c.JSON(http.StatusOK, gin.H{"report": report, "result": result})
}

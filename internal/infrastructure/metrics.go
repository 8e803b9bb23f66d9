package infrastructure

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EngineCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_cycles_total",
		Help: "Total number of completed decision cycles",
	})

	TradesExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_trades_total",
		Help: "Total number of executed simulated trades",
	}, []string{"symbol", "side"})

	RiskRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_risk_rejections_total",
		Help: "Total number of orders rejected by the risk gate",
	})

	FeedErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_feed_errors_total",
		Help: "Total number of data source fetch failures",
	}, []string{"source"})

	PortfolioValue = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "engine_portfolio_value",
		Help: "Current simulated portfolio value",
	})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	DBInsertRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "db_insert_total",
		Help: "Total number of records inserted into DB",
	}, []string{"table"})

	TickProcessRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tick_process_total",
		Help: "Total number of market ticks processed",
	}, []string{"symbol"})
)

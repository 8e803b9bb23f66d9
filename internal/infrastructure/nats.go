package infrastructure

import (
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

func InitNATS(url string, logger *zap.Logger) (*nats.Conn, nats.JetStreamContext, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, nil, err
	}

	js, err := nc.JetStream()
	if err != nil {
		return nil, nil, err
	}

	// Create streams if they don't exist
	streams := []*nats.StreamConfig{
		{
			Name:     "MARKET",
			Subjects: []string{"market.raw.*.*", "market.kline.*.*"},
		},
		{
			Name:     "ENGINE",
			Subjects: []string{"engine.step.*", "signal.*.*"},
		},
	}
	for _, cfg := range streams {
		_, err = js.AddStream(cfg)
		if err != nil {
			// If stream exists, we might need to update it
			_, err = js.UpdateStream(cfg)
			if err != nil {
				logger.Warn("failed to create or update stream",
					zap.String("stream", cfg.Name), zap.Error(err))
			}
		}
	}

	return nc, js, nil
}

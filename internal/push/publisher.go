package push

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"paper-trader/internal/model"
)

// StepPublisher publishes completed engine cycles to engine.step.<symbol>,
// where the websocket gateway and any downstream consumers pick them up.
type StepPublisher struct {
	js     nats.JetStreamContext
	symbol string
}

func NewStepPublisher(js nats.JetStreamContext, symbol string) *StepPublisher {
	return &StepPublisher{js: js, symbol: symbol}
}

func (p *StepPublisher) PublishStep(result model.StepResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal step result: %w", err)
	}
	subject := fmt.Sprintf("engine.step.%s", p.symbol)
	_, err = p.js.Publish(subject, data)
	return err
}

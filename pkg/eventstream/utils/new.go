package eventstreamutils

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/papercomputeco/koinonia/pkg/eventstream"
	"github.com/papercomputeco/koinonia/pkg/eventstream/kafka"
	"github.com/papercomputeco/koinonia/pkg/eventstream/nop"
)

type NewPublisherOpts struct {
	// ProviderType is "kafka", or "" / "none" for the no-op publisher.
	ProviderType string
	Brokers      []string
	Topic        string
	Logger       *zap.Logger
}

func NewPublisher(o *NewPublisherOpts) (eventstream.Publisher, error) {
	switch o.ProviderType {
	case "", "none":
		return nop.NewPublisher(), nil
	case "kafka":
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: o.Brokers,
			Topic:   o.Topic,
			Logger:  o.Logger,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported eventstream provider: %s", o.ProviderType)
	}
}

// Package kafka publishes the prediction feed consumed by the downstream
// visualization service.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/JTDingwall/herringspawnprediction/internal/config"
	"github.com/JTDingwall/herringspawnprediction/internal/domain"
)

// Publisher produces prediction messages to a Kafka topic.
// It implements pipeline.PredictionSink.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured prediction topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// WriteAll serializes and publishes the prediction set in a single
// WriteMessages call, one message per location keyed by location code. The
// generated_at header is stamped here at publish time; predictions carry no
// timestamp of their own, and every message in a batch shares the same stamp.
func (p *Publisher) WriteAll(ctx context.Context, preds []domain.Prediction) error {
	if len(preds) == 0 {
		return nil
	}
	generatedAt := domain.Now().UTC()
	msgs := make([]kafkago.Message, len(preds))
	for i := range preds {
		msg, err := serializeToMessage(preds[i], generatedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a Prediction into a Kafka message carrying the
// publish timestamp of its batch.
func serializeToMessage(pred domain.Prediction, generatedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(pred)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize prediction: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(pred.LocationCode),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "target_year", Value: []byte(strconv.Itoa(pred.TargetYear))},
			{Key: "generated_at", Value: []byte(generatedAt.Format(time.RFC3339))},
		},
	}, nil
}

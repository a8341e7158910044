package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/segmentio/kafka-go"

	"prodRelayWs/internal/modules/relay/domain"
)

// Publisher is the relay-side entry point for externally sourced frames.
type Publisher interface {
	Publish(frame domain.Frame)
}

type KafkaConsumer struct {
	reader *kafka.Reader
}

func NewKafkaConsumer(brokers []string, groupID, topic string) *KafkaConsumer {
	return &KafkaConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   topic,
		}),
	}
}

// Consume reads product lifecycle records until ctx is cancelled, forwarding
// each decodable one to the handler. Undecodable records are logged and
// skipped; read errors never terminate the loop early.
func (c *KafkaConsumer) Consume(ctx context.Context, handler func(domain.Frame)) error {
	defer c.reader.Close()
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("kafka read error", slog.Any("error", err))
			continue
		}
		frame, err := decodeFrame(m)
		if err != nil {
			slog.Warn("kafka record dropped", slog.String("topic", m.Topic), slog.Any("error", err))
			continue
		}
		slog.Info("kafka product event consumed",
			slog.String("topic", m.Topic),
			slog.Int("partition", m.Partition),
			slog.Int64("offset", m.Offset),
			slog.String("event", frame.Event),
		)
		handler(frame)
	}
}

// rawEvent is the envelope the product API publishes. Bare product records
// (no envelope) are accepted too; the action then comes from the topic name.
type rawEvent struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

func decodeFrame(m kafka.Message) (domain.Frame, error) {
	action := ""
	payload := json.RawMessage(m.Value)

	var event rawEvent
	if err := json.Unmarshal(m.Value, &event); err == nil && event.Action != "" {
		action = strings.ToLower(strings.TrimSpace(event.Action))
		if len(event.Data) > 0 {
			payload = event.Data
		}
	}
	if action == "" {
		action = actionFromTopic(m.Topic)
	}

	switch action {
	case "created":
		return domain.Frame{Event: domain.EventProductCreated, Payload: payload}, nil
	case "updated":
		return domain.Frame{Event: domain.EventProductUpdated, Payload: payload}, nil
	case "deleted":
		return domain.Frame{Event: domain.EventProductDeleted, Payload: payload}, nil
	default:
		return domain.Frame{}, fmt.Errorf("unsupported action %q on topic %s", action, m.Topic)
	}
}

func actionFromTopic(topic string) string {
	if idx := strings.LastIndex(topic, "."); idx >= 0 {
		return strings.TrimSpace(topic[idx+1:])
	}
	return ""
}

// StartConsumers launches one consumer goroutine per topic, all fanning into
// the relay. With no brokers configured it is a no-op.
func StartConsumers(ctx context.Context, relay Publisher, brokers []string, groupID string, topics []string) {
	if len(brokers) == 0 {
		slog.Info("kafka disabled, no brokers configured")
		return
	}
	for _, topic := range topics {
		go func(tp string) {
			consumer := NewKafkaConsumer(brokers, groupID, tp)
			if err := consumer.Consume(ctx, relay.Publish); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("kafka consumer stopped", slog.String("topic", tp), slog.Any("error", err))
			}
		}(topic)
	}
}

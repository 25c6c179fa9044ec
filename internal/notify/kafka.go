package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaNotifier publishes notifications to a topic consumed by the UI
// push channel. Keyed by account so one session's messages stay ordered.
type KafkaNotifier struct {
	writer *kafka.Writer
}

func NewKafkaNotifier(topic string, brokers ...string) *KafkaNotifier {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaNotifier{writer: w}
}

func (n *KafkaNotifier) Success(ctx context.Context, accountID, message string) {
	n.publish(ctx, LevelSuccess, accountID, message)
}

func (n *KafkaNotifier) Warning(ctx context.Context, accountID, message string) {
	n.publish(ctx, LevelWarning, accountID, message)
}

func (n *KafkaNotifier) Error(ctx context.Context, accountID, message string) {
	n.publish(ctx, LevelError, accountID, message)
}

func (n *KafkaNotifier) Close() {
	if err := n.writer.Close(); err != nil {
		log.Printf("error closing notification writer: %v", err)
	}
}

func (n *KafkaNotifier) publish(ctx context.Context, level Level, accountID, message string) {
	payload, err := json.Marshal(map[string]interface{}{
		"account_id": accountID,
		"level":      level,
		"message":    message,
		"at":         time.Now(),
	})
	if err != nil {
		log.Printf("failed to marshal notification payload: %v", err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(accountID),
		Value: payload,
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		log.Printf("failed to publish notification for account %v: %v", accountID, err)
	}
}

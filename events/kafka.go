package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter é a parte de *kafka.Writer usada pelo publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publica eventos em JSON, com a obra como chave para que
// os eventos de uma mesma obra fiquem na mesma partição, em ordem.
type KafkaPublisher struct {
	w      MessageWriter
	logger *zap.Logger
}

// NewKafkaWriter monta o writer do tópico de eventos do ledger.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 200 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
}

func NewKafkaPublisher(w MessageWriter, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{w: w, logger: logger}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev LedgerEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("falha ao serializar evento %s: %w", ev.Type, err)
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(ev.ArtworkID, 10)),
		Value: value,
		Time:  ev.At,
	}
	if ev.ArtworkID == 0 {
		msg.Key = []byte(ev.Principal)
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("falha ao publicar evento %s: %w", ev.Type, err)
	}
	p.logger.Debug("evento publicado", zap.String("type", string(ev.Type)), zap.String("id", ev.ID))
	return nil
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }

package mirror

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/domain"
)

// Record is the replicated shape of one finalized journal entry, consumed by
// the narrative mirror ledger. The mirror is an observer: nothing here ever
// writes back into the authoritative ledger.
type Record struct {
	Entry domain.JournalEntry  `json:"entry"`
	Lines []domain.JournalLine `json:"lines"`
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, record Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode mirror record: %w", err)
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(record.Entry.JournalID),
		Value: data,
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

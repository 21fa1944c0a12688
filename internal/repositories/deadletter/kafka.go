package deadletter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Meesho/BharatMLStack/catalog-sync/pkg/kafka"
)

type kafkaSender interface {
	Send(ctx context.Context, msg kafka.ProducerMessage) error
	Close() error
}

type kafkaValue struct {
	DeadLetter
	Raw map[string]string `json:"raw"`
}

// KafkaSink publishes dead letters as JSON keyed by event id.
type KafkaSink struct {
	producer kafkaSender
}

func NewKafkaSink(producer kafkaSender) *KafkaSink {
	return &KafkaSink{producer: producer}
}

func (s *KafkaSink) Record(ctx context.Context, dl DeadLetter) error {
	value, err := json.Marshal(kafkaValue{DeadLetter: dl, Raw: rawFields(dl.Raw)})
	if err != nil {
		return fmt.Errorf("encode dead letter %s: %w", dl.EventID, err)
	}
	key := dl.EventID
	err = s.producer.Send(ctx, kafka.ProducerMessage{
		Key:     &key,
		Value:   value,
		Headers: map[string][]byte{FieldReason: []byte(dl.Reason)},
	})
	if err != nil {
		return fmt.Errorf("publish dead letter %s: %w", dl.EventID, err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.producer.Close()
}

package kafka

import (
	"context"
	"fmt"

	kafkaConf "github.com/Meesho/BharatMLStack/catalog-sync/internal/config"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/rs/zerolog/log"
)

const flushTimeoutMs = 5000

// ProducerMessage represents a single message to be produced.
type ProducerMessage struct {
	Key     *string
	Value   []byte
	Headers map[string][]byte
}

// Producer writes to one topic and confirms every message with its delivery report.
type Producer struct {
	producer *kafka.Producer
	topic    string
}

func newConfigMap(cfg *kafkaConf.ProducerConfig) kafka.ConfigMap {
	configMap := kafka.ConfigMap{
		"bootstrap.servers": cfg.BootstrapURLs,
		"client.id":         cfg.ClientID,
		"acks":              cfg.Acks,
	}
	if cfg.SecurityProtocol != "" {
		configMap["security.protocol"] = cfg.SecurityProtocol
	}
	if cfg.SaslMechanism != "" {
		configMap["sasl.mechanism"] = cfg.SaslMechanism
	}
	if cfg.SaslUsername != "" {
		configMap["sasl.username"] = cfg.SaslUsername
	}
	if cfg.SaslPassword != "" {
		configMap["sasl.password"] = cfg.SaslPassword
	}
	return configMap
}

func NewProducer(cfg *kafkaConf.ProducerConfig) (*Producer, error) {
	configMap := newConfigMap(cfg)
	p, err := kafka.NewProducer(&configMap)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	// Reports for Send go to per-call channels; only client-level events arrive here.
	go func() {
		for e := range p.Events() {
			if ev, ok := e.(kafka.Error); ok {
				log.Error().Err(ev).Str("topic", cfg.Topic).Msg("kafka producer error")
			}
		}
	}()

	log.Info().Str("topic", cfg.Topic).Str("bootstrap", cfg.BootstrapURLs).Msg("kafka producer created")
	return &Producer{producer: p, topic: cfg.Topic}, nil
}

func (p *Producer) buildMessage(m ProducerMessage) *kafka.Message {
	kafkaMsg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &p.topic,
			Partition: kafka.PartitionAny,
		},
		Value: m.Value,
	}
	if m.Key != nil {
		kafkaMsg.Key = []byte(*m.Key)
	}
	for k, v := range m.Headers {
		kafkaMsg.Headers = append(kafkaMsg.Headers, kafka.Header{Key: k, Value: v})
	}
	return kafkaMsg
}

// Send produces one message and blocks until the broker acknowledged it or ctx is done.
func (p *Producer) Send(ctx context.Context, m ProducerMessage) error {
	delivery := make(chan kafka.Event, 1)
	if err := p.producer.Produce(p.buildMessage(m), delivery); err != nil {
		return fmt.Errorf("kafka produce error: %w", err)
	}
	select {
	case e := <-delivery:
		msg, ok := e.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected kafka delivery event %v", e)
		}
		if msg.TopicPartition.Error != nil {
			return fmt.Errorf("kafka delivery failed: %w", msg.TopicPartition.Error)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("kafka delivery not confirmed: %w", ctx.Err())
	}
}

func (p *Producer) Close() error {
	if remaining := p.producer.Flush(flushTimeoutMs); remaining > 0 {
		log.Warn().Str("topic", p.topic).Msgf("%d kafka messages still queued at close", remaining)
	}
	p.producer.Close()
	return nil
}

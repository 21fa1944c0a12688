package deadletter

import (
	"fmt"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/config"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/config/enums"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/config/structs"
	"github.com/Meesho/BharatMLStack/catalog-sync/pkg/kafka"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// NewSink builds the sink named by dead_letter_type. client may be nil unless the type is REDIS.
func NewSink(cfg *structs.Configs, client redis.UniversalClient) (Sink, error) {
	switch enums.DeadLetterType(cfg.DeadLetterType) {
	case enums.DeadLetterRedis:
		if client == nil {
			return nil, fmt.Errorf("dead letter type %s needs a redis client", cfg.DeadLetterType)
		}
		stream := config.DeadLetterStream(cfg)
		log.Info().Msgf("dead letters go to redis stream %s", stream)
		return NewRedisSink(client, stream, cfg.DeadLetterMaxLength), nil
	case enums.DeadLetterKafka:
		producerCfg, err := config.BuildProducerConfigFromEnv(cfg.DeadLetterKafkaEnv)
		if err != nil {
			return nil, err
		}
		producer, err := kafka.NewProducer(producerCfg)
		if err != nil {
			return nil, err
		}
		return NewKafkaSink(producer), nil
	case enums.DeadLetterLog:
		return LogSink{}, nil
	default:
		return nil, fmt.Errorf("unknown dead letter type %q", cfg.DeadLetterType)
	}
}

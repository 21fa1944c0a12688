package enums

type EventLogType string

const (
	EventLogRedis  EventLogType = "REDIS"
	EventLogMemory EventLogType = "MEMORY"
)

type VectorDbType string

const (
	MEMORY VectorDbType = "MEMORY"
	BOLT   VectorDbType = "BOLT"
	QDRANT VectorDbType = "QDRANT"
)

type EmbeddingProviderType string

const (
	EmbeddingHashing EmbeddingProviderType = "HASHING"
	EmbeddingRemote  EmbeddingProviderType = "REMOTE"
)

type DeadLetterType string

const (
	DeadLetterRedis DeadLetterType = "REDIS"
	DeadLetterKafka DeadLetterType = "KAFKA"
	DeadLetterLog   DeadLetterType = "LOG"
)

func (t EventLogType) Valid() bool {
	return t == EventLogRedis || t == EventLogMemory
}

func (t VectorDbType) Valid() bool {
	return t == MEMORY || t == BOLT || t == QDRANT
}

// Shared reports whether more than one process can serve the same index.
func (t VectorDbType) Shared() bool {
	return t == QDRANT
}

func (t EmbeddingProviderType) Valid() bool {
	return t == EmbeddingHashing || t == EmbeddingRemote
}

func (t DeadLetterType) Valid() bool {
	return t == DeadLetterRedis || t == DeadLetterKafka || t == DeadLetterLog
}

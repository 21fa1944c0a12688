package eventlog

import (
	"fmt"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/config/enums"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/config/structs"
	"github.com/redis/go-redis/v9"
)

// NewRepository selects the backend named by event_log_type. client may be nil for MEMORY.
func NewRepository(cfg *structs.Configs, client redis.UniversalClient) (Log, error) {
	switch enums.EventLogType(cfg.EventLogType) {
	case enums.EventLogRedis:
		if client == nil {
			return nil, fmt.Errorf("event log %s needs a redis client", cfg.EventLogType)
		}
		return NewRedisStreamLog(client, cfg.StreamPartitions, cfg.PendingTimeout, cfg.StreamMaxLen), nil
	case enums.EventLogMemory:
		return NewMemoryLog(cfg.StreamPartitions, cfg.PendingTimeout, cfg.StreamMaxLen), nil
	default:
		return nil, fmt.Errorf("unknown event log type %q", cfg.EventLogType)
	}
}

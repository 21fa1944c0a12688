package deadletter

import (
	"context"
	"encoding/json"
	"time"
)

// DeadLetter is a record the dispatcher gave up on, kept with enough context to replay it.
type DeadLetter struct {
	EventID  string                 `json:"event_id"`
	Stream   string                 `json:"stream"`
	Raw      map[string]interface{} `json:"raw"`
	Reason   string                 `json:"reason"`
	FailedAt time.Time              `json:"failed_at"`
}

// Sink stores dead letters. A record is acknowledged on the log only after Record
// succeeds, so an error leaves it pending for another attempt.
type Sink interface {
	Record(ctx context.Context, dl DeadLetter) error
	Close() error
}

// rawFields renders raw stream values as strings so every sink stores the same shape.
func rawFields(raw map[string]interface{}) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch s := v.(type) {
		case string:
			out[k] = s
		case []byte:
			out[k] = string(s)
		default:
			b, _ := json.Marshal(s)
			out[k] = string(b)
		}
	}
	return out
}

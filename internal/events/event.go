package events

import (
	"errors"
	"fmt"
	"time"
)

// ErrPoisonMessage marks a record that can never be decoded, no matter how often it is redelivered.
var ErrPoisonMessage = errors.New("poison message")

type EventType string

const (
	Create EventType = "create"
	Update EventType = "update"
	Delete EventType = "delete"
)

func ParseEventType(s string) (EventType, error) {
	switch t := EventType(s); t {
	case Create, Update, Delete:
		return t, nil
	default:
		return "", fmt.Errorf("unknown event type %q", s)
	}
}

// ChangeEvent is one catalog mutation as carried by the event log. EventID is
// assigned by the log and is empty until the event has been appended.
type ChangeEvent struct {
	EventID    string
	Type       EventType
	ItemID     string
	Payload    []byte
	ProducedAt time.Time
}

// Validate checks the invariants shared by the producer and the decoder.
func (e ChangeEvent) Validate() error {
	if _, err := ParseEventType(string(e.Type)); err != nil {
		return err
	}
	if e.ItemID == "" {
		return errors.New("item id is empty")
	}
	if e.ProducedAt.IsZero() {
		return errors.New("produced_at is not set")
	}
	switch e.Type {
	case Delete:
		if len(e.Payload) != 0 {
			return errors.New("delete event carries a payload")
		}
	default:
		if len(e.Payload) == 0 {
			return fmt.Errorf("%s event has an empty payload", e.Type)
		}
	}
	return nil
}

package events

import (
	"fmt"
	"time"
)

// Record field names of the flat wire shape.
const (
	FieldEventType  = "event_type"
	FieldItemID     = "item_id"
	FieldPayload    = "payload"
	FieldProducedAt = "produced_at"
)

// Encode renders the event as the flat string-keyed record appended to the log.
func Encode(e ChangeEvent) map[string]interface{} {
	return map[string]interface{}{
		FieldEventType:  string(e.Type),
		FieldItemID:     e.ItemID,
		FieldPayload:    string(e.Payload),
		FieldProducedAt: e.ProducedAt.UTC().Format(time.RFC3339Nano),
	}
}

// Decode rebuilds a ChangeEvent from a log record. Every error wraps ErrPoisonMessage.
// Create and update payloads must decode as an Item.
func Decode(eventID string, values map[string]interface{}) (ChangeEvent, error) {
	fields := make(map[string]string, 4)
	for _, name := range []string{FieldEventType, FieldItemID, FieldPayload, FieldProducedAt} {
		raw, ok := values[name]
		if !ok {
			return ChangeEvent{}, fmt.Errorf("%w: %s: missing field %s", ErrPoisonMessage, eventID, name)
		}
		s, ok := asString(raw)
		if !ok {
			return ChangeEvent{}, fmt.Errorf("%w: %s: field %s has type %T", ErrPoisonMessage, eventID, name, raw)
		}
		fields[name] = s
	}

	eventType, err := ParseEventType(fields[FieldEventType])
	if err != nil {
		return ChangeEvent{}, fmt.Errorf("%w: %s: %v", ErrPoisonMessage, eventID, err)
	}
	producedAt, err := time.Parse(time.RFC3339Nano, fields[FieldProducedAt])
	if err != nil {
		return ChangeEvent{}, fmt.Errorf("%w: %s: produced_at: %v", ErrPoisonMessage, eventID, err)
	}
	ev := ChangeEvent{
		EventID:    eventID,
		Type:       eventType,
		ItemID:     fields[FieldItemID],
		ProducedAt: producedAt,
	}
	if p := fields[FieldPayload]; p != "" {
		ev.Payload = []byte(p)
	}
	if err := ev.Validate(); err != nil {
		return ChangeEvent{}, fmt.Errorf("%w: %s: %v", ErrPoisonMessage, eventID, err)
	}
	if ev.Type != Delete {
		if _, err := DecodeItem(ev.Payload); err != nil {
			return ChangeEvent{}, fmt.Errorf("%w: %s: %v", ErrPoisonMessage, eventID, err)
		}
	}
	return ev, nil
}

func asString(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	default:
		return "", false
	}
}

package listener

import (
	"testing"
	"time"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/events"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/repositories/eventlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	producedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	valid := events.Encode(events.ChangeEvent{
		Type:       events.Create,
		ItemID:     "sku-1",
		Payload:    []byte(`{"id":"sku-1","name":"Desk lamp"}`),
		ProducedAt: producedAt,
	})

	tests := []struct {
		name       string
		values     map[string]interface{}
		reclaimed  bool
		wantPoison bool
	}{
		{name: "valid create", values: valid},
		{name: "valid reclaimed", values: valid, reclaimed: true},
		{name: "missing fields", values: map[string]interface{}{"item_id": "sku-1"}, wantPoison: true},
		{name: "unknown type", values: map[string]interface{}{
			"event_type": "explode", "item_id": "sku-1", "payload": "", "produced_at": producedAt.Format(time.RFC3339Nano),
		}, wantPoison: true},
		{name: "non-json payload", values: map[string]interface{}{
			"event_type": "update", "item_id": "sku-1", "payload": "{oops", "produced_at": producedAt.Format(time.RFC3339Nano),
		}, wantPoison: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := eventlog.Message{ID: "catalog:updates/1-0", Stream: "catalog:updates", Values: tt.values, Reclaimed: tt.reclaimed}
			ev, err := Decode(msg)
			if tt.wantPoison {
				assert.ErrorIs(t, err, events.ErrPoisonMessage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "catalog:updates/1-0", ev.EventID)
			assert.Equal(t, "sku-1", ev.ItemID)
			assert.Equal(t, events.Create, ev.Type)
			assert.True(t, ev.ProducedAt.Equal(producedAt))
		})
	}
}

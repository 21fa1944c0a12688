package listener

import (
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/events"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/repositories/eventlog"
	"github.com/Meesho/BharatMLStack/catalog-sync/pkg/metric"
	"github.com/rs/zerolog/log"
)

// Decode turns a claimed log entry into a ChangeEvent. The error wraps
// events.ErrPoisonMessage when the entry can never be decoded.
func Decode(msg eventlog.Message) (events.ChangeEvent, error) {
	ev, err := events.Decode(msg.ID, msg.Values)
	if err != nil {
		metric.Incr(metric.EventProcessed, metric.BuildTag(
			metric.NewTag(metric.TagStream, msg.Stream),
			metric.NewTag(metric.TagOutcome, metric.TagValuePoison),
		))
		log.Warn().Err(err).Msgf("undecodable entry %s on %s", msg.ID, msg.Stream)
		return events.ChangeEvent{}, err
	}
	if msg.Reclaimed {
		log.Info().Msgf("processing reclaimed entry %s for item %s", msg.ID, ev.ItemID)
	}
	return ev, nil
}

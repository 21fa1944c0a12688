package deadletter

import (
	"context"

	"github.com/rs/zerolog/log"
)

// LogSink only logs. Use it where losing the payload of a poison record is acceptable.
type LogSink struct{}

func (LogSink) Record(_ context.Context, dl DeadLetter) error {
	log.Error().
		Str(FieldEventID, dl.EventID).
		Str(FieldStream, dl.Stream).
		Str(FieldReason, dl.Reason).
		Interface(FieldRaw, rawFields(dl.Raw)).
		Msg("dead letter")
	return nil
}

func (LogSink) Close() error {
	return nil
}

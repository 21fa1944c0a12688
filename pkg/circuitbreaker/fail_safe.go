package circuitbreaker

import (
	"github.com/Meesho/BharatMLStack/catalog-sync/pkg/metric"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/rs/zerolog/log"
)

type FailSafeCB[R, T any] struct {
	Cb circuitbreaker.CircuitBreaker[any]
}

func NewFailSafe[R, T any](config Config) *FailSafeCB[R, T] {
	config = config.withDefaults()
	cb := circuitbreaker.Builder[any]().
		WithFailureThreshold(config.FailureThreshold).
		WithSuccessThreshold(config.SuccessThreshold).
		WithDelay(config.Delay).
		OnStateChanged(func(event circuitbreaker.StateChangedEvent) {
			log.Warn().Msgf("Circuit Breaker '%s' changed state from %s to %s", config.Name, event.OldState, event.NewState)
			metric.Incr(metric.CircuitBreakerStateChanged, metric.BuildTag(
				metric.NewTag(metric.TagBreaker, config.Name),
				metric.NewTag(metric.TagFromState, event.OldState.String()),
				metric.NewTag(metric.TagToState, event.NewState.String()),
			))
		}).
		Build()
	return &FailSafeCB[R, T]{Cb: cb}
}

func (f *FailSafeCB[R, T]) Execute(request R, task func(R) (T, error)) (T, error) {
	var result T
	err := failsafe.Run(func() error {
		var taskErr error
		result, taskErr = task(request)
		return taskErr
	}, f.Cb)
	return result, err
}

func (f *FailSafeCB[R, T]) IsOpen() bool {
	return f.Cb.IsOpen()
}

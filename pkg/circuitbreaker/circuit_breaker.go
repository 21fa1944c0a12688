package circuitbreaker

import (
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
)

// ErrOpen is returned without running the task while the breaker is open.
var ErrOpen = circuitbreaker.ErrOpen

type CircuitBreaker[Request any, Response any] interface {
	Execute(request Request, task func(Request) (Response, error)) (Response, error)
	IsOpen() bool
}

// Config opens the breaker after FailureThreshold consecutive failures. After Delay it
// lets trial executions through and closes again after SuccessThreshold successes.
type Config struct {
	Name             string
	FailureThreshold uint
	SuccessThreshold uint
	Delay            time.Duration
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
	if c.SuccessThreshold == 0 {
		c.SuccessThreshold = 1
	}
	if c.Delay <= 0 {
		c.Delay = 10 * time.Second
	}
	return c
}

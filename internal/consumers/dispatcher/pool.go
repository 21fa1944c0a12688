package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/consumers/handler/indexer"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/repositories/deadletter"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/repositories/eventlog"
	"github.com/rs/zerolog/log"
)

// ErrStopTimeout is returned by Stop when dispatchers are still running after the timeout.
var ErrStopTimeout = errors.New("dispatchers did not stop in time")

type PoolConfig struct {
	Config
	ConsumerPrefix string
	ConsumerCount  int
}

// Pool runs ConsumerCount dispatchers named <prefix>-<i> in one group.
type Pool struct {
	cfg         PoolConfig
	log         eventlog.Log
	dispatchers []*Dispatcher

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

func NewPool(cfg PoolConfig, l eventlog.Log, handler indexer.Handler, sink deadletter.Sink) *Pool {
	if cfg.ConsumerCount <= 0 {
		cfg.ConsumerCount = 1
	}
	p := &Pool{cfg: cfg, log: l}
	for i := 0; i < cfg.ConsumerCount; i++ {
		c := cfg.Config
		c.Consumer = fmt.Sprintf("%s-%d", cfg.ConsumerPrefix, i)
		p.dispatchers = append(p.dispatchers, New(c, l, handler, sink))
	}
	return p
}

// Start creates the group if needed and launches every dispatcher.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return errors.New("pool already started")
	}
	if err := p.log.CreateGroup(ctx, p.cfg.Stream, p.cfg.Group, eventlog.StartBeginning); err != nil {
		return fmt.Errorf("create group %s on %s: %w", p.cfg.Group, p.cfg.Stream, err)
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.started = true

	var wg sync.WaitGroup
	for _, d := range p.dispatchers {
		wg.Add(1)
		go func(d *Dispatcher) {
			defer wg.Done()
			if err := d.Run(runCtx); err != nil {
				log.Error().Err(err).Msgf("dispatcher %s exited", d.cfg.Consumer)
			}
		}(d)
	}
	go func() {
		wg.Wait()
		close(p.done)
	}()
	log.Info().Msgf("started %d dispatchers on %s group %s", len(p.dispatchers), p.cfg.Stream, p.cfg.Group)
	return nil
}

// Stop cancels every dispatcher and waits up to timeout for the batches in hand to finish.
func (p *Pool) Stop(timeout time.Duration) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil
	}
	p.cancel()
	done := p.done
	p.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		log.Info().Msg("all dispatchers stopped")
		return nil
	case <-timer.C:
		return fmt.Errorf("%w after %s", ErrStopTimeout, timeout)
	}
}

func (p *Pool) Stats() []Stats {
	out := make([]Stats, len(p.dispatchers))
	for i, d := range p.dispatchers {
		out[i] = d.Stats()
	}
	return out
}

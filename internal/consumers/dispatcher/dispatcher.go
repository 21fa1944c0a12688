package dispatcher

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/consumers/handler/indexer"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/consumers/listener"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/repositories/deadletter"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/repositories/eventlog"
	"github.com/Meesho/BharatMLStack/catalog-sync/pkg/metric"
	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Stream    string
	Group     string
	Consumer  string
	BatchSize int
	Block     time.Duration
	// InitialBackoff and MaxBackoff bound the wait after a failed claim or ack.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.Block <= 0 {
		c.Block = 2 * time.Second
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 100 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Second
	}
	return c
}

type counters struct {
	claimed, processed, acked, deadLettered, failed, panics, claimErrors, ackErrors atomic.Uint64
}

// Dispatcher is one consumer of a group. It claims a batch, processes every record in
// claim order, and acks those that were applied or dead-lettered. Records that failed
// transiently stay pending and are reclaimed after the pending timeout.
type Dispatcher struct {
	cfg     Config
	log     eventlog.Log
	handler indexer.Handler
	sink    deadletter.Sink
	now     func() time.Time

	state   atomic.Int32
	stats   counters
	backoff *backoff.ExponentialBackOff
	// sleep is swapped in tests
	sleep func(ctx context.Context, d time.Duration)
	runMu sync.Mutex
}

func New(cfg Config, l eventlog.Log, handler indexer.Handler, sink deadletter.Sink) *Dispatcher {
	cfg = cfg.withDefaults()
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialBackoff
	b.MaxInterval = cfg.MaxBackoff
	d := &Dispatcher{
		cfg:     cfg,
		log:     l,
		handler: handler,
		sink:    sink,
		now:     time.Now,
		backoff: b,
		sleep:   sleepCtx,
	}
	d.state.Store(int32(Idle))
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (d *Dispatcher) State() State {
	return State(d.state.Load())
}

func (d *Dispatcher) setState(s State) {
	d.state.Store(int32(s))
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		Consumer:     d.cfg.Consumer,
		State:        d.State().String(),
		Claimed:      d.stats.claimed.Load(),
		Processed:    d.stats.processed.Load(),
		Acked:        d.stats.acked.Load(),
		DeadLettered: d.stats.deadLettered.Load(),
		Failed:       d.stats.failed.Load(),
		Panics:       d.stats.panics.Load(),
		ClaimErrors:  d.stats.claimErrors.Load(),
		AckErrors:    d.stats.ackErrors.Load(),
	}
}

func (d *Dispatcher) tags(extra ...metric.Tag) []string {
	tags := append([]metric.Tag{
		metric.NewTag(metric.TagStream, d.cfg.Stream),
		metric.NewTag(metric.TagGroup, d.cfg.Group),
	}, extra...)
	return metric.BuildTag(tags...)
}

// Run loops until ctx is cancelled. Cancellation is only observed between batches: a
// claimed batch is always processed and acked with a context that is not cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	if !d.runMu.TryLock() {
		return fmt.Errorf("dispatcher %s is already running", d.cfg.Consumer)
	}
	defer d.runMu.Unlock()
	defer d.setState(Stopped)
	log.Info().Msgf("dispatcher %s started on %s group %s", d.cfg.Consumer, d.cfg.Stream, d.cfg.Group)

	for {
		if ctx.Err() != nil {
			log.Info().Msgf("dispatcher %s stopping", d.cfg.Consumer)
			return nil
		}
		d.setState(Claiming)
		msgs, err := d.log.ReadBatch(ctx, d.cfg.Stream, d.cfg.Group, d.cfg.Consumer, d.cfg.BatchSize, d.cfg.Block)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			d.stats.claimErrors.Add(1)
			metric.Incr(metric.DispatcherClaimError, d.tags())
			wait := d.backoff.NextBackOff()
			log.Error().Err(err).Msgf("dispatcher %s failed to claim, retrying in %s", d.cfg.Consumer, wait)
			d.setState(Idle)
			d.sleep(ctx, wait)
			continue
		}
		if len(msgs) == 0 {
			d.backoff.Reset()
			d.setState(Idle)
			continue
		}
		metric.Gauge(metric.DispatcherBatchSize, float64(len(msgs)), d.tags())

		if d.handleBatch(context.WithoutCancel(ctx), msgs) {
			d.backoff.Reset()
		} else {
			d.sleep(ctx, d.backoff.NextBackOff())
		}
		d.setState(Idle)
	}
}

// handleBatch reports false when the ack failed.
func (d *Dispatcher) handleBatch(ctx context.Context, msgs []eventlog.Message) bool {
	d.stats.claimed.Add(uint64(len(msgs)))
	d.setState(Processing)
	ack := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		if d.processOne(ctx, msg) {
			ack = append(ack, msg.ID)
		}
	}
	if len(ack) == 0 {
		return true
	}
	d.setState(Acking)
	if err := d.log.Ack(ctx, d.cfg.Stream, d.cfg.Group, ack...); err != nil {
		d.stats.ackErrors.Add(1)
		metric.Incr(metric.DispatcherAckError, d.tags())
		log.Error().Err(err).Msgf("dispatcher %s failed to ack %d entries; they will be redelivered", d.cfg.Consumer, len(ack))
		return false
	}
	d.stats.acked.Add(uint64(len(ack)))
	return true
}

// processOne reports whether msg can be acked.
func (d *Dispatcher) processOne(ctx context.Context, msg eventlog.Message) (ack bool) {
	defer func() {
		if r := recover(); r != nil {
			d.stats.panics.Add(1)
			metric.Incr(metric.DispatcherProcessErr, d.tags(metric.NewTag(metric.TagOutcome, "panic")))
			log.Error().Msgf("panic processing %s: %v\n%s", msg.ID, r, debug.Stack())
			ack = false
		}
	}()

	ev, err := listener.Decode(msg)
	if err != nil {
		return d.deadLetter(ctx, msg, err)
	}
	err = d.handler.Process(ctx, ev)
	switch {
	case err == nil:
		d.stats.processed.Add(1)
		metric.Incr(metric.EventProcessed, d.tags(
			metric.NewTag(metric.TagEventType, string(ev.Type)),
			metric.NewTag(metric.TagOutcome, metric.TagValueSuccess),
		))
		return true
	case indexer.IsPermanent(err):
		return d.deadLetter(ctx, msg, err)
	default:
		d.stats.failed.Add(1)
		metric.Incr(metric.DispatcherProcessErr, d.tags(metric.NewTag(metric.TagEventType, string(ev.Type))))
		log.Error().Err(err).Msgf("failed to process %s for item %s; left pending", msg.ID, ev.ItemID)
		return false
	}
}

func (d *Dispatcher) deadLetter(ctx context.Context, msg eventlog.Message, cause error) bool {
	err := d.sink.Record(ctx, deadletter.DeadLetter{
		EventID:  msg.ID,
		Stream:   msg.Stream,
		Raw:      msg.Values,
		Reason:   cause.Error(),
		FailedAt: d.now().UTC(),
	})
	if err != nil {
		d.stats.failed.Add(1)
		log.Error().Err(err).Msgf("failed to dead-letter %s; left pending", msg.ID)
		return false
	}
	d.stats.deadLettered.Add(1)
	metric.Incr(metric.EventDeadLettered, d.tags())
	log.Warn().Msgf("dead-lettered %s: %v", msg.ID, cause)
	return true
}

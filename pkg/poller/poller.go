package poller

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ericogr/heating-panel-bridge/pkg/output"
	"github.com/ericogr/heating-panel-bridge/pkg/sensor"
	"github.com/ericogr/heating-panel-bridge/pkg/telemetry"
	"github.com/jpillora/backoff"
	"github.com/juju/errors"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Room       string
	Interval   time.Duration
	BackoffMin time.Duration
	BackoffMax time.Duration
	Factor     float64
}

type Stats struct {
	Polls    uint64
	Accepted uint64
	Rejected uint64
	Spikes   uint64
	Errors   uint64
}

// Poller is the single worker reading the controller, decoding frames
// and publishing batches. Run and Poll must not be called concurrently;
// Trigger, ButtonStates and Stats are safe from any goroutine.
type Poller struct {
	src     sensor.Source
	dec     *telemetry.Decoder
	outputs []output.Output
	room    string

	interval time.Duration
	backoff  *backoff.Backoff
	trigger  chan struct{}
	now      func() time.Time

	buttons  atomic.Uint32
	polls    atomic.Uint64
	accepted atomic.Uint64
	rejected atomic.Uint64
	spikes   atomic.Uint64
	failures atomic.Uint64
}

func New(src sensor.Source, dec *telemetry.Decoder, outputs []output.Output, opt Options) *Poller {
	if opt.Room == "" {
		opt.Room = telemetry.DefaultRoom
	}
	if opt.Factor < 1 {
		opt.Factor = 2
	}
	return &Poller{
		src:      src,
		dec:      dec,
		outputs:  outputs,
		room:     opt.Room,
		interval: opt.Interval,
		backoff:  &backoff.Backoff{Min: opt.BackoffMin, Max: opt.BackoffMax, Factor: opt.Factor, Jitter: true},
		trigger:  make(chan struct{}, 1),
		now:      time.Now,
	}
}

// Poll reads, decodes and publishes one frame. A frame rejected by the
// decoder is not an error. Transport and sink errors are returned as is,
// so is a batch layout mismatch (NotFound), which Run treats as fatal.
func (p *Poller) Poll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.polls.Add(1)
	raw, err := p.src.ReadFrame()
	if err != nil {
		return errors.Annotate(err, "read frame")
	}

	readings, ok := p.dec.Decode(raw)
	if !ok {
		p.rejected.Add(1)
		log.Debug().Hex("frame", raw[:]).Msg("frame rejected, controller not ready")
		return nil
	}
	p.accepted.Add(1)
	p.buttons.Store(uint32(raw.Sample()[1]))
	for _, s := range p.dec.Spikes() {
		p.spikes.Add(1)
		log.Debug().Str("channel", s.Name).Uint8("raw", s.Raw).Int("previous", s.Previous).Msg("temperature spike ignored")
	}

	batches, err := telemetry.BuildBatches(readings, p.room)
	if err != nil {
		return err
	}
	ts := p.now()
	for i := range batches {
		batches[i].Time = ts
	}

	var first error
	for _, o := range p.outputs {
		if err := o.Publish(batches); err != nil {
			log.Error().Err(err).Msg("publish")
			if first == nil {
				first = errors.Annotate(err, "publish")
			}
		}
	}
	return first
}

// Run polls every interval until ctx is done. Failed polls are retried
// after an exponential backoff delay instead of the interval.
func (p *Poller) Run(ctx context.Context) error {
	for {
		wait := p.interval
		err := p.Poll(ctx)
		switch {
		case err == nil:
			p.backoff.Reset()
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.IsNotFound(err):
			return errors.Annotate(err, "batch layout")
		default:
			p.failures.Add(1)
			wait = p.backoff.Duration()
			log.Warn().Err(err).Dur("retry_in", wait).Msg("poll failed")
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-p.trigger:
			t.Stop()
		case <-t.C:
		}
	}
}

// Trigger asks Run to poll now instead of waiting for the next tick.
func (p *Poller) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// ButtonStates returns the raw buttons byte of the last accepted frame.
func (p *Poller) ButtonStates() byte { return byte(p.buttons.Load()) }

func (p *Poller) Stats() Stats {
	return Stats{
		Polls:    p.polls.Load(),
		Accepted: p.accepted.Load(),
		Rejected: p.rejected.Load(),
		Spikes:   p.spikes.Load(),
		Errors:   p.failures.Load(),
	}
}

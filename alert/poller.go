// Package alert runs the polling loop that posts and retracts live alerts, and the
// command operations that manage subscriptions and guild preferences.
package alert

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/thetaalert/chat"
	"github.com/onnwee/thetaalert/config"
	"github.com/onnwee/thetaalert/settings"
	"github.com/onnwee/thetaalert/stream"
	"github.com/onnwee/thetaalert/subscription"
	"github.com/onnwee/thetaalert/telemetry"
	"github.com/onnwee/thetaalert/thetaapi"
)

// Poller checks every tracked stream once per interval and reconciles posted alerts.
type Poller struct {
	Store           *subscription.Store
	Settings        settings.Store
	Platform        chat.Platform
	Tokens          *thetaapi.TokenSource
	DefaultInterval time.Duration
	// StopGrace bounds how long Stop lets a tick in progress run before its calls are cancelled.
	StopGrace time.Duration
	Clock     clockwork.Clock

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	lastTick time.Time
}

func (p *Poller) clock() clockwork.Clock {
	if p.Clock != nil {
		return p.Clock
	}
	return clockwork.NewRealClock()
}

// Start launches the loop. Calling Start on a running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.run(ctx, p.done)
}

// DefaultStopGrace is used when StopGrace is zero.
const DefaultStopGrace = 10 * time.Second

func (p *Poller) stopGrace() time.Duration {
	if p.StopGrace > 0 {
		return p.StopGrace
	}
	return DefaultStopGrace
}

// Stop cancels the loop and waits for it to exit. A tick in progress gets StopGrace to
// finish before its remaining API and chat calls are cancelled.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	log := slog.Default().With(slog.String("component", "poller"))
	log.Info("poller started")
	for {
		p.tickUntilGrace(ctx)
		d := p.Interval(ctx)
		select {
		case <-ctx.Done():
			log.Info("poller stopped")
			return
		case <-p.clock().After(d):
		}
	}
}

// tickUntilGrace runs one tick detached from ctx, so stopping does not cut a pass in
// half, unless the tick outlives ctx by more than the stop grace.
func (p *Poller) tickUntilGrace(ctx context.Context) {
	tickCtx, cancelTick := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelTick()
	release := context.AfterFunc(ctx, func() {
		select {
		case <-tickCtx.Done():
		case <-p.clock().After(p.stopGrace()):
			slog.Warn("cancelling polling tick after stop grace", slog.String("component", "poller"), slog.Duration("grace", p.stopGrace()))
			cancelTick()
		}
	})
	defer release()
	p.Tick(tickCtx)
}

// Interval returns the stored refresh interval, else the configured default, never below the minimum.
func (p *Poller) Interval(ctx context.Context) time.Duration {
	d := p.DefaultInterval
	if stored, ok, err := p.Settings.RefreshInterval(ctx); err != nil {
		slog.Debug("reading refresh interval failed", slog.Any("err", err))
	} else if ok {
		d = stored
	}
	if d < config.MinRefreshInterval {
		d = config.MinRefreshInterval
	}
	return d
}

// LastTick returns when the last tick finished (zero before the first).
func (p *Poller) LastTick() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastTick
}

// Tick runs one polling pass over every subscription.
func (p *Poller) Tick(ctx context.Context) {
	ctx = telemetry.WithCorrelation(ctx, uuid.NewString())
	ctx, span := telemetry.StartSpan(ctx, "alert", "poll.tick")
	log := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "poller"))
	telemetry.Inc(telemetry.PollTicks)

	if err := p.Tokens.RefreshIfNeeded(ctx); err != nil {
		log.Debug("token refresh failed, checking with the cached token", slog.Any("err", err))
	}

	subs := p.Store.Snapshot()
	took := telemetry.TimeFunc(telemetry.TickDuration, func() {
		for _, sub := range subs {
			p.reconcile(ctx, log, sub)
		}
	})

	end := p.clock().Now()
	telemetry.MarkTick(end)
	p.mu.Lock()
	p.lastTick = end
	p.mu.Unlock()
	span.SetAttributes(attribute.Int("subscriptions", len(subs)))
	telemetry.EndSpan(span, nil)
	log.Debug("tick finished", slog.Int("subscriptions", len(subs)), slog.Duration("took", took))
}

func (p *Poller) reconcile(ctx context.Context, log *slog.Logger, sub *subscription.Subscription) {
	log = log.With(slog.String("stream", sub.Stream.Name()))
	res := sub.Stream.Check(ctx)
	switch res.Outcome {
	case stream.Offline:
		p.wentOffline(ctx, log, sub)
	case stream.Online:
		p.wentOnline(ctx, log, sub, res)
	default:
		// retried on the next tick
		log.Debug("stream check failed", slog.String("outcome", res.Outcome.String()), slog.Any("err", res.Err))
	}
}

func (p *Poller) wentOffline(ctx context.Context, log *slog.Logger, sub *subscription.Subscription) {
	msgs := sub.TakeMessages()
	if len(msgs) == 0 {
		return
	}
	for _, ref := range msgs {
		guild, err := p.Platform.ChannelGuild(ctx, ref.ChannelID)
		if err != nil {
			log.Debug("alert channel gone", slog.String("channel", ref.ChannelID), slog.Any("err", err))
			continue
		}
		cfg, err := p.Settings.Guild(ctx, guild)
		if err != nil {
			log.Debug("reading guild settings failed", slog.String("guild", guild), slog.Any("err", err))
			continue
		}
		if !cfg.Autodelete {
			continue
		}
		if err := p.Platform.Delete(ctx, ref); err != nil {
			log.Debug("deleting alert failed", slog.String("channel", ref.ChannelID), slog.String("message", ref.MessageID), slog.Any("err", err))
			continue
		}
		telemetry.Inc(telemetry.AlertsDeleted)
	}
	p.flush(ctx, log)
}

func (p *Poller) wentOnline(ctx context.Context, log *slog.Logger, sub *subscription.Subscription, res stream.Result) {
	if sub.Live() {
		return
	}
	for _, channelID := range sub.Channels() {
		guild, err := p.Platform.ChannelGuild(ctx, channelID)
		if err != nil {
			log.Debug("skipping unknown channel", slog.String("channel", channelID), slog.Any("err", err))
			continue
		}
		cfg, err := p.Settings.Guild(ctx, guild)
		if err != nil {
			log.Warn("reading guild settings failed", slog.String("guild", guild), slog.Any("err", err))
			continue
		}
		if cfg.IgnoreReruns && res.Rerun {
			continue
		}
		mention, edited := mentions(ctx, p.Platform, p.Settings, guild, cfg)
		content := alertText(cfg, mention, sub.Stream.Name(), func(s string) string { return chat.EscapeFor(p.Platform, s) })
		ref, err := p.Platform.Send(ctx, channelID, content, res.Embed)
		resetRoles(ctx, p.Platform, guild, edited)
		if err != nil {
			telemetry.Inc(telemetry.AlertSendFailures)
			log.Warn("sending alert failed", slog.String("channel", channelID), slog.Any("err", err))
			continue
		}
		sub.AddMessage(ref)
		telemetry.Inc(telemetry.AlertsSent)
		p.flush(ctx, log)
	}
}

func (p *Poller) flush(ctx context.Context, log *slog.Logger) {
	if err := p.Store.Flush(ctx); err != nil {
		log.Warn("saving subscriptions failed", slog.Any("err", err))
	}
}

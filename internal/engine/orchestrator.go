// Package engine hosts the configuration orchestrator: the state machine
// that reconciles remote config, permission results and attribution into one
// terminal decision, native UI or a redirect URL.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"batterycare/internal/attribution"
	"batterycare/internal/cache"
	"batterycare/internal/device"
	"batterycare/internal/link"
	"batterycare/internal/metrics"
	"batterycare/internal/observability"
	"batterycare/internal/permissions"
	"batterycare/internal/remoteconfig"
	"batterycare/internal/storage"
)

// Deps are the orchestrator's collaborators, passed explicitly so tests can
// substitute any of them.
type Deps struct {
	Remote      *remoteconfig.Client
	Gateway     *permissions.Gateway
	Attribution *attribution.Client
	Metrics     *metrics.Client
	Settings    *storage.Settings
	AdID        device.AdIdentifier
	Push        device.PushIdentity
}

// Orchestrator owns AppState. All mutations run on its single event loop;
// collaborators report back by posting events, never by touching state.
type Orchestrator struct {
	bundleID string
	watchdog time.Duration
	deps     Deps

	events  chan event
	state   cache.Snapshot[AppState]
	done    chan struct{}
	started time.Time

	// loop-goroutine only
	resolved   bool
	configDone bool
	wd         *time.Timer

	attribOnce sync.Once
}

func New(bundleID string, watchdog time.Duration, deps Deps) *Orchestrator {
	return &Orchestrator{
		bundleID: bundleID,
		watchdog: watchdog,
		deps:     deps,
		events:   make(chan event, 16),
		done:     make(chan struct{}),
	}
}

// Run starts the event loop and fans out to the three independent
// subsystems: remote config fetch and the two permission prompts. It returns
// immediately; progress is observable through State and Done.
func (o *Orchestrator) Run(ctx context.Context) {
	o.started = time.Now()
	o.state.Store(AppState{Phase: PhaseLoading})

	go o.loop(ctx)

	go func() {
		o.deps.Remote.Fetch(ctx)
		o.post(ctx, event{kind: evConfigFetched})
	}()

	go func() {
		// tracking first: its approval is what unlocks attribution start
		o.deps.Gateway.RequestTracking(ctx)
		o.post(ctx, event{kind: evPermissionAsked})
		o.deps.Gateway.RequestNotification(ctx)
		o.post(ctx, event{kind: evPermissionAsked})
	}()
}

// State returns the current app state; Loading until resolved.
func (o *Orchestrator) State() AppState {
	st, ok := o.state.Load()
	if !ok {
		return AppState{Phase: PhaseLoading}
	}
	return st
}

// Done closes once a terminal state has been reached.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}

func (o *Orchestrator) post(ctx context.Context, ev event) {
	select {
	case o.events <- ev:
	case <-ctx.Done():
	}
}

func (o *Orchestrator) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-o.events:
			o.handle(ctx, ev)
		}
	}
}

func (o *Orchestrator) handle(ctx context.Context, ev event) {
	if o.resolved {
		// a late attribution or metrics result after the watchdog already
		// forced a terminal state is discarded
		log.Debug().Stringer("event", ev.kind).Msg("event after terminal state; discarding")
		return
	}

	switch ev.kind {
	case evConfigFetched:
		o.configDone = true
		if key := o.deps.Remote.Flags().DevKey; key != "" {
			o.deps.Attribution.Configure(key)
		}
		o.evaluate(ctx)
	case evPermissionAsked:
		o.evaluate(ctx)
	case evAttributionResolved:
		o.onAttributionResolved(ctx)
	case evLinkResolved:
		o.persistAndRedirect(ctx, ev.url)
	case evResolveFailed:
		o.finish(ctx, AppState{Phase: PhaseNative})
	case evWatchdog:
		log.Warn().Msg("watchdog fired before resolution; falling back to native")
		o.finish(ctx, AppState{Phase: PhaseNative})
	}
}

// evaluate applies the transition rules after every config or permission
// event.
func (o *Orchestrator) evaluate(ctx context.Context) {
	if !o.configDone {
		// permission results arriving ahead of the config outcome must not
		// resolve the state early
		return
	}

	if !o.deps.Remote.Enabled() {
		if o.deps.Gateway.BothAsked() {
			o.finish(ctx, AppState{Phase: PhaseNative})
		}
		return
	}

	if cached := o.deps.Settings.DestinationURL(ctx); cached != "" {
		o.finish(ctx, AppState{Phase: PhaseRedirect, DestinationURL: cached})
		return
	}

	o.armAttribution(ctx)
}

// armAttribution starts attribution collection and the watchdog, once. The
// watchdog is the safety net against an SDK that never calls back.
func (o *Orchestrator) armAttribution(ctx context.Context) {
	o.attribOnce.Do(func() {
		o.deps.Attribution.Start(ctx)
		o.wd = time.AfterFunc(o.watchdog, func() {
			o.post(ctx, event{kind: evWatchdog})
		})
		go func() {
			select {
			case <-ctx.Done():
			case <-o.deps.Attribution.Resolved():
				o.post(ctx, event{kind: evAttributionResolved})
			}
		}()
	})
}

// onAttributionResolved prefers a link built straight from attribution
// parameters; anything short of that falls back to the metrics handshake.
func (o *Orchestrator) onAttributionResolved(ctx context.Context) {
	attrib := o.deps.Attribution
	if attrib.Configured() && !attrib.IsOrganic() {
		params := attrib.ExtractParameters()
		if len(params) > 0 {
			u, ok := link.BuildAttributionURL(params, o.deps.Remote.Flags().CampaignURL, o.bundleID, o.currentAdID(), o.pushID())
			if ok {
				o.persistAndRedirect(ctx, u)
				return
			}
		}
	}
	go o.resolveFromMetrics(ctx)
}

// resolveFromMetrics runs off the loop goroutine and reports back with an
// event; every failure degrades to the native fallback.
func (o *Orchestrator) resolveFromMetrics(ctx context.Context) {
	flags := o.deps.Remote.Flags()
	if flags.BaseURL == "" || flags.Salt == "" {
		o.post(ctx, event{kind: evResolveFailed})
		return
	}

	adID := o.currentAdID()
	resp, err := o.deps.Metrics.FetchMetrics(ctx, flags.BaseURL, o.bundleID, flags.Salt, adID)
	if err != nil {
		log.Warn().Err(err).Msg("metrics handshake failed")
		observability.ResolveErrors.WithLabelValues("metrics").Inc()
		o.post(ctx, event{kind: evResolveFailed})
		return
	}

	u, ok := link.BuildTrackingURL(resp, o.bundleID, adID, o.pushID())
	if !ok {
		observability.ResolveErrors.WithLabelValues("link").Inc()
		o.post(ctx, event{kind: evResolveFailed})
		return
	}
	o.post(ctx, event{kind: evLinkResolved, url: u})
}

func (o *Orchestrator) persistAndRedirect(ctx context.Context, u string) {
	o.deps.Settings.SaveDestinationURL(ctx, u)
	o.finish(ctx, AppState{Phase: PhaseRedirect, DestinationURL: u})
}

func (o *Orchestrator) finish(_ context.Context, st AppState) {
	o.resolved = true
	if o.wd != nil {
		o.wd.Stop()
	}
	o.state.Store(st)

	observability.StateTransitions.WithLabelValues(st.Phase.String()).Inc()
	observability.ResolutionDuration.Observe(time.Since(o.started).Seconds())
	log.Info().Stringer("state", st.Phase).Str("url", st.DestinationURL).Msg("app state resolved")
	close(o.done)
}

func (o *Orchestrator) currentAdID() string {
	if id, ok := o.deps.AdID.AdID(); ok {
		return id
	}
	return ""
}

func (o *Orchestrator) pushID() string {
	if id, ok := o.deps.Push.ExternalID(); ok {
		return id
	}
	return ""
}

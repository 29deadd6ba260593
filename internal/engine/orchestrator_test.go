package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"batterycare/internal/attribution"
	"batterycare/internal/device"
	"batterycare/internal/metrics"
	"batterycare/internal/permissions"
	"batterycare/internal/remoteconfig"
	"batterycare/internal/storage"
)

type stubFetcher struct {
	values map[string]string
	calls  int
}

func (f *stubFetcher) Fetch(context.Context) (map[string]string, error) {
	f.calls++
	return f.values, nil
}

func flagSet(baseURL string) map[string]string {
	return map[string]string{
		remoteconfig.KeyEnabled:     "true",
		remoteconfig.KeyBaseURL:     baseURL,
		remoteconfig.KeySalt:        "s1",
		remoteconfig.KeyDevKey:      "dev-key",
		remoteconfig.KeyCampaignURL: "https://camp.test",
	}
}

type fixture struct {
	settings *storage.Settings
	fetcher  *stubFetcher
	source   *attribution.ChannelSource
	orch     *Orchestrator
}

func newFixture(t *testing.T, ctx context.Context, flags map[string]string, tracking, notification permissions.Status, watchdog time.Duration, seed func(*storage.Settings)) *fixture {
	t.Helper()

	settings := storage.NewSettings(storage.NewMemory())
	if seed != nil {
		seed(settings)
	}

	fetcher := &stubFetcher{values: flags}
	remote := remoteconfig.New(fetcher, settings, 500*time.Second)
	t.Cleanup(remote.Stop)

	ids := device.NewIdentifiers("", "")
	source := attribution.NewChannelSource()
	attrib := attribution.NewClient(ctx, source, ids, settings)

	gateway := permissions.NewGateway(
		permissions.StaticPrompter{Notification: notification, Tracking: tracking},
		permissions.WithTrackingApproved(func() {
			ids.AuthorizeTracking()
			attrib.Start(ctx)
		}),
	)

	orch := New("com.app", watchdog, Deps{
		Remote:      remote,
		Gateway:     gateway,
		Attribution: attrib,
		Metrics:     metrics.NewClient(),
		Settings:    settings,
		AdID:        ids,
		Push:        ids,
	})

	return &fixture{settings: settings, fetcher: fetcher, source: source, orch: orch}
}

func waitResolved(t *testing.T, o *Orchestrator) AppState {
	t.Helper()
	select {
	case <-o.Done():
	case <-time.After(3 * time.Second):
		t.Fatalf("orchestrator never resolved; state %v", o.State().Phase)
	}
	return o.State()
}

func TestResolve_RemoteDisabledFallsBackToNative(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// empty flag map: fetch succeeds but nothing activates
	f := newFixture(t, ctx, map[string]string{}, permissions.StatusDenied, permissions.StatusApproved, 5*time.Second, nil)
	f.orch.Run(ctx)

	st := waitResolved(t, f.orch)
	assert.Equal(t, PhaseNative, st.Phase)
	assert.True(t, f.orch.State().Terminal())
}

func TestResolve_CachedDestinationShortCircuits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t, ctx, flagSet("https://unused.test"), permissions.StatusApproved, permissions.StatusApproved, 5*time.Second,
		func(s *storage.Settings) {
			s.EnableRemote(ctx)
			s.SaveBaseURL(ctx, "https://api.test")
			s.SaveSalt(ctx, "s1")
			s.SaveDevKey(ctx, "dev-key")
			s.SaveCampaignURL(ctx, "https://camp.test")
			s.SaveDestinationURL(ctx, "https://dest.test/cached")
		})
	f.orch.Run(ctx)

	st := waitResolved(t, f.orch)
	assert.Equal(t, PhaseRedirect, st.Phase)
	assert.Equal(t, "https://dest.test/cached", st.DestinationURL)
	// the stored record suppresses any network fetch
	assert.Equal(t, 0, f.fetcher.calls)
}

func TestResolve_EmptyAttributionFallsThroughToMetrics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"URL": "https://x.test", "is_organic": false, "sub_id_2": "7"}`))
	}))
	defer srv.Close()

	f := newFixture(t, ctx, flagSet(srv.URL), permissions.StatusApproved, permissions.StatusApproved, 5*time.Second, nil)
	f.orch.Run(ctx)

	// attribution resolves organically with no parameters
	f.source.C <- attribution.Event{Kind: attribution.ConversionSuccess, Data: map[string]any{}}

	st := waitResolved(t, f.orch)
	require.Equal(t, PhaseRedirect, st.Phase)
	assert.Equal(t, "https://x.test/7?bundle=com.app", st.DestinationURL)
	assert.Equal(t, "https://x.test/7?bundle=com.app", f.settings.DestinationURL(ctx))
}

func TestResolve_NonOrganicAttributionBuildsLinkDirectly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t, ctx, flagSet("https://unused.test"), permissions.StatusApproved, permissions.StatusApproved, 5*time.Second, nil)
	f.orch.Run(ctx)

	f.source.C <- attribution.Event{Kind: attribution.ConversionSuccess, Data: map[string]any{
		"af_status":    "Non-organic",
		"media_source": "google",
		"cm_id":        "42",
		"app_name":     "battery",
	}}

	st := waitResolved(t, f.orch)
	require.Equal(t, PhaseRedirect, st.Phase)
	assert.True(t, strings.HasPrefix(st.DestinationURL, "https://camp.test/42?app_name=battery&bundle=com.app&appsflyer_id="), st.DestinationURL)
	assert.Equal(t, st.DestinationURL, f.settings.DestinationURL(ctx))
}

func TestResolve_MetricsFailureFallsBackToNative(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newFixture(t, ctx, flagSet(srv.URL), permissions.StatusApproved, permissions.StatusApproved, 5*time.Second, nil)
	f.orch.Run(ctx)

	f.source.C <- attribution.Event{Kind: attribution.ConversionFailure}

	st := waitResolved(t, f.orch)
	assert.Equal(t, PhaseNative, st.Phase)
	// the safe fallback leaves no cached destination behind
	assert.Empty(t, f.settings.DestinationURL(ctx))
}

func TestResolve_WatchdogForcesNative(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t, ctx, flagSet("https://unused.test"), permissions.StatusApproved, permissions.StatusApproved, 50*time.Millisecond, nil)
	f.orch.Run(ctx)
	// attribution never calls back

	st := waitResolved(t, f.orch)
	assert.Equal(t, PhaseNative, st.Phase)
}

func TestResolve_LateAttributionAfterWatchdogIsDiscarded(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t, ctx, flagSet("https://unused.test"), permissions.StatusApproved, permissions.StatusApproved, 50*time.Millisecond, nil)
	f.orch.Run(ctx)

	waitResolved(t, f.orch)

	// the SDK calling back after the watchdog must not flip the state
	f.source.C <- attribution.Event{Kind: attribution.ConversionSuccess, Data: map[string]any{
		"media_source": "google",
		"cm_id":        "42",
	}}
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, PhaseNative, f.orch.State().Phase)
	assert.Empty(t, f.settings.DestinationURL(ctx))
}

func TestState_LoadingBeforeRun(t *testing.T) {
	o := New("com.app", time.Second, Deps{})
	assert.Equal(t, PhaseLoading, o.State().Phase)
	assert.False(t, o.State().Terminal())
}

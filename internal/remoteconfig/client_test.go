package remoteconfig

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"batterycare/internal/storage"
)

type stubFetcher struct {
	values map[string]string
	err    error
	calls  int
}

func (f *stubFetcher) Fetch(context.Context) (map[string]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.values, nil
}

func fullFlagSet() map[string]string {
	return map[string]string{
		KeyEnabled:     "true",
		KeyBaseURL:     "https://api.test/metrics",
		KeySalt:        "s1",
		KeyDevKey:      "dev-key",
		KeyCampaignURL: "https://camp.test",
	}
}

func TestFetch_ActivationIsAllOrNothing(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(map[string]string)
		wantEnabled bool
	}{
		{"full set activates", func(map[string]string) {}, true},
		{"disabled flag", func(m map[string]string) { m[KeyEnabled] = "false" }, false},
		{"missing salt", func(m map[string]string) { delete(m, KeySalt) }, false},
		{"empty base url", func(m map[string]string) { m[KeyBaseURL] = "" }, false},
		{"missing dev key", func(m map[string]string) { delete(m, KeyDevKey) }, false},
		{"missing campaign url", func(m map[string]string) { delete(m, KeyCampaignURL) }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := fullFlagSet()
			tt.mutate(values)

			store := storage.NewMemory()
			settings := storage.NewSettings(store)
			c := New(&stubFetcher{values: values}, settings, 500*time.Second)
			defer c.Stop()

			c.Fetch(context.Background())

			assert.Equal(t, tt.wantEnabled, c.Enabled())
			if !tt.wantEnabled {
				// partial records never reach memory or disk
				assert.Equal(t, Flags{}, c.Flags())
				_, present := settings.RemoteStatus(context.Background())
				assert.False(t, present)
			} else {
				enabled, present := settings.RemoteStatus(context.Background())
				assert.True(t, present)
				assert.True(t, enabled)
				assert.Equal(t, "s1", settings.SavedSalt(context.Background()))
			}
		})
	}
}

func TestFetch_AtMostOneNetworkCallPerRun(t *testing.T) {
	f := &stubFetcher{values: fullFlagSet()}
	c := New(f, storage.NewSettings(storage.NewMemory()), 500*time.Second)
	defer c.Stop()

	c.Fetch(context.Background())
	c.Fetch(context.Background())
	c.Fetch(context.Background())

	assert.Equal(t, 1, f.calls)
}

func TestFetch_RefetchIntervalGatesFailedAttempts(t *testing.T) {
	f := &stubFetcher{err: errors.New("boom")}
	c := New(f, storage.NewSettings(storage.NewMemory()), 500*time.Second)
	defer c.Stop()

	c.Fetch(context.Background())
	c.Fetch(context.Background())

	// the failed first attempt still counts against the minimum interval
	assert.Equal(t, 1, f.calls)
	assert.False(t, c.Enabled())
}

func TestFetch_NetworkErrorBehavesLikeDisabled(t *testing.T) {
	c := New(&stubFetcher{err: errors.New("timeout")}, storage.NewSettings(storage.NewMemory()), 500*time.Second)
	defer c.Stop()

	c.Fetch(context.Background())

	assert.False(t, c.Enabled())
	assert.Equal(t, Flags{}, c.Flags())
}

func TestNew_LoadsStoredRecordAndSkipsNetwork(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	settings := storage.NewSettings(store)
	settings.EnableRemote(ctx)
	settings.SaveBaseURL(ctx, "https://api.test/metrics")
	settings.SaveSalt(ctx, "s1")
	settings.SaveDevKey(ctx, "dev-key")
	settings.SaveCampaignURL(ctx, "https://camp.test")

	f := &stubFetcher{values: fullFlagSet()}
	c := New(f, settings, 500*time.Second)
	defer c.Stop()

	c.Fetch(ctx)

	assert.Equal(t, 0, f.calls)
	assert.True(t, c.Enabled())
	assert.Equal(t, "dev-key", c.Flags().DevKey)
}

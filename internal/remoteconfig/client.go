// Package remoteconfig fetches and caches the small remote flag set that
// decides whether the app runs natively or redirects into the web container.
package remoteconfig

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog/log"

	"batterycare/internal/storage"
)

// Remote flag names. Fixed by the backend contract.
const (
	KeyEnabled     = "isBatteryCareEnable"
	KeyBaseURL     = "saitname"
	KeySalt        = "salter"
	KeyDevKey      = "developerKey"
	KeyCampaignURL = "campaignURL"
)

// Flags is the activated remote record. It is only ever fully populated:
// a disabled or partial fetch result never reaches this struct.
type Flags struct {
	Enabled     bool
	BaseURL     string
	Salt        string
	DevKey      string
	CampaignURL string
}

// Client performs at most one fetch+activate per run. A record activated on
// a previous launch is loaded from storage and suppresses fetching entirely;
// otherwise fetch attempts are spaced by the minimum refetch interval.
type Client struct {
	fetcher  Fetcher
	settings *storage.Settings
	recent   *ttlcache.Cache[string, struct{}]

	mu     sync.Mutex
	loaded bool
	flags  Flags
}

const recentFetchKey = "fetch"

func New(fetcher Fetcher, settings *storage.Settings, minInterval time.Duration) *Client {
	c := &Client{
		fetcher:  fetcher,
		settings: settings,
		recent:   ttlcache.New(ttlcache.WithTTL[string, struct{}](minInterval)),
	}
	go c.recent.Start()
	c.loadStored(context.Background())
	return c
}

// loadStored restores a previously activated record, short-circuiting any
// network work for the rest of the process lifetime.
func (c *Client) loadStored(ctx context.Context) {
	enabled, present := c.settings.RemoteStatus(ctx)
	if !present {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flags = Flags{
		Enabled:     enabled,
		BaseURL:     c.settings.SavedBaseURL(ctx),
		Salt:        c.settings.SavedSalt(ctx),
		DevKey:      c.settings.SavedDevKey(ctx),
		CampaignURL: c.settings.SavedCampaignURL(ctx),
	}
	c.loaded = true
}

// Fetch pulls the remote flags and activates them when the whole set is
// meaningful: the boolean on and all four strings non-empty. A disabled or
// partial record is a normal steady state, not an error, and leaves the
// client unchanged. Network failures are logged and swallowed.
func (c *Client) Fetch(ctx context.Context) {
	c.mu.Lock()
	if c.loaded {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if c.recent.Get(recentFetchKey) != nil {
		log.Debug().Msg("remote config fetched recently; skipping")
		return
	}
	c.recent.Set(recentFetchKey, struct{}{}, ttlcache.DefaultTTL)

	values, err := c.fetcher.Fetch(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("remote config fetch failed")
		return
	}
	c.activate(ctx, values)
}

func (c *Client) activate(ctx context.Context, values map[string]string) {
	enabled, _ := strconv.ParseBool(values[KeyEnabled])
	flags := Flags{
		Enabled:     enabled,
		BaseURL:     values[KeyBaseURL],
		Salt:        values[KeySalt],
		DevKey:      values[KeyDevKey],
		CampaignURL: values[KeyCampaignURL],
	}

	if !flags.Enabled || flags.BaseURL == "" || flags.Salt == "" || flags.DevKey == "" || flags.CampaignURL == "" {
		log.Debug().Bool("enabled", flags.Enabled).Msg("remote config not activated")
		return
	}

	c.settings.EnableRemote(ctx)
	c.settings.SaveBaseURL(ctx, flags.BaseURL)
	c.settings.SaveSalt(ctx, flags.Salt)
	c.settings.SaveDevKey(ctx, flags.DevKey)
	c.settings.SaveCampaignURL(ctx, flags.CampaignURL)

	c.mu.Lock()
	c.flags = flags
	c.loaded = true
	c.mu.Unlock()
	log.Info().Msg("remote config activated")
}

// Enabled reports whether an activated, enabled record is in effect.
func (c *Client) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flags.Enabled
}

// Flags returns the current record. Zero value until activated.
func (c *Client) Flags() Flags {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flags
}

// Stop releases the refetch-interval cache janitor.
func (c *Client) Stop() {
	c.recent.Stop()
}

// Package attribution wraps the install-attribution SDK seam: one
// asynchronous event per install, an organic/non-organic classification and
// a flattened parameter map for link building.
package attribution

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"batterycare/internal/device"
	"batterycare/internal/storage"
)

type EventKind int

const (
	ConversionSuccess EventKind = iota
	ConversionFailure
	DeepLink
)

// Event is what the underlying SDK delivers, exactly once per install.
type Event struct {
	Kind EventKind
	Data map[string]any
}

// Source is the SDK seam. Start begins collection and returns the channel
// the single event arrives on.
type Source interface {
	Start(ctx context.Context) <-chan Event
}

// Resolution reports how attribution settled. OK is false for
// conversion-failure events.
type Resolution struct {
	OK bool
}

// Parameter keys read from conversion/deep-link payloads.
var paramKeys = []string{
	"app_name", "tm_id", "cm_id",
	"sub_id_1", "sub_id_2", "sub_id_3", "sub_id_4", "sub_id_5",
	"sub_id_6", "sub_id_7", "sub_id_8", "sub_id_9", "sub_id_10",
	"sub_id_11", "sub_id_12", "sub_id_13", "sub_id_14", "sub_id_15",
}

// Client owns the attribution state. Start is idempotent and only takes
// effect once Configure has provided the dev key.
type Client struct {
	source Source
	adID   device.AdIdentifier
	uid    string

	mu         sync.Mutex
	configured bool
	conversion map[string]string
	deeplink   map[string]string

	startOnce   sync.Once
	resolveOnce sync.Once
	resolved    chan Resolution
}

func NewClient(ctx context.Context, source Source, adID device.AdIdentifier, settings *storage.Settings) *Client {
	return &Client{
		source:   source,
		adID:     adID,
		uid:      settings.InstallUID(ctx),
		resolved: make(chan Resolution, 1),
	}
}

// Configure arms the client with the remote dev key. Collection does not
// begin until Start.
func (c *Client) Configure(devKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.configured {
		return
	}
	c.configured = true
	log.Debug().Str("dev_key", devKey).Msg("attribution configured")
}

// Configured reports whether a dev key has been supplied.
func (c *Client) Configured() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.configured
}

// Start begins event collection exactly once. It must only be invoked after
// the tracking-permission decision has completed.
func (c *Client) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		events := c.source.Start(ctx)
		go c.collect(ctx, events)
	})
}

func (c *Client) collect(ctx context.Context, events <-chan Event) {
	select {
	case <-ctx.Done():
		return
	case ev, ok := <-events:
		if !ok {
			return
		}
		c.handle(ev)
	}
}

func (c *Client) handle(ev Event) {
	data := flatten(ev.Data)

	c.mu.Lock()
	switch ev.Kind {
	case ConversionSuccess:
		c.conversion = data
	case DeepLink:
		c.deeplink = data
	}
	c.mu.Unlock()

	ok := ev.Kind != ConversionFailure
	c.resolveOnce.Do(func() {
		c.resolved <- Resolution{OK: ok}
	})
}

// Resolved yields the one-shot resolution once the SDK has called back.
func (c *Client) Resolved() <-chan Resolution {
	return c.resolved
}

// UID is the stable per-install identifier always injected into the
// parameter map.
func (c *Client) UID() string {
	return c.uid
}

// IsOrganic classifies the install. "Organic" status wins outright; absent
// that, any non-empty, non-"null" media source marks the install paid.
func (c *Client) IsOrganic() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conversion["af_status"] == "Organic" {
		return true
	}
	if src, ok := c.conversion["media_source"]; ok && src != "" && src != "null" {
		return false
	}
	return true
}

// ExtractParameters flattens whatever the SDK delivered into the fixed key
// set, preferring conversion data over deep-link data. Values of "null" or
// empty string are dropped. The install UID is always injected, and the ad
// identifier rides along when tracking is authorized.
func (c *Client) ExtractParameters() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	params := make(map[string]string)
	for _, key := range paramKeys {
		v, ok := c.conversion[key]
		if !ok {
			v, ok = c.deeplink[key]
		}
		if !ok || v == "" || v == "null" {
			continue
		}
		params[key] = v
	}

	params["appsflyer_id"] = c.uid

	if id, ok := c.adID.AdID(); ok {
		params["onesignal_external_id"] = id
	}
	return params
}

// flatten renders every payload value as a string; the SDK's null marker
// becomes the literal "null" so downstream filtering treats both alike.
func flatten(data map[string]any) map[string]string {
	out := make(map[string]string, len(data))
	for k, v := range data {
		s := fmt.Sprint(v)
		if s == "<null>" || v == nil {
			s = "null"
		}
		out[k] = s
	}
	return out
}

// IdleSource never delivers an event; the orchestrator's watchdog covers
// installs with no attribution feed at all.
type IdleSource struct{}

func (IdleSource) Start(context.Context) <-chan Event {
	return make(chan Event)
}

// ChannelSource adapts a plain channel, letting callers inject events.
type ChannelSource struct {
	C chan Event
}

func NewChannelSource() *ChannelSource {
	return &ChannelSource{C: make(chan Event, 1)}
}

func (s *ChannelSource) Start(context.Context) <-chan Event {
	return s.C
}

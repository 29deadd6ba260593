// Package permissions mediates the two user permissions the app depends on:
// push notifications and ad tracking.
package permissions

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

type Status int

const (
	StatusNotDetermined Status = iota
	StatusDenied
	StatusApproved
)

func (s Status) Approved() bool { return s == StatusApproved }

// Prompter is the platform seam that actually shows a prompt to the user.
type Prompter interface {
	PromptNotification(ctx context.Context) (Status, error)
	PromptTracking(ctx context.Context) (Status, error)
}

type decision struct {
	asked  bool
	status Status
}

// Gateway wraps a Prompter with the idempotence the platform guarantees: a
// permission the user has already decided is never prompted again, the prior
// decision is returned instead. Approval side effects fire exactly once.
type Gateway struct {
	prompter Prompter

	mu           sync.Mutex
	notification decision
	tracking     decision

	onTrackingApproved     func()
	onNotificationApproved func(ctx context.Context)
	trackingOnce           sync.Once
	notificationOnce       sync.Once
}

type Option func(*Gateway)

// WithTrackingApproved registers the handler run when tracking is approved.
// Attribution collection is conditioned on tracking consent, so starting the
// attribution client belongs here.
func WithTrackingApproved(fn func()) Option {
	return func(g *Gateway) { g.onTrackingApproved = fn }
}

// WithNotificationApproved registers the handler run when notifications are
// approved, typically push registration.
func WithNotificationApproved(fn func(ctx context.Context)) Option {
	return func(g *Gateway) { g.onNotificationApproved = fn }
}

func NewGateway(prompter Prompter, opts ...Option) *Gateway {
	g := &Gateway{prompter: prompter}
	for _, o := range opts {
		o(g)
	}
	return g
}

// RequestTracking resolves the tracking permission, prompting only while the
// decision is still open.
func (g *Gateway) RequestTracking(ctx context.Context) Status {
	st := g.request(ctx, &g.tracking, g.prompter.PromptTracking, "tracking")
	if st.Approved() && g.onTrackingApproved != nil {
		g.trackingOnce.Do(g.onTrackingApproved)
	}
	return st
}

// RequestNotification resolves the notification permission.
func (g *Gateway) RequestNotification(ctx context.Context) Status {
	st := g.request(ctx, &g.notification, g.prompter.PromptNotification, "notification")
	if st.Approved() && g.onNotificationApproved != nil {
		g.notificationOnce.Do(func() { g.onNotificationApproved(ctx) })
	}
	return st
}

func (g *Gateway) request(ctx context.Context, d *decision, prompt func(context.Context) (Status, error), name string) Status {
	g.mu.Lock()
	if d.asked && d.status != StatusNotDetermined {
		st := d.status
		g.mu.Unlock()
		return st
	}
	g.mu.Unlock()

	st, err := prompt(ctx)
	if err != nil {
		log.Warn().Err(err).Str("permission", name).Msg("permission prompt failed")
		st = StatusNotDetermined
	}

	g.mu.Lock()
	d.asked = true
	d.status = st
	g.mu.Unlock()
	return st
}

// NotificationAsked reports whether the notification flow has completed.
func (g *Gateway) NotificationAsked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.notification.asked
}

// TrackingAsked reports whether the tracking flow has completed.
func (g *Gateway) TrackingAsked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tracking.asked
}

// BothAsked reports whether both permission flows have completed.
func (g *Gateway) BothAsked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.notification.asked && g.tracking.asked
}

// StaticPrompter resolves prompts from fixed outcomes. It stands in for the
// platform permission UI in headless runs and tests.
type StaticPrompter struct {
	Notification Status
	Tracking     Status
}

func (p StaticPrompter) PromptNotification(context.Context) (Status, error) {
	return p.Notification, nil
}

func (p StaticPrompter) PromptTracking(context.Context) (Status, error) {
	return p.Tracking, nil
}

// ParseStatus maps a configured grant ("granted"/"denied") onto a Status.
func ParseStatus(v string) Status {
	switch v {
	case "granted":
		return StatusApproved
	case "denied":
		return StatusDenied
	default:
		return StatusNotDetermined
	}
}

// Package device holds the narrow seams to device-level collaborators: the
// advertising identifier, push registration and the push service identity.
package device

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// AdIdentifier reports the resettable advertising identifier. It is only
// available once the user has authorized tracking.
type AdIdentifier interface {
	AdID() (string, bool)
}

// PushIdentity exposes the push service's external user id, when known.
type PushIdentity interface {
	ExternalID() (string, bool)
}

// PushRegistrar registers the process for push delivery after the user
// grants the notification permission.
type PushRegistrar interface {
	Register(ctx context.Context)
}

// Identifiers is the default AdIdentifier/PushIdentity backed by configured
// values. The ad id stays hidden until AuthorizeTracking is called.
type Identifiers struct {
	adID       string
	externalID string
	authorized atomic.Bool
}

func NewIdentifiers(adID, externalID string) *Identifiers {
	return &Identifiers{adID: adID, externalID: externalID}
}

func (i *Identifiers) AuthorizeTracking() {
	i.authorized.Store(true)
}

func (i *Identifiers) AdID() (string, bool) {
	if !i.authorized.Load() || i.adID == "" {
		return "", false
	}
	return i.adID, true
}

func (i *Identifiers) ExternalID() (string, bool) {
	if i.externalID == "" {
		return "", false
	}
	return i.externalID, true
}

// NoopRegistrar stands in where no push transport is wired.
type NoopRegistrar struct{}

func (NoopRegistrar) Register(context.Context) {
	log.Debug().Msg("push registration requested (noop)")
}

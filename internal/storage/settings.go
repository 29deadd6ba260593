package storage

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Persisted keys. No schema versioning; all scalars.
const (
	keyRemoteStatus = "remoteStatus"
	keyBaseURL      = "baseUrlString"
	keyDestination  = "urlString"
	keySalt         = "salt"
	keyCampaignURL  = "campaignURL"
	keyDevKey       = "devKey"
	keyInstallUID   = "installUID"
)

// Settings wraps the raw store with typed accessors for the fixed key set.
// Reads of absent keys report "unset"; storage errors are logged and treated
// the same way, so callers never see an error from here.
type Settings struct {
	store Store
}

func NewSettings(store Store) *Settings {
	return &Settings{store: store}
}

func (s *Settings) get(ctx context.Context, key string) (string, bool) {
	v, ok, err := s.store.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("settings read failed")
		return "", false
	}
	return v, ok
}

func (s *Settings) set(ctx context.Context, key, value string) {
	if err := s.store.Set(ctx, key, value); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("settings write failed")
	}
}

// RemoteStatus reports the persisted remote-enabled flag and whether a value
// has ever been written.
func (s *Settings) RemoteStatus(ctx context.Context) (enabled, present bool) {
	v, ok := s.get(ctx, keyRemoteStatus)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

func (s *Settings) EnableRemote(ctx context.Context) {
	s.set(ctx, keyRemoteStatus, "true")
}

func (s *Settings) SavedBaseURL(ctx context.Context) string {
	v, _ := s.get(ctx, keyBaseURL)
	return v
}

func (s *Settings) SaveBaseURL(ctx context.Context, u string) {
	s.set(ctx, keyBaseURL, u)
}

func (s *Settings) SavedSalt(ctx context.Context) string {
	v, _ := s.get(ctx, keySalt)
	return v
}

func (s *Settings) SaveSalt(ctx context.Context, salt string) {
	s.set(ctx, keySalt, salt)
}

func (s *Settings) SavedCampaignURL(ctx context.Context) string {
	v, _ := s.get(ctx, keyCampaignURL)
	return v
}

func (s *Settings) SaveCampaignURL(ctx context.Context, u string) {
	s.set(ctx, keyCampaignURL, u)
}

func (s *Settings) SavedDevKey(ctx context.Context) string {
	v, _ := s.get(ctx, keyDevKey)
	return v
}

func (s *Settings) SaveDevKey(ctx context.Context, key string) {
	s.set(ctx, keyDevKey, key)
}

// DestinationURL is the cached redirect target; once written, cold starts
// short-circuit straight to it.
func (s *Settings) DestinationURL(ctx context.Context) string {
	v, _ := s.get(ctx, keyDestination)
	return v
}

func (s *Settings) SaveDestinationURL(ctx context.Context, u string) {
	s.set(ctx, keyDestination, u)
}

// InstallUID returns the stable per-install identifier, minting one on first
// use.
func (s *Settings) InstallUID(ctx context.Context) string {
	if v, ok := s.get(ctx, keyInstallUID); ok && v != "" {
		return v
	}
	uid := uuid.NewString()
	s.set(ctx, keyInstallUID, uid)
	return uid
}

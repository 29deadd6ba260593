package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSettings_RemoteStatus(t *testing.T) {
	ctx := context.Background()
	s := NewSettings(NewMemory())

	enabled, present := s.RemoteStatus(ctx)
	assert.False(t, present)
	assert.False(t, enabled)

	s.EnableRemote(ctx)
	enabled, present = s.RemoteStatus(ctx)
	assert.True(t, present)
	assert.True(t, enabled)
}

func TestSettings_FlagFields(t *testing.T) {
	ctx := context.Background()
	s := NewSettings(NewMemory())

	s.SaveBaseURL(ctx, "https://api.test")
	s.SaveSalt(ctx, "s1")
	s.SaveDevKey(ctx, "dk")
	s.SaveCampaignURL(ctx, "https://camp.test")
	s.SaveDestinationURL(ctx, "https://dest.test/1")

	assert.Equal(t, "https://api.test", s.SavedBaseURL(ctx))
	assert.Equal(t, "s1", s.SavedSalt(ctx))
	assert.Equal(t, "dk", s.SavedDevKey(ctx))
	assert.Equal(t, "https://camp.test", s.SavedCampaignURL(ctx))
	assert.Equal(t, "https://dest.test/1", s.DestinationURL(ctx))
}

func TestSettings_InstallUID(t *testing.T) {
	ctx := context.Background()
	s := NewSettings(NewMemory())

	uid := s.InstallUID(ctx)
	assert.NotEmpty(t, uid)
	assert.Equal(t, uid, s.InstallUID(ctx))
}

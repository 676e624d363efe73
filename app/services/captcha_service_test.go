package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryChallengeStore(t *testing.T) {
	ctx := t.Context()
	store := NewMemoryChallengeStore()

	require.NoError(t, store.Put(ctx, "c1", 90, time.Minute))

	angle, ok, err := store.Take(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 90, angle)

	t.Run("challenge is consumed", func(t *testing.T) {
		_, ok, err := store.Take(ctx, "c1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("expired challenge is rejected", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "c2", 10, time.Millisecond))
		time.Sleep(5 * time.Millisecond)
		_, ok, err := store.Take(ctx, "c2")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestCaptchaVerifyRotate(t *testing.T) {
	ctx := t.Context()
	store := NewMemoryChallengeStore()
	svc, err := NewCaptchaServiceRotate(store, time.Minute, 5, 120)
	require.NoError(t, err)

	// the thumb is shown rotated by the target, so the user turns it back by 360-target
	require.NoError(t, store.Put(ctx, "known", 120, time.Minute))
	assert.True(t, svc.VerifyRotate(ctx, "known", 242.4))
	assert.False(t, svc.VerifyRotate(ctx, "known", 240), "challenge must be single use")

	tests := []struct {
		name  string
		angle float64
		want  bool
	}{
		{"exact", 240, true},
		{"lower edge", 235, true},
		{"upper edge", 245, true},
		{"below padding", 234, false},
		{"above padding", 246, false},
		{"target angle itself", 120, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, store.Put(ctx, tt.name, 120, time.Minute))
			assert.Equal(t, tt.want, svc.VerifyRotate(ctx, tt.name, tt.angle))
		})
	}

	assert.False(t, svc.VerifyRotate(ctx, "missing", 0))
}

func TestCaptchaGenerateRotate(t *testing.T) {
	svc, err := NewCaptchaServiceRotate(nil, time.Minute, 5, 120)
	require.NoError(t, err)

	ch, err := svc.GenerateRotate(t.Context())
	require.NoError(t, err)
	assert.NotEmpty(t, ch.ID)
	assert.NotEmpty(t, ch.MasterImageBase64)
	assert.NotEmpty(t, ch.ThumbImageBase64)
}

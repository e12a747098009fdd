package preferences

import (
	"context"
	"testing"

	"restaurant-ordering/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTheme(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	s := New(kv, "", nil)

	theme, err := s.Theme(ctx)
	require.NoError(t, err)
	assert.Equal(t, ThemeLight, theme)

	require.NoError(t, s.SetTheme(ctx, ThemeDark))
	theme, err = s.Theme(ctx)
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, theme)

	assert.ErrorIs(t, s.SetTheme(ctx, "sepia"), ErrUnknownTheme)

	require.NoError(t, kv.Set(ctx, storage.KeyTheme, "neon"))
	theme, err = s.Theme(ctx)
	require.NoError(t, err)
	assert.Equal(t, ThemeLight, theme)
}

func TestNotifications(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	s := New(kv, "", nil)

	on, err := s.Notifications(ctx)
	require.NoError(t, err)
	assert.True(t, on)

	require.NoError(t, s.SetNotifications(ctx, false))
	on, err = s.Notifications(ctx)
	require.NoError(t, err)
	assert.False(t, on)

	raw, _, _ := kv.Get(ctx, storage.KeyNotifications)
	assert.Equal(t, "false", raw)

	require.NoError(t, kv.Set(ctx, storage.KeyNotifications, "maybe"))
	on, err = s.Notifications(ctx)
	require.NoError(t, err)
	assert.True(t, on)
}

func TestProfile(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	s := New(kv, "s1", nil)

	p, err := s.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, Profile{}, p)

	want := Profile{Name: "Amal", Phone: "+353 1 234 5678", Address: "1 Main St"}
	require.NoError(t, s.SaveProfile(ctx, want))

	p, err = New(kv, "s1", nil).Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, p)

	require.NoError(t, kv.Set(ctx, storage.ScopedKey(storage.KeyProfile, "s1"), "{"))
	p, err = s.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, Profile{}, p)
}

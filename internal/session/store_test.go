package session

import (
	"context"
	"testing"
	"time"

	"github.com/dvloznov/agritool/internal/domain"
	"github.com/dvloznov/agritool/internal/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CreateGetSave(t *testing.T) {
	ctx := context.Background()
	store := NewStore(time.Hour)

	st, err := store.Create(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, st.ID)

	require.NoError(t, st.Login("ravi", "Ravi"))

	unsaved, err := store.Get(ctx, st.ID)
	require.NoError(t, err)
	assert.False(t, unsaved.Authenticated)

	require.NoError(t, store.Save(ctx, st))
	saved, err := store.Get(ctx, st.ID)
	require.NoError(t, err)
	assert.True(t, saved.Authenticated)
	assert.Equal(t, "ravi", saved.Username)
}

func TestStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewStore(0)

	st, err := store.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, st.Login("ravi", "Ravi"))
	st.Record(RoleUser, "first")
	st.CacheProfile(domain.Profile{Location: "Guntur"})
	require.NoError(t, store.Save(ctx, st))

	st.Record(RoleUser, "second")
	st.Profile.Location = "Nellore"
	require.NoError(t, st.Select(tools.Weather))

	got, err := store.Get(ctx, st.ID)
	require.NoError(t, err)
	assert.Len(t, got.History, 1)
	assert.Equal(t, "Guntur", got.Profile.Location)
	assert.Equal(t, tools.Default, got.ActiveTool)
}

func TestStore_GetUnknown(t *testing.T) {
	_, err := NewStore(0).Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := NewStore(0)
	st, err := store.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, st.ID))
	_, err = store.Get(ctx, st.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, store.Delete(ctx, st.ID))
}

func TestStore_SaveRequiresID(t *testing.T) {
	assert.Error(t, NewStore(0).Save(context.Background(), &State{}))
}

func TestStore_ExpiryAndSweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	store := NewStore(30 * time.Minute)
	store.now = func() time.Time { return now }

	old, err := store.Create(ctx)
	require.NoError(t, err)

	now = now.Add(20 * time.Minute)
	fresh, err := store.Create(ctx)
	require.NoError(t, err)

	now = now.Add(15 * time.Minute)
	_, err = store.Get(ctx, old.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Get(ctx, fresh.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, store.Sweep(ctx))
	assert.Equal(t, 1, store.Len())
}

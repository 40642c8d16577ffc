package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/friendsforever/server-go/internal/errors"
	"github.com/friendsforever/server-go/internal/model"
	"github.com/friendsforever/server-go/internal/repository/memory"
)

func TestConversationService_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.conversations.Create(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)
	b, err := f.conversations.Create(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)

	assert.Equal(t, model.StatusActive, a.Status)
	assert.Equal(t, 0, a.ExtensionsCount)
	assert.False(t, a.IsFriendsForever)
	assert.NotEqual(t, a.RoomToken, b.RoomToken)

	_, err = uuid.Parse(a.RoomToken)
	assert.NoError(t, err)

	found, err := f.conversations.GetByRoomToken(ctx, a.RoomToken)
	require.NoError(t, err)
	assert.Equal(t, a.ID, found.ID)

	malformed, err := f.conversations.GetByRoomToken(ctx, "not-a-room")
	require.NoError(t, err)
	assert.Nil(t, malformed)

	assert.Equal(t, f.bob.ID, f.conversations.Partner(a, f.alice.ID))
	assert.Equal(t, f.alice.ID, f.conversations.Partner(a, f.bob.ID))
}

func TestConversationService_CreateFailure(t *testing.T) {
	f := newFixture(t)
	f.store.FailOn("conversations", true)

	_, err := f.conversations.Create(context.Background(), f.alice.ID, f.bob.ID)
	assert.ErrorIs(t, err, memory.ErrFailure)
}

func TestConversationService_Transitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv, err := f.conversations.Create(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)

	t.Run("start timer keeps active", func(t *testing.T) {
		end := time.Now().Add(time.Minute)
		updated, err := f.conversations.StartTimer(ctx, conv.ID, end)
		require.NoError(t, err)
		require.NotNil(t, updated)
		assert.Equal(t, model.StatusActive, updated.Status)
		assert.Equal(t, end, *updated.CurrentTimerEnd)
	})

	t.Run("reactivate needs photo exchange", func(t *testing.T) {
		updated, err := f.conversations.Reactivate(ctx, conv.ID)
		require.NoError(t, err)
		assert.Nil(t, updated)
	})

	t.Run("friends forever needs extension pending", func(t *testing.T) {
		updated, err := f.conversations.MarkFriendsForever(ctx, conv.ID)
		require.NoError(t, err)
		assert.Nil(t, updated)

		_, err = f.conversations.MarkExtensionPending(ctx, conv.ID)
		require.NoError(t, err)
		updated, err = f.conversations.MarkFriendsForever(ctx, conv.ID)
		require.NoError(t, err)
		require.NotNil(t, updated)
		assert.True(t, updated.IsFriendsForever)
		assert.Nil(t, updated.CurrentTimerEnd)
	})

	t.Run("friends forever is still live", func(t *testing.T) {
		live, err := f.conversations.FindLiveForUser(ctx, f.alice.ID)
		require.NoError(t, err)
		require.NotNil(t, live)
		assert.Equal(t, model.StatusFriendsForever, live.Status)
	})

	t.Run("friends forever never restarts a timer", func(t *testing.T) {
		updated, err := f.conversations.StartTimer(ctx, conv.ID, time.Now())
		require.NoError(t, err)
		assert.Nil(t, updated)
	})

	t.Run("close from friends forever", func(t *testing.T) {
		closed, err := f.conversations.Close(ctx, conv.ID)
		require.NoError(t, err)
		require.NotNil(t, closed)

		live, err := f.conversations.FindLiveForUser(ctx, f.alice.ID)
		require.NoError(t, err)
		assert.Nil(t, live)
	})
}

func TestConversationService_FindLiveForUserPrefersNewest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	older, err := f.conversations.Create(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)
	newer, err := f.conversations.Create(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)

	live, err := f.conversations.FindLiveForUser(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, live.ID)

	_, err = f.conversations.Close(ctx, newer.ID)
	require.NoError(t, err)
	live, err = f.conversations.FindLiveForUser(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, older.ID, live.ID)
}

func TestConversationService_GetForParticipant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv, err := f.conversations.Create(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)

	got, err := f.conversations.GetForParticipant(ctx, conv.ID, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)

	_, err = f.conversations.GetForParticipant(ctx, conv.ID, 999)
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))

	_, err = f.conversations.GetForParticipant(ctx, 999, f.bob.ID)
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
}

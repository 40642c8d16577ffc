package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/friendsforever/server-go/internal/model"
	"github.com/friendsforever/server-go/internal/realtime"
	"github.com/friendsforever/server-go/internal/repository/memory"
)

func TestVoteResolver_ResolutionTable(t *testing.T) {
	tests := []struct {
		a, b     model.Vote
		expected model.ExtensionResult
		status   model.ConversationStatus
	}{
		{model.VoteExtend, model.VoteExtend, model.ResultPhotoExchange, model.StatusPhotoExchange},
		{model.VoteExtend, model.VoteLeave, model.ResultClosed, model.StatusClosed},
		{model.VoteExtend, model.VoteFriendsForever, model.ResultPhotoExchange, model.StatusPhotoExchange},
		{model.VoteLeave, model.VoteExtend, model.ResultClosed, model.StatusClosed},
		{model.VoteLeave, model.VoteLeave, model.ResultClosed, model.StatusClosed},
		{model.VoteLeave, model.VoteFriendsForever, model.ResultClosed, model.StatusClosed},
		{model.VoteFriendsForever, model.VoteExtend, model.ResultPhotoExchange, model.StatusPhotoExchange},
		{model.VoteFriendsForever, model.VoteLeave, model.ResultClosed, model.StatusClosed},
		{model.VoteFriendsForever, model.VoteFriendsForever, model.ResultFriendsForever, model.StatusFriendsForever},
	}

	for _, tc := range tests {
		t.Run(string(tc.a)+"+"+string(tc.b), func(t *testing.T) {
			f := newFixture(t)
			conv := f.pendingConversation(t)
			ctx := context.Background()

			result, err := f.votes.SubmitVote(ctx, conv.ID, f.alice.ID, tc.a)
			require.NoError(t, err)
			assert.Empty(t, result)
			assert.Equal(t, []string{realtime.EventVoteReceived}, f.notifier.directTypes(f.alice.ID))

			result, err = f.votes.SubmitVote(ctx, conv.ID, f.bob.ID, tc.b)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, result)

			updated, err := f.conversations.Get(ctx, conv.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.status, updated.Status)

			ev, ok := f.notifier.roomEvent(conv.RoomToken, realtime.EventExtensionResult)
			require.True(t, ok)
			var payload realtime.ExtensionResultPayload
			require.NoError(t, ev.Decode(&payload))
			assert.Equal(t, tc.expected, payload.Result)
			assert.Equal(t, conv.ID, payload.ConversationID)
		})
	}
}

func TestVoteResolver_SideEffects(t *testing.T) {
	ctx := context.Background()

	t.Run("closed clears timer and announces closure", func(t *testing.T) {
		f := newFixture(t)
		conv := f.pendingConversation(t)

		_, err := f.votes.SubmitVote(ctx, conv.ID, f.alice.ID, model.VoteLeave)
		require.NoError(t, err)
		_, err = f.votes.SubmitVote(ctx, conv.ID, f.bob.ID, model.VoteExtend)
		require.NoError(t, err)

		assert.Equal(t, []string{conv.RoomToken}, f.timers.cleared)
		assert.Equal(t, []string{realtime.EventExtensionResult, realtime.EventConversationClosed}, f.notifier.roomTypes(conv.RoomToken))
		assert.Equal(t, 0, f.userPoints(t, f.alice.ID))
	})

	t.Run("friends forever awards both", func(t *testing.T) {
		f := newFixture(t)
		conv := f.pendingConversation(t)

		_, err := f.votes.SubmitVote(ctx, conv.ID, f.alice.ID, model.VoteFriendsForever)
		require.NoError(t, err)
		_, err = f.votes.SubmitVote(ctx, conv.ID, f.bob.ID, model.VoteFriendsForever)
		require.NoError(t, err)

		updated, err := f.conversations.Get(ctx, conv.ID)
		require.NoError(t, err)
		assert.True(t, updated.IsFriendsForever)
		assert.Equal(t, f.rules.FriendsForeverPoints, f.userPoints(t, f.alice.ID))
		assert.Equal(t, f.rules.FriendsForeverPoints, f.userPoints(t, f.bob.ID))
		assert.Equal(t, []string{conv.RoomToken}, f.timers.cleared)
		assert.Contains(t, f.notifier.roomTypes(conv.RoomToken), realtime.EventFriendsForeverConfirmed)
	})

	t.Run("extend awards both and opens photo exchange", func(t *testing.T) {
		f := newFixture(t)
		conv := f.pendingConversation(t)

		_, err := f.votes.SubmitVote(ctx, conv.ID, f.alice.ID, model.VoteExtend)
		require.NoError(t, err)
		_, err = f.votes.SubmitVote(ctx, conv.ID, f.bob.ID, model.VoteExtend)
		require.NoError(t, err)

		updated, err := f.conversations.Get(ctx, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, updated.ExtensionsCount)
		assert.Equal(t, f.rules.ExtensionPoints, f.userPoints(t, f.alice.ID))
		assert.Equal(t, f.rules.ExtensionPoints, f.userPoints(t, f.bob.ID))
		assert.Equal(t, []string{realtime.EventExtensionResult, realtime.EventPhotoExchangeStart}, f.notifier.roomTypes(conv.RoomToken))
		assert.Empty(t, f.timers.cleared)
	})
}

func TestVoteResolver_IgnoredVotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	active, err := f.conversations.Create(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)

	_, err = f.votes.SubmitVote(ctx, active.ID, f.alice.ID, model.VoteExtend)
	assert.ErrorIs(t, err, ErrIgnored, "not extension pending")

	conv := f.pendingConversation(t)
	_, err = f.votes.SubmitVote(ctx, conv.ID, 9999, model.VoteLeave)
	assert.ErrorIs(t, err, ErrIgnored, "non participant")

	_, err = f.votes.SubmitVote(ctx, conv.ID, f.alice.ID, model.Vote("maybe"))
	assert.ErrorIs(t, err, ErrIgnored, "invalid vote")

	_, err = f.votes.SubmitVote(ctx, 424242, f.alice.ID, model.VoteExtend)
	assert.ErrorIs(t, err, ErrIgnored, "missing conversation")

	votes, err := f.store.Votes.FindByRound(ctx, conv.ID, 1)
	require.NoError(t, err)
	assert.Empty(t, votes)
}

func TestVoteResolver_DoubleSubmitWaits(t *testing.T) {
	f := newFixture(t)
	conv := f.pendingConversation(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := f.votes.SubmitVote(ctx, conv.ID, f.alice.ID, model.VoteExtend)
		require.NoError(t, err)
		assert.Empty(t, result)
	}

	// The latest of alice's votes counts.
	_, err := f.votes.SubmitVote(ctx, conv.ID, f.alice.ID, model.VoteLeave)
	require.NoError(t, err)
	result, err := f.votes.SubmitVote(ctx, conv.ID, f.bob.ID, model.VoteExtend)
	require.NoError(t, err)
	assert.Equal(t, model.ResultClosed, result)
}

func TestVoteResolver_RoundIsolation(t *testing.T) {
	f := newFixture(t)
	conv := f.pendingConversation(t)
	ctx := context.Background()

	// Alice votes leave in round 1.
	_, err := f.votes.SubmitVote(ctx, conv.ID, f.alice.ID, model.VoteLeave)
	require.NoError(t, err)

	// The count moves on before bob votes, so bob's vote belongs to round 2.
	f.store.SetExtensionsCount(conv.ID, 1)
	result, err := f.votes.SubmitVote(ctx, conv.ID, f.bob.ID, model.VoteExtend)
	require.NoError(t, err)
	assert.Empty(t, result, "round 1 vote must not resolve round 2")

	result, err = f.votes.SubmitVote(ctx, conv.ID, f.alice.ID, model.VoteExtend)
	require.NoError(t, err)
	assert.Equal(t, model.ResultPhotoExchange, result)

	round1, err := f.store.Votes.FindByRound(ctx, conv.ID, 1)
	require.NoError(t, err)
	require.Len(t, round1, 1)
	assert.Equal(t, model.VoteLeave, round1[0].Vote)
}

func TestVoteResolver_StreakBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv, err := f.conversations.Create(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)

	var awards []int
	for round := 1; round <= f.rules.StreakThreshold+1; round++ {
		f.store.SetStatus(conv.ID, model.StatusExtensionPending)
		before := f.userPoints(t, f.alice.ID)

		_, err := f.votes.SubmitVote(ctx, conv.ID, f.alice.ID, model.VoteExtend)
		require.NoError(t, err)
		result, err := f.votes.SubmitVote(ctx, conv.ID, f.bob.ID, model.VoteExtend)
		require.NoError(t, err)
		require.Equal(t, model.ResultPhotoExchange, result)

		awards = append(awards, f.userPoints(t, f.alice.ID)-before)
	}

	base := f.rules.ExtensionPoints
	bonus := base + f.rules.StreakBonusPoints
	assert.Equal(t, []int{base, base, bonus, bonus}, awards)

	entries := f.store.PointsFor(f.alice.ID)
	require.Len(t, entries, 4)
	assert.Equal(t, "extended conversation", entries[1].Description)
	assert.Equal(t, "extended conversation (streak of 3)", entries[2].Description)
}

func TestVoteResolver_StoreFailure(t *testing.T) {
	f := newFixture(t)
	conv := f.pendingConversation(t)
	ctx := context.Background()

	f.store.FailOn("extension_votes", true)
	_, err := f.votes.SubmitVote(ctx, conv.ID, f.alice.ID, model.VoteExtend)
	assert.ErrorIs(t, err, memory.ErrFailure)
	assert.Empty(t, f.notifier.directTypes(f.alice.ID), "no ack for a failed write")

	f.store.FailOn("extension_votes", false)
	_, err = f.votes.SubmitVote(ctx, conv.ID, f.alice.ID, model.VoteExtend)
	require.NoError(t, err)
	result, err := f.votes.SubmitVote(ctx, conv.ID, f.bob.ID, model.VoteExtend)
	require.NoError(t, err)
	assert.Equal(t, model.ResultPhotoExchange, result)
}

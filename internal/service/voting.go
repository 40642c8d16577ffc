package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/friendsforever/server-go/internal/audit"
	"github.com/friendsforever/server-go/internal/model"
	"github.com/friendsforever/server-go/internal/realtime"
	"github.com/friendsforever/server-go/internal/repository"
)

// RoundResetter forgets the transient photo and rating state of a conversation.
type RoundResetter interface {
	ResetRound(conversationID int64)
}

// VoteResolver collects the two votes of an extension round and applies
// exactly one outcome.
type VoteResolver struct {
	conversations *ConversationService
	votes         repository.VoteRepository
	points        PointsAwarder
	notifier      Notifier
	timers        RoomTimers
	photos        RoundResetter
	rules         Rules
}

func NewVoteResolver(
	conversations *ConversationService,
	votes repository.VoteRepository,
	points PointsAwarder,
	notifier Notifier,
	timers RoomTimers,
	photos RoundResetter,
	rules Rules,
) *VoteResolver {
	return &VoteResolver{
		conversations: conversations,
		votes:         votes,
		points:        points,
		notifier:      notifier,
		timers:        timers,
		photos:        photos,
		rules:         rules,
	}
}

// SubmitVote records the vote for the current round and resolves the round
// once both participants have voted. It returns the outcome, or "" while
// the round is still waiting.
func (r *VoteResolver) SubmitVote(ctx context.Context, conversationID, userID int64, vote model.Vote) (model.ExtensionResult, error) {
	if !vote.Valid() {
		return "", ErrIgnored
	}

	conv, err := r.conversations.Get(ctx, conversationID)
	if err != nil {
		return "", fmt.Errorf("load conversation: %w", err)
	}
	if conv == nil || !conv.HasParticipant(userID) || conv.Status != model.StatusExtensionPending {
		return "", ErrIgnored
	}

	round := conv.CurrentRound()
	if _, err := r.votes.Create(ctx, conversationID, userID, round, vote); err != nil {
		return "", fmt.Errorf("record vote: %w", err)
	}

	rows, err := r.votes.FindByRound(ctx, conversationID, round)
	if err != nil {
		return "", fmt.Errorf("load round votes: %w", err)
	}

	// Latest vote per user wins.
	latest := make(map[int64]model.Vote, 2)
	for _, row := range rows {
		if conv.HasParticipant(row.UserID) {
			latest[row.UserID] = row.Vote
		}
	}

	voteA, okA := latest[conv.ParticipantA]
	voteB, okB := latest[conv.ParticipantB]
	if !okA || !okB {
		r.notifier.SendToUser(userID, realtime.NewEvent(realtime.EventVoteReceived, realtime.WaitingPayload{Waiting: true}))
		log.Debug().
			Int64("conversationId", conversationID).
			Int("round", round).
			Int64("userId", userID).
			Msg("vote recorded, waiting for partner")
		return "", nil
	}

	result := model.ResolveVotes(voteA, voteB)
	log.Info().
		Int64("conversationId", conversationID).
		Int("round", round).
		Str("voteA", string(voteA)).
		Str("voteB", string(voteB)).
		Str("result", string(result)).
		Msg("extension round resolved")

	switch result {
	case model.ResultClosed:
		err = r.close(ctx, conv)
	case model.ResultFriendsForever:
		err = r.friendsForever(ctx, conv)
	default:
		err = r.extend(ctx, conv)
	}
	if err != nil {
		return "", err
	}
	return result, nil
}

func (r *VoteResolver) close(ctx context.Context, conv *model.Conversation) error {
	closed, err := r.conversations.Close(ctx, conv.ID)
	if err != nil {
		return err
	}
	if closed == nil {
		return ErrIgnored
	}
	r.timers.Clear(conv.RoomToken)
	r.photos.ResetRound(conv.ID)

	r.broadcastResult(conv, model.ResultClosed)
	r.notifier.Broadcast(conv.RoomToken, realtime.NewEvent(realtime.EventConversationClosed, realtime.ConversationClosedPayload{
		ConversationID: conv.ID,
		Reason:         realtime.ReasonVotedLeave,
	}))

	audit.Log(ctx, audit.Event{
		Type:           audit.EventConversationClosed,
		ConversationID: conv.ID,
		Details:        map[string]interface{}{"reason": realtime.ReasonVotedLeave},
	})
	return nil
}

func (r *VoteResolver) friendsForever(ctx context.Context, conv *model.Conversation) error {
	updated, err := r.conversations.MarkFriendsForever(ctx, conv.ID)
	if err != nil {
		return err
	}
	if updated == nil {
		return ErrIgnored
	}
	r.timers.Clear(conv.RoomToken)
	r.photos.ResetRound(conv.ID)

	for _, userID := range []int64{conv.ParticipantA, conv.ParticipantB} {
		r.points.Award(ctx, userID, conv.ID, model.PointsEventFriendsForever, r.rules.FriendsForeverPoints,
			"became friends forever")
	}

	r.broadcastResult(conv, model.ResultFriendsForever)
	r.notifier.Broadcast(conv.RoomToken, realtime.NewEvent(realtime.EventFriendsForeverConfirmed,
		realtime.ConversationPayload{ConversationID: conv.ID}))

	audit.Log(ctx, audit.Event{Type: audit.EventFriendsForever, ConversationID: conv.ID})
	return nil
}

func (r *VoteResolver) extend(ctx context.Context, conv *model.Conversation) error {
	updated, err := r.conversations.Extend(ctx, conv.ID)
	if err != nil {
		return err
	}
	if updated == nil {
		return ErrIgnored
	}

	amount, description := r.extensionAward(updated.ExtensionsCount)
	for _, userID := range []int64{conv.ParticipantA, conv.ParticipantB} {
		r.points.Award(ctx, userID, conv.ID, model.PointsEventExtension, amount, description)
	}

	r.photos.ResetRound(conv.ID)

	r.broadcastResult(conv, model.ResultPhotoExchange)
	r.notifier.Broadcast(conv.RoomToken, realtime.NewEvent(realtime.EventPhotoExchangeStart,
		realtime.ConversationPayload{ConversationID: conv.ID}))
	return nil
}

// extensionAward returns the per-user award once the conversation has been
// extended extensionsCount times.
func (r *VoteResolver) extensionAward(extensionsCount int) (int, string) {
	if extensionsCount >= r.rules.StreakThreshold {
		return r.rules.ExtensionPoints + r.rules.StreakBonusPoints,
			fmt.Sprintf("extended conversation (streak of %d)", extensionsCount)
	}
	return r.rules.ExtensionPoints, "extended conversation"
}

func (r *VoteResolver) broadcastResult(conv *model.Conversation, result model.ExtensionResult) {
	r.notifier.Broadcast(conv.RoomToken, realtime.NewEvent(realtime.EventExtensionResult, realtime.ExtensionResultPayload{
		ConversationID: conv.ID,
		Result:         result,
	}))
}

package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/friendsforever/server-go/internal/model"
	"github.com/friendsforever/server-go/internal/realtime"
	"github.com/friendsforever/server-go/internal/repository"
)

// PhotoCoordinator runs the photo reveal and rating half of a round.
// Pending sets are created lazily, so a restart mid-round starts empty.
type PhotoCoordinator struct {
	conversations *ConversationService
	photos        repository.PhotoRepository
	ratings       repository.RatingRepository
	points        PointsAwarder
	notifier      Notifier
	timers        RoomTimers
	rules         Rules

	pendingPhotos  map[int64]map[int64]struct{}
	pendingRatings map[int64]map[int64]int
	mu             sync.Mutex
}

func NewPhotoCoordinator(
	conversations *ConversationService,
	photos repository.PhotoRepository,
	ratings repository.RatingRepository,
	points PointsAwarder,
	notifier Notifier,
	timers RoomTimers,
	rules Rules,
) *PhotoCoordinator {
	return &PhotoCoordinator{
		conversations:  conversations,
		photos:         photos,
		ratings:        ratings,
		points:         points,
		notifier:       notifier,
		timers:         timers,
		rules:          rules,
		pendingPhotos:  make(map[int64]map[int64]struct{}),
		pendingRatings: make(map[int64]map[int64]int),
	}
}

// SubmitPhoto stores the photo and reveals both once the partner has
// submitted too. It reports whether a reveal was sent.
func (p *PhotoCoordinator) SubmitPhoto(ctx context.Context, conversationID, userID int64, photoRef string) (bool, error) {
	photoRef = strings.TrimSpace(photoRef)
	if photoRef == "" {
		return false, ErrIgnored
	}

	conv, err := p.load(ctx, conversationID, userID)
	if err != nil {
		return false, err
	}

	if _, err := p.photos.Create(ctx, conversationID, userID, photoRef); err != nil {
		return false, fmt.Errorf("record photo: %w", err)
	}

	p.mu.Lock()
	set := p.pendingPhotos[conversationID]
	if set == nil {
		set = make(map[int64]struct{}, 2)
		p.pendingPhotos[conversationID] = set
	}
	set[userID] = struct{}{}
	_, hasA := set[conv.ParticipantA]
	_, hasB := set[conv.ParticipantB]
	p.mu.Unlock()

	if !hasA || !hasB {
		p.notifier.SendToUser(userID, realtime.NewEvent(realtime.EventPhotoReceived, realtime.WaitingPayload{Waiting: true}))
		return false, nil
	}

	latest, err := p.photos.FindLatestPerUser(ctx, conversationID)
	if err != nil {
		return false, fmt.Errorf("load latest photos: %w", err)
	}

	// One photo per participant, even when one side resubmitted.
	revealed := make([]realtime.RevealedPhoto, 0, 2)
	for _, photo := range latest {
		if conv.HasParticipant(photo.UserID) {
			revealed = append(revealed, realtime.RevealedPhoto{UserID: photo.UserID, PhotoRef: photo.PhotoRef})
		}
	}
	p.notifier.Broadcast(conv.RoomToken, realtime.NewEvent(realtime.EventPhotoExchangeReveal, realtime.PhotoRevealPayload{
		ConversationID: conversationID,
		Photos:         revealed,
	}))

	log.Info().Int64("conversationId", conversationID).Msg("photos revealed")
	return true, nil
}

// SubmitRating credits the rated partner. When both participants have rated,
// the conversation returns to ACTIVE under a fresh timer; the return value
// reports that.
func (p *PhotoCoordinator) SubmitRating(ctx context.Context, conversationID, userID int64, score int) (bool, error) {
	if score < model.MinRatingScore || score > model.MaxRatingScore {
		return false, ErrIgnored
	}

	if p.ratingsComplete(conversationID) {
		return p.retryRound(ctx, conversationID, userID)
	}

	conv, err := p.load(ctx, conversationID, userID)
	if err != nil {
		return false, err
	}

	p.mu.Lock()
	_, already := p.pendingRatings[conversationID][userID]
	p.mu.Unlock()
	if already {
		return false, ErrIgnored
	}

	ratedUserID := conv.Partner(userID)
	if _, err := p.ratings.Create(ctx, model.CreateRatingParams{
		ConversationID: conversationID,
		RaterID:        userID,
		RatedUserID:    ratedUserID,
		Score:          score,
	}); err != nil {
		return false, fmt.Errorf("record rating: %w", err)
	}

	p.points.Award(ctx, ratedUserID, conversationID, model.PointsEventRating, score*p.rules.RatingPointsPerStar,
		fmt.Sprintf("rated %d stars", score))

	p.notifier.SendToUser(ratedUserID, realtime.NewEvent(realtime.EventRatingReceived, realtime.RatingReceivedPayload{
		ConversationID: conversationID,
		Score:          score,
		RaterID:        userID,
	}))

	p.mu.Lock()
	scores := p.pendingRatings[conversationID]
	if scores == nil {
		scores = make(map[int64]int, 2)
		p.pendingRatings[conversationID] = scores
	}
	scores[userID] = score
	_, hasA := scores[conv.ParticipantA]
	_, hasB := scores[conv.ParticipantB]
	p.mu.Unlock()

	if !hasA || !hasB {
		return false, nil
	}

	return p.completeRound(ctx, conv)
}

// completeRound reactivates the conversation and restarts its countdown.
// Pending state is dropped only after the timer runs, so a failed restart
// leaves the round complete for the next rate-photo event to retry.
func (p *PhotoCoordinator) completeRound(ctx context.Context, conv *model.Conversation) (bool, error) {
	if conv.Status == model.StatusPhotoExchange {
		reactivated, err := p.conversations.Reactivate(ctx, conv.ID)
		if err != nil {
			return false, err
		}
		if reactivated == nil {
			p.ResetRound(conv.ID)
			return false, ErrIgnored
		}
	}

	if err := p.timers.StartRound(ctx, conv.RoomToken, conv.ID); err != nil {
		log.Error().Err(err).
			Int64("conversationId", conv.ID).
			Msg("rating round complete but room timer did not start, waiting for the next rating to retry")
		return false, fmt.Errorf("restart room timer: %w", err)
	}
	p.ResetRound(conv.ID)

	log.Info().Int64("conversationId", conv.ID).Msg("rating round complete, conversation reactivated")
	return true, nil
}

func (p *PhotoCoordinator) retryRound(ctx context.Context, conversationID, userID int64) (bool, error) {
	conv, err := p.conversations.Get(ctx, conversationID)
	if err != nil {
		return false, fmt.Errorf("load conversation: %w", err)
	}
	if conv == nil || !conv.HasParticipant(userID) {
		return false, ErrIgnored
	}
	if conv.Status != model.StatusPhotoExchange && conv.Status != model.StatusActive {
		p.ResetRound(conversationID)
		return false, ErrIgnored
	}
	return p.completeRound(ctx, conv)
}

func (p *PhotoCoordinator) ratingsComplete(conversationID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pendingRatings[conversationID]) == 2
}

func (p *PhotoCoordinator) ResetRound(conversationID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.pendingPhotos, conversationID)
	delete(p.pendingRatings, conversationID)
}

// Pending reports how many photos and ratings the current round holds.
func (p *PhotoCoordinator) Pending(conversationID int64) (photos, ratings int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pendingPhotos[conversationID]), len(p.pendingRatings[conversationID])
}

func (p *PhotoCoordinator) load(ctx context.Context, conversationID, userID int64) (*model.Conversation, error) {
	conv, err := p.conversations.Get(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	if conv == nil || !conv.HasParticipant(userID) || conv.Status != model.StatusPhotoExchange {
		return nil, ErrIgnored
	}
	return conv, nil
}

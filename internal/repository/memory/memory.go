// Package memory implements the repository interfaces on process memory.
// Tests across the module use it in place of Postgres.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/friendsforever/server-go/internal/model"
	"github.com/friendsforever/server-go/internal/repository"
)

var ErrFailure = errors.New("memory: injected failure")

// Store holds every table. Each exported field implements one repository.
type Store struct {
	mu     sync.Mutex
	nextID int64
	now    func() time.Time

	users         map[int64]*model.User
	sessions      map[string]*model.AuthSession
	conversations map[int64]*model.Conversation
	messages      []model.Message
	votes         []model.ExtensionVote
	photos        []model.PhotoSubmission
	ratings       []model.Rating
	points        []model.PointsLogEntry

	failing map[string]bool

	Users         repository.UserRepository
	AuthSessions  repository.AuthSessionRepository
	Conversations repository.ConversationRepository
	Messages      repository.MessageRepository
	Votes         repository.VoteRepository
	Photos        repository.PhotoRepository
	Ratings       repository.RatingRepository
	Points        repository.PointsRepository
}

func New() *Store {
	s := &Store{
		now:           time.Now,
		users:         make(map[int64]*model.User),
		sessions:      make(map[string]*model.AuthSession),
		conversations: make(map[int64]*model.Conversation),
		failing:       make(map[string]bool),
	}
	s.Users = &users{s}
	s.AuthSessions = &authSessions{s}
	s.Conversations = &conversations{s}
	s.Messages = &messages{s}
	s.Votes = &votes{s}
	s.Photos = &photos{s}
	s.Ratings = &ratings{s}
	s.Points = &points{s}
	return s
}

// FailOn makes every write to table return ErrFailure until cleared.
func (s *Store) FailOn(table string, fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[table] = fail
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) check(table string) error {
	if s.failing[table] {
		return ErrFailure
	}
	return nil
}

// SetStatus overwrites a conversation's status, bypassing transition guards.
func (s *Store) SetStatus(id int64, status model.ConversationStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.conversations[id]; ok {
		c.Status = status
	}
}

// SetExtensionsCount overwrites the extension counter.
func (s *Store) SetExtensionsCount(id int64, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.conversations[id]; ok {
		c.ExtensionsCount = n
	}
}

func (s *Store) MessagesFor(conversationID int64) []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Message
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out
}

func (s *Store) PointsFor(userID int64) []model.PointsLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.PointsLogEntry
	for _, p := range s.points {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out
}

func (s *Store) RatingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ratings)
}

type users struct{ s *Store }

func (r *users) WithTx(*sqlx.Tx) repository.UserRepository { return r }

func (r *users) FindByID(_ context.Context, id int64) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *users) Create(_ context.Context, params model.CreateUserParams) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check("users"); err != nil {
		return nil, err
	}
	u := &model.User{
		ID:          r.s.id(),
		DisplayName: params.DisplayName,
		PhotoRef:    params.PhotoRef,
		CreatedAt:   r.s.now(),
	}
	r.s.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (r *users) AddPoints(_ context.Context, id int64, delta int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[id]; ok {
		u.Points += delta
	}
	return nil
}

type authSessions struct{ s *Store }

func (r *authSessions) FindValidByTokenHash(_ context.Context, tokenHash string) (*model.AuthSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[tokenHash]
	if !ok || !sess.ExpiresAt.After(r.s.now()) {
		return nil, nil
	}
	cp := *sess
	return &cp, nil
}

func (r *authSessions) Create(_ context.Context, userID int64, tokenHash string, expiresAt time.Time) (*model.AuthSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess := &model.AuthSession{
		ID:        r.s.id(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: r.s.now(),
	}
	r.s.sessions[tokenHash] = sess
	cp := *sess
	return &cp, nil
}

func (r *authSessions) DeleteExpired(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for hash, sess := range r.s.sessions {
		if !sess.ExpiresAt.After(r.s.now()) {
			delete(r.s.sessions, hash)
			n++
		}
	}
	return n, nil
}

type conversations struct{ s *Store }

func (r *conversations) FindByID(_ context.Context, id int64) (*model.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.conversations[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *conversations) FindByRoomToken(_ context.Context, roomToken string) (*model.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.conversations {
		if c.RoomToken == roomToken {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *conversations) FindLiveForUser(_ context.Context, userID int64) (*model.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var best *model.Conversation
	for _, c := range r.s.conversations {
		if !c.HasParticipant(userID) || !c.Status.IsLive() {
			continue
		}
		if best == nil || c.ID > best.ID {
			best = c
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (r *conversations) Create(_ context.Context, params model.CreateConversationParams) (*model.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check("conversations"); err != nil {
		return nil, err
	}
	now := r.s.now()
	c := &model.Conversation{
		ID:           r.s.id(),
		RoomToken:    params.RoomToken,
		ParticipantA: params.ParticipantA,
		ParticipantB: params.ParticipantB,
		Status:       model.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.s.conversations[c.ID] = c
	cp := *c
	return &cp, nil
}

func (r *conversations) transition(id int64, from []model.ConversationStatus, apply func(c *model.Conversation)) (*model.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check("conversations"); err != nil {
		return nil, err
	}
	c, ok := r.s.conversations[id]
	if !ok {
		return nil, nil
	}
	matched := false
	for _, s := range from {
		if c.Status == s {
			matched = true
			break
		}
	}
	if !matched {
		return nil, nil
	}
	apply(c)
	c.UpdatedAt = r.s.now()
	cp := *c
	return &cp, nil
}

func (r *conversations) StartTimer(_ context.Context, id int64, endsAt time.Time) (*model.Conversation, error) {
	return r.transition(id, []model.ConversationStatus{model.StatusActive, model.StatusPhotoExchange}, func(c *model.Conversation) {
		c.Status = model.StatusActive
		end := endsAt
		c.CurrentTimerEnd = &end
	})
}

func (r *conversations) MarkExtensionPending(_ context.Context, id int64) (*model.Conversation, error) {
	return r.transition(id, []model.ConversationStatus{model.StatusActive}, func(c *model.Conversation) {
		c.Status = model.StatusExtensionPending
	})
}

func (r *conversations) Extend(_ context.Context, id int64) (*model.Conversation, error) {
	return r.transition(id, []model.ConversationStatus{model.StatusExtensionPending}, func(c *model.Conversation) {
		c.Status = model.StatusPhotoExchange
		c.ExtensionsCount++
		c.CurrentTimerEnd = nil
	})
}

func (r *conversations) MarkFriendsForever(_ context.Context, id int64) (*model.Conversation, error) {
	return r.transition(id, []model.ConversationStatus{model.StatusExtensionPending}, func(c *model.Conversation) {
		c.Status = model.StatusFriendsForever
		c.IsFriendsForever = true
		c.CurrentTimerEnd = nil
	})
}

func (r *conversations) Reactivate(_ context.Context, id int64) (*model.Conversation, error) {
	return r.transition(id, []model.ConversationStatus{model.StatusPhotoExchange}, func(c *model.Conversation) {
		c.Status = model.StatusActive
	})
}

func (r *conversations) Close(_ context.Context, id int64) (*model.Conversation, error) {
	return r.transition(id, model.LiveStatuses, func(c *model.Conversation) {
		c.Status = model.StatusClosed
		c.CurrentTimerEnd = nil
	})
}

type messages struct{ s *Store }

func (r *messages) Create(_ context.Context, params model.CreateMessageParams) (*model.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check("messages"); err != nil {
		return nil, err
	}
	m := model.Message{
		ID:                   r.s.id(),
		ConversationID:       params.ConversationID,
		SenderID:             params.SenderID,
		Type:                 params.Type,
		Content:              params.Content,
		VoiceRef:             params.VoiceRef,
		VoiceDurationSeconds: params.VoiceDurationSeconds,
		CreatedAt:            r.s.now(),
	}
	r.s.messages = append(r.s.messages, m)
	return &m, nil
}

func (r *messages) FindByConversation(_ context.Context, conversationID int64, limit, offset int) ([]model.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []model.Message
	for _, m := range r.s.messages {
		if m.ConversationID == conversationID {
			all = append(all, m)
		}
	}
	return page(all, limit, offset), nil
}

func (r *messages) CountByConversation(_ context.Context, conversationID int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, m := range r.s.messages {
		if m.ConversationID == conversationID {
			n++
		}
	}
	return n, nil
}

type votes struct{ s *Store }

func (r *votes) Create(_ context.Context, conversationID, userID int64, round int, vote model.Vote) (*model.ExtensionVote, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check("extension_votes"); err != nil {
		return nil, err
	}
	v := model.ExtensionVote{
		ID:             r.s.id(),
		ConversationID: conversationID,
		UserID:         userID,
		Round:          round,
		Vote:           vote,
		CreatedAt:      r.s.now(),
	}
	r.s.votes = append(r.s.votes, v)
	return &v, nil
}

func (r *votes) FindByRound(_ context.Context, conversationID int64, round int) ([]model.ExtensionVote, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.ExtensionVote
	for _, v := range r.s.votes {
		if v.ConversationID == conversationID && v.Round == round {
			out = append(out, v)
		}
	}
	return out, nil
}

type photos struct{ s *Store }

func (r *photos) Create(_ context.Context, conversationID, userID int64, photoRef string) (*model.PhotoSubmission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check("photo_exchange_submissions"); err != nil {
		return nil, err
	}
	p := model.PhotoSubmission{
		ID:             r.s.id(),
		ConversationID: conversationID,
		UserID:         userID,
		PhotoRef:       photoRef,
		CreatedAt:      r.s.now(),
	}
	r.s.photos = append(r.s.photos, p)
	return &p, nil
}

func (r *photos) FindLatestPerUser(_ context.Context, conversationID int64) ([]model.PhotoSubmission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	latest := make(map[int64]model.PhotoSubmission)
	for _, p := range r.s.photos {
		if p.ConversationID != conversationID {
			continue
		}
		if cur, ok := latest[p.UserID]; !ok || p.ID > cur.ID {
			latest[p.UserID] = p
		}
	}
	out := make([]model.PhotoSubmission, 0, len(latest))
	for _, p := range latest {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

type ratings struct{ s *Store }

func (r *ratings) Create(_ context.Context, params model.CreateRatingParams) (*model.Rating, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check("ratings"); err != nil {
		return nil, err
	}
	rating := model.Rating{
		ID:             r.s.id(),
		ConversationID: params.ConversationID,
		RaterID:        params.RaterID,
		RatedUserID:    params.RatedUserID,
		Score:          params.Score,
		CreatedAt:      r.s.now(),
	}
	r.s.ratings = append(r.s.ratings, rating)
	return &rating, nil
}

type points struct{ s *Store }

func (r *points) Award(_ context.Context, params model.AwardPointsParams) (*model.PointsLogEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check("points_log"); err != nil {
		return nil, err
	}
	entry := model.PointsLogEntry{
		ID:             r.s.id(),
		UserID:         params.UserID,
		ConversationID: params.ConversationID,
		EventKind:      params.EventKind,
		Points:         params.Points,
		Description:    params.Description,
		CreatedAt:      r.s.now(),
	}
	r.s.points = append(r.s.points, entry)
	if u, ok := r.s.users[params.UserID]; ok {
		u.Points += params.Points
	}
	return &entry, nil
}

func (r *points) FindByUser(_ context.Context, userID int64, limit int) ([]model.PointsLogEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.PointsLogEntry
	for i := len(r.s.points) - 1; i >= 0 && len(out) < limit; i-- {
		if r.s.points[i].UserID == userID {
			out = append(out, r.s.points[i])
		}
	}
	return out, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/friendsforever/server-go/internal/database"
	"github.com/friendsforever/server-go/internal/model"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := database.Connect(url)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { db.Close() })
	return db
}

func createPair(t *testing.T, db *database.DB) (*model.User, *model.User, *model.Conversation) {
	t.Helper()
	ctx := context.Background()
	users := NewUserRepository(db.DB)

	a, err := users.Create(ctx, model.CreateUserParams{DisplayName: "alice"})
	require.NoError(t, err)
	b, err := users.Create(ctx, model.CreateUserParams{DisplayName: "bob"})
	require.NoError(t, err)

	conv, err := NewConversationRepository(db.DB).Create(ctx, model.CreateConversationParams{
		RoomToken:    uuid.NewString(),
		ParticipantA: a.ID,
		ParticipantB: b.ID,
	})
	require.NoError(t, err)
	return a, b, conv
}

func TestConversationRepository_Lifecycle(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConversationRepository(db.DB)
	ctx := context.Background()

	a, b, conv := createPair(t, db)
	assert.Equal(t, model.StatusActive, conv.Status)
	assert.Equal(t, 0, conv.ExtensionsCount)

	t.Run("finds by room token", func(t *testing.T) {
		found, err := repo.FindByRoomToken(ctx, conv.RoomToken)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, conv.ID, found.ID)
	})

	t.Run("start timer persists end", func(t *testing.T) {
		end := time.Now().Add(3 * time.Minute)
		updated, err := repo.StartTimer(ctx, conv.ID, end)
		require.NoError(t, err)
		require.NotNil(t, updated.CurrentTimerEnd)
		assert.WithinDuration(t, end, *updated.CurrentTimerEnd, time.Second)
	})

	t.Run("extend requires extension_pending", func(t *testing.T) {
		updated, err := repo.Extend(ctx, conv.ID)
		require.NoError(t, err)
		assert.Nil(t, updated)
	})

	t.Run("expire then extend", func(t *testing.T) {
		pending, err := repo.MarkExtensionPending(ctx, conv.ID)
		require.NoError(t, err)
		require.NotNil(t, pending)
		assert.Equal(t, model.StatusExtensionPending, pending.Status)

		extended, err := repo.Extend(ctx, conv.ID)
		require.NoError(t, err)
		require.NotNil(t, extended)
		assert.Equal(t, model.StatusPhotoExchange, extended.Status)
		assert.Equal(t, 1, extended.ExtensionsCount)

		active, err := repo.Reactivate(ctx, conv.ID)
		require.NoError(t, err)
		require.NotNil(t, active)
		assert.Equal(t, model.StatusActive, active.Status)
	})

	t.Run("live lookup for both participants", func(t *testing.T) {
		for _, id := range []int64{a.ID, b.ID} {
			live, err := repo.FindLiveForUser(ctx, id)
			require.NoError(t, err)
			require.NotNil(t, live)
			assert.Equal(t, conv.ID, live.ID)
		}
	})

	t.Run("close is idempotent", func(t *testing.T) {
		closed, err := repo.Close(ctx, conv.ID)
		require.NoError(t, err)
		require.NotNil(t, closed)
		assert.Equal(t, model.StatusClosed, closed.Status)

		again, err := repo.Close(ctx, conv.ID)
		require.NoError(t, err)
		assert.Nil(t, again)

		live, err := repo.FindLiveForUser(ctx, a.ID)
		require.NoError(t, err)
		if live != nil {
			assert.NotEqual(t, conv.ID, live.ID)
		}
	})
}

func TestVoteRepository_RoundIsolation(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVoteRepository(db.DB)
	ctx := context.Background()

	a, b, conv := createPair(t, db)

	_, err := repo.Create(ctx, conv.ID, a.ID, 1, model.VoteExtend)
	require.NoError(t, err)
	_, err = repo.Create(ctx, conv.ID, b.ID, 2, model.VoteLeave)
	require.NoError(t, err)

	round1, err := repo.FindByRound(ctx, conv.ID, 1)
	require.NoError(t, err)
	require.Len(t, round1, 1)
	assert.Equal(t, a.ID, round1[0].UserID)
}

func TestPhotoRepository_FindLatestPerUser(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPhotoRepository(db.DB)
	ctx := context.Background()

	a, b, conv := createPair(t, db)
	for _, s := range []struct {
		user int64
		ref  string
	}{{a.ID, "a-1"}, {b.ID, "b-1"}, {a.ID, "a-2"}, {b.ID, "b-2"}, {b.ID, "b-3"}} {
		_, err := repo.Create(ctx, conv.ID, s.user, s.ref)
		require.NoError(t, err)
	}

	latest, err := repo.FindLatestPerUser(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "b-3", latest[0].PhotoRef)
	assert.Equal(t, "a-2", latest[1].PhotoRef)
}

func TestPointsRepository_Award(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPointsRepository(db)
	ctx := context.Background()

	a, _, conv := createPair(t, db)
	entry, err := repo.Award(ctx, model.AwardPointsParams{
		UserID:         a.ID,
		ConversationID: &conv.ID,
		EventKind:      model.PointsEventRating,
		Points:         20,
		Description:    "rated 4 stars",
	})
	require.NoError(t, err)
	assert.Equal(t, 20, entry.Points)

	user, err := NewUserRepository(db.DB).FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, user.Points)

	entries, err := repo.FindByUser(ctx, a.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.PointsEventRating, entries[0].EventKind)
}

func TestAuthSessionRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAuthSessionRepository(db.DB)
	ctx := context.Background()

	a, _, _ := createPair(t, db)
	hash := uuid.NewString()

	_, err := repo.Create(ctx, a.ID, hash, time.Now().Add(time.Hour))
	require.NoError(t, err)

	found, err := repo.FindValidByTokenHash(ctx, hash)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, a.ID, found.UserID)

	expiredHash := uuid.NewString()
	_, err = repo.Create(ctx, a.ID, expiredHash, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	missing, err := repo.FindValidByTokenHash(ctx, expiredHash)
	require.NoError(t, err)
	assert.Nil(t, missing)

	deleted, err := repo.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, deleted, int64(1))
}

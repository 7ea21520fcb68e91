package routing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mateovidal/surtido-backend/pkg/db/models"
	"github.com/mateovidal/surtido-backend/pkg/enums"
)

func setupRoutingTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	routings := `
CREATE TABLE IF NOT EXISTS order_routings (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending_responses',
  winner_wholesaler_id TEXT,
  response_deadline DATETIME NOT NULL,
  resolved_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	candidates := `
CREATE TABLE IF NOT EXISTS routing_candidates (
  id TEXT PRIMARY KEY,
  routing_id TEXT NOT NULL,
  wholesaler_id TEXT NOT NULL,
  response TEXT NOT NULL DEFAULT 'pending',
  responded_at DATETIME,
  created_at DATETIME,
  UNIQUE (routing_id, wholesaler_id)
);`
	require.NoError(t, db.Exec(routings).Error)
	require.NoError(t, db.Exec(candidates).Error)
	return db
}

func seedRouting(t *testing.T, db *gorm.DB, deadline time.Time, candidateIDs ...uuid.UUID) *models.OrderRouting {
	t.Helper()
	routing := &models.OrderRouting{
		ID:               uuid.New(),
		OrderID:          uuid.New(),
		Status:           enums.RoutingStatusPendingResponses,
		ResponseDeadline: deadline,
	}
	for _, id := range candidateIDs {
		routing.Candidates = append(routing.Candidates, models.RoutingCandidate{
			ID:           uuid.New(),
			RoutingID:    routing.ID,
			WholesalerID: id,
			Response:     enums.CandidateResponsePending,
		})
	}
	require.NoError(t, db.Create(routing).Error)
	return routing
}

func TestClaimWinner_OnlyOnce(t *testing.T) {
	db := setupRoutingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	first := uuid.New()
	second := uuid.New()
	routing := seedRouting(t, db, time.Now().Add(time.Hour), first, second)

	won, err := repo.ClaimWinner(ctx, routing.ID, first, time.Now())
	require.NoError(t, err)
	assert.True(t, won)

	// the second claim must lose: the winner column is no longer NULL
	won, err = repo.ClaimWinner(ctx, routing.ID, second, time.Now())
	require.NoError(t, err)
	assert.False(t, won)

	got, err := repo.GetByID(ctx, routing.ID)
	require.NoError(t, err)
	require.NotNil(t, got.WinnerWholesalerID)
	assert.Equal(t, first, *got.WinnerWholesalerID)
	assert.Equal(t, enums.RoutingStatusVendorAccepted, got.Status)
	assert.NotNil(t, got.ResolvedAt)
}

func TestClaimWinner_ConcurrentClaimsYieldOneWinner(t *testing.T) {
	db := setupRoutingTestDB(t)
	// serialize connection access so every goroutine hits the same
	// in-memory database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	repo := NewRepository(db)
	ctx := context.Background()

	const claimants = 8
	ids := make([]uuid.UUID, claimants)
	for i := range ids {
		ids[i] = uuid.New()
	}
	routing := seedRouting(t, db, time.Now().Add(time.Hour), ids...)

	start := make(chan struct{})
	results := make(chan uuid.UUID, claimants)
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(wholesalerID uuid.UUID) {
			defer wg.Done()
			<-start
			won, err := repo.ClaimWinner(ctx, routing.ID, wholesalerID, time.Now())
			assert.NoError(t, err)
			if won {
				results <- wholesalerID
			}
		}(id)
	}
	close(start)
	wg.Wait()
	close(results)

	winners := make([]uuid.UUID, 0, claimants)
	for id := range results {
		winners = append(winners, id)
	}
	require.Len(t, winners, 1)

	got, err := repo.GetByID(ctx, routing.ID)
	require.NoError(t, err)
	require.NotNil(t, got.WinnerWholesalerID)
	assert.Equal(t, winners[0], *got.WinnerWholesalerID)
	assert.Equal(t, enums.RoutingStatusVendorAccepted, got.Status)
}

func TestUpdateCandidateResponse_OnlyFromExpected(t *testing.T) {
	db := setupRoutingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	wholesalerID := uuid.New()
	routing := seedRouting(t, db, time.Now().Add(time.Hour), wholesalerID)

	ok, err := repo.UpdateCandidateResponse(ctx, routing.ID, wholesalerID,
		enums.CandidateResponsePending, enums.CandidateResponseRejected, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	// a second flip from pending must find nothing to update
	ok, err = repo.UpdateCandidateResponse(ctx, routing.ID, wholesalerID,
		enums.CandidateResponsePending, enums.CandidateResponseAccepted, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	candidate, err := repo.GetCandidate(ctx, routing.ID, wholesalerID)
	require.NoError(t, err)
	assert.Equal(t, enums.CandidateResponseRejected, candidate.Response)
	assert.NotNil(t, candidate.RespondedAt)
}

func TestResolveNoWinner_GuardsAgainstWinner(t *testing.T) {
	db := setupRoutingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	winner := uuid.New()
	routing := seedRouting(t, db, time.Now().Add(-time.Hour), winner)

	won, err := repo.ClaimWinner(ctx, routing.ID, winner, time.Now())
	require.NoError(t, err)
	require.True(t, won)

	ok, err := repo.ResolveNoWinner(ctx, routing.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetByID(ctx, routing.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.RoutingStatusVendorAccepted, got.Status)
}

func TestCountPendingCandidates(t *testing.T) {
	db := setupRoutingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	a := uuid.New()
	b := uuid.New()
	routing := seedRouting(t, db, time.Now().Add(time.Hour), a, b)

	count, err := repo.CountPendingCandidates(ctx, routing.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	_, err = repo.UpdateCandidateResponse(ctx, routing.ID, a,
		enums.CandidateResponsePending, enums.CandidateResponseRejected, time.Now())
	require.NoError(t, err)

	count, err = repo.CountPendingCandidates(ctx, routing.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestFindStale_ReturnsOnlyOverduePending(t *testing.T) {
	db := setupRoutingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	now := time.Now()
	overdue := seedRouting(t, db, now.Add(-time.Minute), uuid.New())
	seedRouting(t, db, now.Add(time.Hour), uuid.New())

	resolved := seedRouting(t, db, now.Add(-time.Minute), uuid.New())
	_, err := repo.ResolveNoWinner(ctx, resolved.ID, now)
	require.NoError(t, err)

	stale, err := repo.FindStale(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, overdue.ID, stale[0].ID)
}

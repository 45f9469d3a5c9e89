//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"escrowd/internal/escrow/models"
	"escrowd/internal/escrow/store"
	id "escrowd/pkg/domain"
	"escrowd/pkg/platform/sentinel"
	"escrowd/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	store *Store
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	pg := containers.GetManager().GetPostgres(s.T())
	s.store = New(pg.DB)
	s.Require().NoError(s.store.Migrate(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	pg := containers.GetManager().GetPostgres(s.T())
	s.Require().NoError(pg.TruncateTables(context.Background(), "escrows"))
}

func newRecord() *store.Record {
	escrowID := id.NewEscrowID()
	now := time.Now().UTC().Truncate(time.Microsecond)
	escrow := &models.Escrow{
		ID:           escrowID,
		BuyerID:      "buyer-1",
		SellerID:     "seller-1",
		Amount:       5000,
		Description:  "turntable",
		CurrentState: models.StateProposed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	created := models.Created{
		ID:          id.NewEventID(),
		Timestamp:   now,
		EscrowID:    escrowID,
		BuyerID:     escrow.BuyerID,
		SellerID:    escrow.SellerID,
		Amount:      escrow.Amount,
		Description: escrow.Description,
	}
	return &store.Record{Escrow: escrow, Events: models.History{created}}
}

func stateChange(escrow *models.Escrow, action models.Action, to models.State, at time.Time) (*models.Escrow, models.StateChanged) {
	next := escrow.WithState(to, at)
	event := models.StateChanged{
		ID:          id.NewEventID(),
		Timestamp:   at,
		EscrowID:    escrow.ID,
		Action:      action,
		From:        escrow.CurrentState,
		To:          to,
		PerformedBy: escrow.BuyerID,
		Role:        models.RoleBuyer,
	}
	return next, event
}

func (s *PostgresStoreSuite) TestCreateAndGet() {
	ctx := context.Background()
	record := newRecord()

	s.Require().NoError(s.store.Create(ctx, record))

	got, err := s.store.Get(ctx, record.Escrow.ID)
	s.Require().NoError(err)
	s.Equal(record.Escrow.ID, got.Escrow.ID)
	s.Equal(models.StateProposed, got.Escrow.CurrentState)
	s.True(record.Escrow.CreatedAt.Equal(got.Escrow.CreatedAt))
	s.Require().Len(got.Events, 1)
	s.IsType(models.Created{}, got.Events[0])

	s.Require().ErrorIs(s.store.Create(ctx, record), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestGetNotFound() {
	_, err := s.store.Get(context.Background(), id.NewEscrowID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestUpdateAppendsInOrder() {
	ctx := context.Background()
	record := newRecord()
	s.Require().NoError(s.store.Create(ctx, record))

	funded, fundEvent := stateChange(record.Escrow, models.ActionFund, models.StateFunded, record.Escrow.UpdatedAt.Add(time.Minute))
	s.Require().NoError(s.store.Update(ctx, funded, fundEvent))

	released, releaseEvent := stateChange(funded, models.ActionRelease, models.StateReleased, funded.UpdatedAt.Add(time.Minute))
	s.Require().NoError(s.store.Update(ctx, released, releaseEvent))

	got, err := s.store.Get(ctx, record.Escrow.ID)
	s.Require().NoError(err)
	s.Equal(models.StateReleased, got.Escrow.CurrentState)
	s.Require().Len(got.Events, 3)
	s.Equal(fundEvent.ID, got.Events[1].(models.StateChanged).ID)
	s.Equal(releaseEvent.ID, got.Events[2].(models.StateChanged).ID)

	// The stored history replays to the persisted snapshot.
	replayed, err := models.Replay(got.Events)
	s.Require().NoError(err)
	s.Equal(got.Escrow.CurrentState, replayed.CurrentState)
	s.True(got.Escrow.UpdatedAt.Equal(replayed.UpdatedAt))
}

func (s *PostgresStoreSuite) TestUpdateNotFound() {
	record := newRecord()
	next, event := stateChange(record.Escrow, models.ActionFund, models.StateFunded, time.Now().UTC())
	err := s.store.Update(context.Background(), next, event)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListAllAndClear() {
	ctx := context.Background()
	first := newRecord()
	second := newRecord()
	s.Require().NoError(s.store.Create(ctx, first))
	s.Require().NoError(s.store.Create(ctx, second))

	all, err := s.store.ListAll(ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	for _, record := range all {
		s.Len(record.Events, 1)
	}

	s.Require().NoError(s.store.Clear(ctx))
	all, err = s.store.ListAll(ctx)
	s.Require().NoError(err)
	s.Empty(all)
}

// Concurrent updates race on the next event position; the unique constraint
// plus per-update transaction must keep every append.
func (s *PostgresStoreSuite) TestConcurrentUpdatesKeepAllEvents() {
	ctx := context.Background()
	record := newRecord()
	s.Require().NoError(s.store.Create(ctx, record))

	const writers = 10
	done := make(chan error, writers)
	for i := 0; i < writers; i++ {
		go func(i int) {
			next, event := stateChange(record.Escrow, models.ActionFund, models.StateFunded,
				record.Escrow.UpdatedAt.Add(time.Duration(i+1)*time.Second))
			done <- s.store.Update(ctx, next, event)
		}(i)
	}

	succeeded := 0
	for i := 0; i < writers; i++ {
		if err := <-done; err == nil {
			succeeded++
		}
	}
	s.Require().Positive(succeeded)

	got, err := s.store.Get(ctx, record.Escrow.ID)
	s.Require().NoError(err)
	s.Len(got.Events, succeeded+1)
}

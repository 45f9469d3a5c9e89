package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"escrowd/internal/escrow/metrics"
	"escrowd/internal/escrow/models"
	"escrowd/internal/escrow/service"
	"escrowd/internal/escrow/store/memory"
	id "escrowd/pkg/domain"
	dErrors "escrowd/pkg/domain-errors"
	"escrowd/pkg/platform/audit"
	auditmemory "escrowd/pkg/platform/audit/store/memory"
	"escrowd/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	store    *memory.Store
	auditLog *auditmemory.Store
	svc      *service.Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = memory.New()
	s.auditLog = auditmemory.New()
	s.svc = service.New(s.store, audit.NewPublisher(s.auditLog), metrics.New(prometheus.NewRegistry()))
}

func (s *ServiceSuite) create(ctx context.Context) *models.Escrow {
	escrow, event, err := s.svc.Create(ctx, "buyer-B", "seller-S", 5000, "rare pressing")
	s.Require().NoError(err)
	s.Require().IsType(models.Created{}, event)
	return escrow
}

// Scenario: create, fund, release; the escrow reaches its terminal state with
// three events and every further action rejects.
func (s *ServiceSuite) TestHappyPathToRelease() {
	ctx := context.Background()
	escrow := s.create(ctx)
	s.Equal(models.StateProposed, escrow.CurrentState)

	history, err := s.svc.History(ctx, escrow.ID)
	s.Require().NoError(err)
	s.Len(history, 1)

	funded, event, err := s.svc.Apply(ctx, escrow.ID, models.ActionFund, "buyer-B", models.RoleBuyer, "")
	s.Require().NoError(err)
	s.Equal(models.StateFunded, funded.CurrentState)
	change, ok := event.(models.StateChanged)
	s.Require().True(ok)
	s.Equal(models.StateProposed, change.From)
	s.Equal(models.StateFunded, change.To)

	released, _, err := s.svc.Apply(ctx, escrow.ID, models.ActionRelease, "seller-S", models.RoleSeller, "")
	s.Require().NoError(err)
	s.Equal(models.StateReleased, released.CurrentState)

	history, err = s.svc.History(ctx, escrow.ID)
	s.Require().NoError(err)
	s.Len(history, 3)

	for _, action := range []models.Action{models.ActionFund, models.ActionRelease, models.ActionDispute} {
		_, _, err := s.svc.Apply(ctx, escrow.ID, action, "anyone", models.RoleAdmin, "")
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeTerminalState))
	}
}

// Scenario: dispute from FUNDED, resolved by the admin in the seller's favor.
func (s *ServiceSuite) TestDisputeResolvedAsRelease() {
	ctx := context.Background()
	escrow := s.create(ctx)

	_, _, err := s.svc.Apply(ctx, escrow.ID, models.ActionFund, "buyer-B", models.RoleBuyer, "")
	s.Require().NoError(err)
	disputed, _, err := s.svc.Apply(ctx, escrow.ID, models.ActionDispute, "buyer-B", models.RoleBuyer, "item not as described")
	s.Require().NoError(err)
	s.Equal(models.StateDisputed, disputed.CurrentState)

	resolved, event, err := s.svc.Apply(ctx, escrow.ID, models.ActionResolveDisputeRelease, "admin-1", models.RoleAdmin, "evidence supports seller")
	s.Require().NoError(err)
	s.Equal(models.StateReleased, resolved.CurrentState)
	s.Equal("evidence supports seller", event.(models.StateChanged).Reason)

	history, err := s.svc.History(ctx, escrow.ID)
	s.Require().NoError(err)
	s.Len(history, 4)
}

// Scenario: dispute resolved as refund; the refunded escrow is terminal.
func (s *ServiceSuite) TestDisputeResolvedAsRefund() {
	ctx := context.Background()
	escrow := s.create(ctx)

	_, _, err := s.svc.Apply(ctx, escrow.ID, models.ActionFund, "buyer-B", models.RoleBuyer, "")
	s.Require().NoError(err)
	_, _, err = s.svc.Apply(ctx, escrow.ID, models.ActionDispute, "buyer-B", models.RoleBuyer, "")
	s.Require().NoError(err)

	refunded, _, err := s.svc.Apply(ctx, escrow.ID, models.ActionResolveDisputeRefund, "admin-1", models.RoleAdmin, "")
	s.Require().NoError(err)
	s.Equal(models.StateRefunded, refunded.CurrentState)

	_, _, err = s.svc.Apply(ctx, escrow.ID, models.ActionDispute, "buyer-B", models.RoleBuyer, "")
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeTerminalState))
}

// Rejections must leave the store untouched: no new event, same snapshot.
func (s *ServiceSuite) TestRejectionPersistsNothing() {
	ctx := context.Background()
	escrow := s.create(ctx)

	s.Run("invalid transition", func() {
		_, _, err := s.svc.Apply(ctx, escrow.ID, models.ActionRelease, "seller-S", models.RoleSeller, "")
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeInvalidTransition))
	})

	s.Run("role not permitted", func() {
		_, _, err := s.svc.Apply(ctx, escrow.ID, models.ActionFund, "seller-S", models.RoleSeller, "")
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeRoleNotPermitted))
	})

	got, err := s.svc.Get(ctx, escrow.ID)
	s.Require().NoError(err)
	s.Equal(models.StateProposed, got.CurrentState)
	s.Equal(escrow.UpdatedAt, got.UpdatedAt)

	history, err := s.svc.History(ctx, escrow.ID)
	s.Require().NoError(err)
	s.Len(history, 1)
}

func (s *ServiceSuite) TestApplyUnknownEscrow() {
	_, _, err := s.svc.Apply(context.Background(), id.NewEscrowID(), models.ActionFund, "buyer-B", models.RoleBuyer, "")
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeNotFound))
}

// Round-trip law: replaying the stored history always yields the last
// returned snapshot.
func (s *ServiceSuite) TestReplayMatchesSnapshotAfterEveryStep() {
	ctx := requestcontext.WithTime(context.Background(), time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	escrow := s.create(ctx)

	steps := []struct {
		action models.Action
		actor  id.PartyID
		role   models.Role
	}{
		{models.ActionFund, "buyer-B", models.RoleBuyer},
		{models.ActionDispute, "buyer-B", models.RoleBuyer},
		{models.ActionResolveDisputeRefund, "admin-1", models.RoleAdmin},
	}

	last := escrow
	for i, step := range steps {
		stepCtx := requestcontext.WithTime(context.Background(),
			time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(i+1)*time.Minute))
		snapshot, _, err := s.svc.Apply(stepCtx, escrow.ID, step.action, step.actor, step.role, "")
		s.Require().NoError(err)
		last = snapshot

		history, err := s.svc.History(stepCtx, escrow.ID)
		s.Require().NoError(err)
		replayed, err := models.Replay(history)
		s.Require().NoError(err)
		s.Equal(last, replayed)
	}
	s.Equal(models.StateRefunded, last.CurrentState)
}

// The audit trail records rejected attempts, which the event log never sees.
func (s *ServiceSuite) TestAuditTrailCoversAcceptedAndRejected() {
	ctx := context.Background()
	escrow := s.create(ctx)

	_, _, err := s.svc.Apply(ctx, escrow.ID, models.ActionFund, "buyer-B", models.RoleBuyer, "")
	s.Require().NoError(err)
	_, _, err = s.svc.Apply(ctx, escrow.ID, models.ActionFund, "seller-S", models.RoleSeller, "")
	s.Require().Error(err)

	entries := s.auditLog.List()
	s.Require().Len(entries, 3)
	s.Equal(audit.ActionEscrowCreated, entries[0].Action)
	s.Equal(audit.ActionApplied, entries[1].Action)
	s.Equal(audit.ActionRejected, entries[2].Action)
	s.NotEmpty(entries[2].Reason)
}

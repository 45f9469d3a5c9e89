// Package service implements the escrow aggregate operations. It is the only
// caller of the transition engine and the only writer of the event store:
// create synthesizes the Created event, apply synthesizes one StateChanged
// event per accepted action, and nothing is persisted on rejection.
package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"escrowd/internal/escrow/engine"
	"escrowd/internal/escrow/metrics"
	"escrowd/internal/escrow/models"
	"escrowd/internal/escrow/store"
	id "escrowd/pkg/domain"
	dErrors "escrowd/pkg/domain-errors"
	"escrowd/pkg/platform/audit"
	"escrowd/pkg/platform/sentinel"
	"escrowd/pkg/requestcontext"
)

// Service orchestrates aggregate operations against the store. The store is
// constructor-injected; there is no ambient global state.
type Service struct {
	store   store.Store
	audit   *audit.Publisher
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// New builds the escrow service.
func New(st store.Store, auditPub *audit.Publisher, m *metrics.Metrics) *Service {
	return &Service{
		store:   st,
		audit:   auditPub,
		metrics: m,
		tracer:  otel.Tracer("escrowd/internal/escrow/service"),
	}
}

// Create constructs a new escrow in PROPOSED together with its Created event
// and persists both. Input validation (positive amount, non-empty
// description) is the transport layer's job; this layer only records.
func (s *Service) Create(ctx context.Context, buyerID, sellerID id.PartyID, amount int64, description string) (*models.Escrow, models.Event, error) {
	ctx, span := s.tracer.Start(ctx, "escrow.Create")
	defer span.End()

	now := requestcontext.Now(ctx)
	escrowID := id.NewEscrowID()
	span.SetAttributes(attribute.String("escrow.id", escrowID.String()))

	escrow := &models.Escrow{
		ID:           escrowID,
		BuyerID:      buyerID,
		SellerID:     sellerID,
		Amount:       amount,
		Description:  description,
		CurrentState: models.StateProposed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	event := models.Created{
		ID:          id.NewEventID(),
		Timestamp:   now,
		EscrowID:    escrowID,
		BuyerID:     buyerID,
		SellerID:    sellerID,
		Amount:      amount,
		Description: description,
	}

	record := &store.Record{Escrow: escrow, Events: models.History{event}}
	if err := s.store.Create(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, nil, dErrors.New(dErrors.CodeConflict, "escrow already exists")
		}
		return nil, nil, dErrors.New(dErrors.CodeInternal, "failed to persist escrow")
	}

	s.metrics.IncrementEscrowsCreated()
	s.emitAudit(ctx, audit.Event{
		Action:   audit.ActionEscrowCreated,
		EscrowID: escrowID.String(),
		Actor:    buyerID.String(),
	})
	return escrow, event, nil
}

// Apply runs one action through the transition engine. On acceptance it
// builds the next immutable snapshot plus the StateChanged event and persists
// both; on rejection it returns the coded reason and persists nothing.
func (s *Service) Apply(ctx context.Context, escrowID id.EscrowID, action models.Action, performedBy id.PartyID, role models.Role, reason string) (*models.Escrow, models.Event, error) {
	ctx, span := s.tracer.Start(ctx, "escrow.Apply")
	defer span.End()
	span.SetAttributes(
		attribute.String("escrow.id", escrowID.String()),
		attribute.String("escrow.action", action.String()),
	)
	start := time.Now()
	defer func() {
		s.metrics.ObserveApplyDuration(time.Since(start).Seconds())
	}()

	record, err := s.store.Get(ctx, escrowID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, dErrors.New(dErrors.CodeNotFound, "escrow not found")
		}
		return nil, nil, dErrors.New(dErrors.CodeInternal, "failed to load escrow")
	}
	current := record.Escrow

	next, err := engine.Decide(current.CurrentState, action, role)
	if err != nil {
		s.metrics.IncrementRejections(string(dErrors.CodeOf(err)))
		s.emitAudit(ctx, audit.Event{
			Action:    audit.ActionRejected,
			EscrowID:  escrowID.String(),
			Requested: action.String(),
			Actor:     performedBy.String(),
			Role:      role.String(),
			FromState: current.CurrentState.String(),
			Reason:    err.Error(),
		})
		return nil, nil, err
	}

	now := requestcontext.Now(ctx)
	snapshot := current.WithState(next, now)
	event := models.StateChanged{
		ID:          id.NewEventID(),
		Timestamp:   now,
		EscrowID:    escrowID,
		Action:      action,
		From:        current.CurrentState,
		To:          next,
		PerformedBy: performedBy,
		Role:        role,
		Reason:      reason,
	}

	if err := s.store.Update(ctx, snapshot, event); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, dErrors.New(dErrors.CodeNotFound, "escrow not found")
		}
		return nil, nil, dErrors.New(dErrors.CodeInternal, "failed to persist transition")
	}

	s.metrics.IncrementTransitions(action.String(), next.String())
	s.emitAudit(ctx, audit.Event{
		Action:    audit.ActionApplied,
		EscrowID:  escrowID.String(),
		Requested: action.String(),
		Actor:     performedBy.String(),
		Role:      role.String(),
		FromState: current.CurrentState.String(),
		ToState:   next.String(),
	})
	return snapshot, event, nil
}

// Get returns the current snapshot for an escrow.
func (s *Service) Get(ctx context.Context, escrowID id.EscrowID) (*models.Escrow, error) {
	record, err := s.getRecord(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	return record.Escrow, nil
}

// History returns the full ordered event history for an escrow.
func (s *Service) History(ctx context.Context, escrowID id.EscrowID) (models.History, error) {
	record, err := s.getRecord(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	return record.Events, nil
}

// List enumerates every stored escrow snapshot; order is unspecified.
func (s *Service) List(ctx context.Context) ([]*models.Escrow, error) {
	records, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInternal, "failed to list escrows")
	}
	escrows := make([]*models.Escrow, 0, len(records))
	for _, record := range records {
		escrows = append(escrows, record.Escrow)
	}
	return escrows, nil
}

func (s *Service) getRecord(ctx context.Context, escrowID id.EscrowID) (*store.Record, error) {
	record, err := s.store.Get(ctx, escrowID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "escrow not found")
		}
		return nil, dErrors.New(dErrors.CodeInternal, "failed to load escrow")
	}
	return record, nil
}

// emitAudit forwards to the audit trail when one is configured. Audit
// failures never fail the domain operation.
func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	event.Timestamp = requestcontext.Now(ctx)
	event.RequestID = requestcontext.RequestID(ctx)
	_ = s.audit.Emit(ctx, event)
}

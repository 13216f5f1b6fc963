package services

import (
	"context"
	"errors"
	"fmt"

	"coachhub/internal/models"
	"coachhub/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MessageRouter picks the counterparty for a client's outbound message.
type MessageRouter interface {
	RouteOutbound(ctx context.Context, sender *models.Profile, tenantID uuid.UUID) (uuid.UUID, error)
}

type messageRouter struct {
	profileRepo repositories.ProfileRepository
	log         *zap.Logger
}

func NewMessageRouter(profileRepo repositories.ProfileRepository, log *zap.Logger) MessageRouter {
	return &messageRouter{profileRepo: profileRepo, log: log}
}

// RouteOutbound tries, in order: the sender's assigned coach, the tenant's earliest-created coach,
// then its earliest-created non-client identity other than the sender. It is evaluated on every
// send and never cached.
func (r *messageRouter) RouteOutbound(ctx context.Context, sender *models.Profile, tenantID uuid.UUID) (uuid.UUID, error) {
	if sender == nil {
		return uuid.Nil, errors.New("sender is required")
	}

	if sender.AssignedCoachID != nil && *sender.AssignedCoachID != uuid.Nil && *sender.AssignedCoachID != sender.ID {
		ok, err := r.assignedCoachServes(ctx, *sender.AssignedCoachID, tenantID)
		if err != nil {
			return uuid.Nil, err
		}
		if ok {
			return *sender.AssignedCoachID, nil
		}
		r.log.Warn("assigned coach is not staff of the tenant, using fallback",
			zap.String("tenant_id", tenantID.String()),
			zap.String("sender_id", sender.ID.String()),
			zap.String("assigned_coach_id", sender.AssignedCoachID.String()))
	}

	coach, err := r.profileRepo.FirstCoach(ctx, tenantID)
	switch {
	case err == nil && coach.ID != sender.ID:
		return coach.ID, nil
	case err != nil && !errors.Is(err, repositories.ErrNotFound):
		return uuid.Nil, fmt.Errorf("find coach for tenant %s: %w", tenantID, err)
	}

	staff, err := r.profileRepo.FirstStaff(ctx, tenantID, sender.ID)
	switch {
	case err == nil && staff.ID != sender.ID:
		r.log.Info("no coach in tenant, routing to staff fallback",
			zap.String("tenant_id", tenantID.String()), zap.String("receiver_id", staff.ID.String()))
		return staff.ID, nil
	case err != nil && !errors.Is(err, repositories.ErrNotFound):
		return uuid.Nil, fmt.Errorf("find staff for tenant %s: %w", tenantID, err)
	}

	return uuid.Nil, ErrNoCoachAvailable
}

// assignedCoachServes reports whether coachID still exists as a non-client identity of tenantID.
func (r *messageRouter) assignedCoachServes(ctx context.Context, coachID, tenantID uuid.UUID) (bool, error) {
	coach, err := r.profileRepo.GetByID(ctx, coachID)
	if errors.Is(err, repositories.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load assigned coach %s: %w", coachID, err)
	}
	bound, ok := coach.BoundTenant()
	return ok && bound == tenantID && !coach.IsClient(), nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"coachhub/internal/caching"
	"coachhub/internal/models"
	"coachhub/internal/realtime"
	"coachhub/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ModerationService holds the block and report primitives. Block is idempotent; Report
// failures always reach the caller.
type ModerationService interface {
	Block(ctx context.Context, blockerID, blockedID uuid.UUID) error
	Report(ctx context.Context, req *ReportRequest) (*models.Report, error)
	BlockedIDs(ctx context.Context, blockerID uuid.UUID) ([]uuid.UUID, error)
}

type ReportRequest struct {
	TenantID   *uuid.UUID `json:"-"`
	ReporterID uuid.UUID  `json:"-"`
	ReportedID uuid.UUID  `json:"reported_id" validate:"required"`
	MessageID  *uuid.UUID `json:"message_id,omitempty"`
	Reason     string     `json:"reason" validate:"required"`
}

type moderationService struct {
	blockRepo  repositories.BlockRepository
	reportRepo repositories.ReportRepository
	cache      caching.CacheService
	cacheTTL   time.Duration
	changes    realtime.ChangeFeed
	log        *zap.Logger
}

// NewModerationService wires the block and report stores. changes may be nil; when set, every
// block is announced to the blocker's open sessions.
func NewModerationService(blockRepo repositories.BlockRepository, reportRepo repositories.ReportRepository,
	cache caching.CacheService, cacheTTL time.Duration, changes realtime.ChangeFeed, log *zap.Logger) ModerationService {
	return &moderationService{
		blockRepo:  blockRepo,
		reportRepo: reportRepo,
		cache:      cache,
		cacheTTL:   cacheTTL,
		changes:    changes,
		log:        log,
	}
}

func (s *moderationService) Block(ctx context.Context, blockerID, blockedID uuid.UUID) error {
	if blockerID == blockedID {
		return ErrSelfModeration
	}
	block := &models.Block{
		ID:        uuid.New(),
		BlockerID: blockerID,
		BlockedID: blockedID,
		CreatedAt: time.Now().UTC(),
	}
	err := s.blockRepo.Create(ctx, block)
	if errors.Is(err, repositories.ErrDuplicate) {
		s.log.Debug("block already exists", zap.String("blocker_id", blockerID.String()), zap.String("blocked_id", blockedID.String()))
	} else if err != nil {
		return fmt.Errorf("block user %s: %w", blockedID, err)
	}

	if s.cache != nil {
		if err := s.cache.InvalidateBlockList(ctx, blockerID); err != nil {
			s.log.Warn("block list cache invalidation failed", zap.String("blocker_id", blockerID.String()), zap.Error(err))
		}
	}
	if s.changes != nil {
		event := &models.InsertEvent{Table: models.TableBlocks, Block: block, OccurredAt: block.CreatedAt}
		if err := s.changes.PublishInsert(ctx, event); err != nil {
			s.log.Warn("publishing block event failed", zap.String("blocker_id", blockerID.String()), zap.Error(err))
		}
	}
	return nil
}

func (s *moderationService) Report(ctx context.Context, req *ReportRequest) (*models.Report, error) {
	if req.ReporterID == req.ReportedID {
		return nil, ErrSelfModeration
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}

	report := &models.Report{
		ID:         uuid.New(),
		TenantID:   req.TenantID,
		ReporterID: req.ReporterID,
		ReportedID: req.ReportedID,
		MessageID:  req.MessageID,
		Reason:     reason,
		Status:     models.ReportStatusPending,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.reportRepo.Create(ctx, report); err != nil {
		return nil, fmt.Errorf("file report: %w", err)
	}
	s.log.Info("report filed",
		zap.String("report_id", report.ID.String()),
		zap.String("reporter_id", report.ReporterID.String()),
		zap.String("reported_id", report.ReportedID.String()),
	)
	return report, nil
}

// BlockedIDs reads through the block list cache. The generation is taken before the database
// read; a block committed after that point makes the write-back a no-op.
func (s *moderationService) BlockedIDs(ctx context.Context, blockerID uuid.UUID) ([]uuid.UUID, error) {
	cacheable := false
	var generation int64
	if s.cache != nil {
		ids, ok, err := s.cache.GetBlockList(ctx, blockerID)
		if err != nil {
			s.log.Warn("block list cache read failed", zap.String("blocker_id", blockerID.String()), zap.Error(err))
		} else if ok {
			return ids, nil
		}
		if generation, err = s.cache.BlockListGeneration(ctx, blockerID); err == nil {
			cacheable = true
		}
	}

	ids, err := s.blockRepo.ListBlockedIDs(ctx, blockerID)
	if err != nil {
		return nil, fmt.Errorf("list blocked users: %w", err)
	}

	if cacheable {
		stored, err := s.cache.SetBlockList(ctx, blockerID, ids, generation, s.cacheTTL)
		if err != nil {
			s.log.Warn("block list cache write failed", zap.String("blocker_id", blockerID.String()), zap.Error(err))
		} else if !stored {
			s.log.Debug("block list changed during load, not cached", zap.String("blocker_id", blockerID.String()))
		}
	}
	return ids, nil
}

package repositories

import (
	"context"

	"coachhub/internal/models"

	"github.com/google/uuid"
)

type BlockRepository interface {
	// Create returns ErrDuplicate when the pair is already blocked.
	Create(ctx context.Context, block *models.Block) error
	ListBlockedIDs(ctx context.Context, blockerID uuid.UUID) ([]uuid.UUID, error)
}

type blockRepo struct {
	db DBTX
}

func NewBlockRepo(db DBTX) BlockRepository {
	return &blockRepo{db: db}
}

func (r *blockRepo) Create(ctx context.Context, block *models.Block) error {
	query := `
		INSERT INTO blocks (id, blocker_id, blocked_id, created_at)
		VALUES ($1, $2, $3, NOW())
	`
	_, err := r.db.Exec(ctx, query, block.ID, block.BlockerID, block.BlockedID)
	return mapError(err)
}

func (r *blockRepo) ListBlockedIDs(ctx context.Context, blockerID uuid.UUID) ([]uuid.UUID, error) {
	query := `SELECT blocked_id FROM blocks WHERE blocker_id = $1 ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, blockerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

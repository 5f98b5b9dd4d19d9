package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/alpha-framework/alpha/internal/database"
	"github.com/alpha-framework/alpha/internal/models"
	"gorm.io/gorm"
)

type sequenceRepo struct {
	*Store[models.Sequence, *models.Sequence]
	db *database.DB
}

// NewSequenceRepo creates a new sequence repository
func NewSequenceRepo(db *database.DB) SequenceRepository {
	return &sequenceRepo{
		Store: NewStore[models.Sequence, *models.Sequence](db),
		db:    db,
	}
}

// Next increments the named counter and returns its new value. The first
// call for a prefix creates the counter at 1.
func (r *sequenceRepo) Next(ctx context.Context, prefix string) (*models.Sequence, error) {
	var seq *models.Sequence
	err := InTx(ctx, r.db, func(ctx context.Context) error {
		res := conn(ctx, r.db).Model(&models.Sequence{}).
			Where("prefix = ?", prefix).
			Updates(map[string]any{
				"value":      gorm.Expr("value + 1"),
				"version":    gorm.Expr("version + 1"),
				"updated_at": time.Now().UTC(),
				"updated_by": ActorFrom(ctx),
			})
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			seq = &models.Sequence{Prefix: prefix, Value: 1}
			return r.Save(ctx, seq)
		}

		recs, err := r.List(ctx, Page{Limit: 1}, Where("prefix", prefix))
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			return fmt.Errorf("sequence %q vanished during increment", prefix)
		}
		seq = recs[0]
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("next %s: %w", prefix, err)
	}
	return seq, nil
}

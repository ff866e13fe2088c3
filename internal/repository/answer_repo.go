package repository

import (
	"context"
	"errors"

	"tipwall/internal/models"

	"gorm.io/gorm"
)

type AnswerRepository struct {
	db *gorm.DB
}

func NewAnswerRepository(db *gorm.DB) *AnswerRepository {
	return &AnswerRepository{db: db}
}

func (r *AnswerRepository) WithTx(tx *gorm.DB) *AnswerRepository {
	return &AnswerRepository{db: tx}
}

func (r *AnswerRepository) Create(ctx context.Context, a *models.Answer) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *AnswerRepository) GetByTipID(ctx context.Context, tipID string) (*models.Answer, error) {
	var a models.Answer
	err := r.db.WithContext(ctx).Where("tip_id = ?", tipID).First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAnswerNotFound
		}
		return nil, err
	}
	return &a, nil
}

// ListByTipIDs returns answers keyed by tip id.
func (r *AnswerRepository) ListByTipIDs(ctx context.Context, tipIDs []string) (map[string]models.Answer, error) {
	out := make(map[string]models.Answer, len(tipIDs))
	if len(tipIDs) == 0 {
		return out, nil
	}
	var list []models.Answer
	if err := r.db.WithContext(ctx).Where("tip_id IN ?", tipIDs).Find(&list).Error; err != nil {
		return nil, err
	}
	for _, a := range list {
		out[a.TipID] = a
	}
	return out, nil
}

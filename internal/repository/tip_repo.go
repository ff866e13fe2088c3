package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tipwall/internal/domain"
	"tipwall/internal/models"

	"gorm.io/gorm"
)

type TipRepository struct {
	db *gorm.DB
}

func NewTipRepository(db *gorm.DB) *TipRepository {
	return &TipRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *TipRepository) WithTx(tx *gorm.DB) *TipRepository {
	return &TipRepository{db: tx}
}

func (r *TipRepository) Create(ctx context.Context, t *models.Tip) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *TipRepository) GetByID(ctx context.Context, id string) (*models.Tip, error) {
	var t models.Tip
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTipNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *TipRepository) GetByReference(ctx context.Context, ref string) (*models.Tip, error) {
	var t models.Tip
	err := r.db.WithContext(ctx).Where("reference_pubkey = ?", ref).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTipNotFound
		}
		return nil, err
	}
	return &t, nil
}

// Transition moves a tip from one status to another only if it is still in
// the expected status. A lost race returns ErrStatusConflict.
func (r *TipRepository) Transition(ctx context.Context, id, from, to string, fields map[string]any) error {
	if !domain.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	updates := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["status"] = to

	res := r.db.WithContext(ctx).Model(&models.Tip{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

// ListExpired returns tips in one of statuses whose deadline is at or before now.
func (r *TipRepository) ListExpired(ctx context.Context, now time.Time, limit int, statuses ...string) ([]models.Tip, error) {
	var list []models.Tip
	q := r.db.WithContext(ctx).
		Where("status IN ? AND expires_at <= ?", statuses, now).
		Order("expires_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&list).Error
	return list, err
}

func (r *TipRepository) ListByStatus(ctx context.Context, limit int, statuses ...string) ([]models.Tip, error) {
	var list []models.Tip
	q := r.db.WithContext(ctx).Where("status IN ?", statuses).Order("updated_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&list).Error
	return list, err
}

func (r *TipRepository) ListForCreator(ctx context.Context, creatorID uint, statuses []string, limit, offset int) ([]models.Tip, error) {
	var list []models.Tip
	q := r.db.WithContext(ctx).Where("creator_id = ?", creatorID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

// CreatorTotal is a creator's released volume over a window.
type CreatorTotal struct {
	CreatorID     uint   `json:"creator_id"`
	TwitterHandle string `json:"twitter_handle"`
	DisplayName   string `json:"display_name"`
	AvatarURL     string `json:"avatar_url"`
	Lamports      uint64 `json:"lamports"`
	Answered      int64  `json:"answered"`
}

// Leaderboard ranks creators by lamports released since the given time.
func (r *TipRepository) Leaderboard(ctx context.Context, since time.Time, limit int) ([]CreatorTotal, error) {
	var rows []CreatorTotal
	err := r.db.WithContext(ctx).
		Table("tips").
		Select("tips.creator_id, users.twitter_handle, users.display_name, users.avatar_url, SUM(tips.amount_lamports) AS lamports, COUNT(*) AS answered").
		Joins("JOIN users ON users.id = tips.creator_id AND users.deleted_at IS NULL").
		Where("tips.status = ? AND tips.settled_at >= ?", domain.TipStatusReleased, since).
		Group("tips.creator_id, users.twitter_handle, users.display_name, users.avatar_url").
		Order("lamports DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// CreatorStats returns one creator's released totals since the given time.
func (r *TipRepository) CreatorStats(ctx context.Context, creatorID uint, since time.Time) (lamports uint64, answered int64, err error) {
	var row struct {
		Lamports uint64
		Answered int64
	}
	err = r.db.WithContext(ctx).
		Model(&models.Tip{}).
		Select("COALESCE(SUM(amount_lamports), 0) AS lamports, COUNT(*) AS answered").
		Where("creator_id = ? AND status = ? AND settled_at >= ?", creatorID, domain.TipStatusReleased, since).
		Scan(&row).Error
	return row.Lamports, row.Answered, err
}

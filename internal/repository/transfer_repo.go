package repository

import (
	"context"
	"time"

	"tipwall/internal/domain"
	"tipwall/internal/models"

	"gorm.io/gorm"
)

type TransferRepository struct {
	db *gorm.DB
}

func NewTransferRepository(db *gorm.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

// Ensure returns the transfer for (tipID, kind), creating it in pending state
// on first call. Destination and amount of an existing row are never changed.
func (r *TransferRepository) Ensure(ctx context.Context, tipID, kind, destination string, lamports uint64) (*models.Transfer, error) {
	t := models.Transfer{}
	err := r.db.WithContext(ctx).
		Where(models.Transfer{TipID: tipID, Kind: kind}).
		Attrs(models.Transfer{Destination: destination, Lamports: lamports, Status: domain.TransferStatusPending}).
		FirstOrCreate(&t).Error
	if err != nil {
		// Another executor inserted the row between our read and insert.
		var existing models.Transfer
		if rerr := r.db.WithContext(ctx).Where("tip_id = ? AND kind = ?", tipID, kind).First(&existing).Error; rerr == nil {
			return &existing, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *TransferRepository) WithTx(tx *gorm.DB) *TransferRepository {
	return &TransferRepository{db: tx}
}

func (r *TransferRepository) ListByTip(ctx context.Context, tipID string) ([]models.Transfer, error) {
	var list []models.Transfer
	err := r.db.WithContext(ctx).Where("tip_id = ?", tipID).Order("created_at ASC").Find(&list).Error
	return list, err
}

// MarkSubmitted records the signature before the transaction is broadcast.
// The attempt counter acts as a version: if another worker submitted first
// the row is left alone and ErrTransferBusy is returned.
func (r *TransferRepository) MarkSubmitted(ctx context.Context, t *models.Transfer, sig string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Transfer{}).
		Where("id = ? AND attempts = ?", t.ID, t.Attempts).
		Updates(map[string]any{
			"status":       domain.TransferStatusSubmitted,
			"signature":    sig,
			"attempts":     t.Attempts + 1,
			"submitted_at": at,
			"last_error":   "",
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTransferBusy
	}
	t.Status = domain.TransferStatusSubmitted
	t.Signature = sig
	t.Attempts++
	t.SubmittedAt = &at
	t.LastError = ""
	return nil
}

func (r *TransferRepository) MarkConfirmed(ctx context.Context, t *models.Transfer, at time.Time) error {
	t.Status = domain.TransferStatusConfirmed
	t.ConfirmedAt = &at
	return r.db.WithContext(ctx).Model(t).Updates(map[string]any{
		"status":       t.Status,
		"confirmed_at": at,
	}).Error
}

// MarkFailed clears the transfer for resubmission. Like MarkSubmitted it only
// applies to the status and attempt the caller observed; if another worker
// has since resubmitted, ErrTransferBusy is returned and its live signature
// is kept.
func (r *TransferRepository) MarkFailed(ctx context.Context, t *models.Transfer, cause error) error {
	lastError := t.LastError
	if cause != nil {
		lastError = cause.Error()
	}
	res := r.db.WithContext(ctx).Model(&models.Transfer{}).
		Where("id = ? AND attempts = ? AND status = ?", t.ID, t.Attempts, t.Status).
		Updates(map[string]any{
			"status":     domain.TransferStatusFailed,
			"last_error": lastError,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTransferBusy
	}
	t.Status = domain.TransferStatusFailed
	t.LastError = lastError
	return nil
}

// RecordError keeps the transfer's status and stores the last send error.
func (r *TransferRepository) RecordError(ctx context.Context, t *models.Transfer, cause error) error {
	t.LastError = cause.Error()
	return r.db.WithContext(ctx).Model(t).Update("last_error", t.LastError).Error
}

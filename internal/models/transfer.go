package models

import (
	"time"

	"tipwall/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Transfer is one outbound movement of funds from the vault. A tip has at
// most one transfer per kind.
type Transfer struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	TipID       string     `gorm:"size:36;not null;uniqueIndex:idx_transfers_tip_kind" json:"tip_id"`
	Kind        string     `gorm:"size:16;not null;uniqueIndex:idx_transfers_tip_kind" json:"kind"` // payout, fee, refund
	Destination string     `gorm:"size:64;not null" json:"destination"`
	Lamports    uint64     `gorm:"not null" json:"lamports"`
	Status      string     `gorm:"size:16;not null;index" json:"status"` // pending, submitted, confirmed, failed
	Signature   string     `gorm:"size:128;index" json:"signature,omitempty"`
	Attempts    int        `gorm:"not null;default:0" json:"attempts"`
	LastError   string     `gorm:"type:text" json:"last_error,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Transfer) TableName() string {
	return "transfers"
}

func (t *Transfer) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = domain.TransferStatusPending
	}
	return nil
}

func (t *Transfer) Confirmed() bool { return t.Status == domain.TransferStatusConfirmed }

package models

import (
	"time"

	"tipwall/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Tip struct {
	ID              string     `gorm:"primaryKey;size:36" json:"id"`
	CreatorID       uint       `gorm:"not null;index" json:"creator_id"`
	AskerID         *uint      `gorm:"index" json:"asker_id,omitempty"`
	TipperWallet    string     `gorm:"size:64;not null" json:"tipper_wallet"`
	AmountLamports  uint64     `gorm:"not null" json:"amount_lamports"`
	FeeBps          int        `gorm:"not null" json:"fee_bps"`
	PremiumCreator  bool       `gorm:"not null;default:false" json:"premium_creator"`
	ReferencePubkey string     `gorm:"size:64;uniqueIndex;not null" json:"reference_pubkey"`
	QuestionText    string     `gorm:"type:text;not null" json:"question_text"`
	Status          string     `gorm:"size:24;not null;index" json:"status"`
	ExpiresAt       time.Time  `gorm:"not null;index" json:"expires_at"`
	TxFundSig       string     `gorm:"size:128" json:"tx_fund_sig,omitempty"`
	TxReleaseSig    string     `gorm:"size:128" json:"tx_release_sig,omitempty"`
	TxFeeSig        string     `gorm:"size:128" json:"tx_fee_sig,omitempty"`
	TxRefundSig     string     `gorm:"size:128" json:"tx_refund_sig,omitempty"`
	FundedAt        *time.Time `json:"funded_at,omitempty"`
	SettledAt       *time.Time `json:"settled_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (Tip) TableName() string {
	return "tips"
}

func (t *Tip) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = domain.TipStatusAwaitingPayment
	}
	return nil
}

// Expired reports whether the answer window closed before now.
func (t *Tip) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

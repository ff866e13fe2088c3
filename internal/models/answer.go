package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Answer is written once, in the same transaction that claims its tip.
type Answer struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	TipID      string    `gorm:"size:36;not null;uniqueIndex" json:"tip_id"`
	CreatorID  uint      `gorm:"not null;index" json:"creator_id"`
	AnswerText string    `gorm:"type:text;not null" json:"answer_text"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Answer) TableName() string {
	return "answers"
}

func (a *Answer) BeforeCreate(*gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

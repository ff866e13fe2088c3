package models

import (
	"time"

	"gorm.io/gorm"
)

// User is a creator or an asker who signed in with X.
type User struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	TwitterID      *string        `gorm:"uniqueIndex;size:64" json:"-"`
	TwitterHandle  string         `gorm:"uniqueIndex;size:64;not null" json:"twitter_handle"`
	DisplayName    string         `gorm:"size:80" json:"display_name"`
	Bio            string         `gorm:"size:140" json:"bio"`
	AvatarURL      string         `gorm:"size:512" json:"avatar_url"`
	WalletAddress  string         `gorm:"size:64" json:"wallet_address"`
	PriceLamports  uint64         `gorm:"not null;default:0" json:"price_lamports"`
	ProCreator     bool           `gorm:"not null;default:false" json:"pro_creator"`
	TelegramHandle string         `gorm:"size:64" json:"telegram_handle"`
	FCMToken       string         `gorm:"size:512" json:"-"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// CanReceivePayouts is false until the creator has saved a payout wallet.
func (u *User) CanReceivePayouts() bool { return u.WalletAddress != "" }

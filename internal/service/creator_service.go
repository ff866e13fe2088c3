package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"tipwall/internal/domain"
	"tipwall/internal/fees"
	"tipwall/internal/models"
	"tipwall/internal/repository"
	"tipwall/pkg/cloudinary"
	"tipwall/pkg/solana"
)

const statsWindow = 7 * 24 * time.Hour

var ErrUploadsDisabled = errors.New("image uploads are not configured")

// CreatorService backs the creator card, the inbox and profile settings.
type CreatorService struct {
	users    *repository.UserRepository
	tips     *repository.TipRepository
	answers  *repository.AnswerRepository
	uploader cloudinary.Client
	now      func() time.Time
}

func NewCreatorService(users *repository.UserRepository, tips *repository.TipRepository, answers *repository.AnswerRepository, uploader cloudinary.Client) *CreatorService {
	return &CreatorService{users: users, tips: tips, answers: answers, uploader: uploader, now: time.Now}
}

// CreatorCard is the public profile a payer sees before asking.
type CreatorCard struct {
	Handle           string `json:"handle"`
	DisplayName      string `json:"display_name"`
	Bio              string `json:"bio"`
	AvatarURL        string `json:"avatar_url"`
	TelegramHandle   string `json:"telegram_handle,omitempty"`
	WalletAddress    string `json:"wallet_address"`
	PriceLamports    uint64 `json:"price_lamports"`
	PriceSOL         string `json:"price_sol"`
	FeeTier          string `json:"fee_tier"`
	ProCreator       bool   `json:"pro_creator"`
	AcceptingTips    bool   `json:"accepting_tips"`
	Earned7dLamports uint64 `json:"earned_7d_lamports"`
	Answered7d       int64  `json:"answered_7d"`
}

func (s *CreatorService) Card(ctx context.Context, handle string) (*CreatorCard, error) {
	u, err := s.users.GetByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrCreatorNotFound
		}
		return nil, err
	}
	lamports, answered, err := s.tips.CreatorStats(ctx, u.ID, s.now().UTC().Add(-statsWindow))
	if err != nil {
		return nil, err
	}
	return &CreatorCard{
		Handle:           u.TwitterHandle,
		DisplayName:      u.DisplayName,
		Bio:              u.Bio,
		AvatarURL:        u.AvatarURL,
		TelegramHandle:   u.TelegramHandle,
		WalletAddress:    u.WalletAddress,
		PriceLamports:    u.PriceLamports,
		PriceSOL:         fees.LamportsToSOL(u.PriceLamports).String(),
		FeeTier:          fees.Tier(fees.FeeBpsForLamports(max(u.PriceLamports, 1), u.ProCreator)),
		ProCreator:       u.ProCreator,
		AcceptingTips:    u.CanReceivePayouts(),
		Earned7dLamports: lamports,
		Answered7d:       answered,
	}, nil
}

// InboxItem is one tip in a creator's inbox.
type InboxItem struct {
	ID             string         `json:"id"`
	QuestionText   string         `json:"question_text"`
	AmountLamports uint64         `json:"amount_lamports"`
	FeeBps         int            `json:"fee_bps"`
	Status         string         `json:"status"`
	Settling       bool           `json:"settling"`
	ExpiresAt      time.Time      `json:"expires_at"`
	CreatedAt      time.Time      `json:"created_at"`
	Answer         *models.Answer `json:"answer,omitempty"`
}

var inboxFilters = map[string][]string{
	"pending":  {domain.TipStatusFunded},
	"answered": {domain.TipStatusReleasing, domain.TipStatusReleased},
	"refunded": {domain.TipStatusRefunding, domain.TipStatusRefunded},
	"all": {
		domain.TipStatusFunded,
		domain.TipStatusReleasing,
		domain.TipStatusReleased,
		domain.TipStatusRefunding,
		domain.TipStatusRefunded,
	},
}

// Inbox lists a creator's tips. filter is pending, answered, refunded or all.
func (s *CreatorService) Inbox(ctx context.Context, creatorID uint, filter string, limit, offset int) ([]InboxItem, error) {
	statuses, ok := inboxFilters[filter]
	if !ok {
		statuses = inboxFilters["pending"]
	}
	tips, err := s.tips.ListForCreator(ctx, creatorID, statuses, limit, offset)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(tips))
	for _, t := range tips {
		ids = append(ids, t.ID)
	}
	answers, err := s.answers.ListByTipIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	items := make([]InboxItem, 0, len(tips))
	for _, t := range tips {
		status, settling := domain.PublicStatus(t.Status)
		item := InboxItem{
			ID:             t.ID,
			QuestionText:   t.QuestionText,
			AmountLamports: t.AmountLamports,
			FeeBps:         t.FeeBps,
			Status:         status,
			Settling:       settling,
			ExpiresAt:      t.ExpiresAt,
			CreatedAt:      t.CreatedAt,
		}
		if a, ok := answers[t.ID]; ok {
			item.Answer = &a
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *CreatorService) SetWallet(ctx context.Context, userID uint, address string) (*models.User, error) {
	address = strings.TrimSpace(address)
	if err := solana.ValidateAddress(address); err != nil {
		return nil, ErrInvalidWallet
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	u.WalletAddress = address
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// ProfileInput carries the editable profile fields. Nil means unchanged.
type ProfileInput struct {
	DisplayName    *string
	Bio            *string
	TelegramHandle *string
	PriceLamports  *uint64
}

// SaveProfile trims and clamps text fields to their column sizes.
func (s *CreatorService) SaveProfile(ctx context.Context, userID uint, in ProfileInput) (*models.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.DisplayName != nil {
		u.DisplayName = clamp(strings.TrimSpace(*in.DisplayName), 80)
	}
	if in.Bio != nil {
		u.Bio = clamp(strings.TrimSpace(*in.Bio), 140)
	}
	if in.TelegramHandle != nil {
		u.TelegramHandle = clamp(strings.TrimPrefix(strings.TrimSpace(*in.TelegramHandle), "@"), 64)
	}
	if in.PriceLamports != nil {
		u.PriceLamports = *in.PriceLamports
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *CreatorService) SetAvatar(ctx context.Context, userID uint, file io.Reader) (*models.User, error) {
	if s.uploader == nil {
		return nil, ErrUploadsDisabled
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	url, err := s.uploader.UploadAvatar(ctx, file, u.ID)
	if err != nil {
		return nil, err
	}
	u.AvatarURL = url
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *CreatorService) SetFCMToken(ctx context.Context, userID uint, token string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	u.FCMToken = strings.TrimSpace(token)
	return s.users.Update(ctx, u)
}

// Leaderboard ranks creators by lamports released over the last 7 days.
func (s *CreatorService) Leaderboard(ctx context.Context, limit int) ([]repository.CreatorTotal, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.tips.Leaderboard(ctx, s.now().UTC().Add(-statsWindow), limit)
}

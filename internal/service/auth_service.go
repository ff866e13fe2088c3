package service

import (
	"context"
	"errors"
	"strings"

	"tipwall/config"
	"tipwall/internal/auth"
	"tipwall/internal/models"
	"tipwall/internal/repository"
)

var ErrInvalidProfile = errors.New("oauth profile is missing id or username")

type AuthService struct {
	cfg      *config.Config
	userRepo *repository.UserRepository
}

func NewAuthService(cfg *config.Config, userRepo *repository.UserRepository) *AuthService {
	return &AuthService{cfg: cfg, userRepo: userRepo}
}

// XProfile is the subset of the X /2/users/me response used at sign-in.
type XProfile struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	Name            string `json:"name"`
	ProfileImageURL string `json:"profile_image_url"`
}

// LoginWithX finds or creates the user for an X account and returns user,
// access token and whether the user is new. Handle and avatar follow X on
// every login; display name is only seeded once.
func (s *AuthService) LoginWithX(ctx context.Context, p XProfile) (*models.User, string, bool, error) {
	if p.ID == "" || p.Username == "" {
		return nil, "", false, ErrInvalidProfile
	}
	u, err := s.userRepo.GetByTwitterID(ctx, p.ID)
	isNew := false
	switch {
	case err == nil:
		changed := false
		if u.TwitterHandle != p.Username {
			u.TwitterHandle = p.Username
			changed = true
		}
		if p.ProfileImageURL != "" && u.AvatarURL == "" {
			u.AvatarURL = p.ProfileImageURL
			changed = true
		}
		if changed {
			if err := s.userRepo.Update(ctx, u); err != nil {
				return nil, "", false, err
			}
		}
	case errors.Is(err, repository.ErrUserNotFound):
		xid := p.ID
		name := strings.TrimSpace(p.Name)
		if name == "" {
			name = p.Username
		}
		u = &models.User{
			TwitterID:     &xid,
			TwitterHandle: p.Username,
			DisplayName:   clamp(name, 80),
			AvatarURL:     p.ProfileImageURL,
		}
		if err := s.userRepo.Create(ctx, u); err != nil {
			return nil, "", false, err
		}
		isNew = true
	default:
		return nil, "", false, err
	}
	token, err := auth.GenerateAccessToken(&s.cfg.JWT, u.ID, u.TwitterHandle)
	if err != nil {
		return nil, "", false, err
	}
	return u, token, isNew, nil
}

func clamp(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

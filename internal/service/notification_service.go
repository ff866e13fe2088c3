package service

import (
	"context"
	"encoding/json"
	"fmt"

	"tipwall/internal/domain"
	"tipwall/internal/fees"
	"tipwall/internal/models"
	"tipwall/internal/repository"
	"tipwall/internal/ws"

	"github.com/sirupsen/logrus"
)

// NotificationService stores a notification row, then fans it out to the
// user's live websocket connections and their registered device.
// A nil *NotificationService drops everything.
type NotificationService struct {
	repo     *repository.NotificationRepository
	userRepo *repository.UserRepository
	fcm      *FCMService
	hub      *ws.Hub
	log      logrus.FieldLogger
}

func NewNotificationService(repo *repository.NotificationRepository, userRepo *repository.UserRepository, fcm *FCMService, hub *ws.Hub, log logrus.FieldLogger) *NotificationService {
	return &NotificationService{repo: repo, userRepo: userRepo, fcm: fcm, hub: hub, log: log}
}

func (s *NotificationService) Notify(ctx context.Context, userID uint, tipID, notifType, title, body string, data map[string]interface{}) error {
	if s == nil {
		return nil
	}
	var dataJSON string
	if data != nil {
		b, _ := json.Marshal(data)
		dataJSON = string(b)
	}
	n := &models.Notification{
		UserID: userID,
		TipID:  tipID,
		Type:   notifType,
		Title:  title,
		Body:   body,
		Data:   dataJSON,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return err
	}
	if s.hub != nil {
		s.hub.BroadcastToUser(userID, n)
	}
	s.sendPush(ctx, userID, notifType, title, body, data)
	return nil
}

func (s *NotificationService) sendPush(ctx context.Context, userID uint, notifType, title, body string, data map[string]interface{}) {
	if s.fcm == nil || s.userRepo == nil {
		return
	}
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil || u.FCMToken == "" {
		return
	}
	_ = s.fcm.SendToUser(ctx, u.FCMToken, notifType, title, body, data)
}

// NotifyTipFunded tells the creator a paid question is waiting.
func (s *NotificationService) NotifyTipFunded(ctx context.Context, tip *models.Tip) error {
	amount := fees.LamportsToSOL(tip.AmountLamports).String()
	return s.Notify(ctx, tip.CreatorID, tip.ID, domain.NotifTipFunded, "New paid question",
		fmt.Sprintf("Someone tipped %s SOL: %s", amount, preview(tip.QuestionText)),
		map[string]interface{}{"tip_id": tip.ID, "amount_lamports": tip.AmountLamports, "expires_at": tip.ExpiresAt})
}

// NotifyTipReleased tells a signed-in asker their question was answered.
func (s *NotificationService) NotifyTipReleased(ctx context.Context, tip *models.Tip) error {
	if tip.AskerID == nil {
		return nil
	}
	return s.Notify(ctx, *tip.AskerID, tip.ID, domain.NotifTipReleased, "Your question was answered",
		preview(tip.QuestionText), map[string]interface{}{"tip_id": tip.ID})
}

// NotifyTipRefunded tells a signed-in asker their tip came back.
func (s *NotificationService) NotifyTipRefunded(ctx context.Context, tip *models.Tip) error {
	if tip.AskerID == nil {
		return nil
	}
	amount := fees.LamportsToSOL(tip.AmountLamports).String()
	return s.Notify(ctx, *tip.AskerID, tip.ID, domain.NotifTipRefunded, "Tip refunded",
		fmt.Sprintf("%s SOL was returned to your wallet", amount), map[string]interface{}{"tip_id": tip.ID})
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= 80 {
		return s
	}
	return string(r[:77]) + "..."
}

package service

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// FCMService sends push notifications via Firebase Cloud Messaging.
type FCMService struct {
	client *messaging.Client
	log    logrus.FieldLogger
}

// NewFCMService creates an FCM service. Returns nil if Firebase is not configured.
func NewFCMService(ctx context.Context, serviceAccountPath string, log logrus.FieldLogger) *FCMService {
	if serviceAccountPath == "" {
		return nil
	}
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(serviceAccountPath))
	if err != nil {
		log.WithError(err).Warn("[FCM] Failed to init Firebase app")
		return nil
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		log.WithError(err).Warn("[FCM] Failed to get Messaging client")
		return nil
	}
	return &FCMService{client: client, log: log}
}

// SendToUser pushes a notification to one device token. Data values are
// stringified since FCM only carries strings.
func (s *FCMService) SendToUser(ctx context.Context, token, notifType, title, body string, data map[string]interface{}) error {
	if s == nil || token == "" {
		return nil
	}
	msg := &messaging.Message{
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data:  pushData(notifType, data),
		Token: token,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
	}
	if _, err := s.client.Send(ctx, msg); err != nil {
		s.log.WithError(err).Warn("[FCM] Send error")
		return err
	}
	return nil
}

func pushData(notifType string, data map[string]interface{}) map[string]string {
	out := map[string]string{"type": notifType}
	for k, v := range data {
		switch val := v.(type) {
		case string:
			out[k] = val
		case fmt.Stringer:
			out[k] = val.String()
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

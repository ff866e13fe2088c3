package cloudinary

import (
	"context"
	"fmt"
	"io"

	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/cloudinary/cloudinary-go/v2/config"
)

// Client uploads creator avatars.
type Client interface {
	UploadAvatar(ctx context.Context, file io.Reader, userID uint) (url string, err error)
}

const (
	AvatarFolder = "tipwall/avatars"
	AvatarSize   = 256
)

// Square crop on the face, delivered in the best format the browser accepts.
const avatarEager = "q_auto,f_auto,w_256,h_256,c_fill,g_face"

var eagerAsyncFalse = false

// BuildAvatarURL returns the delivery URL for an uploaded avatar.
func BuildAvatarURL(cloudName, publicID string) string {
	return fmt.Sprintf("https://res.cloudinary.com/%s/image/upload/q_auto,f_auto,w_%d,h_%d,c_fill,g_face/%s",
		cloudName, AvatarSize, AvatarSize, publicID)
}

// AvatarPublicID is stable per user so a new upload replaces the old one.
func AvatarPublicID(userID uint) string {
	return fmt.Sprintf("user_%d", userID)
}

type clientImpl struct {
	cloudName string
	uploader  *uploader.API
}

func (c *clientImpl) UploadAvatar(ctx context.Context, file io.Reader, userID uint) (string, error) {
	overwrite := true
	result, err := c.uploader.Upload(ctx, file, uploader.UploadParams{
		Folder:     AvatarFolder,
		PublicID:   AvatarPublicID(userID),
		Overwrite:  &overwrite,
		Eager:      avatarEager,
		EagerAsync: &eagerAsyncFalse,
	})
	if err != nil {
		return "", err
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("cloudinary: %s", result.Error.Message)
	}
	if len(result.Eager) > 0 && result.Eager[0].SecureURL != "" {
		return result.Eager[0].SecureURL, nil
	}
	return BuildAvatarURL(c.cloudName, result.PublicID), nil
}

// NewClientFromParams builds a Client from Cloudinary cloud name, API key, and secret.
func NewClientFromParams(cloudName, apiKey, apiSecret string) (Client, error) {
	cfg, err := config.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, err
	}
	up, err := uploader.NewWithConfiguration(cfg)
	if err != nil {
		return nil, err
	}
	return &clientImpl{
		cloudName: cloudName,
		uploader:  up,
	}, nil
}

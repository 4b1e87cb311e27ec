package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"halfjourney/internal/domain"
)

type AssetReader interface {
	Metadata(ctx context.Context, key string) (domain.AssetMetadata, error)
	PublicURL(key string) string
}

type FollowupPoster interface {
	PostFollowup(ctx context.Context, token, content string) error
}

// DeliveryMessage is a pure function of the asset's metadata and key, so a
// redelivered creation event produces identical content.
func DeliveryMessage(userID, assetURL string) string {
	return fmt.Sprintf("Your AI generated image!\n<@%s>\n%s", userID, assetURL)
}

// FailureMessage tells the user their request produced no image.
func FailureMessage(userID string) string {
	return fmt.Sprintf("Sorry <@%s>, your image could not be generated.", userID)
}

// DeliveryService posts a stored asset back into its conversation.
type DeliveryService struct {
	assets AssetReader
	poster FollowupPoster
}

func NewDeliveryService(assets AssetReader, poster FollowupPoster) (*DeliveryService, error) {
	if assets == nil {
		return nil, errors.New("usecase: asset reader must not be nil")
	}
	if poster == nil {
		return nil, errors.New("usecase: followup poster must not be nil")
	}
	return &DeliveryService{assets: assets, poster: poster}, nil
}

func (s *DeliveryService) Deliver(ctx context.Context, key string) error {
	if !strings.HasPrefix(key, domain.PublicPrefix+"/") {
		return newError(ErrorInvalidInput, "unexpected_key", fmt.Errorf("key %q", key))
	}
	meta, err := s.assets.Metadata(ctx, key)
	if err != nil {
		return newError(ErrorPersistence, "s3_head_error", err)
	}
	if meta.InteractionToken == "" {
		return newError(ErrorInvalidInput, "missing_interaction_token", nil)
	}
	content := DeliveryMessage(meta.UserID, s.assets.PublicURL(key))
	if err := s.poster.PostFollowup(ctx, meta.InteractionToken, content); err != nil {
		return newError(ErrorUpstream, "webhook_error", err)
	}
	return nil
}

// FailureNotifyService tells the user when a request was marked failed.
type FailureNotifyService struct {
	poster FollowupPoster
}

func NewFailureNotifyService(poster FollowupPoster) (*FailureNotifyService, error) {
	if poster == nil {
		return nil, errors.New("usecase: followup poster must not be nil")
	}
	return &FailureNotifyService{poster: poster}, nil
}

// NotifyFailure posts only when the change moved the record into the failed
// state. It reports whether a message was sent.
func (s *FailureNotifyService) NotifyFailure(ctx context.Context, change domain.Modified) (bool, error) {
	if change.New.Status != domain.StatusFailed || change.Old.Status == domain.StatusFailed {
		return false, nil
	}
	if change.New.InteractionToken == "" {
		return false, newError(ErrorInvalidInput, "missing_interaction_token", nil)
	}
	if err := s.poster.PostFollowup(ctx, change.New.InteractionToken, FailureMessage(change.New.UserID)); err != nil {
		return false, newError(ErrorUpstream, "webhook_error", err)
	}
	return true, nil
}

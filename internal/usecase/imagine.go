package usecase

import (
	"context"
	"errors"
	"time"

	"halfjourney/internal/domain"
)

const (
	ImagineCommand = "imagine"

	imagineAckContent = "Your image is being generated. Please wait a moment."
	createdAtLayout   = "2006-01-02T15:04:05.000Z07:00"
)

type RequestWriter interface {
	InsertRequest(ctx context.Context, req domain.GenerationRequest) error
}

// ImagineService records a generation request and acknowledges it without
// waiting for synthesis, which is triggered by the table's change stream.
type ImagineService struct {
	store  RequestWriter
	scheme RequestIDScheme
	now    func() time.Time
}

func NewImagineService(store RequestWriter, scheme RequestIDScheme) (*ImagineService, error) {
	if store == nil {
		return nil, errors.New("usecase: request writer must not be nil")
	}
	if scheme == "" {
		scheme = RequestIDTimestamp
	}
	return &ImagineService{store: store, scheme: scheme, now: time.Now}, nil
}

func (s *ImagineService) HandleCommand(ctx context.Context, in CommandInput) (Reply, error) {
	req := s.newRequest(in)
	if err := s.store.InsertRequest(ctx, req); err != nil {
		return Reply{}, newError(ErrorPersistence, "dynamodb_insert_error", err)
	}
	return Reply{
		Type:    domain.ResponseChannelMessageWithSource,
		Content: imagineAckContent,
	}, nil
}

func (s *ImagineService) newRequest(in CommandInput) domain.GenerationRequest {
	now := s.now().UTC()
	return domain.GenerationRequest{
		RequestID:        s.scheme.build(in.User.ID, now),
		UserID:           in.User.ID,
		UserName:         in.User.Username,
		Prompt:           in.Prompt,
		Favorite:         false,
		CreatedAt:        now.Format(createdAtLayout),
		InteractionID:    in.InteractionID,
		InteractionToken: in.InteractionToken,
	}
}

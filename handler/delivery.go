package handler

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/aws/aws-lambda-go/events"
)

type Deliverer interface {
	Deliver(ctx context.Context, key string) error
}

// DeliveryHandler posts every newly created asset back to its conversation.
type DeliveryHandler struct {
	deliverer Deliverer
	opts      options
}

func NewDeliveryHandler(deliverer Deliverer, opts ...Option) (*DeliveryHandler, error) {
	if deliverer == nil {
		return nil, errors.New("handler: deliverer must not be nil")
	}
	return &DeliveryHandler{deliverer: deliverer, opts: buildOptions(opts)}, nil
}

func (h *DeliveryHandler) Handle(ctx context.Context, ev events.S3Event) (Response, error) {
	defer h.opts.flush(ctx)
	failed := 0
	for _, rec := range ev.Records {
		key, err := objectKey(rec.S3.Object)
		if err != nil {
			failed++
			h.opts.logger.ErrorContext(ctx, "undecodable object key", "key", rec.S3.Object.Key, "err", err)
			continue
		}
		if err := h.deliver(ctx, key); err != nil {
			failed++
			h.opts.metrics.ObserveDelivery("image", "error")
			h.opts.logger.ErrorContext(ctx, "delivery failed", "key", key, "err", err)
			continue
		}
		h.opts.metrics.ObserveDelivery("image", "sent")
		h.opts.logger.InfoContext(ctx, "image delivered", "key", key)
	}
	if failed > 0 {
		return errorResponse("error"), nil
	}
	return okResponse("ok"), nil
}

func (h *DeliveryHandler) deliver(ctx context.Context, key string) error {
	if h.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.timeout)
		defer cancel()
	}
	return h.deliverer.Deliver(ctx, key)
}

// objectKey returns the decoded key. Notifications carry keys URL-encoded
// with '+' for spaces.
func objectKey(obj events.S3Object) (string, error) {
	if obj.URLDecodedKey != "" {
		return obj.URLDecodedKey, nil
	}
	key, err := url.QueryUnescape(obj.Key)
	if err != nil {
		return "", fmt.Errorf("decode key %q: %w", obj.Key, err)
	}
	return key, nil
}

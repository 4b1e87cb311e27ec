package handler

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"halfjourney/internal/domain"
	"halfjourney/internal/repository"
)

const (
	bodyOK     = `"ok"`
	bodyIgnore = `"ignore"`
)

type Synthesizer interface {
	Synthesize(ctx context.Context, req domain.GenerationRequest) (string, error)
}

type FailureNotifier interface {
	NotifyFailure(ctx context.Context, change domain.Modified) (bool, error)
}

// StreamHandler consumes the requests table's change stream. Inserted
// records are synthesized; modified records are offered to the optional
// failure notifier; removals are ignored.
//
// Errors never escape as a Lambda error. A failed record turns the result
// into a 500 but does not make the stream re-drive the batch.
type StreamHandler struct {
	synth    Synthesizer
	notifier FailureNotifier
	opts     options
}

// NewStreamHandler builds the handler. notifier may be nil.
func NewStreamHandler(synth Synthesizer, notifier FailureNotifier, opts ...Option) (*StreamHandler, error) {
	if synth == nil {
		return nil, errors.New("handler: synthesizer must not be nil")
	}
	return &StreamHandler{synth: synth, notifier: notifier, opts: buildOptions(opts)}, nil
}

func (h *StreamHandler) Handle(ctx context.Context, ev events.DynamoDBEvent) (Response, error) {
	defer h.opts.flush(ctx)
	var handled, failed int
	for _, rec := range ev.Records {
		log := h.opts.logger.With("eventId", rec.EventID, "eventName", rec.EventName)
		change, err := repository.ChangeEventFromRecord(rec)
		if err != nil {
			log.WarnContext(ctx, "skipping stream record", "err", err)
			continue
		}
		ok, err := h.handleChange(ctx, change)
		if err != nil {
			failed++
			log.ErrorContext(ctx, "stream record failed", "err", err)
			continue
		}
		if ok {
			handled++
		}
	}

	switch {
	case failed > 0:
		return errorResponse(mustJSON(messageResponse{Message: messageInternal})), nil
	case handled == 0:
		return okResponse(bodyIgnore), nil
	default:
		return okResponse(bodyOK), nil
	}
}

// handleChange reports whether the change was acted on.
func (h *StreamHandler) handleChange(ctx context.Context, change domain.ChangeEvent) (bool, error) {
	if h.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.timeout)
		defer cancel()
	}

	switch c := change.(type) {
	case domain.Inserted:
		return true, h.synthesize(ctx, c.New)
	case domain.Modified:
		if h.notifier == nil {
			return false, nil
		}
		sent, err := h.notifier.NotifyFailure(ctx, c)
		switch {
		case err != nil:
			h.opts.metrics.ObserveDelivery("failure", "error")
		case sent:
			h.opts.metrics.ObserveDelivery("failure", "sent")
			h.opts.logger.InfoContext(ctx, "failure notice sent", "requestId", c.New.RequestID, "userId", c.New.UserID)
		}
		return sent, err
	default:
		return false, nil
	}
}

func (h *StreamHandler) synthesize(ctx context.Context, req domain.GenerationRequest) error {
	start := time.Now()
	key, err := h.synth.Synthesize(ctx, req)
	outcome := "stored"
	switch {
	case err != nil:
		outcome = "error"
	case key == "":
		outcome = "failed"
	}
	h.opts.metrics.ObserveSynthesis(outcome, time.Since(start))
	return err
}

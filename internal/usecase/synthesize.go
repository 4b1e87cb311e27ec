package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"halfjourney/internal/domain"
)

// recordTimeout bounds the outcome patch, which runs even when the
// invocation's context has already expired.
const recordTimeout = 5 * time.Second

// FailureMode controls what a failed synthesis leaves behind.
type FailureMode string

const (
	// FailureLegacy patches an empty image key and reports success. The user
	// never hears back; the missing object is the only failure signal.
	FailureLegacy FailureMode = "legacy"
	// FailureExplicit patches an empty image key together with a failed
	// status, which the failure notifier turns into a follow-up message.
	FailureExplicit FailureMode = "explicit"
)

func ParseFailureMode(s string) (FailureMode, error) {
	switch FailureMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", FailureLegacy:
		return FailureLegacy, nil
	case FailureExplicit:
		return FailureExplicit, nil
	default:
		return "", fmt.Errorf("usecase: unknown failure mode %q", s)
	}
}

type Synthesizer interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

type AssetWriter interface {
	PutAsset(ctx context.Context, key string, image []byte, meta domain.AssetMetadata) error
}

type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, userID, requestID string, out domain.SynthesisOutcome) error
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// SynthesisService turns a newly inserted request into a stored asset.
type SynthesisService struct {
	synth   Synthesizer
	assets  AssetWriter
	records OutcomeRecorder
	mode    FailureMode
	logger  *slog.Logger
}

func NewSynthesisService(synth Synthesizer, assets AssetWriter, records OutcomeRecorder, mode FailureMode, logger *slog.Logger) (*SynthesisService, error) {
	if synth == nil {
		return nil, errors.New("usecase: synthesizer must not be nil")
	}
	if assets == nil {
		return nil, errors.New("usecase: asset writer must not be nil")
	}
	if records == nil {
		return nil, errors.New("usecase: outcome recorder must not be nil")
	}
	if mode == "" {
		mode = FailureLegacy
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SynthesisService{synth: synth, assets: assets, records: records, mode: mode, logger: logger}, nil
}

// Synthesize generates the image, stores it with correlation metadata and
// patches the request's image key. It returns the key written, which is ""
// when synthesis failed.
//
// In legacy mode a failed synthesis is swallowed after the sentinel patch.
// In explicit mode the failure is recorded and also returned.
func (s *SynthesisService) Synthesize(ctx context.Context, req domain.GenerationRequest) (string, error) {
	if req.UserID == "" || req.RequestID == "" {
		return "", newError(ErrorInvalidInput, "missing_request_keys", nil)
	}
	log := s.logger.With("requestId", req.RequestID, "userId", req.UserID)

	img, err := s.synth.Generate(ctx, req.Prompt)
	if err != nil {
		return "", s.fail(ctx, log, req, newError(ErrorUpstream, "synthesis_error", err))
	}

	key := req.AssetKey()
	if err := s.assets.PutAsset(ctx, key, img, req.AssetMetadata()); err != nil {
		return "", s.fail(ctx, log, req, newError(ErrorPersistence, "s3_put_error", err))
	}

	out := domain.SynthesisOutcome{ImageKey: key}
	if s.mode == FailureExplicit {
		out.Status = domain.StatusCompleted
	}
	if err := s.record(ctx, req, out); err != nil {
		return key, newError(ErrorPersistence, "dynamodb_update_error", err)
	}
	log.InfoContext(ctx, "image stored", "key", key, "bytes", len(img))
	return key, nil
}

func (s *SynthesisService) fail(ctx context.Context, log *slog.Logger, req domain.GenerationRequest, cause *Error) error {
	attrs := []any{"reason", cause.Reason, "err", cause.Err}
	if status, ok := upstreamStatusCode(cause.Err); ok {
		attrs = append(attrs, "upstreamStatus", status)
	}
	log.ErrorContext(ctx, "synthesis failed", attrs...)

	out := domain.SynthesisOutcome{}
	if s.mode == FailureExplicit {
		out.Status = domain.StatusFailed
		out.FailureReason = cause.Reason
	}
	if err := s.record(ctx, req, out); err != nil {
		return newError(ErrorPersistence, "dynamodb_update_error", errors.Join(cause, err))
	}
	if s.mode == FailureExplicit {
		return cause
	}
	return nil
}

func (s *SynthesisService) record(ctx context.Context, req domain.GenerationRequest, out domain.SynthesisOutcome) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	return s.records.RecordOutcome(ctx, req.UserID, req.RequestID, out)
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"halfjourney/internal/domain"
	"halfjourney/internal/usecase"
	"halfjourney/internal/verify"
)

const (
	messageNoBody           = "No body"
	messageInvalidBody      = "invalid request body"
	messageInvalidSignature = "invalid request signature"
	messageInternal         = "Some error happened"
)

type SignatureVerifier interface {
	Verify(signatureHex, timestamp string, body []byte) bool
}

type InteractionRouter interface {
	Route(ctx context.Context, in domain.Interaction) (usecase.Reply, error)
}

type messageResponse struct {
	Message string `json:"message"`
}

type interactionResponse struct {
	Type domain.ResponseType      `json:"type"`
	Data *interactionResponseData `json:"data,omitempty"`
}

type interactionResponseData struct {
	Content string `json:"content"`
}

// InteractionHandler answers the chat platform's interaction callbacks.
type InteractionHandler struct {
	verifier SignatureVerifier
	router   InteractionRouter
	opts     options
}

func NewInteractionHandler(verifier SignatureVerifier, router InteractionRouter, opts ...Option) (*InteractionHandler, error) {
	if verifier == nil {
		return nil, errors.New("handler: verifier must not be nil")
	}
	if router == nil {
		return nil, errors.New("handler: router must not be nil")
	}
	return &InteractionHandler{verifier: verifier, router: router, opts: buildOptions(opts)}, nil
}

// Handle verifies the signature over the exact received bytes, then parses
// and routes the interaction.
func (h *InteractionHandler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	defer h.opts.flush(ctx)
	correlationID := headerValue(req.Headers, req.MultiValueHeaders, headerCorrelationID)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	log := h.opts.logger.With("correlationId", correlationID)

	if req.Body == "" {
		h.opts.metrics.ObserveInteraction("no_body")
		return jsonAPIResponse(http.StatusBadRequest, correlationID, messageResponse{Message: messageNoBody}), nil
	}

	raw := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			log.WarnContext(ctx, "body is not valid base64", "err", err)
			h.opts.metrics.ObserveInteraction("invalid_body")
			return jsonAPIResponse(http.StatusBadRequest, correlationID, messageResponse{Message: messageInvalidBody}), nil
		}
		raw = decoded
	}

	signature := headerValue(req.Headers, req.MultiValueHeaders, verify.HeaderSignature)
	timestamp := headerValue(req.Headers, req.MultiValueHeaders, verify.HeaderTimestamp)
	if !h.verifier.Verify(signature, timestamp, raw) {
		log.WarnContext(ctx, "rejected interaction", "reason", "invalid_signature")
		h.opts.metrics.ObserveInteraction("unauthorized")
		return jsonAPIResponse(http.StatusUnauthorized, correlationID, messageResponse{Message: messageInvalidSignature}), nil
	}

	var in domain.Interaction
	if err := json.Unmarshal(raw, &in); err != nil {
		log.WarnContext(ctx, "invalid interaction body", "err", err)
		h.opts.metrics.ObserveInteraction("invalid_body")
		return jsonAPIResponse(http.StatusBadRequest, correlationID, messageResponse{Message: messageInvalidBody}), nil
	}

	reply, err := h.router.Route(ctx, in)
	if err != nil {
		attrs := []any{"type", in.Type, "interactionId", in.ID, "err", err}
		var usecaseErr *usecase.Error
		if errors.As(err, &usecaseErr) {
			attrs = append(attrs, "code", usecaseErr.Code, "reason", usecaseErr.Reason)
		}
		log.ErrorContext(ctx, "interaction failed", attrs...)
		h.opts.metrics.ObserveInteraction("error")
		return jsonAPIResponse(http.StatusInternalServerError, correlationID, messageResponse{Message: messageInternal}), nil
	}

	log.InfoContext(ctx, "interaction handled", "type", in.Type, "interactionId", in.ID, "responseType", reply.Type)
	h.opts.metrics.ObserveInteraction(resultLabel(in.Type, reply))
	return jsonAPIResponse(http.StatusOK, correlationID, replyBody(reply)), nil
}

func replyBody(reply usecase.Reply) any {
	switch reply.Type {
	case 0:
		return messageResponse{Message: reply.Message}
	case domain.ResponsePong:
		return interactionResponse{Type: reply.Type}
	default:
		return interactionResponse{Type: reply.Type, Data: &interactionResponseData{Content: reply.Content}}
	}
}

func resultLabel(t domain.InteractionType, reply usecase.Reply) string {
	switch {
	case t == domain.InteractionPing:
		return "ping"
	case reply.Type == 0:
		return "ignored"
	default:
		return "command"
	}
}

func jsonAPIResponse(status int, correlationID string, body any) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			headerContentType:   contentTypeJSON,
			headerCorrelationID: correlationID,
		},
		Body: mustJSON(body),
	}
}

func headerValue(headers map[string]string, multi map[string][]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	for k, vs := range multi {
		if strings.EqualFold(k, name) && len(vs) > 0 {
			return strings.TrimSpace(vs[0])
		}
	}
	return ""
}

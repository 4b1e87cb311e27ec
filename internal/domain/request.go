package domain

// GenerationStatus records the synthesis outcome. It is only written when
// failures are reported explicitly; legacy records never carry it.
type GenerationStatus string

const (
	StatusCompleted GenerationStatus = "completed"
	StatusFailed    GenerationStatus = "failed"
)

// GenerationRequest is the durable record of one /imagine invocation.
// Attribute names match the deployed table (hash UserId, range PromptId).
type GenerationRequest struct {
	RequestID        string           `dynamodbav:"PromptId"`
	UserID           string           `dynamodbav:"UserId"`
	UserName         string           `dynamodbav:"UserName"`
	Prompt           string           `dynamodbav:"prompt"`
	Favorite         bool             `dynamodbav:"Favorite"`
	CreatedAt        string           `dynamodbav:"CreatedAt"`
	InteractionID    string           `dynamodbav:"InteractionId"`
	InteractionToken string           `dynamodbav:"InteractionToken"`
	ImageKey         *string          `dynamodbav:"Key,omitempty"`
	Status           GenerationStatus `dynamodbav:"GenerationStatus,omitempty"`
	FailureReason    string           `dynamodbav:"FailureReason,omitempty"`
}

// AssetKey is the object key the synthesized image is stored under.
func (r GenerationRequest) AssetKey() string {
	return AssetKey(r.UserID, r.RequestID)
}

// AssetMetadata is the correlation metadata for this request.
func (r GenerationRequest) AssetMetadata() AssetMetadata {
	return AssetMetadata{
		InteractionID:    r.InteractionID,
		UserID:           r.UserID,
		RequestID:        r.RequestID,
		InteractionToken: r.InteractionToken,
	}
}

// SynthesisOutcome is the single patch applied to a request once synthesis
// finishes. An empty Status writes only the image key.
type SynthesisOutcome struct {
	ImageKey      string
	Status        GenerationStatus
	FailureReason string
}

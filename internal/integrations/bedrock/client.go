package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"halfjourney/internal/domain"
)

const DefaultModelID = "stability.stable-diffusion-xl-v0"

// runtimeAPI is the minimal Bedrock runtime interface required by Client.
type runtimeAPI interface {
	InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Client synthesizes images through a Stability model hosted on Bedrock.
type Client struct {
	api     runtimeAPI
	modelID string
}

func NewClient(api runtimeAPI, modelID string) (*Client, error) {
	if api == nil {
		return nil, errors.New("bedrock: api must not be nil")
	}
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		modelID = DefaultModelID
	}
	return &Client{api: api, modelID: modelID}, nil
}

func (c *Client) Generate(ctx context.Context, prompt string) ([]byte, error) {
	body, err := json.Marshal(domain.NewTextToImageRequest(prompt))
	if err != nil {
		return nil, fmt.Errorf("bedrock: marshal request: %w", err)
	}

	out, err := c.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock: invoke model %q: %w", c.modelID, err)
	}
	if out == nil {
		return nil, errors.New("bedrock: empty invoke response")
	}

	var payload domain.TextToImageResponse
	if err := json.Unmarshal(out.Body, &payload); err != nil {
		return nil, fmt.Errorf("bedrock: decode response: %w", err)
	}
	img, err := payload.FirstImage()
	if err != nil {
		return nil, fmt.Errorf("bedrock: %w", err)
	}
	return img, nil
}

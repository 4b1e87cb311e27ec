package domain

import (
	"encoding/base64"
	"errors"
	"fmt"
)

const (
	synthesisSize     = 512
	synthesisSampler  = "DDIM"
	synthesisSteps    = 50
	synthesisCFGScale = 8
)

// TextToImageRequest is the text-to-image body shared by the synthesis
// backends.
type TextToImageRequest struct {
	CFGScale    int          `json:"cfg_scale"`
	Height      int          `json:"height"`
	Width       int          `json:"width"`
	Sampler     string       `json:"sampler"`
	Samples     int          `json:"samples"`
	Steps       int          `json:"steps"`
	TextPrompts []TextPrompt `json:"text_prompts"`
}

type TextPrompt struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
}

// NewTextToImageRequest builds the fixed-parameter request for one sample.
func NewTextToImageRequest(prompt string) TextToImageRequest {
	return TextToImageRequest{
		CFGScale:    synthesisCFGScale,
		Height:      synthesisSize,
		Width:       synthesisSize,
		Sampler:     synthesisSampler,
		Samples:     1,
		Steps:       synthesisSteps,
		TextPrompts: []TextPrompt{{Text: prompt, Weight: 1}},
	}
}

type TextToImageResponse struct {
	Result    string     `json:"result,omitempty"`
	Artifacts []Artifact `json:"artifacts"`
}

type Artifact struct {
	Base64       string `json:"base64"`
	Seed         int64  `json:"seed,omitempty"`
	FinishReason string `json:"finishReason,omitempty"`
}

// FirstImage decodes artifacts[0]. Any further artifacts are ignored.
func (r TextToImageResponse) FirstImage() ([]byte, error) {
	if len(r.Artifacts) == 0 {
		return nil, errors.New("no artifacts in response")
	}
	if r.Artifacts[0].Base64 == "" {
		return nil, errors.New("first artifact has no image data")
	}
	img, err := base64.StdEncoding.DecodeString(r.Artifacts[0].Base64)
	if err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	return img, nil
}

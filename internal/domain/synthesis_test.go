package domain

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewTextToImageRequest_FixedParameters(t *testing.T) {
	raw, err := json.Marshal(NewTextToImageRequest("a red fox"))
	require.NoError(t, err)
	require.JSONEq(t, `{
		"cfg_scale": 8,
		"height": 512,
		"width": 512,
		"sampler": "DDIM",
		"samples": 1,
		"steps": 50,
		"text_prompts": [{"text": "a red fox", "weight": 1}]
	}`, string(raw))
}

func TestFirstImage(t *testing.T) {
	resp := TextToImageResponse{Artifacts: []Artifact{
		{Base64: base64.StdEncoding.EncodeToString([]byte("first"))},
		{Base64: base64.StdEncoding.EncodeToString([]byte("second"))},
	}}
	img, err := resp.FirstImage()
	require.NoError(t, err)
	require.Equal(t, []byte("first"), img)

	_, err = TextToImageResponse{}.FirstImage()
	require.ErrorContains(t, err, "no artifacts")

	_, err = TextToImageResponse{Artifacts: []Artifact{{}}}.FirstImage()
	require.ErrorContains(t, err, "no image data")

	_, err = TextToImageResponse{Artifacts: []Artifact{{Base64: "%%%"}}}.FirstImage()
	require.ErrorContains(t, err, "decode artifact")
}

package assetstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"halfjourney/internal/domain"
)

const contentTypePNG = "image/png"

// s3API is the minimal S3 interface required by Client.
// *s3.Client from aws-sdk-go-v2 satisfies this interface.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Client stores generated images in a single bucket.
type Client struct {
	api           s3API
	bucket        string
	region        string
	publicBaseURL string
}

type Option func(*Client)

// WithPublicBaseURL serves asset URLs from baseURL instead of the bucket's
// virtual-hosted endpoint.
func WithPublicBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.publicBaseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

func New(api s3API, bucket, region string, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, errors.New("assetstore: api must not be nil")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("assetstore: bucket must not be empty")
	}
	region = strings.TrimSpace(region)
	if region == "" {
		return nil, errors.New("assetstore: region must not be empty")
	}
	c := &Client{api: api, bucket: bucket, region: region}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// PutAsset writes the image with the correlation metadata as object attributes.
func (c *Client) PutAsset(ctx context.Context, key string, image []byte, meta domain.AssetMetadata) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("assetstore: PutAsset: key is required")
	}
	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(image),
		ContentType: aws.String(contentTypePNG),
		Metadata:    meta.Map(),
	})
	if err != nil {
		return fmt.Errorf("assetstore: PutAsset %q: %w", key, err)
	}
	return nil
}

// Metadata reads the object's metadata without fetching its payload.
func (c *Client) Metadata(ctx context.Context, key string) (domain.AssetMetadata, error) {
	if strings.TrimSpace(key) == "" {
		return domain.AssetMetadata{}, errors.New("assetstore: Metadata: key is required")
	}
	out, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return domain.AssetMetadata{}, fmt.Errorf("assetstore: Metadata %q: %w", key, err)
	}
	if out == nil {
		return domain.AssetMetadata{}, fmt.Errorf("assetstore: Metadata %q: empty response", key)
	}
	return domain.AssetMetadataFromMap(out.Metadata), nil
}

// PublicURL returns the URL the asset is reachable at.
func (c *Client) PublicURL(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	path := strings.Join(segments, "/")
	if c.publicBaseURL != "" {
		return c.publicBaseURL + "/" + path
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", c.bucket, c.region, path)
}

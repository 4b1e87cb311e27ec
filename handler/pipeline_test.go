package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"

	"halfjourney/internal/assetstore"
	"halfjourney/internal/integrations/discord"
	"halfjourney/internal/integrations/paramstore"
	"halfjourney/internal/integrations/stability"
	"halfjourney/internal/repository"
	"halfjourney/internal/usecase"
)

// fakeTable is an in-memory requests table that applies SET updates and
// keeps the images needed to replay them as stream records.
type fakeTable struct {
	mu      sync.Mutex
	items   map[string]map[string]types.AttributeValue
	changes []events.DynamoDBEventRecord
}

func newFakeTable() *fakeTable {
	return &fakeTable{items: map[string]map[string]types.AttributeValue{}}
}

func itemKey(item map[string]types.AttributeValue) string {
	return attrString(item["UserId"]) + "|" + attrString(item["PromptId"])
}

func attrString(v types.AttributeValue) string {
	if s, ok := v.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func (f *fakeTable) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := itemKey(in.Item)
	if _, ok := f.items[k]; ok {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("exists")}
	}
	f.items[k] = copyItem(in.Item)
	f.changes = append(f.changes, streamRecord(events.DynamoDBOperationTypeInsert, nil, in.Item))
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeTable) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[itemKey(in.Key)]
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("missing")}
	}
	if _, patched := item["Key"]; patched {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("patched")}
	}
	old := copyItem(item)
	for placeholder, attr := range in.ExpressionAttributeNames {
		item[attr] = in.ExpressionAttributeValues[":"+strings.TrimPrefix(placeholder, "#")]
	}
	f.changes = append(f.changes, streamRecord(events.DynamoDBOperationTypeModify, old, item))
	return &dynamodb.UpdateItemOutput{}, nil
}

// drain returns the stream records produced since the last call.
func (f *fakeTable) drain() events.DynamoDBEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev := events.DynamoDBEvent{Records: f.changes}
	f.changes = nil
	return ev
}

func (f *fakeTable) only(t *testing.T) map[string]types.AttributeValue {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.items, 1)
	for _, item := range f.items {
		return copyItem(item)
	}
	return nil
}

func streamRecord(op events.DynamoDBOperationType, oldItem, newItem map[string]types.AttributeValue) events.DynamoDBEventRecord {
	return events.DynamoDBEventRecord{
		EventName: string(op),
		Change: events.DynamoDBStreamRecord{
			OldImage: toStreamImage(oldItem),
			NewImage: toStreamImage(newItem),
		},
	}
}

func toStreamImage(item map[string]types.AttributeValue) map[string]events.DynamoDBAttributeValue {
	if item == nil {
		return nil
	}
	out := make(map[string]events.DynamoDBAttributeValue, len(item))
	for k, v := range item {
		switch v := v.(type) {
		case *types.AttributeValueMemberS:
			out[k] = events.NewStringAttribute(v.Value)
		case *types.AttributeValueMemberBOOL:
			out[k] = events.NewBooleanAttribute(v.Value)
		}
	}
	return out
}

// fakeBucket stores objects and, like S3, lower-cases user metadata keys.
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	meta    map[string]map[string]string
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string][]byte{}, meta: map[string]map[string]string{}}
}

func (b *fakeBucket) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	meta := map[string]string{}
	for k, v := range in.Metadata {
		meta[strings.ToLower(k)] = v
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	key := aws.ToString(in.Key)
	b.objects[key] = body
	b.meta[key] = meta
	return &s3.PutObjectOutput{}, nil
}

func (b *fakeBucket) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	meta, ok := b.meta[aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NotFound")
	}
	return &s3.HeadObjectOutput{Metadata: meta}, nil
}

func (b *fakeBucket) keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.objects))
	for k := range b.objects {
		out = append(out, k)
	}
	return out
}

type webhookCall struct {
	Path    string
	Content string
}

type pipeline struct {
	table     *fakeTable
	bucket    *fakeBucket
	webhooks  []webhookCall
	mu        sync.Mutex
	imageCode int

	interactions *InteractionHandler
	stream       *StreamHandler
	delivery     *DeliveryHandler
}

func newPipeline(t *testing.T, mode usecase.FailureMode) *pipeline {
	t.Helper()
	p := &pipeline{table: newFakeTable(), bucket: newFakeBucket(), imageCode: http.StatusOK}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	stabilitySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p.imageCode != http.StatusOK {
			w.WriteHeader(p.imageCode)
			_, _ = io.WriteString(w, `{"message":"engine overloaded"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"artifacts":[{"base64":%q,"seed":1,"finishReason":"SUCCESS"}]}`,
			base64.StdEncoding.EncodeToString([]byte("png-bytes")))
	}))
	t.Cleanup(stabilitySrv.Close)

	discordSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg struct {
			Content string `json:"content"`
		}
		_ = json.NewDecoder(r.Body).Decode(&msg)
		p.mu.Lock()
		p.webhooks = append(p.webhooks, webhookCall{Path: r.URL.Path, Content: msg.Content})
		p.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(discordSrv.Close)

	repo, err := repository.New(p.table, "requests")
	require.NoError(t, err)
	assets, err := assetstore.New(p.bucket, "halfjourney-images", "eu-north-1")
	require.NoError(t, err)
	synth, err := stability.NewClient(paramstore.StaticSecret("sk-test"), stability.WithBaseURL(stabilitySrv.URL))
	require.NoError(t, err)
	poster, err := discord.NewClient("app-1", discord.WithBaseURL(discordSrv.URL))
	require.NoError(t, err)

	imagine, err := usecase.NewImagineService(repo, usecase.RequestIDTimestamp)
	require.NoError(t, err)
	router := usecase.NewRouter()
	require.NoError(t, router.Register(usecase.ImagineCommand, imagine))
	p.interactions, err = NewInteractionHandler(testVerifier(t), router, WithLogger(logger))
	require.NoError(t, err)

	synthesis, err := usecase.NewSynthesisService(synth, assets, repo, mode, logger)
	require.NoError(t, err)
	var notifier FailureNotifier
	if mode == usecase.FailureExplicit {
		notifier, err = usecase.NewFailureNotifyService(poster)
		require.NoError(t, err)
	}
	p.stream, err = NewStreamHandler(synthesis, notifier, WithLogger(logger))
	require.NoError(t, err)

	deliverer, err := usecase.NewDeliveryService(assets, poster)
	require.NoError(t, err)
	p.delivery, err = NewDeliveryHandler(deliverer, WithLogger(logger))
	require.NoError(t, err)
	return p
}

func (p *pipeline) imagine(t *testing.T, prompt string) {
	t.Helper()
	body := fmt.Sprintf(`{"type":2,"id":"int-1","token":"tok-1","data":{"name":"imagine","options":[{"name":"prompt","type":3,"value":%q}]},"member":{"user":{"id":"42","username":"kay"}}}`, prompt)
	resp, err := p.interactions.Handle(context.Background(), signedEvent(body))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"type":4,"data":{"content":"Your image is being generated. Please wait a moment."}}`, resp.Body)
}

func TestPipeline_ImagineToDelivery(t *testing.T) {
	p := newPipeline(t, usecase.FailureLegacy)
	p.imagine(t, "a red fox")

	item := p.table.only(t)
	requestID := attrString(item["PromptId"])
	require.True(t, strings.HasPrefix(requestID, "42-"))
	require.Equal(t, "a red fox", attrString(item["prompt"]))
	require.NotContains(t, item, "Key")

	resp, err := p.stream.Handle(context.Background(), p.table.drain())
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	key := "public/42/" + requestID + ".png"
	require.Equal(t, []string{key}, p.bucket.keys())
	require.Equal(t, []byte("png-bytes"), p.bucket.objects[key])
	require.Equal(t, key, attrString(p.table.only(t)["Key"]))

	// The key patch shows up on the stream as a modification and is ignored.
	resp, err = p.stream.Handle(context.Background(), p.table.drain())
	require.NoError(t, err)
	require.Equal(t, Response{StatusCode: 200, Body: `"ignore"`}, resp)

	resp, err = p.delivery.Handle(context.Background(), events.S3Event{Records: []events.S3EventRecord{s3Record(key)}})
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, []webhookCall{{
		Path:    "/webhooks/app-1/tok-1",
		Content: "Your AI generated image!\n<@42>\nhttps://halfjourney-images.s3.eu-north-1.amazonaws.com/" + key,
	}}, p.webhooks)
}

func TestPipeline_UpstreamFailureLeavesNoObject(t *testing.T) {
	p := newPipeline(t, usecase.FailureLegacy)
	p.imageCode = http.StatusInternalServerError
	p.imagine(t, "a red fox")

	resp, err := p.stream.Handle(context.Background(), p.table.drain())
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	require.Empty(t, p.bucket.keys())
	item := p.table.only(t)
	require.Contains(t, item, "Key")
	require.Equal(t, "", attrString(item["Key"]))
	require.NotContains(t, item, "GenerationStatus")
	require.Empty(t, p.webhooks)
}

func TestPipeline_ExplicitFailureNotifiesUser(t *testing.T) {
	p := newPipeline(t, usecase.FailureExplicit)
	p.imageCode = http.StatusTooManyRequests
	p.imagine(t, "a red fox")

	resp, err := p.stream.Handle(context.Background(), p.table.drain())
	require.NoError(t, err)
	require.Equal(t, 500, resp.StatusCode)

	item := p.table.only(t)
	require.Equal(t, "failed", attrString(item["GenerationStatus"]))
	require.Equal(t, "synthesis_error", attrString(item["FailureReason"]))
	require.Empty(t, p.bucket.keys())

	resp, err = p.stream.Handle(context.Background(), p.table.drain())
	require.NoError(t, err)
	require.Equal(t, Response{StatusCode: 200, Body: `"ok"`}, resp)
	require.Equal(t, []webhookCall{{
		Path:    "/webhooks/app-1/tok-1",
		Content: "Sorry <@42>, your image could not be generated.",
	}}, p.webhooks)
}

func TestPipeline_DuplicateStreamDeliveryPatchesOnce(t *testing.T) {
	p := newPipeline(t, usecase.FailureLegacy)
	p.imagine(t, "a red fox")
	inserted := p.table.drain()

	_, err := p.stream.Handle(context.Background(), inserted)
	require.NoError(t, err)
	resp, err := p.stream.Handle(context.Background(), inserted)
	require.NoError(t, err)
	require.Equal(t, 500, resp.StatusCode)
	require.Len(t, p.bucket.keys(), 1)
}

func TestPipeline_RedeliveredInsertAfterFailureKeepsFailedRecord(t *testing.T) {
	p := newPipeline(t, usecase.FailureExplicit)
	p.imageCode = http.StatusTooManyRequests
	p.imagine(t, "a red fox")
	inserted := p.table.drain()

	_, err := p.stream.Handle(context.Background(), inserted)
	require.NoError(t, err)
	p.table.drain()

	p.imageCode = http.StatusOK
	resp, err := p.stream.Handle(context.Background(), inserted)
	require.NoError(t, err)
	require.Equal(t, 500, resp.StatusCode)

	item := p.table.only(t)
	require.Equal(t, "", attrString(item["Key"]))
	require.Equal(t, "failed", attrString(item["GenerationStatus"]))
	// The object from the second attempt is stored; its creation event
	// still produces a delivery.
	require.Len(t, p.bucket.keys(), 1)
	require.Empty(t, p.table.drain().Records)
}

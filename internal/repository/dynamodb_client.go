package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"halfjourney/internal/domain"
)

const (
	attrUserID    = "UserId"
	attrRequestID = "PromptId"
	attrImageKey  = "Key"
	attrStatus    = "GenerationStatus"
	attrReason    = "FailureReason"

	insertCondition = "attribute_not_exists(" + attrUserID + ") AND attribute_not_exists(" + attrRequestID + ")"
	patchCondition  = "attribute_exists(" + attrRequestID + ") AND attribute_not_exists(#key)"
)

var (
	// ErrRequestExists is returned when an insert collides with an existing record.
	ErrRequestExists = errors.New("repository: request already exists")
	// ErrAlreadyPatched is returned when the record is missing or its image key
	// has already been written.
	ErrAlreadyPatched = errors.New("repository: request missing or image key already set")
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// Client wraps the generation requests table.
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

// InsertRequest creates the record. It never overwrites an existing item.
func (c *Client) InsertRequest(ctx context.Context, req domain.GenerationRequest) error {
	if req.UserID == "" || req.RequestID == "" {
		return errors.New("repository: InsertRequest: user id and request id are required")
	}
	item, err := attributevalue.MarshalMap(req)
	if err != nil {
		return fmt.Errorf("repository: InsertRequest marshal: %w", err)
	}

	_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                item,
		ConditionExpression: aws.String(insertCondition),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("repository: InsertRequest %q: %w", req.RequestID, ErrRequestExists)
		}
		return fmt.Errorf("repository: InsertRequest: %w", err)
	}
	return nil
}

// SetImageKey patches only the image key of an existing request.
func (c *Client) SetImageKey(ctx context.Context, userID, requestID, key string) error {
	return c.RecordOutcome(ctx, userID, requestID, domain.SynthesisOutcome{ImageKey: key})
}

// RecordOutcome writes the synthesis outcome in one conditional update.
// The update succeeds at most once per request.
func (c *Client) RecordOutcome(ctx context.Context, userID, requestID string, out domain.SynthesisOutcome) error {
	if userID == "" || requestID == "" {
		return errors.New("repository: RecordOutcome: user id and request id are required")
	}

	names := map[string]string{"#key": attrImageKey}
	values := map[string]types.AttributeValue{
		":key": &types.AttributeValueMemberS{Value: out.ImageKey},
	}
	sets := []string{"#key = :key"}
	if out.Status != "" {
		names["#status"] = attrStatus
		values[":status"] = &types.AttributeValueMemberS{Value: string(out.Status)}
		sets = append(sets, "#status = :status")
	}
	if out.FailureReason != "" {
		names["#reason"] = attrReason
		values[":reason"] = &types.AttributeValueMemberS{Value: out.FailureReason}
		sets = append(sets, "#reason = :reason")
	}

	_, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			attrUserID:    &types.AttributeValueMemberS{Value: userID},
			attrRequestID: &types.AttributeValueMemberS{Value: requestID},
		},
		UpdateExpression:          aws.String("SET " + strings.Join(sets, ", ")),
		ConditionExpression:       aws.String(patchCondition),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("repository: RecordOutcome %q: %w", requestID, ErrAlreadyPatched)
		}
		return fmt.Errorf("repository: RecordOutcome: %w", err)
	}
	return nil
}

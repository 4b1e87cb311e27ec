package repository

import (
	"fmt"

	"github.com/aws/aws-lambda-go/events"

	"halfjourney/internal/domain"
)

// ChangeEventFromRecord converts a table stream record into a ChangeEvent.
func ChangeEventFromRecord(rec events.DynamoDBEventRecord) (domain.ChangeEvent, error) {
	switch events.DynamoDBOperationType(rec.EventName) {
	case events.DynamoDBOperationTypeInsert:
		return domain.Inserted{New: requestFromImage(rec.Change.NewImage)}, nil
	case events.DynamoDBOperationTypeModify:
		return domain.Modified{
			Old: requestFromImage(rec.Change.OldImage),
			New: requestFromImage(rec.Change.NewImage),
		}, nil
	case events.DynamoDBOperationTypeRemove:
		return domain.Removed{Old: requestFromImage(rec.Change.OldImage)}, nil
	default:
		return nil, fmt.Errorf("repository: unknown stream event %q", rec.EventName)
	}
}

// requestFromImage reads a stream image. Missing or mistyped attributes
// resolve to their zero value.
func requestFromImage(image map[string]events.DynamoDBAttributeValue) domain.GenerationRequest {
	req := domain.GenerationRequest{
		RequestID:        streamString(image, attrRequestID),
		UserID:           streamString(image, attrUserID),
		UserName:         streamString(image, "UserName"),
		Prompt:           streamString(image, "prompt"),
		Favorite:         streamBool(image, "Favorite"),
		CreatedAt:        streamString(image, "CreatedAt"),
		InteractionID:    streamString(image, "InteractionId"),
		InteractionToken: streamString(image, "InteractionToken"),
		Status:           domain.GenerationStatus(streamString(image, attrStatus)),
		FailureReason:    streamString(image, attrReason),
	}
	if v, ok := image[attrImageKey]; ok && v.DataType() == events.DataTypeString {
		key := v.String()
		req.ImageKey = &key
	}
	return req
}

func streamString(image map[string]events.DynamoDBAttributeValue, field string) string {
	if v, ok := image[field]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}

func streamBool(image map[string]events.DynamoDBAttributeValue, field string) bool {
	if v, ok := image[field]; ok && v.DataType() == events.DataTypeBoolean {
		return v.Boolean()
	}
	return false
}

package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/buxmate/buxmate/internal/domain"
)

// ActivityRepo provides typed DynamoDB operations for the activities table.
type ActivityRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewActivityRepo(client *dynamodb.Client, tableName string) *ActivityRepo {
	return &ActivityRepo{client: client, tableName: tableName}
}

func (r *ActivityRepo) Put(ctx context.Context, a *domain.Activity) error {
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return fmt.Errorf("marshal activity: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *ActivityRepo) Get(ctx context.Context, activityID string) (*domain.Activity, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("activity_id", activityID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("activity not found: %w", domain.ErrNotFound)
	}
	var a domain.Activity
	if err := attributevalue.UnmarshalMap(out.Item, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// ListByEvent returns the event's activities ordered by start time (the GSI
// sort key).
func (r *ActivityRepo) ListByEvent(ctx context.Context, eventID string) ([]domain.Activity, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("event_id-starts_at-index"),
		KeyConditionExpression: aws.String("event_id = :e"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":e": &types.AttributeValueMemberS{Value: eventID},
		},
	})
	if err != nil {
		return nil, err
	}
	var acts []domain.Activity
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &acts); err != nil {
		return nil, err
	}
	return acts, nil
}

func (r *ActivityRepo) Update(ctx context.Context, activityID string, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now().UTC().Format(time.RFC3339)
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("activity_id", activityID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}

func (r *ActivityRepo) SoftDelete(ctx context.Context, activityID string) error {
	return r.Update(ctx, activityID, map[string]interface{}{fieldEnable: false})
}

package dynamo

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/buxmate/buxmate/internal/domain"
)

// RateLimitRepo provides typed DynamoDB operations for the rate_limits table.
// PK: limit_key. Records carry a TTL 24 hours past their reset time so stale
// keys age out without a sweeper.
type RateLimitRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewRateLimitRepo(client *dynamodb.Client, tableName string) *RateLimitRepo {
	return &RateLimitRepo{client: client, tableName: tableName}
}

func (r *RateLimitRepo) Get(ctx context.Context, key string) (*domain.RateLimit, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("limit_key", key),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("rate limit record not found: %w", domain.ErrNotFound)
	}
	var rl domain.RateLimit
	if err := attributevalue.UnmarshalMap(out.Item, &rl); err != nil {
		return nil, err
	}
	return &rl, nil
}

// Reset zeroes the counter and advances the window, but only while the stored
// reset time still matches the one the caller observed. A concurrent reset or
// increment that already moved the window makes this a no-op.
func (r *RateLimitRepo) Reset(ctx context.Context, key string, observedReset, newReset, ttl int64) (*domain.RateLimit, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey("limit_key", key),
		UpdateExpression:    aws.String("SET attempt_count = :zero, reset_time = :r, #t = :ttl"),
		ConditionExpression: aws.String("reset_time = :observed"),
		ExpressionAttributeNames: map[string]string{
			"#t": "ttl",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero":     &types.AttributeValueMemberN{Value: "0"},
			":r":        &types.AttributeValueMemberN{Value: strconv.FormatInt(newReset, 10)},
			":ttl":      &types.AttributeValueMemberN{Value: strconv.FormatInt(ttl, 10)},
			":observed": &types.AttributeValueMemberN{Value: strconv.FormatInt(observedReset, 10)},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if asConditionFailed(err, &ccf) {
			return r.Get(ctx, key)
		}
		return nil, err
	}
	var rl domain.RateLimit
	if err := attributevalue.UnmarshalMap(out.Attributes, &rl); err != nil {
		return nil, err
	}
	return &rl, nil
}

// Increment atomically adds one attempt, initialising the window on first use.
// The counter and the window are written in a single UpdateItem, so concurrent
// bursts cannot each observe a pre-increment count.
func (r *RateLimitRepo) Increment(ctx context.Context, key string, newReset, ttl int64) (*domain.RateLimit, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              strKey("limit_key", key),
		UpdateExpression: aws.String("SET reset_time = if_not_exists(reset_time, :r), #t = if_not_exists(#t, :ttl) ADD attempt_count :one"),
		ExpressionAttributeNames: map[string]string{
			"#t": "ttl",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":r":   &types.AttributeValueMemberN{Value: strconv.FormatInt(newReset, 10)},
			":ttl": &types.AttributeValueMemberN{Value: strconv.FormatInt(ttl, 10)},
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, err
	}
	var rl domain.RateLimit
	if err := attributevalue.UnmarshalMap(out.Attributes, &rl); err != nil {
		return nil, err
	}
	return &rl, nil
}

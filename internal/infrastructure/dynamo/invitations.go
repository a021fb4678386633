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

// InvitationRepo provides typed DynamoDB operations for the invitations table.
// PK: event_id, SK: contact — the canonical contact value. Keying on the
// contact lets a single conditional write enforce the "no duplicate live
// invitation per (event, contact)" rule instead of an advisory pre-check.
type InvitationRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewInvitationRepo(client *dynamodb.Client, tableName string) *InvitationRepo {
	return &InvitationRepo{client: client, tableName: tableName}
}

// Create inserts an invitation. The conditional expression admits the write
// only when no row exists for (event_id, contact) or the existing row is
// DECLINED, EXPIRED, or PENDING past its expiry. A live PENDING row or any
// ACCEPTED row fails with ErrConflict; acceptance is terminal and never
// overwritten, however old.
func (r *InvitationRepo) Create(ctx context.Context, inv *domain.Invitation) error {
	item, err := attributevalue.MarshalMap(inv)
	if err != nil {
		return fmt.Errorf("marshal invitation: %w", err)
	}
	_, err = r.client.PutItem(ctx, r.createInput(item, time.Now()))
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if asConditionFailed(err, &ccf) {
			return fmt.Errorf("contact already invited: %w", domain.ErrConflict)
		}
		return err
	}
	return nil
}

func (r *InvitationRepo) createInput(item map[string]types.AttributeValue, now time.Time) *dynamodb.PutItemInput {
	return &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(event_id) OR #s = :declined OR #s = :expired OR (#s = :pending AND expires_at < :now)"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":declined": &types.AttributeValueMemberS{Value: domain.InvitationDeclined},
			":expired":  &types.AttributeValueMemberS{Value: domain.InvitationExpired},
			":pending":  &types.AttributeValueMemberS{Value: domain.InvitationPending},
			":now":      &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now.Unix())},
		},
	}
}

func (r *InvitationRepo) Get(ctx context.Context, eventID, contact string) (*domain.Invitation, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("event_id", eventID, "contact", contact),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("invitation not found: %w", domain.ErrNotFound)
	}
	var inv domain.Invitation
	if err := attributevalue.UnmarshalMap(out.Item, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// GetByID resolves an invitation through the invitation_id GSI.
func (r *InvitationRepo) GetByID(ctx context.Context, invitationID string) (*domain.Invitation, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("invitation_id-index"),
		KeyConditionExpression: aws.String("invitation_id = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: invitationID},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("invitation not found: %w", domain.ErrNotFound)
	}
	var inv domain.Invitation
	if err := attributevalue.UnmarshalMap(out.Items[0], &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// ListByEvent returns every invitation row for the event.
func (r *InvitationRepo) ListByEvent(ctx context.Context, eventID string) ([]domain.Invitation, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("event_id = :e"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":e": &types.AttributeValueMemberS{Value: eventID},
		},
	})
	if err != nil {
		return nil, err
	}
	var invs []domain.Invitation
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &invs); err != nil {
		return nil, err
	}
	return invs, nil
}

// ListByRecipient returns invitations addressed to a resolved user.
func (r *InvitationRepo) ListByRecipient(ctx context.Context, recipientID string) ([]domain.Invitation, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("recipient_id-index"),
		KeyConditionExpression: aws.String("recipient_id = :rid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":rid": &types.AttributeValueMemberS{Value: recipientID},
		},
	})
	if err != nil {
		return nil, err
	}
	var invs []domain.Invitation
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &invs); err != nil {
		return nil, err
	}
	return invs, nil
}

// UpdateStatus transitions a PENDING, unexpired invitation to newStatus.
// The condition makes accept/decline first-write-wins under concurrency.
func (r *InvitationRepo) UpdateStatus(ctx context.Context, eventID, contact, newStatus string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 compositeKey("event_id", eventID, "contact", contact),
		UpdateExpression:    aws.String("SET #s = :new, updated_at = :now"),
		ConditionExpression: aws.String("#s = :pending AND expires_at >= :nowsec"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":new":     &types.AttributeValueMemberS{Value: newStatus},
			":pending": &types.AttributeValueMemberS{Value: domain.InvitationPending},
			":now":     &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
			":nowsec":  &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", time.Now().Unix())},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if asConditionFailed(err, &ccf) {
			return fmt.Errorf("invitation is not pending or has expired: %w", domain.ErrConflict)
		}
	}
	return err
}

package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/imrishuroy/go-license-orderflow/internal/aws"
)

var (
	// ErrStatusMismatch means the conditional transition found the order in another status.
	ErrStatusMismatch = errors.New("status mismatch/conditional failed")
	// ErrDuplicateSession means an order already references the gateway session.
	ErrDuplicateSession = errors.New("order already exists for session")
	// ErrTokenCollision means the new download token already exists. Nothing is written.
	ErrTokenCollision = errors.New("download token already exists")
)

// Tables names the DynamoDB tables the store writes to.
type Tables struct {
	Orders      string // PK order_id
	Sessions    string // PK session_id -> order_id, uniqueness guard
	Tokens      string // PK token
	Acceptances string // PK order_id
}

// Store encapsulates order, token and terms-acceptance persistence on DynamoDB.
type Store struct {
	client  aws.DynamoDBScanAPI
	tables  Tables
	nowFunc func() time.Time
}

// NewStore creates a new orders Store.
func NewStore(client aws.DynamoDBScanAPI, tables Tables) *Store {
	return &Store{
		client:  client,
		tables:  tables,
		nowFunc: time.Now,
	}
}

type sessionRecord struct {
	SessionID string    `dynamodbav:"session_id"`
	OrderID   string    `dynamodbav:"order_id"`
	CreatedAt time.Time `dynamodbav:"created_at"`
}

// CreatePending atomically writes the session guard and the PENDING order.
// Returns ErrDuplicateSession if the session id is already taken.
func (s *Store) CreatePending(ctx context.Context, order Order) error {
	now := s.nowFunc().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	order.Status = StatusPending

	orderMap, err := attributevalue.MarshalMap(order)
	if err != nil {
		return fmt.Errorf("marshal order item: %w", err)
	}
	guardMap, err := attributevalue.MarshalMap(sessionRecord{
		SessionID: order.SessionID,
		OrderID:   order.OrderID,
		CreatedAt: order.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal session guard: %w", err)
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           &s.tables.Sessions,
					Item:                guardMap,
					ConditionExpression: awsString("attribute_not_exists(session_id)"),
				},
			},
			{
				Put: &types.Put{
					TableName:           &s.tables.Orders,
					Item:                orderMap,
					ConditionExpression: awsString("attribute_not_exists(order_id)"),
				},
			},
		},
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			return ErrDuplicateSession
		}
		return fmt.Errorf("transact write: %w", err)
	}
	return nil
}

// Get fetches an order by order_id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tables.Orders,
		Key:            stringKey("order_id", orderID),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// GetBySession resolves the order for a gateway session. Returns (nil, nil) if none exists.
func (s *Store) GetBySession(ctx context.Context, sessionID string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tables.Sessions,
		Key:            stringKey("session_id", sessionID),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec sessionRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return s.Get(ctx, rec.OrderID)
}

// Complete flips the order PENDING -> COMPLETED and writes the token and the
// terms acceptance in one transaction. Returns ErrStatusMismatch when the
// order is no longer PENDING; nothing is written in that case.
func (s *Store) Complete(ctx context.Context, orderID string, f Fulfillment) error {
	now := s.nowFunc().UTC()

	tokenMap, err := attributevalue.MarshalMap(f.Token)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	acceptMap, err := attributevalue.MarshalMap(f.Acceptance)
	if err != nil {
		return fmt.Errorf("marshal acceptance: %w", err)
	}
	ts, err := attributevalue.Marshal(now)
	if err != nil {
		return fmt.Errorf("marshal timestamp: %w", err)
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Update: &types.Update{
					TableName:                &s.tables.Orders,
					Key:                      stringKey("order_id", orderID),
					UpdateExpression:         awsString("SET #s = :completed, completed_at = :now, updated_at = :now, download_token = :tok"),
					ConditionExpression:      awsString("#s = :pending"),
					ExpressionAttributeNames: map[string]string{"#s": "status"},
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":completed": &types.AttributeValueMemberS{Value: StatusCompleted},
						":pending":   &types.AttributeValueMemberS{Value: StatusPending},
						":now":       ts,
						":tok":       &types.AttributeValueMemberS{Value: f.Token.Token},
					},
				},
			},
			{
				Put: &types.Put{
					TableName:           &s.tables.Tokens,
					Item:                tokenMap,
					ConditionExpression: awsString("attribute_not_exists(#t)"),
					ExpressionAttributeNames: map[string]string{
						"#t": "token",
					},
				},
			},
			{
				Put: &types.Put{
					TableName:           &s.tables.Acceptances,
					Item:                acceptMap,
					ConditionExpression: awsString("attribute_not_exists(order_id)"),
				},
			},
		},
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			if statusConditionFailed(tce) {
				return ErrStatusMismatch
			}
			if conditionFailedAt(tce, 1) {
				return ErrTokenCollision
			}
			return fmt.Errorf("transaction canceled: %w", err)
		}
		return fmt.Errorf("transact write: %w", err)
	}
	return nil
}

// statusConditionFailed reports whether the order update (first item) was the
// one rejected. Without reasons we assume the status guard failed, which is
// the only condition a redelivery can trip.
func statusConditionFailed(tce *types.TransactionCanceledException) bool {
	if len(tce.CancellationReasons) == 0 {
		return true
	}
	return conditionFailedAt(tce, 0)
}

func conditionFailedAt(tce *types.TransactionCanceledException, i int) bool {
	if len(tce.CancellationReasons) <= i {
		return false
	}
	r := tce.CancellationReasons[i]
	return r.Code != nil && *r.Code == "ConditionalCheckFailed"
}

// GetToken fetches a download token. Returns (nil, nil) if not found.
func (s *Store) GetToken(ctx context.Context, token string) (*DownloadToken, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tables.Tokens,
		Key:            stringKey("token", token),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var t DownloadToken
	if err := attributevalue.UnmarshalMap(out.Item, &t); err != nil {
		return nil, fmt.Errorf("unmarshal token: %w", err)
	}
	return &t, nil
}

// TouchToken moves last_used_at forward to at. Older timestamps are ignored.
func (s *Store) TouchToken(ctx context.Context, token string, at time.Time) error {
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:           &s.tables.Tokens,
		Key:                 stringKey("token", token),
		UpdateExpression:    awsString("SET last_used_at = :at"),
		ConditionExpression: awsString("attribute_exists(#t) AND (attribute_not_exists(last_used_at) OR last_used_at < :at)"),
		ExpressionAttributeNames: map[string]string{
			"#t": "token",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":at": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", at.Unix())},
		},
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException" {
			return nil
		}
		return fmt.Errorf("update item (touch token): %w", err)
	}
	return nil
}

// List returns up to limit orders, newest first, optionally filtered by status.
func (s *Store) List(ctx context.Context, status string, limit int) ([]Order, error) {
	input := &dyn.ScanInput{
		TableName: &s.tables.Orders,
	}
	if status != "" {
		input.FilterExpression = awsString("#s = :status")
		input.ExpressionAttributeNames = map[string]string{"#s": "status"}
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: status},
		}
	}

	var out []Order
	for {
		page, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("scan orders: %w", err)
		}
		var batch []Order
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal orders: %w", err)
		}
		out = append(out, batch...)
		if len(page.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = page.LastEvaluatedKey
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Stats aggregates order counts and totals per status.
func (s *Store) Stats(ctx context.Context) ([]Stats, error) {
	all, err := s.List(ctx, "", 0)
	if err != nil {
		return nil, err
	}
	return Aggregate(all), nil
}

// Aggregate groups orders by status, ordered by status name.
func Aggregate(list []Order) []Stats {
	byStatus := map[string]*Stats{}
	for _, o := range list {
		st, ok := byStatus[o.Status]
		if !ok {
			st = &Stats{Status: o.Status}
			byStatus[o.Status] = st
		}
		st.Count++
		st.TotalCents += o.TotalCents
	}
	out := make([]Stats, 0, len(byStatus))
	for _, st := range byStatus {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	return out
}

func stringKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }

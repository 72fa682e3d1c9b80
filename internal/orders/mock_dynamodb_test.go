package orders

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mockDynamo is an in-memory mock honouring the condition and update
// expressions the store issues. Items are stored per table: table -> pk -> item.
type mockDynamo struct {
	mu          sync.Mutex
	keys        map[string]string // table -> pk attribute name
	tables      map[string]map[string]map[string]types.AttributeValue
	writes      int
	transactErr error
	lastGet     *dyn.GetItemInput
}

var testTables = Tables{
	Orders:      "orders",
	Sessions:    "order_sessions",
	Tokens:      "download_tokens",
	Acceptances: "terms_acceptances",
}

func newMockDynamo() *mockDynamo {
	m := &mockDynamo{
		keys: map[string]string{
			testTables.Orders:      "order_id",
			testTables.Sessions:    "session_id",
			testTables.Tokens:      "token",
			testTables.Acceptances: "order_id",
		},
		tables: map[string]map[string]map[string]types.AttributeValue{},
	}
	for tbl := range m.keys {
		m.tables[tbl] = map[string]map[string]types.AttributeValue{}
	}
	return m
}

func (m *mockDynamo) pk(table string, item map[string]types.AttributeValue) (string, error) {
	name, ok := m.keys[table]
	if !ok {
		return "", fmt.Errorf("unknown table %s", table)
	}
	v, ok := item[name].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("missing key %s", name)
	}
	return v.Value, nil
}

func resolveName(name string, names map[string]string) string {
	if strings.HasPrefix(name, "#") {
		return names[name]
	}
	return name
}

// check evaluates the handful of condition shapes the store uses.
func check(cond *string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) bool {
	if cond == nil {
		return true
	}
	c := *cond
	switch {
	case strings.HasPrefix(c, "attribute_not_exists(") && !strings.Contains(c, " "):
		attr := resolveName(strings.TrimSuffix(strings.TrimPrefix(c, "attribute_not_exists("), ")"), names)
		_, exists := item[attr]
		return item == nil || !exists
	case c == "#s = :pending":
		cur, ok := item["status"].(*types.AttributeValueMemberS)
		want := values[":pending"].(*types.AttributeValueMemberS)
		return ok && cur.Value == want.Value
	case strings.HasPrefix(c, "attribute_exists(#t) AND"):
		if item == nil {
			return false
		}
		last, ok := item["last_used_at"].(*types.AttributeValueMemberN)
		if !ok {
			return true
		}
		at := values[":at"].(*types.AttributeValueMemberN)
		lv, _ := strconv.ParseInt(last.Value, 10, 64)
		av, _ := strconv.ParseInt(at.Value, 10, 64)
		return lv < av
	}
	panic("mock: unsupported condition " + c)
}

func applySet(item map[string]types.AttributeValue, expr string, names map[string]string, values map[string]types.AttributeValue) {
	expr = strings.TrimPrefix(expr, "SET ")
	for _, part := range strings.Split(expr, ",") {
		lhs, rhs, _ := strings.Cut(strings.TrimSpace(part), " = ")
		item[resolveName(lhs, names)] = values[rhs]
	}
}

func copyItem(in map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (m *mockDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := *params.TableName
	pk, err := m.pk(table, params.Item)
	if err != nil {
		return nil, err
	}
	if !check(params.ConditionExpression, m.tables[table][pk], params.ExpressionAttributeNames, params.ExpressionAttributeValues) {
		return nil, &types.ConditionalCheckFailedException{}
	}
	m.tables[table][pk] = copyItem(params.Item)
	m.writes++
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastGet = params
	table := *params.TableName
	pk, err := m.pk(table, params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := m.tables[table][pk]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: copyItem(item)}, nil
}

func (m *mockDynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := *params.TableName
	pk, err := m.pk(table, params.Key)
	if err != nil {
		return nil, err
	}
	item := m.tables[table][pk]
	if !check(params.ConditionExpression, item, params.ExpressionAttributeNames, params.ExpressionAttributeValues) {
		return nil, &types.ConditionalCheckFailedException{}
	}
	if item == nil {
		return nil, errors.New("item not found")
	}
	applySet(item, *params.UpdateExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	m.writes++
	return &dyn.UpdateItemOutput{Attributes: item}, nil
}

func (m *mockDynamo) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transactErr != nil {
		return nil, m.transactErr
	}

	// First pass: verify every condition
	reasons := make([]types.CancellationReason, len(params.TransactItems))
	failed := false
	for i, it := range params.TransactItems {
		reasons[i] = types.CancellationReason{Code: strPtr("None")}
		var ok bool
		switch {
		case it.Put != nil:
			p := it.Put
			pk, err := m.pk(*p.TableName, p.Item)
			if err != nil {
				return nil, err
			}
			ok = check(p.ConditionExpression, m.tables[*p.TableName][pk], p.ExpressionAttributeNames, p.ExpressionAttributeValues)
		case it.Update != nil:
			u := it.Update
			pk, err := m.pk(*u.TableName, u.Key)
			if err != nil {
				return nil, err
			}
			ok = check(u.ConditionExpression, m.tables[*u.TableName][pk], u.ExpressionAttributeNames, u.ExpressionAttributeValues)
		default:
			return nil, errors.New("mock: unsupported transact item")
		}
		if !ok {
			reasons[i] = types.CancellationReason{Code: strPtr("ConditionalCheckFailed")}
			failed = true
		}
	}
	if failed {
		return nil, &types.TransactionCanceledException{CancellationReasons: reasons}
	}

	// Second pass: apply
	for _, it := range params.TransactItems {
		if p := it.Put; p != nil {
			pk, _ := m.pk(*p.TableName, p.Item)
			m.tables[*p.TableName][pk] = copyItem(p.Item)
		}
		if u := it.Update; u != nil {
			pk, _ := m.pk(*u.TableName, u.Key)
			applySet(m.tables[*u.TableName][pk], *u.UpdateExpression, u.ExpressionAttributeNames, u.ExpressionAttributeValues)
		}
		m.writes++
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func (m *mockDynamo) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []map[string]types.AttributeValue
	for _, item := range m.tables[*params.TableName] {
		if params.FilterExpression != nil {
			want := params.ExpressionAttributeValues[":status"].(*types.AttributeValueMemberS).Value
			cur, ok := item["status"].(*types.AttributeValueMemberS)
			if !ok || cur.Value != want {
				continue
			}
		}
		items = append(items, copyItem(item))
	}
	return &dyn.ScanOutput{Items: items}, nil
}

func strPtr(s string) *string { return &s }

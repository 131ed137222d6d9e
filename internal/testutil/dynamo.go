// Package testutil holds in-memory fakes of the AWS clients for unit tests.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Partition key attributes of the tables this repo owns.
const (
	OrderKey       = "order_id"
	IdempotencyKey = "idempotency_key"
)

// Tables maps a table name to its partition key attribute.
type Tables map[string]string

type table struct {
	key   string
	items map[string]map[string]types.AttributeValue
	order []string // insertion order, used by Query
}

// FakeDynamoDB is a small in-memory DynamoDB. It understands exactly the
// expression shapes the stores emit: SET/REMOVE updates with placeholder
// values, attribute_exists / attribute_not_exists / equality conditions
// joined by AND, and single-attribute key conditions on Query. Only tables
// declared at construction exist; items are keyed by the declared attribute.
type FakeDynamoDB struct {
	mu     sync.Mutex
	tables map[string]*table
	errs   map[string]error
	calls  map[string]int

	// PageSize caps Query pages so pagination is exercised. Zero means no cap.
	PageSize int
}

func NewFakeDynamoDB(tables Tables) *FakeDynamoDB {
	f := &FakeDynamoDB{
		tables: make(map[string]*table, len(tables)),
		errs:   map[string]error{},
		calls:  map[string]int{},
	}
	for name, key := range tables {
		f.tables[name] = &table{key: key, items: map[string]map[string]types.AttributeValue{}}
	}
	return f
}

// FailOn makes every later call of op ("PutItem", "GetItem", ...) return err.
// A nil err clears the failure.
func (f *FakeDynamoDB) FailOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, op)
		return
	}
	f.errs[op] = err
}

func (f *FakeDynamoDB) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Item returns a copy of the stored item or nil.
func (f *FakeDynamoDB) Item(tableName, key string) map[string]types.AttributeValue {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.table(tableName)
	if err != nil {
		return nil
	}
	if it, ok := t.items[key]; ok {
		return clone(it)
	}
	return nil
}

// Seed stores item as is, bypassing conditions.
func (f *FakeDynamoDB) Seed(tableName string, item map[string]types.AttributeValue) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.table(tableName)
	if err != nil {
		panic(err)
	}
	pk, err := t.primaryKey(item)
	if err != nil {
		panic(err)
	}
	f.put(t, pk, item)
}

func (f *FakeDynamoDB) Len(tableName string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.table(tableName)
	if err != nil {
		return 0
	}
	return len(t.items)
}

func (f *FakeDynamoDB) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("PutItem"); err != nil {
		return nil, err
	}
	t, err := f.table(aws(params.TableName))
	if err != nil {
		return nil, err
	}
	pk, err := t.primaryKey(params.Item)
	if err != nil {
		return nil, err
	}
	ok, err := evalCondition(params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, t.items[pk])
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, conditionFailed()
	}
	f.put(t, pk, params.Item)
	return &dyn.PutItemOutput{}, nil
}

func (f *FakeDynamoDB) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetItem"); err != nil {
		return nil, err
	}
	t, err := f.table(aws(params.TableName))
	if err != nil {
		return nil, err
	}
	pk, err := t.primaryKey(params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := t.items[pk]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: clone(item)}, nil
}

func (f *FakeDynamoDB) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateItem"); err != nil {
		return nil, err
	}
	t, err := f.table(aws(params.TableName))
	if err != nil {
		return nil, err
	}
	pk, err := t.primaryKey(params.Key)
	if err != nil {
		return nil, err
	}
	existing := t.items[pk]
	ok, err := evalCondition(params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, existing)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, conditionFailed()
	}

	// UpdateItem upserts, like the real service.
	item := clone(existing)
	if item == nil {
		item = clone(params.Key)
	}
	if err := applyUpdate(item, aws(params.UpdateExpression), params.ExpressionAttributeNames, params.ExpressionAttributeValues); err != nil {
		return nil, err
	}
	f.put(t, pk, item)
	return &dyn.UpdateItemOutput{Attributes: clone(item)}, nil
}

func (f *FakeDynamoDB) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Query"); err != nil {
		return nil, err
	}
	t, err := f.table(aws(params.TableName))
	if err != nil {
		return nil, err
	}

	lhs, rhs, found := strings.Cut(aws(params.KeyConditionExpression), " = ")
	if !found {
		return nil, fmt.Errorf("unsupported key condition %q", aws(params.KeyConditionExpression))
	}
	attr := resolve(strings.TrimSpace(lhs), params.ExpressionAttributeNames)
	want := params.ExpressionAttributeValues[strings.TrimSpace(rhs)]

	start := 0
	if params.ExclusiveStartKey != nil {
		pk, err := t.primaryKey(params.ExclusiveStartKey)
		if err != nil {
			return nil, err
		}
		for i, k := range t.order {
			if k == pk {
				start = i + 1
				break
			}
		}
	}

	out := &dyn.QueryOutput{}
	for i := start; i < len(t.order); i++ {
		item := t.items[t.order[i]]
		if !reflect.DeepEqual(item[attr], want) {
			continue
		}
		out.Items = append(out.Items, clone(item))
		if f.PageSize > 0 && len(out.Items) == f.PageSize && i < len(t.order)-1 {
			out.LastEvaluatedKey = map[string]types.AttributeValue{t.key: item[t.key]}
			break
		}
	}
	out.Count = int32(len(out.Items))
	return out, nil
}

func (f *FakeDynamoDB) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("TransactWriteItems"); err != nil {
		return nil, err
	}
	// first pass: every condition must hold before anything is written
	for _, it := range params.TransactItems {
		p := it.Put
		if p == nil {
			return nil, errors.New("fake only supports Put in transactions")
		}
		t, err := f.table(aws(p.TableName))
		if err != nil {
			return nil, err
		}
		pk, err := t.primaryKey(p.Item)
		if err != nil {
			return nil, err
		}
		ok, err := evalCondition(p.ConditionExpression, p.ExpressionAttributeNames, p.ExpressionAttributeValues, t.items[pk])
		if err != nil {
			return nil, err
		}
		if !ok {
			msg := "Transaction cancelled, please refer cancellation reasons for specific reasons [ConditionalCheckFailed]"
			return nil, &types.TransactionCanceledException{Message: &msg}
		}
	}
	for _, it := range params.TransactItems {
		t, _ := f.table(aws(it.Put.TableName))
		pk, _ := t.primaryKey(it.Put.Item)
		f.put(t, pk, it.Put.Item)
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func (f *FakeDynamoDB) enter(op string) error {
	f.calls[op]++
	return f.errs[op]
}

func (f *FakeDynamoDB) table(name string) (*table, error) {
	t, ok := f.tables[name]
	if !ok {
		msg := fmt.Sprintf("Requested resource not found: Table: %s not found", name)
		return nil, &types.ResourceNotFoundException{Message: &msg}
	}
	return t, nil
}

func (f *FakeDynamoDB) put(t *table, pk string, item map[string]types.AttributeValue) {
	if _, exists := t.items[pk]; !exists {
		t.order = append(t.order, pk)
	}
	t.items[pk] = clone(item)
}

func (t *table) primaryKey(item map[string]types.AttributeValue) (string, error) {
	v, ok := item[t.key].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("missing key attribute %s", t.key)
	}
	return v.Value, nil
}

func evalCondition(expr *string, names map[string]string, values map[string]types.AttributeValue, item map[string]types.AttributeValue) (bool, error) {
	if expr == nil || strings.TrimSpace(*expr) == "" {
		return true, nil
	}
	for _, clause := range strings.Split(*expr, " AND ") {
		clause = strings.TrimSpace(clause)
		switch {
		case strings.HasPrefix(clause, "attribute_not_exists("):
			attr := resolve(inner(clause), names)
			if item != nil && item[attr] != nil {
				return false, nil
			}
		case strings.HasPrefix(clause, "attribute_exists("):
			attr := resolve(inner(clause), names)
			if item == nil || item[attr] == nil {
				return false, nil
			}
		case strings.Contains(clause, " = "):
			lhs, rhs, _ := strings.Cut(clause, " = ")
			want, ok := values[strings.TrimSpace(rhs)]
			if !ok {
				return false, fmt.Errorf("missing value %s", rhs)
			}
			if item == nil || !reflect.DeepEqual(item[resolve(strings.TrimSpace(lhs), names)], want) {
				return false, nil
			}
		default:
			return false, fmt.Errorf("unsupported condition %q", clause)
		}
	}
	return true, nil
}

func applyUpdate(item map[string]types.AttributeValue, expr string, names map[string]string, values map[string]types.AttributeValue) error {
	setPart, removePart, _ := strings.Cut(expr, " REMOVE ")
	setPart = strings.TrimSpace(setPart)
	if strings.HasPrefix(setPart, "REMOVE ") {
		removePart, setPart = strings.TrimPrefix(setPart, "REMOVE "), ""
	}
	setPart = strings.TrimPrefix(setPart, "SET ")

	if setPart != "" {
		for _, assign := range strings.Split(setPart, ",") {
			lhs, rhs, ok := strings.Cut(assign, " = ")
			if !ok {
				return fmt.Errorf("unsupported assignment %q", assign)
			}
			v, ok := values[strings.TrimSpace(rhs)]
			if !ok {
				return fmt.Errorf("missing value %s", rhs)
			}
			item[resolve(strings.TrimSpace(lhs), names)] = v
		}
	}
	if removePart != "" {
		for _, attr := range strings.Split(removePart, ",") {
			delete(item, resolve(strings.TrimSpace(attr), names))
		}
	}
	return nil
}

func resolve(name string, names map[string]string) string {
	if strings.HasPrefix(name, "#") {
		if actual, ok := names[name]; ok {
			return actual
		}
	}
	return name
}

func inner(clause string) string {
	open := strings.Index(clause, "(")
	closing := strings.LastIndex(clause, ")")
	return strings.TrimSpace(clause[open+1 : closing])
}

func clone(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	if item == nil {
		return nil
	}
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func conditionFailed() error {
	msg := "The conditional request failed"
	return &types.ConditionalCheckFailedException{Message: &msg}
}

func aws(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	domainErrors "github.com/polkiloo/invoicekeeper/internal/domain/errors"
	"github.com/polkiloo/invoicekeeper/internal/domain/model"
	"github.com/polkiloo/invoicekeeper/internal/domain/repository"
)

const (
	customerIDIndex = "customer_id-index"
	kindInvoice     = "invoice"
	kindOrderGuard  = "order_guard"
)

// API is the subset of *dynamodb.Client used by the storage.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

type invoiceItem struct {
	ID         string `dynamodbav:"id"`
	Kind       string `dynamodbav:"kind"`
	OrderID    int64  `dynamodbav:"order_id"`
	CustomerID int64  `dynamodbav:"customer_id"`
	FileURL    string `dynamodbav:"file_url"`
	CreatedAt  int64  `dynamodbav:"created_at"`
	ExpireAt   int64  `dynamodbav:"expire_at"`
}

// guardItem reserves an order id. It carries no order_id or customer_id
// attribute, so it never shows up in the secondary index.
type guardItem struct {
	ID        string `dynamodbav:"id"`
	Kind      string `dynamodbav:"kind"`
	InvoiceID string `dynamodbav:"invoice_id"`
}

// Storage persists invoices in a single DynamoDB table.
//
// Table requirements:
//   - PK: id (string)
//   - GSI: customer_id-index (PK: customer_id, SK: created_at)
//
// Order uniqueness is enforced with a guard item keyed "order#<orderId>" that is
// written in the same transaction as the invoice.
type Storage struct {
	ddb       API
	tableName string
	logger    *slog.Logger
	newID     func() string
}

type invoiceRepository struct {
	storage *Storage
}

// New creates DynamoDB backed storage for the given table.
func New(ddb API, tableName string, logger *slog.Logger) *Storage {
	logger.Info("invoice storage ready", slog.String("backend", "dynamodb"), slog.String("table", tableName))
	return &Storage{ddb: ddb, tableName: tableName, logger: logger, newID: uuid.NewString}
}

// Invoices returns the invoice repository.
func (s *Storage) Invoices() repository.InvoiceRepository {
	return &invoiceRepository{storage: s}
}

// HealthCheck verifies the table is reachable.
func (s *Storage) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := s.ddb.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.tableName)})
	return err
}

// Close is a no-op; the SDK client holds no pooled resources that need releasing.
func (s *Storage) Close() {}

func guardKey(orderID int64) string {
	return "order#" + strconv.FormatInt(orderID, 10)
}

func keyOf(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}}
}

func (r *invoiceRepository) Insert(ctx context.Context, invoice model.Invoice) (*model.Invoice, error) {
	invoice.ID = r.storage.newID()

	record, err := attributevalue.MarshalMap(toInvoiceItem(invoice))
	if err != nil {
		return nil, err
	}
	guard, err := attributevalue.MarshalMap(guardItem{ID: guardKey(invoice.OrderID), Kind: kindOrderGuard, InvoiceID: invoice.ID})
	if err != nil {
		return nil, err
	}

	notExists := aws.String("attribute_not_exists(#id)")
	names := map[string]string{"#id": "id"}
	_, err = r.storage.ddb.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{TableName: aws.String(r.storage.tableName), Item: guard, ConditionExpression: notExists, ExpressionAttributeNames: names}},
			{Put: &types.Put{TableName: aws.String(r.storage.tableName), Item: record, ConditionExpression: notExists, ExpressionAttributeNames: names}},
		},
	})
	if err != nil {
		if conditionFailed(err) {
			return nil, domainErrors.ErrAlreadyExists
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) GetByID(ctx context.Context, id string) (*model.Invoice, error) {
	out, err := r.storage.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.storage.tableName),
		Key:            keyOf(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Item) == 0 {
		return nil, domainErrors.ErrNotFound
	}

	var it invoiceItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, err
	}
	if it.Kind != kindInvoice {
		return nil, domainErrors.ErrNotFound
	}
	inv := fromInvoiceItem(it)
	return &inv, nil
}

// FindByOrderID resolves the guard item first; both reads are strongly consistent,
// unlike a query on a secondary index.
func (r *invoiceRepository) FindByOrderID(ctx context.Context, orderID int64) (*model.Invoice, error) {
	guard, err := r.guard(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, guard.InvoiceID)
}

func (r *invoiceRepository) ExistsByOrderID(ctx context.Context, orderID int64) (bool, error) {
	_, err := r.guard(ctx, orderID)
	if errors.Is(err, domainErrors.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *invoiceRepository) FindByCustomerID(ctx context.Context, customerID int64) ([]model.Invoice, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.storage.tableName),
		IndexName:              aws.String(customerIDIndex),
		KeyConditionExpression: aws.String("customer_id = :cid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cid": &types.AttributeValueMemberN{Value: strconv.FormatInt(customerID, 10)},
		},
		ScanIndexForward: aws.Bool(false),
	}

	var result []model.Invoice
	for {
		out, err := r.storage.ddb.Query(ctx, input)
		if err != nil {
			return nil, err
		}
		items, err := decodeInvoices(out.Items)
		if err != nil {
			return nil, err
		}
		result = append(result, items...)
		if len(out.LastEvaluatedKey) == 0 {
			return result, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func (r *invoiceRepository) FindExpiredBefore(ctx context.Context, ts time.Time) ([]model.Invoice, error) {
	return r.scan(ctx, "#kind = :kind AND expire_at <= :ts", map[string]types.AttributeValue{
		":ts": unixMicroAttr(ts),
	})
}

func (r *invoiceRepository) FindCreatedBetween(ctx context.Context, from, to time.Time) ([]model.Invoice, error) {
	return r.scan(ctx, "#kind = :kind AND created_at >= :from AND created_at < :to", map[string]types.AttributeValue{
		":from": unixMicroAttr(from),
		":to":   unixMicroAttr(to),
	})
}

func (r *invoiceRepository) Delete(ctx context.Context, id string) error {
	inv, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	_, err = r.storage.ddb.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Delete: &types.Delete{
				TableName:                aws.String(r.storage.tableName),
				Key:                      keyOf(inv.ID),
				ConditionExpression:      aws.String("attribute_exists(#id)"),
				ExpressionAttributeNames: map[string]string{"#id": "id"},
			}},
			{Delete: &types.Delete{
				TableName: aws.String(r.storage.tableName),
				Key:       keyOf(guardKey(inv.OrderID)),
			}},
		},
	})
	if err != nil {
		if conditionFailed(err) {
			return domainErrors.ErrNotFound
		}
		return err
	}
	return nil
}

func (r *invoiceRepository) guard(ctx context.Context, orderID int64) (*guardItem, error) {
	out, err := r.storage.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.storage.tableName),
		Key:            keyOf(guardKey(orderID)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Item) == 0 {
		return nil, domainErrors.ErrNotFound
	}
	var g guardItem
	if err := attributevalue.UnmarshalMap(out.Item, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *invoiceRepository) scan(ctx context.Context, filter string, values map[string]types.AttributeValue) ([]model.Invoice, error) {
	values[":kind"] = &types.AttributeValueMemberS{Value: kindInvoice}
	input := &dynamodb.ScanInput{
		TableName:                 aws.String(r.storage.tableName),
		FilterExpression:          aws.String(filter),
		ExpressionAttributeNames:  map[string]string{"#kind": "kind"},
		ExpressionAttributeValues: values,
		ConsistentRead:            aws.Bool(true),
	}

	var result []model.Invoice
	for {
		out, err := r.storage.ddb.Scan(ctx, input)
		if err != nil {
			return nil, err
		}
		items, err := decodeInvoices(out.Items)
		if err != nil {
			return nil, err
		}
		result = append(result, items...)
		if len(out.LastEvaluatedKey) == 0 {
			return result, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func conditionFailed(err error) bool {
	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		for _, reason := range canceled.CancellationReasons {
			if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
				return true
			}
		}
	}
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func decodeInvoices(raw []map[string]types.AttributeValue) ([]model.Invoice, error) {
	items := make([]model.Invoice, 0, len(raw))
	for _, r := range raw {
		var it invoiceItem
		if err := attributevalue.UnmarshalMap(r, &it); err != nil {
			return nil, fmt.Errorf("decode invoice item: %w", err)
		}
		items = append(items, fromInvoiceItem(it))
	}
	return items, nil
}

func unixMicroAttr(t time.Time) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(t.UnixMicro(), 10)}
}

func toInvoiceItem(inv model.Invoice) invoiceItem {
	return invoiceItem{
		ID:         inv.ID,
		Kind:       kindInvoice,
		OrderID:    inv.OrderID,
		CustomerID: inv.CustomerID,
		FileURL:    inv.FileURL,
		CreatedAt:  inv.CreatedAt.UnixMicro(),
		ExpireAt:   inv.ExpireAt.UnixMicro(),
	}
}

func fromInvoiceItem(it invoiceItem) model.Invoice {
	return model.Invoice{
		ID:         it.ID,
		OrderID:    it.OrderID,
		CustomerID: it.CustomerID,
		FileURL:    it.FileURL,
		CreatedAt:  time.UnixMicro(it.CreatedAt).UTC(),
		ExpireAt:   time.UnixMicro(it.ExpireAt).UTC(),
	}
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/yashrajoria/basket-service/models"
)

// DynamoDBAPI is the subset of the DynamoDB client used by DynamoAdapter.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoAdapter is the DynamoDB-backed BasketStore. Baskets live in a table
// with primary key `userName` (string); every other attribute is stored as-is.
type DynamoAdapter struct {
	client DynamoDBAPI
	table  string
}

func NewDynamoAdapter(client DynamoDBAPI, table string) *DynamoAdapter {
	return &DynamoAdapter{client: client, table: table}
}

func (d *DynamoAdapter) key(userName string) (map[string]types.AttributeValue, error) {
	key, err := attributevalue.MarshalMap(map[string]string{models.FieldUserName: userName})
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}
	return key, nil
}

func (d *DynamoAdapter) GetBasket(ctx context.Context, userName string) (*models.Basket, bool, error) {
	key, err := d.key(userName)
	if err != nil {
		return nil, false, storeErr("get", err)
	}
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{TableName: &d.table, Key: key})
	if err != nil {
		return nil, false, storeErr("get", fmt.Errorf("dynamodb GetItem failed: %w", err))
	}
	if len(out.Item) == 0 {
		return nil, false, nil
	}

	basket, err := decodeItem(out.Item)
	if err != nil {
		return nil, false, err
	}
	return basket, true, nil
}

// ListBaskets scans the whole table. Records that do not decode as baskets
// are skipped and logged.
func (d *DynamoAdapter) ListBaskets(ctx context.Context) ([]*models.Basket, error) {
	baskets := []*models.Basket{}
	paginator := dynamodb.NewScanPaginator(d.client, &dynamodb.ScanInput{TableName: &d.table})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, storeErr("list", fmt.Errorf("scan page failed: %w", err))
		}
		for _, it := range page.Items {
			b, err := decodeItem(it)
			if err != nil {
				zap.L().Warn("skipping unreadable basket record", zap.String("table", d.table), zap.Error(err))
				continue
			}
			baskets = append(baskets, b)
		}
	}
	return baskets, nil
}

func (d *DynamoAdapter) SaveBasket(ctx context.Context, basket *models.Basket) error {
	item, err := attributevalue.MarshalMap(basket.ToMap())
	if err != nil {
		return storeErr("put", fmt.Errorf("marshal basket: %w", err))
	}
	if _, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: &d.table, Item: item}); err != nil {
		return storeErr("put", fmt.Errorf("dynamodb PutItem failed: %w", err))
	}
	return nil
}

func (d *DynamoAdapter) DeleteBasket(ctx context.Context, userName string) error {
	key, err := d.key(userName)
	if err != nil {
		return storeErr("delete", err)
	}
	if _, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{TableName: &d.table, Key: key}); err != nil {
		return storeErr("delete", fmt.Errorf("dynamodb DeleteItem failed: %w", err))
	}
	return nil
}

func decodeItem(item map[string]types.AttributeValue) (*models.Basket, error) {
	var m map[string]any
	if err := attributevalue.UnmarshalMap(item, &m); err != nil {
		return nil, storeErr("decode", fmt.Errorf("unmarshal item: %w", err))
	}
	b, err := models.BasketFromMap(m)
	if err != nil {
		if errors.Is(err, models.ErrMalformedBasket) {
			return nil, err
		}
		return nil, storeErr("decode", err)
	}
	return b, nil
}

package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yashrajoria/basket-service/models"
	"github.com/yashrajoria/basket-service/repository"
)

// ---- in-memory DynamoDB ----

type fakeDynamo struct {
	items map[string]map[string]types.AttributeValue
	err   error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]types.AttributeValue{}}
}

func keyOf(item map[string]types.AttributeValue) string {
	if s, ok := item["userName"].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.GetItemOutput{Item: f.items[keyOf(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.items[keyOf(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	delete(f.items, keyOf(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) Scan(_ context.Context, _ *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := &dynamodb.ScanOutput{}
	for _, it := range f.items {
		out.Items = append(out.Items, it)
	}
	return out, nil
}

func TestDynamoAdapter_SaveGetDelete(t *testing.T) {
	ctx := context.Background()
	db := newFakeDynamo()
	store := repository.NewDynamoAdapter(db, "Baskets")

	basket := &models.Basket{
		UserName:   "alice",
		Attributes: map[string]any{"currency": "EUR"},
		Items: []models.BasketItem{
			{Price: 10, Attributes: map[string]any{"productId": "p1"}},
			{Price: 5},
		},
	}
	require.NoError(t, store.SaveBasket(ctx, basket))

	got, found, err := store.GetBasket(ctx, "alice")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, basket, got)

	require.NoError(t, store.DeleteBasket(ctx, "alice"))
	got, found, err = store.GetBasket(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, got)
}

func TestDynamoAdapter_DeleteMissingIsNoop(t *testing.T) {
	store := repository.NewDynamoAdapter(newFakeDynamo(), "Baskets")

	assert.NoError(t, store.DeleteBasket(context.Background(), "ghost"))
}

func TestDynamoAdapter_RecordWithoutItems(t *testing.T) {
	db := newFakeDynamo()
	db.items["bob"] = map[string]types.AttributeValue{
		"userName": &types.AttributeValueMemberS{Value: "bob"},
	}
	store := repository.NewDynamoAdapter(db, "Baskets")

	got, found, err := store.GetBasket(context.Background(), "bob")

	require.NoError(t, err)
	require.True(t, found)
	assert.Nil(t, got.Items)
}

func TestDynamoAdapter_MalformedRecord(t *testing.T) {
	db := newFakeDynamo()
	db.items["bad"] = map[string]types.AttributeValue{
		"userName": &types.AttributeValueMemberS{Value: "bad"},
		"items":    &types.AttributeValueMemberS{Value: "not-a-list"},
	}
	db.items["good"] = map[string]types.AttributeValue{
		"userName": &types.AttributeValueMemberS{Value: "good"},
		"items":    &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
	}
	store := repository.NewDynamoAdapter(db, "Baskets")

	_, _, err := store.GetBasket(context.Background(), "bad")
	assert.ErrorIs(t, err, models.ErrMalformedBasket)
	assert.NotErrorIs(t, err, repository.ErrStore)

	all, err := store.ListBaskets(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "good", all[0].UserName)
}

func TestDynamoAdapter_ClientErrorsAreStoreErrors(t *testing.T) {
	ctx := context.Background()
	db := newFakeDynamo()
	db.err = errors.New("ProvisionedThroughputExceededException")
	store := repository.NewDynamoAdapter(db, "Baskets")

	_, _, err := store.GetBasket(ctx, "alice")
	assert.ErrorIs(t, err, repository.ErrStore)

	_, err = store.ListBaskets(ctx)
	assert.ErrorIs(t, err, repository.ErrStore)

	assert.ErrorIs(t, store.SaveBasket(ctx, models.EmptyBasket("alice")), repository.ErrStore)

	err = store.DeleteBasket(ctx, "alice")
	var se *repository.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "delete", se.Op)
}

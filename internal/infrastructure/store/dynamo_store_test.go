package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamo keeps items by their "key" attribute
type fakeDynamo struct {
	items map[string]map[string]types.AttributeValue
	err   error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func keyOf(attrs map[string]types.AttributeValue) string {
	if v, ok := attrs["key"].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func (f *fakeDynamo) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.GetItemOutput{Item: f.items[keyOf(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.items[keyOf(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	delete(f.items, keyOf(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func TestDynamoStore_SetGetDelete(t *testing.T) {
	client := newFakeDynamo()
	s := NewDynamoStore(client, "storefront-state")
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "cart", []byte(`{"cartItems":[]}`), time.Time{}))
	_, hasTTL := client.items["cart"]["expires_at"]
	assert.False(t, hasTTL, "no expiry means no TTL attribute")

	value, ok, err := s.Get(ctx, "cart")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"cartItems":[]}`, string(value))

	require.NoError(t, s.Delete(ctx, "cart"))
	_, ok, err = s.Get(ctx, "cart")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDynamoStore_ExpiredItemHidden(t *testing.T) {
	clock := newFakeClock()
	client := newFakeDynamo()
	s := NewDynamoStore(client, "storefront-state")
	s.now = clock.Now
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "token", []byte("abc"), clock.now.Add(time.Hour)))
	ttl, ok := client.items["token"]["expires_at"].(*types.AttributeValueMemberN)
	require.True(t, ok)
	assert.NotEmpty(t, ttl.Value)

	clock.Advance(2 * time.Hour)
	_, found, err := s.Get(ctx, "token")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDynamoStore_ClientError(t *testing.T) {
	client := newFakeDynamo()
	client.err = errors.New("throttled")
	s := NewDynamoStore(client, "storefront-state")

	_, _, err := s.Get(context.Background(), "cart")
	assert.ErrorContains(t, err, "failed to get item")
}

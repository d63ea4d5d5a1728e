package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockDynamoDBClient mocks the DynamoDB client
type MockDynamoDBClient struct {
	mock.Mock
}

func (m *MockDynamoDBClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(*dynamodb.PutItemOutput), args.Error(1)
}

func (m *MockDynamoDBClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(*dynamodb.QueryOutput), args.Error(1)
}

func (m *MockDynamoDBClient) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(*dynamodb.ScanOutput), args.Error(1)
}

func routeItem(id, sessionID, label, createdAt string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id":         &types.AttributeValueMemberS{Value: id},
		"session_id": &types.AttributeValueMemberS{Value: sessionID},
		"origin": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"lat": &types.AttributeValueMemberN{Value: "25"},
			"lng": &types.AttributeValueMemberN{Value: "91"},
		}},
		"destination": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"lat": &types.AttributeValueMemberN{Value: "25.004"},
			"lng": &types.AttributeValueMemberN{Value: "91.006"},
		}},
		"lot_label":  &types.AttributeValueMemberS{Value: label},
		"distance_m": &types.AttributeValueMemberN{Value: "812.4"},
		"duration_s": &types.AttributeValueMemberN{Value: "95.1"},
		"fallback":   &types.AttributeValueMemberBOOL{Value: false},
		"created_at": &types.AttributeValueMemberS{Value: createdAt},
	}
}

func TestDynamoDBRouteStorage_CreateRoute(t *testing.T) {
	mockClient := new(MockDynamoDBClient)
	storage := NewDynamoDBRouteStorage(mockClient, "test-routes")

	record := newTestRecord("session-1", "Parking Lot 1", time.Time{})

	mockClient.On("PutItem", mock.Anything, mock.MatchedBy(func(input *dynamodb.PutItemInput) bool {
		_, hasID := input.Item["id"]
		session, _ := input.Item["session_id"].(*types.AttributeValueMemberS)
		return *input.TableName == "test-routes" &&
			*input.ConditionExpression == "attribute_not_exists(id)" &&
			hasID && session != nil && session.Value == "session-1"
	})).Return(&dynamodb.PutItemOutput{}, nil)

	err := storage.CreateRoute(context.Background(), record)

	assert.NoError(t, err)
	assert.NotEmpty(t, record.ID)
	assert.False(t, record.CreatedAt.IsZero())
	mockClient.AssertExpectations(t)
}

func TestDynamoDBRouteStorage_CreateRoute_Error(t *testing.T) {
	mockClient := new(MockDynamoDBClient)
	storage := NewDynamoDBRouteStorage(mockClient, "test-routes")

	mockClient.On("PutItem", mock.Anything, mock.Anything).
		Return(&dynamodb.PutItemOutput{}, errors.New("throttled"))

	err := storage.CreateRoute(context.Background(), newTestRecord("session-1", "Parking Lot 1", time.Now()))

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to put route")
	mockClient.AssertExpectations(t)
}

func TestDynamoDBRouteStorage_GetRoutesBySession(t *testing.T) {
	mockClient := new(MockDynamoDBClient)
	storage := NewDynamoDBRouteStorage(mockClient, "test-routes")

	mockClient.On("Query", mock.Anything, mock.MatchedBy(func(input *dynamodb.QueryInput) bool {
		value, _ := input.ExpressionAttributeValues[":session_id"].(*types.AttributeValueMemberS)
		return *input.TableName == "test-routes" &&
			*input.IndexName == "session-index" &&
			value != nil && value.Value == "session-1"
	})).Return(&dynamodb.QueryOutput{
		Items: []map[string]types.AttributeValue{
			routeItem("r1", "session-1", "Parking Lot 4", "2026-10-19T12:00:00Z"),
		},
	}, nil)

	routes, err := storage.GetRoutesBySession(context.Background(), "session-1")

	assert.NoError(t, err)
	assert.Len(t, routes, 1)
	assert.Equal(t, "r1", routes[0].ID)
	assert.Equal(t, "Parking Lot 4", routes[0].LotLabel)
	assert.Equal(t, 25.004, routes[0].Destination.Lat)
	assert.Equal(t, 91.0, routes[0].Origin.Lng)
	mockClient.AssertExpectations(t)
}

func TestDynamoDBRouteStorage_GetRoutesBySession_OrdersByTime(t *testing.T) {
	mockClient := new(MockDynamoDBClient)
	storage := NewDynamoDBRouteStorage(mockClient, "test-routes")

	// String order of the sort key puts ".5Z" before "Z"
	mockClient.On("Query", mock.Anything, mock.Anything).Return(&dynamodb.QueryOutput{
		Items: []map[string]types.AttributeValue{
			routeItem("r2", "session-1", "Parking Lot 2", "2026-10-19T12:00:05.5Z"),
			routeItem("r1", "session-1", "Parking Lot 1", "2026-10-19T12:00:05Z"),
		},
	}, nil)

	routes, err := storage.GetRoutesBySession(context.Background(), "session-1")

	assert.NoError(t, err)
	assert.Len(t, routes, 2)
	assert.Equal(t, "r1", routes[0].ID)
	assert.Equal(t, "r2", routes[1].ID)
	mockClient.AssertExpectations(t)
}

func TestDynamoDBRouteStorage_GetAllRoutes_Paginates(t *testing.T) {
	mockClient := new(MockDynamoDBClient)
	storage := NewDynamoDBRouteStorage(mockClient, "test-routes")

	lastKey := map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: "r2"}}

	mockClient.On("Scan", mock.Anything, mock.MatchedBy(func(input *dynamodb.ScanInput) bool {
		return input.ExclusiveStartKey == nil
	})).Return(&dynamodb.ScanOutput{
		Items: []map[string]types.AttributeValue{
			routeItem("r2", "session-2", "Parking Lot 2", "2026-10-19T12:05:00Z"),
		},
		LastEvaluatedKey: lastKey,
	}, nil).Once()

	mockClient.On("Scan", mock.Anything, mock.MatchedBy(func(input *dynamodb.ScanInput) bool {
		return input.ExclusiveStartKey != nil
	})).Return(&dynamodb.ScanOutput{
		Items: []map[string]types.AttributeValue{
			routeItem("r1", "session-1", "Parking Lot 1", "2026-10-19T12:00:00Z"),
		},
	}, nil).Once()

	routes, err := storage.GetAllRoutes(context.Background())

	assert.NoError(t, err)
	assert.Len(t, routes, 2)
	assert.Equal(t, "r1", routes[0].ID)
	assert.Equal(t, "r2", routes[1].ID)
	mockClient.AssertExpectations(t)
}

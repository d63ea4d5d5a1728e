package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// sessionIndex is the GSI keyed by session_id with created_at as sort key
const sessionIndex = "session-index"

// DynamoDBAPI interface for mocking
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

type DynamoDBRouteStorage struct {
	client    DynamoDBAPI
	tableName string
}

func NewDynamoDBRouteStorage(client DynamoDBAPI, tableName string) *DynamoDBRouteStorage {
	return &DynamoDBRouteStorage{
		client:    client,
		tableName: tableName,
	}
}

func (d *DynamoDBRouteStorage) CreateRoute(ctx context.Context, record *RouteRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("failed to marshal route: %w", err)
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		return fmt.Errorf("failed to put route: %w", err)
	}

	return nil
}

func (d *DynamoDBRouteStorage) GetRoutesBySession(ctx context.Context, sessionID string) ([]*RouteRecord, error) {
	var routes []*RouteRecord
	var startKey map[string]types.AttributeValue

	for {
		result, err := d.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(d.tableName),
			IndexName:              aws.String(sessionIndex),
			KeyConditionExpression: aws.String("session_id = :session_id"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":session_id": &types.AttributeValueMemberS{Value: sessionID},
			},
			ScanIndexForward:  aws.Bool(true),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query routes by session: %w", err)
		}

		page, err := unmarshalRoutes(result.Items)
		if err != nil {
			return nil, err
		}
		routes = append(routes, page...)

		if len(result.LastEvaluatedKey) == 0 {
			break
		}
		startKey = result.LastEvaluatedKey
	}

	// created_at is an RFC3339Nano string with trailing zeros trimmed, so the
	// index order is not chronological within a second
	sortByCreated(routes)
	return routes, nil
}

func (d *DynamoDBRouteStorage) GetAllRoutes(ctx context.Context) ([]*RouteRecord, error) {
	var routes []*RouteRecord
	var startKey map[string]types.AttributeValue

	for {
		result, err := d.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(d.tableName),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan routes: %w", err)
		}

		page, err := unmarshalRoutes(result.Items)
		if err != nil {
			return nil, err
		}
		routes = append(routes, page...)

		if len(result.LastEvaluatedKey) == 0 {
			break
		}
		startKey = result.LastEvaluatedKey
	}

	sortByCreated(routes)
	return routes, nil
}

func unmarshalRoutes(items []map[string]types.AttributeValue) ([]*RouteRecord, error) {
	routes := make([]*RouteRecord, 0, len(items))
	for _, item := range items {
		var record RouteRecord
		if err := attributevalue.UnmarshalMap(item, &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal route: %w", err)
		}
		routes = append(routes, &record)
	}
	return routes, nil
}

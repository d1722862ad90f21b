package report

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDBSink stores each record as an item.
// Keys follow a single-table layout: PK="RUN#<run_id>", SK="RUN".
type DynamoDBSink struct {
	client    *dynamodb.Client
	tableName string
}

// NewDynamoDBSink creates a sink writing to tableName.
func NewDynamoDBSink(client *dynamodb.Client, tableName string) *DynamoDBSink {
	return &DynamoDBSink{
		client:    client,
		tableName: tableName,
	}
}

func (s *DynamoDBSink) Report(ctx context.Context, r Record) error {
	item, err := attributevalue.MarshalMap(r)
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}
	item["PK"] = &types.AttributeValueMemberS{Value: "RUN#" + r.RunID}
	item["SK"] = &types.AttributeValueMemberS{Value: "RUN"}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		return fmt.Errorf("failed to put run record: %w", err)
	}
	return nil
}

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// dynamoTimeout bounds each DynamoDB call. The KV contract has no context,
// so the adapter owns the deadline.
const dynamoTimeout = 5 * time.Second

// dynamoAPI is the subset of the DynamoDB client used here (for testing).
type dynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// dynamoRecord is the item layout: partition key "key", payload "value".
type dynamoRecord struct {
	Key       string `dynamodbav:"key"`
	Value     []byte `dynamodbav:"value"`
	UpdatedAt string `dynamodbav:"updated_at"`
}

// Dynamo is a KV backed by a single DynamoDB table whose partition key is
// the string attribute "key".
type Dynamo struct {
	client    dynamoAPI
	tableName string
}

// NewDynamo wraps an existing client.
func NewDynamo(client *dynamodb.Client, tableName string) *Dynamo {
	return &Dynamo{client: client, tableName: tableName}
}

// OpenDynamo loads the default AWS config for region and returns a Dynamo KV.
func OpenDynamo(ctx context.Context, region, tableName string) (*Dynamo, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewDynamo(dynamodb.NewFromConfig(cfg), tableName), nil
}

// Get returns the value stored under key.
func (d *Dynamo) Get(key string) ([]byte, bool, error) {
	if d.client == nil {
		return nil, false, fmt.Errorf("dynamodb client not initialized")
	}

	ctx, cancel := context.WithTimeout(context.Background(), dynamoTimeout)
	defer cancel()

	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]dynamodbtypes.AttributeValue{
			"key": &dynamodbtypes.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	if out.Item == nil {
		return nil, false, nil
	}

	var rec dynamoRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, false, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return rec.Value, true, nil
}

// Set upserts value under key.
func (d *Dynamo) Set(key string, value []byte) error {
	if d.client == nil {
		return fmt.Errorf("dynamodb client not initialized")
	}

	item, err := attributevalue.MarshalMap(dynamoRecord{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), dynamoTimeout)
	defer cancel()

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

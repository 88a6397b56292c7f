package dynamo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/tendant/simple-registry/pkg/registry"
)

// conditionNotExists rejects the put when an item with the same sort key
// already exists under the partition key.
const conditionNotExists = "attribute_not_exists(sk)"

// API is the subset of the DynamoDB client used by the repository
type API interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Config options for the DynamoDB repository
type Config struct {
	Table           string // Table with string partition key "pk" and sort key "sk"
	Region          string // AWS region
	Endpoint        string // Optional custom endpoint (DynamoDB Local)
	AccessKeyID     string // AWS access key ID
	SecretAccessKey string // AWS secret access key
}

// Repository implements registry.RecordStore on a DynamoDB table keyed by
// pk = package name and sk = version.
type Repository struct {
	client API
	table  string
}

// item is the stored shape of a record
type item struct {
	PK        string    `dynamodbav:"pk"`
	SK        string    `dynamodbav:"sk"`
	ID        string    `dynamodbav:"id"`
	Checksum  string    `dynamodbav:"cksum"`
	PURL      string    `dynamodbav:"purl"`
	Metadata  string    `dynamodbav:"metadata"`
	CreatedAt time.Time `dynamodbav:"created_at"`
}

// New creates a repository with a client built from config
func New(config Config) (*Repository, error) {
	if config.Table == "" {
		return nil, errors.New("table name is required")
	}
	if config.Region == "" {
		config.Region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(config.Region),
	}
	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			config.AccessKeyID,
			config.SecretAccessKey,
			"",
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var ddbOptions []func(*dynamodb.Options)
	if config.Endpoint != "" {
		ddbOptions = append(ddbOptions, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
		})
	}

	return NewWithClient(dynamodb.NewFromConfig(awsCfg, ddbOptions...), config.Table), nil
}

// NewWithClient creates a repository around an existing client
func NewWithClient(client API, table string) *Repository {
	return &Repository{client: client, table: table}
}

// PutRecordIfAbsent issues one conditional PutItem.
func (r *Repository) PutRecordIfAbsent(ctx context.Context, record *registry.PackageRecord) error {
	it, err := toItem(record)
	if err != nil {
		return err
	}
	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                av,
		ConditionExpression: aws.String(conditionNotExists),
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return fmt.Errorf("%s: %w", record.Key(), registry.ErrDuplicateVersion)
		}
		return fmt.Errorf("dynamodb put item: %w", errors.Join(registry.ErrStoreUnavailable, err))
	}
	return nil
}

func (r *Repository) GetRecord(ctx context.Context, name, version string) (*registry.PackageRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: name},
			"sk": &types.AttributeValueMemberS{Value: version},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb get item: %w", errors.Join(registry.ErrStoreUnavailable, err))
	}
	if len(out.Item) == 0 {
		return nil, registry.ErrRecordNotFound
	}
	return fromAttributes(out.Item)
}

func (r *Repository) ListRecords(ctx context.Context, name string) ([]*registry.PackageRecord, error) {
	paginator := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.table),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: name},
		},
		ConsistentRead: aws.Bool(true),
	})

	records := []*registry.PackageRecord{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("dynamodb query: %w", errors.Join(registry.ErrStoreUnavailable, err))
		}
		for _, av := range page.Items {
			record, err := fromAttributes(av)
			if err != nil {
				return nil, err
			}
			records = append(records, record)
		}
	}

	// sk orders versions lexically; callers expect registration order
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

func (r *Repository) ListNames(ctx context.Context) ([]string, error) {
	paginator := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName:            aws.String(r.table),
		ProjectionExpression: aws.String("pk"),
	})

	seen := make(map[string]struct{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("dynamodb scan: %w", errors.Join(registry.ErrStoreUnavailable, err))
		}
		for _, av := range page.Items {
			if pk, ok := av["pk"].(*types.AttributeValueMemberS); ok {
				seen[pk.Value] = struct{}{}
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func toItem(record *registry.PackageRecord) (*item, error) {
	metadata, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record metadata: %w", err)
	}
	return &item{
		PK:        record.Name,
		SK:        record.Version,
		ID:        record.ID.String(),
		Checksum:  record.Checksum,
		PURL:      record.PURL,
		Metadata:  string(metadata),
		CreatedAt: record.CreatedAt,
	}, nil
}

func fromAttributes(av map[string]types.AttributeValue) (*registry.PackageRecord, error) {
	var it item
	if err := attributevalue.UnmarshalMap(av, &it); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}

	var record registry.PackageRecord
	if err := json.Unmarshal([]byte(it.Metadata), &record); err != nil {
		return nil, fmt.Errorf("failed to decode record metadata: %w", err)
	}

	id, err := uuid.Parse(it.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid record id %q: %w", it.ID, err)
	}
	record.ID = id
	record.Name = it.PK
	record.Version = it.SK
	record.Checksum = it.Checksum
	record.PURL = it.PURL
	record.CreatedAt = it.CreatedAt.UTC()
	return &record, nil
}

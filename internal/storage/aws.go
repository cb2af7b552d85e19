package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/ignite/campaign-dispatcher/internal/config"
	"github.com/ignite/campaign-dispatcher/internal/domain"
)

// indexRetention is how long DynamoDB keeps run index items.
const indexRetention = 90 * 24 * time.Hour

type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type dynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// RunIndexItem is the DynamoDB summary row written next to each S3 report.
type RunIndexItem struct {
	PK        string `dynamodbav:"PK"` // RUN#<date>
	SK        string `dynamodbav:"SK"` // <started_at>#<run_id>
	RunID     string `dynamodbav:"RunID"`
	Status    string `dynamodbav:"Status"`
	Campaigns int    `dynamodbav:"Campaigns"`
	Enqueued  int    `dynamodbav:"Enqueued"`
	Failed    int    `dynamodbav:"Failed"`
	S3Key     string `dynamodbav:"S3Key"`
	Timestamp string `dynamodbav:"Timestamp"`
	TTL       int64  `dynamodbav:"TTL,omitempty"`
}

// AWSStore keeps full reports in S3 and an optional per-day index in DynamoDB.
type AWSStore struct {
	s3     s3API
	dynamo dynamoAPI
	bucket string
	table  string
	prefix string
}

// NewAWSStore loads AWS credentials from the profile, static keys, or the
// default chain, in that order of preference.
func NewAWSStore(ctx context.Context, cfg config.StorageConfig) (*AWSStore, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if profile := cfg.GetAWSProfile(); profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	} else if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	var dynamo dynamoAPI
	if cfg.DynamoDBTable != "" {
		dynamo = dynamodb.NewFromConfig(awsCfg)
	}
	return newAWSStore(s3.NewFromConfig(awsCfg), dynamo, cfg.S3Bucket, cfg.DynamoDBTable, cfg.S3Prefix), nil
}

func newAWSStore(s3c s3API, dynamo dynamoAPI, bucket, table, prefix string) *AWSStore {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &AWSStore{s3: s3c, dynamo: dynamo, bucket: bucket, table: table, prefix: prefix}
}

// SaveRun uploads the report and then writes its index item.
func (s *AWSStore) SaveRun(ctx context.Context, report *domain.RunReport) error {
	key, err := runKey(report.Date, report.RunID)
	if err != nil {
		return err
	}
	key = s.prefix + key

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling run report: %w", err)
	}
	_, err = s.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("putting object to S3: %w", err)
	}

	if s.dynamo == nil || s.table == "" {
		return nil
	}
	return s.putIndex(ctx, report, key)
}

func (s *AWSStore) putIndex(ctx context.Context, report *domain.RunReport, key string) error {
	started := report.StartedAt.UTC()
	item := RunIndexItem{
		PK:        "RUN#" + report.Date,
		SK:        started.Format(time.RFC3339) + "#" + report.RunID,
		RunID:     report.RunID,
		Status:    string(report.Status),
		Campaigns: len(report.Campaigns),
		Enqueued:  report.TotalEnqueued(),
		Failed:    report.TotalFailed(),
		S3Key:     key,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		TTL:       started.Add(indexRetention).Unix(),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshaling index item: %w", err)
	}
	_, err = s.dynamo.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("putting item to DynamoDB: %w", err)
	}
	return nil
}

// GetRun downloads one report.
func (s *AWSStore) GetRun(ctx context.Context, date, runID string) (*domain.RunReport, error) {
	key, err := runKey(date, runID)
	if err != nil {
		return nil, err
	}
	return s.getObject(ctx, s.prefix+key)
}

// ListRuns downloads every report stored under the day's prefix.
func (s *AWSStore) ListRuns(ctx context.Context, date string) ([]domain.RunReport, error) {
	prefix, err := dayPrefix(date)
	if err != nil {
		return nil, err
	}

	reports := []domain.RunReport{}
	pages := s3.NewListObjectsV2Paginator(s.s3, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix + prefix + "/"),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing S3 objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, ".json") {
				continue
			}
			r, err := s.getObject(ctx, key)
			if err != nil {
				return nil, err
			}
			reports = append(reports, *r)
		}
	}
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].StartedAt.Before(reports[j].StartedAt)
	})
	return reports, nil
}

func (s *AWSStore) getObject(ctx context.Context, key string) (*domain.RunReport, error) {
	result, err := s.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting object from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("reading S3 object body: %w", err)
	}
	var r domain.RunReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshaling S3 data: %w", err)
	}
	return &r, nil
}

package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

// DynamoDB key constants for the single-table design.
const (
	pkPrefix     = "VIDEO#"
	skTranscript = "TRANSCRIPT"
)

// DynamoAPI is the subset of *dynamodb.Client used by DynamoStore.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoStore implements TranscriptStore using AWS DynamoDB.
// Items larger than DynamoDB's 400 KB limit fail to write; callers treat
// cache writes as best-effort.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
}

// Compile-time interface check.
var _ TranscriptStore = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for the given table.
// The client should be initialized from the shared AWS config.
func NewDynamoStore(client DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
	}
}

// --- Internal helpers ---

// videoPK returns the partition key for a video link.
func videoPK(videoURL string) string {
	return pkPrefix + Key(videoURL)
}

// expiresAt returns the Unix epoch timestamp for record expiration.
func expiresAt(createdAt int64) int64 {
	return time.Unix(createdAt, 0).Add(TranscriptTTL).Unix()
}

// putItem marshals a domain object and writes it to DynamoDB with PK, SK, and TTL.
func (s *DynamoStore) putItem(ctx context.Context, pk, sk string, ttl int64, data interface{}) error {
	item, err := attributevalue.MarshalMap(data)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	// Add key and TTL attributes (overwrite any conflicting keys from the data).
	item["PK"] = &types.AttributeValueMemberS{Value: pk}
	item["SK"] = &types.AttributeValueMemberS{Value: sk}
	item["expiresAt"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(ttl, 10)}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem PK=%s SK=%s: %w", pk, sk, err)
	}
	return nil
}

// getItem reads a single item from DynamoDB and unmarshals it into out.
// Returns false if the item does not exist (out is not modified).
func (s *DynamoStore) getItem(ctx context.Context, pk, sk string, out interface{}) (bool, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: sk},
		},
	})
	if err != nil {
		return false, fmt.Errorf("GetItem PK=%s SK=%s: %w", pk, sk, err)
	}
	if result.Item == nil {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(result.Item, out); err != nil {
		return false, fmt.Errorf("unmarshal PK=%s SK=%s: %w", pk, sk, err)
	}
	return true, nil
}

// --- Transcript operations ---

func (s *DynamoStore) PutTranscript(ctx context.Context, t *CachedTranscript) error {
	if err := prepare(t); err != nil {
		return err
	}
	if err := s.putItem(ctx, videoPK(t.VideoURL), skTranscript, expiresAt(t.CreatedAt), t); err != nil {
		return fmt.Errorf("put transcript %s: %w", t.JobID, err)
	}

	log.Debug().
		Str("videoUrl", t.VideoURL).
		Str("jobId", t.JobID).
		Int("records", len(t.Records)).
		Msg("Transcript cached in DynamoDB")
	return nil
}

func (s *DynamoStore) GetTranscript(ctx context.Context, videoURL string) (*CachedTranscript, error) {
	var t CachedTranscript
	found, err := s.getItem(ctx, videoPK(videoURL), skTranscript, &t)
	if err != nil {
		return nil, fmt.Errorf("get transcript: %w", err)
	}
	// TTL deletion is lazy, so an expired item may still be returned.
	if !found || t.Expired(time.Now()) {
		log.Debug().Str("videoUrl", videoURL).Bool("found", false).Msg("GetTranscript: cache miss")
		return nil, nil
	}

	log.Debug().Str("videoUrl", videoURL).Str("jobId", t.JobID).Bool("found", true).Msg("GetTranscript: cache hit")
	return &t, nil
}

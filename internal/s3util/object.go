// Package s3util provides the S3 object helpers behind the transcript
// cache: zstd-compressed JSON documents with a cost-allocation tag.
package s3util

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

// projectTag is the URL-encoded S3 object tagging string for cost allocation.
const projectTag = "Project=call-sentiment"

// maxObjectBytes caps the decompressed size of a cached document.
const maxObjectBytes = 256 << 20

// ObjectAPI is the subset of *s3.Client used here.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ProjectTagging returns a pointer to the URL-encoded S3 object tagging string.
func ProjectTagging() *string {
	return aws.String(projectTag)
}

// Compress encodes data with zstd at the default level.
func Compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, make([]byte, 0, len(data)/4)), nil
}

// Decompress reads a zstd stream fully, refusing output larger than maxObjectBytes.
func Decompress(r io.Reader) ([]byte, error) {
	dec, err := zstd.NewReader(r, zstd.WithDecoderMaxMemory(maxObjectBytes))
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()

	data, err := io.ReadAll(io.LimitReader(dec, maxObjectBytes+1))
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	if len(data) > maxObjectBytes {
		return nil, fmt.Errorf("decompressed object exceeds %d bytes", maxObjectBytes)
	}
	return data, nil
}

// PutCompressedJSON marshals v, compresses it with zstd and writes it to
// bucket/key. It returns the number of bytes stored.
func PutCompressedJSON(ctx context.Context, client ObjectAPI, bucket, key string, v any) (int, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("marshal %s: %w", key, err)
	}
	body, err := Compress(raw)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(body),
		ContentType:     aws.String("application/json"),
		ContentEncoding: aws.String("zstd"),
		Tagging:         ProjectTagging(),
	})
	if err != nil {
		return 0, fmt.Errorf("S3 PutObject %s: %w", key, err)
	}

	log.Debug().
		Str("bucket", bucket).
		Str("key", key).
		Int("raw_bytes", len(raw)).
		Int("stored_bytes", len(body)).
		Dur("duration", time.Since(start)).
		Msg("Compressed object uploaded to S3")
	return len(body), nil
}

// GetCompressedJSON reads bucket/key written by PutCompressedJSON into out.
// It returns false (and leaves out untouched) when the object does not exist.
func GetCompressedJSON(ctx context.Context, client ObjectAPI, bucket, key string, out any) (bool, error) {
	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return false, nil
		}
		return false, fmt.Errorf("S3 GetObject %s: %w", key, err)
	}
	defer result.Body.Close()

	raw, err := Decompress(result.Body)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return true, nil
}

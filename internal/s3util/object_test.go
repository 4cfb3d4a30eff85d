package s3util

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/require"
)

// memObjects is an in-memory ObjectAPI.
type memObjects struct {
	objects map[string][]byte
	puts    []*s3.PutObjectInput
}

func newMemObjects() *memObjects {
	return &memObjects{objects: make(map[string][]byte)}
}

func (m *memObjects) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	m.puts = append(m.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func (m *memObjects) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := m.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{Message: aws.String("not found")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

type doc struct {
	Name  string   `json:"name"`
	Lines []string `json:"lines"`
}

func TestPutGetCompressedJSON(t *testing.T) {
	ctx := context.Background()
	client := newMemObjects()
	in := doc{Name: "call", Lines: []string{strings.Repeat("revenue grew ", 200), "margins fell"}}

	n, err := PutCompressedJSON(ctx, client, "bucket", "transcripts/a.json.zst", in)
	require.NoError(t, err)
	require.Greater(t, n, 0)

	stored := client.objects["bucket/transcripts/a.json.zst"]
	require.Len(t, stored, n)
	require.Less(t, n, len(in.Lines[0]), "repetitive text should compress")

	put := client.puts[0]
	require.Equal(t, "zstd", aws.ToString(put.ContentEncoding))
	require.Equal(t, "Project=call-sentiment", aws.ToString(put.Tagging))

	var out doc
	found, err := GetCompressedJSON(ctx, client, "bucket", "transcripts/a.json.zst", &out)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, in, out)
}

func TestGetCompressedJSON_Missing(t *testing.T) {
	var out doc
	found, err := GetCompressedJSON(context.Background(), newMemObjects(), "bucket", "nope", &out)
	require.NoError(t, err)
	require.False(t, found)
}

func TestGetCompressedJSON_Corrupt(t *testing.T) {
	client := newMemObjects()
	client.objects["bucket/bad"] = []byte("not zstd at all")

	var out doc
	_, err := GetCompressedJSON(context.Background(), client, "bucket", "bad", &out)
	require.Error(t, err)
}

package objectstore

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/vrag/internal/pkg/errors"
)

func awsConfigForTest() aws.Config {
	return aws.Config{Region: "us-east-1"}
}

type fakeS3 struct {
	objects map[string][]byte
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func TestS3Store_PutGetList(t *testing.T) {
	ctx := context.Background()
	store := newS3Store(&fakeS3{objects: map[string][]byte{}}, "vrag-bucket")

	require.NoError(t, store.Put(ctx, "images/a.png", []byte("a")))
	require.NoError(t, store.Put(ctx, "images/b.png", []byte("b")))
	require.NoError(t, store.Put(ctx, "outputs/x/output.mp4", []byte("v")))

	data, err := store.Get(ctx, "images/a.png")
	require.NoError(t, err)
	require.Equal(t, []byte("a"), data)

	keys, err := store.List(ctx, "images/")
	require.NoError(t, err)
	require.Equal(t, []string{"images/a.png", "images/b.png"}, keys)

	_, err = store.Get(ctx, "images/missing.png")
	require.ErrorIs(t, err, appErr.ErrNotFound)

	require.NoError(t, store.Delete(ctx, "images/a.png"))
	require.NoError(t, store.Delete(ctx, "images/a.png"))
	_, err = store.Get(ctx, "images/a.png")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestS3Store_URI(t *testing.T) {
	store := newS3Store(&fakeS3{objects: map[string][]byte{}}, "vrag-bucket")
	require.Equal(t, "s3://vrag-bucket/encoded/a.b64", store.URI("encoded/a.b64"))

	key, err := store.KeyFromURI("s3://vrag-bucket/encoded/a.b64")
	require.NoError(t, err)
	require.Equal(t, "encoded/a.b64", key)

	_, err = store.KeyFromURI("s3://other-bucket/encoded/a.b64")
	require.Error(t, err)
}

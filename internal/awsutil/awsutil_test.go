package awsutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildS3URI(t *testing.T) {
	require.Equal(t, "s3://bucket/a/b.png", BuildS3URI("bucket", "/a/b.png"))
	require.Equal(t, "s3://bucket/a/b.png", BuildS3URI("bucket", "a/b.png"))
}

func TestParseS3URI(t *testing.T) {
	bucket, key, err := ParseS3URI("s3://bucket/encoded/shoes.png.b64")
	require.NoError(t, err)
	require.Equal(t, "bucket", bucket)
	require.Equal(t, "encoded/shoes.png.b64", key)

	for _, bad := range []string{"", "https://bucket/key", "s3://bucket", "s3://bucket/", "s3:///key"} {
		_, _, err := ParseS3URI(bad)
		require.Error(t, err, bad)
	}
}

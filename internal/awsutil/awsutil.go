package awsutil

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/xxxsen/vrag/internal/config"
)

func Load(ctx context.Context, c config.AWSConfig) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(c.Region),
	}
	if c.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(c.Profile))
	}
	if c.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, c.SessionToken),
		))
	}
	if c.MaxAttempts > 0 {
		opts = append(opts, awsconfig.WithRetryMaxAttempts(c.MaxAttempts))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

const s3Scheme = "s3://"

func BuildS3URI(bucket, key string) string {
	return s3Scheme + bucket + "/" + strings.TrimPrefix(key, "/")
}

func ParseS3URI(uri string) (bucket string, key string, err error) {
	if !strings.HasPrefix(uri, s3Scheme) {
		return "", "", fmt.Errorf("not an s3 uri: %q", uri)
	}
	rest := strings.TrimPrefix(uri, s3Scheme)
	idx := strings.Index(rest, "/")
	if idx <= 0 {
		return "", "", fmt.Errorf("s3 uri has no key: %q", uri)
	}
	bucket, key = rest[:idx], rest[idx+1:]
	if key == "" {
		return "", "", fmt.Errorf("s3 uri has no key: %q", uri)
	}
	return bucket, key, nil
}

package paramstore

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/vrag/internal/config"
)

type ssmAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

type Getter interface {
	GetParameter(ctx context.Context, name string) string
}

type ssmGetter struct {
	client ssmAPI
}

func New(awsCfg aws.Config) Getter {
	return &ssmGetter{client: ssm.NewFromConfig(awsCfg)}
}

func newWithClient(client ssmAPI) Getter {
	return &ssmGetter{client: client}
}

// GetParameter returns "" when the parameter cannot be read. The failure is
// logged, not returned.
func (g *ssmGetter) GetParameter(ctx context.Context, name string) string {
	if name == "" {
		return ""
	}
	out, err := g.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		logutil.GetLogger(ctx).Error("get parameter failed", zap.String("name", name), zap.Error(err))
		return ""
	}
	if out.Parameter == nil {
		logutil.GetLogger(ctx).Warn("parameter has no value", zap.String("name", name))
		return ""
	}
	return aws.ToString(out.Parameter.Value)
}

// Resolve fills bootstrap values the config file left empty: the object
// store bucket, the vector index name and the collection endpoint.
func Resolve(ctx context.Context, g Getter, cfg *config.Config) {
	p := cfg.ParameterStore
	if p.BucketParam != "" && cfg.ObjectStore.Type == "s3" {
		cfg.ObjectStore.Data = fillDataField(ctx, g, cfg.ObjectStore.Data, "bucket", p.BucketParam)
	}
	if cfg.VectorStore.Type == "opensearch" {
		if p.IndexParam != "" {
			cfg.VectorStore.Data = fillDataField(ctx, g, cfg.VectorStore.Data, "index", p.IndexParam)
		}
		if p.EndpointParam != "" {
			cfg.VectorStore.Data = fillDataField(ctx, g, cfg.VectorStore.Data, "endpoint", p.EndpointParam)
		}
	}
}

func fillDataField(ctx context.Context, g Getter, data interface{}, field, param string) interface{} {
	m, ok := data.(map[string]interface{})
	if !ok || m == nil {
		m = map[string]interface{}{}
	}
	if v, ok := m[field].(string); ok && v != "" {
		return m
	}
	if value := g.GetParameter(ctx, param); value != "" {
		m[field] = value
		logutil.GetLogger(ctx).Info("bootstrap value resolved", zap.String("field", field), zap.String("parameter", param))
	}
	return m
}

package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"

	appErr "github.com/xxxsen/vrag/internal/pkg/errors"
)

var ErrUnavailable = appErr.ErrUnavailable

// EmbedInput carries the content to embed. At least one of Text or
// ImageBase64 must be set.
type EmbedInput struct {
	Text        string
	ImageBase64 string
}

func (in EmbedInput) Validate() error {
	if strings.TrimSpace(in.Text) == "" && in.ImageBase64 == "" {
		return fmt.Errorf("embed input needs text or image: %w", appErr.ErrInvalid)
	}
	return nil
}

type IEmbedder interface {
	Embed(ctx context.Context, in EmbedInput) ([]float32, error)
	ModelName() string
}

type ICaptioner interface {
	Describe(ctx context.Context, format string, image []byte) (string, error)
}

type ProviderArgs struct {
	AWS       aws.Config
	Model     string
	Dimension int
}

type EmbedderFactory func(args ProviderArgs) (IEmbedder, error)

var registry = map[string]EmbedderFactory{}

func RegisterEmbed(name string, factory EmbedderFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registry[key] = factory
}

func NewEmbedder(name string, args ProviderArgs) (IEmbedder, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("embedding.provider is required")
	}
	factory := registry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported embedding provider: %s", name)
	}
	return factory(args)
}

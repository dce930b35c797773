package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const captionPrompt = `Describe the main subject of this image in one or two sentences.
- Mention colours, materials and the kind of object.
- Output ONLY the description.`

type bedrockAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

type titanEmbedRequest struct {
	InputText       string                `json:"inputText,omitempty"`
	InputImage      string                `json:"inputImage,omitempty"`
	EmbeddingConfig *titanEmbeddingConfig `json:"embeddingConfig,omitempty"`
}

type titanEmbeddingConfig struct {
	OutputEmbeddingLength int `json:"outputEmbeddingLength"`
}

type titanEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
	Message   string    `json:"message"`
}

type bedrockEmbedder struct {
	client    bedrockAPI
	model     string
	dimension int
}

func init() {
	RegisterEmbed("bedrock", createBedrockEmbedder)
}

func createBedrockEmbedder(args ProviderArgs) (IEmbedder, error) {
	if args.Model == "" {
		return nil, fmt.Errorf("bedrock embedding model is required")
	}
	return NewBedrockEmbedder(bedrockruntime.NewFromConfig(args.AWS), args.Model, args.Dimension), nil
}

func NewBedrockEmbedder(client bedrockAPI, model string, dimension int) IEmbedder {
	return &bedrockEmbedder{client: client, model: model, dimension: dimension}
}

func (e *bedrockEmbedder) ModelName() string {
	return e.model
}

func (e *bedrockEmbedder) Embed(ctx context.Context, in EmbedInput) ([]float32, error) {
	if e.client == nil {
		return nil, ErrUnavailable
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	reqBody := titanEmbedRequest{
		InputText:  strings.TrimSpace(in.Text),
		InputImage: in.ImageBase64,
	}
	if e.dimension > 0 {
		reqBody.EmbeddingConfig = &titanEmbeddingConfig{OutputEmbeddingLength: e.dimension}
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}
	out, err := e.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(e.model),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("invoke embedding model %s: %w", e.model, err)
	}
	var resp titanEmbedResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("no embedding values returned: %s", resp.Message)
	}
	if e.dimension > 0 && len(resp.Embedding) != e.dimension {
		return nil, fmt.Errorf("embedding length %d, want %d", len(resp.Embedding), e.dimension)
	}
	return resp.Embedding, nil
}

type bedrockCaptioner struct {
	client    bedrockAPI
	model     string
	maxTokens int32
}

func NewBedrockCaptioner(client bedrockAPI, model string, maxTokens int32) ICaptioner {
	return &bedrockCaptioner{client: client, model: model, maxTokens: maxTokens}
}

func (c *bedrockCaptioner) Describe(ctx context.Context, format string, image []byte) (string, error) {
	if c.client == nil || c.model == "" {
		return "", ErrUnavailable
	}
	out, err := c.client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(c.model),
		Messages: []types.Message{{
			Role: types.ConversationRoleUser,
			Content: []types.ContentBlock{
				&types.ContentBlockMemberImage{Value: types.ImageBlock{
					Format: types.ImageFormat(format),
					Source: &types.ImageSourceMemberBytes{Value: image},
				}},
				&types.ContentBlockMemberText{Value: captionPrompt},
			},
		}},
		InferenceConfig: &types.InferenceConfiguration{MaxTokens: aws.Int32(c.maxTokens)},
	})
	if err != nil {
		return "", fmt.Errorf("converse with %s: %w", c.model, err)
	}
	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return "", fmt.Errorf("unexpected converse output %T", out.Output)
	}
	var parts []string
	for _, block := range msg.Value.Content {
		if text, ok := block.(*types.ContentBlockMemberText); ok {
			parts = append(parts, text.Value)
		}
	}
	desc := strings.TrimSpace(strings.Join(parts, " "))
	if desc == "" {
		return "", fmt.Errorf("empty caption response")
	}
	logutil.GetLogger(ctx).Debug("image described", zap.String("model", c.model), zap.Int("length", len(desc)))
	return desc, nil
}

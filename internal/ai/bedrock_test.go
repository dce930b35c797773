package ai

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/vrag/internal/pkg/errors"
)

type fakeBedrock struct {
	lastInvoke   *bedrockruntime.InvokeModelInput
	invokeBody   []byte
	invokeErr    error
	lastConverse *bedrockruntime.ConverseInput
	converseOut  *bedrockruntime.ConverseOutput
}

func (f *fakeBedrock) InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.lastInvoke = in
	if f.invokeErr != nil {
		return nil, f.invokeErr
	}
	return &bedrockruntime.InvokeModelOutput{Body: f.invokeBody}, nil
}

func (f *fakeBedrock) Converse(ctx context.Context, in *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.lastConverse = in
	return f.converseOut, nil
}

func TestBedrockEmbedder_TextRequest(t *testing.T) {
	fake := &fakeBedrock{invokeBody: []byte(`{"embedding":[0.1,0.2,0.3],"inputTextTokenCount":2}`)}
	e := NewBedrockEmbedder(fake, "amazon.titan-embed-image-v1", 3)

	vec, err := e.Embed(context.Background(), EmbedInput{Text: " red shoes "})
	require.NoError(t, err)
	require.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	require.Equal(t, "amazon.titan-embed-image-v1", aws.ToString(fake.lastInvoke.ModelId))

	var sent map[string]interface{}
	require.NoError(t, json.Unmarshal(fake.lastInvoke.Body, &sent))
	require.Equal(t, "red shoes", sent["inputText"])
	require.NotContains(t, sent, "inputImage")
	require.EqualValues(t, 3, sent["embeddingConfig"].(map[string]interface{})["outputEmbeddingLength"])
}

func TestBedrockEmbedder_ImageRequest(t *testing.T) {
	fake := &fakeBedrock{invokeBody: []byte(`{"embedding":[1,0]}`)}
	e := NewBedrockEmbedder(fake, "m", 0)

	_, err := e.Embed(context.Background(), EmbedInput{ImageBase64: "aW1n"})
	require.NoError(t, err)
	var sent map[string]interface{}
	require.NoError(t, json.Unmarshal(fake.lastInvoke.Body, &sent))
	require.Equal(t, "aW1n", sent["inputImage"])
	require.NotContains(t, sent, "inputText")
	require.NotContains(t, sent, "embeddingConfig")
}

func TestBedrockEmbedder_Errors(t *testing.T) {
	e := NewBedrockEmbedder(&fakeBedrock{}, "m", 3)
	_, err := e.Embed(context.Background(), EmbedInput{Text: "  "})
	require.ErrorIs(t, err, appErr.ErrInvalid)

	e = NewBedrockEmbedder(&fakeBedrock{invokeErr: errors.New("throttled")}, "m", 3)
	_, err = e.Embed(context.Background(), EmbedInput{Text: "x"})
	require.ErrorContains(t, err, "throttled")

	e = NewBedrockEmbedder(&fakeBedrock{invokeBody: []byte(`{"embedding":[1,2]}`)}, "m", 3)
	_, err = e.Embed(context.Background(), EmbedInput{Text: "x"})
	require.Error(t, err)

	e = NewBedrockEmbedder(&fakeBedrock{invokeBody: []byte(`{"message":"bad input"}`)}, "m", 3)
	_, err = e.Embed(context.Background(), EmbedInput{Text: "x"})
	require.ErrorContains(t, err, "bad input")
}

func TestBedrockCaptioner_Describe(t *testing.T) {
	fake := &fakeBedrock{converseOut: &bedrockruntime.ConverseOutput{
		Output: &types.ConverseOutputMemberMessage{Value: types.Message{
			Role:    types.ConversationRoleAssistant,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: " A pair of red leather shoes. "}},
		}},
	}}
	c := NewBedrockCaptioner(fake, "claude", 128)
	desc, err := c.Describe(context.Background(), "png", []byte("raw"))
	require.NoError(t, err)
	require.Equal(t, "A pair of red leather shoes.", desc)
	require.Len(t, fake.lastConverse.Messages, 1)
	require.Len(t, fake.lastConverse.Messages[0].Content, 2)
	require.EqualValues(t, 128, aws.ToInt32(fake.lastConverse.InferenceConfig.MaxTokens))
}

func TestNewEmbedder_Unknown(t *testing.T) {
	_, err := NewEmbedder("gemini", ProviderArgs{})
	require.Error(t, err)
	_, err = NewEmbedder("", ProviderArgs{})
	require.Error(t, err)
}

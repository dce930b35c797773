package videogen

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/vrag/internal/model"
	appErr "github.com/xxxsen/vrag/internal/pkg/errors"
)

const maxPromptChars = 512

// Client submits asynchronous video generation jobs and reports their status.
type Client interface {
	Submit(ctx context.Context, req *model.GenerationRequest, outputURI string) (model.JobHandle, error)
	Poll(ctx context.Context, handle model.JobHandle) (*model.JobStatus, error)
}

type bedrockAsyncAPI interface {
	StartAsyncInvoke(ctx context.Context, params *bedrockruntime.StartAsyncInvokeInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.StartAsyncInvokeOutput, error)
	GetAsyncInvoke(ctx context.Context, params *bedrockruntime.GetAsyncInvokeInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.GetAsyncInvokeOutput, error)
}

type bedrockClient struct {
	api   bedrockAsyncAPI
	model string
}

func NewBedrockClient(awsCfg aws.Config, modelID string) Client {
	return newBedrockClient(bedrockruntime.NewFromConfig(awsCfg), modelID)
}

func newBedrockClient(api bedrockAsyncAPI, modelID string) *bedrockClient {
	return &bedrockClient{api: api, model: modelID}
}

func (c *bedrockClient) Submit(ctx context.Context, req *model.GenerationRequest, outputURI string) (model.JobHandle, error) {
	if err := Validate(req); err != nil {
		return "", err
	}
	if !strings.HasPrefix(outputURI, "s3://") {
		return "", fmt.Errorf("output location must be an s3 uri, got %q: %w", outputURI, appErr.ErrInvalid)
	}
	out, err := c.api.StartAsyncInvoke(ctx, &bedrockruntime.StartAsyncInvokeInput{
		ModelId:            aws.String(c.model),
		ClientRequestToken: aws.String(uuid.NewString()),
		ModelInput:         document.NewLazyDocument(BuildPayload(req)),
		OutputDataConfig: &types.AsyncInvokeOutputDataConfigMemberS3OutputDataConfig{
			Value: types.AsyncInvokeS3OutputDataConfig{S3Uri: aws.String(outputURI)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("start async invoke %s: %w", c.model, err)
	}
	handle := model.JobHandle(aws.ToString(out.InvocationArn))
	if handle == "" {
		return "", fmt.Errorf("start async invoke %s: empty invocation arn", c.model)
	}
	logutil.GetLogger(ctx).Info("generation job submitted",
		zap.String("handle", string(handle)),
		zap.String("output", outputURI),
		zap.Bool("reference_image", req.HasReferenceImage()),
	)
	return handle, nil
}

func (c *bedrockClient) Poll(ctx context.Context, handle model.JobHandle) (*model.JobStatus, error) {
	out, err := c.api.GetAsyncInvoke(ctx, &bedrockruntime.GetAsyncInvokeInput{
		InvocationArn: aws.String(string(handle)),
	})
	if err != nil {
		return nil, fmt.Errorf("get async invoke %s: %w", handle, err)
	}
	status := &model.JobStatus{}
	if s3Cfg, ok := out.OutputDataConfig.(*types.AsyncInvokeOutputDataConfigMemberS3OutputDataConfig); ok {
		status.OutputLocation = strings.TrimSuffix(aws.ToString(s3Cfg.Value.S3Uri), "/")
	}
	switch out.Status {
	case types.AsyncInvokeStatusCompleted:
		status.State = model.JobCompleted
	case types.AsyncInvokeStatusFailed:
		status.State = model.JobFailed
		status.FailureReason = aws.ToString(out.FailureMessage)
	case types.AsyncInvokeStatusInProgress:
		status.State = model.JobPending
	default:
		return nil, fmt.Errorf("job %s has unknown status %q", handle, out.Status)
	}
	return status, nil
}

func Validate(req *model.GenerationRequest) error {
	if req == nil {
		return fmt.Errorf("generation request is required: %w", appErr.ErrInvalid)
	}
	n := utf8.RuneCountInString(strings.TrimSpace(req.PromptText))
	if n == 0 || n > maxPromptChars {
		return fmt.Errorf("prompt text must be 1-%d characters, got %d: %w", maxPromptChars, n, appErr.ErrInvalid)
	}
	if req.DurationSeconds <= 0 || req.FramesPerSecond <= 0 {
		return fmt.Errorf("duration and fps must be positive: %w", appErr.ErrInvalid)
	}
	if req.Resolution.Width <= 0 || req.Resolution.Height <= 0 {
		return fmt.Errorf("resolution must be positive: %w", appErr.ErrInvalid)
	}
	if req.ReferenceImage != nil {
		switch req.ReferenceImage.Format {
		case "png", "jpeg":
		default:
			return fmt.Errorf("unsupported reference image format %q: %w", req.ReferenceImage.Format, appErr.ErrInvalid)
		}
		if req.ReferenceImage.Base64 == "" {
			return fmt.Errorf("reference image has no data: %w", appErr.ErrInvalid)
		}
	}
	return nil
}

// BuildPayload renders the Nova Reel TEXT_VIDEO input. The images list is
// only present when the request carries a reference image.
func BuildPayload(req *model.GenerationRequest) map[string]interface{} {
	params := map[string]interface{}{
		"text": strings.TrimSpace(req.PromptText),
	}
	if req.HasReferenceImage() {
		params["images"] = []interface{}{
			map[string]interface{}{
				"format": req.ReferenceImage.Format,
				"source": map[string]interface{}{
					"bytes": req.ReferenceImage.Base64,
				},
			},
		}
	}
	return map[string]interface{}{
		"taskType":          "TEXT_VIDEO",
		"textToVideoParams": params,
		"videoGenerationConfig": map[string]interface{}{
			"durationSeconds": req.DurationSeconds,
			"fps":             req.FramesPerSecond,
			"dimension":       req.Resolution.String(),
			"seed":            req.Seed,
		},
	}
}

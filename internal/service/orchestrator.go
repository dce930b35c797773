package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/vrag/internal/ai"
	"github.com/xxxsen/vrag/internal/model"
	"github.com/xxxsen/vrag/internal/objectstore"
	appErr "github.com/xxxsen/vrag/internal/pkg/errors"
	"github.com/xxxsen/vrag/internal/vectorstore"
	"github.com/xxxsen/vrag/internal/videogen"
)

// Awaiter drives a submitted job to a terminal state.
type Awaiter interface {
	Await(ctx context.Context, handle model.JobHandle) (string, error)
}

type GenerationDefaults struct {
	DurationSeconds int
	FramesPerSecond int
	Resolution      model.Resolution
	Seed            int
}

type OrchestratorConfig struct {
	Defaults     GenerationDefaults
	OutputPrefix string
	// DownloadDir, when set, receives a local copy of every finished video.
	DownloadDir string
}

type Orchestrator struct {
	embedder ai.IEmbedder
	vectors  vectorstore.Store
	objects  objectstore.Store
	gen      videogen.Client
	monitor  Awaiter
	cfg      OrchestratorConfig
	newID    func() string
}

func NewOrchestrator(
	embedder ai.IEmbedder,
	vectors vectorstore.Store,
	objects objectstore.Store,
	gen videogen.Client,
	monitor Awaiter,
	cfg OrchestratorConfig,
) *Orchestrator {
	return &Orchestrator{
		embedder: embedder,
		vectors:  vectors,
		objects:  objects,
		gen:      gen,
		monitor:  monitor,
		cfg:      cfg,
		newID:    uuid.NewString,
	}
}

// Lookup embeds concept and returns the single nearest stored asset, or
// false when the store has nothing to offer.
func (o *Orchestrator) Lookup(ctx context.Context, concept string) (*model.SearchHit, bool, error) {
	vec, err := o.embedder.Embed(ctx, ai.EmbedInput{Text: concept})
	if err != nil {
		return nil, false, fmt.Errorf("embed concept: %w", err)
	}
	res, err := o.vectors.Search(ctx, vec, 1)
	if err != nil {
		return nil, false, fmt.Errorf("search concept: %w", err)
	}
	hit, ok := res.Best()
	return hit, ok, nil
}

// Generate retrieves the asset that best matches concept and submits a video
// job conditioned on it with action as the prompt. A lookup miss returns a
// skipped result and submits nothing.
func (o *Orchestrator) Generate(ctx context.Context, concept, action string, overrides *model.GenerationOverrides) (*model.GenerationResult, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("concept", concept))
	result := &model.GenerationResult{Prompt: action, Concept: concept}

	hit, ok, err := o.Lookup(ctx, concept)
	if err != nil {
		return nil, err
	}
	if !ok {
		logger.Warn("no matching asset, generation skipped")
		result.Skipped = true
		result.Reason = appErr.ErrNoMatchingAsset.Error()
		return result, nil
	}
	result.Asset = hit.Asset
	logger.Info("reference asset selected",
		zap.String("asset", hit.Asset.OriginalLocation),
		zap.Float32("score", hit.Score),
	)

	ref, err := o.loadReference(ctx, hit.Asset)
	if err != nil {
		return nil, err
	}
	req := o.buildRequest(action, ref, overrides)
	outputURI := o.objects.URI(path.Join(o.cfg.OutputPrefix, o.newID()))
	handle, err := o.gen.Submit(ctx, req, outputURI)
	if err != nil {
		return nil, err
	}
	result.Handle = handle

	location, err := o.monitor.Await(ctx, handle)
	if err != nil {
		return result, err
	}
	result.Location = location
	if o.cfg.DownloadDir != "" {
		if local, err := o.download(ctx, handle, location); err != nil {
			logger.Warn("download result failed", zap.String("location", location), zap.Error(err))
		} else {
			logger.Info("result downloaded", zap.String("path", local))
		}
	}
	return result, nil
}

func (o *Orchestrator) loadReference(ctx context.Context, asset *model.IndexedAsset) (*model.ReferenceImage, error) {
	key, err := o.objects.KeyFromURI(asset.EncodedLocation)
	if err != nil {
		return nil, fmt.Errorf("resolve encoded asset: %v: %w", err, appErr.ErrInvalid)
	}
	data, err := o.objects.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("fetch encoded asset: %w", err)
	}
	payload := strings.TrimSpace(string(data))
	if payload == "" {
		return nil, fmt.Errorf("encoded asset %s is empty: %w", asset.EncodedLocation, appErr.ErrInvalid)
	}
	format, ok := imageFormat(asset.OriginalLocation)
	if !ok {
		return nil, fmt.Errorf("unsupported image type %s: %w", asset.OriginalLocation, appErr.ErrInvalid)
	}
	return &model.ReferenceImage{Format: format, Base64: payload}, nil
}

func (o *Orchestrator) buildRequest(prompt string, ref *model.ReferenceImage, overrides *model.GenerationOverrides) *model.GenerationRequest {
	d := o.cfg.Defaults
	req := &model.GenerationRequest{
		PromptText:      prompt,
		ReferenceImage:  ref,
		DurationSeconds: d.DurationSeconds,
		FramesPerSecond: d.FramesPerSecond,
		Resolution:      d.Resolution,
		Seed:            d.Seed,
	}
	if overrides == nil {
		return req
	}
	if overrides.DurationSeconds > 0 {
		req.DurationSeconds = overrides.DurationSeconds
	}
	if overrides.FramesPerSecond > 0 {
		req.FramesPerSecond = overrides.FramesPerSecond
	}
	if overrides.Resolution.Width > 0 && overrides.Resolution.Height > 0 {
		req.Resolution = overrides.Resolution
	}
	if overrides.Seed != nil {
		req.Seed = *overrides.Seed
	}
	return req
}

func (o *Orchestrator) download(ctx context.Context, handle model.JobHandle, location string) (string, error) {
	key, err := o.objects.KeyFromURI(location)
	if err != nil {
		return "", err
	}
	data, err := o.objects.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(o.cfg.DownloadDir, 0o755); err != nil {
		return "", err
	}
	name := string(handle)
	if idx := strings.LastIndexAny(name, "/:"); idx >= 0 {
		name = name[idx+1:]
	}
	local := filepath.Join(o.cfg.DownloadDir, name+path.Ext(location))
	if err := os.WriteFile(local, data, 0o644); err != nil {
		return "", err
	}
	return local, nil
}

// RunBatch processes items in order, one result per item. Errors that belong
// to a single item become skipped results with the error as the reason. Any
// other error, such as cancellation or a transport failure, stops the batch
// and returns what was collected so far.
func (o *Orchestrator) RunBatch(ctx context.Context, items []model.BatchItem, overrides *model.GenerationOverrides) ([]*model.GenerationResult, error) {
	logger := logutil.GetLogger(ctx)
	results := make([]*model.GenerationResult, 0, len(items))
	completed := 0
	for i, item := range items {
		prompt := RenderPrompt(item)
		res, err := o.Generate(ctx, item.Concept, prompt, overrides)
		if err != nil {
			reason, ok := itemFailure(ctx, err)
			if !ok {
				return results, fmt.Errorf("batch item %d (%s): %w", i, item.Concept, err)
			}
			logger.Warn("batch item failed, continuing",
				zap.Int("index", i),
				zap.String("concept", item.Concept),
				zap.String("reason", reason),
			)
			if res == nil {
				res = &model.GenerationResult{Prompt: prompt, Concept: item.Concept}
			}
			res.Skipped = true
			res.Reason = reason
			res.Location = ""
		}
		if !res.Skipped {
			completed++
		}
		results = append(results, res)
	}
	logger.Info("batch finished",
		zap.Int("total", len(items)),
		zap.Int("completed", completed),
		zap.Int("skipped", len(items)-completed),
	)
	return results, nil
}

// itemFailure reports whether err is confined to one batch item: a failed
// job, a stale or malformed asset, an invalid request or a wait timeout.
func itemFailure(ctx context.Context, err error) (string, bool) {
	if ctx.Err() != nil {
		return "", false
	}
	var failed *model.JobFailedError
	if errors.As(err, &failed) {
		return failed.Reason, true
	}
	if errors.Is(err, appErr.ErrNotFound) || errors.Is(err, appErr.ErrInvalid) || errors.Is(err, appErr.ErrWaitTimeout) {
		return err.Error(), true
	}
	return "", false
}

// RenderPrompt fills {concept} and {action} in the item template. An empty
// template yields the action alone.
func RenderPrompt(item model.BatchItem) string {
	if strings.TrimSpace(item.Template) == "" {
		return strings.TrimSpace(item.Action)
	}
	r := strings.NewReplacer("{concept}", item.Concept, "{action}", item.Action)
	return strings.TrimSpace(r.Replace(item.Template))
}

func imageFormat(location string) (string, bool) {
	switch strings.ToLower(path.Ext(location)) {
	case ".png":
		return "png", true
	case ".jpg", ".jpeg":
		return "jpeg", true
	default:
		return "", false
	}
}

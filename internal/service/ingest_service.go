package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"path"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/vrag/internal/ai"
	"github.com/xxxsen/vrag/internal/model"
	"github.com/xxxsen/vrag/internal/objectstore"
	appErr "github.com/xxxsen/vrag/internal/pkg/errors"
	"github.com/xxxsen/vrag/internal/ratelimit"
	"github.com/xxxsen/vrag/internal/vectorstore"
)

const encodedSuffix = ".b64"

type IngestConfig struct {
	SourcePrefix  string
	EncodedPrefix string
}

type Ingestor struct {
	objects   objectstore.Store
	vectors   vectorstore.Store
	embedder  ai.IEmbedder
	captioner ai.ICaptioner
	writes    ratelimit.Limiter
	cfg       IngestConfig
}

// NewIngestor builds an ingestor. captioner may be nil, in which case
// descriptions come from sidecar files or the file name.
func NewIngestor(
	objects objectstore.Store,
	vectors vectorstore.Store,
	embedder ai.IEmbedder,
	captioner ai.ICaptioner,
	writes ratelimit.Limiter,
	cfg IngestConfig,
) *Ingestor {
	if writes == nil {
		writes = ratelimit.Unlimited()
	}
	return &Ingestor{
		objects:   objects,
		vectors:   vectors,
		embedder:  embedder,
		captioner: captioner,
		writes:    writes,
		cfg:       cfg,
	}
}

// Ingest indexes every source image that has no encoded payload yet. A
// failing image is logged and counted; it does not stop the run.
func (s *Ingestor) Ingest(ctx context.Context) (*model.IngestReport, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("source_prefix", s.cfg.SourcePrefix))
	keys, err := s.objects.List(ctx, s.cfg.SourcePrefix)
	if err != nil {
		return nil, fmt.Errorf("list source images: %w", err)
	}
	encoded, err := s.objects.List(ctx, s.cfg.EncodedPrefix)
	if err != nil {
		return nil, fmt.Errorf("list encoded payloads: %w", err)
	}
	existing := make(map[string]bool, len(encoded))
	for _, key := range encoded {
		existing[key] = true
	}

	report := &model.IngestReport{}
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if _, ok := imageFormat(key); !ok {
			continue
		}
		report.Listed++
		if existing[s.encodedKey(key)] {
			report.Existing++
			continue
		}
		if err := s.ingestOne(ctx, key); err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			report.Failed++
			logger.Error("ingest image failed", zap.String("key", key), zap.Error(err))
			continue
		}
		report.Indexed++
	}
	logger.Info("ingest finished",
		zap.Int("listed", report.Listed),
		zap.Int("indexed", report.Indexed),
		zap.Int("existing", report.Existing),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

func (s *Ingestor) ingestOne(ctx context.Context, key string) error {
	raw, err := s.objects.Get(ctx, key)
	if err != nil {
		return err
	}
	payload := base64.StdEncoding.EncodeToString(raw)
	vec, err := s.embedder.Embed(ctx, ai.EmbedInput{ImageBase64: payload})
	if err != nil {
		return fmt.Errorf("embed image: %w", err)
	}
	encodedKey := s.encodedKey(key)
	if err := s.writes.Wait(ctx); err != nil {
		return err
	}
	if err := s.objects.Put(ctx, encodedKey, []byte(payload)); err != nil {
		return fmt.Errorf("store encoded payload: %w", err)
	}
	asset := &model.IndexedAsset{
		Embedding:        vec,
		Description:      s.describe(ctx, key, raw),
		EncodedLocation:  s.objects.URI(encodedKey),
		OriginalLocation: s.objects.URI(key),
	}
	if err := s.vectors.IndexDocument(ctx, asset); err != nil {
		// The payload marks the image as done, so it must not outlive a
		// failed index write.
		if derr := s.objects.Delete(context.WithoutCancel(ctx), encodedKey); derr != nil {
			logutil.GetLogger(ctx).Error("remove orphan payload failed", zap.String("encoded", encodedKey), zap.Error(derr))
		}
		return fmt.Errorf("index asset: %w", err)
	}
	logutil.GetLogger(ctx).Debug("image indexed", zap.String("key", key), zap.String("encoded", encodedKey))
	return nil
}

func (s *Ingestor) encodedKey(key string) string {
	rel := strings.TrimPrefix(strings.TrimPrefix(key, s.cfg.SourcePrefix), "/")
	return path.Join(s.cfg.EncodedPrefix, rel) + encodedSuffix
}

// describe prefers a sidecar "<image>.txt", then the captioner, then the
// file name.
func (s *Ingestor) describe(ctx context.Context, key string, raw []byte) string {
	logger := logutil.GetLogger(ctx).With(zap.String("key", key))
	sidecar := strings.TrimSuffix(key, path.Ext(key)) + ".txt"
	data, err := s.objects.Get(ctx, sidecar)
	switch {
	case err == nil:
		if text := strings.TrimSpace(string(data)); text != "" {
			return text
		}
	case appErr.IsNotFound(err):
	default:
		logger.Warn("read description failed", zap.String("sidecar", sidecar), zap.Error(err))
	}
	if s.captioner != nil {
		format, _ := imageFormat(key)
		desc, err := s.captioner.Describe(ctx, format, raw)
		if err == nil {
			return desc
		}
		logger.Warn("caption image failed", zap.Error(err))
	}
	name := path.Base(key)
	return strings.TrimSuffix(name, path.Ext(name))
}

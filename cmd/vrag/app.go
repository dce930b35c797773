package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/vrag/internal/ai"
	"github.com/xxxsen/vrag/internal/awsutil"
	"github.com/xxxsen/vrag/internal/config"
	"github.com/xxxsen/vrag/internal/embedcache"
	"github.com/xxxsen/vrag/internal/jobmonitor"
	"github.com/xxxsen/vrag/internal/objectstore"
	"github.com/xxxsen/vrag/internal/paramstore"
	"github.com/xxxsen/vrag/internal/ratelimit"
	"github.com/xxxsen/vrag/internal/service"
	"github.com/xxxsen/vrag/internal/vectorstore"
	"github.com/xxxsen/vrag/internal/videogen"
)

// app holds the collaborators shared by every subcommand.
type app struct {
	cfg      *config.Config
	awsCfg   aws.Config
	objects  objectstore.Store
	vectors  vectorstore.Store
	embedder ai.IEmbedder
	gen      videogen.Client
	monitor  *jobmonitor.Monitor
}

func bootstrap(ctx context.Context, opts *rootOptions) (*app, error) {
	if opts.configPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	log := logutil.GetLogger(ctx)
	log.Info("config loaded", zap.String("config", opts.configPath))

	awsCfg, err := awsutil.Load(ctx, cfg.AWS)
	if err != nil {
		return nil, err
	}
	paramstore.Resolve(ctx, paramstore.New(awsCfg), cfg)

	objects, err := objectstore.New(cfg.ObjectStore, awsCfg)
	if err != nil {
		return nil, fmt.Errorf("init object store: %w", err)
	}
	if err := checkVectorStoreType(cfg.VectorStore.Type); err != nil {
		return nil, err
	}
	vectors, err := vectorstore.New(cfg.VectorStore, cfg.Embedding.Dimension, awsCfg)
	if err != nil {
		return nil, fmt.Errorf("init vector store: %w", err)
	}
	vectors = vectorstore.WithRateLimit(vectors, ratelimit.New(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))

	embedder, err := ai.NewEmbedder(cfg.Embedding.Provider, ai.ProviderArgs{
		AWS:       awsCfg,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
	})
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}
	if cfg.Embedding.CacheSize > 0 {
		embedder = embedcache.WrapLruCacheToEmbedder(embedder, cfg.Embedding.CacheSize, time.Duration(cfg.Embedding.CacheTTLSeconds)*time.Second)
	}

	gen := videogen.NewBedrockClient(awsCfg, cfg.Generation.Model)
	monitor := jobmonitor.New(gen, jobmonitor.Config{
		Interval:   time.Duration(cfg.Generation.PollIntervalSeconds) * time.Second,
		ResultFile: cfg.Generation.ResultFile,
		MaxWait:    time.Duration(cfg.Generation.MaxWaitSeconds) * time.Second,
	})

	log.Info("collaborators ready",
		zap.String("region", awsCfg.Region),
		zap.String("object_store", objects.Type()),
		zap.String("vector_store", vectors.Type()),
		zap.String("embedder", embedder.ModelName()),
		zap.String("video_model", cfg.Generation.Model),
	)
	return &app{
		cfg:      cfg,
		awsCfg:   awsCfg,
		objects:  objects,
		vectors:  vectors,
		embedder: embedder,
		gen:      gen,
		monitor:  monitor,
	}, nil
}

// checkVectorStoreType rejects backends whose contents do not survive the
// process, since every subcommand runs in a process of its own.
func checkVectorStoreType(typ string) error {
	if strings.EqualFold(strings.TrimSpace(typ), "memory") {
		return fmt.Errorf("vector_store.type %q keeps nothing between commands, use opensearch or pgvector", typ)
	}
	return nil
}

func (a *app) orchestrator(downloadDir string) *service.Orchestrator {
	g := a.cfg.Generation
	return service.NewOrchestrator(a.embedder, a.vectors, a.objects, a.gen, a.monitor, service.OrchestratorConfig{
		Defaults: service.GenerationDefaults{
			DurationSeconds: g.DurationSeconds,
			FramesPerSecond: g.FPS,
			Resolution:      modelResolution(g.Width, g.Height),
			Seed:            g.Seed,
		},
		OutputPrefix: g.OutputPrefix,
		DownloadDir:  downloadDir,
	})
}

func (a *app) ingestor() *service.Ingestor {
	var captioner ai.ICaptioner
	if a.cfg.Captioner.Model != "" {
		captioner = ai.NewBedrockCaptioner(bedrockruntime.NewFromConfig(a.awsCfg), a.cfg.Captioner.Model, a.cfg.Captioner.MaxTokens)
	}
	writes := ratelimit.New(a.cfg.RateLimit.RequestsPerSecond, a.cfg.RateLimit.Burst)
	return service.NewIngestor(a.objects, a.vectors, a.embedder, captioner, writes, service.IngestConfig{
		SourcePrefix:  a.cfg.Ingest.SourcePrefix,
		EncodedPrefix: a.cfg.Ingest.EncodedPrefix,
	})
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/vrag/internal/ai"
	"github.com/xxxsen/vrag/internal/job"
	"github.com/xxxsen/vrag/internal/model"
	appErr "github.com/xxxsen/vrag/internal/pkg/errors"
	"github.com/xxxsen/vrag/internal/schedule"
	"github.com/xxxsen/vrag/internal/service"
)

type overrideFlags struct {
	duration int
	fps      int
	width    int
	height   int
	seed     int
}

func (f *overrideFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.duration, "duration", 0, "clip length in seconds")
	cmd.Flags().IntVar(&f.fps, "fps", 0, "frames per second")
	cmd.Flags().IntVar(&f.width, "width", 0, "frame width")
	cmd.Flags().IntVar(&f.height, "height", 0, "frame height")
	cmd.Flags().IntVar(&f.seed, "seed", 0, "generation seed")
}

func (f *overrideFlags) build(cmd *cobra.Command) *model.GenerationOverrides {
	o := &model.GenerationOverrides{
		DurationSeconds: f.duration,
		FramesPerSecond: f.fps,
		Resolution:      modelResolution(f.width, f.height),
	}
	if cmd.Flags().Changed("seed") {
		seed := f.seed
		o.Seed = &seed
	}
	return o
}

func modelResolution(w, h int) model.Resolution {
	return model.Resolution{Width: w, Height: h}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newIngestCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "embed and index source images",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if err := a.vectors.CreateIndex(cmd.Context()); err != nil {
				return fmt.Errorf("create index: %w", err)
			}
			report, err := a.ingestor().Ingest(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}
}

func newGenerateCmd(opts *rootOptions) *cobra.Command {
	var (
		concept     string
		action      string
		downloadDir string
		overrides   overrideFlags
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "generate one video conditioned on the best matching asset",
		RunE: func(cmd *cobra.Command, args []string) error {
			if concept == "" || action == "" {
				return fmt.Errorf("--concept and --action are required")
			}
			a, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}
			res, err := a.orchestrator(downloadDir).Generate(cmd.Context(), concept, action, overrides.build(cmd))
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
	cmd.Flags().StringVar(&concept, "concept", "", "object to look up in the index")
	cmd.Flags().StringVar(&action, "action", "", "video prompt")
	cmd.Flags().StringVar(&downloadDir, "download-dir", "", "save finished videos here")
	overrides.register(cmd)
	return cmd
}

func newBatchCmd(opts *rootOptions) *cobra.Command {
	var (
		file        string
		downloadDir string
		overrides   overrideFlags
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "run every item of a yaml batch file in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			items, err := service.LoadBatchFile(file)
			if err != nil {
				return err
			}
			a, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}
			results, runErr := a.orchestrator(downloadDir).RunBatch(cmd.Context(), items, overrides.build(cmd))
			if err := printJSON(results); err != nil {
				return err
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "batch yaml file")
	cmd.Flags().StringVar(&downloadDir, "download-dir", "", "save finished videos here")
	overrides.register(cmd)
	return cmd
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var (
		concept string
		k       int
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "show the nearest indexed assets for a concept",
		RunE: func(cmd *cobra.Command, args []string) error {
			if concept == "" {
				return fmt.Errorf("--concept is required")
			}
			a, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}
			vec, err := a.embedder.Embed(cmd.Context(), ai.EmbedInput{Text: concept})
			if err != nil {
				return err
			}
			hits, err := a.vectors.Search(cmd.Context(), vec, k)
			if err != nil {
				return err
			}
			if len(hits) == 0 {
				return fmt.Errorf("concept %q: %w", concept, appErr.ErrNoMatchingAsset)
			}
			type row struct {
				Score       float32 `json:"score"`
				Description string  `json:"description"`
				Original    string  `json:"original"`
			}
			rows := make([]row, 0, len(hits))
			for _, h := range hits {
				rows = append(rows, row{Score: h.Score, Description: h.Asset.Description, Original: h.Asset.OriginalLocation})
			}
			return printJSON(rows)
		},
	}
	cmd.Flags().StringVar(&concept, "concept", "", "text to search for")
	cmd.Flags().IntVar(&k, "k", 3, "number of hits")
	return cmd
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var skipInitial bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "re-run ingestion on the configured cron schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, opts)
			if err != nil {
				return err
			}
			return runWatch(ctx, job.NewIndexBootstrapJob(a.vectors), job.NewIngestJob(a.ingestor()), a.cfg.Ingest.Schedule, skipInitial)
		},
	}
	cmd.Flags().BoolVar(&skipInitial, "skip-initial", false, "wait for the first cron tick instead of ingesting at start")
	return cmd
}

// runWatch prepares the index, optionally ingests once, then runs ingest on
// spec until ctx is done. A failed initial ingest is retried by the schedule.
func runWatch(ctx context.Context, bootstrapJob, ingestJob schedule.Job, spec string, skipInitial bool) error {
	logger := logutil.GetLogger(ctx)
	if err := schedule.RunOnce(ctx, bootstrapJob); err != nil {
		return err
	}
	if !skipInitial {
		if err := schedule.RunOnce(ctx, ingestJob); err != nil {
			logger.Warn("initial ingest failed, waiting for next tick", zap.Error(err))
		}
	}
	s := schedule.NewCronScheduler()
	if err := s.AddJob(ingestJob, spec); err != nil {
		return err
	}
	s.Start(ctx)
	defer s.Stop()
	if next, ok := s.Next(ingestJob.Name()); ok {
		logger.Info("watching for new images", zap.Time("next_run", next))
	}
	<-ctx.Done()
	logger.Info("watch stopping...")
	return nil
}

func newInitIndexCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init-index",
		Short: "create the vector index if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return schedule.RunOnce(cmd.Context(), job.NewIndexBootstrapJob(a.vectors))
		},
	}
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var handle string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "poll a generation job once",
		RunE: func(cmd *cobra.Command, args []string) error {
			if handle == "" {
				return fmt.Errorf("--handle is required")
			}
			a, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}
			st, err := a.gen.Poll(cmd.Context(), model.JobHandle(handle))
			if err != nil {
				return err
			}
			return printJSON(map[string]string{
				"handle":          handle,
				"state":           st.State.String(),
				"output_location": st.OutputLocation,
				"failure_reason":  st.FailureReason,
			})
		},
	}
	cmd.Flags().StringVar(&handle, "handle", "", "invocation arn")
	return cmd
}

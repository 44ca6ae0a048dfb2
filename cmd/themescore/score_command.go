package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"themescore/internal/logging"
	"themescore/internal/progress"
	"themescore/internal/prompts"
	"themescore/internal/proposals"
	"themescore/internal/scorestore"
	"themescore/internal/scoring"
	"themescore/internal/themes"
)

type scoreOptions struct {
	input          string
	model          string
	passes         int
	includePrompt  bool
	startIndex     int
	limit          int
	noSkipExisting bool
	outputDir      string
	progressLog    string
}

func newScoreCommand(ctx *commandContext) *cobra.Command {
	var opts scoreOptions

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score Stage 1 theme proposals with the configured backend",
		Long: `Score every proposal in a Stage 1 output directory.

Each proposal is scored passes times and every pass is written as its own
JSON record. Records already present in the output directory are skipped, so
rerunning with the same --output-dir resumes an interrupted run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd, ctx, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.input, "input", "", "Stage 1 output directory (default: latest run under paths.raw_input_root)")
	flags.StringVar(&opts.model, "model", "", "Override scoring.model")
	flags.IntVar(&opts.passes, "passes", 0, "Override scoring.passes")
	flags.BoolVar(&opts.includePrompt, "include-prompt", false, "Store the rendered prompt in each record")
	flags.IntVar(&opts.startIndex, "start-index", 0, "Skip this many batches before scoring")
	flags.IntVar(&opts.limit, "limit", proposals.NoLimit, "Maximum number of batches to score (negative for all)")
	flags.BoolVar(&opts.noSkipExisting, "no-skip-existing", false, "Regenerate records that already exist")
	flags.StringVar(&opts.outputDir, "output-dir", "", "Write records here (default: new timestamped directory under paths.scored_output_root)")
	flags.StringVar(&opts.progressLog, "progress-log", "", "Append progress lines to this file")
	return cmd
}

func runScore(cmd *cobra.Command, ctx *commandContext, opts scoreOptions) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	runCtx := logging.ContextWithRunID(cmd.Context(), runID)
	logger = logging.WithContext(runCtx, logger)

	options := scoring.Options{
		Model:         cfg.Scoring.Model,
		Temperature:   cfg.Scoring.Temperature,
		TopP:          cfg.Scoring.TopP,
		RepeatPenalty: cfg.Scoring.RepeatPenalty,
		Passes:        cfg.Scoring.Passes,
	}
	if model := strings.TrimSpace(opts.model); model != "" {
		options.Model = model
	}
	if opts.passes != 0 {
		options.Passes = opts.passes
	}
	if err := options.Validate(); err != nil {
		return err
	}

	selector := proposals.NewSelector(opts.input, cfg.Paths.RawInputRoot)
	inputDir, batches, err := proposals.Load(selector)
	if err != nil {
		return err
	}
	logger.Info("loaded stage 1 batches",
		logging.String("input", inputDir),
		logging.String("selector", selector.Describe()),
		logging.Int("batches", len(batches)),
	)

	catalog, closeCatalog, err := openCatalog(runCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCatalog()

	registry := themes.NewRegistry(catalog, logger)
	if _, err := registry.Load(runCtx, cfg.Catalog.Selected); err != nil {
		return err
	}

	renderer, err := prompts.NewScoringRenderer(cfg.Scoring.PromptTemplate)
	if err != nil {
		return err
	}
	backend, err := newBackend(cfg, options.Model)
	if err != nil {
		return err
	}

	outputDir := strings.TrimSpace(opts.outputDir)
	if outputDir == "" {
		outputDir = scorestore.DefaultDir(cfg.Paths.ScoredOutputRoot, time.Now())
	}
	store := scorestore.New(outputDir)

	deps := scoring.Dependencies{
		Resolver:  registry,
		Renderer:  renderer,
		Generator: backend,
		Store:     store,
		Logger:    logger,
	}
	progressLog, err := progress.Open(opts.progressLog)
	if err != nil {
		return err
	}
	if progressLog != nil {
		deps.Progress = progressLog
	}

	orchestrator, err := scoring.New(scoring.RunConfig{
		Options:       options,
		RunID:         runID,
		IncludePrompt: opts.includePrompt,
		SkipExisting:  !opts.noSkipExisting,
		StartIndex:    opts.startIndex,
		Limit:         opts.limit,
	}, deps)
	if err != nil {
		return err
	}

	summary, runErr := orchestrator.Run(runCtx, batches)
	printScoreSummary(cmd.OutOrStdout(), summary)
	return runErr
}

func printScoreSummary(out io.Writer, summary scoring.Summary) {
	colorize := shouldColorize(out)
	label := color.New(color.Bold)
	good := color.New(color.FgGreen)
	warn := color.New(color.FgYellow)
	bad := color.New(color.FgRed)
	if !colorize {
		for _, c := range []*color.Color{label, good, warn, bad} {
			c.DisableColor()
		}
	}

	label.Fprintf(out, "Run %s\n", summary.RunID)
	fmt.Fprintf(out, "  Output:     %s\n", summary.OutputDir)
	fmt.Fprintf(out, "  Batches:    %d of %d (%d empty, %d skipped)\n",
		summary.Batches, summary.TotalBatches, summary.EmptyBatches, summary.SkippedBatches)
	fmt.Fprintf(out, "  Proposals:  %d (%d skipped)\n", summary.Proposals, summary.SkippedProposals)
	good.Fprintf(out, "  Written:    %d\n", summary.Written)
	fmt.Fprintf(out, "  Existing:   %d\n", summary.SkippedExisting)
	if summary.Degraded > 0 {
		warn.Fprintf(out, "  Degraded:   %d\n", summary.Degraded)
	}
	if summary.GenerationFailures > 0 {
		bad.Fprintf(out, "  Failed:     %d\n", summary.GenerationFailures)
	}
	fmt.Fprintf(out, "  Duration:   %s\n", summary.Duration.Round(time.Millisecond))
}

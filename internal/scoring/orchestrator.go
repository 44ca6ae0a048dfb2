package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"themescore/internal/logging"
	"themescore/internal/prompts"
	"themescore/internal/proposals"
	"themescore/internal/scorestore"
	"themescore/internal/services"
	"themescore/internal/themes"
)

// Generator produces text for a prompt. Implementations must honour ctx and
// apply their own per-call timeout.
type Generator interface {
	Generate(ctx context.Context, model, prompt string, opts services.GenerateOptions) (string, error)
}

// Resolver maps proposal references to catalogued themes.
type Resolver interface {
	ResolveSources(ids []string) ([]themes.Theme, error)
	ResolveTarget(ctx context.Context, id, name string) (themes.Theme, error)
}

// PromptRenderer renders the scoring prompt for one proposal.
type PromptRenderer interface {
	RenderScoring(sources []themes.Theme, target themes.Theme, rationale string) (string, error)
}

// RecordStore persists records and answers whether a key is already done.
type RecordStore interface {
	Exists(key scorestore.Key) (bool, error)
	Write(key scorestore.Key, record any) (string, error)
	Dir() string
}

// ProgressLog receives one line per notable event.
type ProgressLog interface {
	Printf(format string, args ...any) error
}

// RunConfig holds the per-run settings.
type RunConfig struct {
	Options       Options
	RunID         string
	IncludePrompt bool
	SkipExisting  bool
	// StartIndex and Limit select the window of batches to process. A
	// negative Limit (proposals.NoLimit) processes every batch from StartIndex
	// on; a Limit of 0 processes none.
	StartIndex int
	Limit      int
}

// Summary counts what a run did.
type Summary struct {
	RunID              string
	OutputDir          string
	TotalBatches       int
	Batches            int
	EmptyBatches       int
	SkippedBatches     int
	Proposals          int
	SkippedProposals   int
	Written            int
	Degraded           int
	SkippedExisting    int
	GenerationFailures int
	Duration           time.Duration
}

// Dependencies are the collaborators an Orchestrator drives.
type Dependencies struct {
	Resolver  Resolver
	Renderer  PromptRenderer
	Generator Generator
	Store     RecordStore
	Progress  ProgressLog
	Logger    *slog.Logger
}

// Orchestrator runs the sequential scoring loop.
type Orchestrator struct {
	cfg       RunConfig
	resolver  Resolver
	renderer  PromptRenderer
	generator Generator
	store     RecordStore
	progress  ProgressLog
	logger    *slog.Logger
	now       func() time.Time
}

type nopProgress struct{}

func (nopProgress) Printf(string, ...any) error { return nil }

// New validates cfg and deps and returns an orchestrator.
func New(cfg RunConfig, deps Dependencies) (*Orchestrator, error) {
	if err := cfg.Options.Validate(); err != nil {
		return nil, err
	}
	switch {
	case deps.Resolver == nil:
		return nil, errors.New("scoring: resolver is required")
	case deps.Renderer == nil:
		return nil, errors.New("scoring: prompt renderer is required")
	case deps.Generator == nil:
		return nil, errors.New("scoring: generator is required")
	case deps.Store == nil:
		return nil, errors.New("scoring: record store is required")
	}
	progress := deps.Progress
	if progress == nil {
		progress = nopProgress{}
	}
	logger := logging.NewComponentLogger(deps.Logger, "scoring")
	if cfg.RunID != "" {
		logger = logger.With(logging.String(logging.FieldRunID, cfg.RunID))
	}
	return &Orchestrator{
		cfg:       cfg,
		resolver:  deps.Resolver,
		renderer:  deps.Renderer,
		generator: deps.Generator,
		store:     deps.Store,
		progress:  progress,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Run scores the configured window of batches. It returns early with ctx's
// error when the context is cancelled, and with a wrapped error when a record
// cannot be written or existence cannot be checked. Every other failure is
// logged and skipped.
func (o *Orchestrator) Run(ctx context.Context, batches []proposals.Batch) (Summary, error) {
	started := o.now()
	summary := Summary{
		RunID:        o.cfg.RunID,
		OutputDir:    o.store.Dir(),
		TotalBatches: len(batches),
	}
	window := proposals.Window(batches, o.cfg.StartIndex, o.cfg.Limit)
	if len(window) == 0 {
		o.logger.Info("no proposal batches to process",
			logging.Int("total", len(batches)),
			logging.Int("start_index", o.cfg.StartIndex),
			logging.Int("limit", o.cfg.Limit),
		)
		return summary, nil
	}

	start := max(o.cfg.StartIndex, 0)
	for offset, batch := range window {
		if err := ctx.Err(); err != nil {
			summary.Duration = o.now().Sub(started)
			return summary, err
		}
		if err := o.runBatch(ctx, start+offset+1, batch, &summary); err != nil {
			summary.Duration = o.now().Sub(started)
			return summary, err
		}
	}

	summary.Duration = o.now().Sub(started)
	o.logger.Info("scoring run completed",
		logging.String("output_dir", summary.OutputDir),
		logging.Int("written", summary.Written),
		logging.Int("degraded", summary.Degraded),
		logging.Int("skipped_existing", summary.SkippedExisting),
		logging.Int("generation_failures", summary.GenerationFailures),
		logging.Duration("duration", summary.Duration),
	)
	o.note("DONE wrote results to %s", summary.OutputDir)
	return summary, nil
}

func (o *Orchestrator) runBatch(ctx context.Context, position int, batch proposals.Batch, summary *Summary) error {
	logger := o.logger.With(logging.String(logging.FieldComboID, batch.ComboID))

	sources, err := o.resolver.ResolveSources(batch.Sources)
	if err != nil {
		summary.SkippedBatches++
		logger.Warn("skipping batch with unknown source",
			logging.String("source_record", batch.SourcePath),
			logging.String(logging.FieldReason, "unknown_source"),
			logging.Error(err),
		)
		o.note("SKIP unknown source %s: %v", batch.SourcePath, err)
		return nil
	}
	if len(batch.Proposals) == 0 {
		summary.EmptyBatches++
		logger.Debug("batch has no proposals")
		return nil
	}

	summary.Batches++
	logger.Info("scoring batch",
		logging.Int("position", position),
		logging.Int("total", summary.TotalBatches),
		logging.Int("proposals", len(batch.Proposals)),
	)
	o.note("START %d/%d %s", position, summary.TotalBatches, batch.ComboID)

	sourceIDs := make([]string, len(sources))
	for i, theme := range sources {
		sourceIDs[i] = theme.ID
	}

	for index, proposal := range batch.Proposals {
		summary.Proposals++
		if err := o.runProposal(ctx, batch, index, proposal, sources, sourceIDs, summary); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) runProposal(
	ctx context.Context,
	batch proposals.Batch,
	index int,
	proposal proposals.Proposal,
	sources []themes.Theme,
	sourceIDs []string,
	summary *Summary,
) error {
	logger := o.logger.With(
		logging.String(logging.FieldComboID, batch.ComboID),
		logging.Int(logging.FieldProposalIndex, index),
	)

	targetID, targetName, ok := proposal.Target()
	if !ok {
		summary.SkippedProposals++
		logger.Info("skipping proposal", logging.String(logging.FieldReason, "missing_target"), logging.Error(ErrMissingTarget))
		o.note("SKIP missing target fields %s proposal %d", batch.ComboID, index)
		return nil
	}

	target, err := o.resolver.ResolveTarget(ctx, targetID, targetName)
	if err != nil {
		if !errors.Is(err, themes.ErrThemeNotFound) {
			return fmt.Errorf("resolve target %q for %s proposal %d: %w", targetName, batch.ComboID, index, err)
		}
		summary.SkippedProposals++
		logger.Info("skipping proposal",
			logging.String(logging.FieldReason, "target_not_found"),
			logging.String("target", targetName),
		)
		o.note("SKIP missing target theme %s proposal %d: %s", batch.ComboID, index, targetName)
		return nil
	}

	prompt, err := o.renderer.RenderScoring(sources, target, proposal.Rationale)
	if err != nil {
		summary.SkippedProposals++
		logger.Error("skipping proposal", logging.String(logging.FieldReason, "prompt_render"), logging.Error(err))
		o.note("SKIP prompt render %s proposal %d: %v", batch.ComboID, index, err)
		return nil
	}

	opts := o.cfg.Options
	genOpts := services.GenerateOptions{
		Temperature:   opts.Temperature,
		TopP:          opts.TopP,
		RepeatPenalty: opts.RepeatPenalty,
	}

	for pass := 0; pass < opts.Passes; pass++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		key := scorestore.Key{
			ComboID:       batch.ComboID,
			SampleIndex:   batch.SampleIndex,
			ProposalIndex: index,
			PassIndex:     pass,
		}
		passLogger := logger.With(logging.Int(logging.FieldPassIndex, pass))

		if o.cfg.SkipExisting {
			exists, err := o.store.Exists(key)
			if err != nil {
				return err
			}
			if exists {
				summary.SkippedExisting++
				passLogger.Debug("record exists; skipping pass")
				o.note("SKIP existing %s proposal %d pass %d", batch.ComboID, index, pass)
				continue
			}
		}

		reqCtx := services.WithRequestID(ctx, o.requestID(key))
		raw, err := o.generator.Generate(reqCtx, opts.Model, prompt, genOpts)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			genErr := &GenerationError{ComboID: batch.ComboID, ProposalIndex: index, PassIndex: pass, Err: err}
			summary.GenerationFailures++
			passLogger.Warn("generation failed; abandoning remaining passes",
				logging.String(logging.FieldReason, services.FailureKind(err)),
				logging.Int("remaining_passes", opts.Passes-pass-1),
				logging.Error(genErr),
			)
			o.note("SKIP generation failed %s proposal %d pass %d: %s", batch.ComboID, index, pass, services.FailureKind(err))
			return nil
		}

		record := Record{
			ScoringModel:  opts.Model,
			PromptVersion: prompts.Version,
			RunID:         o.cfg.RunID,
			Sources:       sourceIDs,
			Target:        target.ID,
			TargetName:    target.Name,
			Proposal: ProposalSnapshot{
				SourceRecord:   batch.SourcePath,
				ProposalIndex:  index,
				Rationale:      proposal.Rationale,
				ConfidenceHint: proposal.ConfidenceHint,
				Raw:            proposal.Raw,
			},
			PassIndex: pass,
			Options: OptionsSnapshot{
				Temperature:   opts.Temperature,
				TopP:          opts.TopP,
				RepeatPenalty: opts.RepeatPenalty,
			},
			RawResponse: raw,
		}
		if o.cfg.IncludePrompt {
			record.Prompt = prompt
		}

		data, parseErr := Parse(raw)
		if parseErr != nil {
			summary.Degraded++
			passLogger.Error("failed to parse scoring response", logging.Error(parseErr))
			record.Parsed = degraded(raw, parseErr)
		} else {
			record.Parsed = data
		}

		path, err := o.store.Write(key, record)
		if err != nil {
			return err
		}
		summary.Written++
		passLogger.Debug("record written", logging.String("path", path))
		o.note("WRITE %s proposal %d pass %d -> %s", batch.ComboID, index, pass, key.FileName())
	}
	return nil
}

func (o *Orchestrator) requestID(key scorestore.Key) string {
	if o.cfg.RunID == "" {
		return key.FileName()
	}
	return o.cfg.RunID + "/" + key.FileName()
}

// note writes a progress line. Progress failures never stop a run.
func (o *Orchestrator) note(format string, args ...any) {
	if err := o.progress.Printf(format, args...); err != nil {
		o.logger.Warn("progress log write failed", logging.Error(err))
	}
}

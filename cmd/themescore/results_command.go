package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"themescore/internal/proposals"
	"themescore/internal/scorestore"
	"themescore/internal/scoring"
)

type resultRow struct {
	File      string         `json:"file"`
	ComboID   string         `json:"combo_id"`
	Sample    int            `json:"sample_index"`
	Proposal  int            `json:"proposal_index"`
	Pass      int            `json:"pass_index"`
	Target    string         `json:"target"`
	Score     *scoring.Score `json:"score"`
	Verdict   string         `json:"verdict,omitempty"`
	Error     string         `json:"error,omitempty"`
	Degraded  bool           `json:"degraded"`
	Model     string         `json:"scoring_model"`
	RunID     string         `json:"run_id,omitempty"`
	Rationale string         `json:"rationale,omitempty"`
}

func newResultsCommand(ctx *commandContext) *cobra.Command {
	var degradedOnly bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "results [dir]",
		Short: "List score records written by a run",
		Long:  "List score records in dir, or in the latest run under paths.scored_output_root when dir is omitted.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			explicit := ""
			if len(args) == 1 {
				explicit = args[0]
			}
			dir, err := proposals.NewSelector(explicit, cfg.Paths.ScoredOutputRoot).Resolve()
			if err != nil {
				return err
			}

			rows, err := loadResults(scorestore.New(dir), degradedOnly)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, rows)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Results in %s\n", dir)
			if len(rows) == 0 {
				fmt.Fprintln(out, "No records found")
				return nil
			}
			fmt.Fprintln(out, renderResultsTable(rows))
			degraded := 0
			for _, row := range rows {
				if row.Degraded {
					degraded++
				}
			}
			fmt.Fprintf(out, "%d records, %d degraded\n", len(rows), degraded)
			return nil
		},
	}

	cmd.Flags().BoolVar(&degradedOnly, "degraded", false, "Only list records whose response could not be parsed")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func loadResults(store *scorestore.Store, degradedOnly bool) ([]resultRow, error) {
	entries, err := store.List()
	if err != nil {
		return nil, err
	}
	rows := make([]resultRow, 0, len(entries))
	for _, entry := range entries {
		var record scoring.StoredRecord
		if err := store.Read(entry.Name, &record); err != nil {
			return nil, err
		}
		if degradedOnly && !record.Degraded() {
			continue
		}
		target := record.TargetName
		if target == "" {
			target = record.Target
		}
		rows = append(rows, resultRow{
			File:      entry.Name,
			ComboID:   entry.Key.ComboID,
			Sample:    entry.Key.SampleIndex,
			Proposal:  entry.Key.ProposalIndex,
			Pass:      entry.Key.PassIndex,
			Target:    target,
			Score:     record.Parsed.Score,
			Verdict:   record.Parsed.Verdict,
			Error:     record.Parsed.Error,
			Degraded:  record.Degraded(),
			Model:     record.ScoringModel,
			RunID:     record.RunID,
			Rationale: record.Parsed.Rationale,
		})
	}
	return rows, nil
}

func renderResultsTable(rows []resultRow) string {
	tableRows := make([][]string, 0, len(rows))
	for _, row := range rows {
		score := "-"
		if row.Score != nil {
			score = row.Score.String()
		}
		verdict := row.Verdict
		if row.Degraded {
			verdict = "degraded: " + row.Error
		}
		tableRows = append(tableRows, []string{
			fmt.Sprintf("%s/s%d/p%d", row.ComboID, row.Sample, row.Proposal),
			row.Target,
			strconv.Itoa(row.Pass),
			score,
			truncate(verdict, 60),
		})
	}
	return renderTable(
		[]string{"Record", "Target", "Pass", "Score", "Verdict"},
		tableRows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}

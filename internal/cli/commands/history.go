package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cssdedupe/internal/cli/output"
	"github.com/leapstack-labs/cssdedupe/internal/state"
)

// RunSummaryOutput is the JSON form of a recorded run.
type RunSummaryOutput struct {
	ID         string    `json:"id"`
	Command    string    `json:"command"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	Assets     int       `json:"assets"`
	Deduped    int       `json:"deduped"`
	Unchanged  int       `json:"unchanged"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Saved      int       `json:"bytes_saved"`
}

// AssetRecordOutput is the JSON form of a recorded asset outcome.
type AssetRecordOutput struct {
	Asset       string   `json:"asset"`
	Chunk       string   `json:"chunk,omitempty"`
	Status      string   `json:"status"`
	Reason      string   `json:"reason,omitempty"`
	Ancestors   []string `json:"ancestors,omitempty"`
	Warnings    int      `json:"warnings"`
	BytesBefore int      `json:"bytes_before"`
	BytesAfter  int      `json:"bytes_after"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded dedupe runs",
		Long: `List recent runs recorded in the history database, newest first.

With a run ID, show the per-asset outcomes of that run.`,
		Example: `  # Show the last 20 runs
  cssdedupe history

  # Show one run in detail
  cssdedupe history 3f0c3f9e-0e6b-4bd5-8d0e-3c1b3cbb8b1e --output json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)

			store, err := openHistory(cmdCtx.Cfg.StatePath, cmdCtx.Logger)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if len(args) == 1 {
				return showRun(cmd, cmdCtx.Renderer, store, args[0])
			}
			return listRuns(cmd, cmdCtx.Renderer, store, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")

	return cmd
}

func toRunSummary(run *state.Run) RunSummaryOutput {
	return RunSummaryOutput{
		ID:         run.ID,
		Command:    run.Command,
		StartedAt:  run.StartedAt,
		DurationMS: run.Duration.Milliseconds(),
		Error:      run.Error,
		Assets:     run.Assets,
		Deduped:    run.Deduped,
		Unchanged:  run.Unchanged,
		Skipped:    run.Skipped,
		Failed:     run.Failed,
		Saved:      run.Saved(),
	}
}

func listRuns(cmd *cobra.Command, r *output.Renderer, store *state.SQLiteStore, limit int) error {
	runs, err := store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		out := make([]RunSummaryOutput, 0, len(runs))
		for _, run := range runs {
			out = append(out, toRunSummary(run))
		}
		return r.JSON(out)
	}

	r.Header(1, "Run History")
	version, err := store.GetMigrationVersion()
	if err != nil {
		return err
	}
	r.Muted(fmt.Sprintf("%s (schema version %d)", store.Path(), version))
	if len(runs) == 0 {
		r.Muted("No runs recorded")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		result := fmt.Sprintf("%d/%d deduped", run.Deduped, run.Assets)
		if run.Error != "" {
			result = "error"
		} else if run.Failed > 0 {
			result += fmt.Sprintf(", %d failed", run.Failed)
		}
		rows = append(rows, []string{
			shortID(run.ID),
			run.Command,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Duration.Round(time.Millisecond).String(),
			result,
			output.FormatBytes(run.Saved()),
		})
	}
	r.Table([]string{"ID", "Command", "Started", "Duration", "Result", "Saved"}, rows)
	return nil
}

func showRun(cmd *cobra.Command, r *output.Renderer, store *state.SQLiteStore, id string) error {
	run, err := store.GetRun(cmd.Context(), id)
	if err != nil {
		return err
	}
	records, err := store.RunAssets(cmd.Context(), id)
	if err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		assetsOut := make([]AssetRecordOutput, 0, len(records))
		for _, rec := range records {
			assetsOut = append(assetsOut, AssetRecordOutput{
				Asset:       rec.Asset,
				Chunk:       rec.Chunk,
				Status:      rec.Status,
				Reason:      rec.Reason,
				Ancestors:   rec.Ancestors,
				Warnings:    rec.Warnings,
				BytesBefore: rec.BytesBefore,
				BytesAfter:  rec.BytesAfter,
			})
		}
		return r.JSON(struct {
			Run    RunSummaryOutput    `json:"run"`
			Assets []AssetRecordOutput `json:"assets"`
		}{toRunSummary(run), assetsOut})
	}

	r.Header(1, "Run "+run.ID)
	r.Println(output.FormatKeyValue("Command", run.Command))
	r.Println(output.FormatKeyValue("Started", run.StartedAt.Local().Format(time.RFC3339)))
	r.Println(output.FormatKeyValue("Duration", run.Duration.Round(time.Millisecond).String()))
	r.Println(output.FormatKeyValue("Saved", output.FormatBytes(run.Saved())))
	if run.Error != "" {
		r.Println(output.FormatKeyValue("Error", run.Error))
	}
	r.Println("")

	if len(records) == 0 {
		r.Muted("No assets recorded")
		return nil
	}
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.Asset,
			rec.Chunk,
			rec.Status,
			output.FormatList(rec.Ancestors),
			output.FormatBytes(rec.BytesBefore - rec.BytesAfter),
		})
	}
	r.Table([]string{"Asset", "Chunk", "Status", "Ancestors", "Saved"}, rows)
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

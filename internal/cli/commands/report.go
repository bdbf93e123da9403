package commands

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/cssdedupe/internal/cli/output"
	"github.com/leapstack-labs/cssdedupe/internal/plugin"
	"github.com/leapstack-labs/cssdedupe/internal/state"
)

// OutcomeOutput is the JSON form of one asset outcome.
type OutcomeOutput struct {
	Asset       string   `json:"asset"`
	Chunk       string   `json:"chunk,omitempty"`
	Status      string   `json:"status"`
	Reason      string   `json:"reason,omitempty"`
	Ancestors   []string `json:"ancestors,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
	BytesBefore int      `json:"bytes_before"`
	BytesAfter  int      `json:"bytes_after"`
}

// SummaryOutput is the JSON form of a run summary.
type SummaryOutput struct {
	Assets    int `json:"assets"`
	Deduped   int `json:"deduped"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Warnings  int `json:"warnings"`
	Saved     int `json:"bytes_saved"`
}

// RunOutput is the JSON document written by build, dedupe and watch.
type RunOutput struct {
	Command    string          `json:"command"`
	RunID      string          `json:"run_id,omitempty"`
	DurationMS int64           `json:"duration_ms"`
	Summary    SummaryOutput   `json:"summary"`
	Outcomes   []OutcomeOutput `json:"outcomes"`
}

func toRunOutput(command string, outcomes []plugin.Outcome, run *state.Run, elapsed time.Duration) RunOutput {
	s := plugin.Summarize(outcomes)
	out := RunOutput{
		Command:    command,
		DurationMS: elapsed.Milliseconds(),
		Summary: SummaryOutput{
			Assets:    s.Assets,
			Deduped:   s.Deduped,
			Unchanged: s.Unchanged,
			Skipped:   s.Skipped,
			Failed:    s.Failed,
			Warnings:  s.Warnings,
			Saved:     s.Saved(),
		},
		Outcomes: make([]OutcomeOutput, 0, len(outcomes)),
	}
	if run != nil {
		out.RunID = run.ID
	}
	for _, o := range outcomes {
		out.Outcomes = append(out.Outcomes, OutcomeOutput{
			Asset:       o.Asset,
			Chunk:       o.Chunk,
			Status:      string(o.Status),
			Reason:      o.Reason,
			Ancestors:   o.Ancestors,
			Warnings:    o.Warnings,
			BytesBefore: o.BytesBefore,
			BytesAfter:  o.BytesAfter,
		})
	}
	return out
}

// renderOutcomes writes the per-asset table and the run summary.
func renderOutcomes(r *output.Renderer, command string, outcomes []plugin.Outcome, run *state.Run, elapsed time.Duration) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(toRunOutput(command, outcomes, run, elapsed))
	}

	r.Header(1, fmt.Sprintf("cssdedupe %s", command))
	if len(outcomes) == 0 {
		r.Muted("No matching assets")
		return nil
	}

	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		rows = append(rows, []string{
			o.Asset,
			o.Chunk,
			string(o.Status),
			output.FormatList(o.Ancestors),
			output.FormatBytes(o.Saved()),
		})
	}
	r.Table([]string{"Asset", "Chunk", "Status", "Ancestors", "Saved"}, rows)

	for _, o := range outcomes {
		switch o.Status {
		case plugin.StatusSkipped:
			r.StatusLine(output.StatusSkipped, fmt.Sprintf("%s: %s", o.Asset, o.Reason))
		case plugin.StatusFailed:
			r.StatusLine(output.StatusFailed, fmt.Sprintf("%s: %s", o.Asset, o.Reason))
		}
		for _, w := range o.Warnings {
			r.StatusLine(output.StatusWarning, fmt.Sprintf("%s: %s", o.Asset, w))
		}
	}

	s := plugin.Summarize(outcomes)
	status := output.StatusSuccess
	if s.Failed > 0 {
		status = output.StatusFailed
	}
	r.StatusLine(status, fmt.Sprintf("%d assets: %d deduped, %d unchanged, %d skipped, %d failed; saved %s in %s",
		s.Assets, s.Deduped, s.Unchanged, s.Skipped, s.Failed,
		output.FormatBytes(s.Saved()), elapsed.Round(time.Millisecond)))
	if run != nil {
		r.Muted(fmt.Sprintf("Run %s recorded", run.ID))
	}
	return nil
}

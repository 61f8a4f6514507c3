package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/helpdesk-stack/ticketflow/internal/llm"
	"github.com/helpdesk-stack/ticketflow/internal/ticket"
)

// reportStage closes the run. The resolution status is derived
// deterministically from the recorded outcomes; the reasoning unit only
// contributes prose (summary, follow-ups), and when it can't, a generated
// summary stands in. A markdown rendering is persisted next to the JSON.
type reportStage struct {
	deps *Deps
}

func (s *reportStage) Name() string { return nodeReport }

func (s *reportStage) Run(ctx context.Context, st *WorkflowState) error {
	status := deriveStatus(st)
	steps := stepsTaken(st)

	summary, followUps := s.narrate(ctx, st, status)
	rep := &ticket.Report{
		StageMeta:        ticket.NewStageMeta(st.Session.ID, reportConfidence(status)),
		Status:           status,
		Summary:          summary,
		StepsTaken:       steps,
		TimeToResolution: time.Since(st.Session.CreatedAt).Round(time.Second).String(),
		FollowUps:        followUps,
	}
	if err := st.SetReport(rep); err != nil {
		return err
	}
	s.deps.Sessions.WriteStageOutput(st.Session, nodeReport, 0, rep)
	s.deps.Sessions.WriteText(st.Session, "report.md", renderMarkdown(st, rep))
	st.appendMessage("assistant", nodeReport, rep.Summary)
	return nil
}

// deriveStatus folds the recorded outcomes into a verdict: any critical
// finding fails the run, any degradation short of that is partial, a clean
// run is resolved.
func deriveStatus(st *WorkflowState) ticket.ResolutionStatus {
	partial := false
	for _, exec := range st.Executions {
		for _, step := range exec.Steps {
			switch step.Status {
			case ticket.StepError:
				return ticket.Failed
			case ticket.StepAlreadyExists:
				partial = true
			}
		}
	}
	for _, v := range st.Validations {
		if !v.Valid {
			return ticket.Failed
		}
		if len(v.Issues) > 0 || v.Status == ticket.StatusError {
			partial = true
		}
	}
	for _, r := range st.Retrievals {
		if r.Status == ticket.StatusError {
			partial = true
		}
	}
	if partial {
		return ticket.PartiallyResolved
	}
	return ticket.Resolved
}

func reportConfidence(status ticket.ResolutionStatus) float64 {
	switch status {
	case ticket.Resolved:
		return 0.92
	case ticket.PartiallyResolved:
		return 0.60
	default:
		return 0.20
	}
}

func stepsTaken(st *WorkflowState) []string {
	var out []string
	for _, r := range st.Retrievals {
		out = append(out, fmt.Sprintf("retrieved %d similar tickets and %d schemas for steps %v",
			len(r.SimilarTickets), len(r.Schemas), r.StepOrdinals))
	}
	for _, e := range st.Executions {
		for _, step := range e.Steps {
			out = append(out, fmt.Sprintf("step %d %s: %s", step.Ordinal, step.Action, step.Detail))
		}
	}
	for _, v := range st.Validations {
		out = append(out, fmt.Sprintf("validated steps %v: valid=%t, %d issues",
			v.StepOrdinals, v.Valid, len(v.Issues)))
	}
	return out
}

func (s *reportStage) narrate(ctx context.Context, st *WorkflowState, status ticket.ResolutionStatus) (string, []string) {
	fallbackSummary := fmt.Sprintf("Run %s: %d dispatch decisions over a %d-step plan, final status %s.",
		st.Session.ID, len(st.Decisions), planLen(st), status)
	fallbackFollowUps := []string{"Monitor system for 24 hours", "Document solution in knowledge base"}

	reply, err := s.deps.Unit.Invoke(ctx, llm.Request{
		Stage:  nodeReport,
		Prompt: s.deps.Prompts.Report,
		Input:  strings.Join(stepsTaken(st), "\n"),
	})
	if err != nil {
		s.deps.Log.Warn("report narration unavailable", "session_id", st.Session.ID, "error", err)
		return fallbackSummary, fallbackFollowUps
	}
	raw, ok := llm.Payload(reply)
	if !ok {
		return fallbackSummary, fallbackFollowUps
	}
	p, err := ticket.DecodeReportPayload(raw)
	if err != nil {
		s.deps.Log.Warn("report payload rejected", "session_id", st.Session.ID, "error", err)
		return fallbackSummary, fallbackFollowUps
	}
	if p.Status != string(status) {
		s.deps.Log.Info("report narration disagrees with derived status",
			"session_id", st.Session.ID, "narrated", p.Status, "derived", status)
	}
	followUps := p.FollowUps
	if len(followUps) == 0 {
		followUps = fallbackFollowUps
	}
	return p.Summary, followUps
}

func planLen(st *WorkflowState) int {
	if st.Plan == nil {
		return 0
	}
	return len(st.Plan.Steps)
}

func renderMarkdown(st *WorkflowState, rep *ticket.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Resolution Report %s\n\n", st.Session.ID)
	fmt.Fprintf(&b, "**Status:** %s\n\n", rep.Status)
	fmt.Fprintf(&b, "**Time to resolution:** %s\n\n", rep.TimeToResolution)
	fmt.Fprintf(&b, "## Summary\n\n%s\n\n", rep.Summary)
	if len(rep.StepsTaken) > 0 {
		b.WriteString("## Steps taken\n\n")
		for _, s := range rep.StepsTaken {
			fmt.Fprintf(&b, "- %s\n", s)
		}
		b.WriteString("\n")
	}
	if len(rep.FollowUps) > 0 {
		b.WriteString("## Follow-ups\n\n")
		for _, f := range rep.FollowUps {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	return b.String()
}

package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/marketscribe/marketscribe/history"
	"github.com/marketscribe/marketscribe/runtime"
	"github.com/marketscribe/marketscribe/session"
	"github.com/marketscribe/marketscribe/stream"
)

// taskSpec declares one scripted task: which template it fills and how
// its failures are labeled. The five tasks differ only in their taskSpec
// entry and in the variables they feed the template.
type taskSpec struct {
	family       session.Family
	templateName string
	errPrefix    string
}

var taskSpecs = map[session.Family]taskSpec{
	session.FamilyResearch:   {session.FamilyResearch, "research", "research failed"},
	session.FamilyReevaluate: {session.FamilyReevaluate, "reevaluate", "reevaluation failed"},
	session.FamilyChat:       {session.FamilyChat, "chat_init", "chat failed"},
	session.FamilyUpdate:     {session.FamilyUpdate, "update", "update failed"},
	session.FamilyCheck:      {session.FamilyCheck, "checker", "quality check failed"},
}

// ResearchRequest asks for an initial research report.
type ResearchRequest struct {
	Ticker      string
	CompanyName string
}

// ReevaluateRequest asks for a reassessment of an existing report.
type ReevaluateRequest struct {
	Ticker      string
	CompanyName string
	PriorReport string
}

// Reference is an excerpt of the loaded report the user's chat message
// refers to.
type Reference struct {
	Section string
	Text    string
}

// ChatRequest sends one user message to the ticker's chat session.
type ChatRequest struct {
	Ticker      string
	CompanyName string
	Message     string

	// Report shown to the assistant when the session is first opened.
	PriorReport string

	References []Reference
}

// UpdateRequest asks for a report revision incorporating a chat
// transcript. When ChatHistory is empty the service falls back to the
// configured history store.
type UpdateRequest struct {
	Ticker      string
	CompanyName string
	PriorReport string
	ChatHistory []history.Turn
}

// CheckRequest asks for a quality audit of a report.
type CheckRequest struct {
	Ticker     string
	ReportText string
}

// Research runs a fresh research session and returns the full report.
func (s *Service) Research(ctx context.Context, req ResearchRequest, opts ...Option) (*TaskResult, error) {
	o := buildOptions(opts)
	spec := taskSpecs[session.FamilyResearch]
	return s.runFresh(ctx, spec, req.Ticker, o, func(workDir string) map[string]string {
		return s.baseVars(ctx, req.Ticker, req.CompanyName, workDir)
	})
}

// Reevaluate runs a fresh session that reassesses a prior report.
func (s *Service) Reevaluate(ctx context.Context, req ReevaluateRequest, opts ...Option) (*TaskResult, error) {
	o := buildOptions(opts)
	spec := taskSpecs[session.FamilyReevaluate]
	return s.runFresh(ctx, spec, req.Ticker, o, func(workDir string) map[string]string {
		vars := s.baseVars(ctx, req.Ticker, req.CompanyName, workDir)
		vars["priorReport"] = req.PriorReport
		return vars
	})
}

// Update runs a fresh session that folds a chat transcript into the
// report.
func (s *Service) Update(ctx context.Context, req UpdateRequest, opts ...Option) (*TaskResult, error) {
	o := buildOptions(opts)
	spec := taskSpecs[session.FamilyUpdate]

	transcript := req.ChatHistory
	if len(transcript) == 0 && s.history != nil {
		var err error
		transcript, err = s.history.Turns(ctx, req.Ticker, 0)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", spec.errPrefix, err)
		}
	}

	return s.runFresh(ctx, spec, req.Ticker, o, func(workDir string) map[string]string {
		vars := s.baseVars(ctx, req.Ticker, req.CompanyName, workDir)
		vars["priorReport"] = req.PriorReport
		vars["chatHistory"] = formatTranscript(transcript)
		return vars
	})
}

// QualityCheck audits a report and parses the verdict the auditor is
// instructed to emit. A malformed verdict is logged and dropped; the
// audit prose is still returned.
func (s *Service) QualityCheck(ctx context.Context, req CheckRequest, opts ...Option) (*TaskResult, error) {
	o := buildOptions(opts)
	spec := taskSpecs[session.FamilyCheck]
	result, err := s.runFresh(ctx, spec, req.Ticker, o, func(workDir string) map[string]string {
		vars := s.baseVars(ctx, req.Ticker, "", workDir)
		vars["reportText"] = req.ReportText
		return vars
	})
	if err != nil {
		return nil, err
	}

	verdict, err := ParseVerdict(result.Response)
	if err != nil {
		stream.Logger().Warn("quality check verdict rejected",
			slog.String("ticker", req.Ticker), slog.Any("error", err))
	} else {
		result.Verdict = verdict
	}
	return result, nil
}

// Chat submits one user message to the ticker's persistent chat session,
// opening and priming the session on first use.
func (s *Service) Chat(ctx context.Context, req ChatRequest, opts ...Option) (*TaskResult, error) {
	o := buildOptions(opts)
	spec := taskSpecs[session.FamilyChat]
	key := session.Key{Subject: req.Ticker, Family: session.FamilyChat}

	sess, err := s.registry.GetOrCreate(ctx, key, s.chatFactory(req, o))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", spec.errPrefix, err)
	}

	message := req.Message
	if len(req.References) > 0 {
		message += "\n\n" + formatReferences(req.References)
	}

	events, err := sess.Handle.Submit(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", spec.errPrefix, err)
	}
	result, err := stream.Reduce(events, stream.ReduceOptions{
		OnProgress: o.progress,
		OnPartial:  o.partial,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", spec.errPrefix, err)
	}

	accumulateUsage(ctx, result.Usage)
	s.recordExchange(ctx, req.Ticker, req.Message, result.Response)

	return &TaskResult{Response: result.Response, Usage: result.Usage}, nil
}

// chatFactory creates the runtime session and primes it with the filled
// chat_init turn. The registry's single-flight guarantees the priming
// turn runs exactly once per key.
func (s *Service) chatFactory(req ChatRequest, o taskOptions) session.Factory {
	base := s.factory(o)
	return func(ctx context.Context, key session.Key, workDir string) (_ runtime.Session, err error) {
		tmpl, err := s.loadTemplate(taskSpecs[session.FamilyChat].templateName)
		if err != nil {
			return nil, err
		}

		handle, err := base(ctx, key, workDir)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err != nil {
				if e := handle.Close(); e != nil {
					stream.Logger().Warn("closing half-initialized chat session failed",
						slog.Any("error", e))
				}
			}
		}()

		vars := s.baseVars(ctx, req.Ticker, req.CompanyName, workDir)
		vars["reportStatus"] = reportStatus(req.PriorReport)
		if err = handle.Initialize(ctx, tmpl.Fill(vars)); err != nil {
			return nil, err
		}
		return handle, nil
	}
}

// runFresh is the shared driver for the single-shot tasks: allocate a
// fresh session, fill the template, run one turn, reduce it.
func (s *Service) runFresh(ctx context.Context, spec taskSpec, subject string, o taskOptions, buildVars func(workDir string) map[string]string) (*TaskResult, error) {
	tmpl, err := s.loadTemplate(spec.templateName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", spec.errPrefix, err)
	}

	sess, err := s.registry.CreateFresh(ctx, session.Key{Subject: subject, Family: spec.family}, s.factory(o))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", spec.errPrefix, err)
	}

	events, err := sess.Handle.Submit(ctx, tmpl.Fill(buildVars(sess.WorkDir)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", spec.errPrefix, err)
	}
	result, err := stream.Reduce(events, stream.ReduceOptions{OnProgress: o.progress})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", spec.errPrefix, err)
	}

	accumulateUsage(ctx, result.Usage)
	return &TaskResult{Response: result.Response, Usage: result.Usage}, nil
}

// recordExchange persists one chat exchange. Persistence is best-effort
// telemetry for later updates; failures are logged, not returned.
func (s *Service) recordExchange(ctx context.Context, ticker, userText, assistantText string) {
	if s.history == nil {
		return
	}
	now := time.Now().UTC()
	err := s.history.AddTurns(ctx, ticker, []history.Turn{
		{Role: history.RoleUser, Text: userText, CreatedAt: now},
		{Role: history.RoleAssistant, Text: assistantText, CreatedAt: now},
	})
	if err != nil {
		stream.Logger().Warn("recording chat exchange failed",
			slog.String("ticker", ticker), slog.Any("error", err))
	}
}

// reportStatus is the chat_init block describing whether a report is
// loaded into the conversation.
func reportStatus(priorReport string) string {
	if strings.TrimSpace(priorReport) == "" {
		return "No research report is loaded yet."
	}
	return "The following research report is loaded:\n\n" + priorReport
}

// formatTranscript renders a chat transcript as a chronological markdown
// quote block for the update prompt.
func formatTranscript(turns []history.Turn) string {
	if len(turns) == 0 {
		return "(no follow-up discussion recorded)"
	}
	var sb strings.Builder
	for i, turn := range turns {
		if i > 0 {
			sb.WriteString(">\n")
		}
		label := "User"
		if turn.Role == history.RoleAssistant {
			label = "Assistant"
		}
		fmt.Fprintf(&sb, "> **%s:** %s\n", label, strings.ReplaceAll(turn.Text, "\n", "\n> "))
	}
	return sb.String()
}

// formatReferences renders the report excerpts a chat message refers to
// as a delimited section appended to the message.
func formatReferences(refs []Reference) string {
	var sb strings.Builder
	sb.WriteString("--- Referenced report excerpts ---\n")
	for _, ref := range refs {
		if ref.Section != "" {
			fmt.Fprintf(&sb, "\n[%s]\n", ref.Section)
		} else {
			sb.WriteString("\n")
		}
		sb.WriteString(ref.Text)
		sb.WriteString("\n")
	}
	sb.WriteString("--- End of references ---")
	return sb.String()
}

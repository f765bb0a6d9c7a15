// Package orchestrator drives the scripted analyst tasks: it fills a
// prompt template, runs it as one agent turn in the right session, and
// reduces the event stream into a final result.
package orchestrator

import (
	"cmp"
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/marketscribe/marketscribe/history"
	"github.com/marketscribe/marketscribe/marketdata"
	"github.com/marketscribe/marketscribe/prompt"
	"github.com/marketscribe/marketscribe/runtime"
	"github.com/marketscribe/marketscribe/session"
	"github.com/marketscribe/marketscribe/stream"
	"github.com/marketscribe/marketscribe/usage"
)

// Config carries the dependencies of a Service.
type Config struct {
	// Runtime backs every session. Required.
	Runtime runtime.Runtime

	// Market supplies the quote injected into prompts. Optional: without
	// it every prompt carries the "not available" block.
	Market marketdata.Provider

	// History persists chat transcripts per ticker. Optional: without it
	// chat exchanges are not recorded and Update relies on the transcript
	// passed in the request.
	History history.Store

	// Templates overrides the built-in prompt templates. Optional.
	Templates fs.FS

	// WorkBaseDir is where session working directories are allocated.
	// Defaults to a "marketscribe" directory under os.TempDir().
	WorkBaseDir string

	// Model used for every session unless overridden per call.
	Model string
}

// Service runs the analyst tasks. It owns the session registry: Close
// tears down every session it created.
type Service struct {
	runtime   runtime.Runtime
	registry  *session.Registry
	market    marketdata.Provider
	history   history.Store
	templates fs.FS
	model     string
}

// New validates the configuration and builds a Service.
func New(config Config) (*Service, error) {
	if config.Runtime == nil {
		return nil, errors.New("orchestrator: Config.Runtime is required")
	}
	workBase := cmp.Or(config.WorkBaseDir, filepath.Join(os.TempDir(), "marketscribe"))
	return &Service{
		runtime:   config.Runtime,
		registry:  session.NewRegistry(workBase),
		market:    config.Market,
		history:   config.History,
		templates: config.Templates,
		model:     config.Model,
	}, nil
}

// Registry exposes the session registry, mainly for inspection.
func (s *Service) Registry() *session.Registry {
	return s.registry
}

// Close destroys every live session and releases the history store.
func (s *Service) Close(ctx context.Context) error {
	err := s.registry.Clear()
	if s.history != nil {
		err = errors.Join(err, s.history.Close(ctx))
	}
	return err
}

// TaskResult is what a completed task hands back to the caller.
type TaskResult struct {
	// Final response text of the turn.
	Response string

	// Token accounting for the turn, nil if the runtime reported none.
	Usage *usage.Usage

	// Parsed quality-check verdict. Only QualityCheck sets it, and only
	// when the response carried a well-formed verdict block.
	Verdict *CheckVerdict
}

// Option adjusts a single task invocation.
type Option func(*taskOptions)

type taskOptions struct {
	progress func(string)
	partial  func(string)
	model    string
}

// WithProgress registers a callback receiving one human-readable line
// per notable stream event.
func WithProgress(fn func(line string)) Option {
	return func(o *taskOptions) { o.progress = fn }
}

// WithPartial registers a callback receiving the in-progress response
// text as it grows. Only Chat honors it; the batch tasks deliver their
// response whole.
func WithPartial(fn func(text string)) Option {
	return func(o *taskOptions) { o.partial = fn }
}

// WithModel overrides the service-wide model for this invocation.
// It only takes effect on sessions created by the invocation.
func WithModel(model string) Option {
	return func(o *taskOptions) { o.model = model }
}

func buildOptions(opts []Option) taskOptions {
	var o taskOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (s *Service) loadTemplate(name string) (*prompt.Template, error) {
	if s.templates != nil {
		return prompt.LoadFS(s.templates, name)
	}
	return prompt.Load(name)
}

// factory builds sessions for one invocation, honoring its model override.
func (s *Service) factory(o taskOptions) session.Factory {
	return func(ctx context.Context, key session.Key, workDir string) (runtime.Session, error) {
		return s.runtime.NewSession(ctx, runtime.SessionConfig{
			WorkingDirectory: workDir,
			Model:            cmp.Or(o.model, s.model),
		})
	}
}

// marketBlock resolves the quote block for a prompt. Every failure path
// degrades to the "not available" text so a quote outage never blocks a
// task.
func (s *Service) marketBlock(ctx context.Context, ticker string) string {
	if s.market == nil {
		return marketdata.Unavailable(ticker)
	}
	quote, err := s.market.GetQuote(ctx, ticker)
	if err != nil {
		stream.Logger().Warn("market data fetch failed",
			slog.String("ticker", ticker), slog.Any("error", err))
		return marketdata.Unavailable(ticker)
	}
	if quote == nil {
		return marketdata.Unavailable(ticker)
	}
	return marketdata.FormatMarkdown(quote)
}

// baseVars assembles the placeholder values shared by every template.
func (s *Service) baseVars(ctx context.Context, ticker, companyName, workDir string) map[string]string {
	return map[string]string{
		"ticker":      ticker,
		"companyName": cmp.Or(companyName, ticker),
		"currentDate": time.Now().Format("2006-01-02"),
		"workingDir":  workDir,
		"marketData":  s.marketBlock(ctx, ticker),
	}
}

// accumulateUsage folds the turn's usage into the caller's context-wide
// accumulator, if one is attached.
func accumulateUsage(ctx context.Context, u *usage.Usage) {
	if acc, ok := usage.FromContext(ctx); ok && acc != nil {
		acc.Add(u)
	}
}

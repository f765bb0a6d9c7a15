package orchestrator

import (
	"context"

	"github.com/marketscribe/marketscribe/asynctask"
)

// The async variants launch a task on a background goroutine and return
// immediately. Several may run at once for distinct tickers; awaiting
// the task yields the same result the blocking call would.

func (s *Service) ResearchAsync(ctx context.Context, req ResearchRequest, opts ...Option) *asynctask.Task[*TaskResult] {
	return asynctask.CreateTask(ctx, func(ctx context.Context) (*TaskResult, error) {
		return s.Research(ctx, req, opts...)
	})
}

func (s *Service) ReevaluateAsync(ctx context.Context, req ReevaluateRequest, opts ...Option) *asynctask.Task[*TaskResult] {
	return asynctask.CreateTask(ctx, func(ctx context.Context) (*TaskResult, error) {
		return s.Reevaluate(ctx, req, opts...)
	})
}

func (s *Service) ChatAsync(ctx context.Context, req ChatRequest, opts ...Option) *asynctask.Task[*TaskResult] {
	return asynctask.CreateTask(ctx, func(ctx context.Context) (*TaskResult, error) {
		return s.Chat(ctx, req, opts...)
	})
}

func (s *Service) UpdateAsync(ctx context.Context, req UpdateRequest, opts ...Option) *asynctask.Task[*TaskResult] {
	return asynctask.CreateTask(ctx, func(ctx context.Context) (*TaskResult, error) {
		return s.Update(ctx, req, opts...)
	})
}

func (s *Service) QualityCheckAsync(ctx context.Context, req CheckRequest, opts ...Option) *asynctask.Task[*TaskResult] {
	return asynctask.CreateTask(ctx, func(ctx context.Context) (*TaskResult, error) {
		return s.QualityCheck(ctx, req, opts...)
	})
}

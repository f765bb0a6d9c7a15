// Copyright 2025 The Marketscribe Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package runtime

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/responses"

	"github.com/marketscribe/marketscribe/asyncqueue"
	"github.com/marketscribe/marketscribe/stream"
	"github.com/marketscribe/marketscribe/usage"
)

const defaultOpenAIModel = openai.ChatModelGPT4o

// OpenAIRuntime implements Runtime on top of the OpenAI Responses API.
// Conversation continuity across turns uses previous_response_id.
type OpenAIRuntime struct {
	client      openai.Client
	model       openai.ChatModel
	explicitKey bool
}

type OpenAIRuntimeParams struct {
	// Optional API key. Falls back to the OPENAI_API_KEY environment
	// variable; a session cannot be created without either.
	APIKey string

	// Optional default model for new sessions.
	Model openai.ChatModel

	// Extra request options, e.g. option.WithBaseURL for a proxy.
	Options []option.RequestOption
}

func NewOpenAIRuntime(params OpenAIRuntimeParams) *OpenAIRuntime {
	opts := params.Options
	if params.APIKey != "" {
		opts = append(opts, option.WithAPIKey(params.APIKey))
	}
	return &OpenAIRuntime{
		client:      openai.NewClient(opts...),
		model:       cmp.Or(params.Model, defaultOpenAIModel),
		explicitKey: params.APIKey != "",
	}
}

func (r *OpenAIRuntime) NewSession(_ context.Context, config SessionConfig) (Session, error) {
	if os.Getenv("OPENAI_API_KEY") == "" {
		// The client may still carry an explicit key option; we cannot
		// inspect it, so only reject when neither source is plausible.
		if !r.hasExplicitKey() {
			return nil, fmt.Errorf("OPENAI_API_KEY is not set")
		}
	}
	model := r.model
	if config.Model != "" {
		model = openai.ChatModel(config.Model)
	}
	return &openAISession{
		id:           uuid.NewString(),
		client:       r.client,
		model:        model,
		instructions: config.Instructions,
		workDir:      config.WorkingDirectory,
	}, nil
}

func (r *OpenAIRuntime) hasExplicitKey() bool {
	return r.explicitKey
}

type openAISession struct {
	id           string
	client       openai.Client
	model        openai.ChatModel
	instructions string
	workDir      string

	mu                 sync.Mutex
	previousResponseID string
}

func (s *openAISession) ID() string { return s.id }

func (s *openAISession) Close() error { return nil }

func (s *openAISession) Initialize(ctx context.Context, text string) error {
	events, err := s.Submit(ctx, text)
	if err != nil {
		return err
	}
	// Drain the turn so previous_response_id advances; the result is
	// deliberately discarded.
	for event := range events {
		if failed, ok := event.(stream.TurnFailedEvent); ok {
			stream.Logger().Warn("session initialization turn failed",
				slog.String("session_id", s.id),
				slog.String("error", failed.Message))
		}
	}
	return nil
}

func (s *openAISession) Submit(ctx context.Context, text string) (stream.EventSeq, error) {
	s.mu.Lock()
	prevID := s.previousResponseID
	s.mu.Unlock()

	var prevRespIDParam param.Opt[string]
	if prevID != "" {
		prevRespIDParam = param.NewOpt(prevID)
	}
	var instructions param.Opt[string]
	if s.instructions != "" {
		instructions = param.NewOpt(s.instructions)
	}

	params := responses.ResponseNewParams{
		PreviousResponseID: prevRespIDParam,
		Instructions:       instructions,
		Model:              s.model,
		Input:              responses.ResponseNewParamsInputUnion{OfString: param.NewOpt(text)},
	}

	queue := asyncqueue.New[turnEnvelope]()
	go s.produce(ctx, params, queue)

	seq := func(yield func(stream.Event) bool) {
		for {
			envelope := queue.Get()
			if envelope.done {
				return
			}
			if !yield(envelope.event) {
				// Consumer stopped early; keep draining so the
				// producer goroutine can finish.
				go drain(queue)
				return
			}
		}
	}
	return seq, nil
}

// turnEnvelope carries either one event or the end-of-turn sentinel.
type turnEnvelope struct {
	event stream.Event
	done  bool
}

func drain(queue *asyncqueue.Queue[turnEnvelope]) {
	for {
		if queue.Get().done {
			return
		}
	}
}

// produce translates the Responses API event stream into the stream.Event
// union and pushes it onto the queue, ending with the done sentinel.
func (s *openAISession) produce(ctx context.Context, params responses.ResponseNewParams, queue *asyncqueue.Queue[turnEnvelope]) {
	defer queue.Put(turnEnvelope{done: true})

	put := func(event stream.Event) {
		queue.Put(turnEnvelope{event: event})
	}

	apiStream := s.client.Responses.NewStreaming(ctx, params)
	defer func() {
		if err := apiStream.Close(); err != nil {
			stream.Logger().Warn("error closing response stream", slog.String("error", err.Error()))
		}
	}()

	var partial strings.Builder
	failed := false

	for apiStream.Next() {
		chunk := apiStream.Current()
		switch chunk.Type {
		case "response.output_item.added":
			if item, ok := outputItemStarted(chunk.Item); ok {
				put(stream.ItemStartedEvent{Item: item})
			}

		case "response.output_text.delta":
			partial.WriteString(chunk.Delta)
			put(stream.ItemUpdatedEvent{Item: stream.AgentMessageItem{Text: partial.String()}})

		case "response.output_item.done":
			if item, ok := outputItemCompleted(chunk.Item); ok {
				put(stream.ItemCompletedEvent{Item: item})
			}

		case "response.completed":
			s.mu.Lock()
			s.previousResponseID = chunk.Response.ID
			s.mu.Unlock()
			put(stream.TurnCompletedEvent{Usage: responseUsage(chunk.Response)})

		case "response.failed", "response.incomplete":
			message := chunk.Response.Error.Message
			if message == "" {
				message = "response " + strings.TrimPrefix(chunk.Type, "response.")
			}
			put(stream.TurnFailedEvent{Message: message})
			failed = true
		}
		if failed {
			return
		}
	}

	if err := apiStream.Err(); err != nil {
		put(stream.TurnFailedEvent{Message: err.Error()})
	}
}

func outputItemStarted(item responses.ResponseOutputItemUnion) (stream.Item, bool) {
	switch item.Type {
	case "message":
		return stream.AgentMessageItem{}, true
	case "reasoning":
		return stream.ReasoningItem{}, true
	case "web_search_call":
		return stream.WebSearchItem{}, true
	default:
		return nil, false
	}
}

func outputItemCompleted(item responses.ResponseOutputItemUnion) (stream.Item, bool) {
	switch item.Type {
	case "message":
		return stream.AgentMessageItem{Text: messageText(item)}, true
	case "reasoning":
		return stream.ReasoningItem{Text: reasoningText(item)}, true
	case "web_search_call":
		return stream.WebSearchItem{}, true
	default:
		return nil, false
	}
}

func messageText(item responses.ResponseOutputItemUnion) string {
	var sb strings.Builder
	for _, content := range item.Content {
		if content.Type == "output_text" {
			sb.WriteString(content.Text)
		}
	}
	return sb.String()
}

func reasoningText(item responses.ResponseOutputItemUnion) string {
	var sb strings.Builder
	for _, summary := range item.Summary {
		sb.WriteString(summary.Text)
	}
	return sb.String()
}

func responseUsage(response responses.Response) *usage.Usage {
	if response.Usage.TotalTokens == 0 && response.Usage.InputTokens == 0 && response.Usage.OutputTokens == 0 {
		return nil
	}
	return &usage.Usage{
		Requests:     1,
		InputTokens:  uint64(response.Usage.InputTokens),
		OutputTokens: uint64(response.Usage.OutputTokens),
		TotalTokens:  uint64(response.Usage.TotalTokens),
	}
}

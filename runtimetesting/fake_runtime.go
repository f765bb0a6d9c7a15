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

// Package runtimetesting provides a scriptable in-memory agent runtime
// for tests.
package runtimetesting

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/marketscribe/marketscribe/runtime"
	"github.com/marketscribe/marketscribe/stream"
	"github.com/marketscribe/marketscribe/usage"
)

// FakeRuntime hands out FakeSessions and records every session it created.
type FakeRuntime struct {
	mu sync.Mutex

	// Error returned by NewSession when set.
	CreateError error

	// Event slices consumed turn by turn by every session this runtime
	// creates, in submission order across all sessions.
	turnScripts [][]stream.Event

	sessions []*FakeSession
}

func NewFakeRuntime() *FakeRuntime {
	return &FakeRuntime{}
}

// AddTurn scripts the event sequence for the next submitted turn.
func (r *FakeRuntime) AddTurn(events ...stream.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turnScripts = append(r.turnScripts, events)
}

// AddMessageTurn scripts a minimal successful turn that answers with text.
func (r *FakeRuntime) AddMessageTurn(text string, u *usage.Usage) {
	r.AddTurn(
		stream.ItemStartedEvent{Item: stream.AgentMessageItem{}},
		stream.ItemCompletedEvent{Item: stream.AgentMessageItem{Text: text}},
		stream.TurnCompletedEvent{Usage: u},
	)
}

// Sessions returns every session created so far.
func (r *FakeRuntime) Sessions() []*FakeSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.sessions)
}

func (r *FakeRuntime) SessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *FakeRuntime) NewSession(_ context.Context, config runtime.SessionConfig) (runtime.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CreateError != nil {
		return nil, r.CreateError
	}
	s := &FakeSession{
		id:      fmt.Sprintf("fake-session-%d", len(r.sessions)+1),
		runtime: r,
		Config:  config,
	}
	r.sessions = append(r.sessions, s)
	return s, nil
}

func (r *FakeRuntime) nextTurn() ([]stream.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.turnScripts) == 0 {
		return nil, false
	}
	events := r.turnScripts[0]
	r.turnScripts = r.turnScripts[1:]
	return events, true
}

// FakeSession replays scripted turns and records everything submitted.
type FakeSession struct {
	id      string
	runtime *FakeRuntime

	// Config the session was created with.
	Config runtime.SessionConfig

	mu sync.Mutex

	// Prompts passed to Initialize, in order.
	InitPrompts []string

	// Prompts passed to Submit, in order.
	SubmittedPrompts []string

	// Error returned by Submit when set.
	SubmitError error

	closed bool
}

func (s *FakeSession) ID() string { return s.id }

func (s *FakeSession) Initialize(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.InitPrompts = append(s.InitPrompts, text)
	// Consume a scripted turn if one exists, mimicking a real runtime
	// burning the turn; absence is fine for a discarded result.
	s.runtime.nextTurn()
	return nil
}

func (s *FakeSession) Submit(_ context.Context, text string) (stream.EventSeq, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SubmitError != nil {
		return nil, s.SubmitError
	}
	s.SubmittedPrompts = append(s.SubmittedPrompts, text)

	events, ok := s.runtime.nextTurn()
	if !ok {
		// An unscripted turn fails loudly rather than hanging a test.
		events = []stream.Event{stream.TurnFailedEvent{Message: "no scripted turn available"}}
	}
	return slices.Values(events), nil
}

func (s *FakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *FakeSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

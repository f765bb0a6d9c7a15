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

// Package runtime defines the contract of the conversational agent runtime
// that marketscribe orchestrates, and provides an OpenAI-backed
// implementation of it.
package runtime

import (
	"context"

	"github.com/marketscribe/marketscribe/stream"
)

// Runtime creates persistent conversational sessions.
type Runtime interface {
	NewSession(ctx context.Context, config SessionConfig) (Session, error)
}

// SessionConfig carries the settings for a new session.
type SessionConfig struct {
	// Directory for scratch files the runtime produces during turns.
	WorkingDirectory string

	// Model identifier. Empty selects the implementation's default.
	Model string

	// System instructions applied to every turn of the session.
	Instructions string
}

// Session is a persistent conversational context. A session accepts one
// turn at a time; submitting the next turn before the previous event
// sequence is exhausted is undefined behavior.
type Session interface {
	ID() string

	// Initialize sends a fire-and-forget first turn whose result is
	// discarded. Failures are logged, not returned, unless the turn
	// could not be submitted at all.
	Initialize(ctx context.Context, text string) error

	// Submit sends one turn and returns its single-use event sequence.
	Submit(ctx context.Context, text string) (stream.EventSeq, error)

	Close() error
}

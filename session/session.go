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

// Package session tracks live conversational sessions, keyed by the
// subject ticker and task family, and allocates their working directories.
package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/marketscribe/marketscribe/runtime"
)

// Family identifies one of the scripted task families.
type Family string

const (
	FamilyResearch   Family = "research"
	FamilyReevaluate Family = "reevaluate"
	FamilyChat       Family = "chat"
	FamilyUpdate     Family = "update"
	FamilyCheck      Family = "check"
)

// Key identifies a reusable session. Chat sessions are keyed by subject so
// they persist across turns; other families create a fresh session per
// invocation and are tracked anonymously.
type Key struct {
	Subject string
	Family  Family
}

func (k Key) String() string {
	return k.Subject + "/" + string(k.Family)
}

// Session pairs a live runtime handle with its scratch directory.
type Session struct {
	Key       Key
	Handle    runtime.Session
	WorkDir   string
	CreatedAt time.Time
}

func (s *Session) Close() error {
	return s.Handle.Close()
}

// WorkingDirectoryError is returned when a session's scratch directory
// cannot be allocated. Session creation is aborted.
type WorkingDirectoryError struct {
	Path string
	Err  error
}

func (err WorkingDirectoryError) Error() string {
	return fmt.Sprintf("cannot allocate working directory %s: %v", err.Path, err.Err)
}

func (err WorkingDirectoryError) Unwrap() error { return err.Err }

// SessionCreationError is returned when the agent runtime refuses to
// create a session, e.g. on authentication failure.
type SessionCreationError struct {
	Key Key
	Err error
}

func (err SessionCreationError) Error() string {
	return fmt.Sprintf("cannot create session %s: %v", err.Key, err.Err)
}

func (err SessionCreationError) Unwrap() error { return err.Err }

// sanitizeSubject keeps directory names portable.
func sanitizeSubject(subject string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, subject)
}

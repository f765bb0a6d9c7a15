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

package session

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marketscribe/marketscribe/runtime"
	"github.com/marketscribe/marketscribe/stream"
)

// Factory obtains the underlying runtime handle for a new session.
// The working directory already exists when the factory runs.
type Factory func(ctx context.Context, key Key, workDir string) (runtime.Session, error)

// Registry owns every live session. There is no idle-timeout eviction:
// entries live until Remove or Clear.
//
// All methods are safe for concurrent use. GetOrCreate is single-flight
// per key: concurrent callers for the same key share one creation.
type Registry struct {
	baseDir string

	mu       sync.Mutex
	sessions map[Key]*Session
	orphans  []*Session
	inflight map[Key]*inflightCreate
}

type inflightCreate struct {
	done chan struct{}
	sess *Session
	err  error
}

// NewRegistry creates a registry whose sessions allocate working
// directories under baseDir.
func NewRegistry(baseDir string) *Registry {
	return &Registry{
		baseDir:  baseDir,
		sessions: make(map[Key]*Session),
		inflight: make(map[Key]*inflightCreate),
	}
}

func (r *Registry) Get(key Key) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key]
	return s, ok
}

func (r *Registry) Set(key Key, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[key] = s
}

// Remove deletes the entry for key and closes its runtime handle.
func (r *Registry) Remove(key Key) error {
	r.mu.Lock()
	s, ok := r.sessions[key]
	delete(r.sessions, key)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return s.Close()
}

// Clear closes and drops every session, named and anonymous.
func (r *Registry) Clear() error {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions)+len(r.orphans))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	all = append(all, r.orphans...)
	r.sessions = make(map[Key]*Session)
	r.orphans = nil
	r.mu.Unlock()

	var errs []error
	for _, s := range all {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions) + len(r.orphans)
}

// GetOrCreate returns the session registered under key, creating and
// registering it on first use.
func (r *Registry) GetOrCreate(ctx context.Context, key Key, factory Factory) (*Session, error) {
	for {
		r.mu.Lock()
		if s, ok := r.sessions[key]; ok {
			r.mu.Unlock()
			return s, nil
		}
		if fl, ok := r.inflight[key]; ok {
			r.mu.Unlock()
			select {
			case <-fl.done:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			if fl.err != nil {
				// The other caller's creation failed; retry from
				// scratch rather than inheriting its error.
				continue
			}
			return fl.sess, nil
		}
		fl := &inflightCreate{done: make(chan struct{})}
		r.inflight[key] = fl
		r.mu.Unlock()

		s, err := r.newSession(ctx, key, factory)

		r.mu.Lock()
		delete(r.inflight, key)
		if err == nil {
			r.sessions[key] = s
		}
		r.mu.Unlock()

		fl.sess, fl.err = s, err
		close(fl.done)
		return s, err
	}
}

// CreateFresh creates a session outside the named map. It is still owned
// by the registry and closed by Clear.
func (r *Registry) CreateFresh(ctx context.Context, key Key, factory Factory) (*Session, error) {
	s, err := r.newSession(ctx, key, factory)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.orphans = append(r.orphans, s)
	r.mu.Unlock()
	return s, nil
}

// newSession allocates the working directory first; only then is the
// runtime handle requested.
func (r *Registry) newSession(ctx context.Context, key Key, factory Factory) (*Session, error) {
	now := time.Now()
	dirName := sanitizeSubject(key.Subject) + "-" + string(key.Family) +
		"-" + now.Format("20060102-150405") + "-" + uuid.NewString()[:8]
	workDir := filepath.Join(r.baseDir, dirName)

	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, WorkingDirectoryError{Path: workDir, Err: err}
	}

	handle, err := factory(ctx, key, workDir)
	if err != nil {
		return nil, SessionCreationError{Key: key, Err: err}
	}

	stream.Logger().Debug("session created",
		slog.String("key", key.String()),
		slog.String("session_id", handle.ID()),
		slog.String("work_dir", workDir))

	return &Session{
		Key:       key,
		Handle:    handle,
		WorkDir:   workDir,
		CreatedAt: now,
	}, nil
}

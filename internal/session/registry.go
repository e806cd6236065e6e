package session

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/mkonda/probemux/internal/errors"
	"github.com/mkonda/probemux/internal/logger"
	"github.com/mkonda/probemux/internal/store"
	"github.com/mkonda/probemux/internal/workerargs"
)

// Options configures a Registry.
type Options struct {
	// Executable is the worker binary to launch. Empty resolves to the
	// running binary itself, which doubles as the worker.
	Executable string

	MaxSessions   int
	ShutdownGrace time.Duration
	MaxLineBytes  int

	// Validate checks an argument vector before any process is spawned.
	// Nil uses the probe worker flag schema.
	Validate func(argv []string) error
}

// Registry is the concurrency-safe collection of all known sessions,
// keyed by session id. The map lock is held only for map mutation, never
// across spawning or per-session operations.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Supervisor

	executable    string
	validate      func([]string) error
	maxSessions   int
	shutdownGrace time.Duration
	maxLineBytes  int

	log *logger.Logger
	idx *store.Store // may be nil
}

// NewRegistry creates a session registry. The findings index may be nil
// when the store is disabled.
func NewRegistry(opts Options, log *logger.Logger, idx *store.Store) (*Registry, error) {
	executable := opts.Executable
	if executable == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeSpawnFailed, "failed to resolve worker executable")
		}
		executable = self
	}

	validate := opts.Validate
	if validate == nil {
		validate = workerargs.Validate
	}

	maxSessions := opts.MaxSessions
	if maxSessions <= 0 {
		maxSessions = 32
	}
	grace := opts.ShutdownGrace
	if grace <= 0 {
		grace = 5 * time.Second
	}
	maxLineBytes := opts.MaxLineBytes
	if maxLineBytes <= 0 {
		maxLineBytes = 1024 * 1024
	}

	return &Registry{
		sessions:      make(map[string]*Supervisor),
		executable:    executable,
		validate:      validate,
		maxSessions:   maxSessions,
		shutdownGrace: grace,
		maxLineBytes:  maxLineBytes,
		log:           log,
		idx:           idx,
	}, nil
}

// Create validates argv, spawns a supervised worker, and registers it
// under a fresh session id. On any failure no session exists and no
// process is left behind.
func (r *Registry) Create(client string, argv []string) (string, error) {
	if err := r.validate(argv); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeValidationFailed, "worker arguments rejected")
	}

	r.mu.RLock()
	count := len(r.sessions)
	r.mu.RUnlock()
	if count >= r.maxSessions {
		return "", apperrors.New(apperrors.ErrCodeSessionLimitReached,
			fmt.Sprintf("maximum number of sessions (%d) reached", r.maxSessions))
	}

	id := uuid.NewString()

	// Spawning happens outside the map lock.
	sup, err := startSupervisor(id, client, r.executable, argv, r.maxLineBytes, r.log, r.idx)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	if len(r.sessions) >= r.maxSessions {
		r.mu.Unlock()
		// Lost the race for the last slot; the worker must not leak.
		sup.Kill()
		return "", apperrors.New(apperrors.ErrCodeSessionLimitReached,
			fmt.Sprintf("maximum number of sessions (%d) reached", r.maxSessions))
	}
	r.sessions[id] = sup
	r.mu.Unlock()

	if r.idx != nil {
		if err := r.idx.RecordSession(id, client, argv, sup.pid, sup.startedAt); err != nil {
			r.log.Warn("Failed to index session", map[string]any{
				"session_id": id,
				"error":      err.Error(),
			})
		}
	}

	r.log.LogSessionEvent("started", id, client, map[string]any{
		"pid":        sup.pid,
		"executable": r.executable,
		"argv":       strings.Join(argv, " "),
	})

	return id, nil
}

// Stop forwards a graceful termination request to the session's worker.
// It returns once the signal is dispatched, without waiting for exit.
func (r *Registry) Stop(id string) error {
	r.mu.RLock()
	sup, ok := r.sessions[id]
	r.mu.RUnlock()

	if !ok {
		return apperrors.New(apperrors.ErrCodeSessionNotFound, fmt.Sprintf("session %s not found", id)).
			WithContext("session_id", id)
	}

	if err := sup.Stop(); err != nil {
		return err
	}

	r.log.LogSessionEvent("stop requested", id, sup.client)
	return nil
}

// Get returns a point-in-time snapshot of one session.
func (r *Registry) Get(id string) (Snapshot, bool) {
	r.mu.RLock()
	sup, ok := r.sessions[id]
	r.mu.RUnlock()

	if !ok {
		return Snapshot{}, false
	}
	return sup.Snapshot(), true
}

// List returns snapshots of all sessions keyed by session id.
func (r *Registry) List() map[string]Snapshot {
	r.mu.RLock()
	sups := make([]*Supervisor, 0, len(r.sessions))
	for _, sup := range r.sessions {
		sups = append(sups, sup)
	}
	r.mu.RUnlock()

	snapshots := make(map[string]Snapshot, len(sups))
	for _, sup := range sups {
		snapshots[sup.id] = sup.Snapshot()
	}
	return snapshots
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Running returns the number of sessions whose worker has not exited yet.
func (r *Registry) Running() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	running := 0
	for _, sup := range r.sessions {
		if !sup.Completed() {
			running++
		}
	}
	return running
}

// Shutdown terminates every remaining worker: SIGTERM first, then SIGKILL
// on the process group once the grace period expires. The registry is
// empty afterwards.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	sups := make([]*Supervisor, 0, len(r.sessions))
	for _, sup := range r.sessions {
		sups = append(sups, sup)
	}
	r.sessions = make(map[string]*Supervisor)
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, sup := range sups {
		wg.Add(1)
		go func(sup *Supervisor) {
			defer wg.Done()

			select {
			case <-sup.Done():
				return
			default:
			}

			sup.Stop() // best effort, the kill below is the guarantee

			select {
			case <-sup.Done():
			case <-time.After(r.shutdownGrace):
				sup.Kill()
				<-sup.Done()
			}
		}(sup)
	}
	wg.Wait()

	r.log.Info("All sessions terminated", map[string]any{"count": len(sups)})
}

// Package session implements worker session supervision: spawning probe
// worker processes, capturing and classifying their output concurrently,
// tracking completion, and the registry all transports call into.
package session

import (
	"bufio"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	apperrors "github.com/mkonda/probemux/internal/errors"
	"github.com/mkonda/probemux/internal/logger"
	"github.com/mkonda/probemux/internal/protocol"
	"github.com/mkonda/probemux/internal/store"
)

// Completion is the terminal exit record of a session. ExitCode is -1 when
// the worker was killed by a signal or its exit could not be observed;
// Error is set only for wait failures, never for nonzero exits.
type Completion struct {
	CompletedAt time.Time `json:"completed_at"`
	ExitCode    int       `json:"exit_code"`
	Error       string    `json:"error,omitempty"`
}

// Snapshot is a read-only, point-in-time copy of a session's state.
type Snapshot struct {
	SessionID  string              `json:"session_id"`
	Client     string              `json:"client"`
	Argv       []string            `json:"argv"`
	ProcessID  int                 `json:"process_id"`
	StartedAt  time.Time           `json:"started_at"`
	Statistics protocol.Statistics `json:"statistics"`
	Findings   []protocol.Finding  `json:"findings"`
	RawOutput  []string            `json:"raw_output"`
	Completion *Completion         `json:"completion,omitempty"`
}

// Supervisor owns one worker process and the three background activities
// attached to it: a reader per output stream and the completion waiter.
// Identity fields are immutable after construction; each telemetry field
// carries its own lock so the readers and the waiter never contend on
// unrelated state.
type Supervisor struct {
	id        string
	client    string
	argv      []string
	pid       int
	startedAt time.Time

	cmd          *exec.Cmd
	log          *logger.Logger
	idx          *store.Store // may be nil
	maxLineBytes int

	statsMu sync.Mutex
	stats   protocol.Statistics

	findingsMu sync.Mutex
	findings   []protocol.Finding

	outputMu sync.Mutex
	output   []string

	completionMu sync.Mutex
	completion   *Completion

	// done closes once the completion record is set.
	done chan struct{}
}

// startSupervisor launches the worker and forks the capture and wait
// activities. A spawn failure leaves no process behind.
func startSupervisor(id, client, executable string, argv []string, maxLineBytes int, log *logger.Logger, idx *store.Store) (*Supervisor, error) {
	cmd := exec.Command(executable, argv...)
	// Own process group, so termination signals reach the worker and
	// anything it forks.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSpawnFailed, "failed to create stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdout.Close()
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSpawnFailed, "failed to create stderr pipe")
	}

	if err := cmd.Start(); err != nil {
		stdout.Close()
		stderr.Close()
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSpawnFailed, "failed to start worker").
			WithContext("executable", executable)
	}

	s := &Supervisor{
		id:           id,
		client:       client,
		argv:         argv,
		pid:          cmd.Process.Pid,
		startedAt:    time.Now().UTC(),
		cmd:          cmd,
		log:          log.WithSession(id),
		idx:          idx,
		maxLineBytes: maxLineBytes,
		done:         make(chan struct{}),
	}

	s.log.Info("Worker started", map[string]any{
		"pid":        s.pid,
		"executable": executable,
	})

	go s.consume("stdout", stdout)
	go s.consume("stderr", stderr)
	go s.waitForExit()

	return s, nil
}

// consume reads one output stream line by line, classifying each line in
// arrival order. Ordering holds within this stream only; interleaving with
// the other stream is nondeterministic. The stream is always drained to
// EOF so the worker never blocks on a full pipe: a line longer than the
// limit is truncated to the limit, kept as raw output, and reading
// continues with the next line.
func (s *Supervisor) consume(stream string, r io.Reader) {
	br := bufio.NewReaderSize(r, 64*1024)
	line := make([]byte, 0, 4096)
	truncated := false

	for {
		chunk, err := br.ReadSlice('\n')
		if !truncated && len(chunk) > 0 {
			if room := s.maxLineBytes - len(line); len(chunk) > room {
				line = append(line, chunk[:room]...)
				truncated = true
				s.log.Warn("Output line exceeds limit, truncating", map[string]any{
					"stream": stream,
					"limit":  s.maxLineBytes,
				})
			} else {
				line = append(line, chunk...)
			}
		}

		if err == bufio.ErrBufferFull {
			continue
		}

		if err == nil || len(line) > 0 {
			text := strings.TrimRight(string(line), "\r\n")
			if truncated {
				// A truncated line can no longer be a valid record; keep
				// the prefix as raw output so nothing is silently lost.
				if trimmed := strings.TrimSpace(protocol.StripEscapes(text)); trimmed != "" {
					s.outputMu.Lock()
					s.output = append(s.output, trimmed)
					s.outputMu.Unlock()
				}
			} else {
				s.capture(text)
			}
			line = line[:0]
			truncated = false
		}

		if err != nil {
			if err != io.EOF {
				// The pipe closing on worker exit lands here; nothing is
				// left to capture either way.
				s.log.Debug("Stream closed", map[string]any{"stream": stream, "error": err.Error()})
			}
			return
		}
	}
}

// capture classifies one complete line and folds it into the session state.
func (s *Supervisor) capture(line string) {
	rec := protocol.Classify(line)
	switch rec.Kind {
	case protocol.KindStatistics:
		s.statsMu.Lock()
		s.stats = rec.Statistics
		s.statsMu.Unlock()
	case protocol.KindFinding:
		s.findingsMu.Lock()
		s.findings = append(s.findings, rec.Finding)
		s.findingsMu.Unlock()

		s.log.LogFinding(s.id, rec.Finding.Plugin, rec.Finding.Target)
		if s.idx != nil {
			if err := s.idx.RecordFinding(s.id, s.client, rec.Finding); err != nil {
				s.log.Warn("Failed to index finding", map[string]any{"error": err.Error()})
			}
		}
	case protocol.KindRaw:
		s.outputMu.Lock()
		s.output = append(s.output, rec.Raw)
		s.outputMu.Unlock()
	}
}

// waitForExit blocks until the worker exits and records the completion. It
// runs concurrently with the stream readers and does not wait for them to
// finish draining.
func (s *Supervisor) waitForExit() {
	err := s.cmd.Wait()

	completion := Completion{CompletedAt: time.Now().UTC()}
	switch e := err.(type) {
	case nil:
		completion.ExitCode = 0
		s.log.Info("Worker completed", map[string]any{"pid": s.pid, "exit_code": 0})
	case *exec.ExitError:
		// ExitCode is -1 when the worker died from a signal.
		completion.ExitCode = e.ExitCode()
		s.log.Info("Worker completed", map[string]any{"pid": s.pid, "exit_code": completion.ExitCode})
	default:
		completion.ExitCode = -1
		completion.Error = apperrors.Wrap(err, apperrors.ErrCodeWaitFailed, "failed to observe worker exit").Error()
		s.log.Error("Failed to observe worker exit", err, map[string]any{"pid": s.pid})
	}

	s.setCompletion(completion)
	close(s.done)

	if s.idx != nil {
		if err := s.idx.MarkCompleted(s.id, completion.ExitCode, completion.CompletedAt); err != nil {
			s.log.Warn("Failed to index completion", map[string]any{"error": err.Error()})
		}
	}
}

// setCompletion records the terminal state exactly once; later calls are
// ignored so the completion record stays immutable.
func (s *Supervisor) setCompletion(c Completion) bool {
	s.completionMu.Lock()
	defer s.completionMu.Unlock()

	if s.completion != nil {
		return false
	}
	s.completion = &c
	return true
}

// Completed reports whether the terminal state has been recorded.
func (s *Supervisor) Completed() bool {
	s.completionMu.Lock()
	defer s.completionMu.Unlock()
	return s.completion != nil
}

// Done returns a channel that closes once the worker's exit is observed.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// Stop sends a graceful termination signal to the worker's process group.
// It does not wait for the process to exit; exit is observed by the
// completion waiter.
func (s *Supervisor) Stop() error {
	if err := syscall.Kill(-s.pid, syscall.SIGTERM); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeSignalFailed, "failed to signal worker").
			WithContext("pid", s.pid)
	}
	return nil
}

// Kill force-terminates the worker's process group. Used on release paths
// where the supervisor must not outlive its registration.
func (s *Supervisor) Kill() {
	syscall.Kill(-s.pid, syscall.SIGKILL)
}

// Snapshot returns a point-in-time copy of the session's state. Each field
// is copied under its own lock; there is no cross-field consistency
// guarantee.
func (s *Supervisor) Snapshot() Snapshot {
	snap := Snapshot{
		SessionID: s.id,
		Client:    s.client,
		Argv:      append([]string(nil), s.argv...),
		ProcessID: s.pid,
		StartedAt: s.startedAt,
	}

	s.statsMu.Lock()
	snap.Statistics = s.stats
	s.statsMu.Unlock()

	s.findingsMu.Lock()
	snap.Findings = append([]protocol.Finding(nil), s.findings...)
	s.findingsMu.Unlock()

	s.outputMu.Lock()
	snap.RawOutput = append([]string(nil), s.output...)
	s.outputMu.Unlock()

	s.completionMu.Lock()
	if s.completion != nil {
		c := *s.completion
		snap.Completion = &c
	}
	s.completionMu.Unlock()

	return snap
}

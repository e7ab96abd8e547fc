// Package supervisor spawns and restarts background daemon plugin
// processes, applying a bounded exponential restart backoff.
package supervisor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ProcessSpec describes how to spawn a plugin's process.
type ProcessSpec struct {
	PluginID   string
	Command    string
	Args       []string
	Dir        string
	Background bool // true for daemon-style plugins supervised here
}

// Supervisor owns zero or more supervised child processes. Foreground socket
// plugins and all stdio plugins are spawned/torn down on demand by the core
// state machine; only background/daemon plugins are continuously supervised
// here with restart backoff.
type Supervisor struct {
	mu             sync.Mutex
	backoff        BackoffConfig
	logger         *slog.Logger
	procs          map[string]*supervised
	onRestart      func(pluginID string)
	health         *cron.Cron
	healthSchedule string
}

type supervised struct {
	spec         ProcessSpec
	cmd          *exec.Cmd
	restartCount int
	cancel       context.CancelFunc
}

// New constructs a Supervisor with the given backoff policy and starts its
// periodic health-log tick (default every minute; override with
// WithHealthSchedule).
func New(backoff BackoffConfig, logger *slog.Logger, opts ...Option) *Supervisor {
	s := &Supervisor{backoff: backoff, logger: logger, procs: make(map[string]*supervised), healthSchedule: "@every 1m"}
	for _, opt := range opts {
		opt(s)
	}

	s.health = cron.New()
	s.health.AddFunc(s.healthSchedule, s.logHealth)
	s.health.Start()

	return s
}

// logHealth reports how many plugin processes are currently supervised.
func (s *Supervisor) logHealth() {
	s.mu.Lock()
	n := len(s.procs)
	s.mu.Unlock()
	if s.logger != nil {
		s.logger.Debug("supervisor health", "supervised_processes", n)
	}
}

// Start spawns spec's process under supervision. onStderr is invoked (from an
// internal goroutine) with each line the process writes to stderr. Each exit
// is followed by a restart after the backoff delay, until MaxRestarts is
// exhausted.
func (s *Supervisor) Start(ctx context.Context, spec ProcessSpec, onStderr func(line string)) error {
	s.mu.Lock()
	if _, exists := s.procs[spec.PluginID]; exists {
		s.mu.Unlock()
		return nil
	}
	sv := &supervised{spec: spec}
	s.procs[spec.PluginID] = sv
	s.mu.Unlock()

	return s.spawnLoop(ctx, sv, onStderr)
}

func (s *Supervisor) spawnLoop(ctx context.Context, sv *supervised, onStderr func(line string)) error {
	runCtx, cancel := context.WithCancel(ctx)
	sv.cancel = cancel

	go func() {
		for {
			cmd := exec.CommandContext(runCtx, sv.spec.Command, sv.spec.Args...)
			cmd.Dir = sv.spec.Dir
			cmd.Stdin = nil

			stderr, err := cmd.StderrPipe()
			if err != nil {
				s.log("failed to attach stderr for %s: %v", sv.spec.PluginID, err)
				return
			}

			if err := cmd.Start(); err != nil {
				s.log("failed to start %s: %v", sv.spec.PluginID, err)
			} else {
				s.mu.Lock()
				sv.cmd = cmd
				s.mu.Unlock()

				go streamStderr(sv.spec.PluginID, stderr, onStderr)
				_ = cmd.Wait()
			}

			select {
			case <-runCtx.Done():
				return
			default:
			}

			s.mu.Lock()
			exhausted := s.backoff.Exhausted(sv.restartCount)
			if !exhausted {
				sv.restartCount++
			}
			delay := s.backoff.Delay(sv.restartCount)
			s.mu.Unlock()

			if exhausted {
				s.log("plugin %s exhausted restart budget after %d attempts", sv.spec.PluginID, sv.restartCount)
				return
			}

			s.log("plugin %s exited, restarting in %s (attempt %d)", sv.spec.PluginID, delay, sv.restartCount)
			if s.onRestart != nil {
				s.onRestart(sv.spec.PluginID)
			}

			select {
			case <-runCtx.Done():
				return
			case <-time.After(delay):
			}
		}
	}()

	return nil
}

// Stop kills the supervised process for pluginID, if running, and removes
// it from supervision.
func (s *Supervisor) Stop(pluginID string) {
	s.mu.Lock()
	sv, ok := s.procs[pluginID]
	if ok {
		delete(s.procs, pluginID)
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	if sv.cancel != nil {
		sv.cancel()
	}
}

// StopAll tears down every supervised process and stops the health-log
// tick, used at daemon shutdown.
func (s *Supervisor) StopAll() {
	s.health.Stop()

	s.mu.Lock()
	ids := make([]string, 0, len(s.procs))
	for id := range s.procs {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.Stop(id)
	}
}

func streamStderr(pluginID string, r io.Reader, onStderr func(line string)) {
	if onStderr == nil {
		return
	}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		onStderr(scanner.Text())
	}
}

func (s *Supervisor) log(format string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Warn("supervisor", "msg", fmt.Sprintf(format, args...))
}

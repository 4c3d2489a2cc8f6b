// Package agent runs the external analysis tool as a child process and
// handles its lifecycle: prompt delivery, output collection, timeout with
// escalating termination, and on-demand aborts keyed by item identity.
package agent

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/reva-dev/reva/internal/log"
)

// DefaultTimeout bounds a single tool run when the config does not say.
const DefaultTimeout = 5 * time.Minute

// DefaultKillGrace is the pause between SIGTERM and SIGKILL. Empirical; the
// tool has no documented shutdown contract, so it is configurable.
const DefaultKillGrace = 3 * time.Second

// Config selects the tool invocation for one run.
type Config struct {
	Tool    string        // binary name or path of the analysis tool
	Model   string        // optional model override
	Timeout time.Duration // wall-clock bound for the run
}

// Output is the collected result of a completed tool run.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Executor spawns analysis-tool processes. It tracks running processes by
// item identity so an in-flight run can be aborted from another goroutine.
type Executor struct {
	killGrace time.Duration

	mu      sync.Mutex
	running map[string]*exec.Cmd
	aborted map[string]bool
}

// NewExecutor creates an executor with the given SIGTERM→SIGKILL grace
// period; zero selects the default.
func NewExecutor(killGrace time.Duration) *Executor {
	if killGrace <= 0 {
		killGrace = DefaultKillGrace
	}
	return &Executor{
		killGrace: killGrace,
		running:   make(map[string]*exec.Cmd),
		aborted:   make(map[string]bool),
	}
}

// Execute runs the analysis tool for id, streaming prompt to its stdin and
// collecting output. The prompt goes over stdin rather than argv to avoid
// argument-length and escaping limits. The run is bounded by cfg.Timeout;
// on expiry the process receives SIGTERM and, after the grace period,
// SIGKILL. Failures come back as *Error.
func (e *Executor) Execute(ctx context.Context, id, prompt string, cfg Config) (*Output, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	args := []string{"run", "--format", "json"}
	if cfg.Model != "" {
		args = append(args, "--model", cfg.Model)
	}

	cmd := exec.Command(cfg.Tool, args...)
	// Own process group so termination signals reach the tool's children.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Stdin = strings.NewReader(prompt)

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, &Error{
				Kind:        KindNotInstalled,
				Message:     cfg.Tool + " is not installed or not on PATH",
				Recoverable: false,
				Hint:        "install the analysis tool or set its path in the config",
			}
		}
		return nil, &Error{Kind: KindUnknown, Message: err.Error(), Recoverable: true}
	}

	e.register(id, cmd)
	defer e.unregister(id)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	waitErr, timedOut, cancelled := awaitCompletion(ctx, done, timer, func() { e.terminate(cmd) })
	if cancelled {
		log.Debug("tool run cancelled, terminated", "id", id)
		return nil, &Error{Kind: KindCancelled, Message: "review cancelled"}
	}
	if timedOut {
		log.Debug("tool run timed out, terminated", "id", id, "timeout", timeout)
	}

	out := &Output{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: cmd.ProcessState.ExitCode(),
	}

	if timedOut {
		return out, &Error{
			Kind:        KindTimeout,
			Message:     "analysis tool exceeded " + timeout.String(),
			Recoverable: true,
			Hint:        "retry, or raise the agent timeout for large diffs",
		}
	}
	if e.wasAborted(id) {
		return out, &Error{Kind: KindCancelled, Message: "review cancelled"}
	}
	if waitErr != nil {
		return out, classify(out.Stdout+"\n"+out.Stderr, out.ExitCode)
	}

	return out, nil
}

// awaitCompletion waits for the first of process exit, timeout, or context
// cancellation. The timer and the exit can become ready in the same instant;
// a finished run always wins that race so it is never misreported as a
// timeout. terminate is invoked only when the process must be torn down.
func awaitCompletion(ctx context.Context, done <-chan error, timer *time.Timer, terminate func()) (waitErr error, timedOut, cancelled bool) {
	select {
	case waitErr = <-done:
		return waitErr, false, false
	case <-timer.C:
		select {
		case waitErr = <-done:
			return waitErr, false, false
		default:
		}
		terminate()
		return <-done, true, false
	case <-ctx.Done():
		terminate()
		<-done
		return nil, false, true
	}
}

// Abort terminates the running process for id, if any, using the same
// SIGTERM→SIGKILL escalation. Idempotent: aborting an already-gone process
// reports false and does nothing.
func (e *Executor) Abort(id string) bool {
	e.mu.Lock()
	cmd, ok := e.running[id]
	if ok {
		e.aborted[id] = true
	}
	e.mu.Unlock()

	if !ok {
		return false
	}

	log.Info("aborting review process", "id", id)
	e.terminate(cmd)
	return true
}

// terminate asks the process group to exit and force-kills it after the
// grace period if it hasn't.
func (e *Executor) terminate(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pgid := -cmd.Process.Pid

	_ = syscall.Kill(pgid, syscall.SIGTERM)

	grace := time.NewTimer(e.killGrace)
	defer grace.Stop()
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-grace.C:
			_ = syscall.Kill(pgid, syscall.SIGKILL)
			return
		case <-tick.C:
			// Signal 0 checks for liveness without delivering anything.
			if err := syscall.Kill(pgid, syscall.Signal(0)); err != nil {
				return
			}
		}
	}
}

func (e *Executor) register(id string, cmd *exec.Cmd) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running[id] = cmd
	delete(e.aborted, id)
}

func (e *Executor) unregister(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.running, id)
}

func (e *Executor) wasAborted(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.aborted[id] {
		delete(e.aborted, id)
		return true
	}
	return false
}

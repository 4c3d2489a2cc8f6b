package agent

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

// writeTool writes an executable shell script standing in for the analysis
// tool. The script ignores the run/--format arguments it is invoked with.
func writeTool(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-tool")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExecutePassesPromptOverStdin(t *testing.T) {
	tool := writeTool(t, "cat")
	e := NewExecutor(time.Second)

	out, err := e.Execute(context.Background(), "acme/api#1", "review this diff", Config{
		Tool:    tool,
		Timeout: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Stdout != "review this diff" {
		t.Errorf("Stdout = %q", out.Stdout)
	}
	if out.ExitCode != 0 {
		t.Errorf("ExitCode = %d", out.ExitCode)
	}
}

func TestAwaitCompletionPrefersFinishedRun(t *testing.T) {
	// With an exit result already buffered and an already-fired timer, both
	// select branches are ready and the runtime picks one at random. A run
	// that finished must never be reported as a timeout, whichever branch
	// wins, and the process must not be terminated.
	for i := 0; i < 200; i++ {
		done := make(chan error, 1)
		done <- nil
		timer := time.NewTimer(0)
		time.Sleep(time.Millisecond)

		terminated := false
		waitErr, timedOut, cancelled := awaitCompletion(context.Background(), done, timer, func() { terminated = true })
		if timedOut {
			t.Fatal("finished run reported as timed out")
		}
		if cancelled || waitErr != nil || terminated {
			t.Fatalf("waitErr = %v, cancelled = %v, terminated = %v", waitErr, cancelled, terminated)
		}
		timer.Stop()
	}
}

func TestExecuteTimeout(t *testing.T) {
	tool := writeTool(t, "sleep 30")
	e := NewExecutor(500 * time.Millisecond)

	start := time.Now()
	_, err := e.Execute(context.Background(), "acme/api#1", "p", Config{
		Tool:    tool,
		Timeout: 100 * time.Millisecond,
	})
	elapsed := time.Since(start)

	ae, ok := err.(*Error)
	if !ok || ae.Kind != KindTimeout {
		t.Fatalf("err = %v, want timeout", err)
	}
	if !ae.Recoverable {
		t.Error("timeout should be recoverable")
	}
	// Termination must land within timeout + grace, with slack for CI.
	if elapsed > 5*time.Second {
		t.Errorf("took %s to terminate", elapsed)
	}
}

func TestExecuteNotInstalled(t *testing.T) {
	e := NewExecutor(0)

	_, err := e.Execute(context.Background(), "acme/api#1", "p", Config{
		Tool: filepath.Join(t.TempDir(), "missing-tool"),
	})

	ae, ok := err.(*Error)
	if !ok || ae.Kind != KindNotInstalled {
		t.Fatalf("err = %v, want not_installed", err)
	}
}

func TestExecuteClassifiesFailure(t *testing.T) {
	tool := writeTool(t, `echo "error: rate limit exceeded" >&2; exit 1`)
	e := NewExecutor(0)

	_, err := e.Execute(context.Background(), "acme/api#1", "p", Config{Tool: tool})

	ae, ok := err.(*Error)
	if !ok || ae.Kind != KindRateLimit {
		t.Fatalf("err = %v, want rate_limit", err)
	}
	if !ae.Recoverable || ae.Hint == "" {
		t.Errorf("classification incomplete: %+v", ae)
	}
}

func TestExecuteContextCancel(t *testing.T) {
	tool := writeTool(t, "sleep 30")
	e := NewExecutor(200 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err := e.Execute(ctx, "acme/api#1", "p", Config{Tool: tool, Timeout: time.Minute})

	if !IsCancelled(err) {
		t.Fatalf("err = %v, want cancelled", err)
	}
}

func TestAbort(t *testing.T) {
	tool := writeTool(t, "sleep 30")
	e := NewExecutor(200 * time.Millisecond)

	errCh := make(chan error, 1)
	go func() {
		_, err := e.Execute(context.Background(), "acme/api#1", "p", Config{Tool: tool, Timeout: time.Minute})
		errCh <- err
	}()

	// Let the process start before aborting.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if e.Abort("acme/api#1") {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("process never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case err := <-errCh:
		if !IsCancelled(err) {
			t.Fatalf("err = %v, want cancelled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Execute did not return after abort")
	}

	// Repeated aborts for an already-gone process are no-ops.
	if e.Abort("acme/api#1") {
		t.Error("Abort returned true for finished process")
	}
}

func TestClassifyTable(t *testing.T) {
	tests := []struct {
		output string
		want   Kind
	}{
		{"Invalid API key provided", KindAuth},
		{"You are not logged in", KindAuth},
		{"429 Too Many Requests", KindRateLimit},
		{"model not found: claude-nope", KindModelNotFound},
		{"prompt is too long: maximum context exceeded", KindContextTooLong},
		{"dial tcp: no such host", KindNetwork},
		{"segmentation fault", KindUnknown},
	}

	for _, tt := range tests {
		if got := classify(tt.output, 1); got.Kind != tt.want {
			t.Errorf("classify(%q) = %s, want %s", tt.output, got.Kind, tt.want)
		}
	}
}

func TestClassifyUnknownCarriesTail(t *testing.T) {
	got := classify("something went wrong in a new way", 3)
	if got.Kind != KindUnknown {
		t.Fatalf("Kind = %s", got.Kind)
	}
	if got.Message == "" || got.Hint == "" {
		t.Errorf("unknown error missing detail: %+v", got)
	}
}

func TestClassifyTailKeepsValidUTF8(t *testing.T) {
	// The tail cut lands inside a two-byte rune; the message must still be
	// valid UTF-8.
	combined := strings.Repeat("é", 300) + "x"
	got := classify(combined, 1)
	if got.Kind != KindUnknown {
		t.Fatalf("Kind = %s", got.Kind)
	}
	if !utf8.ValidString(got.Message) {
		t.Errorf("message contains invalid UTF-8: %q", got.Message)
	}
}

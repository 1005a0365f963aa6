package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"serving-optimizer/internal/core/domain"
	ports "serving-optimizer/internal/core/ports/output"
)

const (
	maxStderr = 2048
	waitDelay = 10 * time.Second
)

// ToolError is returned when an external tool exits unsuccessfully.
type ToolError struct {
	Program  string
	ExitCode int
	Stderr   string // last 2KB
	Err      error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s failed (exit code %d)", e.Program, e.ExitCode)
	if e.Err != nil && e.ExitCode < 0 {
		msg = fmt.Sprintf("%s failed: %v", e.Program, e.Err)
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ToolError) Unwrap() error { return e.Err }

func (e *ToolError) Is(target error) bool { return target == domain.ErrToolFailed }

// ExecRunner runs tools as child processes.
type ExecRunner struct {
	timeout time.Duration
}

func NewExecRunner(timeout time.Duration) *ExecRunner {
	return &ExecRunner{timeout: timeout}
}

func (r *ExecRunner) Run(ctx context.Context, inv ports.ToolInvocation) (*ports.ToolOutput, error) {
	if inv.Program == "" {
		return nil, domain.ErrToolNotConfigured
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, inv.Program, inv.Args...)
	cmd.Env = append(os.Environ(), inv.Env...)
	cmd.Dir = inv.Dir
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	out := &ports.ToolOutput{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	fields := log.Fields{
		"program":     inv.Program,
		"args":        strings.Join(inv.Args, " "),
		"duration_ms": out.Duration.Milliseconds(),
	}
	if err != nil {
		toolErr := &ToolError{Program: inv.Program, ExitCode: -1, Stderr: tail(out.Stderr, maxStderr), Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			toolErr.ExitCode = exitErr.ExitCode()
		}
		log.WithFields(fields).WithError(err).Warn("external tool failed")
		return out, toolErr
	}

	log.WithFields(fields).Debug("external tool finished")
	return out, nil
}

// tail keeps at most the last n bytes of s, starting on a rune boundary.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	i := len(s) - n
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return s[i:]
}

// Ensure interface compliance
var _ ports.CommandRunner = (*ExecRunner)(nil)

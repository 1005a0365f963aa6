package toolchain

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serving-optimizer/internal/core/domain"
	ports "serving-optimizer/internal/core/ports/output"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecRunner_Success(t *testing.T) {
	requireShell(t)
	r := NewExecRunner(10 * time.Second)

	out, err := r.Run(context.Background(), ports.ToolInvocation{
		Program: "sh",
		Args:    []string{"-c", `echo "$MODEL_NAME"; echo warn >&2`},
		Env:     []string{"MODEL_NAME=mnist"},
	})
	require.NoError(t, err)
	assert.Equal(t, "mnist\n", out.Stdout)
	assert.Equal(t, "warn\n", out.Stderr)
}

func TestExecRunner_ExitCode(t *testing.T) {
	requireShell(t)
	r := NewExecRunner(10 * time.Second)

	_, err := r.Run(context.Background(), ports.ToolInvocation{
		Program: "sh",
		Args:    []string{"-c", "echo broken graph >&2; exit 3"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrToolFailed)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, 3, toolErr.ExitCode)
	assert.Equal(t, "broken graph", toolErr.Stderr)
}

func TestExecRunner_Timeout(t *testing.T) {
	requireShell(t)
	r := NewExecRunner(50 * time.Millisecond)

	_, err := r.Run(context.Background(), ports.ToolInvocation{Program: "sh", Args: []string{"-c", "exec sleep 5"}})
	assert.ErrorIs(t, err, domain.ErrToolFailed)
}

func TestExecRunner_NotConfigured(t *testing.T) {
	_, err := NewExecRunner(0).Run(context.Background(), ports.ToolInvocation{})
	assert.ErrorIs(t, err, domain.ErrToolNotConfigured)
}

func TestTail(t *testing.T) {
	assert.Equal(t, "abc", tail("  abc \n", 10))
	assert.Equal(t, "cde", tail("abcde", 3))
	// a cut inside a multi-byte rune moves forward to the next rune
	assert.Equal(t, "é", tail("aéé", 3))
	assert.True(t, utf8.ValidString(tail(strings.Repeat("ü", 3000), maxStderr)))
}

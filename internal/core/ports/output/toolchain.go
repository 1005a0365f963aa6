package ports

import (
	"context"
	"time"

	"serving-optimizer/internal/core/domain"
)

// ToolInvocation is a single external process call
type ToolInvocation struct {
	Program string
	Args    []string
	Env     []string // KEY=VALUE, appended to the parent environment
	Dir     string
}

// ToolOutput is what an external process produced
type ToolOutput struct {
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// CommandRunner executes external processes
type CommandRunner interface {
	Run(ctx context.Context, inv ToolInvocation) (*ToolOutput, error)
}

// GraphToolchain wraps the framework's export and graph tools. Every method
// only marshals parameters; the work happens in the external binaries.
type GraphToolchain interface {
	// Export trains and exports a SavedModel into exportDir
	Export(ctx context.Context, modelName, exportDir string) error

	// Freeze turns the SavedModel variables into constants of a single GraphDef
	Freeze(ctx context.Context, savedModelDir, outputFile string) error

	// Optimize applies the configured graph transforms
	Optimize(ctx context.Context, inGraph, outGraph string) error

	// Summarize describes a GraphDef (node and op counts)
	Summarize(ctx context.Context, graphFile string) (*domain.GraphSummary, error)

	// Reexport wraps a GraphDef back into a SavedModel with fixed signatures
	Reexport(ctx context.Context, graphFile, exportDir string) error

	// CanSummarize reports whether a summarize tool is configured
	CanSummarize() bool
}

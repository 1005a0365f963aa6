package toolchain

import (
	"context"
	"fmt"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"serving-optimizer/internal/config"
	"serving-optimizer/internal/core/domain"
	ports "serving-optimizer/internal/core/ports/output"
)

// Toolchain marshals parameters for the framework's command-line tools.
type Toolchain struct {
	runner ports.CommandRunner
	cfg    config.ToolsConfig
}

// New creates a toolchain adapter around runner
func New(runner ports.CommandRunner, cfg config.ToolsConfig) *Toolchain {
	if len(cfg.Transforms) == 0 {
		cfg.Transforms = config.DefaultTransforms
	}
	return &Toolchain{runner: runner, cfg: cfg}
}

func (t *Toolchain) Export(ctx context.Context, modelName, exportDir string) error {
	if len(t.cfg.ExportCommand) == 0 {
		return fmt.Errorf("export: %w", domain.ErrToolNotConfigured)
	}
	inv := ports.ToolInvocation{
		Program: t.cfg.ExportCommand[0],
		Args:    t.cfg.ExportCommand[1:],
		Env: []string{
			"EXPORT_DIR=" + exportDir,
			"MODEL_NAME=" + modelName,
		},
	}
	if _, err := t.runner.Run(ctx, inv); err != nil {
		return fmt.Errorf("export model: %w", err)
	}
	return nil
}

func (t *Toolchain) Freeze(ctx context.Context, savedModelDir, outputFile string) error {
	inv := ports.ToolInvocation{
		Program: t.cfg.FreezeGraphBin,
		Args: []string{
			"--input_saved_model_dir=" + savedModelDir,
			"--output_graph=" + outputFile,
			"--output_node_names=" + t.cfg.OutputNode,
			"--saved_model_tags=serve",
			"--input_binary=false",
		},
	}
	if _, err := t.runner.Run(ctx, inv); err != nil {
		return fmt.Errorf("freeze graph: %w", err)
	}
	return nil
}

func (t *Toolchain) Optimize(ctx context.Context, inGraph, outGraph string) error {
	inv := ports.ToolInvocation{
		Program: t.cfg.TransformGraphBin,
		Args: []string{
			"--in_graph=" + inGraph,
			"--out_graph=" + outGraph,
			"--inputs=" + nodeName(t.cfg.InputTensor),
			"--outputs=" + t.cfg.OutputNode,
			"--transforms=" + strings.Join(t.cfg.Transforms, " "),
		},
	}
	log.WithFields(log.Fields{
		"in_graph":   inGraph,
		"transforms": len(t.cfg.Transforms),
	}).Debug("applying graph transforms")

	if _, err := t.runner.Run(ctx, inv); err != nil {
		return fmt.Errorf("transform graph: %w", err)
	}
	return nil
}

func (t *Toolchain) Summarize(ctx context.Context, graphFile string) (*domain.GraphSummary, error) {
	if t.cfg.SummarizeGraphBin == "" {
		return nil, fmt.Errorf("summarize graph: %w", domain.ErrToolNotConfigured)
	}
	out, err := t.runner.Run(ctx, ports.ToolInvocation{
		Program: t.cfg.SummarizeGraphBin,
		Args:    []string{"--in_graph=" + graphFile},
	})
	if err != nil {
		return nil, fmt.Errorf("summarize graph: %w", err)
	}
	// summarize_graph writes to stdout or stderr depending on the build
	return ParseGraphSummary(out.Stdout + "\n" + out.Stderr)
}

func (t *Toolchain) Reexport(ctx context.Context, graphFile, exportDir string) error {
	if len(t.cfg.ReexportCommand) == 0 {
		return fmt.Errorf("reexport: %w", domain.ErrToolNotConfigured)
	}
	args := append([]string{}, t.cfg.ReexportCommand[1:]...)
	args = append(args,
		"--graph_file="+graphFile,
		"--export_dir="+exportDir,
		"--inputs="+nodeName(t.cfg.InputTensor)+"="+t.cfg.InputTensor,
		"--outputs="+joinTensorMap(t.cfg.OutputTensors),
	)
	inv := ports.ToolInvocation{
		Program: t.cfg.ReexportCommand[0],
		Args:    args,
	}
	if _, err := t.runner.Run(ctx, inv); err != nil {
		return fmt.Errorf("reexport saved model: %w", err)
	}
	return nil
}

func (t *Toolchain) CanSummarize() bool {
	return t.cfg.SummarizeGraphBin != ""
}

// nodeName strips the output index from a tensor name ("images:0" -> "images").
func nodeName(tensor string) string {
	if i := strings.LastIndex(tensor, ":"); i > 0 {
		return tensor[:i]
	}
	return tensor
}

func joinTensorMap(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+m[k])
	}
	return strings.Join(pairs, ",")
}

// Ensure interface compliance
var _ ports.GraphToolchain = (*Toolchain)(nil)

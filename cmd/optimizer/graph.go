package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"serving-optimizer/internal/app"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Run the configured trainer to export a SavedModel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				art, err := a.Graphs.Export(ctx, opts.cfg.Serving.ModelName)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), art.Path)
				return nil
			})
		},
	}
}

func newFreezeCmd(opts *rootOptions) *cobra.Command {
	var savedModel, output string

	cmd := &cobra.Command{
		Use:   "freeze",
		Short: "Freeze a SavedModel into a single GraphDef with constant weights",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				name := opts.cfg.Serving.ModelName
				in := savedModel
				if in == "" {
					resolved, err := a.Layout.ResolveSavedModel(a.Graphs.ExportDir(name))
					if err != nil {
						return err
					}
					in = resolved
				}
				out := output
				if out == "" {
					out = a.Graphs.FrozenGraphPath(name)
				}

				art, err := a.Graphs.Freeze(ctx, in, out)
				if err != nil {
					return err
				}
				printArtifact(cmd.OutOrStdout(), art)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&savedModel, "saved-model", "", "SavedModel directory (default: newest export of the model)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "frozen graph file (default: {work}/{model}/frozen_model.pb)")
	return cmd
}

func newOptimizeCmd(opts *rootOptions) *cobra.Command {
	var input, output string

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Apply the configured graph transforms to a frozen graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				name := opts.cfg.Serving.ModelName
				if input == "" {
					input = a.Graphs.FrozenGraphPath(name)
				}
				if output == "" {
					output = a.Graphs.OptimizedGraphPath(name)
				}

				art, err := a.Graphs.Optimize(ctx, input, output)
				if err != nil {
					return err
				}
				printArtifact(cmd.OutOrStdout(), art)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "frozen graph file (default: {work}/{model}/frozen_model.pb)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "optimized graph file (default: {work}/{model}/optimized_model.pb)")
	return cmd
}

func newDescribeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "describe GRAPH_FILE",
		Short: "Summarize the inputs, outputs and operations of a graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				summary, err := a.Graphs.Describe(ctx, args[0])
				if err != nil {
					return err
				}
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				defer enc.Close()
				return enc.Encode(summary)
			})
		},
	}
}

func newReexportCmd(opts *rootOptions) *cobra.Command {
	var graph string
	var version int64

	cmd := &cobra.Command{
		Use:   "reexport",
		Short: "Wrap an optimized graph as a SavedModel under {base}/{model}/{version}",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				name := opts.cfg.Serving.ModelName
				if graph == "" {
					graph = a.Graphs.OptimizedGraphPath(name)
				}
				v := version
				if v == 0 {
					next, err := a.Versions.Next(ctx, name)
					if err != nil {
						return err
					}
					v = next
				}

				art, err := a.Graphs.Reexport(ctx, graph, a.Layout.VersionDir(name, v))
				if err != nil {
					return err
				}
				printArtifact(cmd.OutOrStdout(), art)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&graph, "graph", "g", "", "optimized graph file (default: {work}/{model}/optimized_model.pb)")
	cmd.Flags().Int64Var(&version, "version", 0, "target version (default: highest existing plus one)")
	return cmd
}

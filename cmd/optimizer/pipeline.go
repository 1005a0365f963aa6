package main

import (
	"context"

	"github.com/spf13/cobra"

	"serving-optimizer/internal/app"
	"serving-optimizer/internal/core/services"
)

func newPipelineCmd(opts *rootOptions) *cobra.Command {
	var (
		version    int64
		savedModel string
		publish    bool
		labels     map[string]string
	)

	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Export, freeze, optimize and re-export a model into the next version",
		Long: `pipeline runs every stage in order and stops at the first failure. The
run is recorded in the run store and as run.yaml next to the intermediate
graphs. With --saved-model the export stage is skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				run, err := a.Pipeline.Run(ctx, services.RunRequest{
					ModelName:     opts.cfg.Serving.ModelName,
					Version:       version,
					SavedModelDir: savedModel,
					Publish:       publish,
					Labels:        labels,
				})
				if run != nil {
					printRun(cmd.OutOrStdout(), run)
				}
				return err
			})
		},
	}
	cmd.Flags().Int64Var(&version, "version", 0, "target version (default: highest existing plus one)")
	cmd.Flags().StringVar(&savedModel, "saved-model", "", "freeze this SavedModel instead of exporting")
	cmd.Flags().BoolVar(&publish, "publish", false, "upload the new version to the configured bucket")
	cmd.Flags().StringToStringVar(&labels, "label", nil, "label to attach to the run (key=value, repeatable)")
	return cmd
}

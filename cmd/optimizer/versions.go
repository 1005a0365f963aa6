package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"serving-optimizer/internal/app"
	"serving-optimizer/internal/core/domain"
	ports "serving-optimizer/internal/core/ports/output"
)

func newVersionsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "Inspect and publish the numbered versions under {base}/{model}",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List existing versions",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
					versions, err := a.Versions.List(ctx, opts.cfg.Serving.ModelName)
					if err != nil {
						return err
					}
					tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "VERSION\tSIZE\tPATH")
					for _, v := range versions {
						fmt.Fprintf(tw, "%d\t%s\t%s\n", v.Version, humanBytes(v.SizeBytes), v.Path)
					}
					return tw.Flush()
				})
			},
		},
		&cobra.Command{
			Use:   "next",
			Short: "Print the version the next pipeline run will write",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
					next, err := a.Versions.Next(ctx, opts.cfg.Serving.ModelName)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), next)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "publish VERSION",
			Short: "Upload a version directory to the configured bucket",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				version, err := domain.ParseVersion(args[0])
				if err != nil {
					return err
				}
				return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
					uri, err := a.Versions.Publish(ctx, opts.cfg.Serving.ModelName, version)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), uri)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "watch",
			Short: "Print versions as they appear and disappear until interrupted",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
					events := make(chan ports.VersionEvent, 16)
					errc := make(chan error, 1)
					go func() {
						errc <- a.Versions.Watch(ctx, opts.cfg.Serving.ModelName, events)
					}()

					for {
						select {
						case ev := <-events:
							fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", ev.Op, ev.Version)
						case err := <-errc:
							if ctx.Err() != nil {
								return nil
							}
							return err
						}
					}
				})
			},
		},
	)
	return cmd
}

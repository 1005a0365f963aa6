package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"serving-optimizer/internal/app"
	"serving-optimizer/internal/core/domain"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run tensorflow_model_server on the model base path until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				name := opts.cfg.Serving.ModelName
				if err := a.Serving.Start(ctx, name); err != nil {
					return err
				}

				statuses, err := a.Serving.Status(ctx, name)
				if err == nil {
					for _, st := range statuses {
						fmt.Fprintf(cmd.OutOrStdout(), "version %s\t%s\n", st.Version, st.State)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "serving %s on REST :%d, gRPC :%d\n",
					name, opts.cfg.Serving.RESTPort, opts.cfg.Serving.GRPCPort)

				<-ctx.Done()
				log.Info("stopping model server")

				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := a.Serving.Stop(stopCtx); err != nil && !errors.Is(err, domain.ErrServerNotRunning) {
					return err
				}
				return nil
			})
		},
	}
}

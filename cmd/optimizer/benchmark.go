package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"serving-optimizer/internal/app"
	"serving-optimizer/internal/core/domain"
	"serving-optimizer/internal/core/services"
)

func newBenchmarkCmd(opts *rootOptions) *cobra.Command {
	var (
		instancesFile string
		version       int64
		requests      int
		warmup        int
		rps           float64
		signature     string
		outputKey     string
		runID         string
	)

	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Measure REST predict latency of the running model server",
		Long: `benchmark posts the instances of --instances to the predict endpoint the
given number of times, one request after another, and reports latency
percentiles and throughput. If the file carries "labels", the accuracy of the
last response is reported too. Any failed request aborts the benchmark.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(instancesFile)
			if err != nil {
				return fmt.Errorf("read instances: %w", err)
			}
			set, err := domain.ParseInstanceSet(data)
			if err != nil {
				return err
			}

			req := services.BenchmarkRequest{
				ModelName:     opts.cfg.Serving.ModelName,
				Version:       version,
				Requests:      opts.cfg.Benchmark.Requests,
				Warmup:        opts.cfg.Benchmark.Warmup,
				Rate:          opts.cfg.Benchmark.Rate,
				SignatureName: opts.cfg.Benchmark.SignatureName,
				OutputKey:     opts.cfg.Benchmark.OutputKey,
				Instances:     set.Instances,
				ClassLabels:   set.Labels,
			}
			flags := cmd.Flags()
			if flags.Changed("requests") {
				req.Requests = requests
			}
			if flags.Changed("warmup") {
				req.Warmup = warmup
			}
			if flags.Changed("rate") {
				req.Rate = rps
			}
			if flags.Changed("signature") {
				req.SignatureName = signature
			}
			if flags.Changed("output-key") {
				req.OutputKey = outputKey
			}
			if runID != "" {
				id, err := uuid.Parse(runID)
				if err != nil {
					return fmt.Errorf("invalid --run-id: %w", err)
				}
				req.PipelineRunID = &id
			}

			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				result, err := a.Benchmark.Run(ctx, req)
				if err != nil {
					return err
				}
				printBenchmark(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&instancesFile, "instances", "f", "", `JSON file {"instances": [...], "labels": [...]}`)
	cmd.Flags().Int64Var(&version, "version", 0, "model version to target (default: latest loaded)")
	cmd.Flags().IntVarP(&requests, "requests", "n", 0, "number of measured requests (default from BENCHMARK_REQUESTS)")
	cmd.Flags().IntVar(&warmup, "warmup", 0, "unmeasured requests sent first")
	cmd.Flags().Float64Var(&rps, "rate", 0, "maximum measured requests per second (0: back to back)")
	cmd.Flags().StringVar(&signature, "signature", "", "signature_name of the predict request")
	cmd.Flags().StringVar(&outputKey, "output-key", "", "prediction output holding the class")
	cmd.Flags().StringVar(&runID, "run-id", "", "pipeline run that produced the measured version")
	_ = cmd.MarkFlagRequired("instances")
	return cmd
}

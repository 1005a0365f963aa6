package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"serving-optimizer/internal/core/domain"
)

func printArtifact(w io.Writer, art *domain.Artifact) {
	fmt.Fprintf(w, "%s\t%s\t%s\n", art.Kind, humanBytes(art.SizeBytes), art.Path)
}

func printRun(w io.Writer, run *domain.PipelineRun) {
	fmt.Fprintf(w, "run %s  model %s  version %d  %s\n", run.ID, run.ModelName, run.Version, run.Status)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tSTATUS\tDURATION\tSIZE\tARTIFACT")
	for _, s := range run.Stages {
		size, path := "-", "-"
		if s.Artifact != nil {
			size, path = humanBytes(s.Artifact.SizeBytes), s.Artifact.Path
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.Name, s.Status, s.Duration().Round(time.Millisecond), size, path)
	}
	tw.Flush()

	if ratio := run.SizeRatio(); ratio > 0 {
		fmt.Fprintf(w, "optimized/frozen size: %.3f\n", ratio)
	}
	if run.FrozenSummary != nil && run.OptimizedSummary != nil {
		fmt.Fprintf(w, "nodes: %d -> %d\n", run.FrozenSummary.NodeCount, run.OptimizedSummary.NodeCount)
	}
	if run.PublishedURI != "" {
		fmt.Fprintf(w, "published: %s\n", run.PublishedURI)
	}
	if run.LastError != "" {
		fmt.Fprintf(w, "error: %s\n", run.LastError)
	}
}

func printBenchmark(w io.Writer, b *domain.BenchmarkResult) {
	l := b.Latency
	fmt.Fprintf(w, "endpoint:   %s\n", b.Endpoint)
	fmt.Fprintf(w, "requests:   %d x %d instances in %s (%.1f req/s)\n",
		b.Requests, b.BatchSize, b.Elapsed.Round(time.Millisecond), b.Throughput())
	fmt.Fprintf(w, "latency:    mean %s  min %s  max %s\n", l.Mean, l.Min, l.Max)
	fmt.Fprintf(w, "percentile: p50 %s  p95 %s  p99 %s\n", l.P50, l.P95, l.P99)
	if b.Accuracy != nil {
		fmt.Fprintf(w, "accuracy:   %.4f\n", *b.Accuracy)
	}
	fmt.Fprintf(w, "id:         %s\n", b.ID)
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

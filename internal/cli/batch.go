package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/codemeta2mp/internal/pipeline"
	"github.com/ppiankov/codemeta2mp/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	fromFile     string
	batchSubmit  bool
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch [source|glob]...",
	Short: "Convert many CodeMeta documents in parallel",
	Long: `Batch converts many sources concurrently:
- Sources are paths, globs (** allowed), http(s) URLs, or lines of --from-file
- Conversions run on a worker pool (--concurrency)
- Remote fetches and submissions share a per-host rate limit
- Records are written to --output-dir (one file per record) or stdout,
  in input order

A failing source is reported and counted; the remaining sources still run.

Example:
  codemeta2mp batch 'tools/**/codemeta.json' --output-dir ./records
  codemeta2mp batch --from-file sources.txt --concurrency 8
  codemeta2mp batch 'tools/**/codemeta.json' --submit`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default: concurrency.workers)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "", "output directory for records (default: stdout)")
	batchCmd.Flags().StringVar(&fromFile, "from-file", "", "read sources from this file, one per line")
	batchCmd.Flags().BoolVar(&batchSubmit, "submit", false, "submit every converted record to the Marketplace")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
}

func runBatch(cmd *cobra.Command, args []string) error {
	sources, err := worker.ExpandSources(args)
	if err != nil {
		return err
	}
	if fromFile != "" {
		listed, err := worker.ReadSourcesFromFile(fromFile)
		if err != nil {
			return fmt.Errorf("read sources: %w", err)
		}
		sources = append(sources, listed...)
	}
	if len(sources) == 0 {
		return fmt.Errorf("no sources given")
	}

	s, err := newSession(cmd, batchSubmit)
	if err != nil {
		return err
	}
	defer s.finish()

	workers := concurrency
	if workers <= 0 {
		workers = s.cfg.Concurrency.Workers
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "Converting %d sources with %d workers\n", len(sources), workers)

	processor := worker.NewBatchProcessor(s.pipeline, workers)
	results := processor.ProcessSources(ctx, sources, batchSubmit)

	var (
		failures int
		firstErr error
		records  int
		warnings int
	)
	for _, r := range results {
		if r.Result != nil {
			records += len(r.Result.Conversions)
			warnings += r.Result.WarningCount()
			if err := emit(cmd, s, r.Result); err != nil {
				return err
			}
		}
		if r.Error != nil {
			failures++
			if firstErr == nil {
				firstErr = r.Error
			}
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", r.Source, r.Error)
		}
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Sources:   %d\n", len(results))
	fmt.Fprintf(os.Stderr, "  Records:   %d\n", records)
	fmt.Fprintf(os.Stderr, "  Warnings:  %d\n", warnings)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failures)
	if outputDir != "" {
		fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d sources failed: %w", failures, len(results), firstErr)
	}
	return nil
}

// emit writes the records of one source to stdout or the output directory
func emit(cmd *cobra.Command, s *session, result *pipeline.Result) error {
	if outputDir == "" {
		return s.renderer.RenderRecords(cmd.OutOrStdout(), result.Conversions)
	}

	paths, err := s.renderer.RenderJSON(result, outputDir, "")
	if err != nil {
		return err
	}
	for _, path := range paths {
		fmt.Fprintf(os.Stderr, "✓ %s -> %s\n", result.Source, path)
	}
	return nil
}

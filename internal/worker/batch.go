package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ppiankov/codemeta2mp/internal/pipeline"
)

// Processor converts (and optionally submits) one source
type Processor interface {
	Process(ctx context.Context, source string, submit bool) (*pipeline.Result, error)
}

// SourceJob converts one source of a batch
type SourceJob struct {
	Index     int
	Source    string
	Submit    bool
	Processor Processor
}

// Execute runs the conversion
func (j *SourceJob) Execute(ctx context.Context) Result {
	result, err := j.Processor.Process(ctx, j.Source, j.Submit)
	return &SourceResult{
		Index:  j.Index,
		Source: j.Source,
		Result: result,
		Error:  err,
	}
}

// SourceResult is the outcome of one SourceJob
type SourceResult struct {
	Index  int
	Source string
	Result *pipeline.Result // May be set alongside Error when submission failed
	Error  error
}

// GetError returns the conversion or submission error
func (r *SourceResult) GetError() error {
	return r.Error
}

// BatchProcessor converts many sources concurrently
type BatchProcessor struct {
	processor   Processor
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(processor Processor, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		processor:   processor,
		concurrency: concurrency,
	}
}

// ProcessSources runs every source and returns the results in input order.
// A failing source does not stop the others.
func (b *BatchProcessor) ProcessSources(ctx context.Context, sources []string, submit bool) []*SourceResult {
	if len(sources) == 0 {
		return []*SourceResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	collected := make(chan []*SourceResult, 1)
	go func() {
		var out []*SourceResult
		for r := range pool.Results() {
			out = append(out, r.(*SourceResult))
		}
		collected <- out
	}()

	for i, source := range sources {
		job := &SourceJob{Index: i, Source: source, Submit: submit, Processor: b.processor}
		if !pool.Submit(job) {
			break
		}
	}
	pool.Close()
	results := <-collected

	// Sources never started because the context ended
	seen := make(map[int]bool, len(results))
	for _, r := range results {
		seen[r.Index] = true
	}
	for i, source := range sources {
		if !seen[i] {
			err := ctx.Err()
			if err == nil {
				err = fmt.Errorf("%s: not processed", source)
			}
			results = append(results, &SourceResult{Index: i, Source: source, Error: err})
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })
	return results
}

// ExpandSources resolves glob patterns (including **) to files. URLs and "-"
// pass through unchanged; a pattern matching nothing is an error.
// The result is deduplicated and keeps the order of the patterns.
func ExpandSources(patterns []string) ([]string, error) {
	var sources []string
	seen := make(map[string]bool)
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			sources = append(sources, s)
		}
	}

	for _, pattern := range patterns {
		if pattern == pipeline.StdinSource || pipeline.IsRemote(pattern) {
			add(pattern)
			continue
		}
		if !strings.ContainsAny(pattern, "*?[{") {
			add(pattern)
			continue
		}

		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("expand %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("expand %q: no matching files", pattern)
		}
		sort.Strings(matches)
		for _, m := range matches {
			add(m)
		}
	}
	return sources, nil
}

// ReadSourcesFromFile reads sources (paths or URLs) from a file, one per line
func ReadSourcesFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var sources []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			sources = append(sources, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return sources, nil
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ppiankov/codemeta2mp/internal/cache"
	"github.com/ppiankov/codemeta2mp/internal/jsonld"
	"github.com/ppiankov/codemeta2mp/internal/mapping"
	"github.com/ppiankov/codemeta2mp/internal/marketplace"
	"github.com/ppiankov/codemeta2mp/internal/metrics"
	"github.com/ppiankov/codemeta2mp/internal/model"
)

// Submitter sends tool records to the Marketplace
type Submitter interface {
	Create(ctx context.Context, rec *model.ToolRecord) (*marketplace.Item, error)
	Update(ctx context.Context, persistentID string, rec *model.ToolRecord) (*marketplace.Item, error)
}

// LinkChecker reports the URLs of a conversion that do not answer
type LinkChecker interface {
	Warnings(ctx context.Context, conv *model.Conversion) []model.Warning
}

// Pipeline orchestrates load, convert and submit for one source
type Pipeline struct {
	loader    *Loader
	submitter Submitter
	links     LinkChecker
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Option configures a Pipeline
type Option func(*pipelineOptions)

type pipelineOptions struct {
	store     cache.Cache
	stdin     io.Reader
	submitter Submitter
	links     LinkChecker
	limiter   RateLimiter
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// WithStore caches fetched remote sources in store
func WithStore(store cache.Cache) Option {
	return func(o *pipelineOptions) { o.store = store }
}

// WithStdin sets the reader used for the "-" source
func WithStdin(r io.Reader) Option {
	return func(o *pipelineOptions) { o.stdin = r }
}

// WithSubmitter enables Submit
func WithSubmitter(s Submitter) Option {
	return func(o *pipelineOptions) { o.submitter = s }
}

// WithLinkChecker adds unreachable-url warnings for dead record links
func WithLinkChecker(c LinkChecker) Option {
	return func(o *pipelineOptions) { o.links = c }
}

// WithLimiter throttles remote fetches
func WithLimiter(l RateLimiter) Option {
	return func(o *pipelineOptions) { o.limiter = l }
}

// WithMetrics records conversions and submissions in m
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *pipelineOptions) { o.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(o *pipelineOptions) { o.logger = l }
}

// NewPipeline creates a new pipeline with the given configuration
func NewPipeline(cfg *model.Config, opts ...Option) *Pipeline {
	o := &pipelineOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if o.store == nil {
		o.store = NewStore(cfg.Cache, o.logger)
	}

	fetcher := NewFetcher(cfg.HTTP)
	if o.limiter != nil {
		fetcher.SetLimiter(o.limiter)
	}

	return &Pipeline{
		loader:    NewLoader(fetcher, o.store, o.stdin),
		submitter: o.submitter,
		links:     o.links,
		metrics:   o.metrics,
		logger:    o.logger,
	}
}

// NewStore builds the source cache described by cfg. A disk directory that
// cannot be resolved leaves only the memory layer.
func NewStore(cfg model.CacheConfig, logger *slog.Logger) cache.Cache {
	if !cfg.Enabled {
		return cache.Nop{}
	}
	dir := cfg.Dir
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			logger.Debug("No user cache directory, using memory cache only", slog.Any("error", err))
			return cache.NewMemoryCache(cfg.MemoryTTL, 10*time.Minute)
		}
		dir = filepath.Join(base, "codemeta2mp")
	}
	return cache.NewLayeredCache(cfg.MemoryTTL, dir, cfg.DiskTTL)
}

// Result is everything produced for one source
type Result struct {
	Source      string              `json:"source"`
	Cached      bool                `json:"cached,omitempty"`
	Conversions []*model.Conversion `json:"conversions"`
	Submissions []*Submission       `json:"submissions,omitempty"`
}

// Submission is one accepted Marketplace call
type Submission struct {
	Method string            `json:"method"`
	Item   *marketplace.Item `json:"item"`
}

// WarningCount returns the number of warnings across all conversions
func (r *Result) WarningCount() int {
	n := 0
	for _, c := range r.Conversions {
		n += len(c.Warnings)
	}
	return n
}

// Convert loads a source and maps every software node it describes
func (p *Pipeline) Convert(ctx context.Context, name string) (*Result, error) {
	start := time.Now()
	result, err := p.convert(ctx, name)

	warnings := map[string]int{}
	if result != nil {
		for _, conv := range result.Conversions {
			for _, w := range conv.Warnings {
				warnings[string(w.Code)]++
			}
		}
	}
	p.metrics.ObserveConversion(err, warnings, time.Since(start))
	return result, err
}

func (p *Pipeline) convert(ctx context.Context, name string) (*Result, error) {
	src, err := p.loader.Load(ctx, name)
	if err != nil {
		return nil, err
	}

	doc, err := jsonld.ParseBytes(src.Data)
	if err != nil {
		return nil, &model.ParseError{Source: name, Err: err}
	}

	conversions, err := mapping.ConvertDocument(doc)
	if err != nil {
		if errors.Is(err, jsonld.ErrNoSoftware) {
			return nil, &model.ParseError{Source: name, Err: err}
		}
		return nil, fmt.Errorf("convert %s: %w", name, err)
	}

	for _, conv := range conversions {
		if p.links != nil {
			conv.Warnings = append(conv.Warnings, p.links.Warnings(ctx, conv)...)
		}
		for _, w := range conv.Warnings {
			p.logger.Warn(w.Message,
				slog.String("source", name),
				slog.String("code", string(w.Code)),
				slog.String("field", w.Field))
		}
	}

	p.logger.Debug("Converted source",
		slog.String("source", name),
		slog.Bool("cached", src.Cached),
		slog.Int("records", len(conversions)))

	return &Result{Source: name, Cached: src.Cached, Conversions: conversions}, nil
}

// Submit sends every converted record to the Marketplace. With a persistent ID
// the source must describe exactly one tool, which replaces the existing item.
func (p *Pipeline) Submit(ctx context.Context, result *Result, persistentID string) error {
	if p.submitter == nil {
		return errors.New("submission is not configured")
	}
	if persistentID != "" && len(result.Conversions) != 1 {
		return fmt.Errorf("update %s: source describes %d tools, expected one", persistentID, len(result.Conversions))
	}

	for _, conv := range result.Conversions {
		if err := conv.Record.Validate(); err != nil {
			return err
		}

		method := http.MethodPost
		if persistentID != "" {
			method = http.MethodPut
		}

		start := time.Now()
		var item *marketplace.Item
		var err error
		if persistentID != "" {
			item, err = p.submitter.Update(ctx, persistentID, conv.Record)
		} else {
			item, err = p.submitter.Create(ctx, conv.Record)
		}
		p.metrics.ObserveSubmission(method, err, time.Since(start))
		if err != nil {
			return err
		}

		p.logger.Info("Submitted tool",
			slog.String("source", result.Source),
			slog.String("label", conv.Record.Label),
			slog.String("persistent_id", item.PersistentID))
		result.Submissions = append(result.Submissions, &Submission{Method: method, Item: item})
	}
	return nil
}

// Process converts a source and, when submit is set, submits the records
func (p *Pipeline) Process(ctx context.Context, name string, submit bool) (*Result, error) {
	result, err := p.Convert(ctx, name)
	if err != nil || !submit {
		return result, err
	}
	return result, p.Submit(ctx, result, "")
}

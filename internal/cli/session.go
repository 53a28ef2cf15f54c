package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/codemeta2mp/internal/marketplace"
	"github.com/ppiankov/codemeta2mp/internal/metrics"
	"github.com/ppiankov/codemeta2mp/internal/model"
	"github.com/ppiankov/codemeta2mp/internal/pipeline"
	"github.com/ppiankov/codemeta2mp/internal/validate"
	"github.com/ppiankov/codemeta2mp/internal/worker"
)

// session bundles what every command needs to run the pipeline
type session struct {
	cfg      *model.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	pipeline *pipeline.Pipeline
	renderer *pipeline.Renderer
}

// newSession loads the configuration and wires the pipeline. With submit set,
// a Marketplace client sharing the fetch rate limiter is attached.
func newSession(cmd *cobra.Command, submit bool) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg.Output.Verbose)
	m := metrics.New()

	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(m),
		pipeline.WithLimiter(limiter),
		pipeline.WithStdin(cmd.InOrStdin()),
	}
	if cfg.Links.Check {
		opts = append(opts, pipeline.WithLinkChecker(validate.NewChecker(cfg.HTTP, cfg.Links.Workers, limiter)))
	}

	if submit {
		client, err := marketplace.NewClient(cfg.Marketplace, cfg.HTTP,
			marketplace.WithLimiter(limiter),
			marketplace.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		opts = append(opts, pipeline.WithSubmitter(client))
		logger.Debug("Submitting to marketplace",
			slog.String("base_url", cfg.Marketplace.BaseURL),
			slog.String("auth", string(cfg.Marketplace.Auth)))
	}

	return &session{
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		pipeline: pipeline.NewPipeline(cfg, opts...),
		renderer: pipeline.NewRenderer(cfg.Output.Pretty),
	}, nil
}

// finish writes the metrics textfile when one is configured
func (s *session) finish() {
	if err := s.metrics.WriteTextfile(s.cfg.Metrics.TextfilePath); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

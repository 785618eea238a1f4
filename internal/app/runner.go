package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/samvad-hq/soupchef/internal/config"
	"github.com/samvad-hq/soupchef/internal/crawler"
	"github.com/samvad-hq/soupchef/internal/domain"
	"github.com/samvad-hq/soupchef/internal/fetcher"
	"github.com/samvad-hq/soupchef/internal/logger"
	"github.com/samvad-hq/soupchef/internal/metrics"
	"github.com/samvad-hq/soupchef/internal/output"
	"github.com/samvad-hq/soupchef/internal/ratelimit"
	"github.com/samvad-hq/soupchef/internal/resolver"
	"github.com/samvad-hq/soupchef/internal/storage"
	"github.com/samvad-hq/soupchef/pkg/httpclient"
	"github.com/samvad-hq/soupchef/pkg/publishers"
	"github.com/samvad-hq/soupchef/pkg/recipesite"
)

// Runner is a single soupchef invocation: it owns the index, the publishers
// and the crawl controller for exactly one pass over the resolved input.
type Runner struct {
	cfg        *config.Config
	runID      string
	index      *storage.Index
	fanout     *publishers.Fanout
	metrics    *metrics.Run
	source     resolver.Source
	controller *crawler.Controller
	log        logger.Logger
}

// NewRunner validates the environment and wires all components. Any error
// returned here happens before the first request.
func NewRunner(ctx context.Context, cfg *config.Config, log logger.Logger) (*Runner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	log = logger.Ensure(log)
	if ctx == nil {
		ctx = context.Background()
	}

	if err := output.ProbeWritable(cfg.OutFolder); err != nil {
		return nil, err
	}

	indexPath := cfg.ResolvedIndexPath()
	index, err := storage.Open(cfg.IndexType, indexPath)
	if err != nil {
		return nil, fmt.Errorf("open index %s (repair or delete it to continue): %w", indexPath, err)
	}
	log.InfoObj("index loaded", "index_meta", map[string]any{
		"type":    cfg.IndexType,
		"path":    indexPath,
		"entries": index.Len(),
	})

	r := &Runner{
		cfg:     cfg,
		runID:   uuid.NewString(),
		index:   index,
		metrics: metrics.New(cfg.Mode.String()),
		log:     log,
	}
	if err := r.wire(ctx); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (r *Runner) wire(ctx context.Context) error {
	cfg := r.cfg

	clientOpts := httpclient.Options{
		Timeout:       cfg.HTTPTimeout,
		Retries:       cfg.HTTPRetries,
		MaxRPS:        cfg.MaxRPS,
		RandomHeaders: true,
		Debug:         cfg.Verbosity() == config.VerbosityDebug,
	}
	if logger.S != nil {
		clientOpts.Logger = logger.S
	}
	fetch := fetcher.New(httpclient.New(clientOpts), ratelimit.NewSleeper(cfg.RateInterval), r.log)
	fetch.Observe = r.metrics.ObserveRequest

	site := recipesite.New(fetch, recipesite.Options{
		BaseURL:    cfg.BaseURL,
		APIBaseURL: cfg.APIBaseURL,
		Comments:   cfg.Comments,
	}, r.log)

	src, err := resolver.New(cfg.Request(), site, r.index, r.log)
	if err != nil {
		return err
	}
	r.source = src

	fanout, err := publishers.Open(ctx, cfg.PublishersFile, r.log)
	if err != nil {
		return fmt.Errorf("load publishers: %w", err)
	}
	r.fanout = fanout

	writer := output.NewWriter(output.PathResolver{
		Root:   cfg.OutFolder,
		Dirs:   cfg.DirLayout,
		Files:  cfg.FileNaming,
		Format: cfg.OutputFormat,
	})

	r.controller = crawler.New(crawler.Deps{
		Index:     r.index,
		Site:      site,
		Writer:    writer,
		Publisher: fanout,
		Metrics:   r.metrics,
		Probe:     func() error { return output.ProbeWritable(cfg.OutFolder) },
		Log:       r.log,
	}, crawler.Options{
		RecursionDepth: cfg.RecursionDepth,
		Force:          cfg.Force || cfg.Mode == domain.ModeRefresh,
		IndexOnly:      cfg.IndexOnly,
		RunID:          r.runID,
	})
	return nil
}

// RunID identifies this invocation in logs and events.
func (r *Runner) RunID() string { return r.runID }

// Run performs the crawl once and releases all resources.
func (r *Runner) Run(ctx context.Context) error {
	if r == nil || r.controller == nil {
		return fmt.Errorf("runner is not initialized")
	}
	defer r.Close()

	r.log.InfoObj("run starting", "run", map[string]any{
		"run_id":     r.runID,
		"mode":       r.cfg.Mode.String(),
		"force":      r.cfg.Force,
		"index_only": r.cfg.IndexOnly,
		"recursion":  r.cfg.RecursionDepth,
		"rate_limit": r.cfg.RateInterval.String(),
	})

	summary, err := r.controller.Run(ctx, r.source)
	r.log.InfoObj("run finished", "summary", map[string]any{
		"run_id":  r.runID,
		"fetched": summary.Fetched,
		"skipped": summary.Skipped,
		"failed":  summary.Failed,
		"indexed": summary.Indexed,
	})

	if r.cfg.MetricsFile != "" {
		if merr := r.metrics.WriteTextfile(r.cfg.MetricsFile); merr != nil {
			r.log.WarnObj("metrics textfile not written", "metrics_error", merr.Error())
		}
	}

	if errors.Is(err, context.Canceled) {
		r.log.WarnObj("run interrupted, committed recipes stay indexed", "run_id", r.runID)
		return fmt.Errorf("run interrupted: %w", err)
	}
	return err
}

// Close releases the index and publisher connections.
func (r *Runner) Close() error {
	var errs []error
	if r.fanout != nil {
		if err := r.fanout.Close(); err != nil {
			errs = append(errs, err)
		}
		r.fanout = nil
	}
	if r.index != nil {
		if err := r.index.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close index: %w", err))
		}
		r.index = nil
	}
	return errors.Join(errs...)
}

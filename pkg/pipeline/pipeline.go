package pipeline

import (
	"context"
	stderrors "errors"
	"time"

	"sitemapgen/pkg/checkpoint"
	"sitemapgen/pkg/config"
	"sitemapgen/pkg/logger"
	"sitemapgen/pkg/metrics"
	"sitemapgen/pkg/names"
	"sitemapgen/pkg/retry"
	"sitemapgen/pkg/sitemap"
	"sitemapgen/pkg/storage"
)

// Fetcher retrieves one page of names for a category
type Fetcher interface {
	FetchPage(ctx context.Context, category names.Category, page int) (*names.Page, error)
}

// Progress receives run events, for terminal display
type Progress interface {
	PageDone(category string, page, urls int)
	FileWritten(name string, urls int)
	CategoryFailed(category string, err error)
}

type nopProgress struct{}

func (nopProgress) PageDone(string, int, int)    {}
func (nopProgress) FileWritten(string, int)      {}
func (nopProgress) CategoryFailed(string, error) {}

// Dependencies are the collaborators of a Pipeline
type Dependencies struct {
	Fetcher    Fetcher
	Store      *storage.Manager
	Metrics    *metrics.Metrics
	Logger     logger.Logger
	Categories []names.Category
	Progress   Progress
}

// Pipeline walks every category page by page and turns the names into
// sitemap files, resuming from the last checkpoint
type Pipeline struct {
	config      *config.Config
	fetcher     Fetcher
	store       *storage.Manager
	checkpoints *checkpoint.Manager
	batcher     *sitemap.Batcher
	index       *sitemap.IndexBuilder
	categories  []names.Category
	progress    Progress
	metrics     *metrics.Metrics
	logger      logger.Logger
	now         func() time.Time
}

// New wires a pipeline against the output directory on disk and the live API
func New(cfg *config.Config, log logger.Logger, progress Progress) (*Pipeline, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	store, err := storage.NewManager(cfg.Output.Directory)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	client := names.NewClient(cfg.Upstream, retry.FromSettings(cfg.Retry, log), log, names.WithMetrics(m))

	return NewWithDependencies(cfg, Dependencies{
		Fetcher:  client,
		Store:    store,
		Metrics:  m,
		Logger:   log,
		Progress: progress,
	}), nil
}

// NewWithDependencies creates a pipeline from explicit collaborators
func NewWithDependencies(cfg *config.Config, deps Dependencies) *Pipeline {
	log := deps.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.New()
	}
	categories := deps.Categories
	if len(categories) == 0 {
		categories = names.Categories()
	}

	progress := deps.Progress
	if progress == nil {
		progress = nopProgress{}
	}

	checkpoints := checkpoint.NewManager(deps.Store, len(categories), log)
	batcher := sitemap.NewBatcher(deps.Store, checkpoints, cfg.Site.BaseURL, cfg.Output.URLsPerSitemap, m, log)
	batcher.OnFlush(progress.FileWritten)

	return &Pipeline{
		config:      cfg,
		fetcher:     deps.Fetcher,
		store:       deps.Store,
		checkpoints: checkpoints,
		batcher:     batcher,
		index:       sitemap.NewIndexBuilder(deps.Store, cfg.Site.BaseURL, m, log),
		categories:  categories,
		progress:    progress,
		metrics:     m,
		logger:      log.WithField("component", "pipeline"),
		now:         time.Now,
	}
}

// Metrics returns the collectors updated by the run
func (p *Pipeline) Metrics() *metrics.Metrics {
	return p.metrics
}

// Checkpoints returns the checkpoint manager of the output directory
func (p *Pipeline) Checkpoints() *checkpoint.Manager {
	return p.checkpoints
}

// ForceRestart removes the checkpoint, every sitemap file and the index so
// the next run starts from scratch
func (p *Pipeline) ForceRestart() error {
	files, err := p.index.SitemapFiles()
	if err != nil {
		return err
	}
	for _, f := range append(files, sitemap.IndexFileName) {
		if err := p.store.Remove(f); err != nil {
			return err
		}
	}
	if err := p.checkpoints.Reset(); err != nil {
		return err
	}

	p.logger.InfoWithFields("Output directory reset", map[string]interface{}{
		"removed_files": len(files),
	})
	return nil
}

// Run processes every remaining category, flushes the last partial file and
// rebuilds the index. Fetch failures skip the rest of a category; filesystem
// failures and cancellation end the run with the last checkpoint intact.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	start := p.now()
	summary := &Summary{Resumed: p.checkpoints.Exists()}

	cp := p.checkpoints.Load()
	p.batcher.Restore(cp.Pending)

	logger.LogComponentStart(p.logger, "pipeline", map[string]interface{}{
		"category_index":   cp.CategoryIndex,
		"page":             cp.Page,
		"next_sequence":    cp.NextSequence,
		"pending_urls":     len(cp.Pending),
		"urls_per_sitemap": p.config.Output.URLsPerSitemap,
	})

	var err error
	for !cp.Done(len(p.categories)) {
		if err := ctx.Err(); err != nil {
			return p.stop(summary, start, err)
		}

		cp, err = p.step(ctx, cp, summary)
		if err != nil {
			return p.stop(summary, start, err)
		}
	}

	if cp, err = p.batcher.FinalFlush(cp); err != nil {
		return p.stop(summary, start, err)
	}

	result, err := p.index.Regenerate(ctx)
	if err != nil {
		return p.stop(summary, start, err)
	}

	finished := p.now()
	summary.Files = p.batcher.Written()
	summary.IndexEntries = len(result.Entries)
	summary.NextSequence = cp.NextSequence
	summary.Duration = finished.Sub(start)

	p.metrics.ObserveRun(summary.Duration, summary.IndexEntries, finished)
	p.exportMetrics()

	logger.LogMetrics(p.logger, "generate", summary.Fields())
	logger.LogComponentStop(p.logger, "pipeline", "completed")
	return summary, nil
}

// step fetches the page at cp and returns the checkpoint to continue from
func (p *Pipeline) step(ctx context.Context, cp checkpoint.Checkpoint, summary *Summary) (checkpoint.Checkpoint, error) {
	category := p.categories[cp.CategoryIndex]
	log := p.logger.WithFields(map[string]interface{}{
		"category": category.String(),
		"page":     cp.Page,
	})

	page, err := p.fetcher.FetchPage(ctx, category, cp.Page)
	if err != nil {
		if isCancellation(ctx, err) {
			return cp, err
		}
		log.WithError(err).Error("Fetch failed, moving to next category")
		summary.FailedCategories = append(summary.FailedCategories, category)
		p.progress.CategoryFailed(category.String(), err)
		return p.batcher.Persist(cp.NextCategory())
	}
	summary.PagesFetched++
	p.progress.PageDone(category.String(), cp.Page, len(page.Records))

	if page.Empty() && !page.HasNextPage {
		log.Info("Category exhausted")
		return p.batcher.Persist(cp.NextCategory())
	}

	for _, rec := range page.Records {
		if err := p.batcher.Add(rec); err != nil {
			log.WithError(err).Debug("Skipping record")
			continue
		}
		summary.URLsAdded++
	}

	next := cp.NextCategory()
	if page.HasNextPage {
		next = cp.NextPage()
	} else {
		log.Info("Category exhausted")
	}

	flushed, err := p.batcher.MaybeFlush(next)
	if err != nil {
		return cp, err
	}
	if flushed.NextSequence != next.NextSequence {
		return flushed, nil
	}
	return p.batcher.Persist(next)
}

func (p *Pipeline) stop(summary *Summary, start time.Time, err error) (*Summary, error) {
	summary.Files = p.batcher.Written()
	summary.Duration = p.now().Sub(start)

	reason := "failed"
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		reason = "cancelled"
	}
	p.logger.WithError(err).WarnWithFields("Run stopped, progress is saved", map[string]interface{}{
		"reason":        reason,
		"pages_fetched": summary.PagesFetched,
		"files_written": len(summary.Files),
	})
	p.exportMetrics()
	return summary, err
}

// exportMetrics writes the textfile when one is configured. Export problems
// never fail the run.
func (p *Pipeline) exportMetrics() {
	path := p.config.Metrics.Textfile
	if path == "" {
		return
	}
	if err := p.metrics.WriteTextfile(path); err != nil {
		p.logger.WithError(err).WithField("path", path).Warn("Failed to write metrics textfile")
	}
}

func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded))
}

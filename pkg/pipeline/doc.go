// Package pipeline generates the sitemap set for the names API.
//
// The Pipeline walks the categories in a fixed order and pages through each
// one, turning every name into a public page URL and handing it to the
// sitemap batcher.
//
// Resumption:
//
// After every page and every written file the position is saved to
// sitemap-progress.json in the output directory. The saved state carries the
// category index, the next page, the next file number and any URLs that were
// buffered but not yet written. A run that is cancelled or crashes picks up
// at the first page that was not fully accounted for, and never rewrites a
// file that was already recorded.
//
// Failures:
//
// Fetches are retried with exponential backoff. When the attempts for a page
// run out, the rest of that category is skipped and the run moves on.
// Filesystem failures stop the run.
//
// Usage:
//
//	cfg, _ := config.Load("", nil)
//	p, err := pipeline.New(cfg, logger.GetLogger(), ui.NewProgressDisplay())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	summary, err := p.Run(ctx)
//
// The index file is rebuilt from the output directory at the end of every
// successful run.
package pipeline

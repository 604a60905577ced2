package sitemap

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"sitemapgen/pkg/logger"
	"sitemapgen/pkg/metrics"
	"sitemapgen/pkg/storage"
)

// IndexFileName is the name of the generated sitemap index
const IndexFileName = "sitemap-index.xml"

var sitemapFilePattern = regexp.MustCompile(`^sitemap-(\d+).*\.xml$`)

// IndexResult describes a generated index
type IndexResult struct {
	File    string
	Entries []string
}

// IndexBuilder rebuilds the sitemap index from the files on disk
type IndexBuilder struct {
	store   *storage.Manager
	siteURL string
	metrics *metrics.Metrics
	logger  logger.Logger
}

// NewIndexBuilder creates an index builder
func NewIndexBuilder(store *storage.Manager, siteURL string, m *metrics.Metrics, log logger.Logger) *IndexBuilder {
	if log == nil {
		log = logger.GetLogger()
	}
	if m == nil {
		m = metrics.New()
	}
	return &IndexBuilder{
		store:   store,
		siteURL: siteURL,
		metrics: m,
		logger:  log.WithField("component", "index"),
	}
}

// SitemapFiles lists the sitemap files in the output directory in numeric order
func (ib *IndexBuilder) SitemapFiles() ([]string, error) {
	all, err := ib.store.List()
	if err != nil {
		return nil, err
	}

	var files []string
	for _, name := range all {
		if name == IndexFileName || !sitemapFilePattern.MatchString(name) {
			continue
		}
		files = append(files, name)
	}

	sort.Slice(files, func(i, j int) bool {
		return lessSitemapFile(files[i], files[j])
	})
	return files, nil
}

// Regenerate writes sitemap-index.xml listing every sitemap file. The output
// depends only on the directory listing, so repeated runs are byte-identical.
func (ib *IndexBuilder) Regenerate(ctx context.Context) (*IndexResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	files, err := ib.SitemapFiles()
	if err != nil {
		return nil, err
	}

	locs := make([]string, 0, len(files))
	for _, f := range files {
		locs = append(locs, FileURL(ib.siteURL, f))
	}

	data, err := RenderIndex(locs)
	if err != nil {
		return nil, err
	}
	if err := ib.store.WriteAtomic(IndexFileName, data); err != nil {
		return nil, err
	}

	ib.metrics.IndexEntries.Set(float64(len(files)))
	ib.logger.InfoWithFields("Sitemap index written", map[string]interface{}{
		"file":    IndexFileName,
		"entries": len(files),
	})

	return &IndexResult{File: IndexFileName, Entries: files}, nil
}

// lessSitemapFile orders by the embedded number, then lexically
func lessSitemapFile(a, b string) bool {
	if c := compareDigits(sequenceDigits(a), sequenceDigits(b)); c != 0 {
		return c < 0
	}
	return a < b
}

func sequenceDigits(name string) string {
	m := sitemapFilePattern.FindStringSubmatch(name)
	if m == nil {
		return ""
	}
	return strings.TrimLeft(m[1], "0")
}

// compareDigits compares two decimal strings without leading zeros by value,
// with no size limit
func compareDigits(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

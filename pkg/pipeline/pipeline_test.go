package pipeline

import (
	"context"
	"encoding/xml"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sitemapgen/pkg/checkpoint"
	"sitemapgen/pkg/config"
	"sitemapgen/pkg/errors"
	"sitemapgen/pkg/logger"
	"sitemapgen/pkg/names"
	"sitemapgen/pkg/retry"
	"sitemapgen/pkg/sitemap"
	"sitemapgen/pkg/storage"
)

const testSite = "https://example.test"

type fetchCall struct {
	Category names.Category
	Page     int
}

// scriptedFetcher serves pages from a fixed catalogue
type scriptedFetcher struct {
	mu     sync.Mutex
	pages  map[names.Category][][]string
	errors map[fetchCall]error
	calls  []fetchCall
	before func(call fetchCall)
}

func newScriptedFetcher(pages map[names.Category][][]string) *scriptedFetcher {
	return &scriptedFetcher{pages: pages, errors: map[fetchCall]error{}}
}

func (f *scriptedFetcher) FetchPage(ctx context.Context, category names.Category, page int) (*names.Page, error) {
	f.mu.Lock()
	call := fetchCall{category, page}
	f.calls = append(f.calls, call)
	before := f.before
	f.mu.Unlock()

	if before != nil {
		before(call)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := f.errors[call]; ok {
		return nil, err
	}

	all := f.pages[category]
	if page < 1 || page > len(all) {
		return &names.Page{}, nil
	}
	result := &names.Page{HasNextPage: page < len(all)}
	for _, slug := range all[page-1] {
		result.Records = append(result.Records, names.Record{Slug: slug, Category: category})
	}
	return result, nil
}

func (f *scriptedFetcher) Calls() []fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]fetchCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func testConfig(threshold int) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Site.BaseURL = testSite
	cfg.Output.URLsPerSitemap = threshold
	return cfg
}

func newTestPipeline(t *testing.T, store *storage.Manager, fetcher Fetcher, threshold int) *Pipeline {
	t.Helper()
	return NewWithDependencies(testConfig(threshold), Dependencies{
		Fetcher: fetcher,
		Store:   store,
		Logger:  logger.NewNopLogger(),
	})
}

func sitemapLocs(t *testing.T, store *storage.Manager, name string) []string {
	t.Helper()
	data, err := store.ReadFile(name)
	require.NoError(t, err)

	var doc struct {
		URLs []struct {
			Loc string `xml:"loc"`
		} `xml:"url"`
	}
	require.NoError(t, xml.Unmarshal(data, &doc))
	locs := make([]string, 0, len(doc.URLs))
	for _, u := range doc.URLs {
		locs = append(locs, u.Loc)
	}
	return locs
}

func indexLocs(t *testing.T, store *storage.Manager) []string {
	t.Helper()
	data, err := store.ReadFile(sitemap.IndexFileName)
	require.NoError(t, err)

	var doc struct {
		Sitemaps []struct {
			Loc string `xml:"loc"`
		} `xml:"sitemap"`
	}
	require.NoError(t, xml.Unmarshal(data, &doc))
	locs := make([]string, 0, len(doc.Sitemaps))
	for _, s := range doc.Sitemaps {
		locs = append(locs, s.Loc)
	}
	return locs
}

func nameURL(category names.Category, slug string) string {
	return sitemap.NameURL(testSite, names.Record{Slug: slug, Category: category})
}

func TestRunThresholdTwoSinglePage(t *testing.T) {
	store := storage.NewInMemory()
	fetcher := newScriptedFetcher(map[names.Category][][]string{
		names.Islamic: {{"a", "b", "c"}},
	})

	summary, err := newTestPipeline(t, store, fetcher, 2).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{nameURL(names.Islamic, "a"), nameURL(names.Islamic, "b")}, sitemapLocs(t, store, "sitemap-1.xml"))
	assert.Equal(t, []string{nameURL(names.Islamic, "c")}, sitemapLocs(t, store, "sitemap-2.xml"))
	assert.Equal(t, []string{testSite + "/sitemap-1.xml", testSite + "/sitemap-2.xml"}, indexLocs(t, store))

	assert.Equal(t, []string{"sitemap-1.xml", "sitemap-2.xml"}, summary.Files)
	assert.Equal(t, 3, summary.URLsAdded)
	assert.Equal(t, 2, summary.IndexEntries)
	assert.Equal(t, 3, summary.NextSequence)
	assert.Empty(t, summary.FailedCategories)
}

func TestRunWalksAllCategoriesInOrder(t *testing.T) {
	store := storage.NewInMemory()
	fetcher := newScriptedFetcher(map[names.Category][][]string{
		names.Islamic:   {{"i1", "i2"}, {"i3"}},
		names.Hindu:     {{"h1"}},
		names.Christian: {{"c1", "c2"}, {"c3", "c4"}, {"c5"}},
	})

	summary, err := newTestPipeline(t, store, fetcher, 4).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []fetchCall{
		{names.Islamic, 1}, {names.Islamic, 2},
		{names.Hindu, 1},
		{names.Christian, 1}, {names.Christian, 2}, {names.Christian, 3},
	}, fetcher.Calls(), "hasNextPage=false ends a category without another fetch")

	assert.Equal(t, []string{
		nameURL(names.Islamic, "i1"), nameURL(names.Islamic, "i2"), nameURL(names.Islamic, "i3"), nameURL(names.Hindu, "h1"),
	}, sitemapLocs(t, store, "sitemap-1.xml"))
	assert.Equal(t, []string{
		nameURL(names.Christian, "c1"), nameURL(names.Christian, "c2"), nameURL(names.Christian, "c3"), nameURL(names.Christian, "c4"),
	}, sitemapLocs(t, store, "sitemap-2.xml"))
	assert.Equal(t, []string{nameURL(names.Christian, "c5")}, sitemapLocs(t, store, "sitemap-3.xml"))
	assert.Equal(t, 6, summary.PagesFetched)

	final := checkpoint.NewManager(store, 3, logger.NewNopLogger()).Load()
	assert.Equal(t, 3, final.CategoryIndex)
	assert.Equal(t, 4, final.NextSequence)
	assert.Empty(t, final.Pending)
}

func TestRunEveryFileRespectsThreshold(t *testing.T) {
	store := storage.NewInMemory()
	var pages [][]string
	for p := 0; p < 7; p++ {
		var slugs []string
		for i := 0; i < 13; i++ {
			slugs = append(slugs, fmt.Sprintf("n%d-%d", p, i))
		}
		pages = append(pages, slugs)
	}
	fetcher := newScriptedFetcher(map[names.Category][][]string{names.Hindu: pages})

	summary, err := newTestPipeline(t, store, fetcher, 10).Run(context.Background())
	require.NoError(t, err)

	total := 0
	for i, name := range summary.Files {
		n := len(sitemapLocs(t, store, name))
		total += n
		if i < len(summary.Files)-1 {
			assert.Equal(t, 10, n, name)
		} else {
			assert.LessOrEqual(t, n, 10, name)
		}
	}
	assert.Equal(t, 91, total)
	assert.Len(t, summary.Files, 10)
}

func TestRunEmptyPageEndsCategory(t *testing.T) {
	store := storage.NewInMemory()
	fetcher := newScriptedFetcher(map[names.Category][][]string{
		names.Islamic: {{}},
		names.Hindu:   {{"h1"}},
	})

	summary, err := newTestPipeline(t, store, fetcher, 5).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []fetchCall{{names.Islamic, 1}, {names.Hindu, 1}, {names.Christian, 1}}, fetcher.Calls())
	assert.Equal(t, []string{"sitemap-1.xml"}, summary.Files)
}

func TestRunFetchFailureMovesToNextCategory(t *testing.T) {
	store := storage.NewInMemory()
	fetcher := newScriptedFetcher(map[names.Category][][]string{
		names.Islamic: {{"i1", "i2"}, {"i3"}, {"i4"}},
		names.Hindu:   {{"h1"}},
	})
	fetcher.errors[fetchCall{names.Islamic, 2}] = fmt.Errorf("%w (5): %w", retry.ErrMaxAttemptsExceeded,
		errors.New(errors.ErrorTypeServerError, "upstream returned status 503", 503))

	summary, err := newTestPipeline(t, store, fetcher, 2).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []names.Category{names.Islamic}, summary.FailedCategories)
	assert.Equal(t, []fetchCall{{names.Islamic, 1}, {names.Islamic, 2}, {names.Hindu, 1}, {names.Christian, 1}}, fetcher.Calls())
	assert.Equal(t, []string{nameURL(names.Islamic, "i1"), nameURL(names.Islamic, "i2")}, sitemapLocs(t, store, "sitemap-1.xml"))
	assert.Equal(t, []string{nameURL(names.Hindu, "h1")}, sitemapLocs(t, store, "sitemap-2.xml"))
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	store := storage.NewInMemory()
	catalogue := map[names.Category][][]string{
		names.Islamic: {{"a", "b", "c"}, {"d", "e"}, {"g"}},
		names.Hindu:   {{"h"}},
	}

	// The first run is interrupted while fetching islamic page 3, after
	// two files were flushed and "e" is still buffered.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	first := newScriptedFetcher(catalogue)
	first.before = func(call fetchCall) {
		if call == (fetchCall{names.Islamic, 3}) {
			cancel()
		}
	}

	summary, err := newTestPipeline(t, store, first, 2).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"sitemap-1.xml", "sitemap-2.xml"}, summary.Files)

	saved := checkpoint.NewManager(store, 3, logger.NewNopLogger()).Load()
	assert.Equal(t, 0, saved.CategoryIndex)
	assert.Equal(t, 3, saved.Page)
	assert.Equal(t, 3, saved.NextSequence)
	assert.Equal(t, []string{nameURL(names.Islamic, "e")}, saved.Pending)

	fileOne := sitemapLocs(t, store, "sitemap-1.xml")
	fileTwo := sitemapLocs(t, store, "sitemap-2.xml")

	second := newScriptedFetcher(catalogue)
	summary, err = newTestPipeline(t, store, second, 2).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, summary.Resumed)
	assert.Equal(t, fetchCall{names.Islamic, 3}, second.Calls()[0], "resume at the persisted page")
	assert.Equal(t, []string{"sitemap-3.xml", "sitemap-4.xml"}, summary.Files, "earlier files are never re-emitted")

	assert.Equal(t, fileOne, sitemapLocs(t, store, "sitemap-1.xml"))
	assert.Equal(t, fileTwo, sitemapLocs(t, store, "sitemap-2.xml"))
	assert.Equal(t, []string{nameURL(names.Islamic, "e"), nameURL(names.Islamic, "g")}, sitemapLocs(t, store, "sitemap-3.xml"))
	assert.Equal(t, []string{nameURL(names.Hindu, "h")}, sitemapLocs(t, store, "sitemap-4.xml"))
	assert.Len(t, indexLocs(t, store), 4)
}

func TestRunAfterCompletionOnlyRebuildsIndex(t *testing.T) {
	store := storage.NewInMemory()
	fetcher := newScriptedFetcher(map[names.Category][][]string{names.Hindu: {{"a"}}})

	_, err := newTestPipeline(t, store, fetcher, 2).Run(context.Background())
	require.NoError(t, err)
	firstIndex, err := store.ReadFile(sitemap.IndexFileName)
	require.NoError(t, err)

	again := newScriptedFetcher(nil)
	summary, err := newTestPipeline(t, store, again, 2).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, again.Calls())
	assert.Empty(t, summary.Files)
	secondIndex, err := store.ReadFile(sitemap.IndexFileName)
	require.NoError(t, err)
	assert.Equal(t, firstIndex, secondIndex)
}

func TestRunFinishedCheckpointSplitsPendingByThreshold(t *testing.T) {
	store := storage.NewInMemory()
	pending := []string{
		testSite + "/names/christian/a",
		testSite + "/names/christian/b",
		testSite + "/names/christian/c",
		testSite + "/names/christian/d",
		testSite + "/names/christian/e",
	}
	require.NoError(t, checkpoint.NewManager(store, 3, logger.NewNopLogger()).Save(checkpoint.Checkpoint{
		CategoryIndex: 3, Page: 1, NextSequence: 1, Pending: pending,
	}))
	fetcher := newScriptedFetcher(nil)

	summary, err := newTestPipeline(t, store, fetcher, 2).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, fetcher.Calls())
	assert.Equal(t, []string{"sitemap-1.xml", "sitemap-2.xml", "sitemap-3.xml"}, summary.Files)
	assert.Equal(t, pending[0:2], sitemapLocs(t, store, "sitemap-1.xml"))
	assert.Equal(t, pending[2:4], sitemapLocs(t, store, "sitemap-2.xml"))
	assert.Equal(t, pending[4:], sitemapLocs(t, store, "sitemap-3.xml"))

	final := checkpoint.NewManager(store, 3, logger.NewNopLogger()).Load()
	assert.Equal(t, 4, final.NextSequence)
	assert.Empty(t, final.Pending)
}

func TestRunCorruptCheckpointStartsOver(t *testing.T) {
	store := storage.NewInMemory()
	require.NoError(t, store.WriteAtomic(checkpoint.FileName, []byte("{broken")))
	fetcher := newScriptedFetcher(map[names.Category][][]string{names.Islamic: {{"a"}}})

	summary, err := newTestPipeline(t, store, fetcher, 2).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, fetchCall{names.Islamic, 1}, fetcher.Calls()[0])
	assert.Equal(t, []string{"sitemap-1.xml"}, summary.Files)
}

// readOnlyFS refuses to create files
type readOnlyFS struct {
	billy.Filesystem
}

func (readOnlyFS) TempFile(dir, prefix string) (billy.File, error) {
	return nil, fs.ErrPermission
}

func TestRunFilesystemErrorIsFatal(t *testing.T) {
	store := storage.NewWithFilesystem(&readOnlyFS{Filesystem: memfs.New()})
	fetcher := newScriptedFetcher(map[names.Category][][]string{
		names.Islamic: {{"a", "b"}, {"c"}},
	})

	_, err := newTestPipeline(t, store, fetcher, 2).Run(context.Background())
	require.Error(t, err)

	var typed *errors.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, errors.ErrorTypeFilesystem, typed.Type)
	assert.Equal(t, []fetchCall{{names.Islamic, 1}}, fetcher.Calls(), "the run stops at the first failed write")
}

func TestForceRestart(t *testing.T) {
	store := storage.NewInMemory()
	fetcher := newScriptedFetcher(map[names.Category][][]string{names.Hindu: {{"a", "b", "c"}}})
	p := newTestPipeline(t, store, fetcher, 2)

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, store.WriteAtomic("robots.txt", []byte("User-agent: *")))

	require.NoError(t, p.ForceRestart())

	files, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"robots.txt"}, files)
	assert.False(t, p.Checkpoints().Exists())
}

func TestRunWritesMetricsTextfile(t *testing.T) {
	store := storage.NewInMemory()
	cfg := testConfig(2)
	cfg.Metrics.Textfile = t.TempDir() + "/sitemapgen.prom"
	fetcher := newScriptedFetcher(map[names.Category][][]string{names.Hindu: {{"a"}}})

	p := NewWithDependencies(cfg, Dependencies{Fetcher: fetcher, Store: store, Logger: logger.NewNopLogger()})
	_, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.FileExists(t, cfg.Metrics.Textfile)
}

// fakeSleep records backoff delays without waiting
type fakeSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (f *fakeSleep) Sleep(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	f.delays = append(f.delays, d)
	f.mu.Unlock()
	return ctx.Err()
}

// newFlakyUpstream serves one page per category, failing the first
// failures requests for islamic page 1
func newFlakyUpstream(t *testing.T, failures int) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	islamicAttempts := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		category := r.URL.Query().Get("religion")
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))

		if category == "islamic" && page == 1 {
			mu.Lock()
			islamicAttempts++
			n := islamicAttempts
			mu.Unlock()
			if n <= failures {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
		}
		if page > 1 {
			w.Write([]byte(`{"data":{"names":[],"pagination":{"hasNextPage":false}}}`))
			return
		}
		fmt.Fprintf(w, `{"data":{"names":[{"slug":"%s-one"}],"pagination":{"hasNextPage":false}}}`, category)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newHTTPPipeline(t *testing.T, store *storage.Manager, upstreamURL string, sleep *fakeSleep) *Pipeline {
	t.Helper()
	cfg := testConfig(10)
	cfg.Upstream.BaseURL = upstreamURL

	retryCfg := retry.FromSettings(cfg.Retry, logger.NewNopLogger())
	retryCfg.Sleep = sleep.Sleep
	client := names.NewClient(cfg.Upstream, retryCfg, logger.NewNopLogger())

	return NewWithDependencies(cfg, Dependencies{Fetcher: client, Store: store, Logger: logger.NewNopLogger()})
}

func TestRunRetryThenSuccess(t *testing.T) {
	store := storage.NewInMemory()
	sleep := &fakeSleep{}
	srv := newFlakyUpstream(t, 4)

	summary, err := newHTTPPipeline(t, store, srv.URL, sleep).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, summary.FailedCategories)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}, sleep.delays)
	assert.Equal(t, []string{
		nameURL(names.Islamic, "islamic-one"),
		nameURL(names.Hindu, "hindu-one"),
		nameURL(names.Christian, "christian-one"),
	}, sitemapLocs(t, store, "sitemap-1.xml"))
}

func TestRunRetryExhaustion(t *testing.T) {
	store := storage.NewInMemory()
	require.NoError(t, store.WriteAtomic("sitemap-1.xml", []byte("<urlset/>")))
	require.NoError(t, checkpoint.NewManager(store, 3, logger.NewNopLogger()).Save(checkpoint.Checkpoint{
		CategoryIndex: 0, Page: 1, NextSequence: 2,
	}))
	sleep := &fakeSleep{}
	srv := newFlakyUpstream(t, 5)

	summary, err := newHTTPPipeline(t, store, srv.URL, sleep).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []names.Category{names.Islamic}, summary.FailedCategories)
	assert.Len(t, sleep.delays, 4)

	earlier, err := store.ReadFile("sitemap-1.xml")
	require.NoError(t, err)
	assert.Equal(t, "<urlset/>", string(earlier), "earlier files are intact")

	assert.Equal(t, []string{
		nameURL(names.Hindu, "hindu-one"),
		nameURL(names.Christian, "christian-one"),
	}, sitemapLocs(t, store, "sitemap-2.xml"))
	assert.Equal(t, []string{testSite + "/sitemap-1.xml", testSite + "/sitemap-2.xml"}, indexLocs(t, store))
}

type recordingProgress struct {
	pages  []string
	files  []string
	failed []string
}

func (r *recordingProgress) PageDone(category string, page, urls int) {
	r.pages = append(r.pages, fmt.Sprintf("%s/%d:%d", category, page, urls))
}

func (r *recordingProgress) FileWritten(name string, urls int) {
	r.files = append(r.files, fmt.Sprintf("%s:%d", name, urls))
}

func (r *recordingProgress) CategoryFailed(category string, err error) {
	r.failed = append(r.failed, category)
}

func TestRunReportsProgress(t *testing.T) {
	store := storage.NewInMemory()
	fetcher := newScriptedFetcher(map[names.Category][][]string{
		names.Islamic: {{"a", "b", "c"}},
		names.Hindu:   {{"d"}, {"e"}},
	})
	fetcher.errors[fetchCall{names.Hindu, 2}] = errors.New(errors.ErrorTypeServerError, "upstream returned status 500", 500)

	progress := &recordingProgress{}
	p := NewWithDependencies(testConfig(2), Dependencies{
		Fetcher:  fetcher,
		Store:    store,
		Logger:   logger.NewNopLogger(),
		Progress: progress,
	})

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"islamic/1:3", "hindu/1:1", "christian/1:0"}, progress.pages)
	assert.Equal(t, []string{"sitemap-1.xml:2", "sitemap-2.xml:2"}, progress.files)
	assert.Equal(t, []string{"hindu"}, progress.failed)
}

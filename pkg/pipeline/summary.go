package pipeline

import (
	"time"

	"sitemapgen/pkg/names"
)

// Summary reports what a run did
type Summary struct {
	Resumed          bool
	PagesFetched     int
	URLsAdded        int
	Files            []string
	FailedCategories []names.Category
	IndexEntries     int
	NextSequence     int
	Duration         time.Duration
}

// Fields returns the summary as structured log fields
func (s *Summary) Fields() map[string]interface{} {
	failed := make([]string, 0, len(s.FailedCategories))
	for _, c := range s.FailedCategories {
		failed = append(failed, c.String())
	}
	return map[string]interface{}{
		"resumed":           s.Resumed,
		"pages_fetched":     s.PagesFetched,
		"urls_added":        s.URLsAdded,
		"files_written":     len(s.Files),
		"failed_categories": failed,
		"index_entries":     s.IndexEntries,
		"duration":          s.Duration,
	}
}

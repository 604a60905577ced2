package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// ProgressDisplay prints one line per fetched page and per written file
type ProgressDisplay struct {
	mu        sync.Mutex
	pages     int
	urls      int
	files     int
	failures  int
	startTime time.Time
	now       func() time.Time
}

// NewProgressDisplay creates a progress display starting now
func NewProgressDisplay() *ProgressDisplay {
	return &ProgressDisplay{startTime: time.Now(), now: time.Now}
}

// PageDone records a fetched page with its number of URLs
func (p *ProgressDisplay) PageDone(category string, page, urls int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pages++
	p.urls += urls
	write(false, "%s %s page %d • %d names • %s\n",
		labelStyle.Render("→"),
		category,
		page,
		urls,
		dimStyle.Render(fmt.Sprintf("%.1f pages/min", p.rate())),
	)
}

// FileWritten records a sitemap file
func (p *ProgressDisplay) FileWritten(name string, urls int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.files++
	write(false, "%s %s (%d URLs)\n", successStyle.Render("✓"), name, urls)
}

// CategoryFailed records a category abandoned after a fetch failure
func (p *ProgressDisplay) CategoryFailed(category string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failures++
	write(false, "%s %s skipped: %v\n", errorStyle.Render("✗"), category, err)
}

// Complete prints the totals of the run
func (p *ProgressDisplay) Complete(indexEntries int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := p.now().Sub(p.startTime)
	write(false, "\n%s %d pages, %d names, %d new files, %d index entries\n",
		successStyle.Render("✓"), p.pages, p.urls, p.files, indexEntries)
	write(false, "  %s finished in %s\n", dimStyle.Render("•"), FormatDuration(elapsed))
	if p.failures > 0 {
		write(false, "  %s %s\n", dimStyle.Render("•"),
			warningStyle.Render(fmt.Sprintf("%d categories skipped", p.failures)))
	}
}

func (p *ProgressDisplay) rate() float64 {
	minutes := p.now().Sub(p.startTime).Minutes()
	if minutes == 0 {
		return 0
	}
	return float64(p.pages) / minutes
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// Bar renders a fixed-width bar for done out of total
func Bar(done, total, width int) string {
	if total <= 0 || width <= 0 {
		return strings.Repeat("─", width)
	}
	filled := done * width / total
	if filled > width {
		filled = width
	}
	return strings.Repeat("━", filled) + strings.Repeat("─", width-filled)
}

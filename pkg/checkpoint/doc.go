// Package checkpoint persists the resumable position of a sitemap run.
//
// A Checkpoint records which category and page to fetch next, the number
// of the next sitemap file, and any URLs that were fetched but not yet
// flushed to a file. It is stored as sitemap-progress.json in the output
// directory and written atomically after every page and every flush, so a
// run interrupted at any point resumes without losing or duplicating URLs.
//
// Loading never fails: a missing, corrupt or out-of-range file falls back
// to the defaults of a fresh run.
package checkpoint

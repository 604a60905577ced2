package sitemap

import (
	"fmt"

	"sitemapgen/pkg/checkpoint"
	"sitemapgen/pkg/errors"
	"sitemapgen/pkg/logger"
	"sitemapgen/pkg/metrics"
	"sitemapgen/pkg/names"
	"sitemapgen/pkg/storage"
)

// FileName returns the name of the sitemap file with sequence number n
func FileName(n int) string {
	return fmt.Sprintf("sitemap-%d.xml", n)
}

// Batcher buffers page URLs and writes them out in fixed-size sitemap files.
// Every flush is followed by a checkpoint save that carries the next sequence
// number and whatever is still buffered.
type Batcher struct {
	store       *storage.Manager
	checkpoints *checkpoint.Manager
	siteURL     string
	threshold   int
	buffer      []string
	written     []string
	metrics     *metrics.Metrics
	logger      logger.Logger
	onFlush     func(name string, urls int)
}

// NewBatcher creates a batcher writing threshold URLs per file
func NewBatcher(store *storage.Manager, checkpoints *checkpoint.Manager, siteURL string, threshold int, m *metrics.Metrics, log logger.Logger) *Batcher {
	if log == nil {
		log = logger.GetLogger()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Batcher{
		store:       store,
		checkpoints: checkpoints,
		siteURL:     siteURL,
		threshold:   threshold,
		metrics:     m,
		logger:      log.WithField("component", "batcher"),
	}
}

// OnFlush registers fn to be called after every file is written
func (b *Batcher) OnFlush(fn func(name string, urls int)) {
	b.onFlush = fn
}

// Add appends the public URL of rec to the buffer
func (b *Batcher) Add(rec names.Record) error {
	if rec.Slug == "" || rec.Category == "" {
		return fmt.Errorf("record needs both category and slug: %+v", rec)
	}
	b.buffer = append(b.buffer, NameURL(b.siteURL, rec))
	return nil
}

// Restore seeds the buffer with URLs carried over from a checkpoint
func (b *Batcher) Restore(urls []string) {
	if len(urls) == 0 {
		return
	}
	b.buffer = append(b.buffer[:0], urls...)
	b.logger.InfoWithFields("Restored pending URLs", map[string]interface{}{
		"urls": len(urls),
	})
}

// Len returns the number of buffered URLs
func (b *Batcher) Len() int {
	return len(b.buffer)
}

// Written returns the files written by this batcher, in order
func (b *Batcher) Written() []string {
	out := make([]string, len(b.written))
	copy(out, b.written)
	return out
}

// MaybeFlush writes a file for every full threshold of buffered URLs, saving
// the checkpoint after each one. cp must already point at the position
// following the buffered data.
func (b *Batcher) MaybeFlush(cp checkpoint.Checkpoint) (checkpoint.Checkpoint, error) {
	for len(b.buffer) >= b.threshold {
		var err error
		cp, err = b.flush(cp, b.threshold)
		if err != nil {
			return cp, err
		}
	}
	return cp, nil
}

// FinalFlush writes the remaining URLs and saves the checkpoint. A buffer
// restored under a smaller threshold still splits into full files first.
func (b *Batcher) FinalFlush(cp checkpoint.Checkpoint) (checkpoint.Checkpoint, error) {
	cp, err := b.MaybeFlush(cp)
	if err != nil {
		return cp, err
	}
	if len(b.buffer) == 0 {
		return b.Persist(cp)
	}
	return b.flush(cp, len(b.buffer))
}

// Persist saves cp with the current buffer as its pending URLs
func (b *Batcher) Persist(cp checkpoint.Checkpoint) (checkpoint.Checkpoint, error) {
	cp.Pending = b.pending()
	if err := b.checkpoints.Save(cp); err != nil {
		return cp, err
	}
	return cp, nil
}

func (b *Batcher) flush(cp checkpoint.Checkpoint, n int) (checkpoint.Checkpoint, error) {
	name := FileName(cp.NextSequence)

	data, err := RenderURLSet(b.buffer[:n])
	if err != nil {
		return cp, errors.Wrap(errors.ErrorTypeFilesystem, err, fmt.Sprintf("failed to render %s", name))
	}
	if err := b.store.WriteAtomic(name, data); err != nil {
		return cp, err
	}

	b.buffer = append(b.buffer[:0], b.buffer[n:]...)
	b.written = append(b.written, name)
	b.metrics.ObserveFile(n)
	b.logger.InfoWithFields("Sitemap written", map[string]interface{}{
		"file":      name,
		"urls":      n,
		"remaining": len(b.buffer),
	})
	if b.onFlush != nil {
		b.onFlush(name, n)
	}

	cp.NextSequence++
	return b.Persist(cp)
}

func (b *Batcher) pending() []string {
	if len(b.buffer) == 0 {
		return nil
	}
	out := make([]string, len(b.buffer))
	copy(out, b.buffer)
	return out
}

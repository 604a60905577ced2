package checkpoint

import (
	"encoding/json"
	"fmt"
	"time"

	"sitemapgen/pkg/logger"
	"sitemapgen/pkg/storage"
)

// FileName is the name of the progress file inside the output directory
const FileName = "sitemap-progress.json"

// Checkpoint is the resumable position of a generation run. It is treated as
// a value: the helpers return modified copies.
type Checkpoint struct {
	CategoryIndex int       `json:"lastReligionIndex"`
	Page          int       `json:"lastPage"`
	NextSequence  int       `json:"sitemapIndex"`
	Pending       []string  `json:"pendingUrls,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Default returns the position of a fresh run
func Default() Checkpoint {
	return Checkpoint{CategoryIndex: 0, Page: 1, NextSequence: 1}
}

// NextPage advances to the following page of the current category
func (c Checkpoint) NextPage() Checkpoint {
	c.Page++
	return c
}

// NextCategory moves to page 1 of the following category
func (c Checkpoint) NextCategory() Checkpoint {
	c.CategoryIndex++
	c.Page = 1
	return c
}

// Done reports whether every category has been processed
func (c Checkpoint) Done(categoryCount int) bool {
	return c.CategoryIndex >= categoryCount
}

// Validate checks the checkpoint against the number of known categories
func (c Checkpoint) Validate(categoryCount int) error {
	switch {
	case c.CategoryIndex < 0 || c.CategoryIndex > categoryCount:
		return fmt.Errorf("category index %d out of range [0, %d]", c.CategoryIndex, categoryCount)
	case c.Page < 1:
		return fmt.Errorf("page %d must be at least 1", c.Page)
	case c.NextSequence < 1:
		return fmt.Errorf("sitemap sequence %d must be at least 1", c.NextSequence)
	}
	return nil
}

// Manager persists checkpoints in the output directory
type Manager struct {
	store         *storage.Manager
	categoryCount int
	logger        logger.Logger
	now           func() time.Time
}

// NewManager creates a checkpoint manager. categoryCount bounds CategoryIndex
// when loading.
func NewManager(store *storage.Manager, categoryCount int, log logger.Logger) *Manager {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{
		store:         store,
		categoryCount: categoryCount,
		logger:        log.WithField("component", "checkpoint"),
		now:           time.Now,
	}
}

// Load returns the persisted checkpoint. A missing, unreadable, corrupt or
// out-of-range file yields the defaults; only the latter three are logged.
func (m *Manager) Load() Checkpoint {
	cp, err := m.Inspect()
	if err != nil {
		m.logger.WithError(err).Warn("Ignoring unusable checkpoint, starting from the beginning")
		return Default()
	}
	if cp == nil {
		m.logger.Debug("No checkpoint found, starting from the beginning")
		return Default()
	}
	if err := cp.Validate(m.categoryCount); err != nil {
		m.logger.WithError(err).Warn("Checkpoint out of range, starting from the beginning")
		return Default()
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"category_index": cp.CategoryIndex,
		"page":           cp.Page,
		"next_sequence":  cp.NextSequence,
		"pending_urls":   len(cp.Pending),
	})
	return *cp
}

// Inspect reads the raw checkpoint without applying defaults. It returns
// nil, nil when no checkpoint exists.
func (m *Manager) Inspect() (*Checkpoint, error) {
	data, err := m.store.ReadFile(FileName)
	if err != nil {
		if storage.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	return &cp, nil
}

// Save writes the checkpoint atomically
func (m *Manager) Save(cp Checkpoint) error {
	cp.UpdatedAt = m.now().UTC()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	if err := m.store.WriteAtomic(FileName, data); err != nil {
		return err
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"category_index": cp.CategoryIndex,
		"page":           cp.Page,
		"next_sequence":  cp.NextSequence,
		"pending_urls":   len(cp.Pending),
	})
	return nil
}

// Reset removes the persisted checkpoint
func (m *Manager) Reset() error {
	if err := m.store.Remove(FileName); err != nil {
		return err
	}
	m.logger.Info("Checkpoint reset")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	ok, err := m.store.Exists(FileName)
	return err == nil && ok
}

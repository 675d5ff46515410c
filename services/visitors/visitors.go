// Package visitors counts dashboard page views, in total and for the current day.
package visitors

import (
	"errors"
	"io/fs"
	"sync"
	"time"

	"flatnas/infrastructure/filestore"
	"flatnas/pkg/logger"
	"flatnas/pkg/metrics"
)

type Stats struct {
	Total    int64  `json:"total"`
	Today    int64  `json:"today"`
	LastDate string `json:"lastDate"`
}

// Counter keeps the stats in memory and writes them back in the background.
// Every write stores the latest state, so overlapping writes cannot regress the file.
type Counter struct {
	mu      sync.Mutex
	stats   Stats
	path    string
	files   *filestore.Store
	writeMu sync.Mutex
	pending sync.WaitGroup
	now     func() time.Time
}

// Open loads the stats from path. A missing or corrupt file starts from zero.
func Open(path string, files *filestore.Store) *Counter {
	c := &Counter{path: path, files: files, now: time.Now}

	if err := filestore.ReadJSON(path, &c.stats); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.WithField("path", path).WithError(err).Warn("Ignoring unreadable visitor stats")
		}
		c.stats = Stats{}
	}
	metrics.SetVisitorsTotal(c.stats.Total)
	return c
}

// Track records one visit and returns the updated stats.
func (c *Counter) Track() Stats {
	today := c.now().UTC().Format("2006-01-02")

	c.mu.Lock()
	if c.stats.LastDate != today {
		c.stats.LastDate = today
		c.stats.Today = 0
	}
	c.stats.Total++
	c.stats.Today++
	snapshot := c.stats
	c.mu.Unlock()

	metrics.SetVisitorsTotal(snapshot.Total)

	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		c.persist()
	}()
	return snapshot
}

func (c *Counter) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Counter) persist() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.files.WriteJSON(c.path, c.Snapshot()); err != nil {
		logger.WithField("path", c.path).WithError(err).Error("Failed to persist visitor stats")
	}
}

// Flush waits for background writes to finish.
func (c *Counter) Flush() {
	c.pending.Wait()
}

package visitors

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"flatnas/infrastructure/filestore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrack_RollsOverDaily(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visitors.json")
	c := Open(path, filestore.New())

	now := time.Date(2025, 6, 1, 23, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	assert.Equal(t, Stats{Total: 1, Today: 1, LastDate: "2025-06-01"}, c.Track())
	assert.Equal(t, Stats{Total: 2, Today: 2, LastDate: "2025-06-01"}, c.Track())

	now = now.Add(2 * time.Hour)
	assert.Equal(t, Stats{Total: 3, Today: 1, LastDate: "2025-06-02"}, c.Track())
	c.Flush()

	reopened := Open(path, filestore.New())
	assert.Equal(t, Stats{Total: 3, Today: 1, LastDate: "2025-06-02"}, reopened.Snapshot())
}

func TestTrack_ConcurrentVisitsAllPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visitors.json")
	c := Open(path, filestore.New(filestore.Options{RetryDelay: time.Millisecond}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Track()
		}()
	}
	wg.Wait()
	c.Flush()

	var stored Stats
	require.NoError(t, filestore.ReadJSON(path, &stored))
	assert.Equal(t, int64(50), stored.Total)
}

func TestOpen_CorruptFileStartsFromZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visitors.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	c := Open(path, filestore.New())
	assert.Equal(t, Stats{}, c.Snapshot())
}

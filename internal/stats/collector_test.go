package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector()
	const goroutines = 100
	const opsPerGoroutine = 1000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for range goroutines {
		go func() {
			defer wg.Done()
			for range opsPerGoroutine {
				c.AddBinariesPlanned(1)
				c.AddBinariesExtracted(1)
				c.AddBinariesSkipped(1)
				c.AddBinariesFailed(1)
				c.AddBytesWritten(256)
				c.AddLibrariesLoaded(1)
				c.AddAssetsDecrypted(1)
			}
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	expected := int64(goroutines * opsPerGoroutine)
	assert.Equal(t, expected, s.BinariesPlanned)
	assert.Equal(t, expected, s.BinariesExtracted)
	assert.Equal(t, expected, s.BinariesSkipped)
	assert.Equal(t, expected, s.BinariesFailed)
	assert.Equal(t, expected*256, s.BytesWritten)
	assert.Equal(t, expected, s.LibrariesLoaded)
	assert.Equal(t, expected, s.AssetsDecrypted)
}

func TestSnapshotString(t *testing.T) {
	s := Snapshot{
		BinariesPlanned:   3,
		BinariesExtracted: 1,
		BinariesSkipped:   2,
		BytesWritten:      4096,
		LibrariesLoaded:   1,
		AssetsDecrypted:   5,
	}
	expected := "planned=3 extracted=1 skipped=2 failed=0 bytes=4096 preloaded=1 decrypted=5"
	assert.Equal(t, expected, s.String())
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1048576, "1.0 MiB"},
		{1073741824, "1.0 GiB"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			require.Equal(t, tt.expected, FormatBytes(tt.input))
		})
	}
}

func TestElapsed(t *testing.T) {
	var zero Collector
	assert.Zero(t, zero.Elapsed())

	c := NewCollector()
	time.Sleep(5 * time.Millisecond)
	assert.GreaterOrEqual(t, c.Elapsed(), 5*time.Millisecond)
}

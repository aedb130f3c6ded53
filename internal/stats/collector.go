package stats

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Collector tracks bootstrap extraction statistics using lock-free atomic counters.
type Collector struct {
	binariesPlanned   atomic.Int64
	binariesExtracted atomic.Int64
	binariesSkipped   atomic.Int64
	binariesFailed    atomic.Int64
	bytesWritten      atomic.Int64
	librariesLoaded   atomic.Int64
	assetsDecrypted   atomic.Int64
	startTime         time.Time
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	BinariesPlanned   int64
	BinariesExtracted int64
	BinariesSkipped   int64
	BinariesFailed    int64
	BytesWritten      int64
	LibrariesLoaded   int64
	AssetsDecrypted   int64
	Elapsed           time.Duration
}

func (c *Collector) AddBinariesPlanned(n int64)   { c.binariesPlanned.Add(n) }
func (c *Collector) AddBinariesExtracted(n int64) { c.binariesExtracted.Add(n) }
func (c *Collector) AddBinariesSkipped(n int64)   { c.binariesSkipped.Add(n) }
func (c *Collector) AddBinariesFailed(n int64)    { c.binariesFailed.Add(n) }
func (c *Collector) AddBytesWritten(n int64)      { c.bytesWritten.Add(n) }
func (c *Collector) AddLibrariesLoaded(n int64)   { c.librariesLoaded.Add(n) }
func (c *Collector) AddAssetsDecrypted(n int64)   { c.assetsDecrypted.Add(n) }

// Snapshot returns a consistent point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		BinariesPlanned:   c.binariesPlanned.Load(),
		BinariesExtracted: c.binariesExtracted.Load(),
		BinariesSkipped:   c.binariesSkipped.Load(),
		BinariesFailed:    c.binariesFailed.Load(),
		BytesWritten:      c.bytesWritten.Load(),
		LibrariesLoaded:   c.librariesLoaded.Load(),
		AssetsDecrypted:   c.assetsDecrypted.Load(),
		Elapsed:           c.Elapsed(),
	}
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	if c.startTime.IsZero() {
		return 0
	}
	return time.Since(c.startTime)
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"planned=%d extracted=%d skipped=%d failed=%d bytes=%d preloaded=%d decrypted=%d",
		s.BinariesPlanned, s.BinariesExtracted, s.BinariesSkipped, s.BinariesFailed,
		s.BytesWritten, s.LibrariesLoaded, s.AssetsDecrypted,
	)
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}

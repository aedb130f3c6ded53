package event

import "time"

// Type identifies the kind of event.
type Type int

const (
	BootstrapStarted Type = iota + 1
	OverridesInstalled
	SnapshotDeferred
	ExtractStarted
	BinaryExtracted
	BinarySkipped
	BinaryFailed
	LibraryPreloaded
	BootstrapReady
)

var typeNames = [...]string{
	BootstrapStarted:   "BootstrapStarted",
	OverridesInstalled: "OverridesInstalled",
	SnapshotDeferred:   "SnapshotDeferred",
	ExtractStarted:     "ExtractStarted",
	BinaryExtracted:    "BinaryExtracted",
	BinarySkipped:      "BinarySkipped",
	BinaryFailed:       "BinaryFailed",
	LibraryPreloaded:   "LibraryPreloaded",
	BootstrapReady:     "BootstrapReady",
}

func (t Type) String() string {
	if int(t) > 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// Event represents a single progress event from the bootstrap.
type Event struct {
	Type      Type
	Timestamp time.Time
	Key       string // asset key
	Path      string // extraction path
	Size      int64  // bytes written
	Total     int    // binaries planned (ExtractStarted)
	Error     error
}

// Emit sends e on ch without blocking. A nil channel drops the event.
func Emit(ch chan<- Event, e Event) {
	if ch == nil {
		return
	}
	e.Timestamp = time.Now()
	select {
	case ch <- e:
	default:
	}
}

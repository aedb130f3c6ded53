package bootstrap

// State is the engine's position in its per-process lifecycle.
//
//	Init → OverridesInstalled → [SnapshotDeserializeRegistered] → Extracted → Ready
//	Init → Inert
type State int

const (
	Init State = iota
	OverridesInstalled
	SnapshotDeserializeRegistered
	Extracted
	Ready
	Inert
)

var stateNames = [...]string{
	Init:                          "Init",
	OverridesInstalled:            "OverridesInstalled",
	SnapshotDeserializeRegistered: "SnapshotDeserializeRegistered",
	Extracted:                     "Extracted",
	Ready:                         "Ready",
	Inert:                         "Inert",
}

func (s State) String() string {
	if int(s) >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// Package utils holds the drivetrain CAN bus map and signal codec: a
// CSV-described set of frames (pose estimate, wheel speeds, drive
// commands, tracking telemetry) encoded and decoded generically by
// signal definition.
package utils

import "sort"

// Frame directions relative to this process.
const (
	DirectionRx = "rx"
	DirectionTx = "tx"
)

// SignalDef describes one physical value packed into a frame payload.
type SignalDef struct {
	Name       string
	StartBit   int
	BitLength  int
	Signed     bool
	Factor     float64
	Offset     float64
	Min        float64
	Max        float64
	Default    float64
	Unit       string
	Comment    string
	Endianness string // only "little" supported
}

// FrameDef describes one bus frame and its packed signals.
type FrameDef struct {
	ID        uint32
	Name      string
	DLC       int
	Direction string
	CycleMS   int
	Signals   []SignalDef
}

// BusMap indexes the drivetrain frame set by id and by name.
type BusMap struct {
	ByID   map[uint32]*FrameDef
	ByName map[string]*FrameDef
}

// FrameNames returns all known frame names, sorted.
func (m *BusMap) FrameNames() []string {
	out := make([]string, 0, len(m.ByName))
	for k := range m.ByName {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

package utils

import (
	"encoding/csv"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var requiredColumns = []string{
	"direction", "frame_id", "frame_name", "cycle_ms", "dlc",
	"signal_name", "start_bit", "bit_length", "endianness",
	"signed", "factor", "offset", "min", "max", "default", "unit", "comment",
}

// LoadBusMap reads the drivetrain bus description from a CSV file, one
// row per signal, grouping rows into frames. The layout is validated
// strictly: a bad map is a configuration error and refuses to load.
func LoadBusMap(csvPath string) (*BusMap, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, errors.Wrap(err, "open bus map")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read bus map header")
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, k := range requiredColumns {
		if _, ok := idx[k]; !ok {
			return nil, errors.Errorf("bus map missing required column %q", k)
		}
	}

	m := &BusMap{
		ByID:   map[uint32]*FrameDef{},
		ByName: map[string]*FrameDef{},
	}

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "read bus map row")
		}

		frameID, err := parseHexOrDecUint32(rec[idx["frame_id"]])
		if err != nil {
			return nil, errors.Wrapf(err, "invalid frame_id %q", rec[idx["frame_id"]])
		}
		frameName := strings.TrimSpace(rec[idx["frame_name"]])
		direction := strings.TrimSpace(rec[idx["direction"]])
		if direction != DirectionRx && direction != DirectionTx {
			return nil, errors.Errorf("frame %s: invalid direction %q", frameName, direction)
		}

		cycleMS, err := parseInt(rec[idx["cycle_ms"]])
		if err != nil {
			return nil, errors.Wrapf(err, "frame %s: cycle_ms", frameName)
		}
		dlc, err := parseInt(rec[idx["dlc"]])
		if err != nil {
			return nil, errors.Wrapf(err, "frame %s: dlc", frameName)
		}
		if dlc <= 0 || dlc > 8 {
			return nil, errors.Errorf("frame %s (0x%X): invalid dlc %d", frameName, frameID, dlc)
		}

		sig, err := parseSignal(rec, idx)
		if err != nil {
			return nil, errors.Wrapf(err, "frame %s", frameName)
		}
		if sig.Endianness != "" && sig.Endianness != "little" {
			return nil, errors.Errorf("frame %s signal %s: unsupported endianness %q (only little supported)",
				frameName, sig.Name, sig.Endianness)
		}
		if sig.BitLength <= 0 || sig.BitLength > 64 {
			return nil, errors.Errorf("frame %s signal %s: invalid bit_length %d", frameName, sig.Name, sig.BitLength)
		}
		if sig.StartBit < 0 || sig.StartBit+sig.BitLength > dlc*8 {
			return nil, errors.Errorf("frame %s signal %s: bits [%d, %d) exceed dlc %d",
				frameName, sig.Name, sig.StartBit, sig.StartBit+sig.BitLength, dlc)
		}
		if sig.Factor == 0 {
			return nil, errors.Errorf("frame %s signal %s: factor must be non-zero", frameName, sig.Name)
		}

		fd, ok := m.ByID[frameID]
		if !ok {
			fd = &FrameDef{
				ID:        frameID,
				Name:      frameName,
				DLC:       dlc,
				Direction: direction,
				CycleMS:   cycleMS,
			}
			m.ByID[frameID] = fd
			m.ByName[frameName] = fd
		}
		if fd.DLC != dlc {
			return nil, errors.Errorf("frame %s (0x%X) has inconsistent DLC (%d vs %d)", frameName, frameID, fd.DLC, dlc)
		}

		fd.Signals = append(fd.Signals, sig)
	}

	for _, fd := range m.ByID {
		sort.Slice(fd.Signals, func(i, j int) bool { return fd.Signals[i].StartBit < fd.Signals[j].StartBit })
	}
	return m, nil
}

// FrameByName looks up a frame definition by name.
func (m *BusMap) FrameByName(name string) (*FrameDef, error) {
	fd, ok := m.ByName[name]
	if !ok {
		return nil, errors.Errorf("unknown frame %q (available: %v)", name, m.FrameNames())
	}
	return fd, nil
}

// FrameByID looks up a frame definition by bus id.
func (m *BusMap) FrameByID(id uint32) (*FrameDef, error) {
	fd, ok := m.ByID[id]
	if !ok {
		return nil, errors.Errorf("unknown frame id 0x%X", id)
	}
	return fd, nil
}

func parseSignal(rec []string, idx map[string]int) (SignalDef, error) {
	var sig SignalDef
	var err error

	sig.Name = strings.TrimSpace(rec[idx["signal_name"]])
	if sig.Name == "" {
		return sig, errors.New("empty signal_name")
	}
	sig.Endianness = strings.TrimSpace(rec[idx["endianness"]])
	sig.Signed = parseBool(rec[idx["signed"]])
	sig.Unit = strings.TrimSpace(rec[idx["unit"]])
	sig.Comment = strings.TrimSpace(rec[idx["comment"]])

	if sig.StartBit, err = parseInt(rec[idx["start_bit"]]); err != nil {
		return sig, errors.Wrapf(err, "signal %s: start_bit", sig.Name)
	}
	if sig.BitLength, err = parseInt(rec[idx["bit_length"]]); err != nil {
		return sig, errors.Wrapf(err, "signal %s: bit_length", sig.Name)
	}
	for col, dst := range map[string]*float64{
		"factor":  &sig.Factor,
		"offset":  &sig.Offset,
		"min":     &sig.Min,
		"max":     &sig.Max,
		"default": &sig.Default,
	} {
		if *dst, err = parseFloat(rec[idx[col]]); err != nil {
			return sig, errors.Wrapf(err, "signal %s: %s", sig.Name, col)
		}
	}
	return sig, nil
}

func parseHexOrDecUint32(s string) (uint32, error) {
	ss := strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(ss, "0x") || strings.HasPrefix(ss, "0X") {
		base = 16
		ss = ss[2:]
	}
	u, err := strconv.ParseUint(ss, base, 32)
	if err != nil {
		return 0, err
	}
	return uint32(u), nil
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func parseBool(s string) bool {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

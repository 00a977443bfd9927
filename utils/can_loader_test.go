package utils

import (
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

const busMapHeader = "direction,frame_id,frame_name,cycle_ms,dlc,signal_name,start_bit,bit_length,endianness,signed,factor,offset,min,max,default,unit,comment\n"

func writeBusMap(t *testing.T, rows string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "drive_map.csv")
	err := os.WriteFile(path, []byte(busMapHeader+rows), 0o644)
	test.That(t, err, test.ShouldBeNil)
	return path
}

func TestLoadBusMap(t *testing.T) {
	path := writeBusMap(t,
		"rx,0x310,POSE_ESTIMATE,20,8,x_m,0,24,little,true,0.0001,0,-800,800,0,m,\n"+
			"rx,0x310,POSE_ESTIMATE,20,8,y_m,24,24,little,true,0.0001,0,-800,800,0,m,\n"+
			"rx,0x310,POSE_ESTIMATE,20,8,heading_rad,48,16,little,true,0.0001,0,-3.2768,3.2767,0,rad,\n"+
			"tx,0x210,DRIVE_VOLTAGE_CMD,20,4,left_volts,0,16,little,true,0.01,0,-12,12,0,V,\n"+
			"tx,0x210,DRIVE_VOLTAGE_CMD,20,4,right_volts,16,16,little,true,0.01,0,-12,12,0,V,\n")

	m, err := LoadBusMap(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.FrameNames(), test.ShouldResemble, []string{"DRIVE_VOLTAGE_CMD", "POSE_ESTIMATE"})

	pose, err := m.FrameByName("POSE_ESTIMATE")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pose.ID, test.ShouldEqual, uint32(0x310))
	test.That(t, pose.Direction, test.ShouldEqual, DirectionRx)
	test.That(t, len(pose.Signals), test.ShouldEqual, 3)
	// Signals come back sorted by start bit.
	test.That(t, pose.Signals[0].Name, test.ShouldEqual, "x_m")
	test.That(t, pose.Signals[2].Name, test.ShouldEqual, "heading_rad")

	_, err = m.FrameByID(0x210)
	test.That(t, err, test.ShouldBeNil)
	_, err = m.FrameByID(0x999)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLoadBusMapRejectsBadRows(t *testing.T) {
	for _, tc := range []struct {
		name string
		row  string
	}{
		{"bad direction", "sideways,0x310,POSE_ESTIMATE,20,8,x_m,0,24,little,true,0.0001,0,-800,800,0,m,\n"},
		{"bad dlc", "rx,0x310,POSE_ESTIMATE,20,12,x_m,0,24,little,true,0.0001,0,-800,800,0,m,\n"},
		{"zero factor", "rx,0x310,POSE_ESTIMATE,20,8,x_m,0,24,little,true,0,0,-800,800,0,m,\n"},
		{"big endian", "rx,0x310,POSE_ESTIMATE,20,8,x_m,0,24,big,true,0.0001,0,-800,800,0,m,\n"},
		{"bits exceed dlc", "rx,0x310,POSE_ESTIMATE,20,8,x_m,56,24,little,true,0.0001,0,-800,800,0,m,\n"},
		{"empty signal name", "rx,0x310,POSE_ESTIMATE,20,8,,0,24,little,true,0.0001,0,-800,800,0,m,\n"},
		{"bad frame id", "rx,0xZZ,POSE_ESTIMATE,20,8,x_m,0,24,little,true,0.0001,0,-800,800,0,m,\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadBusMap(writeBusMap(t, tc.row))
			test.That(t, err, test.ShouldNotBeNil)
		})
	}
}

func TestLoadBusMapInconsistentDLC(t *testing.T) {
	path := writeBusMap(t,
		"rx,0x310,POSE_ESTIMATE,20,8,x_m,0,24,little,true,0.0001,0,-800,800,0,m,\n"+
			"rx,0x310,POSE_ESTIMATE,20,6,y_m,24,16,little,true,0.0001,0,-800,800,0,m,\n")
	_, err := LoadBusMap(path)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLoadBusMapMissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drive_map.csv")
	err := os.WriteFile(path, []byte("direction,frame_id\nrx,0x310\n"), 0o644)
	test.That(t, err, test.ShouldBeNil)

	_, err = LoadBusMap(path)
	test.That(t, err, test.ShouldNotBeNil)
}

// internal/cia402/cia402_test.go
package cia402

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDecide(t *testing.T) {
	Convey("Given the enable sequence table", t, func() {
		table := []struct {
			status  uint16
			control uint16
		}{
			{0x0040, CtrlShutdown},
			{0x0021, CtrlSwitchOn},
			{0x0023, CtrlEnableOperation},
		}

		Convey("each handled state writes exactly its control word", func() {
			for _, row := range table {
				d := Decide(row.status, 0, GateCycle, DefaultModeWriteCycle)
				So(d.HasControl, ShouldBeTrue)
				So(d.Control, ShouldEqual, row.control)
				So(d.Dispatch, ShouldBeFalse)
				So(d.WriteMode, ShouldBeFalse)
			}
		})

		Convey("bits outside the mask do not change the decision", func() {
			// voltage enabled, remote, target reached, warning
			d := Decide(0x0040|0x0010|0x0200|0x0400|0x0080, 0, GateCycle, DefaultModeWriteCycle)
			So(d.State, ShouldEqual, StateSwitchOnDisabled)
			So(d.Control, ShouldEqual, CtrlShutdown)
		})

		Convey("the decision is deterministic", func() {
			for status := 0; status <= 0xFFFF; status += 0x0101 {
				a := Decide(uint16(status), 7, GateCycle, DefaultModeWriteCycle)
				b := Decide(uint16(status), 7, GateCycle, DefaultModeWriteCycle)
				So(a, ShouldResemble, b)
			}
		})
	})

	Convey("Given an unhandled masked state", t, func() {
		for _, status := range []uint16{0x0000, 0x0008, 0x000F, 0x0007, 0x0060} {
			d := Decide(status, 10, GateFirstEnabled, DefaultModeWriteCycle)

			Convey("nothing is written for "+FormatStatusWord(status), func() {
				So(d.HasControl, ShouldBeFalse)
				So(d.Dispatch, ShouldBeFalse)
				So(d.WriteMode, ShouldBeFalse)
			})
		}
	})

	Convey("Given operation enabled", t, func() {
		Convey("the cycle gate writes the mode only at the configured cycle", func() {
			So(Decide(0x0027, 9, GateCycle, 10).WriteMode, ShouldBeFalse)
			So(Decide(0x0027, 10, GateCycle, 10).WriteMode, ShouldBeTrue)
			So(Decide(0x0027, 11, GateCycle, 10).WriteMode, ShouldBeFalse)
		})

		Convey("the first-enabled gate requests the mode on any enabled cycle", func() {
			So(Decide(0x0027, 3, GateFirstEnabled, 10).WriteMode, ShouldBeTrue)
		})

		Convey("dispatch is allowed and no enable control is written", func() {
			d := Decide(0x0427, 0, GateCycle, 10)
			So(d.Dispatch, ShouldBeTrue)
			So(d.HasControl, ShouldBeFalse)
		})
	})
}

func TestDecode(t *testing.T) {
	Convey("Decode splits the status word", t, func() {
		s := Decode(0x0427)
		So(s.State, ShouldEqual, StateOperationEnabled)
		So(s.TargetReached, ShouldBeTrue)
		So(s.Fault, ShouldBeFalse)

		s = Decode(0x0008)
		So(s.Fault, ShouldBeTrue)
		So(s.TargetReached, ShouldBeFalse)
		So(s.SetPointAck, ShouldBeFalse)

		s = Decode(0x1027)
		So(s.SetPointAck, ShouldBeTrue)
		So(s.TargetReached, ShouldBeFalse)
	})
}

func TestFormatStatusWord(t *testing.T) {
	cases := map[uint16]string{
		0x0027: "0x0027",
		0x0000: "0x0000",
		0xABCD: "0xABCD",
		0x0a0f: "0x0A0F",
	}
	for in, want := range cases {
		if got := FormatStatusWord(in); got != want {
			t.Fatalf("FormatStatusWord(%#x) = %q, want %q", in, got, want)
		}
	}
}

func TestParseModeGate(t *testing.T) {
	if g, err := ParseModeGate("first_enabled"); err != nil || g != GateFirstEnabled {
		t.Fatalf("first_enabled: g=%v err=%v", g, err)
	}
	if g, err := ParseModeGate(""); err != nil || g != GateCycle {
		t.Fatalf("default: g=%v err=%v", g, err)
	}
	if _, err := ParseModeGate("sometimes"); err == nil {
		t.Fatalf("expected error for unknown gate")
	}
}

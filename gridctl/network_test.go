package gridctl_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/Simma37/energy-simulation/gridctl"
)

var networkErrorTests = []struct {
	testName    string
	zones       []gridctl.ZoneConfig
	conns       []gridctl.ConnConfig
	expectError string
}{{
	testName:    "no-zones",
	expectError: `invalid network configuration: no zones configured`,
}, {
	testName: "duplicate-zone-id",
	zones:    []gridctl.ZoneConfig{zone("A", 0), zone("A", 0)},
	expectError: `invalid network configuration: duplicate zone id "A"`,
}, {
	testName: "missing-zone-id",
	zones: []gridctl.ZoneConfig{{
		HydroMin:   1000,
		HydroMax:   11000,
		Efficiency: 1,
	}},
	expectError: `invalid network configuration: zone 0 has no id`,
}, {
	testName: "inverted-reservoir-bounds",
	zones: []gridctl.ZoneConfig{{
		ID:         "A",
		HydroMin:   5000,
		HydroMax:   5000,
		Efficiency: 1,
	}},
	expectError: `invalid network configuration: zone A: hydro_max 5000 not greater than hydro_min 5000`,
}, {
	testName: "bad-efficiency-and-threshold",
	zones: []gridctl.ZoneConfig{{
		ID:                   "A",
		HydroMin:             1000,
		HydroMax:             11000,
		Efficiency:           0,
		ForceExportThreshold: 1.5,
	}},
	expectError: `invalid network configuration: zone A: hydro efficiency 0 outside \(0, 1\]; zone A: force-export threshold 1\.5 outside \[0, 1\]`,
}, {
	testName: "connection-to-unknown-zone",
	zones:    []gridctl.ZoneConfig{zone("A", 0)},
	conns:    []gridctl.ConnConfig{conn("A", "X", 100, 0)},
	expectError: `invalid network configuration: connection A->X: unknown zone "X"`,
}, {
	testName: "self-loop",
	zones:    []gridctl.ZoneConfig{zone("A", 0)},
	conns:    []gridctl.ConnConfig{conn("A", "A", 100, 0)},
	expectError: `invalid network configuration: connection A->A connects a zone to itself`,
}, {
	testName: "non-positive-capacity-and-full-loss",
	zones:    []gridctl.ZoneConfig{zone("A", 0), zone("B", 0)},
	conns:    []gridctl.ConnConfig{conn("A", "B", 0, 1)},
	expectError: `invalid network configuration: connection A->B: capacity 0 not positive; connection A->B: loss factor 1 outside \[0, 1\)`,
}, {
	testName: "all-problems-reported-together",
	zones: []gridctl.ZoneConfig{{
		ID:         "A",
		HydroMin:   -1,
		HydroMax:   11000,
		Efficiency: 1,
	}},
	conns: []gridctl.ConnConfig{conn("A", "X", 100, 0)},
	expectError: `invalid network configuration: zone A: negative hydro_min -1; connection A->X: unknown zone "X"`,
}}

func TestNewNetworkErrors(t *testing.T) {
	c := qt.New(t)
	for _, test := range networkErrorTests {
		c.Run(test.testName, func(c *qt.C) {
			net, err := gridctl.NewNetwork(test.zones, test.conns)
			c.Assert(err, qt.ErrorMatches, test.expectError)
			c.Assert(net, qt.IsNil)
		})
	}
}

func TestNetworkIndexes(t *testing.T) {
	c := qt.New(t)
	net, err := gridctl.NewNetwork(
		[]gridctl.ZoneConfig{zone("C", 0), zone("A", 0), zone("B", 0)},
		[]gridctl.ConnConfig{
			conn("A", "B", 100, 0),
			conn("B", "A", 120, 0.1),
			conn("C", "B", 50, 0.05),
		},
	)
	c.Assert(err, qt.IsNil)

	c.Assert(net.ZoneIDs(), qt.DeepEquals, []string{"A", "B", "C"})
	zs := net.Zones()
	c.Assert(zs, qt.HasLen, 3)
	for i, id := range []string{"A", "B", "C"} {
		c.Check(zs[i].ID, qt.Equals, id)
		c.Check(net.Zone(id), qt.Equals, zs[i])
	}
	c.Check(net.Zone("X"), qt.IsNil)

	c.Assert(net.Conns(), qt.HasLen, 3)
	incoming := net.Incoming("B")
	c.Assert(incoming, qt.HasLen, 2)
	c.Check(incoming[0].From.ID, qt.Equals, "A")
	c.Check(incoming[1].From.ID, qt.Equals, "C")
	outgoing := net.Outgoing("B")
	c.Assert(outgoing, qt.HasLen, 1)
	c.Check(outgoing[0].To.ID, qt.Equals, "A")
	c.Check(net.Incoming("C"), qt.HasLen, 0)
}

func TestSetLevelClamps(t *testing.T) {
	c := qt.New(t)
	net, err := gridctl.NewNetwork([]gridctl.ZoneConfig{zone("A", 0)}, nil)
	c.Assert(err, qt.IsNil)
	z := net.Zone("A")

	note := z.SetLevel(6000)
	c.Check(note, qt.Equals, "")
	c.Check(z.Level, qt.Equals, 6000.0)

	note = z.SetLevel(12500)
	c.Check(note, qt.Equals, "A: reservoir level 12500 above maximum 11000; clamped")
	c.Check(z.Level, qt.Equals, 11000.0)

	note = z.SetLevel(200)
	c.Check(note, qt.Equals, "A: reservoir level 200 below minimum 1000; clamped")
	c.Check(z.Level, qt.Equals, 1000.0)
}

func TestRelativeFill(t *testing.T) {
	c := qt.New(t)
	z := &gridctl.Zone{
		ZoneConfig: gridctl.ZoneConfig{HydroMin: 1000, HydroMax: 11000},
	}
	z.Level = 1000
	c.Check(z.RelativeFill(), qt.Equals, 0.0)
	z.Level = 11000
	c.Check(z.RelativeFill(), qt.Equals, 1.0)
	z.Level = 3500
	c.Check(z.RelativeFill(), qt.Equals, 0.25)
}

func TestResetDay(t *testing.T) {
	c := qt.New(t)
	net, err := gridctl.NewNetwork(
		[]gridctl.ZoneConfig{zone("A", 0), zone("B", 500)},
		[]gridctl.ConnConfig{conn("B", "A", 50, 0)},
	)
	c.Assert(err, qt.IsNil)
	net.ResetDay()
	net.Zone("A").SetLevel(6000)
	net.Zone("B").SetLevel(10000)
	net.Zone("A").SetDayReadings(0, 100, 0)
	net.Zone("B").SetDayReadings(30, 0, 0)
	gridctl.BalanceDay(net, gridctl.BalanceParams{Phases: gridctl.AllPhases()})

	a := net.Zone("A")
	c.Assert(a.Imported > 0, qt.IsTrue)
	c.Assert(net.Conns()[0].Remaining < 50, qt.IsTrue)

	net.ResetDay()
	c.Check(net.Conns()[0].Remaining, qt.Equals, 50.0)
	for _, z := range net.Zones() {
		c.Check(z.Wind, qt.Equals, 0.0)
		c.Check(z.Demand, qt.Equals, 0.0)
		c.Check(z.Inflow, qt.Equals, 0.0)
		c.Check(z.WindUsed, qt.Equals, 0.0)
		c.Check(z.WindSurplus, qt.Equals, 0.0)
		c.Check(z.LocalHydro, qt.Equals, 0.0)
		c.Check(z.Imported, qt.Equals, 0.0)
		c.Check(z.Exported, qt.Equals, 0.0)
		c.Check(z.HydroExported, qt.Equals, 0.0)
		c.Check(z.Unmet, qt.Equals, 0.0)
	}
	// Reservoir levels survive the daily reset.
	c.Check(net.Zone("A").Level, qt.Equals, 6000.0)
	c.Check(net.Zone("B").Level, qt.Equals, 10000.0)
}

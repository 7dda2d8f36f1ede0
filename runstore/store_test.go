package runstore_test

import (
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/Simma37/energy-simulation/gridctl"
	"github.com/Simma37/energy-simulation/runstore"
	"github.com/Simma37/energy-simulation/simworker"
)

var epoch = time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time {
	return epoch.AddDate(0, 0, n)
}

func record(n int) simworker.DayRecord {
	return simworker.DayRecord{
		Date:   day(n),
		Warmup: n < 1,
		Zones: map[string]simworker.ZoneMetrics{
			"A": {
				Demand:       100,
				WindUsed:     20,
				Imported:     float64(n * 10),
				Level:        6000 - float64(n),
				RelativeFill: 0.5,
			},
		},
		Transfers: []gridctl.TransferRecord{{
			From:      "B",
			To:        "A",
			Hops:      1,
			Stage:     gridctl.StageOpen,
			Sent:      float64(n * 10),
			Delivered: float64(n * 10),
			Legs: []gridctl.LegUse{{
				From:         "B",
				To:           "A",
				CapacityUsed: float64(n * 10),
			}},
		}},
		Summary: simworker.Summary{
			Demand:        100,
			WindUsed:      20,
			OneHopImports: float64(n * 10),
		},
		Notes: []string{"note"},
	}
}

func TestMemStore(t *testing.T) {
	c := qt.New(t)
	s := runstore.NewMemStore()
	c.Assert(s.AddDay(record(0)), qt.IsNil)
	c.Assert(s.AddDay(record(1)), qt.IsNil)

	days := s.Days()
	c.Assert(days, qt.HasLen, 2)
	c.Assert(days[0], qt.DeepEquals, record(0))
	c.Assert(days[1], qt.DeepEquals, record(1))

	// The returned slice is a copy.
	days[0] = simworker.DayRecord{}
	c.Assert(s.Days()[0], qt.DeepEquals, record(0))
}

func TestBoltStore(t *testing.T) {
	c := qt.New(t)
	path := filepath.Join(c.Mkdir(), "run.db")
	s, err := runstore.Open(path)
	c.Assert(err, qt.IsNil)

	for n := 0; n < 4; n++ {
		c.Assert(s.AddDay(record(n)), qt.IsNil)
	}

	days, err := s.Days(time.Time{}, time.Time{})
	c.Assert(err, qt.IsNil)
	c.Assert(days, qt.HasLen, 4)
	for n, rec := range days {
		c.Assert(rec, qt.DeepEquals, record(n))
	}

	// Half-open date ranges.
	days, err = s.Days(day(1), day(3))
	c.Assert(err, qt.IsNil)
	c.Assert(days, qt.HasLen, 2)
	c.Check(days[0].Date, qt.DeepEquals, day(1))
	c.Check(days[1].Date, qt.DeepEquals, day(2))

	days, err = s.Days(day(2), time.Time{})
	c.Assert(err, qt.IsNil)
	c.Assert(days, qt.HasLen, 2)

	// Re-adding a date replaces its record.
	rec := record(0)
	rec.Summary.Unmet = 42
	c.Assert(s.AddDay(rec), qt.IsNil)

	c.Assert(s.Close(), qt.IsNil)

	// The records survive a reopen.
	s, err = runstore.Open(path)
	c.Assert(err, qt.IsNil)
	defer s.Close()
	days, err = s.Days(time.Time{}, time.Time{})
	c.Assert(err, qt.IsNil)
	c.Assert(days, qt.HasLen, 4)
	c.Check(days[0].Summary.Unmet, qt.Equals, 42.0)
	c.Assert(days[3], qt.DeepEquals, record(3))
}

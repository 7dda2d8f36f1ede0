package zonestat

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/errgo.v1"
)

// Reading holds one zone's input readings for a single day.
// A quantity with no data for the day reads as zero.
type Reading struct {
	// Wind holds the day's wind production in MWh.
	Wind float64
	// Demand holds the day's consumption in MWh.
	Demand float64
	// Inflow holds the day's reservoir inflow in MWh equivalent.
	Inflow float64
}

// Source provides daily readings to the simulator.
type Source interface {
	// ReadDay returns the given zone's readings for the given day.
	// It returns ok=false when the source has no data at all for
	// that zone and day; the caller substitutes zeroes.
	ReadDay(zoneID string, date time.Time) (Reading, bool)

	// FirstFill returns the zone's earliest observed absolute
	// reservoir level, if the source has one. It is used to seed
	// the reservoir at the start of a run.
	FirstFill(zoneID string) (float64, bool)
}

// zoneSeries holds the four per-zone series a source can provide.
type zoneSeries struct {
	wind   *Series
	demand *Series
	inflow *Series
	fill   *Series
}

func (zs *zoneSeries) readDay(date time.Time) (Reading, bool) {
	var (
		r  Reading
		ok bool
	)
	if v, vok := zs.wind.Value(date); vok {
		r.Wind = v
		ok = true
	}
	if v, vok := zs.demand.Value(date); vok {
		r.Demand = v
		ok = true
	}
	if v, vok := zs.inflow.Value(date); vok {
		r.Inflow = v
		ok = true
	}
	return r, ok
}

// DirSource reads zone series from a directory holding one file per
// zone and quantity, named <zone>_wind.series, <zone>_demand.series,
// <zone>_inflow.series and <zone>_fill.series in the format understood
// by NewPointReader.
type DirSource struct {
	zones map[string]*zoneSeries
}

// OpenDir opens a DirSource over the given directory for the given
// zones. A missing series file leaves that series empty; a malformed
// one is an error.
func OpenDir(dir string, zoneIDs []string) (*DirSource, error) {
	src := &DirSource{
		zones: make(map[string]*zoneSeries),
	}
	for _, id := range zoneIDs {
		zs := &zoneSeries{}
		for _, q := range []struct {
			name   string
			policy GapPolicy
			series **Series
		}{
			{"wind", GapNone, &zs.wind},
			{"demand", GapHold, &zs.demand},
			{"inflow", GapNone, &zs.inflow},
			{"fill", GapNone, &zs.fill},
		} {
			path := filepath.Join(dir, id+"_"+q.name+".series")
			s, err := readSeriesFile(path, q.policy)
			if err != nil {
				return nil, errgo.Mask(err)
			}
			*q.series = s
		}
		if zs.wind.Len()+zs.demand.Len()+zs.inflow.Len() == 0 {
			log.Printf("zonestat: no series data for zone %s in %s", id, dir)
		}
		src.zones[id] = zs
	}
	return src, nil
}

func readSeriesFile(path string, policy GapPolicy) (*Series, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return NewSeries(nil, policy), nil
	}
	if err != nil {
		return nil, errgo.Mask(err)
	}
	defer f.Close()
	s, err := ReadSeries(NewPointReader(f), policy)
	if err != nil {
		return nil, errgo.Notef(err, "cannot read series file %q", path)
	}
	return s, nil
}

// ReadDay implements Source.ReadDay.
func (src *DirSource) ReadDay(zoneID string, date time.Time) (Reading, bool) {
	zs := src.zones[zoneID]
	if zs == nil {
		return Reading{}, false
	}
	return zs.readDay(date)
}

// FirstFill implements Source.FirstFill from the zone's fill series.
func (src *DirSource) FirstFill(zoneID string) (float64, bool) {
	zs := src.zones[zoneID]
	if zs == nil {
		return 0, false
	}
	p, ok := zs.fill.First()
	if !ok {
		return 0, false
	}
	return p.Value, true
}

// MemSource is an in-memory Source, mainly useful in tests.
type MemSource struct {
	readings map[string]map[string]Reading
	fills    map[string]float64
}

func NewMemSource() *MemSource {
	return &MemSource{
		readings: make(map[string]map[string]Reading),
		fills:    make(map[string]float64),
	}
}

// Add records the given zone's readings for the given day.
func (src *MemSource) Add(zoneID string, date time.Time, r Reading) {
	m := src.readings[zoneID]
	if m == nil {
		m = make(map[string]Reading)
		src.readings[zoneID] = m
	}
	m[date.Format(dateFormat)] = r
}

// SetFirstFill records the zone's initial absolute reservoir level.
func (src *MemSource) SetFirstFill(zoneID string, level float64) {
	src.fills[zoneID] = level
}

// ReadDay implements Source.ReadDay.
func (src *MemSource) ReadDay(zoneID string, date time.Time) (Reading, bool) {
	r, ok := src.readings[zoneID][date.Format(dateFormat)]
	return r, ok
}

// FirstFill implements Source.FirstFill.
func (src *MemSource) FirstFill(zoneID string) (float64, bool) {
	level, ok := src.fills[zoneID]
	return level, ok
}

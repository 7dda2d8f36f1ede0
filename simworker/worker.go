// Package simworker runs a multi-day simulation over a zone network.
// It pulls each day's readings from a zonestat source, hands them to
// the gridctl balancing engine, settles every reservoir's water
// balance and stores one record per simulated day.
package simworker

import (
	"context"
	"fmt"
	"log"
	"time"

	"gopkg.in/errgo.v1"

	"github.com/Simma37/energy-simulation/gridctl"
	"github.com/Simma37/energy-simulation/zonestat"
)

const dateFormat = "2006-01-02"

// Params holds parameters for creating a new Worker.
type Params struct {
	// Network holds the zone network to simulate. The worker owns
	// it for the duration of the run.
	Network *gridctl.Network
	// Source provides the daily readings.
	Source zonestat.Source
	// Store receives one record per simulated day.
	Store Store
	// Updater is notified after every simulated day.
	// It may be nil.
	Updater Updater
	// Phases selects the balancing stages to run.
	Phases gridctl.Phases
	// Factors scale the inputs. Zero fields mean 1.
	Factors Factors
	// Start holds the date of the first simulated day.
	Start time.Time
	// Days holds the number of days to simulate, warm-up included.
	Days int
	// WarmupDays holds the number of leading days marked as
	// warm-up. They are simulated normally but excluded from
	// reports.
	WarmupDays int
	// Logger receives the engine's per-decision trace.
	// It may be nil.
	Logger gridctl.Logger
}

// Factors scale the simulation's inputs. Consumption, Wind and Inflow
// multiply each day's readings; ReservoirFill multiplies the initial
// fill fraction only.
type Factors struct {
	Consumption   float64
	Wind          float64
	Inflow        float64
	ReservoirFill float64
}

// normalized returns f with zero fields replaced by 1 so that the
// zero value means "unscaled".
func (f Factors) normalized() Factors {
	def := func(v *float64) {
		if *v == 0 {
			*v = 1
		}
	}
	def(&f.Consumption)
	def(&f.Wind)
	def(&f.Inflow)
	def(&f.ReservoirFill)
	return f
}

// Store is used to store day records persistently.
type Store interface {
	AddDay(DayRecord) error
}

// Updater is called after each simulated day. The call to UpdateDay
// should not make any calls back into the Worker.
type Updater interface {
	UpdateDay(DayRecord)
}

// ZoneMetrics holds one zone's results for one simulated day.
type ZoneMetrics struct {
	Wind          float64
	Demand        float64
	Inflow        float64
	WindUsed      float64
	LocalHydro    float64
	Imported      float64
	Exported      float64
	HydroExported float64
	Unmet         float64
	// Level and RelativeFill hold the reservoir state at the end of
	// the day, after the water balance.
	Level        float64
	RelativeFill float64
	Spill        float64
	Shortfall    float64
}

// Summary holds the day's system-wide totals. Import totals are in
// delivered (post-loss) units.
type Summary struct {
	Demand        float64
	WindUsed      float64
	OneHopImports float64
	TwoHopImports float64
	LocalHydro    float64
	Unmet         float64
}

// DayRecord holds the complete result of one simulated day.
type DayRecord struct {
	Date time.Time
	// Warmup marks a day inside the warm-up period. Warm-up days
	// are simulated normally but excluded from reports.
	Warmup    bool
	Zones     map[string]ZoneMetrics
	Transfers []gridctl.TransferRecord
	Summary   Summary
	// Notes holds the day's data-quality and water-balance notes.
	Notes []string
}

// Worker runs a simulation to completion.
type Worker struct {
	p       Params
	factors Factors
	// initNotes holds reservoir-seeding notes, attached to the
	// first day's record.
	initNotes []string
}

// New returns a worker ready to simulate p.Days days, with every
// zone's reservoir seeded to its starting level.
func New(p Params) (*Worker, error) {
	if p.Network == nil || p.Source == nil || p.Store == nil {
		return nil, errgo.New("simworker: network, source and store are all required")
	}
	if p.Days <= 0 {
		return nil, errgo.Newf("simworker: days %d not positive", p.Days)
	}
	if p.WarmupDays < 0 || p.WarmupDays >= p.Days {
		return nil, errgo.Newf("simworker: warmup days %d outside [0, %d)", p.WarmupDays, p.Days)
	}
	w := &Worker{
		p:       p,
		factors: p.Factors.normalized(),
	}
	w.seedReservoirs()
	return w, nil
}

// seedReservoirs sets every zone's starting level. A zone with an
// observed initial level in the source starts there; otherwise its
// configured initial fill is used. The reservoir-fill factor scales
// the fill fraction in both cases.
func (w *Worker) seedReservoirs() {
	for _, z := range w.p.Network.Zones() {
		span := z.HydroMax - z.HydroMin
		fill := z.InitialFill
		if level, ok := w.p.Source.FirstFill(z.ID); ok && span > 0 {
			fill = (level - z.HydroMin) / span
		}
		fill *= w.factors.ReservoirFill
		if note := z.SetLevel(z.HydroMin + fill*span); note != "" {
			w.noteInit(note)
		}
	}
}

func (w *Worker) noteInit(note string) {
	log.Printf("simworker: %s", note)
	w.initNotes = append(w.initNotes, note)
}

// Run simulates every day in order, storing one record per day and
// notifying the updater after each. It stops early only if the
// context is cancelled or the store fails.
func (w *Worker) Run(ctx context.Context) error {
	for i := 0; i < w.p.Days; i++ {
		select {
		case <-ctx.Done():
			return errgo.Mask(ctx.Err(), errgo.Any)
		default:
		}
		rec := w.runDay(i)
		if err := w.p.Store.AddDay(rec); err != nil {
			return errgo.Notef(err, "cannot store day %s", rec.Date.Format(dateFormat))
		}
		if w.p.Updater != nil {
			w.p.Updater.UpdateDay(rec)
		}
	}
	return nil
}

// runDay simulates one day: read, balance, settle water, summarize.
func (w *Worker) runDay(i int) DayRecord {
	net := w.p.Network
	date := w.p.Start.AddDate(0, 0, i)
	net.ResetDay()

	var notes []string
	if i == 0 {
		notes = append(notes, w.initNotes...)
	}
	note := func(f string, a ...interface{}) {
		s := fmt.Sprintf(f, a...)
		log.Printf("simworker: %s", s)
		notes = append(notes, s)
	}

	for _, z := range net.Zones() {
		r, ok := w.p.Source.ReadDay(z.ID, date)
		if !ok {
			note("%s: no readings for %s; zero assumed", z.ID, date.Format(dateFormat))
		}
		z.SetDayReadings(
			r.Wind*w.factors.Wind,
			r.Demand*w.factors.Consumption,
			r.Inflow*w.factors.Inflow,
		)
	}

	transfers := gridctl.BalanceDay(net, gridctl.BalanceParams{
		Phases: w.p.Phases,
		Logger: w.p.Logger,
	})

	// Water balance: the day's hydro production drains each
	// reservoir by the water it took to generate, inflow refills it,
	// and anything outside the reservoir bounds is recorded as spill
	// or shortfall and clamped away.
	for _, z := range net.Zones() {
		waterUsed := (z.LocalHydro + z.HydroExported) / z.Efficiency
		level := z.Level - waterUsed + z.Inflow
		if over := level - z.HydroMax; over > 0 {
			z.Spill = over
			note("%s: reservoir spilled %.6g on %s", z.ID, over, date.Format(dateFormat))
		}
		if under := z.HydroMin - level; under > 0 {
			z.Shortfall = under
			note("%s: reservoir short by %.6g on %s", z.ID, under, date.Format(dateFormat))
		}
		z.SetLevel(level)
	}

	rec := DayRecord{
		Date:      date,
		Warmup:    i < w.p.WarmupDays,
		Zones:     make(map[string]ZoneMetrics),
		Transfers: transfers,
		Notes:     notes,
	}
	for _, z := range net.Zones() {
		rec.Zones[z.ID] = ZoneMetrics{
			Wind:          z.Wind,
			Demand:        z.Demand,
			Inflow:        z.Inflow,
			WindUsed:      z.WindUsed,
			LocalHydro:    z.LocalHydro,
			Imported:      z.Imported,
			Exported:      z.Exported,
			HydroExported: z.HydroExported,
			Unmet:         z.Unmet,
			Level:         z.Level,
			RelativeFill:  z.RelativeFill(),
			Spill:         z.Spill,
			Shortfall:     z.Shortfall,
		}
		rec.Summary.Demand += z.Demand
		rec.Summary.WindUsed += z.WindUsed
		rec.Summary.LocalHydro += z.LocalHydro
		rec.Summary.Unmet += z.Unmet
	}
	for _, t := range transfers {
		if t.Hops == 2 {
			rec.Summary.TwoHopImports += t.Delivered
		} else {
			rec.Summary.OneHopImports += t.Delivered
		}
	}
	return rec
}

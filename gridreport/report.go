// Package gridreport summarizes a simulation run: a daily CSV of
// system-wide energy components, per-zone totals and the transfer
// totals between zones. Warm-up days are excluded from every report.
package gridreport

import (
	"fmt"
	"io"
	"sort"

	"github.com/Simma37/energy-simulation/simworker"
)

// reported filters out warm-up days.
func reported(days []simworker.DayRecord) []simworker.DayRecord {
	var out []simworker.DayRecord
	for _, d := range days {
		if !d.Warmup {
			out = append(out, d)
		}
	}
	return out
}

// WriteDailyCSV writes one CSV line per reported day with the
// system-wide energy components, in MWh.
func WriteDailyCSV(w io.Writer, days []simworker.DayRecord) error {
	if _, err := fmt.Fprintln(w, "Date,"+
		"Demand (MWh),"+
		"Wind used (MWh),"+
		"Local hydro (MWh),"+
		"One-hop imports (MWh),"+
		"Two-hop imports (MWh),"+
		"Unmet (MWh)",
	); err != nil {
		return err
	}
	for _, d := range reported(days) {
		s := d.Summary
		if _, err := fmt.Fprintf(w, "%s,%s,%s,%s,%s,%s,%s\n",
			d.Date.Format("2006-01-02"),
			energyStr(s.Demand),
			energyStr(s.WindUsed),
			energyStr(s.LocalHydro),
			energyStr(s.OneHopImports),
			energyStr(s.TwoHopImports),
			energyStr(s.Unmet),
		); err != nil {
			return err
		}
	}
	return nil
}

func energyStr(f float64) string {
	return fmt.Sprintf("%.3f", f)
}

// ZoneTotals holds one zone's totals over the reported days,
// plus each component's share of the zone's total demand.
type ZoneTotals struct {
	ID         string
	Demand     float64
	WindUsed   float64
	LocalHydro float64
	Imported   float64
	Exported   float64
	Unmet      float64
	Spill      float64

	// Percentages of Demand. Zero when Demand is zero.
	WindUsedPct   float64
	LocalHydroPct float64
	ImportedPct   float64
	UnmetPct      float64

	// StorageChange holds the reservoir level difference between
	// the last and first reported day.
	StorageChange float64
}

// RunTotals holds the whole run's aggregation over reported days.
type RunTotals struct {
	Days   int
	Zones  []ZoneTotals
	System ZoneTotals
}

// Totals aggregates the reported days. The system entry sums every
// zone; its percentages are relative to total demand.
func Totals(days []simworker.DayRecord) RunTotals {
	days = reported(days)
	totals := RunTotals{
		Days: len(days),
	}
	byID := make(map[string]*ZoneTotals)
	first := make(map[string]float64)
	var ids []string
	for i, d := range days {
		for id, m := range d.Zones {
			zt := byID[id]
			if zt == nil {
				zt = &ZoneTotals{ID: id}
				byID[id] = zt
				ids = append(ids, id)
			}
			zt.Demand += m.Demand
			zt.WindUsed += m.WindUsed
			zt.LocalHydro += m.LocalHydro
			zt.Imported += m.Imported
			zt.Exported += m.Exported
			zt.Unmet += m.Unmet
			zt.Spill += m.Spill
			if _, ok := first[id]; !ok {
				// Levels are end-of-day, so storage change
				// runs from the close of the first reported
				// day to the close of the last.
				first[id] = m.Level
			}
			if i == len(days)-1 {
				zt.StorageChange = m.Level - first[id]
			}
		}
	}
	sort.Strings(ids)
	totals.System.ID = "system"
	for _, id := range ids {
		zt := byID[id]
		setPercentages(zt)
		totals.System.Demand += zt.Demand
		totals.System.WindUsed += zt.WindUsed
		totals.System.LocalHydro += zt.LocalHydro
		totals.System.Imported += zt.Imported
		totals.System.Exported += zt.Exported
		totals.System.Unmet += zt.Unmet
		totals.System.Spill += zt.Spill
		totals.System.StorageChange += zt.StorageChange
		totals.Zones = append(totals.Zones, *zt)
	}
	setPercentages(&totals.System)
	return totals
}

func setPercentages(zt *ZoneTotals) {
	if zt.Demand <= 0 {
		return
	}
	zt.WindUsedPct = 100 * zt.WindUsed / zt.Demand
	zt.LocalHydroPct = 100 * zt.LocalHydro / zt.Demand
	zt.ImportedPct = 100 * zt.Imported / zt.Demand
	zt.UnmetPct = 100 * zt.Unmet / zt.Demand
}

// TransferTotal holds the total delivered energy over one route for
// the whole run.
type TransferTotal struct {
	From string
	To   string
	// Transit is empty for one-hop routes.
	Transit   string
	Delivered float64
}

// TransferTotals aggregates the reported days' transfers by route,
// one-hop routes first, then two-hop, each sorted by from then to
// then transit.
func TransferTotals(days []simworker.DayRecord) []TransferTotal {
	byRoute := make(map[TransferTotal]float64)
	for _, d := range reported(days) {
		for _, t := range d.Transfers {
			key := TransferTotal{From: t.From, To: t.To, Transit: t.Transit}
			byRoute[key] += t.Delivered
		}
	}
	routes := make([]TransferTotal, 0, len(byRoute))
	for key, delivered := range byRoute {
		key.Delivered = delivered
		routes = append(routes, key)
	}
	sort.Slice(routes, func(i, j int) bool {
		r0, r1 := routes[i], routes[j]
		if (r0.Transit == "") != (r1.Transit == "") {
			return r0.Transit == ""
		}
		if r0.From != r1.From {
			return r0.From < r1.From
		}
		if r0.To != r1.To {
			return r0.To < r1.To
		}
		return r0.Transit < r1.Transit
	})
	return routes
}

// WriteSummary writes a human-readable run summary: per-zone totals,
// system totals and the transfer table.
func WriteSummary(w io.Writer, days []simworker.DayRecord) error {
	totals := Totals(days)
	fmt.Fprintf(w, "%d days reported\n\n", totals.Days)
	fmt.Fprintf(w, "%-8s %12s %12s %12s %12s %12s %12s %12s\n",
		"zone", "demand", "wind", "hydro", "imported", "exported", "unmet", "storage")
	for _, zt := range append(totals.Zones, totals.System) {
		fmt.Fprintf(w, "%-8s %12.1f %12.1f %12.1f %12.1f %12.1f %12.1f %+12.1f\n",
			zt.ID, zt.Demand, zt.WindUsed, zt.LocalHydro,
			zt.Imported, zt.Exported, zt.Unmet, zt.StorageChange)
	}
	transfers := TransferTotals(days)
	if len(transfers) == 0 {
		return nil
	}
	fmt.Fprintf(w, "\n%-8s %-8s %-8s %12s\n", "from", "to", "via", "delivered")
	for _, t := range transfers {
		via := t.Transit
		if via == "" {
			via = "-"
		}
		fmt.Fprintf(w, "%-8s %-8s %-8s %12.1f\n", t.From, t.To, via, t.Delivered)
	}
	return nil
}

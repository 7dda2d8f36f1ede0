// Package gridcharts builds the JSON documents consumed by charting
// front ends: Google Charts data tables for the time series and a
// node/edge document for the network diagram. Warm-up days are
// excluded throughout.
package gridcharts

import (
	"fmt"
	"time"

	"github.com/Simma37/energy-simulation/gridctl"
	"github.com/Simma37/energy-simulation/gridreport"
	"github.com/Simma37/energy-simulation/simworker"
)

// DataTable holds the contents of a data table. When marshaled as
// JSON, it is suitable for passing to dataview.fromJSON.
type DataTable struct {
	Cols []Column `json:"cols"`
	Rows []Row    `json:"rows"`
}

type Column struct {
	Type  DataType `json:"type"`
	Id    string   `json:"id"`
	Label string   `json:"label,omitempty"`
}

type Row struct {
	Cells []Cell `json:"c"`
}

type Cell struct {
	Value  interface{} `json:"v,omitempty"`
	Format string      `json:"f,omitempty"`
}

type DataType string

const (
	TNumber DataType = "number"
	TString DataType = "string"
	TDate   DataType = "date"
)

// dateCell encodes a time in the Date(ms) form understood by
// dataview.fromJSON.
func dateCell(t time.Time) Cell {
	return Cell{Value: fmt.Sprintf("Date(%d)", t.UnixNano()/1e6)}
}

func numberCell(v float64) Cell {
	return Cell{Value: v}
}

// DailyComponents returns a table with one row per reported day
// holding the system-wide energy components, suitable for a stacked
// area chart.
func DailyComponents(days []simworker.DayRecord) *DataTable {
	dt := &DataTable{
		Cols: []Column{
			{Type: TDate, Id: "date", Label: "Date"},
			{Type: TNumber, Id: "wind", Label: "Wind used"},
			{Type: TNumber, Id: "hydro", Label: "Local hydro"},
			{Type: TNumber, Id: "import1", Label: "One-hop imports"},
			{Type: TNumber, Id: "import2", Label: "Two-hop imports"},
			{Type: TNumber, Id: "unmet", Label: "Unmet"},
		},
	}
	for _, d := range days {
		if d.Warmup {
			continue
		}
		s := d.Summary
		dt.Rows = append(dt.Rows, Row{Cells: []Cell{
			dateCell(d.Date),
			numberCell(s.WindUsed),
			numberCell(s.LocalHydro),
			numberCell(s.OneHopImports),
			numberCell(s.TwoHopImports),
			numberCell(s.Unmet),
		}})
	}
	return dt
}

// ReservoirFill returns a table with one row per reported day holding
// each given zone's relative reservoir fill at the end of the day.
func ReservoirFill(days []simworker.DayRecord, zoneIDs []string) *DataTable {
	dt := &DataTable{
		Cols: make([]Column, 0, len(zoneIDs)+1),
	}
	dt.Cols = append(dt.Cols, Column{Type: TDate, Id: "date", Label: "Date"})
	for _, id := range zoneIDs {
		dt.Cols = append(dt.Cols, Column{Type: TNumber, Id: id, Label: id})
	}
	for _, d := range days {
		if d.Warmup {
			continue
		}
		cells := make([]Cell, 0, len(zoneIDs)+1)
		cells = append(cells, dateCell(d.Date))
		for _, id := range zoneIDs {
			cells = append(cells, numberCell(d.Zones[id].RelativeFill))
		}
		dt.Rows = append(dt.Rows, Row{Cells: cells})
	}
	return dt
}

// Diagram holds the network diagram document: zone nodes at their
// configured coordinates and one edge per transfer route used over
// the reported days.
type Diagram struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

type Node struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	// Fill holds the zone's relative reservoir fill on the last
	// reported day.
	Fill float64 `json:"fill"`
}

type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
	Hops int    `json:"hops"`
	// Transit is empty for one-hop routes.
	Transit string `json:"transit,omitempty"`
	// Delivered holds the total energy delivered over the route
	// across the reported days.
	Delivered float64 `json:"delivered"`
}

// NetworkDiagram builds the diagram document for the given network and
// run.
func NetworkDiagram(net *gridctl.Network, days []simworker.DayRecord) Diagram {
	var last *simworker.DayRecord
	for i := range days {
		if !days[i].Warmup {
			last = &days[i]
		}
	}
	var diagram Diagram
	for _, z := range net.Zones() {
		fill := z.RelativeFill()
		if last != nil {
			if m, ok := last.Zones[z.ID]; ok {
				fill = m.RelativeFill
			}
		}
		diagram.Nodes = append(diagram.Nodes, Node{
			ID:   z.ID,
			Name: z.Name,
			X:    z.X,
			Y:    z.Y,
			Fill: fill,
		})
	}
	for _, t := range gridreport.TransferTotals(days) {
		hops := 1
		if t.Transit != "" {
			hops = 2
		}
		diagram.Edges = append(diagram.Edges, Edge{
			From:      t.From,
			To:        t.To,
			Hops:      hops,
			Transit:   t.Transit,
			Delivered: t.Delivered,
		})
	}
	return diagram
}

package gridserver_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/gorilla/websocket"

	"github.com/Simma37/energy-simulation/gridcharts"
	"github.com/Simma37/energy-simulation/gridctl"
	"github.com/Simma37/energy-simulation/gridreport"
	"github.com/Simma37/energy-simulation/gridserver"
	"github.com/Simma37/energy-simulation/runstore"
	"github.com/Simma37/energy-simulation/simworker"
)

var epoch = time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time {
	return epoch.AddDate(0, 0, n)
}

func testRecord(n int, warmup bool) simworker.DayRecord {
	return simworker.DayRecord{
		Date:   day(n),
		Warmup: warmup,
		Zones: map[string]simworker.ZoneMetrics{
			"A": {Demand: 100, WindUsed: 40, Imported: 55, Unmet: 5, Level: 6000, RelativeFill: 0.5},
			"B": {Exported: 60, Level: 9000, RelativeFill: 0.8},
		},
		Transfers: []gridctl.TransferRecord{{
			From: "B", To: "A", Hops: 1, Stage: gridctl.StageOpen, Sent: 60, Delivered: 55,
		}},
		Summary: simworker.Summary{
			Demand: 100, WindUsed: 40, OneHopImports: 55, Unmet: 5,
		},
	}
}

func newTestServer(c *qt.C) (*gridserver.Server, *httptest.Server, *runstore.MemStore) {
	net, err := gridctl.NewNetwork(
		[]gridctl.ZoneConfig{{
			ID:         "A",
			Name:       "A",
			HydroMin:   1000,
			HydroMax:   11000,
			Efficiency: 1,
		}, {
			ID:         "B",
			Name:       "B",
			HydroMin:   1000,
			HydroMax:   11000,
			Efficiency: 1,
		}},
		[]gridctl.ConnConfig{{From: "B", To: "A", Capacity: 100}},
	)
	c.Assert(err, qt.IsNil)

	store := runstore.NewMemStore()
	c.Assert(store.AddDay(testRecord(0, true)), qt.IsNil)
	c.Assert(store.AddDay(testRecord(1, false)), qt.IsNil)

	srv, err := gridserver.New(gridserver.Params{
		Store:   store,
		Network: net,
	})
	c.Assert(err, qt.IsNil)
	hsrv := httptest.NewServer(srv)
	c.Cleanup(hsrv.Close)
	return srv, hsrv, store
}

func getJSON(c *qt.C, url string, dst interface{}) {
	resp, err := http.Get(url)
	c.Assert(err, qt.IsNil)
	defer resp.Body.Close()
	c.Assert(resp.StatusCode, qt.Equals, http.StatusOK)
	err = json.NewDecoder(resp.Body).Decode(dst)
	c.Assert(err, qt.IsNil)
}

func TestSummary(t *testing.T) {
	c := qt.New(t)
	_, hsrv, _ := newTestServer(c)

	var totals gridreport.RunTotals
	getJSON(c, hsrv.URL+"/v1/summary", &totals)
	c.Check(totals.Days, qt.Equals, 1)
	c.Assert(totals.Zones, qt.HasLen, 2)
	c.Check(totals.System.Demand, qt.Equals, 100.0)
	c.Check(totals.System.Unmet, qt.Equals, 5.0)
}

func TestDays(t *testing.T) {
	c := qt.New(t)
	_, hsrv, _ := newTestServer(c)

	var days []simworker.DayRecord
	getJSON(c, hsrv.URL+"/v1/days", &days)
	c.Assert(days, qt.HasLen, 2)
	c.Check(days[0].Warmup, qt.IsTrue)

	days = nil
	getJSON(c, hsrv.URL+"/v1/days?from=2015-01-02", &days)
	c.Assert(days, qt.HasLen, 1)
	c.Check(days[0].Date.Equal(day(1)), qt.IsTrue)

	days = nil
	getJSON(c, hsrv.URL+"/v1/days?to=2015-01-02", &days)
	c.Assert(days, qt.HasLen, 1)
	c.Check(days[0].Date.Equal(day(0)), qt.IsTrue)

	resp, err := http.Get(hsrv.URL + "/v1/days?from=bogus")
	c.Assert(err, qt.IsNil)
	defer resp.Body.Close()
	c.Assert(resp.StatusCode, qt.Equals, http.StatusBadRequest)
	var herr struct {
		Message string `json:"message"`
	}
	err = json.NewDecoder(resp.Body).Decode(&herr)
	c.Assert(err, qt.IsNil)
	c.Check(herr.Message, qt.Matches, `bad date "bogus" \(want YYYY-MM-DD\)`)
}

func TestCharts(t *testing.T) {
	c := qt.New(t)
	_, hsrv, _ := newTestServer(c)

	var daily gridcharts.DataTable
	getJSON(c, hsrv.URL+"/v1/charts/daily", &daily)
	c.Assert(daily.Cols, qt.HasLen, 6)
	// Only the non-warm-up day is charted.
	c.Assert(daily.Rows, qt.HasLen, 1)

	var reservoir gridcharts.DataTable
	getJSON(c, hsrv.URL+"/v1/charts/reservoir", &reservoir)
	c.Assert(reservoir.Cols, qt.HasLen, 3)
	c.Assert(reservoir.Rows, qt.HasLen, 1)
}

func TestNetworkDiagram(t *testing.T) {
	c := qt.New(t)
	_, hsrv, _ := newTestServer(c)

	var diagram gridcharts.Diagram
	getJSON(c, hsrv.URL+"/v1/network", &diagram)
	c.Assert(diagram.Nodes, qt.HasLen, 2)
	c.Check(diagram.Nodes[0].ID, qt.Equals, "A")
	c.Check(diagram.Nodes[0].Fill, qt.Equals, 0.5)
	c.Assert(diagram.Edges, qt.HasLen, 1)
	c.Check(diagram.Edges[0].Delivered, qt.Equals, 55.0)
}

func TestProgressWebsocket(t *testing.T) {
	c := qt.New(t)
	srv, hsrv, _ := newTestServer(c)

	url := "ws" + strings.TrimPrefix(hsrv.URL, "http") + "/v1/progress"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	c.Assert(err, qt.IsNil)
	defer conn.Close()

	srv.UpdateDay(testRecord(2, false))
	var ev gridserver.ProgressEvent
	c.Assert(conn.ReadJSON(&ev), qt.IsNil)
	c.Check(ev.Day, qt.Equals, 1)
	c.Check(ev.Date.Equal(day(2)), qt.IsTrue)
	c.Check(ev.Summary.Demand, qt.Equals, 100.0)

	srv.UpdateDay(testRecord(3, false))
	c.Assert(conn.ReadJSON(&ev), qt.IsNil)
	c.Check(ev.Day, qt.Equals, 2)
	c.Check(ev.Date.Equal(day(3)), qt.IsTrue)
}

func TestNewRequiresCollaborators(t *testing.T) {
	c := qt.New(t)
	_, err := gridserver.New(gridserver.Params{})
	c.Assert(err, qt.ErrorMatches, "gridserver: store and network are both required")
}

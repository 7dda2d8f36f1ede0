// Package gridserver serves a simulation run over HTTP: aggregated
// totals, day records, chart documents and a websocket feed that
// follows a run in progress.
package gridserver

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	errgo "gopkg.in/errgo.v1"
	"gopkg.in/httprequest.v1"

	"github.com/Simma37/energy-simulation/gridcharts"
	"github.com/Simma37/energy-simulation/gridctl"
	"github.com/Simma37/energy-simulation/gridreport"
	"github.com/Simma37/energy-simulation/simworker"
)

const dateFormat = "2006-01-02"

// DayStore provides the day records to serve. *runstore.MemStore
// implements it.
type DayStore interface {
	Days() []simworker.DayRecord
}

// Params holds parameters for creating a new Server.
type Params struct {
	// Store holds the run's day records.
	Store DayStore
	// Network holds the simulated network, used for the network
	// diagram.
	Network *gridctl.Network
}

// errBadParams is the cause of errors reported with a 400 status.
var errBadParams = errgo.New("bad request parameters")

// Server serves the HTTP API. It also implements simworker.Updater so
// that a running simulation can feed the progress websocket.
type Server struct {
	p       Params
	handler http.Handler

	mu sync.Mutex
	// changed is closed and replaced whenever a new progress event
	// arrives.
	changed  chan struct{}
	progress ProgressEvent
	// days counts the progress events received.
	days int
}

// ProgressEvent is one message on the progress websocket.
type ProgressEvent struct {
	// Day holds the 1-based count of simulated days so far.
	Day     int               `json:"day"`
	Date    time.Time         `json:"date"`
	Warmup  bool              `json:"warmup"`
	Summary simworker.Summary `json:"summary"`
}

// New returns a server for the given run.
func New(p Params) (*Server, error) {
	if p.Store == nil || p.Network == nil {
		return nil, errgo.New("gridserver: store and network are both required")
	}
	srv := &Server{
		p:       p,
		changed: make(chan struct{}),
	}
	reqSrv := httprequest.Server{
		ErrorMapper: func(ctx context.Context, err error) (int, interface{}) {
			status := http.StatusInternalServerError
			if errgo.Cause(err) == errBadParams {
				status = http.StatusBadRequest
			}
			return status, &httprequest.RemoteError{
				Message: err.Error(),
			}
		},
	}
	router := httprouter.New()
	for _, h := range reqSrv.Handlers(func(p httprequest.Params) (handler, context.Context, error) {
		return handler{srv}, p.Context, nil
	}) {
		router.Handle(h.Method, h.Path, h.Handle)
	}
	// The websocket route bypasses the gzip wrapper: upgrading
	// needs the raw connection.
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/progress", srv.serveProgress)
	mux.Handle("/", gziphandler.GzipHandler(router))
	srv.handler = mux
	return srv, nil
}

// ServeHTTP implements http.Handler.
func (srv *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	srv.handler.ServeHTTP(w, req)
}

// UpdateDay implements simworker.Updater. Watchers of the progress
// websocket are notified of the new day.
func (srv *Server) UpdateDay(rec simworker.DayRecord) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	srv.days++
	srv.progress = ProgressEvent{
		Day:     srv.days,
		Date:    rec.Date,
		Warmup:  rec.Warmup,
		Summary: rec.Summary,
	}
	close(srv.changed)
	srv.changed = make(chan struct{})
}

type handler struct {
	srv *Server
}

type summaryRequest struct {
	httprequest.Route `httprequest:"GET /v1/summary"`
}

// Summary returns the run's aggregated totals over the reported days.
func (h handler) Summary(req *summaryRequest) (gridreport.RunTotals, error) {
	return gridreport.Totals(h.srv.p.Store.Days()), nil
}

type daysRequest struct {
	httprequest.Route `httprequest:"GET /v1/days"`
	// From and To bound the returned dates, from inclusive to
	// exclusive, in YYYY-MM-DD form. Either may be empty.
	From string `httprequest:"from,form"`
	To   string `httprequest:"to,form"`
}

// Days returns the stored day records in the requested date range,
// warm-up days included.
func (h handler) Days(req *daysRequest) ([]simworker.DayRecord, error) {
	from, err := parseDate(req.From)
	if err != nil {
		return nil, errgo.Mask(err, errgo.Is(errBadParams))
	}
	to, err := parseDate(req.To)
	if err != nil {
		return nil, errgo.Mask(err, errgo.Is(errBadParams))
	}
	var days []simworker.DayRecord
	for _, d := range h.srv.p.Store.Days() {
		if !from.IsZero() && d.Date.Before(from) {
			continue
		}
		if !to.IsZero() && !d.Date.Before(to) {
			continue
		}
		days = append(days, d)
	}
	return days, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateFormat, s)
	if err != nil {
		return time.Time{}, errgo.WithCausef(nil, errBadParams, "bad date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

type dailyChartRequest struct {
	httprequest.Route `httprequest:"GET /v1/charts/daily"`
}

// DailyChart returns the stacked daily components data table.
func (h handler) DailyChart(req *dailyChartRequest) (*gridcharts.DataTable, error) {
	return gridcharts.DailyComponents(h.srv.p.Store.Days()), nil
}

type reservoirChartRequest struct {
	httprequest.Route `httprequest:"GET /v1/charts/reservoir"`
}

// ReservoirChart returns the per-zone relative fill data table.
func (h handler) ReservoirChart(req *reservoirChartRequest) (*gridcharts.DataTable, error) {
	return gridcharts.ReservoirFill(h.srv.p.Store.Days(), h.srv.p.Network.ZoneIDs()), nil
}

type networkRequest struct {
	httprequest.Route `httprequest:"GET /v1/network"`
}

// Network returns the network diagram document.
func (h handler) Network(req *networkRequest) (gridcharts.Diagram, error) {
	return gridcharts.NetworkDiagram(h.srv.p.Network, h.srv.p.Store.Days()), nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// serveProgress upgrades to a websocket and pushes one JSON
// ProgressEvent per simulated day until the client goes away.
func (srv *Server) serveProgress(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Printf("gridserver: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	sent := 0
	for {
		srv.mu.Lock()
		ev := srv.progress
		changed := srv.changed
		srv.mu.Unlock()
		if ev.Day > sent {
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
			sent = ev.Day
		}
		select {
		case <-changed:
		case <-done:
			return
		}
	}
}

// Command energysim runs an energy-balance simulation over a zone
// network described by a YAML scenario file, optionally persisting the
// run, writing reports and serving the results over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/Simma37/energy-simulation/gridconfig"
	"github.com/Simma37/energy-simulation/gridreport"
	"github.com/Simma37/energy-simulation/gridserver"
	"github.com/Simma37/energy-simulation/runstore"
	"github.com/Simma37/energy-simulation/simworker"
	"github.com/Simma37/energy-simulation/zonestat"
)

var (
	configFlag = flag.String("config", "scenario.yaml", "scenario configuration file")
	dataFlag   = flag.String("data", "", "directory holding the per-zone series files")
	storeFlag  = flag.String("store", "", "bolt database file to persist the run to")
	httpFlag   = flag.String("http", "", "address to serve the results API on")
	reportFlag = flag.String("report", "", "directory to write reports to")
	traceFlag  = flag.Bool("trace", false, "log every balancing decision")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := gridconfig.Load(*configFlag)
	if err != nil {
		return err
	}
	net, err := cfg.Network()
	if err != nil {
		return err
	}

	var src zonestat.Source = zonestat.NewMemSource()
	if *dataFlag != "" {
		src, err = zonestat.OpenDir(*dataFlag, net.ZoneIDs())
		if err != nil {
			return err
		}
	}

	mem := runstore.NewMemStore()
	store := simworker.Store(mem)
	if *storeFlag != "" {
		bolt, err := runstore.Open(*storeFlag)
		if err != nil {
			return err
		}
		defer bolt.Close()
		store = teeStore{mem, bolt}
	}

	var srv *gridserver.Server
	var updater simworker.Updater
	if *httpFlag != "" {
		srv, err = gridserver.New(gridserver.Params{
			Store:   mem,
			Network: net,
		})
		if err != nil {
			return err
		}
		updater = srv
	}

	params := simworker.Params{
		Network: net,
		Source:  src,
		Store:   store,
		Updater: updater,
		Phases:  cfg.Phases,
		Factors: simworker.Factors{
			Consumption:   cfg.Factors.Consumption,
			Wind:          cfg.Factors.Wind,
			Inflow:        cfg.Factors.Inflow,
			ReservoirFill: cfg.Factors.ReservoirFill,
		},
		Start:      cfg.Start,
		Days:       cfg.Days,
		WarmupDays: cfg.WarmupDays,
	}
	if *traceFlag {
		params.Logger = logTracer{}
	}
	w, err := simworker.New(params)
	if err != nil {
		return err
	}

	srvDone := make(chan error, 1)
	if srv != nil {
		// Serve while the simulation runs so the progress feed
		// is live; keep serving after it finishes.
		go func() {
			log.Printf("listening on %s", *httpFlag)
			srvDone <- http.ListenAndServe(*httpFlag, srv)
		}()
	}

	log.Printf("simulating %d days from %s", cfg.Days, cfg.Start.Format("2006-01-02"))
	if err := w.Run(context.Background()); err != nil {
		return err
	}
	log.Printf("simulation complete")

	if *reportFlag != "" {
		if err := writeReports(*reportFlag, mem.Days()); err != nil {
			return err
		}
	}
	if srv != nil {
		// The API outlives the run.
		return <-srvDone
	}
	return nil
}

func writeReports(dir string, days []simworker.DayRecord) error {
	if err := os.MkdirAll(dir, 0o777); err != nil {
		return err
	}
	daily, err := os.Create(filepath.Join(dir, "daily.csv"))
	if err != nil {
		return err
	}
	defer daily.Close()
	if err := gridreport.WriteDailyCSV(daily, days); err != nil {
		return fmt.Errorf("cannot write daily report: %v", err)
	}
	summary, err := os.Create(filepath.Join(dir, "summary.txt"))
	if err != nil {
		return err
	}
	defer summary.Close()
	if err := gridreport.WriteSummary(summary, days); err != nil {
		return fmt.Errorf("cannot write summary: %v", err)
	}
	log.Printf("reports written to %s", dir)
	return nil
}

// teeStore stores every day record in both of its stores.
type teeStore struct {
	mem  *runstore.MemStore
	bolt *runstore.BoltStore
}

func (s teeStore) AddDay(rec simworker.DayRecord) error {
	if err := s.mem.AddDay(rec); err != nil {
		return err
	}
	return s.bolt.AddDay(rec)
}

// logTracer routes the engine's decision trace to the process log.
type logTracer struct{}

func (logTracer) Log(s string) {
	log.Printf("balance: %s", s)
}

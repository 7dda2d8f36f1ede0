// Package gridconfig reads the YAML file describing a simulation
// scenario: the zone network, the phase toggles and the scaling
// factors applied to the input series.
package gridconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/errgo.v1"
	"gopkg.in/yaml.v2"

	"github.com/Simma37/energy-simulation/gridctl"
)

// DefaultEfficiency is used for zones that do not set their own
// hydro conversion efficiency.
const DefaultEfficiency = 0.9

// Config holds a fully validated simulation scenario.
type Config struct {
	// Start is the date of the first simulated day.
	Start time.Time
	// Days is the total number of days to simulate, warm-up
	// included.
	Days int
	// WarmupDays is the number of leading days excluded from
	// reports.
	WarmupDays int

	Phases  gridctl.Phases
	Factors Factors

	Zones []gridctl.ZoneConfig
	Conns []gridctl.ConnConfig
}

// Factors scale the scenario's inputs. Consumption, Wind and Inflow
// multiply the daily readings; ReservoirFill multiplies each zone's
// initial fill fraction only.
type Factors struct {
	Consumption   float64
	Wind          float64
	Inflow        float64
	ReservoirFill float64
}

// Network builds the zone network described by the configuration.
func (c *Config) Network() (*gridctl.Network, error) {
	net, err := gridctl.NewNetwork(c.Zones, c.Conns)
	if err != nil {
		return nil, errgo.Mask(err)
	}
	return net, nil
}

// configFile mirrors the YAML file layout. Pointer fields distinguish
// "absent" from an explicit zero so that defaults can be applied.
type configFile struct {
	StartDate       string       `yaml:"start_date"`
	Days            int          `yaml:"days"`
	WarmupDays      *int         `yaml:"warmup_days"`
	HydroEfficiency *float64     `yaml:"hydro_efficiency"`
	Factors         factorsFile  `yaml:"factors"`
	Phases          phasesFile   `yaml:"phases"`
	Zones           []zoneFile   `yaml:"zones"`
	Connections     []connFile   `yaml:"connections"`
}

type factorsFile struct {
	Consumption   *float64 `yaml:"consumption"`
	Wind          *float64 `yaml:"wind"`
	Inflow        *float64 `yaml:"inflow"`
	ReservoirFill *float64 `yaml:"reservoir_fill"`
}

type phasesFile struct {
	Wind         *bool `yaml:"wind"`
	ImportPhase1 *bool `yaml:"import_phase1"`
	LocalHydro   *bool `yaml:"local_hydro"`
	ImportPhase2 *bool `yaml:"import_phase2"`
	TwoHop       *bool `yaml:"two_hop"`
}

type zoneFile struct {
	ID                   string   `yaml:"id"`
	Name                 string   `yaml:"name"`
	HydroMin             float64  `yaml:"hydro_min"`
	HydroMax             float64  `yaml:"hydro_max"`
	TurbineCapacity      float64  `yaml:"turbine_capacity"`
	Efficiency           *float64 `yaml:"efficiency"`
	ForceExportThreshold *float64 `yaml:"force_export_threshold"`
	InitialFill          float64  `yaml:"initial_fill"`
	X                    float64  `yaml:"x"`
	Y                    float64  `yaml:"y"`
}

type connFile struct {
	From       string  `yaml:"from"`
	To         string  `yaml:"to"`
	Capacity   float64 `yaml:"capacity"`
	LossFactor float64 `yaml:"loss_factor"`
}

// Load reads and parses the configuration file at the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errgo.Mask(err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errgo.Notef(err, "cannot parse %q", path)
	}
	return cfg, nil
}

// Parse parses YAML configuration data. Every problem found is
// reported; when any problem exists the returned error is a
// *ConfigError holding them all.
func Parse(data []byte) (*Config, error) {
	var f configFile
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, errgo.Notef(err, "cannot unmarshal configuration")
	}
	var errs []string
	addf := func(format string, a ...interface{}) {
		errs = append(errs, fmt.Sprintf(format, a...))
	}

	cfg := &Config{
		Days:   f.Days,
		Phases: gridctl.AllPhases(),
		Factors: Factors{
			Consumption:   1,
			Wind:          1,
			Inflow:        1,
			ReservoirFill: 1,
		},
	}
	if f.StartDate == "" {
		addf("no start_date given")
	} else if t, err := time.Parse("2006-01-02", f.StartDate); err != nil {
		addf("bad start_date %q (want YYYY-MM-DD)", f.StartDate)
	} else {
		cfg.Start = t
	}
	if f.Days <= 0 {
		addf("days %d not positive", f.Days)
	}
	if f.WarmupDays != nil {
		cfg.WarmupDays = *f.WarmupDays
		if cfg.WarmupDays < 0 {
			addf("warmup_days %d negative", cfg.WarmupDays)
		} else if f.Days > 0 && cfg.WarmupDays >= f.Days {
			addf("warmup_days %d leaves no reported days (days %d)", cfg.WarmupDays, f.Days)
		}
	}

	setFactor := func(name string, p *float64, dst *float64) {
		if p == nil {
			return
		}
		if *p < 0 {
			addf("factor %s %v negative", name, *p)
			return
		}
		*dst = *p
	}
	setFactor("consumption", f.Factors.Consumption, &cfg.Factors.Consumption)
	setFactor("wind", f.Factors.Wind, &cfg.Factors.Wind)
	setFactor("inflow", f.Factors.Inflow, &cfg.Factors.Inflow)
	setFactor("reservoir_fill", f.Factors.ReservoirFill, &cfg.Factors.ReservoirFill)

	setPhase := func(p *bool, dst *bool) {
		if p != nil {
			*dst = *p
		}
	}
	setPhase(f.Phases.Wind, &cfg.Phases.EnableWind)
	setPhase(f.Phases.ImportPhase1, &cfg.Phases.EnableImportPhase1)
	setPhase(f.Phases.LocalHydro, &cfg.Phases.EnableLocalHydro)
	setPhase(f.Phases.ImportPhase2, &cfg.Phases.EnableImportPhase2)
	setPhase(f.Phases.TwoHop, &cfg.Phases.EnableTwoHop)

	defaultEff := DefaultEfficiency
	if f.HydroEfficiency != nil {
		defaultEff = *f.HydroEfficiency
	}
	for _, zf := range f.Zones {
		zc := gridctl.ZoneConfig{
			ID:              zf.ID,
			Name:            zf.Name,
			HydroMin:        zf.HydroMin,
			HydroMax:        zf.HydroMax,
			TurbineCapacity: zf.TurbineCapacity,
			Efficiency:      defaultEff,
			InitialFill:     zf.InitialFill,
			X:               zf.X,
			Y:               zf.Y,
		}
		if zf.Efficiency != nil {
			zc.Efficiency = *zf.Efficiency
		}
		if zf.ForceExportThreshold != nil {
			zc.ForceExportThreshold = *zf.ForceExportThreshold
		} else {
			zc.ForceExportThreshold = 0.8
		}
		if zc.Name == "" {
			zc.Name = zc.ID
		}
		cfg.Zones = append(cfg.Zones, zc)
	}
	for _, cf := range f.Connections {
		cfg.Conns = append(cfg.Conns, gridctl.ConnConfig{
			From:       cf.From,
			To:         cf.To,
			Capacity:   cf.Capacity,
			LossFactor: cf.LossFactor,
		})
	}

	// Network-level validation reports all its problems in one
	// error; fold them into the same list so a bad file produces a
	// single complete diagnosis.
	if _, err := gridctl.NewNetwork(cfg.Zones, cfg.Conns); err != nil {
		addf("%s", err)
	}
	if len(errs) > 0 {
		return nil, &ConfigError{Errors: errs}
	}
	return cfg, nil
}

// ConfigError holds every problem found in a configuration file.
type ConfigError struct {
	Errors []string
}

func (e *ConfigError) Error() string {
	m := e.Errors[0]
	if len(e.Errors) > 1 {
		m += fmt.Sprintf(" (and %d more)", len(e.Errors)-1)
	}
	return m
}

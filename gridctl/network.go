// Package gridctl implements the energy network model and the daily
// balancing engine. A Network holds the zones and the directed
// transmission connections between them; BalanceDay decides, for one
// simulated day, how each zone's demand is met from local wind, local
// hydro and imports from its neighbours.
//
// The package holds no calendar and does no I/O; the simworker package
// drives it day by day.
package gridctl

import (
	"fmt"
	"sort"
	"strings"

	errgo "gopkg.in/errgo.v1"
)

// ZoneConfig holds the static parameters of a zone.
type ZoneConfig struct {
	// ID holds the unique zone identifier (for example "NO1").
	// It is also the deterministic tie-break key when ranking
	// supply candidates.
	ID string

	// Name holds a human-readable name for the zone.
	Name string

	// HydroMin and HydroMax hold the reservoir bounds, in MWh of
	// stored water. The reservoir level is kept within these bounds
	// at all times.
	HydroMin float64
	HydroMax float64

	// TurbineCapacity holds the maximum hydro energy the zone can
	// produce in one day, in MWh.
	TurbineCapacity float64

	// Efficiency holds the factor for converting stored water to
	// energy (0 < e <= 1).
	Efficiency float64

	// ForceExportThreshold holds the relative reservoir fill
	// (0 to 1) above which the zone is eligible as a supplier in
	// the restricted import phase.
	ForceExportThreshold float64

	// InitialFill holds the relative reservoir fill at the start of
	// a run, used when the readings source provides no absolute
	// initial level.
	InitialFill float64

	// X and Y hold the zone's coordinates for the network diagram.
	X, Y float64
}

// ConnConfig holds the static parameters of one directed transmission
// connection. A bidirectional physical link is represented as two
// ConnConfigs, which may have different capacities and loss factors.
type ConnConfig struct {
	From, To string
	// Capacity holds the maximum energy transmissible per day, in MWh.
	Capacity float64
	// LossFactor holds the fraction of energy lost in transit
	// (0 <= f < 1).
	LossFactor float64
}

// Zone holds one zone's static parameters, its reservoir level, and the
// day's transient readings and accumulators. The transient fields are
// reset by Network.ResetDay at the start of every simulated day.
type Zone struct {
	ZoneConfig

	// Level holds the current reservoir level. It is mutated only by
	// SetLevel, which keeps it within [HydroMin, HydroMax].
	Level float64

	// The day's input readings, set by SetDayReadings.
	Wind   float64
	Demand float64
	Inflow float64

	// The day's accumulators, filled in by BalanceDay.
	WindUsed      float64
	WindSurplus   float64
	LocalHydro    float64
	Imported      float64
	Exported      float64
	HydroExported float64
	Unmet         float64

	// Spill and Shortfall record the water clamped away by the
	// day's water-balance update.
	Spill     float64
	Shortfall float64

	// remaining holds the demand still to be met as the balancing
	// stages run. It is zeroed into Unmet at the end of the day.
	remaining float64
}

// RelativeFill returns the zone's reservoir fill as a fraction of its
// usable range, 0 at HydroMin and 1 at HydroMax.
func (z *Zone) RelativeFill() float64 {
	span := z.HydroMax - z.HydroMin
	if span <= 0 {
		return 0
	}
	return (z.Level - z.HydroMin) / span
}

// SetLevel sets the zone's reservoir level, clamping it to the zone's
// bounds. If clamping was needed it returns a data-quality note
// describing the adjustment; otherwise it returns the empty string.
func (z *Zone) SetLevel(level float64) string {
	switch {
	case level > z.HydroMax:
		z.Level = z.HydroMax
		return fmt.Sprintf("%s: reservoir level %.6g above maximum %.6g; clamped", z.ID, level, z.HydroMax)
	case level < z.HydroMin:
		z.Level = z.HydroMin
		return fmt.Sprintf("%s: reservoir level %.6g below minimum %.6g; clamped", z.ID, level, z.HydroMin)
	}
	z.Level = level
	return ""
}

// SetDayReadings sets the zone's input readings for the day about to be
// balanced. Network.ResetDay must have been called first.
func (z *Zone) SetDayReadings(wind, demand, inflow float64) {
	z.Wind = wind
	z.Demand = demand
	z.Inflow = inflow
}

// hydroHeadroom returns the hydro energy the zone can still commit
// today, bounded by its remaining turbine capacity and by the water
// available above HydroMin.
func (z *Zone) hydroHeadroom() float64 {
	committed := z.LocalHydro + z.HydroExported
	h := z.TurbineCapacity - committed
	if byWater := (z.Level-z.HydroMin)*z.Efficiency - committed; byWater < h {
		h = byWater
	}
	if h < 0 {
		return 0
	}
	return h
}

// Conn holds one directed connection and its remaining daily capacity.
type Conn struct {
	From, To   *Zone
	Capacity   float64
	LossFactor float64

	// Remaining holds the transmission capacity left today. It is
	// reset to Capacity by Network.ResetDay and decremented as
	// transfers are allocated; the same pool is shared by both
	// import phases.
	Remaining float64
}

// Network holds all zones and connections. It is a passive state
// container: the balancing engine and the simulator mutate it, but it
// implements no allocation behaviour itself.
//
// A Network must not be shared between concurrently executing runs;
// each run constructs its own.
type Network struct {
	zones    map[string]*Zone
	ids      []string
	conns    []*Conn
	incoming map[string][]*Conn
	outgoing map[string][]*Conn
}

// NewNetwork builds a Network from the given zone and connection
// configurations. It validates the whole configuration and returns an
// error describing every problem found; a Network is never constructed
// from invalid configuration.
func NewNetwork(zones []ZoneConfig, conns []ConnConfig) (*Network, error) {
	var problems []string
	addf := func(f string, a ...interface{}) {
		problems = append(problems, fmt.Sprintf(f, a...))
	}
	net := &Network{
		zones:    make(map[string]*Zone),
		incoming: make(map[string][]*Conn),
		outgoing: make(map[string][]*Conn),
	}
	for i, zc := range zones {
		if zc.ID == "" {
			addf("zone %d has no id", i)
			continue
		}
		if _, ok := net.zones[zc.ID]; ok {
			addf("duplicate zone id %q", zc.ID)
			continue
		}
		if zc.HydroMin < 0 {
			addf("zone %s: negative hydro_min %v", zc.ID, zc.HydroMin)
		}
		if zc.HydroMax <= zc.HydroMin {
			addf("zone %s: hydro_max %v not greater than hydro_min %v", zc.ID, zc.HydroMax, zc.HydroMin)
		}
		if zc.TurbineCapacity < 0 {
			addf("zone %s: negative turbine capacity %v", zc.ID, zc.TurbineCapacity)
		}
		if zc.Efficiency <= 0 || zc.Efficiency > 1 {
			addf("zone %s: hydro efficiency %v outside (0, 1]", zc.ID, zc.Efficiency)
		}
		if zc.ForceExportThreshold < 0 || zc.ForceExportThreshold > 1 {
			addf("zone %s: force-export threshold %v outside [0, 1]", zc.ID, zc.ForceExportThreshold)
		}
		if zc.InitialFill < 0 || zc.InitialFill > 1 {
			addf("zone %s: initial fill %v outside [0, 1]", zc.ID, zc.InitialFill)
		}
		z := &Zone{ZoneConfig: zc}
		z.Level = z.HydroMin
		net.zones[zc.ID] = z
		net.ids = append(net.ids, zc.ID)
	}
	sort.Strings(net.ids)
	for _, cc := range conns {
		from, fromOK := net.zones[cc.From]
		to, toOK := net.zones[cc.To]
		if !fromOK {
			addf("connection %s->%s: unknown zone %q", cc.From, cc.To, cc.From)
		}
		if !toOK {
			addf("connection %s->%s: unknown zone %q", cc.From, cc.To, cc.To)
		}
		if cc.From == cc.To {
			addf("connection %s->%s connects a zone to itself", cc.From, cc.To)
		}
		if cc.Capacity <= 0 {
			addf("connection %s->%s: capacity %v not positive", cc.From, cc.To, cc.Capacity)
		}
		if cc.LossFactor < 0 || cc.LossFactor >= 1 {
			addf("connection %s->%s: loss factor %v outside [0, 1)", cc.From, cc.To, cc.LossFactor)
		}
		if !fromOK || !toOK || cc.From == cc.To {
			continue
		}
		conn := &Conn{
			From:       from,
			To:         to,
			Capacity:   cc.Capacity,
			LossFactor: cc.LossFactor,
			Remaining:  cc.Capacity,
		}
		net.conns = append(net.conns, conn)
		net.outgoing[cc.From] = append(net.outgoing[cc.From], conn)
		net.incoming[cc.To] = append(net.incoming[cc.To], conn)
	}
	if len(net.ids) == 0 {
		addf("no zones configured")
	}
	if len(problems) > 0 {
		return nil, errgo.Newf("invalid network configuration: %s", strings.Join(problems, "; "))
	}
	return net, nil
}

// Zone returns the zone with the given id, or nil if there is none.
func (net *Network) Zone(id string) *Zone {
	return net.zones[id]
}

// Zones returns all zones in ascending id order. The canonical order
// keeps every traversal of the network deterministic.
func (net *Network) Zones() []*Zone {
	zs := make([]*Zone, len(net.ids))
	for i, id := range net.ids {
		zs[i] = net.zones[id]
	}
	return zs
}

// ZoneIDs returns all zone ids in ascending order.
func (net *Network) ZoneIDs() []string {
	return append([]string(nil), net.ids...)
}

// Conns returns all connections in configuration order.
func (net *Network) Conns() []*Conn {
	return net.conns
}

// Incoming returns the connections whose destination is the given zone.
func (net *Network) Incoming(id string) []*Conn {
	return net.incoming[id]
}

// Outgoing returns the connections whose source is the given zone.
func (net *Network) Outgoing(id string) []*Conn {
	return net.outgoing[id]
}

// ResetDay prepares the network for a new simulated day: every
// connection's remaining capacity is restored to its full daily
// capacity and every zone's transient readings and accumulators are
// zeroed. Reservoir levels are left untouched.
func (net *Network) ResetDay() {
	for _, conn := range net.conns {
		conn.Remaining = conn.Capacity
	}
	for _, z := range net.zones {
		z.Wind = 0
		z.Demand = 0
		z.Inflow = 0
		z.WindUsed = 0
		z.WindSurplus = 0
		z.LocalHydro = 0
		z.Imported = 0
		z.Exported = 0
		z.HydroExported = 0
		z.Unmet = 0
		z.Spill = 0
		z.Shortfall = 0
		z.remaining = 0
	}
}

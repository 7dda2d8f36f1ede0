package gridctl

import (
	"fmt"
	"sort"
)

// Phases configures which balancing stages run. A disabled stage
// contributes nothing to the day's allocation.
type Phases struct {
	EnableWind         bool
	EnableImportPhase1 bool
	EnableLocalHydro   bool
	EnableImportPhase2 bool
	EnableTwoHop       bool
}

// AllPhases returns a Phases value with every stage enabled.
func AllPhases() Phases {
	return Phases{
		EnableWind:         true,
		EnableImportPhase1: true,
		EnableLocalHydro:   true,
		EnableImportPhase2: true,
		EnableTwoHop:       true,
	}
}

// Stage identifies which import phase created a transfer.
type Stage string

const (
	// StageRestricted is the first import phase, open only to
	// suppliers at or above their force-export threshold.
	StageRestricted Stage = "restricted"
	// StageOpen is the second import phase, open to any supplier
	// with exportable energy.
	StageOpen Stage = "open"
)

// LegUse records the transmission capacity consumed on one connection
// by a transfer. CapacityUsed is the energy that entered the leg,
// before that leg's transit loss.
type LegUse struct {
	From         string
	To           string
	CapacityUsed float64
}

// TransferRecord records one import allocation. Records are created
// once and never mutated.
type TransferRecord struct {
	// From and To hold the supplier and importer zone ids.
	From string
	To   string
	// Hops is 1 for a direct transfer, 2 for a transfer routed
	// through a transit zone.
	Hops int
	// Transit holds the transit zone id when Hops is 2, else "".
	Transit string
	// Stage records which import phase made the allocation.
	Stage Stage
	// Sent holds the energy leaving the supplier, before losses.
	Sent float64
	// Delivered holds the energy arriving at the importer, after
	// the loss of every leg traversed.
	Delivered float64
	// Legs holds the capacity consumed on each connection used.
	Legs []LegUse
}

// Logger is the interface used by BalanceDay to trace its allocation
// decisions.
type Logger interface {
	Log(s string)
}

// BalanceParams holds the parameters for one call to BalanceDay.
type BalanceParams struct {
	Phases Phases
	// Logger may be nil, in which case no trace is produced.
	Logger Logger
}

// BalanceDay runs the daily balancing over the whole network and
// returns the day's transfer records. The network must have been
// prepared with ResetDay and SetDayReadings.
//
// Balancing proceeds in five ordered stages, each run over every zone
// (in ascending id order) before the next begins: local wind, the
// restricted import phase, local hydro, the open import phase, and
// finally the recording of unmet demand. Connection capacity consumed
// in the restricted phase is not restored for the open phase.
//
// No stage can fail: when a zone cannot be supplied, the shortfall
// ends up as that zone's unmet demand.
func BalanceDay(net *Network, p BalanceParams) []TransferRecord {
	b := &balancer{
		net: net,
		p:   p,
	}
	b.windStage()
	if p.Phases.EnableImportPhase1 {
		b.importStage(StageRestricted)
	}
	if p.Phases.EnableLocalHydro {
		b.hydroStage()
	}
	if p.Phases.EnableImportPhase2 {
		b.importStage(StageOpen)
	}
	b.unmetStage()
	return b.transfers
}

type balancer struct {
	net       *Network
	p         BalanceParams
	transfers []TransferRecord
}

func (b *balancer) logf(f string, args ...interface{}) {
	if b.p.Logger != nil {
		b.p.Logger.Log(fmt.Sprintf(f, args...))
	}
}

// windStage covers as much of each zone's demand as possible from its
// own wind production; the excess becomes the zone's exportable wind
// pool for the rest of the day. With wind disabled the whole demand
// carries forward and no wind pool exists.
func (b *balancer) windStage() {
	for _, z := range b.net.Zones() {
		if !b.p.Phases.EnableWind {
			z.remaining = z.Demand
			continue
		}
		used := z.Wind
		if z.Demand < used {
			used = z.Demand
		}
		z.WindUsed = used
		z.WindSurplus = z.Wind - used
		z.remaining = z.Demand - used
		if used > 0 || z.WindSurplus > 0 {
			b.logf("%s: wind %v used, %v surplus", z.ID, used, z.WindSurplus)
		}
	}
}

// hydroStage produces local hydro for any zone still short of its
// demand, bounded by the day's remaining turbine capacity and by the
// water available above the reservoir minimum.
func (b *balancer) hydroStage() {
	for _, z := range b.net.Zones() {
		if z.remaining <= 0 {
			continue
		}
		amount := z.hydroHeadroom()
		if z.remaining < amount {
			amount = z.remaining
		}
		if amount <= 0 {
			continue
		}
		z.LocalHydro += amount
		z.remaining -= amount
		b.logf("%s: local hydro %v produced", z.ID, amount)
	}
}

// unmetStage records whatever demand is left as the day's unmet demand.
func (b *balancer) unmetStage() {
	for _, z := range b.net.Zones() {
		if z.remaining <= 0 {
			z.remaining = 0
			continue
		}
		z.Unmet += z.remaining
		b.logf("%s: unmet demand %v", z.ID, z.remaining)
		z.remaining = 0
	}
}

// available returns the energy the given supplier can export right now
// in the given stage. In the restricted stage only surplus wind is
// exportable; once local hydro has run, the open stage adds the
// supplier's remaining hydro headroom.
func available(z *Zone, stage Stage) float64 {
	if stage == StageRestricted {
		return z.WindSurplus
	}
	return z.WindSurplus + z.hydroHeadroom()
}

// candidate holds one potential supply route for an importing zone.
// For a direct route leg1 is the connection from supplier to importer
// and leg2 is nil; for a two-hop route leg1 enters the transit zone and
// leg2 leaves it. The transit zone's own supply and demand are never
// touched by a pass-through.
type candidate struct {
	supplier *Zone
	relFill  float64
	transit  string
	leg1     *Conn
	leg2     *Conn
}

func (c *candidate) hops() int {
	if c.leg2 == nil {
		return 1
	}
	return 2
}

// pathCapacity returns the route's current bottleneck capacity.
func (c *candidate) pathCapacity() float64 {
	cap := c.leg1.Remaining
	if c.leg2 != nil && c.leg2.Remaining < cap {
		cap = c.leg2.Remaining
	}
	return cap
}

// candidatesByPriority orders supply candidates: fuller reservoirs
// first (they are the ones at risk of spilling), ties broken by
// ascending supplier id. The sort is applied stably so that, for the
// same supplier, a direct route keeps its precedence over a two-hop
// one. This is the canonical deterministic order.
type candidatesByPriority []candidate

func (cs candidatesByPriority) Len() int      { return len(cs) }
func (cs candidatesByPriority) Swap(i, j int) { cs[i], cs[j] = cs[j], cs[i] }

func (cs candidatesByPriority) Less(i, j int) bool {
	c0, c1 := cs[i], cs[j]
	if c0.relFill != c1.relFill {
		return c0.relFill > c1.relFill
	}
	return c0.supplier.ID < c1.supplier.ID
}

// importStage runs one import phase: every zone with remaining demand,
// in ascending id order, greedily draws from its ranked supply
// candidates.
func (b *balancer) importStage(stage Stage) {
	for _, z := range b.net.Zones() {
		if z.remaining <= 0 {
			continue
		}
		cands := b.gatherCandidates(z, stage)
		sort.Stable(candidatesByPriority(cands))
		for i := range cands {
			if z.remaining <= 0 {
				break
			}
			b.allocate(z, &cands[i], stage)
		}
	}
}

// gatherCandidates collects the supply routes available to the given
// importer: direct routes over incoming connections and, when two-hop
// routing is enabled, routes through a single transit zone. In the
// restricted stage a supplier qualifies only if its relative fill is
// at or above its own force-export threshold.
func (b *balancer) gatherCandidates(z *Zone, stage Stage) []candidate {
	qualifies := func(s *Zone) bool {
		if s == z {
			return false
		}
		if stage == StageRestricted && s.RelativeFill() < s.ForceExportThreshold {
			return false
		}
		return available(s, stage) > 0
	}
	var cands []candidate
	for _, conn := range b.net.Incoming(z.ID) {
		s := conn.From
		if !qualifies(s) || conn.Remaining <= 0 {
			continue
		}
		cands = append(cands, candidate{
			supplier: s,
			relFill:  s.RelativeFill(),
			leg1:     conn,
		})
	}
	if !b.p.Phases.EnableTwoHop {
		return cands
	}
	for _, out := range b.net.Incoming(z.ID) {
		transit := out.From
		if transit == z || out.Remaining <= 0 {
			continue
		}
		for _, in := range b.net.Incoming(transit.ID) {
			s := in.From
			if s == transit || !qualifies(s) || in.Remaining <= 0 {
				continue
			}
			cands = append(cands, candidate{
				supplier: s,
				relFill:  s.RelativeFill(),
				transit:  transit.ID,
				leg1:     in,
				leg2:     out,
			})
		}
	}
	return cands
}

// allocate transfers as much energy as possible over the candidate's
// route: the minimum of what the supplier can still export, what the
// route can still carry and what the importer still needs. Amounts are
// computed pre-loss; each leg's capacity is consumed by the energy
// entering that leg and its loss factor is applied on the way out, so
// the importer receives the compounded post-loss amount.
func (b *balancer) allocate(z *Zone, c *candidate, stage Stage) {
	s := c.supplier
	sent := available(s, stage)
	if cap := c.pathCapacity(); cap < sent {
		sent = cap
	}
	if z.remaining < sent {
		sent = z.remaining
	}
	if sent <= 0 {
		return
	}
	delivered := sent * (1 - c.leg1.LossFactor)
	legs := []LegUse{{
		From:         c.leg1.From.ID,
		To:           c.leg1.To.ID,
		CapacityUsed: sent,
	}}
	c.leg1.Remaining -= sent
	if c.leg2 != nil {
		legs = append(legs, LegUse{
			From:         c.leg2.From.ID,
			To:           c.leg2.To.ID,
			CapacityUsed: delivered,
		})
		c.leg2.Remaining -= delivered
		delivered *= 1 - c.leg2.LossFactor
	}

	// Exports drain the supplier's wind surplus before its hydro,
	// so the hydro share is exactly what surplus wind could not
	// cover; the water balance charges only that share against the
	// supplier's reservoir.
	wind := sent
	if s.WindSurplus < wind {
		wind = s.WindSurplus
	}
	s.WindSurplus -= wind
	s.HydroExported += sent - wind
	s.Exported += sent
	z.Imported += delivered
	z.remaining -= delivered

	b.transfers = append(b.transfers, TransferRecord{
		From:      s.ID,
		To:        z.ID,
		Hops:      c.hops(),
		Transit:   c.transit,
		Stage:     stage,
		Sent:      sent,
		Delivered: delivered,
		Legs:      legs,
	})
	if c.leg2 == nil {
		b.logf("%s: imported %v from %s (%v sent, fill %.2f, %s)",
			z.ID, delivered, s.ID, sent, c.relFill, stage)
	} else {
		b.logf("%s: imported %v from %s via %s (%v sent, fill %.2f, %s)",
			z.ID, delivered, s.ID, c.transit, sent, c.relFill, stage)
	}
}

// Package kernel wires together the collaborators every higher-level
// component (Shell Constructor, Burst Protocol, Reaction Engine, Pair
// Formation, Multi Builder, Simulator Loop) needs, and mints the
// ShellID/DomainID identifiers that only it is allowed to hand out.
// Keeping this in its own leaf package lets those components depend on
// one shared Deps value without depending on each other.
package kernel

import (
	"log/slog"

	"github.com/pthm-cable/sgfrd/config"
	"github.com/pthm-cable/sgfrd/domain"
	"github.com/pthm-cable/sgfrd/geom"
	"github.com/pthm-cable/sgfrd/ids"
	"github.com/pthm-cable/sgfrd/model"
	"github.com/pthm-cable/sgfrd/propagator"
	"github.com/pthm-cable/sgfrd/scheduler"
	"github.com/pthm-cable/sgfrd/shell"
	"github.com/pthm-cable/sgfrd/world"
)

// Deps bundles the collaborators shared by every kernel component.
type Deps struct {
	Poly   geom.Polygon
	Shells *shell.Container
	Domains *domain.Registry
	Sched  *scheduler.Scheduler
	World  world.World
	Model  model.Model
	Prop   *propagator.Propagator
	Cfg    *config.Config
	Log    *slog.Logger

	shellCounter  ids.Counter
	domainCounter ids.Counter
	eventOfDomain map[ids.DomainID]ids.EventID
}

// New builds a Deps value with fresh ID counters. Log defaults to
// slog.Default() if logger is nil.
func New(poly geom.Polygon, w world.World, m model.Model, prop *propagator.Propagator, cfg *config.Config, logger *slog.Logger) *Deps {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deps{
		Poly:          poly,
		Shells:        shell.NewContainer(poly),
		Domains:       domain.NewRegistry(),
		Sched:         scheduler.New(),
		World:         w,
		Model:         m,
		Prop:          prop,
		Cfg:           cfg,
		Log:           logger,
		eventOfDomain: make(map[ids.DomainID]ids.EventID),
	}
}

func (d *Deps) NewShellID() ids.ShellID   { return ids.ShellID(d.shellCounter.Next()) }
func (d *Deps) NewDomainID() ids.DomainID { return ids.DomainID(d.domainCounter.Next()) }

// ScheduleDomain schedules did to fire at t and remembers the resulting
// EventID so RemoveDomain doesn't need it passed back in.
func (d *Deps) ScheduleDomain(did ids.DomainID, t float64) ids.EventID {
	eid := d.Sched.Add(did, t)
	d.eventOfDomain[did] = eid
	return eid
}

// EventOfDomain returns the currently-scheduled event for did, if any.
func (d *Deps) EventOfDomain(did ids.DomainID) (ids.EventID, bool) {
	eid, ok := d.eventOfDomain[did]
	return eid, ok
}

// RemoveDomain tears down a domain's registry entry, its shell(s) and
// its scheduled event together, so no dangling reference across the
// three shared stores ever survives a call's return (§3, §5).
func (d *Deps) RemoveDomain(did ids.DomainID) {
	dom, ok := d.Domains.Get(did)
	if !ok {
		return
	}
	for _, sid := range dom.ShellIDs() {
		d.Shells.Remove(sid)
	}
	if eid, ok := d.eventOfDomain[did]; ok {
		d.Sched.Remove(eid)
		delete(d.eventOfDomain, did)
	}
	d.Domains.Remove(did)
}

// Package domain implements the Domain data model (§3) and the Domain
// Registry (C2, §4.2): Single, Pair and Multi are modeled as a tagged
// sum, dispatched by Kind at every call site rather than through an
// open-ended visitor hierarchy (§9).
package domain

import (
	"fmt"

	"github.com/pthm-cable/sgfrd/geom"
	"github.com/pthm-cable/sgfrd/ids"
	"github.com/pthm-cable/sgfrd/model"
)

// Kind tags which variant a Domain holds. Birth is not one of spec.md
// §3's three domain kinds — it has no shell or particle of its own — but
// the simulator loop (§4.10) schedules it the same way, so it is carried
// as a fourth scheduling tag (SPEC_FULL.md "Supplemented features").
type Kind int

const (
	Single Kind = iota
	Pair
	Multi
	Birth
)

func (k Kind) String() string {
	switch k {
	case Single:
		return "single"
	case Pair:
		return "pair"
	case Multi:
		return "multi"
	case Birth:
		return "birth"
	default:
		return "unknown"
	}
}

// Trigger is which of a Single/Pair domain's two scheduled event kinds
// will actually fire.
type Trigger int

const (
	Escape Trigger = iota
	Reaction
)

func (t Trigger) String() string {
	if t == Escape {
		return "escape"
	}
	return "reaction"
}

// SingleData is a Single domain: one particle, one shell (§3).
type SingleData struct {
	Particle  ids.ParticleID
	Shell     ids.ShellID
	BeginTime float64
	Dt        float64
	Trigger   Trigger
}

// PairData is a Pair domain: two particles sharing one circular shell,
// tracked via the inter-particle vector and center of mass (§3, §4.8).
type PairData struct {
	ParticleA, ParticleB ids.ParticleID
	Shell                ids.ShellID
	BeginTime            float64
	Dt                    float64
	Trigger              Trigger
	IPV0                 geom.Real3       // inter-particle vector at BeginTime
	COM0                 geom.SurfacePoint // center of mass at BeginTime
	D1, D2               float64
}

// MultiData is a Multi domain: N particles and N shells advanced by BD
// microsteps over a fixed horizon (§3, §4.9).
type MultiData struct {
	Particles []ids.ParticleID
	Shells    []ids.ShellID
	BeginTime float64
	Horizon   float64
}

// BirthData carries a zeroth-order species-generation firing.
type BirthData struct {
	Rule model.BirthRule
}

// Domain is the tagged-union value stored in the registry and
// referenced by the scheduler.
type Domain struct {
	Kind   Kind
	Single SingleData
	Pair   PairData
	Multi  MultiData
	Birth  BirthData
}

// Multiplicity returns how many particles a domain currently owns (the
// original simulator's diagnostic counter, SPEC_FULL.md).
func (d Domain) Multiplicity() int {
	switch d.Kind {
	case Single:
		return 1
	case Pair:
		return 2
	case Multi:
		return len(d.Multi.Particles)
	default:
		return 0
	}
}

// ParticleIDs returns every particle this domain owns.
func (d Domain) ParticleIDs() []ids.ParticleID {
	switch d.Kind {
	case Single:
		return []ids.ParticleID{d.Single.Particle}
	case Pair:
		return []ids.ParticleID{d.Pair.ParticleA, d.Pair.ParticleB}
	case Multi:
		return d.Multi.Particles
	default:
		return nil
	}
}

// ShellIDs returns every shell this domain owns.
func (d Domain) ShellIDs() []ids.ShellID {
	switch d.Kind {
	case Single:
		return []ids.ShellID{d.Single.Shell}
	case Pair:
		return []ids.ShellID{d.Pair.Shell}
	case Multi:
		return d.Multi.Shells
	default:
		return nil
	}
}

// Registry is the Domain Registry (C2): domains keyed by DomainID, with
// reverse indices enforcing invariants 3 and 4 (§8) — every ParticleID
// and ShellID appears in exactly one domain.
type Registry struct {
	domains    map[ids.DomainID]Domain
	byParticle map[ids.ParticleID]ids.DomainID
	byShell    map[ids.ShellID]ids.DomainID
}

func NewRegistry() *Registry {
	return &Registry{
		domains:    make(map[ids.DomainID]Domain),
		byParticle: make(map[ids.ParticleID]ids.DomainID),
		byShell:    make(map[ids.ShellID]ids.DomainID),
	}
}

// Add registers a domain. It is an invariant violation for any of its
// particles or shells to already belong to another domain.
func (r *Registry) Add(id ids.DomainID, d Domain) error {
	for _, pid := range d.ParticleIDs() {
		if existing, ok := r.byParticle[pid]; ok {
			return fmt.Errorf("domain: particle %v already owned by %v", pid, existing)
		}
	}
	for _, sid := range d.ShellIDs() {
		if existing, ok := r.byShell[sid]; ok {
			return fmt.Errorf("domain: shell %v already owned by %v", sid, existing)
		}
	}
	r.domains[id] = d
	for _, pid := range d.ParticleIDs() {
		r.byParticle[pid] = id
	}
	for _, sid := range d.ShellIDs() {
		r.byShell[sid] = id
	}
	return nil
}

// Remove deletes a domain and all of its particle/shell index entries.
// Per §3's lifecycle rule, callers must remove the domain's shells from
// the Shell Container and its event from the scheduler in the same
// breath — Remove itself only clears the registry's own bookkeeping.
func (r *Registry) Remove(id ids.DomainID) {
	d, ok := r.domains[id]
	if !ok {
		return
	}
	for _, pid := range d.ParticleIDs() {
		delete(r.byParticle, pid)
	}
	for _, sid := range d.ShellIDs() {
		delete(r.byShell, sid)
	}
	delete(r.domains, id)
}

func (r *Registry) Get(id ids.DomainID) (Domain, bool) {
	d, ok := r.domains[id]
	return d, ok
}

// Update replaces the stored value for an existing domain id in place
// (e.g. a Multi absorbing another particle), preserving its index
// entries for particles/shells it already owned.
func (r *Registry) Update(id ids.DomainID, d Domain) {
	r.domains[id] = d
	for _, pid := range d.ParticleIDs() {
		r.byParticle[pid] = id
	}
	for _, sid := range d.ShellIDs() {
		r.byShell[sid] = id
	}
}

func (r *Registry) DomainOfParticle(pid ids.ParticleID) (ids.DomainID, bool) {
	id, ok := r.byParticle[pid]
	return id, ok
}

func (r *Registry) DomainOfShell(sid ids.ShellID) (ids.DomainID, bool) {
	id, ok := r.byShell[sid]
	return id, ok
}

// Len reports how many domains are currently registered.
func (r *Registry) Len() int { return len(r.domains) }

// All returns every registered domain id. Order is unspecified.
func (r *Registry) All() []ids.DomainID {
	out := make([]ids.DomainID, 0, len(r.domains))
	for id := range r.domains {
		out = append(out, id)
	}
	return out
}

// Package sim implements the Simulator Loop (C9, §4.10) and the
// diagnosis() integrity check (§6, §8): the top-level driver that pops
// scheduler events, dispatches them by domain kind, and rebuilds
// domains for the particles that come out the other side.
package sim

import (
	"fmt"
	"math"

	"github.com/pthm-cable/sgfrd/domain"
	"github.com/pthm-cable/sgfrd/geom"
	"github.com/pthm-cable/sgfrd/ids"
	"github.com/pthm-cable/sgfrd/kerr"
	"github.com/pthm-cable/sgfrd/kernel"
	"github.com/pthm-cable/sgfrd/multi"
	"github.com/pthm-cable/sgfrd/pairformer"
	"github.com/pthm-cable/sgfrd/propagator"
	"github.com/pthm-cable/sgfrd/reaction"
	"github.com/pthm-cable/sgfrd/shell"
	"github.com/pthm-cable/sgfrd/shellbuild"
	"github.com/pthm-cable/sgfrd/world"
)

// Simulator drives the event loop to completion against a shared
// kernel.Deps, tracking simulated time and the observables §6 exposes.
type Simulator struct {
	deps *kernel.Deps

	time          float64
	reactions     []reaction.Info
	reactionCount int
	nextBirth     map[string]float64
}

// New builds a Simulator over deps, starting at t=0 with birth-rule
// timers drawn from the model's zeroth-order rules (SPEC_FULL.md
// "Supplemented features").
func New(deps *kernel.Deps) *Simulator {
	s := &Simulator{deps: deps, nextBirth: make(map[string]float64)}
	for _, b := range deps.Model.BirthRules() {
		dt := drawExponential(deps, b.Rate)
		deps.Sched.Add(0, dt)
		s.nextBirth[b.ID] = dt
	}
	return s
}

// Time returns the simulator's current simulated time.
func (s *Simulator) Time() float64 { return s.time }

// LastReactions returns every reaction fired so far (§6 `last_reactions()`).
func (s *Simulator) LastReactions() []reaction.Info { return s.reactions }

// ReactionCount mirrors the original's num_reactions_ bookkeeping
// (SPEC_FULL.md "Supplemented features").
func (s *Simulator) ReactionCount() int { return s.reactionCount }

// Seed places a particle and immediately builds its first domain via
// CreateEvent, so callers populate a scenario without reaching into the
// kernel packages directly.
func (s *Simulator) Seed(p world.Particle) (ids.ParticleID, error) {
	pid, ok := s.deps.World.CreateParticle(p)
	if !ok {
		return 0, fmt.Errorf("sim: world rejected particle creation")
	}
	if err := s.CreateEvent(pid, s.time); err != nil {
		return pid, err
	}
	return pid, nil
}

// Run advances the simulator until the scheduler empties or simulated
// time reaches tEnd (§4.10's `while t < t_end` loop). An event past tEnd
// goes back on the scheduler and the clock is set to tEnd.
func (s *Simulator) Run(tEnd float64) error {
	for s.time < tEnd {
		eid, did, t, ok := s.deps.Sched.PopNext()
		if !ok {
			break
		}
		if t > tEnd {
			if did == 0 {
				s.deps.Sched.Add(0, t)
			} else {
				s.deps.ScheduleDomain(did, t)
			}
			s.time = tEnd
			break
		}
		if t < s.time {
			return fmt.Errorf("sim: %w: event %v fired at %g before current time %g", kerr.ErrInvariantViolation, eid, t, s.time)
		}
		s.time = t
		if err := s.dispatch(did, t); err != nil {
			return err
		}
	}
	return nil
}

// dispatch is §4.10's per-event switch.
func (s *Simulator) dispatch(did ids.DomainID, t float64) error {
	if did == 0 {
		return s.dispatchBirth(t)
	}

	dom, ok := s.deps.Domains.Get(did)
	if !ok {
		// Domain was already torn down by a burst/merge triggered by an
		// earlier event this same tick; the stale scheduler entry is
		// exactly the tombstone case §4.2/§4.3 allow.
		return nil
	}

	switch dom.Kind {
	case domain.Single:
		return s.dispatchSingle(did, dom, t)
	case domain.Pair:
		return s.dispatchPair(did, dom, t)
	case domain.Multi:
		return s.dispatchMulti(did, dom, t)
	default:
		return fmt.Errorf("sim: %w: domain %v has kind %v", kerr.ErrEventKindMismatch, did, dom.Kind)
	}
}

func (s *Simulator) dispatchSingle(did ids.DomainID, dom domain.Domain, t float64) error {
	pid := dom.Single.Particle
	sid := dom.Single.Shell
	sh, _, _ := s.deps.Shells.Get(sid)
	p, ok := s.deps.World.GetParticle(pid)
	if !ok {
		return fmt.Errorf("sim: %w: particle %v", kerr.ErrInvariantViolation, pid)
	}

	switch dom.Single.Trigger {
	case domain.Escape:
		at, err := escapeSingle(s.deps, p, sh)
		if err != nil {
			s.deps.Log.Warn("sim: single escape propagation degraded", "error", err)
		}
		p.At = at
		if err := s.deps.World.UpdateParticle(pid, p); err != nil {
			return fmt.Errorf("sim: updating escaped particle: %w", err)
		}
		s.deps.RemoveDomain(did)
		return s.CreateEvent(pid, t)

	case domain.Reaction:
		info, err := reaction.FireMonomolecular(s.deps, did, t)
		if err != nil {
			s.deps.Log.Warn("sim: monomolecular reaction did not fire", "domain", did, "error", err)
			return nil
		}
		s.recordReaction(*info)
		for _, product := range info.Products {
			if err := s.CreateEvent(product, t); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("sim: %w: single domain %v has unknown trigger", kerr.ErrEventKindMismatch, did)
}

func (s *Simulator) dispatchPair(did ids.DomainID, dom domain.Domain, t float64) error {
	pidA, pidB := dom.Pair.ParticleA, dom.Pair.ParticleB
	sid := dom.Pair.Shell
	sh, _, _ := s.deps.Shells.Get(sid)
	pA, okA := s.deps.World.GetParticle(pidA)
	pB, okB := s.deps.World.GetParticle(pidB)
	if !okA || !okB {
		return fmt.Errorf("sim: %w: pair domain %v missing particle", kerr.ErrInvariantViolation, did)
	}
	sigma := pA.Radius + pB.Radius

	switch dom.Pair.Trigger {
	case domain.Escape:
		outcome := s.deps.Prop.EscapePair(dom.Pair.COM0, dom.Pair.D1, dom.Pair.D2, sigma, sh.Size, false)
		pA.At, pB.At = outcome.A, outcome.B
		if err := s.deps.World.UpdateParticle(pidA, pA); err != nil {
			return fmt.Errorf("sim: updating pair particle: %w", err)
		}
		if err := s.deps.World.UpdateParticle(pidB, pB); err != nil {
			return fmt.Errorf("sim: updating pair particle: %w", err)
		}
		s.deps.RemoveDomain(did)
		if err := s.CreateEvent(pidA, t); err != nil {
			return err
		}
		return s.CreateEvent(pidB, t)

	case domain.Reaction:
		s.deps.RemoveDomain(did)
		info, err := reaction.FireBimolecular(s.deps, pidA, pidB, t)
		if err != nil {
			s.deps.Log.Warn("sim: bimolecular reaction did not fire", "domain", did, "error", err)
			return s.recoverFromRejectedPair(pidA, pidB, t)
		}
		s.recordReaction(*info)
		for _, product := range info.Products {
			if err := s.CreateEvent(product, t); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("sim: %w: pair domain %v has unknown trigger", kerr.ErrEventKindMismatch, did)
}

// recoverFromRejectedPair rebuilds closely-fitted Singles for both
// particles of a pair whose bimolecular firing failed, so create_event
// resizes them properly on the next pass.
func (s *Simulator) recoverFromRejectedPair(pidA, pidB ids.ParticleID, t float64) error {
	for _, pid := range []ids.ParticleID{pidA, pidB} {
		p, ok := s.deps.World.GetParticle(pid)
		if !ok {
			continue
		}
		sid := s.deps.NewShellID()
		rdid := s.deps.NewDomainID()
		sh := shell.Shell{Kind: shell.Circular, Face: p.At.Face, Center: p.At.Pos, Size: p.Radius}
		s.deps.Shells.Add(sid, sh, rdid)
		_ = s.deps.Domains.Add(rdid, domain.Domain{Kind: domain.Single, Single: domain.SingleData{
			Particle: pid, Shell: sid, BeginTime: t, Dt: 0, Trigger: domain.Escape,
		}})
		s.deps.ScheduleDomain(rdid, t)
	}
	return nil
}

func (s *Simulator) dispatchMulti(did ids.DomainID, dom domain.Domain, t float64) error {
	propStates := make([]propagator.MultiParticleState, 0, len(dom.Multi.Particles))
	for _, pid := range dom.Multi.Particles {
		p, ok := s.deps.World.GetParticle(pid)
		if !ok {
			continue
		}
		propStates = append(propStates, propagator.MultiParticleState{ID: pid, At: p.At, Radius: p.Radius, D: p.D})
	}

	dt := t - dom.Multi.BeginTime
	microDt := dom.Multi.Horizon / float64(s.deps.Cfg.Multi.BDMicroStepCap)
	steps := int(dt / microDt)
	if steps < 1 {
		steps = 1
	}
	if steps > s.deps.Cfg.Multi.BDMicroStepCap {
		steps = s.deps.Cfg.Multi.BDMicroStepCap
	}
	microDt = dt / float64(steps)

	var closePairs [][2]int
	for i := 0; i < steps; i++ {
		propStates, closePairs = s.deps.Prop.StepMultiBD(propStates, microDt, s.deps.Cfg.Multi.ReactionEps)
		if len(closePairs) > 0 {
			break
		}
	}

	for _, st := range propStates {
		p, ok := s.deps.World.GetParticle(st.ID)
		if !ok {
			continue
		}
		p.At = st.At
		if err := s.deps.World.UpdateParticle(st.ID, p); err != nil {
			return fmt.Errorf("sim: updating multi particle: %w", err)
		}
	}

	if len(closePairs) > 0 {
		i, j := closePairs[0][0], closePairs[0][1]
		pidA, pidB := propStates[i].ID, propStates[j].ID
		s.deps.RemoveDomain(did)
		info, err := reaction.FireBimolecular(s.deps, pidA, pidB, t)
		if err != nil {
			s.deps.Log.Warn("sim: multi-internal reaction did not fire", "error", err)
		} else {
			s.recordReaction(*info)
		}
		for _, pid := range dom.Multi.Particles {
			if pid == pidA || pid == pidB {
				continue
			}
			if err := s.CreateEvent(pid, t); err != nil {
				return err
			}
		}
		if err == nil {
			for _, product := range info.Products {
				if err := s.CreateEvent(product, t); err != nil {
					return err
				}
			}
		} else {
			for _, pid := range []ids.ParticleID{pidA, pidB} {
				if err := s.CreateEvent(pid, t); err != nil {
					return err
				}
			}
		}
		return nil
	}

	// Horizon reached with no internal reaction: dissolve into Singles.
	s.deps.RemoveDomain(did)
	for _, pid := range dom.Multi.Particles {
		if err := s.CreateEvent(pid, t); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulator) dispatchBirth(t float64) error {
	for _, b := range s.deps.Model.BirthRules() {
		if s.nextBirth[b.ID] > t {
			continue
		}
		attrs, ok := s.deps.Model.ApplySpeciesAttributes(b.Species)
		if !ok {
			continue
		}
		for i := 0; i < b.Count; i++ {
			at := randomLegalPoint(s.deps)
			p := world.Particle{Species: b.Species, At: at, Radius: attrs.Radius, D: attrs.D}
			pid, ok := s.deps.World.CreateParticle(p)
			if !ok {
				continue
			}
			if err := s.CreateEvent(pid, t); err != nil {
				return err
			}
		}
		dt := drawExponential(s.deps, b.Rate)
		s.nextBirth[b.ID] = t + dt
		s.deps.Sched.Add(0, t+dt)
	}
	return nil
}

// CreateEvent is create_event (§4.10): the inverse of firing. It
// chooses Single-circular, Single-conical, Pair, or Multi per
// §4.5/§4.8/§4.9 for a particle that currently owns no domain.
func (s *Simulator) CreateEvent(pid ids.ParticleID, now float64) error {
	p, ok := s.deps.World.GetParticle(pid)
	if !ok {
		return fmt.Errorf("sim: %w: particle %v", kerr.ErrInvariantViolation, pid)
	}

	out := shellbuild.Build(s.deps, pid, p, now)
	if out.Built {
		return nil
	}
	if len(out.Intruders) == 0 {
		return fmt.Errorf("sim: %w: shellbuild reported no shell and no intruders for %v", kerr.ErrInvariantViolation, pid)
	}

	first := out.Intruders[0]
	if dom, ok := s.deps.Domains.Get(first.DomainID); ok && dom.Kind == domain.Single {
		if _, formed := pairformer.Form(s.deps, pid, p, first.DomainID, out.Intruders[1:], now); formed {
			return nil
		}
	}

	_, err := multi.Form(s.deps, pid, p, out.Intruders, now)
	return err
}

func (s *Simulator) recordReaction(info reaction.Info) {
	s.reactions = append(s.reactions, info)
	s.reactionCount++
	s.deps.Log.Info("reaction fired", "reaction", info)
}

// Diagnosis is the no-side-effect integrity check exposed by §6:
// overlapping shells, and particles that lie outside their owning
// domain's shell or have no domain at all (both in ParticleOutOfShell).
// Shells without an owning domain are not checked.
type Diagnosis struct {
	ShellOverlap      error
	ParticleOutOfShell []ids.ParticleID
	Clean             bool
}

func (s *Simulator) Diagnose() Diagnosis {
	diag := Diagnosis{}
	diag.ShellOverlap = s.deps.Shells.CheckNonOverlap(s.deps.Cfg.Numeric.Epsilon)

	for _, pid := range s.deps.World.ListParticles() {
		did, ok := s.deps.Domains.DomainOfParticle(pid)
		if !ok {
			diag.ParticleOutOfShell = append(diag.ParticleOutOfShell, pid)
			continue
		}
		dom, ok := s.deps.Domains.Get(did)
		if !ok {
			diag.ParticleOutOfShell = append(diag.ParticleOutOfShell, pid)
			continue
		}
		p, ok := s.deps.World.GetParticle(pid)
		if !ok {
			continue
		}
		if !particleWithinOwnedShell(s.deps, dom, pid, p) {
			diag.ParticleOutOfShell = append(diag.ParticleOutOfShell, pid)
		}
	}

	diag.Clean = diag.ShellOverlap == nil && len(diag.ParticleOutOfShell) == 0
	if !diag.Clean {
		s.deps.Log.Error("diagnosis found integrity violations", "shell_overlap", diag.ShellOverlap, "particles_out_of_shell", diag.ParticleOutOfShell)
	}
	return diag
}

func particleWithinOwnedShell(d *kernel.Deps, dom domain.Domain, pid ids.ParticleID, p world.Particle) bool {
	for _, sid := range dom.ShellIDs() {
		sh, _, ok := d.Shells.Get(sid)
		if !ok {
			continue
		}
		dist := shell.Distance(d.Poly, sh, p.At)
		if dist <= sh.Size-p.Radius+d.Cfg.Numeric.Epsilon {
			return true
		}
	}
	return false
}

func escapeSingle(d *kernel.Deps, p world.Particle, sh shell.Shell) (geom.SurfacePoint, error) {
	switch sh.Kind {
	case shell.Conical:
		return d.Prop.EscapeSingleConical(p, sh)
	default:
		at := d.Prop.EscapeSingleCircular(p, sh)
		return at, nil
	}
}

func drawExponential(d *kernel.Deps, rate float64) float64 {
	if rate <= 0 {
		return 1e18
	}
	u := d.Prop.RNG.UniformReal()
	return -math.Log(1-u) / rate
}

func randomLegalPoint(d *kernel.Deps) geom.SurfacePoint {
	// Placing a birth particle at an arbitrary known-good face keeps the
	// demo deterministic; callers needing scattered placement should seed
	// explicitly via Simulator.Seed.
	tri, ok := d.Poly.TriangleAt(1)
	if !ok {
		return geom.SurfacePoint{}
	}
	return geom.SurfacePoint{Pos: tri.P[0], Face: tri.ID}
}


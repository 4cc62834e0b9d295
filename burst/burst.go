// Package burst implements the Burst Protocol (C6, §4.6): early
// termination of a non-multi domain, recomputing its particle(s) at the
// current time and freeing its shell, plus the full
// burst_and_shrink_overlaps check used after a reaction proposes a new
// particle position.
package burst

import (
	"fmt"

	"github.com/pthm-cable/sgfrd/domain"
	"github.com/pthm-cable/sgfrd/geom"
	"github.com/pthm-cable/sgfrd/ids"
	"github.com/pthm-cable/sgfrd/kernel"
	"github.com/pthm-cable/sgfrd/shell"
	"github.com/pthm-cable/sgfrd/world"
)

// Burst terminates did at time now: every particle it owns is
// propagated to now, its shell(s) are freed, the domain is removed, and
// each particle is rehomed into its own Single domain wearing a
// closely-fitted transient shell (radius == particle radius) with a
// trivial (dt=0) event — the GLOSSARY's "closely-fitted shell". The
// caller (Shell Constructor, another Burst call, or the simulator's
// Multi-horizon dissolution) is expected to run create_event again
// shortly after to size a proper shell.
func Burst(d *kernel.Deps, did ids.DomainID, now float64) ([]ids.ParticleID, error) {
	dom, ok := d.Domains.Get(did)
	if !ok {
		return nil, fmt.Errorf("burst: unknown domain %v", did)
	}

	var particles []world.Particle
	var pids []ids.ParticleID

	switch dom.Kind {
	case domain.Single:
		pid := dom.Single.Particle
		p, ok := d.World.GetParticle(pid)
		if !ok {
			return nil, fmt.Errorf("burst: unknown particle %v", pid)
		}
		sh, _, _ := d.Shells.Get(dom.Single.Shell)
		p.At = propagateSingleToNow(d, p, sh, dom.Single.BeginTime, now)
		particles = append(particles, p)
		pids = append(pids, pid)

	case domain.Pair:
		pA, okA := d.World.GetParticle(dom.Pair.ParticleA)
		pB, okB := d.World.GetParticle(dom.Pair.ParticleB)
		if !okA || !okB {
			return nil, fmt.Errorf("burst: unknown pair particle(s) for domain %v", did)
		}
		sh, _, _ := d.Shells.Get(dom.Pair.Shell)
		sigma := pA.Radius + pB.Radius
		outcome := d.Prop.PropagatePair(dom.Pair.COM0, dom.Pair.D1, dom.Pair.D2, sigma, sh.Size, dom.Pair.BeginTime, now)
		pA.At, pB.At = outcome.A, outcome.B
		particles = append(particles, pA, pB)
		pids = append(pids, dom.Pair.ParticleA, dom.Pair.ParticleB)

	case domain.Multi:
		// Multi particles are kept up to date by incremental BD steps
		// (§4.4 "Multi"); bursting it just dissolves the aggregate.
		for _, pid := range dom.Multi.Particles {
			p, ok := d.World.GetParticle(pid)
			if !ok {
				continue
			}
			particles = append(particles, p)
			pids = append(pids, pid)
		}

	default:
		return nil, fmt.Errorf("burst: cannot burst domain kind %v", dom.Kind)
	}

	d.RemoveDomain(did)

	for i, p := range particles {
		if err := d.World.UpdateParticle(pids[i], p); err != nil {
			return nil, fmt.Errorf("burst: updating particle %v: %w", pids[i], err)
		}
		rebuildCloselyFitted(d, pids[i], p, now)
	}

	return pids, nil
}

func propagateSingleToNow(d *kernel.Deps, p world.Particle, sh shell.Shell, beginTime, now float64) geom.SurfacePoint {
	if now <= beginTime {
		return p.At
	}
	switch sh.Kind {
	case shell.Conical:
		pos, err := d.Prop.PropagateSingleConical(p, sh, beginTime, now)
		if err != nil {
			d.Log.Warn("burst: conical propagation failed, keeping last known position", "error", err)
			return p.At
		}
		return pos
	default:
		pos, precisionLoss := d.Prop.PropagateSingleCircular(p, sh, beginTime, now)
		if precisionLoss {
			d.Log.Warn("burst: travel exhausted its hop budget, continuing from last known good position")
		}
		return pos
	}
}

// rebuildCloselyFitted rehomes pid into a fresh Single domain whose
// shell's size equals its radius exactly, with a dt=0 event so the
// simulator resolves it (via create_event) on its very next pop.
func rebuildCloselyFitted(d *kernel.Deps, pid ids.ParticleID, p world.Particle, now float64) ids.DomainID {
	sid := d.NewShellID()
	did := d.NewDomainID()

	sh := shell.Shell{Kind: shell.Circular, Face: p.At.Face, Center: p.At.Pos, Size: p.Radius}
	d.Shells.Add(sid, sh, did)

	dom := domain.Domain{Kind: domain.Single, Single: domain.SingleData{
		Particle:  pid,
		Shell:     sid,
		BeginTime: now,
		Dt:        0,
		Trigger:   domain.Escape,
	}}
	_ = d.Domains.Add(did, dom)
	d.ScheduleDomain(did, now)
	return did
}

// AndShrinkOverlaps is burst_and_shrink_overlaps (§4.6): after a
// reaction proposes particle pid at (pos, radius), burst every
// intrusive non-Multi domain other than excluded, and report whether
// the resulting tiling keeps every particle outside the new radius.
func AndShrinkOverlaps(d *kernel.Deps, pid ids.ParticleID, pos geom.SurfacePoint, radius float64, excluded ids.DomainID, now float64) bool {
	intruders := d.Shells.IntrusiveWithin(pos, radius)

	seen := make(map[ids.DomainID]bool)
	for _, in := range intruders {
		did := in.DomainID
		if did == excluded || seen[did] {
			continue
		}
		seen[did] = true
		dom, ok := d.Domains.Get(did)
		if !ok || dom.Kind == domain.Multi {
			continue
		}
		if _, err := Burst(d, did, now); err != nil {
			d.Log.Warn("burst_and_shrink_overlaps: burst failed", "domain", did, "error", err)
			return false
		}
	}

	if _, ok := d.World.GetParticle(pid); !ok {
		return false
	}
	for _, pid2 := range d.World.ListParticles() {
		if pid2 == pid {
			continue
		}
		other, ok := d.World.GetParticle(pid2)
		if !ok {
			continue
		}
		dist := d.Poly.Distance(pos, other.At)
		if dist <= radius+other.Radius {
			return false
		}
	}
	return true
}

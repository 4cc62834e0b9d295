// Package multi implements the Multi Builder (C8, §4.9): form_multi
// coalesces close particles into a single Multi domain advanced by
// Brownian-dynamics microsteps, absorbing further intruders until the
// tiling stabilizes.
package multi

import (
	"fmt"

	"github.com/pthm-cable/sgfrd/burst"
	"github.com/pthm-cable/sgfrd/domain"
	"github.com/pthm-cable/sgfrd/ids"
	"github.com/pthm-cable/sgfrd/kerr"
	"github.com/pthm-cable/sgfrd/kernel"
	"github.com/pthm-cable/sgfrd/shell"
	"github.com/pthm-cable/sgfrd/world"
)

// Form implements form_multi(pid, p, fid, intruders) (§4.9). pid/p is
// the particle that triggered the build; intruders is the list already
// computed by the Shell Constructor. Returns the DomainID of the
// resulting (possibly merged-into) Multi.
func Form(d *kernel.Deps, pid ids.ParticleID, p world.Particle, intruders []shell.Entry, now float64) (ids.DomainID, error) {
	did, err := seedMulti(d, pid, p, intruders, now)
	if err != nil {
		return 0, err
	}
	if err := absorbRemaining(d, did, intruders, now); err != nil {
		return 0, err
	}
	if err := stabilize(d, did, now); err != nil {
		return 0, err
	}
	scheduleMulti(d, did, now)
	return did, nil
}

// scheduleMulti (re)schedules did's BD-microstep/horizon event (§4.9
// step 6, consumed by the Simulator Loop's dispatchMulti): any event
// already on the heap for did is dropped first, since absorbing more
// particles re-bases the multi's clock to now.
func scheduleMulti(d *kernel.Deps, did ids.DomainID, now float64) {
	dom, ok := d.Domains.Get(did)
	if !ok {
		return
	}
	if eid, ok := d.EventOfDomain(did); ok {
		d.Sched.Remove(eid)
	}
	dom.Multi.BeginTime = now
	d.Domains.Update(did, dom)
	d.ScheduleDomain(did, now+dom.Multi.Horizon)
}

// seedMulti is §4.9 steps 1–2: merge into the closest intruder if it is
// already a Multi, otherwise open a fresh empty one, then add (pid, p)
// with a minimum circular shell (radius = r*SHELL_FACTOR).
func seedMulti(d *kernel.Deps, pid ids.ParticleID, p world.Particle, intruders []shell.Entry, now float64) (ids.DomainID, error) {
	var did ids.DomainID
	if len(intruders) > 0 {
		if dom, ok := d.Domains.Get(intruders[0].DomainID); ok && dom.Kind == domain.Multi {
			did = intruders[0].DomainID
		}
	}
	if did == 0 {
		did = d.NewDomainID()
		if err := d.Domains.Add(did, domain.Domain{Kind: domain.Multi, Multi: domain.MultiData{
			BeginTime: now,
			Horizon:   d.Cfg.Multi.Horizon,
		}}); err != nil {
			return 0, fmt.Errorf("multi: seeding empty multi: %w", err)
		}
	}

	sid := d.NewShellID()
	sh := shell.Shell{Kind: shell.Circular, Face: p.At.Face, Center: p.At.Pos, Size: p.Radius * d.Cfg.Shell.Factor}
	d.Shells.Add(sid, sh, did)

	dom, _ := d.Domains.Get(did)
	dom.Multi.Particles = append(dom.Multi.Particles, pid)
	dom.Multi.Shells = append(dom.Multi.Shells, sid)
	d.Domains.Update(did, dom)
	return did, nil
}

// absorbRemaining is §4.9 step 3: for every other intruder within the
// newly-seeded shell, merge (Multi), reject (Pair), or absorb (Single).
func absorbRemaining(d *kernel.Deps, did ids.DomainID, intruders []shell.Entry, now float64) error {
	for _, in := range intruders {
		if in.DomainID == did {
			continue
		}
		dom, ok := d.Domains.Get(in.DomainID)
		if !ok {
			continue
		}
		switch dom.Kind {
		case domain.Multi:
			mergeMulti(d, did, in.DomainID)
		case domain.Pair:
			return fmt.Errorf("multi: %w: pair %v cannot join a multi", kerr.ErrInvariantViolation, in.DomainID)
		case domain.Single:
			absorbSingle(d, did, in.DomainID, dom, now)
		}
	}
	return nil
}

// mergeMulti concatenates src's particles/shells into dst, rewrites
// every absorbed shell's owning domain to dst, and removes src.
func mergeMulti(d *kernel.Deps, dst, src ids.DomainID) {
	if dst == src {
		return
	}
	srcDom, ok := d.Domains.Get(src)
	if !ok {
		return
	}
	dstDom, _ := d.Domains.Get(dst)

	dstDom.Multi.Particles = append(dstDom.Multi.Particles, srcDom.Multi.Particles...)
	dstDom.Multi.Shells = append(dstDom.Multi.Shells, srcDom.Multi.Shells...)

	for _, sid := range srcDom.Multi.Shells {
		if sh, _, ok := d.Shells.Get(sid); ok {
			d.Shells.Add(sid, sh, dst)
		}
	}

	if eid, ok := d.EventOfDomain(src); ok {
		d.Sched.Remove(eid)
	}
	d.Domains.Remove(src)
	d.Domains.Update(dst, dstDom)
}

// absorbSingle shrinks a Single's shell to min_single_radius, rewrites
// its domain_id to the multi, and folds its particle+shell in,
// cancelling its own event (§4.9 step 3's Single branch).
func absorbSingle(d *kernel.Deps, did ids.DomainID, singleDid ids.DomainID, singleDom domain.Domain, now float64) {
	pid := singleDom.Single.Particle
	sid := singleDom.Single.Shell

	part, ok := d.World.GetParticle(pid)
	if !ok {
		return
	}

	if eid, ok := d.EventOfDomain(singleDid); ok {
		d.Sched.Remove(eid)
	}
	d.Domains.Remove(singleDid)

	sh, _, _ := d.Shells.Get(sid)
	sh.Size = part.Radius * d.Cfg.Shell.Factor
	d.Shells.Add(sid, sh, did)

	dom, _ := d.Domains.Get(did)
	dom.Multi.Particles = append(dom.Multi.Particles, pid)
	dom.Multi.Shells = append(dom.Multi.Shells, sid)
	d.Domains.Update(did, dom)
}

// stabilize is §4.9 step 5: recursively rescan the enlarged multi's
// shells for further intrusive domains, absorbing or bursting until no
// more changes occur.
func stabilize(d *kernel.Deps, did ids.DomainID, now float64) error {
	for {
		dom, ok := d.Domains.Get(did)
		if !ok {
			return fmt.Errorf("multi: %w: domain %v vanished mid-stabilize", kerr.ErrInvariantViolation, did)
		}
		changed := false

		for _, sid := range dom.Multi.Shells {
			sh, owner, ok := d.Shells.Get(sid)
			if !ok || owner != did {
				continue
			}
			center := sh.SurfacePoint(d.Poly)
			found := d.Shells.IntrusiveWithin(center, sh.Size)
			for _, in := range found {
				if in.DomainID == did {
					continue
				}
				other, ok := d.Domains.Get(in.DomainID)
				if !ok {
					continue
				}
				switch other.Kind {
				case domain.Multi:
					mergeMulti(d, did, in.DomainID)
					changed = true
				case domain.Single:
					if in.Distance <= sh.Size {
						absorbSingle(d, did, in.DomainID, other, now)
					} else {
						burstIntoMulti(d, in.DomainID, now)
					}
					changed = true
				case domain.Pair:
					burstIntoMulti(d, in.DomainID, now)
					changed = true
				}
			}
			if changed {
				break
			}
		}

		if !changed {
			return nil
		}
	}
}

// burstIntoMulti bursts a non-multi domain found too far from the
// absorbing shell's center to fold in directly (§4.9 step 5: "burst
// non-multis... enqueue closely-fitted domains for the rest"); Burst
// itself rehomes the freed particle(s) into closely-fitted Singles,
// which the next stabilize pass re-examines.
func burstIntoMulti(d *kernel.Deps, did ids.DomainID, now float64) {
	if _, err := burst.Burst(d, did, now); err != nil {
		d.Log.Warn("multi: burst during stabilize failed", "domain", did, "error", err)
	}
}

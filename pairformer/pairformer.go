// Package pairformer implements form_pair (§4.8): given a newly created
// (or just-bursted) particle conflicting with exactly one Single
// neighbor, attempts to fuse the two into a Pair domain sharing one
// circular shell.
package pairformer

import (
	"math"

	"github.com/pthm-cable/sgfrd/domain"
	"github.com/pthm-cable/sgfrd/geom"
	"github.com/pthm-cable/sgfrd/ids"
	"github.com/pthm-cable/sgfrd/kernel"
	"github.com/pthm-cable/sgfrd/shell"
	"github.com/pthm-cable/sgfrd/world"
)

// Form attempts to pair pid (at p) with the single intruder identified
// by partnerDid. Returns the new Pair DomainID and true on success;
// false means the caller should fall back to form_multi (§4.8 step 1
// and step 6's "else return none").
func Form(d *kernel.Deps, pid ids.ParticleID, p world.Particle, partnerDid ids.DomainID, otherIntruders []shell.Entry, now float64) (ids.DomainID, bool) {
	partnerDom, ok := d.Domains.Get(partnerDid)
	if !ok || partnerDom.Kind != domain.Single {
		return 0, false
	}
	partnerPid := partnerDom.Single.Particle
	partner, ok := d.World.GetParticle(partnerPid)
	if !ok {
		return 0, false
	}

	ipv := d.Poly.Direction(p.At, partner.At)
	ipvLen := d.Poly.Distance(p.At, partner.At)
	d12 := p.D + partner.D

	sh1 := ipvLen*p.D/d12 + p.Radius
	sh2 := ipvLen*partner.D/d12 + partner.Radius
	shMinim := d.Cfg.Pair.SizeFactor * math.Max(sh1, sh2)

	comWeight := ipvLen * (p.D / d12)
	comDisp := geom.Real3{X: ipv.X * comWeight, Y: ipv.Y * comWeight, Z: ipv.Z * comWeight}
	comAt, _ := d.Poly.Travel(p.At, comDisp, d.Prop.MaxHops)

	maxSize := d.Poly.NearestEdgeDistance(comAt.Pos, comAt.Face)
	for _, in := range otherIntruders {
		if in.DomainID == partnerDid {
			continue
		}
		bound := in.Distance - minimumShellOf(in.Shell)
		if bound < maxSize {
			maxSize = bound
		}
	}

	pairShellSize := maxSize * d.Cfg.Derived.EffectiveMergin
	if pairShellSize < shMinim {
		return 0, false
	}

	d.RemoveDomain(partnerDid)

	sid := d.NewShellID()
	did := d.NewDomainID()
	sh := shell.Shell{Kind: shell.Circular, Face: comAt.Face, Center: comAt.Pos, Size: pairShellSize}
	d.Shells.Add(sid, sh, did)

	dom := domain.Domain{Kind: domain.Pair, Pair: domain.PairData{
		ParticleA: pid,
		ParticleB: partnerPid,
		Shell:     sid,
		BeginTime: now,
		IPV0:      ipv,
		COM0:      comAt,
		D1:        p.D,
		D2:        partner.D,
	}}

	dt := drawPairEscapeTime(d, pairShellSize, p.Radius+partner.Radius, d12)
	dom.Pair.Dt = dt
	dom.Pair.Trigger = domain.Escape

	_ = d.Domains.Add(did, dom)
	d.ScheduleDomain(did, now+dt)
	return did, true
}

// minimumShellOf approximates "its-minimum-shell" (§4.8 step 5) for an
// intruding shell: the shell's own size stands in for the intruder's
// minimum achievable radius, since the particle radius behind an
// arbitrary shell entry isn't visible from here.
func minimumShellOf(sh shell.Shell) float64 {
	return sh.Size
}

// drawPairEscapeTime mirrors shellbuild's draw_time treatment for
// Singles, applied to the Pair's IPV escaping at separation
// pairShellSize: an exponential draw scaled by the IPV's characteristic
// absorption timescale.
func drawPairEscapeTime(d *kernel.Deps, shellSize, sigma, dIpv float64) float64 {
	a := math.Max(shellSize-sigma, 0)
	if a <= 0 || dIpv <= 0 {
		return 0
	}
	mean := a * a / (4 * dIpv)
	u := d.Prop.RNG.UniformReal()
	return -math.Log(1-u) * mean
}

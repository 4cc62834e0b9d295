// Package shellbuild implements the Shell Constructor (C5, §4.5): given
// a particle needing a fresh event, it sizes the largest circular or
// conical shell the current tiling allows, or reports the intruders
// that block one so the caller can attempt a Pair or Multi instead.
package shellbuild

import (
	"math"

	"github.com/pthm-cable/sgfrd/burst"
	"github.com/pthm-cable/sgfrd/domain"
	"github.com/pthm-cable/sgfrd/geom"
	"github.com/pthm-cable/sgfrd/ids"
	"github.com/pthm-cable/sgfrd/kernel"
	"github.com/pthm-cable/sgfrd/shell"
	"github.com/pthm-cable/sgfrd/world"
)

// Outcome is what Build produced: either a ready-to-schedule Single
// domain, or a list of intruders the caller must resolve into a Pair or
// Multi (§4.5 "return the intruder list").
type Outcome struct {
	// Built is true when a Single domain+shell was created and
	// scheduled; DomainID names it.
	Built    bool
	DomainID ids.DomainID

	// Intruders is populated when Built is false: the domains standing
	// in the way, closest first.
	Intruders []shell.Entry
}

// Build is create_event's shell-sizing half (§4.5): given a particle
// that currently owns no domain, construct the largest non-overlapping
// shell the tiling allows and schedule its Single domain, or return the
// intruders blocking one.
func Build(d *kernel.Deps, pid ids.ParticleID, p world.Particle, now float64) Outcome {
	maxCircle := d.Poly.NearestEdgeDistance(p.At.Pos, p.At.Face)
	minCircle := p.Radius * d.Cfg.Shell.Factor

	if maxCircle >= minCircle {
		if out, ok := buildCircular(d, pid, p, now, maxCircle, minCircle); ok {
			return out
		}
	}
	return buildConical(d, pid, p, now)
}

// buildCircular attempts §4.5's circular-shell branch. Every path returns
// ok = true, so Build does not fall back to a conical shell once this
// branch has run; Outcome.Built false with non-empty Intruders means
// "go form a pair or multi instead".
func buildCircular(d *kernel.Deps, pid ids.ParticleID, p world.Particle, now, maxCircle, minCircle float64) (Outcome, bool) {
	_, vdist := d.Poly.NearestVertex(p.At.Pos, p.At.Face)

	intruders := d.Shells.IntrusiveWithin(p.At, maxCircle)

	var minShellIntruders, rest []shell.Entry
	for _, in := range intruders {
		if in.Distance <= minCircle {
			minShellIntruders = append(minShellIntruders, in)
		} else {
			rest = append(rest, in)
		}
	}

	if len(minShellIntruders) == 0 {
		size := maxCircle
		if vdist < size {
			size = vdist
		}
		if len(rest) > 0 && rest[0].Distance < size {
			size = rest[0].Distance
		}
		size *= d.Cfg.Derived.EffectiveMergin
		return Outcome{Built: true, DomainID: createCircularSingle(d, pid, p, now, size)}, true
	}

	for _, in := range minShellIntruders {
		if dom, ok := d.Domains.Get(in.DomainID); ok && dom.Kind != domain.Multi {
			if _, err := burst.Burst(d, in.DomainID, now); err != nil {
				d.Log.Warn("shellbuild: burst of min-shell intruder failed", "domain", in.DomainID, "error", err)
			}
		}
	}

	postBurst := d.Shells.IntrusiveWithin(p.At, maxCircle)
	if len(postBurst) == 0 || postBurst[0].Distance > minCircle {
		size := maxCircle
		if len(postBurst) > 0 && postBurst[0].Distance < size {
			size = postBurst[0].Distance
		}
		size *= d.Cfg.Derived.EffectiveMergin
		return Outcome{Built: true, DomainID: createCircularSingle(d, pid, p, now, size)}, true
	}

	return Outcome{Built: false, Intruders: postBurst}, true
}

// buildConical is §4.5's "else attempt a conical shell" branch.
func buildConical(d *kernel.Deps, pid ids.ParticleID, p world.Particle, now float64) Outcome {
	vid, _ := d.Poly.NearestVertex(p.At.Pos, p.At.Face)
	maxCone := d.Poly.MaxConeSize(vid)
	minCone := p.Radius * d.Cfg.Shell.Factor

	vertexPoint := vertexSurfacePoint(d, vid)
	intruders := d.Shells.IntrusiveWithin(vertexPoint, maxCone)

	var minShellIntruders, rest []shell.Entry
	for _, in := range intruders {
		if in.Distance <= minCone {
			minShellIntruders = append(minShellIntruders, in)
		} else {
			rest = append(rest, in)
		}
	}

	if len(minShellIntruders) == 0 {
		size := maxCone
		if len(rest) > 0 && rest[0].Distance < size {
			size = rest[0].Distance
		}
		size *= d.Cfg.Derived.EffectiveMergin
		return Outcome{Built: true, DomainID: createConicalSingle(d, pid, p, now, vid, size)}
	}

	for _, in := range minShellIntruders {
		if dom, ok := d.Domains.Get(in.DomainID); ok && dom.Kind != domain.Multi {
			if _, err := burst.Burst(d, in.DomainID, now); err != nil {
				d.Log.Warn("shellbuild: burst of min-shell intruder failed", "domain", in.DomainID, "error", err)
			}
		}
	}

	postBurst := d.Shells.IntrusiveWithin(vertexPoint, maxCone)
	if len(postBurst) == 0 || postBurst[0].Distance > minCone {
		size := maxCone
		if len(postBurst) > 0 && postBurst[0].Distance < size {
			size = postBurst[0].Distance
		}
		size *= d.Cfg.Derived.EffectiveMergin
		return Outcome{Built: true, DomainID: createConicalSingle(d, pid, p, now, vid, size)}
	}

	return Outcome{Built: false, Intruders: postBurst}
}

func vertexSurfacePoint(d *kernel.Deps, vid ids.VertexID) geom.SurfacePoint {
	v, _ := d.Poly.VertexAt(vid)
	faces := d.Poly.FacesAroundVertex(vid)
	var face ids.FaceID
	if len(faces) > 0 {
		face = faces[0]
	}
	return geom.SurfacePoint{Pos: v.Pos, Face: face}
}

func createCircularSingle(d *kernel.Deps, pid ids.ParticleID, p world.Particle, now, size float64) ids.DomainID {
	sid := d.NewShellID()
	did := d.NewDomainID()
	sh := shell.Shell{Kind: shell.Circular, Face: p.At.Face, Center: p.At.Pos, Size: size}
	d.Shells.Add(sid, sh, did)
	return scheduleSingle(d, did, sid, pid, p, now)
}

func createConicalSingle(d *kernel.Deps, pid ids.ParticleID, p world.Particle, now float64, vid ids.VertexID, size float64) ids.DomainID {
	sid := d.NewShellID()
	did := d.NewDomainID()
	sh := shell.Shell{Kind: shell.Conical, Vertex: vid, Size: size}
	d.Shells.Add(sid, sh, did)
	return scheduleSingle(d, did, sid, pid, p, now)
}

// scheduleSingle implements the "Supplemented features" draw_time rule
// (SPEC_FULL.md): an escape time is drawn from the shell geometry and a
// reaction time from the particle's applicable monomolecular rules; the
// Single fires whichever comes first.
func scheduleSingle(d *kernel.Deps, did ids.DomainID, sid ids.ShellID, pid ids.ParticleID, p world.Particle, now float64) ids.DomainID {
	sh, _, _ := d.Shells.Get(sid)

	dtEscape := drawEscapeTime(d, p, sh)
	dtReaction, hasReaction := drawReactionTime(d, p)

	dt := dtEscape
	trigger := domain.Escape
	if hasReaction && dtReaction < dtEscape {
		dt = dtReaction
		trigger = domain.Reaction
	}

	dom := domain.Domain{Kind: domain.Single, Single: domain.SingleData{
		Particle:  pid,
		Shell:     sid,
		BeginTime: now,
		Dt:        dt,
		Trigger:   trigger,
	}}
	_ = d.Domains.Add(did, dom)
	d.ScheduleDomain(did, now+dt)
	return did
}

// drawEscapeTime draws a first-passage time out of the shell: an
// exponential with rate set by the shell's characteristic absorption
// timescale a^2/(4D), inverted by sampling -ln(U) against that rate —
// consistent with the GLOSSARY's "escape time" as a stand-in for the
// exact Green's-function survival-probability inversion (§1, out of
// scope; see greens package doc comment).
func drawEscapeTime(d *kernel.Deps, p world.Particle, sh shell.Shell) float64 {
	a := sh.Size - p.Radius
	if a <= 0 || p.D <= 0 {
		return 0
	}
	mean := a * a / (4 * p.D)
	u := d.Prop.RNG.UniformReal()
	return -math.Log(1-u) * mean
}

// drawReactionTime is draw_time_from_single_reaction (SPEC_FULL.md
// Supplemented features): -log(U)/k_total over every applicable
// monomolecular rule.
func drawReactionTime(d *kernel.Deps, p world.Particle) (float64, bool) {
	rules := d.Model.QueryReactionRules(p.Species)
	var kTotal float64
	for _, r := range rules {
		if r.Order() == 1 {
			kTotal += r.K
		}
	}
	if kTotal <= 0 {
		return 0, false
	}
	u := d.Prop.RNG.UniformReal()
	return -math.Log(1-u) / kTotal, true
}

// Package propagator implements the Geometric Propagator (C4, §4.4):
// it draws displacements from Green's functions and translates them
// into travel along the polygon surface.
package propagator

import (
	"math"

	"github.com/pthm-cable/sgfrd/geom"
	"github.com/pthm-cable/sgfrd/greens"
	"github.com/pthm-cable/sgfrd/ids"
	"github.com/pthm-cable/sgfrd/shell"
	"github.com/pthm-cable/sgfrd/world"
)

// Sampler is the randomness the propagator needs: the §6 RNG contract
// plus a Gaussian draw for Multi Builder BD microsteps.
type Sampler interface {
	UniformReal() float64
	Normal(stddev float64) float64
}

// Propagator is the Geometric Propagator. It holds no simulation state
// of its own; every method is a pure function of its arguments plus the
// polygon and RNG.
type Propagator struct {
	Poly geom.Polygon
	RNG  Sampler

	// MaxHops bounds how many polygon edges a single travel call may
	// cross (§4.4 step 6: "crossing edges up to 2 hops").
	MaxHops int
}

func New(poly geom.Polygon, r Sampler) *Propagator {
	return &Propagator{Poly: poly, RNG: r, MaxHops: 2}
}

func (p *Propagator) direction(face ids.FaceID, theta float64) geom.Real3 {
	tri, ok := p.Poly.TriangleAt(face)
	if !ok {
		return geom.Real3{}
	}
	ref := tri.RepresentativeEdge()
	rot := rotateAboutAxis(theta, tri.Normal)
	return rot(ref)
}

// rotateAboutAxis returns a function rotating a vector by angle around
// axis using Rodrigues' rotation formula.
func rotateAboutAxis(angle float64, axis geom.Real3) func(geom.Real3) geom.Real3 {
	cos, sin := math.Cos(angle), math.Sin(angle)
	return func(v geom.Real3) geom.Real3 {
		cross := geom.Real3{
			X: axis.Y*v.Z - axis.Z*v.Y,
			Y: axis.Z*v.X - axis.X*v.Z,
			Z: axis.X*v.Y - axis.Y*v.X,
		}
		dot := axis.X*v.X + axis.Y*v.Y + axis.Z*v.Z
		return geom.Real3{
			X: v.X*cos + cross.X*sin + axis.X*dot*(1-cos),
			Y: v.Y*cos + cross.Y*sin + axis.Y*dot*(1-cos),
			Z: v.Z*cos + cross.Z*sin + axis.Z*dot*(1-cos),
		}
	}
}

// PropagateSingleCircular advances a Single on a circular shell to an
// arbitrary time tm strictly before its escape (§4.4 "Single on circular
// shell, propagate"). precisionLoss is set if travel exhausted its hop
// budget without settling — logged by the caller, not fatal (§7).
func (p *Propagator) PropagateSingleCircular(part world.Particle, sh shell.Shell, beginTime, tm float64) (geom.SurfacePoint, bool) {
	a := sh.Size - part.Radius
	gf := greens.AbsSym2D{D: part.D, A: a}
	dt := tm - beginTime
	r := gf.DrawR(p.RNG.UniformReal(), dt)
	theta := p.RNG.UniformReal() * 2 * math.Pi
	return p.travel(part.At, sh.Face, r, theta)
}

// EscapeSingleCircular resolves the deterministic boundary-hit outcome:
// r equals the full shell margin and theta is uniform.
func (p *Propagator) EscapeSingleCircular(part world.Particle, sh shell.Shell) geom.SurfacePoint {
	r := sh.Size - part.Radius
	if r <= 0 {
		return part.At
	}
	theta := p.RNG.UniformReal() * 2 * math.Pi
	pt, _ := p.travel(part.At, sh.Face, r, theta)
	return pt
}

func (p *Propagator) travel(at geom.SurfacePoint, face ids.FaceID, r, theta float64) (geom.SurfacePoint, bool) {
	dir := p.direction(face, theta)
	disp := geom.Real3{X: dir.X * r, Y: dir.Y * r, Z: dir.Z * r}
	settled, hopsLeft := p.Poly.Travel(geom.SurfacePoint{Pos: at.Pos, Face: face}, disp, p.MaxHops)
	return settled, hopsLeft == 0
}

// PropagateSingleConical / EscapeSingleConical mirror the circular case
// but draw from the reflecting-wedge Green's function and use Roll
// instead of a face-plane rotation + travel (§4.4 "Single on conical
// shell").
func (p *Propagator) PropagateSingleConical(part world.Particle, sh shell.Shell, beginTime, tm float64) (geom.SurfacePoint, error) {
	r0 := distanceToApex(p.Poly, part.At, sh.Vertex)
	a := sh.Size - part.Radius
	gf := greens.RefWedgeAbs2D{D: part.D, R0: r0, A: a, Phi: apexAngle(p.Poly, sh.Vertex)}
	dt := tm - beginTime
	r := gf.DrawR(p.RNG.UniformReal(), dt)
	theta := gf.DrawTheta(p.RNG.UniformReal())
	return p.Poly.Roll(part.At, sh.Vertex, r, theta)
}

func (p *Propagator) EscapeSingleConical(part world.Particle, sh shell.Shell) (geom.SurfacePoint, error) {
	a := sh.Size - part.Radius
	if a <= 0 {
		return part.At, nil
	}
	gf := greens.RefWedgeAbs2D{Phi: apexAngle(p.Poly, sh.Vertex)}
	theta := gf.DrawTheta(p.RNG.UniformReal())
	return p.Poly.Roll(part.At, sh.Vertex, a, theta)
}

func distanceToApex(poly geom.Polygon, at geom.SurfacePoint, vid ids.VertexID) float64 {
	v, ok := poly.VertexAt(vid)
	if !ok {
		return 0
	}
	return poly.Distance(at, geom.SurfacePoint{Pos: v.Pos, Face: at.Face})
}

func apexAngle(poly geom.Polygon, vid ids.VertexID) float64 {
	v, ok := poly.VertexAt(vid)
	if !ok {
		return 2 * math.Pi
	}
	return v.ApexAngle
}

// PairOutcome is the two resolved particle positions after a Pair
// domain's decomposition (§4.4 "Pair").
type PairOutcome struct {
	A, B geom.SurfacePoint
}

// PropagatePair draws the center-of-mass displacement (2D absorbing) and
// the IPV evolution (2D absorbing at separation sigma), then recombines
// them into two surface positions (§4.8's D1/D2-weighted split).
func (p *Propagator) PropagatePair(comAt geom.SurfacePoint, d1, d2, sigma, shellSize float64, beginTime, tm float64) PairOutcome {
	dCom := d1 * d2 / (d1 + d2)
	dIpv := d1 + d2
	dt := tm - beginTime

	gfCom := greens.AbsSym2D{D: dCom, A: shellSize}
	rCom := gfCom.DrawR(p.RNG.UniformReal(), dt)
	thetaCom := p.RNG.UniformReal() * 2 * math.Pi

	gfIpv := greens.AbsSym2D{D: dIpv, A: math.Max(shellSize-sigma, 0)}
	rIpv := gfIpv.DrawR(p.RNG.UniformReal(), dt)
	thetaIpv := p.RNG.UniformReal() * 2 * math.Pi

	return p.recombine(comAt, rCom, thetaCom, rIpv, thetaIpv, d1, d2)
}

// EscapePair resolves the deterministic boundary-hit outcome for a Pair:
// the IPV (or CoM) has reached the shell margin exactly.
func (p *Propagator) EscapePair(comAt geom.SurfacePoint, d1, d2, sigma, shellSize float64, ipvEscaped bool) PairOutcome {
	rCom, rIpv := 0.0, sigma
	if !ipvEscaped {
		rCom = shellSize
		rIpv = sigma
	} else {
		rIpv = math.Max(shellSize-sigma, 0)
	}
	thetaCom := p.RNG.UniformReal() * 2 * math.Pi
	thetaIpv := p.RNG.UniformReal() * 2 * math.Pi
	return p.recombine(comAt, rCom, thetaCom, rIpv, thetaIpv, d1, d2)
}

func (p *Propagator) recombine(comAt geom.SurfacePoint, rCom, thetaCom, rIpv, thetaIpv, d1, d2 float64) PairOutcome {
	comDir := p.direction(comAt.Face, thetaCom)
	comDisp := geom.Real3{X: comDir.X * rCom, Y: comDir.Y * rCom, Z: comDir.Z * rCom}
	com, _ := p.Poly.Travel(comAt, comDisp, p.MaxHops)

	ipvDir := p.direction(com.Face, thetaIpv)
	w1, w2 := d1/(d1+d2), d2/(d1+d2)

	dispA := geom.Real3{X: ipvDir.X * rIpv * w1, Y: ipvDir.Y * rIpv * w1, Z: ipvDir.Z * rIpv * w1}
	dispB := geom.Real3{X: -ipvDir.X * rIpv * w2, Y: -ipvDir.Y * rIpv * w2, Z: -ipvDir.Z * rIpv * w2}

	a, _ := p.Poly.Travel(com, dispA, p.MaxHops)
	b, _ := p.Poly.Travel(com, dispB, p.MaxHops)
	return PairOutcome{A: a, B: b}
}

// MultiParticleState is one particle's working state during a Multi's
// BD microsteps.
type MultiParticleState struct {
	ID     ids.ParticleID
	At     geom.SurfacePoint
	Radius float64
	D      float64
}

// StepMultiBD advances every particle in states by one BD microstep of
// size dt: a Gaussian step of variance 2*D*dt projected onto its current
// face, rejecting any step that would make two particles overlap
// (§4.4 "Multi"). Returns the advanced states and the (i,j) pairs within
// sigmaEps of reacting.
func (p *Propagator) StepMultiBD(states []MultiParticleState, dt, sigmaEps float64) (advanced []MultiParticleState, closePairs [][2]int) {
	advanced = make([]MultiParticleState, len(states))
	copy(advanced, states)

	for i := range advanced {
		s := advanced[i]
		stddev := math.Sqrt(2 * s.D * dt)
		if stddev <= 0 {
			continue
		}
		dx := p.RNG.Normal(stddev)
		dy := p.RNG.Normal(stddev)
		tri, ok := p.Poly.TriangleAt(s.At.Face)
		if !ok {
			continue
		}
		edge := tri.RepresentativeEdge()
		perp := geom.Real3{
			X: tri.Normal.Y*edge.Z - tri.Normal.Z*edge.Y,
			Y: tri.Normal.Z*edge.X - tri.Normal.X*edge.Z,
			Z: tri.Normal.X*edge.Y - tri.Normal.Y*edge.X,
		}
		disp := geom.Real3{
			X: edge.X*dx + perp.X*dy,
			Y: edge.Y*dx + perp.Y*dy,
			Z: edge.Z*dx + perp.Z*dy,
		}
		moved, _ := p.Poly.Travel(s.At, disp, p.MaxHops)

		overlaps := false
		for j := range advanced {
			if j == i {
				continue
			}
			d := p.Poly.Distance(moved, advanced[j].At)
			if d < s.Radius+advanced[j].Radius {
				overlaps = true
				break
			}
		}
		if !overlaps {
			advanced[i].At = moved
		}
	}

	for i := 0; i < len(advanced); i++ {
		for j := i + 1; j < len(advanced); j++ {
			d := p.Poly.Distance(advanced[i].At, advanced[j].At)
			if d <= advanced[i].Radius+advanced[j].Radius+sigmaEps {
				closePairs = append(closePairs, [2]int{i, j})
			}
		}
	}
	return advanced, closePairs
}

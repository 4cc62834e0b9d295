package pairformer

import (
	"testing"

	"github.com/pthm-cable/sgfrd/config"
	"github.com/pthm-cable/sgfrd/domain"
	"github.com/pthm-cable/sgfrd/geom"
	"github.com/pthm-cable/sgfrd/model"
	"github.com/pthm-cable/sgfrd/propagator"
	"github.com/pthm-cable/sgfrd/shell"
	"github.com/pthm-cable/sgfrd/world"

	"github.com/pthm-cable/sgfrd/kernel"
)

type fixedSampler struct {
	uniforms []float64
	i        int
}

func (f *fixedSampler) UniformReal() float64 {
	if len(f.uniforms) == 0 {
		return 0
	}
	u := f.uniforms[f.i%len(f.uniforms)]
	f.i++
	return u
}

func (f *fixedSampler) Normal(stddev float64) float64 { return 0 }

func newTestDeps(uniforms ...float64) *kernel.Deps {
	poly := geom.NewSheet(geom.SheetOptions{NX: 1, NY: 1, Width: 1000, Height: 1000})
	reg := model.NewRegistry()
	reg.AddSpecies(model.Species{Name: "A", Radius: 0.1, D: 1.0})
	w := world.NewArkWorld(reg)
	prop := propagator.New(poly, &fixedSampler{uniforms: uniforms})
	cfg := &config.Config{
		Shell: config.ShellConfig{Factor: 1.5, Mergin: 1 - 1e-7},
		Pair:  config.PairConfig{SizeFactor: 3},
	}
	cfg.Derived.EffectiveMergin = cfg.Shell.Mergin
	return kernel.New(poly, w, reg, prop, cfg, nil)
}

func centroidPoint(d *kernel.Deps) geom.SurfacePoint {
	tri, _ := d.Poly.TriangleAt(1)
	c := geom.Real3{
		X: (tri.P[0].X + tri.P[1].X + tri.P[2].X) / 3,
		Y: (tri.P[0].Y + tri.P[1].Y + tri.P[2].Y) / 3,
		Z: (tri.P[0].Z + tri.P[1].Z + tri.P[2].Z) / 3,
	}
	return geom.SurfacePoint{Pos: c, Face: tri.ID}
}

func TestFormSucceedsWithRoomToSpare(t *testing.T) {
	d := newTestDeps(0.3)
	com := centroidPoint(d)
	near := geom.SurfacePoint{Pos: geom.Real3{X: com.Pos.X + 0.3, Y: com.Pos.Y, Z: com.Pos.Z}, Face: com.Face}

	pid, _ := d.World.CreateParticle(world.Particle{Species: "A", Radius: 0.1, D: 1.0, At: near})
	partnerPid, _ := d.World.CreateParticle(world.Particle{Species: "A", Radius: 0.1, D: 1.0, At: com})

	sid := d.NewShellID()
	partnerDid := d.NewDomainID()
	d.Shells.Add(sid, shell.Shell{Kind: shell.Circular, Face: com.Face, Center: com.Pos, Size: 0.15}, partnerDid)
	_ = d.Domains.Add(partnerDid, domain.Domain{Kind: domain.Single, Single: domain.SingleData{Particle: partnerPid, Shell: sid, BeginTime: 0, Dt: 1}})
	d.ScheduleDomain(partnerDid, 1)

	p, _ := d.World.GetParticle(pid)
	did, ok := Form(d, pid, p, partnerDid, nil, 0.0)
	if !ok {
		t.Fatalf("expected Form to succeed")
	}
	dom, okGet := d.Domains.Get(did)
	if !okGet || dom.Kind != domain.Pair {
		t.Fatalf("Domains.Get(%v) = %+v, %v, want a Pair domain", did, dom, okGet)
	}
	if dom.Pair.ParticleA != pid || dom.Pair.ParticleB != partnerPid {
		t.Errorf("Pair particles = %v, %v, want %v, %v", dom.Pair.ParticleA, dom.Pair.ParticleB, pid, partnerPid)
	}
	if _, stillThere := d.Domains.Get(partnerDid); stillThere {
		t.Errorf("expected the partner's original single domain %v to be removed", partnerDid)
	}
}

func TestFormFailsWhenPartnerIsNotSingle(t *testing.T) {
	d := newTestDeps(0.3)
	com := centroidPoint(d)
	pid, _ := d.World.CreateParticle(world.Particle{Species: "A", Radius: 0.1, D: 1.0, At: com})

	multiDid := d.NewDomainID()
	_ = d.Domains.Add(multiDid, domain.Domain{Kind: domain.Multi})

	p, _ := d.World.GetParticle(pid)
	_, ok := Form(d, pid, p, multiDid, nil, 0.0)
	if ok {
		t.Errorf("expected Form to refuse a non-Single partner")
	}
}

func TestFormFailsWhenOtherIntruderTooClose(t *testing.T) {
	d := newTestDeps(0.3)
	com := centroidPoint(d)
	near := geom.SurfacePoint{Pos: geom.Real3{X: com.Pos.X + 0.3, Y: com.Pos.Y, Z: com.Pos.Z}, Face: com.Face}

	pid, _ := d.World.CreateParticle(world.Particle{Species: "A", Radius: 0.1, D: 1.0, At: near})
	partnerPid, _ := d.World.CreateParticle(world.Particle{Species: "A", Radius: 0.1, D: 1.0, At: com})

	sid := d.NewShellID()
	partnerDid := d.NewDomainID()
	d.Shells.Add(sid, shell.Shell{Kind: shell.Circular, Face: com.Face, Center: com.Pos, Size: 0.15}, partnerDid)
	_ = d.Domains.Add(partnerDid, domain.Domain{Kind: domain.Single, Single: domain.SingleData{Particle: partnerPid, Shell: sid, BeginTime: 0, Dt: 1}})
	d.ScheduleDomain(partnerDid, 1)

	// A third shell (size 10) sitting essentially on top of the COM bounds
	// maxSize to 0.001 - 10, about -10, well below sh_minim, so Form must
	// refuse.
	otherIntruders := []shell.Entry{{
		ID:    d.NewShellID(),
		Shell: shell.Shell{Kind: shell.Circular, Size: 10},
		Distance: 0.001,
	}}

	p, _ := d.World.GetParticle(pid)
	_, ok := Form(d, pid, p, partnerDid, otherIntruders, 0.0)
	if ok {
		t.Errorf("expected Form to refuse when another intruder leaves no room for a pair shell")
	}
}

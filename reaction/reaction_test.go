package reaction

import (
	"errors"
	"testing"

	"github.com/pthm-cable/sgfrd/config"
	"github.com/pthm-cable/sgfrd/domain"
	"github.com/pthm-cable/sgfrd/geom"
	"github.com/pthm-cable/sgfrd/ids"
	"github.com/pthm-cable/sgfrd/kerr"
	"github.com/pthm-cable/sgfrd/kernel"
	"github.com/pthm-cable/sgfrd/model"
	"github.com/pthm-cable/sgfrd/propagator"
	"github.com/pthm-cable/sgfrd/shell"
	"github.com/pthm-cable/sgfrd/world"
)

// fixedSampler feeds a fixed, cyclically-reused sequence of uniforms so
// rule selection and split directions are deterministic to check against.
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

func testConfig() *config.Config {
	cfg := &config.Config{
		Shell:    config.ShellConfig{Factor: 1.5, Mergin: 1 - 1e-7},
		Reaction: config.ReactionConfig{SplitRetryCap: 3, SplitSeparationScale: 0.01},
	}
	cfg.Derived.EffectiveMergin = cfg.Shell.Mergin
	return cfg
}

func newTestDeps(uniforms ...float64) *kernel.Deps {
	poly := geom.NewSheet(geom.SheetOptions{NX: 1, NY: 1, Width: 1000, Height: 1000})
	reg := model.NewRegistry()
	reg.AddSpecies(model.Species{Name: "A", Radius: 0.1, D: 1.0})
	reg.AddSpecies(model.Species{Name: "B", Radius: 0.1, D: 1.0})
	reg.AddSpecies(model.Species{Name: "C", Radius: 0.1, D: 1.0})
	w := world.NewArkWorld(reg)
	prop := propagator.New(poly, &fixedSampler{uniforms: uniforms})
	return kernel.New(poly, w, reg, prop, testConfig(), nil)
}

// singlePoint is face 1's centroid, away from every vertex and edge, so
// split products have room on either side of the parent.
func singlePoint(d *kernel.Deps) geom.SurfacePoint {
	tri, _ := d.Poly.TriangleAt(1)
	c := geom.Real3{
		X: (tri.P[0].X + tri.P[1].X + tri.P[2].X) / 3,
		Y: (tri.P[0].Y + tri.P[1].Y + tri.P[2].Y) / 3,
		Z: (tri.P[0].Z + tri.P[1].Z + tri.P[2].Z) / 3,
	}
	return geom.SurfacePoint{Pos: c, Face: tri.ID}
}

// scheduleTestSingle creates a particle and a Single domain wearing a
// shell of the given size, without going through shellbuild, so the
// reaction tests can exercise FireMonomolecular directly.
func scheduleTestSingle(d *kernel.Deps, species string, shellSize float64) (ids.DomainID, ids.ParticleID) {
	attrs, _ := d.Model.ApplySpeciesAttributes(species)
	pid, _ := d.World.CreateParticle(world.Particle{Species: species, Radius: attrs.Radius, D: attrs.D, At: singlePoint(d)})

	sid := d.NewShellID()
	did := d.NewDomainID()
	d.Shells.Add(sid, shell.Shell{Kind: shell.Circular, Face: singlePoint(d).Face, Center: singlePoint(d).Pos, Size: shellSize}, did)
	_ = d.Domains.Add(did, domain.Domain{Kind: domain.Single, Single: domain.SingleData{Particle: pid, Shell: sid, BeginTime: 0, Dt: 1, Trigger: domain.Reaction}})
	d.ScheduleDomain(did, 1)
	return did, pid
}

func TestFireMonomolecularDegradationRemovesParticle(t *testing.T) {
	d := newTestDeps(0.5)
	d.Model.(*model.Registry).AddRule(model.ReactionRule{ID: "degrade-A", Reactants: []string{"A"}, Products: nil, K: 1.0})

	did, pid := scheduleTestSingle(d, "A", 1.0)

	info, err := FireMonomolecular(d, did, 1.0)
	if err != nil {
		t.Fatalf("FireMonomolecular: %v", err)
	}
	if info.RuleID != "degrade-A" || len(info.Products) != 0 {
		t.Errorf("info = %+v, want rule degrade-A with no products", info)
	}
	if _, ok := d.World.GetParticle(pid); ok {
		t.Errorf("expected degraded particle %v to be removed", pid)
	}
	if _, ok := d.Domains.Get(did); ok {
		t.Errorf("expected domain %v to be removed", did)
	}
}

func TestFireMonomolecularDecayFitsInShell(t *testing.T) {
	d := newTestDeps(0.5)
	d.Model.(*model.Registry).AddRule(model.ReactionRule{ID: "decay-A-B", Reactants: []string{"A"}, Products: []string{"B"}, K: 1.0})

	did, pid := scheduleTestSingle(d, "A", 1.0) // shell comfortably larger than B's radius (0.1)

	info, err := FireMonomolecular(d, did, 1.0)
	if err != nil {
		t.Fatalf("FireMonomolecular: %v", err)
	}
	if len(info.Products) != 1 || info.Products[0] != pid {
		t.Errorf("info.Products = %v, want [%v]", info.Products, pid)
	}
	got, ok := d.World.GetParticle(pid)
	if !ok || got.Species != "B" {
		t.Errorf("GetParticle(%v) = %+v, %v, want species B", pid, got, ok)
	}
	if _, ok := d.Domains.Get(did); ok {
		t.Errorf("expected original domain %v to be removed after decay", did)
	}
}

func TestFireMonomolecularSplitPlacesTwoProducts(t *testing.T) {
	// theta draws: rule selection (unused, only one rule) then split angle.
	d := newTestDeps(0.0, 0.0)
	d.Model.(*model.Registry).AddRule(model.ReactionRule{ID: "split-A", Reactants: []string{"A"}, Products: []string{"B", "C"}, K: 1.0})

	did, _ := scheduleTestSingle(d, "A", 1.0)

	info, err := FireMonomolecular(d, did, 1.0)
	if err != nil {
		t.Fatalf("FireMonomolecular: %v", err)
	}
	if len(info.Products) != 2 {
		t.Fatalf("info.Products = %v, want 2 products", info.Products)
	}
	pA, okA := d.World.GetParticle(info.Products[0])
	pB, okB := d.World.GetParticle(info.Products[1])
	if !okA || !okB {
		t.Fatalf("expected both split products to exist in the world")
	}
	if pA.Species != "B" || pB.Species != "C" {
		t.Errorf("split products = %q, %q, want B, C", pA.Species, pB.Species)
	}
	dist := d.Poly.Distance(pA.At, pB.At)
	if dist < pA.Radius+pB.Radius-1e-9 {
		t.Errorf("split products overlap: distance %v, radii sum %v", dist, pA.Radius+pB.Radius)
	}
}

func TestFireMonomolecularAcceptsTwoProductRule(t *testing.T) {
	d := newTestDeps(0.5)
	d.Model.(*model.Registry).AddRule(model.ReactionRule{ID: "bad-rule", Reactants: []string{"A"}, Products: []string{"B", "C"}, K: 1.0})
	did, _ := scheduleTestSingle(d, "A", 1.0)

	_, err := FireMonomolecular(d, did, 1.0)
	if err != nil {
		t.Fatalf("expected a valid 2-product split to succeed, got %v", err)
	}
}

func TestFireMonomolecularNoRuleErrors(t *testing.T) {
	d := newTestDeps(0.5)
	did, _ := scheduleTestSingle(d, "A", 1.0)

	_, err := FireMonomolecular(d, did, 1.0)
	if err == nil {
		t.Errorf("expected an error when species A has no order-1 rule")
	}
}

func TestFireMonomolecularWrongDomainKindErrors(t *testing.T) {
	d := newTestDeps(0.5)
	did := d.NewDomainID()
	_ = d.Domains.Add(did, domain.Domain{Kind: domain.Multi, Multi: domain.MultiData{Particles: nil}})

	_, err := FireMonomolecular(d, did, 1.0)
	if !errors.Is(err, kerr.ErrEventKindMismatch) {
		t.Errorf("expected ErrEventKindMismatch, got %v", err)
	}
}

func TestFireBimolecularAnnihilationRemovesBoth(t *testing.T) {
	d := newTestDeps(0.5)
	d.Model.(*model.Registry).AddRule(model.ReactionRule{ID: "fuse-AB-none", Reactants: []string{"A", "B"}, Products: nil, K: 1.0})

	pA, _ := d.World.CreateParticle(world.Particle{Species: "A", Radius: 0.1, D: 1.0, At: singlePoint(d)})
	pB, _ := d.World.CreateParticle(world.Particle{Species: "B", Radius: 0.1, D: 1.0, At: singlePoint(d)})

	info, err := FireBimolecular(d, pA, pB, 1.0)
	if err != nil {
		t.Fatalf("FireBimolecular: %v", err)
	}
	if len(info.Products) != 0 {
		t.Errorf("info.Products = %v, want none", info.Products)
	}
	if _, ok := d.World.GetParticle(pA); ok {
		t.Errorf("expected reactant %v removed", pA)
	}
	if _, ok := d.World.GetParticle(pB); ok {
		t.Errorf("expected reactant %v removed", pB)
	}
}

func TestFireBimolecularMergeWeightsByDiffusivity(t *testing.T) {
	d := newTestDeps(0.5)
	d.Model.(*model.Registry).AddRule(model.ReactionRule{ID: "fuse-AB-C", Reactants: []string{"A", "B"}, Products: []string{"C"}, K: 1.0})

	tri, _ := d.Poly.TriangleAt(1)
	atA := geom.SurfacePoint{Pos: tri.P[0], Face: tri.ID}
	atB := geom.SurfacePoint{Pos: tri.P[1], Face: tri.ID}
	pA, _ := d.World.CreateParticle(world.Particle{Species: "A", Radius: 0.1, D: 1.0, At: atA})
	pB, _ := d.World.CreateParticle(world.Particle{Species: "B", Radius: 0.1, D: 1.0, At: atB})

	info, err := FireBimolecular(d, pA, pB, 1.0)
	if err != nil {
		t.Fatalf("FireBimolecular: %v", err)
	}
	if len(info.Products) != 1 {
		t.Fatalf("info.Products = %v, want 1 merged product", info.Products)
	}
	merged, ok := d.World.GetParticle(info.Products[0])
	if !ok || merged.Species != "C" {
		t.Fatalf("expected merged product of species C, got %+v, %v", merged, ok)
	}
	// Equal diffusivities merge at the midpoint.
	wantX := (atA.Pos.X + atB.Pos.X) / 2
	if diff := merged.At.Pos.X - wantX; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("merged position X = %v, want %v", merged.At.Pos.X, wantX)
	}
	if _, ok := d.World.GetParticle(pA); ok {
		t.Errorf("expected reactant %v removed after merge", pA)
	}
	if _, ok := d.World.GetParticle(pB); ok {
		t.Errorf("expected reactant %v removed after merge", pB)
	}
}

func TestFireBimolecularTwoProductsUpdatesBothInPlace(t *testing.T) {
	d := newTestDeps(0.5)
	d.Model.(*model.Registry).AddRule(model.ReactionRule{ID: "exchange-AB", Reactants: []string{"A", "B"}, Products: []string{"B", "A"}, K: 1.0})

	pA, _ := d.World.CreateParticle(world.Particle{Species: "A", Radius: 0.1, D: 1.0, At: singlePoint(d)})
	pB, _ := d.World.CreateParticle(world.Particle{Species: "B", Radius: 0.1, D: 1.0, At: singlePoint(d)})

	info, err := FireBimolecular(d, pA, pB, 1.0)
	if err != nil {
		t.Fatalf("FireBimolecular: %v", err)
	}
	if len(info.Products) != 2 {
		t.Fatalf("info.Products = %v, want 2", info.Products)
	}
	gotA, _ := d.World.GetParticle(pA)
	gotB, _ := d.World.GetParticle(pB)
	if gotA.Species != "B" || gotB.Species != "A" {
		t.Errorf("exchange reaction = %q, %q, want B, A", gotA.Species, gotB.Species)
	}
}

func TestFireBimolecularNoMatchingRuleErrors(t *testing.T) {
	d := newTestDeps(0.5)
	pA, _ := d.World.CreateParticle(world.Particle{Species: "A", Radius: 0.1, D: 1.0, At: singlePoint(d)})
	pB, _ := d.World.CreateParticle(world.Particle{Species: "B", Radius: 0.1, D: 1.0, At: singlePoint(d)})

	_, err := FireBimolecular(d, pA, pB, 1.0)
	if err == nil {
		t.Errorf("expected an error when no order-2 rule matches A+B")
	}
}

func TestFireBimolecularMissingParticleIsInvariantViolation(t *testing.T) {
	d := newTestDeps(0.5)
	_, err := FireBimolecular(d, 9999, 9998, 1.0)
	if !errors.Is(err, kerr.ErrInvariantViolation) {
		t.Errorf("expected ErrInvariantViolation, got %v", err)
	}
}

func TestInfoLogValueGroupsFields(t *testing.T) {
	info := Info{Time: 3.5, RuleID: "r1", Reactants: []ids.ParticleID{1}, Products: []ids.ParticleID{2, 3}}
	v := info.LogValue()
	if v.Kind().String() != "Group" {
		t.Errorf("LogValue().Kind() = %v, want Group", v.Kind())
	}
	group := v.Group()
	if len(group) != 4 {
		t.Errorf("LogValue() group len = %d, want 4", len(group))
	}
}

// Package reaction implements the Reaction Engine (C7, §4.7):
// monomolecular firing on a Single domain (0/1/2 products) and the
// shared product-placement kernel bimolecular firings on Pair/Multi
// domains reuse.
package reaction

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/pthm-cable/sgfrd/burst"
	"github.com/pthm-cable/sgfrd/domain"
	"github.com/pthm-cable/sgfrd/geom"
	"github.com/pthm-cable/sgfrd/ids"
	"github.com/pthm-cable/sgfrd/kerr"
	"github.com/pthm-cable/sgfrd/kernel"
	"github.com/pthm-cable/sgfrd/model"
	"github.com/pthm-cable/sgfrd/shell"
	"github.com/pthm-cable/sgfrd/world"
)

// Info is one fired reaction, appended to the simulator's observable
// `last_reactions()` list (§6).
type Info struct {
	Time      float64
	RuleID    string
	Reactants []ids.ParticleID
	Products  []ids.ParticleID
}

// LogValue implements slog.LogValuer, grounded on the teacher's
// telemetry.WindowStats.LogValue.
func (r Info) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("time", r.Time),
		slog.String("rule", r.RuleID),
		slog.Any("reactants", r.Reactants),
		slog.Any("products", r.Products),
	)
}

// FireMonomolecular fires the reaction event already scheduled on a
// Single domain (§4.7). The Single's shell is freed either way; on
// success the domain is gone and Info.Products lists the particles the
// caller builds new domains for; on revert the original particle keeps
// its position (a split parent is re-created under a new particle ID)
// and a fresh closely-fitted domain is rebuilt for it so the caller's
// create_event runs again next.
func FireMonomolecular(d *kernel.Deps, did ids.DomainID, now float64) (*Info, error) {
	dom, ok := d.Domains.Get(did)
	if !ok || dom.Kind != domain.Single {
		return nil, fmt.Errorf("reaction: %w: domain %v is not a single", kerr.ErrEventKindMismatch, did)
	}
	pid := dom.Single.Particle
	p, ok := d.World.GetParticle(pid)
	if !ok {
		return nil, fmt.Errorf("reaction: %w: particle %v", kerr.ErrInvariantViolation, pid)
	}

	rule, ok := pickRule(d, p.Species)
	if !ok {
		return nil, fmt.Errorf("reaction: no order-1 rule for species %q", p.Species)
	}
	if len(rule.Products) > 2 {
		return nil, fmt.Errorf("reaction: %w: rule %s has %d products", kerr.ErrUnsupportedRule, rule.ID, len(rule.Products))
	}

	sid := dom.Single.Shell
	sh, _, _ := d.Shells.Get(sid)

	info := &Info{Time: now, RuleID: rule.ID, Reactants: []ids.ParticleID{pid}}

	switch len(rule.Products) {
	case 0:
		d.RemoveDomain(did)
		if err := d.World.RemoveParticle(pid); err != nil {
			return nil, fmt.Errorf("reaction: removing degraded particle: %w", err)
		}
		return info, nil

	case 1:
		return fireDecay(d, did, pid, p, sh, rule, info, now)

	case 2:
		return fireSplit(d, did, pid, p, sh, rule, info, now)

	default:
		return nil, fmt.Errorf("reaction: %w: rule %s", kerr.ErrUnsupportedRule, rule.ID)
	}
}

// fireDecay is the 1→1 branch: the particle changes species in place.
// If the new radius still fits inside the current shell, accept
// immediately; otherwise attempt burst_and_shrink_overlaps and accept
// only if it clears the region, reverting to the original species
// otherwise (§4.7).
func fireDecay(d *kernel.Deps, did ids.DomainID, pid ids.ParticleID, p world.Particle, sh shell.Shell, rule model.ReactionRule, info *Info, now float64) (*Info, error) {
	species := rule.Products[0]
	attrs, ok := d.Model.ApplySpeciesAttributes(species)
	if !ok {
		return nil, fmt.Errorf("reaction: unknown product species %q", species)
	}

	shellSize := sh.Size
	newP := p
	newP.Species = species
	newP.Radius = attrs.Radius
	newP.D = attrs.D

	if attrs.Radius <= shellSize {
		d.RemoveDomain(did)
		if err := d.World.UpdateParticle(pid, newP); err != nil {
			return nil, fmt.Errorf("reaction: updating decayed particle: %w", err)
		}
		info.Products = []ids.ParticleID{pid}
		return info, nil
	}

	d.RemoveDomain(did)
	if err := d.World.UpdateParticle(pid, newP); err != nil {
		return nil, fmt.Errorf("reaction: updating decayed particle: %w", err)
	}
	ok = burst.AndShrinkOverlaps(d, pid, newP.At, newP.Radius, 0, now)
	if !ok {
		// Revert: restore the original species/radius/D and rebuild a
		// closely-fitted Single for it.
		if err := d.World.UpdateParticle(pid, p); err != nil {
			return nil, fmt.Errorf("reaction: reverting decay: %w", err)
		}
		sid := d.NewShellID()
		rdid := d.NewDomainID()
		d.Shells.Add(sid, shell.Shell{Kind: shell.Circular, Face: p.At.Face, Center: p.At.Pos, Size: p.Radius}, rdid)
		_ = d.Domains.Add(rdid, domain.Domain{Kind: domain.Single, Single: domain.SingleData{
			Particle: pid, Shell: sid, BeginTime: now, Dt: 0, Trigger: domain.Escape,
		}})
		d.ScheduleDomain(rdid, now)
		return nil, fmt.Errorf("reaction: %w: decay of %v rejected", kerr.ErrRejectedPlacement, pid)
	}
	info.Products = []ids.ParticleID{pid}
	return info, nil
}

// fireSplit is the 1→2 branch: up to SplitRetryCap attempts sample an
// IPV of length r1+r2+sigma_sep, split the parent's position with a
// mass-weighted offset, and accept the first attempt whose two products
// end up non-overlapping (via burst_and_shrink_overlaps); sigma_sep
// doubles each retry (§4.7).
func fireSplit(d *kernel.Deps, did ids.DomainID, pid ids.ParticleID, p world.Particle, sh shell.Shell, rule model.ReactionRule, info *Info, now float64) (*Info, error) {
	attrsA, okA := d.Model.ApplySpeciesAttributes(rule.Products[0])
	attrsB, okB := d.Model.ApplySpeciesAttributes(rule.Products[1])
	if !okA || !okB {
		return nil, fmt.Errorf("reaction: unknown product species in rule %s", rule.ID)
	}

	r1, r2 := attrsA.Radius, attrsB.Radius
	d1, d2 := attrsA.D, attrsB.D
	sigmaSep := d.Cfg.Reaction.SplitSeparationScale

	d.RemoveDomain(did)
	// The parent leaves the World while its products are placed, so the
	// overlap checks below do not count it against them.
	if err := d.World.RemoveParticle(pid); err != nil {
		return nil, fmt.Errorf("reaction: removing split parent: %w", err)
	}

	for attempt := 0; attempt < d.Cfg.Reaction.SplitRetryCap; attempt++ {
		length := r1 + r2 + sigmaSep
		theta := d.Prop.RNG.UniformReal() * 2 * math.Pi
		dir := unitDirection(d, p.At.Face, theta)

		w1, w2 := d1/(d1+d2), d2/(d1+d2)
		dispA := geom.Real3{X: dir.X * length * w1, Y: dir.Y * length * w1, Z: dir.Z * length * w1}
		dispB := geom.Real3{X: -dir.X * length * w2, Y: -dir.Y * length * w2, Z: -dir.Z * length * w2}

		atA, _ := d.Poly.Travel(p.At, dispA, d.Prop.MaxHops)
		atB, _ := d.Poly.Travel(p.At, dispB, d.Prop.MaxHops)

		if d.Poly.Distance(atA, atB) < r1+r2 {
			sigmaSep *= 2
			continue
		}

		pidA, okA2 := d.World.CreateParticle(world.Particle{Species: rule.Products[0], At: atA, Radius: r1, D: d1})
		pidB, okB2 := d.World.CreateParticle(world.Particle{Species: rule.Products[1], At: atB, Radius: r2, D: d2})
		if !okA2 || !okB2 {
			sigmaSep *= 2
			continue
		}

		okOverlapA := burst.AndShrinkOverlaps(d, pidA, atA, r1, 0, now)
		okOverlapB := burst.AndShrinkOverlaps(d, pidB, atB, r2, 0, now)
		if okOverlapA && okOverlapB {
			info.Products = []ids.ParticleID{pidA, pidB}
			return info, nil
		}

		_ = d.World.RemoveParticle(pidA)
		_ = d.World.RemoveParticle(pidB)
		sigmaSep *= 2
	}

	// Every attempt failed to find a clean placement: revert by putting
	// the unchanged parent back (under a new particle ID) and rebuilding
	// a closely-fitted Single for it.
	rpid, ok := d.World.CreateParticle(p)
	if !ok {
		return nil, fmt.Errorf("reaction: %w: restoring split parent %v", kerr.ErrInvariantViolation, pid)
	}
	sid := d.NewShellID()
	rdid := d.NewDomainID()
	newSh := shell.Shell{Kind: shell.Circular, Face: p.At.Face, Center: p.At.Pos, Size: p.Radius}
	d.Shells.Add(sid, newSh, rdid)
	_ = d.Domains.Add(rdid, domain.Domain{Kind: domain.Single, Single: domain.SingleData{
		Particle: rpid, Shell: sid, BeginTime: now, Dt: 0, Trigger: domain.Escape,
	}})
	d.ScheduleDomain(rdid, now)
	return nil, fmt.Errorf("reaction: %w: split of %v rejected after %d attempts", kerr.ErrRejectedPlacement, pid, d.Cfg.Reaction.SplitRetryCap)
}

// FireBimolecular fires a bimolecular reaction between two particles
// already sharing a Pair or Multi domain (§4.7: "Bimolecular reactions
// happen inside Pair/Multi following the same kernel"). The caller
// (sim's Pair/Multi dispatch) is responsible for removing the owning
// domain before or after the call; FireBimolecular only touches the
// World.
func FireBimolecular(d *kernel.Deps, pidA, pidB ids.ParticleID, now float64) (*Info, error) {
	pA, okA := d.World.GetParticle(pidA)
	pB, okB := d.World.GetParticle(pidB)
	if !okA || !okB {
		return nil, fmt.Errorf("reaction: %w: missing pair particle", kerr.ErrInvariantViolation)
	}

	rule, ok := pickBimolecularRule(d, pA.Species, pB.Species)
	if !ok {
		return nil, fmt.Errorf("reaction: no order-2 rule matches %q + %q", pA.Species, pB.Species)
	}
	if len(rule.Products) > 2 {
		return nil, fmt.Errorf("reaction: %w: rule %s has %d products", kerr.ErrUnsupportedRule, rule.ID, len(rule.Products))
	}

	info := &Info{Time: now, RuleID: rule.ID, Reactants: []ids.ParticleID{pidA, pidB}}

	switch len(rule.Products) {
	case 0:
		if err := d.World.RemoveParticle(pidA); err != nil {
			return nil, fmt.Errorf("reaction: removing bimolecular reactant: %w", err)
		}
		if err := d.World.RemoveParticle(pidB); err != nil {
			return nil, fmt.Errorf("reaction: removing bimolecular reactant: %w", err)
		}
		return info, nil

	case 1:
		attrs, ok := d.Model.ApplySpeciesAttributes(rule.Products[0])
		if !ok {
			return nil, fmt.Errorf("reaction: unknown product species %q", rule.Products[0])
		}
		dTotal := pA.D + pB.D
		wA, wB := pA.D/dTotal, pB.D/dTotal
		com := geom.Real3{
			X: pA.At.Pos.X*wA + pB.At.Pos.X*wB,
			Y: pA.At.Pos.Y*wA + pB.At.Pos.Y*wB,
			Z: pA.At.Pos.Z*wA + pB.At.Pos.Z*wB,
		}
		merged := world.Particle{Species: rule.Products[0], At: geom.SurfacePoint{Pos: com, Face: pA.At.Face}, Radius: attrs.Radius, D: attrs.D}
		pid, ok := d.World.CreateParticle(merged)
		if !ok {
			return nil, fmt.Errorf("reaction: creating merged bimolecular product")
		}
		if err := d.World.RemoveParticle(pidA); err != nil {
			return nil, fmt.Errorf("reaction: removing bimolecular reactant: %w", err)
		}
		if err := d.World.RemoveParticle(pidB); err != nil {
			return nil, fmt.Errorf("reaction: removing bimolecular reactant: %w", err)
		}
		info.Products = []ids.ParticleID{pid}
		return info, nil

	default:
		attrsA, okA := d.Model.ApplySpeciesAttributes(rule.Products[0])
		attrsB, okB := d.Model.ApplySpeciesAttributes(rule.Products[1])
		if !okA || !okB {
			return nil, fmt.Errorf("reaction: unknown product species in rule %s", rule.ID)
		}
		newA, newB := pA, pB
		newA.Species, newA.Radius, newA.D = rule.Products[0], attrsA.Radius, attrsA.D
		newB.Species, newB.Radius, newB.D = rule.Products[1], attrsB.Radius, attrsB.D
		if err := d.World.UpdateParticle(pidA, newA); err != nil {
			return nil, fmt.Errorf("reaction: updating bimolecular product: %w", err)
		}
		if err := d.World.UpdateParticle(pidB, newB); err != nil {
			return nil, fmt.Errorf("reaction: updating bimolecular product: %w", err)
		}
		info.Products = []ids.ParticleID{pidA, pidB}
		return info, nil
	}
}

func pickBimolecularRule(d *kernel.Deps, speciesA, speciesB string) (model.ReactionRule, bool) {
	var candidates []model.ReactionRule
	var kTotal float64
	seen := make(map[string]bool)
	for _, r := range d.Model.QueryReactionRules(speciesA) {
		if r.Order() != 2 || !matchesPair(r, speciesA, speciesB) || seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		candidates = append(candidates, r)
		kTotal += r.K
	}
	for _, r := range d.Model.QueryReactionRules(speciesB) {
		if r.Order() != 2 || !matchesPair(r, speciesA, speciesB) || seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		candidates = append(candidates, r)
		kTotal += r.K
	}
	if len(candidates) == 0 || kTotal <= 0 {
		return model.ReactionRule{}, false
	}
	target := d.Prop.RNG.UniformReal() * kTotal
	var cum float64
	for _, r := range candidates {
		cum += r.K
		if target <= cum {
			return r, true
		}
	}
	return candidates[len(candidates)-1], true
}

func matchesPair(r model.ReactionRule, speciesA, speciesB string) bool {
	if len(r.Reactants) != 2 {
		return false
	}
	return (r.Reactants[0] == speciesA && r.Reactants[1] == speciesB) ||
		(r.Reactants[0] == speciesB && r.Reactants[1] == speciesA)
}

func pickRule(d *kernel.Deps, species string) (model.ReactionRule, bool) {
	rules := d.Model.QueryReactionRules(species)
	var order1 []model.ReactionRule
	var kTotal float64
	for _, r := range rules {
		if r.Order() == 1 {
			order1 = append(order1, r)
			kTotal += r.K
		}
	}
	if len(order1) == 0 || kTotal <= 0 {
		return model.ReactionRule{}, false
	}
	target := d.Prop.RNG.UniformReal() * kTotal
	var cum float64
	for _, r := range order1 {
		cum += r.K
		if target <= cum {
			return r, true
		}
	}
	return order1[len(order1)-1], true
}

func unitDirection(d *kernel.Deps, face ids.FaceID, theta float64) geom.Real3 {
	tri, ok := d.Poly.TriangleAt(face)
	if !ok {
		return geom.Real3{}
	}
	ref := tri.RepresentativeEdge()
	cos, sin := math.Cos(theta), math.Sin(theta)
	axis := tri.Normal
	cross := geom.Real3{
		X: axis.Y*ref.Z - axis.Z*ref.Y,
		Y: axis.Z*ref.X - axis.X*ref.Z,
		Z: axis.X*ref.Y - axis.Y*ref.X,
	}
	dot := axis.X*ref.X + axis.Y*ref.Y + axis.Z*ref.Z
	return geom.Real3{
		X: ref.X*cos + cross.X*sin + axis.X*dot*(1-cos),
		Y: ref.Y*cos + cross.Y*sin + axis.Y*dot*(1-cos),
		Z: ref.Z*cos + cross.Z*sin + axis.Z*dot*(1-cos),
	}
}

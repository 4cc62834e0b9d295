// Package world implements the particle World contract (§6): id
// allocation plus a persistent position-and-species store. The World is
// an out-of-scope external collaborator per spec.md §1 ("the particle
// world ... referenced only by its contract"); this package backs that
// contract with a real entity-component store (github.com/mlange-42/ark)
// instead of a hand-rolled map, the same role ark plays for organisms in
// the teacher's game.Game.
package world

import (
	"fmt"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/sgfrd/geom"
	"github.com/pthm-cable/sgfrd/ids"
	"github.com/pthm-cable/sgfrd/model"
)

// Particle is the ECS component stored per particle entity.
type Particle struct {
	Species string
	At      geom.SurfacePoint
	Radius  float64
	D       float64
}

// World is the particle-store contract consumed by the kernel.
type World interface {
	ListParticles() []ids.ParticleID
	GetParticle(pid ids.ParticleID) (Particle, bool)
	UpdateParticle(pid ids.ParticleID, p Particle) error
	CreateParticle(p Particle) (ids.ParticleID, bool)
	RemoveParticle(pid ids.ParticleID) error
	GetMoleculeInfo(species string) (radius, d float64, ok bool)
}

// ArkWorld is the ark-ECS-backed World implementation.
type ArkWorld struct {
	ecsWorld *ecs.World
	particle *ecs.Map1[Particle]
	model    model.Model

	counter ids.Counter
	toEntity map[ids.ParticleID]ecs.Entity
	toID     map[ecs.Entity]ids.ParticleID
}

// NewArkWorld builds an empty World backed by a fresh ark ecs.World.
func NewArkWorld(m model.Model) *ArkWorld {
	w := ecs.NewWorld()
	return &ArkWorld{
		ecsWorld: &w,
		particle: ecs.NewMap1[Particle](&w),
		model:    m,
		toEntity: make(map[ids.ParticleID]ecs.Entity),
		toID:     make(map[ecs.Entity]ids.ParticleID),
	}
}

func (w *ArkWorld) ListParticles() []ids.ParticleID {
	out := make([]ids.ParticleID, 0, len(w.toEntity))
	for pid := range w.toEntity {
		out = append(out, pid)
	}
	return out
}

func (w *ArkWorld) GetParticle(pid ids.ParticleID) (Particle, bool) {
	e, ok := w.toEntity[pid]
	if !ok {
		return Particle{}, false
	}
	p := w.particle.Get(e)
	if p == nil {
		return Particle{}, false
	}
	return *p, true
}

func (w *ArkWorld) UpdateParticle(pid ids.ParticleID, p Particle) error {
	e, ok := w.toEntity[pid]
	if !ok {
		return fmt.Errorf("world: unknown particle %v", pid)
	}
	*w.particle.Get(e) = p
	return nil
}

func (w *ArkWorld) CreateParticle(p Particle) (ids.ParticleID, bool) {
	e := w.particle.NewEntity(&p)
	pid := ids.ParticleID(w.counter.Next())
	w.toEntity[pid] = e
	w.toID[e] = pid
	return pid, true
}

func (w *ArkWorld) RemoveParticle(pid ids.ParticleID) error {
	e, ok := w.toEntity[pid]
	if !ok {
		return fmt.Errorf("world: unknown particle %v", pid)
	}
	w.particle.Remove(e)
	delete(w.toEntity, pid)
	delete(w.toID, e)
	return nil
}

func (w *ArkWorld) GetMoleculeInfo(species string) (float64, float64, bool) {
	s, ok := w.model.ApplySpeciesAttributes(species)
	if !ok {
		return 0, 0, false
	}
	return s.Radius, s.D, true
}

package world

import (
	"testing"

	"github.com/pthm-cable/sgfrd/model"
)

func newTestWorld() *ArkWorld {
	reg := model.NewRegistry()
	reg.AddSpecies(model.Species{Name: "A", Radius: 0.1, D: 1.0})
	return NewArkWorld(reg)
}

func TestCreateAndGetParticle(t *testing.T) {
	w := newTestWorld()
	p := Particle{Species: "A", Radius: 0.1, D: 1.0}
	pid, ok := w.CreateParticle(p)
	if !ok {
		t.Fatalf("CreateParticle failed")
	}

	got, ok := w.GetParticle(pid)
	if !ok {
		t.Fatalf("GetParticle(%v) missed", pid)
	}
	if got.Species != "A" || got.Radius != 0.1 {
		t.Errorf("GetParticle = %+v, want Species=A Radius=0.1", got)
	}
}

func TestUpdateParticle(t *testing.T) {
	w := newTestWorld()
	pid, _ := w.CreateParticle(Particle{Species: "A", Radius: 0.1, D: 1.0})

	updated := Particle{Species: "A", Radius: 0.2, D: 2.0}
	if err := w.UpdateParticle(pid, updated); err != nil {
		t.Fatalf("UpdateParticle failed: %v", err)
	}

	got, _ := w.GetParticle(pid)
	if got.Radius != 0.2 || got.D != 2.0 {
		t.Errorf("GetParticle after update = %+v, want Radius=0.2 D=2.0", got)
	}
}

func TestUpdateUnknownParticleErrors(t *testing.T) {
	w := newTestWorld()
	if err := w.UpdateParticle(9999, Particle{}); err == nil {
		t.Errorf("expected error updating an unknown particle")
	}
}

func TestRemoveParticle(t *testing.T) {
	w := newTestWorld()
	pid, _ := w.CreateParticle(Particle{Species: "A", Radius: 0.1, D: 1.0})

	if err := w.RemoveParticle(pid); err != nil {
		t.Fatalf("RemoveParticle failed: %v", err)
	}
	if _, ok := w.GetParticle(pid); ok {
		t.Errorf("expected particle to be gone after removal")
	}
}

func TestListParticles(t *testing.T) {
	w := newTestWorld()
	pid1, _ := w.CreateParticle(Particle{Species: "A"})
	pid2, _ := w.CreateParticle(Particle{Species: "A"})

	list := w.ListParticles()
	if len(list) != 2 {
		t.Fatalf("ListParticles() len = %d, want 2", len(list))
	}
	seen := map[uint64]bool{}
	for _, pid := range list {
		seen[uint64(pid)] = true
	}
	if !seen[uint64(pid1)] || !seen[uint64(pid2)] {
		t.Errorf("ListParticles() = %v, want to contain %v and %v", list, pid1, pid2)
	}
}

func TestGetMoleculeInfo(t *testing.T) {
	w := newTestWorld()
	radius, d, ok := w.GetMoleculeInfo("A")
	if !ok || radius != 0.1 || d != 1.0 {
		t.Errorf("GetMoleculeInfo(A) = %v, %v, %v, want 0.1, 1.0, true", radius, d, ok)
	}

	_, _, ok = w.GetMoleculeInfo("unknown")
	if ok {
		t.Errorf("expected GetMoleculeInfo(unknown) to miss")
	}
}

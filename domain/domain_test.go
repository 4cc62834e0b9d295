package domain

import (
	"testing"

	"github.com/pthm-cable/sgfrd/ids"
)

func TestMultiplicity(t *testing.T) {
	tests := []struct {
		name string
		d    Domain
		want int
	}{
		{"single", Domain{Kind: Single, Single: SingleData{Particle: 1}}, 1},
		{"pair", Domain{Kind: Pair, Pair: PairData{ParticleA: 1, ParticleB: 2}}, 2},
		{"multi", Domain{Kind: Multi, Multi: MultiData{Particles: []ids.ParticleID{1, 2, 3}}}, 3},
		{"birth", Domain{Kind: Birth}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.d.Multiplicity(); got != tt.want {
				t.Errorf("Multiplicity() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRegistryAddRejectsDoubleOwnedParticle(t *testing.T) {
	r := NewRegistry()
	if err := r.Add(1, Domain{Kind: Single, Single: SingleData{Particle: 10, Shell: 100}}); err != nil {
		t.Fatalf("first Add failed: %v", err)
	}
	err := r.Add(2, Domain{Kind: Single, Single: SingleData{Particle: 10, Shell: 200}})
	if err == nil {
		t.Errorf("expected error adding a domain over an already-owned particle")
	}
}

func TestRegistryAddRejectsDoubleOwnedShell(t *testing.T) {
	r := NewRegistry()
	if err := r.Add(1, Domain{Kind: Single, Single: SingleData{Particle: 10, Shell: 100}}); err != nil {
		t.Fatalf("first Add failed: %v", err)
	}
	err := r.Add(2, Domain{Kind: Single, Single: SingleData{Particle: 20, Shell: 100}})
	if err == nil {
		t.Errorf("expected error adding a domain over an already-owned shell")
	}
}

func TestRegistryRemoveClearsIndices(t *testing.T) {
	r := NewRegistry()
	_ = r.Add(1, Domain{Kind: Single, Single: SingleData{Particle: 10, Shell: 100}})
	r.Remove(1)

	if _, ok := r.Get(1); ok {
		t.Errorf("expected domain 1 to be gone")
	}
	if _, ok := r.DomainOfParticle(10); ok {
		t.Errorf("expected particle 10 to be unowned after removal")
	}
	if _, ok := r.DomainOfShell(100); ok {
		t.Errorf("expected shell 100 to be unowned after removal")
	}

	// Re-adding the same particle/shell to a new domain must now succeed.
	if err := r.Add(2, Domain{Kind: Single, Single: SingleData{Particle: 10, Shell: 100}}); err != nil {
		t.Errorf("expected re-add after removal to succeed, got %v", err)
	}
}

func TestRegistryUpdatePreservesLookup(t *testing.T) {
	r := NewRegistry()
	_ = r.Add(1, Domain{Kind: Multi, Multi: MultiData{
		Particles: []ids.ParticleID{10},
		Shells:    []ids.ShellID{100},
	}})
	r.Update(1, Domain{Kind: Multi, Multi: MultiData{
		Particles: []ids.ParticleID{10, 20},
		Shells:    []ids.ShellID{100, 200},
	}})

	did, ok := r.DomainOfParticle(20)
	if !ok || did != 1 {
		t.Errorf("DomainOfParticle(20) = %v, %v, want 1, true", did, ok)
	}
	if got := r.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
}

func TestKindString(t *testing.T) {
	tests := []struct {
		k    Kind
		want string
	}{
		{Single, "single"},
		{Pair, "pair"},
		{Multi, "multi"},
		{Birth, "birth"},
	}
	for _, tt := range tests {
		if got := tt.k.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.k, got, tt.want)
		}
	}
}

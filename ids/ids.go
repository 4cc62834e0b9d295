// Package ids defines the opaque, stable, comparable identifiers used
// throughout the simulation kernel: shells, domains, events, particles,
// faces and vertices are never referenced by pointer, only by ID, so that
// the shell/domain/event registries can be the single owners of their data.
package ids

import "fmt"

// ShellID identifies a protective shell owned by exactly one domain.
type ShellID uint64

func (id ShellID) String() string { return fmt.Sprintf("shell#%d", uint64(id)) }

// DomainID identifies a Single, Pair or Multi domain.
type DomainID uint64

func (id DomainID) String() string { return fmt.Sprintf("domain#%d", uint64(id)) }

// EventID identifies a scheduler entry. EventIDs are never reused.
type EventID uint64

func (id EventID) String() string { return fmt.Sprintf("event#%d", uint64(id)) }

// ParticleID identifies a particle in the external World store.
type ParticleID uint64

func (id ParticleID) String() string { return fmt.Sprintf("particle#%d", uint64(id)) }

// FaceID identifies one triangle of the host polygon.
type FaceID uint64

func (id FaceID) String() string { return fmt.Sprintf("face#%d", uint64(id)) }

// VertexID identifies a vertex of the host polygon.
type VertexID uint64

func (id VertexID) String() string { return fmt.Sprintf("vertex#%d", uint64(id)) }

// Counter is a monotonic generator for any of the ID types above. It is the
// sole source of fresh IDs: nothing else in the kernel is allowed to mint
// one, which keeps every ID comparable and never reused within a run.
type Counter struct {
	next uint64
}

// Next returns the next value in the sequence, starting at 1 so the zero
// value of every ID type is reserved to mean "unset".
func (c *Counter) Next() uint64 {
	c.next++
	return c.next
}

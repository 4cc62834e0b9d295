// Package shell implements the protective-shell data model (§3) and the
// Shell Container (C1, §4.1): a spatial index of shells keyed by ShellID
// with a secondary index per structural element (FaceID for circular
// shells, VertexID for conical ones).
package shell

import (
	"fmt"
	"sort"

	"github.com/pthm-cable/sgfrd/geom"
	"github.com/pthm-cable/sgfrd/ids"
)

// Kind distinguishes the two shell variants. Modeled as a tagged sum per
// §9's design note, not an interface hierarchy: every call site switches
// on Kind explicitly.
type Kind int

const (
	Circular Kind = iota
	Conical
)

// Shell is a protective region around one or more particles.
type Shell struct {
	Kind Kind
	Size float64

	// Circular fields.
	Face   ids.FaceID
	Center geom.Real3

	// Conical fields.
	Vertex ids.VertexID
}

// SurfacePoint returns the shell's reference point as a geom.SurfacePoint,
// resolving the conical case via the polygon (a vertex's position
// restricted to one of its incident faces, arbitrary but stable).
func (s Shell) SurfacePoint(poly geom.Polygon) geom.SurfacePoint {
	switch s.Kind {
	case Circular:
		return geom.SurfacePoint{Pos: s.Center, Face: s.Face}
	case Conical:
		v, _ := poly.VertexAt(s.Vertex)
		faces := poly.FacesAroundVertex(s.Vertex)
		var face ids.FaceID
		if len(faces) > 0 {
			face = faces[0]
		}
		return geom.SurfacePoint{Pos: v.Pos, Face: face}
	}
	return geom.SurfacePoint{}
}

// Distance dispatches over the shell variant to compute the geodesic
// distance from the shell's reference point to p (§4.1).
func Distance(poly geom.Polygon, s Shell, p geom.SurfacePoint) float64 {
	return poly.Distance(s.SurfacePoint(poly), p)
}

// Entry is one shell as returned by a spatial query, paired with its
// geodesic distance from the query point.
type Entry struct {
	ID       ids.ShellID
	Shell    Shell
	DomainID ids.DomainID
	Distance float64
}

// Container is the Shell Container (C1): shells keyed by ShellID with a
// secondary per-face / per-vertex index. The index is linear, which the
// spec explicitly allows for small N (§4.1); only the ordering of
// list_within_radius is a contract requirement, not the index structure.
type Container struct {
	poly   geom.Polygon
	shells map[ids.ShellID]Shell
	owner  map[ids.ShellID]ids.DomainID

	byFace   map[ids.FaceID][]ids.ShellID
	byVertex map[ids.VertexID][]ids.ShellID
}

func NewContainer(poly geom.Polygon) *Container {
	return &Container{
		poly:     poly,
		shells:   make(map[ids.ShellID]Shell),
		owner:    make(map[ids.ShellID]ids.DomainID),
		byFace:   make(map[ids.FaceID][]ids.ShellID),
		byVertex: make(map[ids.VertexID][]ids.ShellID),
	}
}

// Add inserts a shell under the given id and owning domain. The caller
// guarantees non-overlap against other shells; in a debug build this
// should be checked with a preceding ListWithinRadius call.
func (c *Container) Add(id ids.ShellID, s Shell, domain ids.DomainID) {
	c.shells[id] = s
	c.owner[id] = domain
	switch s.Kind {
	case Circular:
		c.byFace[s.Face] = append(c.byFace[s.Face], id)
	case Conical:
		c.byVertex[s.Vertex] = append(c.byVertex[s.Vertex], id)
	}
}

// Remove deletes a shell. Removing an id that is not present is a no-op,
// matching the idempotence the scheduler requires of removal (§4.2).
func (c *Container) Remove(id ids.ShellID) {
	s, ok := c.shells[id]
	if !ok {
		return
	}
	delete(c.shells, id)
	delete(c.owner, id)
	switch s.Kind {
	case Circular:
		c.byFace[s.Face] = removeID(c.byFace[s.Face], id)
	case Conical:
		c.byVertex[s.Vertex] = removeID(c.byVertex[s.Vertex], id)
	}
}

func removeID(list []ids.ShellID, id ids.ShellID) []ids.ShellID {
	for i, x := range list {
		if x == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// Get returns the shell and its owning domain.
func (c *Container) Get(id ids.ShellID) (Shell, ids.DomainID, bool) {
	s, ok := c.shells[id]
	if !ok {
		return Shell{}, 0, false
	}
	return s, c.owner[id], true
}

// Len reports how many shells are currently tracked.
func (c *Container) Len() int { return len(c.shells) }

// ListWithinRadius returns every shell whose geodesic distance from p is
// <= r, sorted ascending by distance (§4.1). Linear scan: correct
// ordering is the contract, not a specific index structure.
func (c *Container) ListWithinRadius(p geom.SurfacePoint, r float64) []Entry {
	var out []Entry
	for id, s := range c.shells {
		d := c.poly.Distance(s.SurfacePoint(c.poly), p)
		if d <= r {
			out = append(out, Entry{ID: id, Shell: s, DomainID: c.owner[id], Distance: d})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out
}

// IntrusiveWithin returns every shell that would overlap a prospective
// shell of the given size centered at p — i.e. whose geodesic distance
// from p is <= size + that shell's own size — sorted ascending by
// distance. This is the "list intrusive domains" query the Shell
// Constructor (§4.5) and Burst Protocol (§4.6) both need.
func (c *Container) IntrusiveWithin(p geom.SurfacePoint, size float64) []Entry {
	var out []Entry
	for id, s := range c.shells {
		d := c.poly.Distance(s.SurfacePoint(c.poly), p)
		if d <= size+s.Size {
			out = append(out, Entry{ID: id, Shell: s, DomainID: c.owner[id], Distance: d})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out
}

// CheckNonOverlap verifies invariant 1 (§8): every pair of shells
// belonging to different domains must be at least the sum of their
// sizes apart. Returns the first violation found, if any.
func (c *Container) CheckNonOverlap(eps float64) error {
	ids_ := make([]ids.ShellID, 0, len(c.shells))
	for id := range c.shells {
		ids_ = append(ids_, id)
	}
	for i := 0; i < len(ids_); i++ {
		for j := i + 1; j < len(ids_); j++ {
			a, b := c.shells[ids_[i]], c.shells[ids_[j]]
			if c.owner[ids_[i]] == c.owner[ids_[j]] {
				continue
			}
			d := c.poly.Distance(a.SurfacePoint(c.poly), b.SurfacePoint(c.poly))
			if d+eps < a.Size+b.Size {
				return fmt.Errorf("shell: overlap between %v and %v (distance %g < sizes %g+%g)",
					ids_[i], ids_[j], d, a.Size, b.Size)
			}
		}
	}
	return nil
}

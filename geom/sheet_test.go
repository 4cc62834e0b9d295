package geom

import (
	"math"
	"testing"
)

func TestNewSheetFaceCount(t *testing.T) {
	s := NewSheet(SheetOptions{NX: 4, NY: 3, Width: 1, Height: 1})
	want := 4 * 3 * 2 // two triangles per grid cell
	got := 0
	for range s.faces {
		got++
	}
	if got != want {
		t.Errorf("face count = %d, want %d", got, want)
	}
}

func TestNewSheetVertexCount(t *testing.T) {
	s := NewSheet(SheetOptions{NX: 4, NY: 3, Width: 1, Height: 1})
	want := (4 + 1) * (3 + 1)
	got := 0
	for range s.verts {
		got++
	}
	if got != want {
		t.Errorf("vertex count = %d, want %d", got, want)
	}
}

func TestDistanceSameFaceIsEuclidean(t *testing.T) {
	s := NewSheet(SheetOptions{NX: 2, NY: 2, Width: 1, Height: 1})
	tri, ok := s.TriangleAt(1)
	if !ok {
		t.Fatal("expected face 1 to exist")
	}
	a := SurfacePoint{Pos: tri.P[0], Face: tri.ID}
	b := SurfacePoint{Pos: tri.P[1], Face: tri.ID}
	want := math.Hypot(tri.P[1].X-tri.P[0].X, tri.P[1].Y-tri.P[0].Y)
	got := s.Distance(a, b)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Distance(same face) = %v, want %v", got, want)
	}
}

func TestDistanceIsZeroForIdenticalPoint(t *testing.T) {
	s := NewSheet(SheetOptions{NX: 2, NY: 2, Width: 1, Height: 1})
	tri, _ := s.TriangleAt(1)
	p := SurfacePoint{Pos: tri.P[0], Face: tri.ID}
	if d := s.Distance(p, p); d != 0 {
		t.Errorf("Distance(p, p) = %v, want 0", d)
	}
}

func TestNearestEdgeDistanceNonNegative(t *testing.T) {
	s := NewSheet(SheetOptions{NX: 5, NY: 5, Width: 1, Height: 1})
	tri, _ := s.TriangleAt(1)
	center := centroid(tri)
	d := s.NearestEdgeDistance(center, tri.ID)
	if d < 0 {
		t.Errorf("NearestEdgeDistance = %v, want >= 0", d)
	}
}

func TestFacesAroundVertexNonEmpty(t *testing.T) {
	s := NewSheet(SheetOptions{NX: 3, NY: 3, Width: 1, Height: 1})
	// Pick a vertex from an existing face.
	tri, _ := s.TriangleAt(1)
	faces := s.FacesAroundVertex(tri.V[0])
	if len(faces) == 0 {
		t.Errorf("expected at least one face around vertex %v", tri.V[0])
	}
}

func TestTravelWithinFaceStaysOnSameFace(t *testing.T) {
	s := NewSheet(SheetOptions{NX: 4, NY: 4, Width: 1, Height: 1})
	tri, _ := s.TriangleAt(1)
	start := SurfacePoint{Pos: centroid(tri), Face: tri.ID}
	tiny := Real3{X: 1e-4, Y: 1e-4, Z: 0}
	end, hopsLeft := s.Travel(start, tiny, 2)
	if end.Face != tri.ID {
		t.Errorf("small displacement should stay on the starting face, got face %v", end.Face)
	}
	if hopsLeft != 2 {
		t.Errorf("hopsLeft = %d, want 2 (no hop consumed)", hopsLeft)
	}
}

func TestTravelZeroDisplacementIsNoop(t *testing.T) {
	s := NewSheet(SheetOptions{NX: 3, NY: 3, Width: 1, Height: 1})
	tri, _ := s.TriangleAt(1)
	start := SurfacePoint{Pos: centroid(tri), Face: tri.ID}
	end, _ := s.Travel(start, Real3{}, 2)
	if end.Pos != start.Pos || end.Face != start.Face {
		t.Errorf("Travel with zero displacement moved the point: %+v -> %+v", start, end)
	}
}

func TestFaceIDsStartAtOneIndependentlyOfVertexIDs(t *testing.T) {
	// FaceID and VertexID are allocated from separate counters, so face 1
	// must resolve even when the grid has far more vertices than 1.
	s := NewSheet(SheetOptions{NX: 10, NY: 10, Width: 1, Height: 1})
	if _, ok := s.TriangleAt(1); !ok {
		t.Errorf("expected face 1 to resolve regardless of vertex count")
	}
}

func TestTriangleAtUnknownFaceIsMiss(t *testing.T) {
	s := NewSheet(SheetOptions{NX: 2, NY: 2, Width: 1, Height: 1})
	if _, ok := s.TriangleAt(99999); ok {
		t.Errorf("expected unknown face to miss")
	}
}

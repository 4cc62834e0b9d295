package geom

import (
	"container/heap"
	"fmt"
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/sgfrd/ids"
)

// Sheet is a rectangular grid of triangles, optionally perturbed by noise
// to give it non-trivial curvature. It is the reference Polygon
// implementation used by the demo scenarios and the kernel's own tests.
type Sheet struct {
	faces map[ids.FaceID]Triangle
	verts map[ids.VertexID]Vertex

	faceOrder []ids.FaceID // stable iteration order, for the face graph
	adjacency map[ids.FaceID][]ids.FaceID
}

// SheetOptions configures sheet generation.
type SheetOptions struct {
	NX, NY        int     // number of grid cells along each axis
	Width, Height float64 // physical extent

	// Noise, if non-nil, perturbs vertex height by
	// Amplitude * Noise.Eval2(x*Scale, y*Scale).
	Noise     opensimplex.Noise
	Scale     float64
	Amplitude float64
}

// NewSheet builds a triangulated rectangular sheet per opts.
func NewSheet(opts SheetOptions) *Sheet {
	if opts.NX < 1 {
		opts.NX = 1
	}
	if opts.NY < 1 {
		opts.NY = 1
	}

	s := &Sheet{
		faces:     make(map[ids.FaceID]Triangle),
		verts:     make(map[ids.VertexID]Vertex),
		adjacency: make(map[ids.FaceID][]ids.FaceID),
	}

	var vidCounter, fidCounter ids.Counter
	vidGrid := make([][]ids.VertexID, opts.NY+1)
	for j := 0; j <= opts.NY; j++ {
		vidGrid[j] = make([]ids.VertexID, opts.NX+1)
		for i := 0; i <= opts.NX; i++ {
			x := float64(i) / float64(opts.NX) * opts.Width
			y := float64(j) / float64(opts.NY) * opts.Height
			z := 0.0
			if opts.Noise != nil {
				z = opts.Amplitude * opts.Noise.Eval2(x*opts.Scale, y*opts.Scale)
			}
			vid := ids.VertexID(vidCounter.Next())
			vidGrid[j][i] = vid
			s.verts[vid] = Vertex{ID: vid, Pos: r3.Vec{X: x, Y: y, Z: z}}
		}
	}

	type edgeKey struct{ a, b ids.VertexID }
	normKey := func(a, b ids.VertexID) edgeKey {
		if a > b {
			a, b = b, a
		}
		return edgeKey{a, b}
	}
	edgeOwners := make(map[edgeKey][2]struct {
		face ids.FaceID
		idx  int
	})

	addFace := func(v0, v1, v2 ids.VertexID) ids.FaceID {
		fid := ids.FaceID(fidCounter.Next())
		t := Triangle{
			ID: fid,
			V:  [3]ids.VertexID{v0, v1, v2},
			P:  [3]r3.Vec{s.verts[v0].Pos, s.verts[v1].Pos, s.verts[v2].Pos},
		}
		e01 := r3.Sub(t.P[1], t.P[0])
		e02 := r3.Sub(t.P[2], t.P[0])
		n := r3.Cross(e01, e02)
		if nn := r3.Norm(n); nn > 0 {
			n = r3.Scale(1/nn, n)
		}
		t.Normal = n
		s.faces[fid] = t
		s.faceOrder = append(s.faceOrder, fid)

		verts := [3]ids.VertexID{v0, v1, v2}
		for i := 0; i < 3; i++ {
			k := normKey(verts[i], verts[(i+1)%3])
			owners := edgeOwners[k]
			if owners[0].face == 0 {
				owners[0] = struct {
					face ids.FaceID
					idx  int
				}{fid, i}
			} else {
				owners[1] = struct {
					face ids.FaceID
					idx  int
				}{fid, i}
			}
			edgeOwners[k] = owners
		}
		return fid
	}

	for j := 0; j < opts.NY; j++ {
		for i := 0; i < opts.NX; i++ {
			v00 := vidGrid[j][i]
			v10 := vidGrid[j][i+1]
			v11 := vidGrid[j+1][i+1]
			v01 := vidGrid[j+1][i]
			addFace(v00, v10, v11)
			addFace(v00, v11, v01)
		}
	}

	// Stitch neighbors from the shared-edge table.
	for _, owners := range edgeOwners {
		a, b := owners[0], owners[1]
		if a.face == 0 || b.face == 0 {
			continue
		}
		fa := s.faces[a.face]
		fa.Neighbor[a.idx] = b.face
		s.faces[a.face] = fa

		fb := s.faces[b.face]
		fb.Neighbor[b.idx] = a.face
		s.faces[b.face] = fb

		s.adjacency[a.face] = append(s.adjacency[a.face], b.face)
		s.adjacency[b.face] = append(s.adjacency[b.face], a.face)
	}

	// Apex angles: sum the incident-face angle at each vertex.
	angleSum := make(map[ids.VertexID]float64)
	for _, t := range s.faces {
		for k := 0; k < 3; k++ {
			apex := t.P[k]
			p1 := t.P[(k+1)%3]
			p2 := t.P[(k+2)%3]
			angleSum[t.V[k]] += vectorAngle(r3.Sub(p1, apex), r3.Sub(p2, apex))
		}
	}
	for vid, a := range angleSum {
		v := s.verts[vid]
		v.ApexAngle = a
		s.verts[vid] = v
	}

	return s
}

func vectorAngle(a, b r3.Vec) float64 {
	na, nb := r3.Norm(a), r3.Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	cos := r3.Dot(a, b) / (na * nb)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos)
}

func (s *Sheet) TriangleAt(fid ids.FaceID) (Triangle, bool) {
	t, ok := s.faces[fid]
	return t, ok
}

func (s *Sheet) VertexAt(vid ids.VertexID) (Vertex, bool) {
	v, ok := s.verts[vid]
	return v, ok
}

func (s *Sheet) FacesAroundVertex(vid ids.VertexID) []ids.FaceID {
	var out []ids.FaceID
	for _, fid := range s.faceOrder {
		t := s.faces[fid]
		if t.V[0] == vid || t.V[1] == vid || t.V[2] == vid {
			out = append(out, fid)
		}
	}
	return out
}

func (s *Sheet) MaxConeSize(vid ids.VertexID) float64 {
	best := math.Inf(1)
	v := s.verts[vid]
	for _, fid := range s.FacesAroundVertex(vid) {
		t := s.faces[fid]
		for k := 0; k < 3; k++ {
			if t.V[k] == vid {
				continue
			}
			d := r3.Norm(r3.Sub(t.P[k], v.Pos))
			if d < best {
				best = d
			}
		}
	}
	if math.IsInf(best, 1) {
		return 0
	}
	return best
}

func (s *Sheet) NearestVertex(p r3.Vec, fid ids.FaceID) (ids.VertexID, float64) {
	t, ok := s.faces[fid]
	if !ok {
		return 0, math.Inf(1)
	}
	best := math.Inf(1)
	var bestID ids.VertexID
	for k := 0; k < 3; k++ {
		d := r3.Norm(r3.Sub(t.P[k], p))
		if d < best {
			best = d
			bestID = t.V[k]
		}
	}
	return bestID, best
}

func (s *Sheet) NearestEdgeDistance(p r3.Vec, fid ids.FaceID) float64 {
	t, ok := s.faces[fid]
	if !ok {
		return 0
	}
	best := math.Inf(1)
	for i := 0; i < 3; i++ {
		a, b := t.Edge(i)
		d := pointSegmentDistance(p, a, b)
		if d < best {
			best = d
		}
	}
	return best
}

func pointSegmentDistance(p, a, b r3.Vec) float64 {
	ab := r3.Sub(b, a)
	denom := r3.Dot(ab, ab)
	if denom == 0 {
		return r3.Norm(r3.Sub(p, a))
	}
	t := r3.Dot(r3.Sub(p, a), ab) / denom
	t = math.Max(0, math.Min(1, t))
	closest := r3.Add(a, r3.Scale(t, ab))
	return r3.Norm(r3.Sub(p, closest))
}

// baryCoords returns the barycentric weights of p with respect to t's
// three vertices (u for P0, v for P1, w for P2; u+v+w == 1).
func baryCoords(t Triangle, p r3.Vec) (u, v, w float64) {
	v0 := r3.Sub(t.P[1], t.P[0])
	v1 := r3.Sub(t.P[2], t.P[0])
	v2 := r3.Sub(p, t.P[0])

	d00 := r3.Dot(v0, v0)
	d01 := r3.Dot(v0, v1)
	d11 := r3.Dot(v1, v1)
	d20 := r3.Dot(v2, v0)
	d21 := r3.Dot(v2, v1)

	denom := d00*d11 - d01*d01
	if denom == 0 {
		return 1, 0, 0
	}
	vv := (d11*d20 - d01*d21) / denom
	ww := (d00*d21 - d01*d20) / denom
	return 1 - vv - ww, vv, ww
}

func inside(u, v, w, eps float64) bool {
	return u >= -eps && v >= -eps && w >= -eps
}

// edgeIdxOppositeVertex maps a barycentric-vertex index (0,1,2) to the
// Triangle.Edge index that lies opposite it.
var edgeIdxOppositeVertex = [3]int{1, 2, 0}

const defaultEps = 1e-9

func projectOntoPlane(v, normal r3.Vec) r3.Vec {
	d := r3.Dot(v, normal)
	return r3.Sub(v, r3.Scale(d, normal))
}

// Travel advances pos by disp, crossing up to maxHops edges (§4.4 step 6).
func (s *Sheet) Travel(pos SurfacePoint, disp r3.Vec, maxHops int) (SurfacePoint, int) {
	cur := pos
	remaining := disp
	hopsLeft := maxHops

	for {
		tri, ok := s.faces[cur.Face]
		if !ok {
			return cur, hopsLeft
		}
		proj := projectOntoPlane(remaining, tri.Normal)
		target := r3.Add(cur.Pos, proj)

		u0, v0, w0 := baryCoords(tri, cur.Pos)
		u1, v1, w1 := baryCoords(tri, target)
		_ = u0
		_ = v0
		_ = w0

		if inside(u1, v1, w1, defaultEps) || hopsLeft <= 0 {
			return SurfacePoint{Pos: target, Face: cur.Face}, hopsLeft
		}

		// Find the first edge the segment cur->target crosses.
		type crossing struct {
			t   float64
			idx int
		}
		best := crossing{t: math.Inf(1), idx: -1}
		cs := [3]float64{u0, v0, w0}
		ce := [3]float64{u1, v1, w1}
		for k := 0; k < 3; k++ {
			if cs[k] >= 0 && ce[k] < 0 {
				denom := cs[k] - ce[k]
				if denom == 0 {
					continue
				}
				t := cs[k] / denom
				if t >= 0 && t <= 1 && t < best.t {
					best = crossing{t: t, idx: edgeIdxOppositeVertex[k]}
				}
			}
		}
		if best.idx < 0 {
			// Couldn't resolve an exit edge: settle at the unresolved
			// target on the current face. hopsLeft is returned unchanged
			// (still > 0), so callers do not see this as precision loss.
			return SurfacePoint{Pos: target, Face: cur.Face}, hopsLeft
		}

		xpt := r3.Add(cur.Pos, r3.Scale(best.t, proj))
		nextFace := tri.Neighbor[best.idx]
		if nextFace == 0 {
			// Polygon boundary: clamp to the edge, travel stops here.
			return SurfacePoint{Pos: xpt, Face: cur.Face}, hopsLeft
		}

		leftover := r3.Scale(1-best.t, proj)
		remaining = leftover
		cur = SurfacePoint{Pos: xpt, Face: nextFace}
		hopsLeft--
	}
}

// Roll moves pos by geodesic radius r and angle θ around vid, treating
// the faces fanned around vid as locally unfolded flat. This is a
// simplified stand-in for the real conical-unfolding algorithm, which is
// out of the kernel's scope (§1); it is exact only when the fan around
// vid is itself flat (ApexAngle == 2π).
func (s *Sheet) Roll(pos SurfacePoint, vid ids.VertexID, r, theta float64) (SurfacePoint, error) {
	v, ok := s.verts[vid]
	if !ok {
		return SurfacePoint{}, ErrUnknownVertex
	}
	faces := s.FacesAroundVertex(vid)
	if len(faces) == 0 {
		return SurfacePoint{}, fmt.Errorf("geom: vertex %v has no incident faces", vid)
	}

	tri, ok := s.faces[pos.Face]
	if !ok {
		tri = s.faces[faces[0]]
	}

	ref := r3.Sub(pos.Pos, v.Pos)
	if r3.Norm(ref) < defaultEps {
		ref = tri.RepresentativeEdge()
	} else {
		ref = r3.Unit(ref)
	}

	rot := r3.NewRotation(theta, tri.Normal)
	dir := rot.Rotate(ref)
	target := r3.Add(v.Pos, r3.Scale(r, dir))

	start := SurfacePoint{Pos: v.Pos, Face: tri.ID}
	settled, _ := s.Travel(start, r3.Sub(target, v.Pos), len(faces)+1)
	return settled, nil
}

func (s *Sheet) Direction(from, to SurfacePoint) r3.Vec {
	tri, ok := s.faces[from.Face]
	diff := r3.Sub(to.Pos, from.Pos)
	if !ok {
		if n := r3.Norm(diff); n > 0 {
			return r3.Scale(1/n, diff)
		}
		return diff
	}
	proj := projectOntoPlane(diff, tri.Normal)
	if n := r3.Norm(proj); n > 0 {
		return r3.Scale(1/n, proj)
	}
	return proj
}

func sharedVertex(a, b Triangle) (ids.VertexID, bool) {
	for _, va := range a.V {
		for _, vb := range b.V {
			if va == vb {
				return va, true
			}
		}
	}
	return 0, false
}

func (s *Sheet) Distance(a, b SurfacePoint) float64 {
	if a.Face == b.Face {
		return r3.Norm(r3.Sub(a.Pos, b.Pos))
	}
	ta, aok := s.faces[a.Face]
	tb, bok := s.faces[b.Face]
	if aok && bok {
		if shared, ok := sharedVertex(ta, tb); ok {
			vp := s.verts[shared].Pos
			return r3.Norm(r3.Sub(a.Pos, vp)) + r3.Norm(r3.Sub(vp, b.Pos))
		}
	}
	return s.faceGraphDistance(a, b)
}

func centroid(t Triangle) r3.Vec {
	return r3.Scale(1.0/3.0, r3.Add(r3.Add(t.P[0], t.P[1]), t.P[2]))
}

// faceHeapItem/faceHeap implement a Dijkstra open set over the face
// adjacency graph, the same container/heap shape used by the kernel's
// event scheduler.
type faceHeapItem struct {
	face  ids.FaceID
	dist  float64
	index int
}

type faceHeap []*faceHeapItem

func (h faceHeap) Len() int            { return len(h) }
func (h faceHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h faceHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *faceHeap) Push(x interface{}) { item := x.(*faceHeapItem); item.index = len(*h); *h = append(*h, item) }
func (h *faceHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// faceGraphDistance approximates the geodesic distance between two
// points on disjoint, non-edge-sharing faces by shortest-pathing over
// face centroids and adding the within-face offsets at both ends.
func (s *Sheet) faceGraphDistance(a, b SurfacePoint) float64 {
	ta, aok := s.faces[a.Face]
	tb, bok := s.faces[b.Face]
	if !aok || !bok {
		return r3.Norm(r3.Sub(a.Pos, b.Pos))
	}

	dist := map[ids.FaceID]float64{a.Face: 0}
	h := &faceHeap{}
	heap.Init(h)
	heap.Push(h, &faceHeapItem{face: a.Face, dist: 0})

	for h.Len() > 0 {
		cur := heap.Pop(h).(*faceHeapItem)
		if d, ok := dist[cur.face]; ok && cur.dist > d {
			continue
		}
		if cur.face == b.Face {
			break
		}
		curCentroid := centroid(s.faces[cur.face])
		for _, nb := range s.adjacency[cur.face] {
			step := r3.Norm(r3.Sub(centroid(s.faces[nb]), curCentroid))
			nd := cur.dist + step
			if d, ok := dist[nb]; !ok || nd < d {
				dist[nb] = nd
				heap.Push(h, &faceHeapItem{face: nb, dist: nd})
			}
		}
	}

	mid, ok := dist[b.Face]
	if !ok {
		// Disconnected faces: fall back to a straight-line estimate.
		return r3.Norm(r3.Sub(a.Pos, b.Pos))
	}
	return r3.Norm(r3.Sub(a.Pos, centroid(ta))) + mid + r3.Norm(r3.Sub(centroid(tb), b.Pos))
}

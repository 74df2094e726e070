// Package weld converts triangle soups into indexed meshes.
//
// Vertices are merged when their positions lie within a Euclidean tolerance
// and their normals and texture coordinates agree within small per-component
// epsilons. Candidates are found through a uniform grid over positions so
// the cost stays close to linear for well-distributed input.
package weld

import (
	"math"

	"github.com/chewxy/math32"

	"github.com/Faultbox/meshbake/pkg/bakeerr"
	m "github.com/Faultbox/meshbake/pkg/math"
)

// Default matching thresholds.
const (
	DefaultTolerance     = 1e-5
	DefaultNormalEpsilon = 1e-4
	DefaultUVEpsilon     = 1e-5
)

// TriangleSoup is an unindexed vertex stream. All three slices have the same
// length, a multiple of three.
type TriangleSoup struct {
	Positions []m.Vec3
	Normals   []m.Vec3
	UVs       []m.Vec2
}

// Len returns the number of soup vertices.
func (s TriangleSoup) Len() int { return len(s.Positions) }

// IndexedMesh is a deduplicated vertex buffer plus triangle indices.
// Tangent W holds the bitangent handedness (+1 or -1).
type IndexedMesh struct {
	Positions []m.Vec3
	Normals   []m.Vec3
	UVs       []m.Vec2
	Tangents  []m.Vec4
	Indices   []uint32
}

// VertexCount returns the number of kept vertices.
func (im IndexedMesh) VertexCount() int { return len(im.Positions) }

// Soup expands the mesh back into a triangle soup.
func (im IndexedMesh) Soup() TriangleSoup {
	s := TriangleSoup{
		Positions: make([]m.Vec3, len(im.Indices)),
		Normals:   make([]m.Vec3, len(im.Indices)),
		UVs:       make([]m.Vec2, len(im.Indices)),
	}
	for i, idx := range im.Indices {
		s.Positions[i] = im.Positions[idx]
		s.Normals[i] = im.Normals[idx]
		s.UVs[i] = im.UVs[idx]
	}
	return s
}

// Options controls vertex matching.
//
// Tolerance is the maximum position distance. NormalEpsilon and UVEpsilon
// bound the per-component difference of normals and uvs. A zero Tolerance
// turns every comparison into an exact match.
type Options struct {
	Tolerance     float64
	NormalEpsilon float32
	UVEpsilon     float32
}

// DefaultOptions returns the default matching thresholds.
func DefaultOptions() Options {
	return Options{
		Tolerance:     DefaultTolerance,
		NormalEpsilon: DefaultNormalEpsilon,
		UVEpsilon:     DefaultUVEpsilon,
	}
}

// WithTolerance returns o with the position tolerance replaced.
func (o Options) WithTolerance(t float64) Options {
	o.Tolerance = t
	return o
}

type cellKey struct {
	x, y, z int64
}

type welder struct {
	opts  Options
	cell  float64
	exact bool
	grid  map[cellKey][]uint32
	out   *IndexedMesh
}

// Weld merges near-identical vertices of soup and synthesizes tangents.
//
// Vertices are visited in input order; a vertex reuses the lowest-numbered
// kept vertex that matches it, otherwise it is appended. Mismatched slice
// lengths or a length that is not a multiple of three panic with a
// bakeerr.ErrContract error.
func Weld(soup TriangleSoup, opts Options) IndexedMesh {
	n := soup.Len()
	if len(soup.Normals) != n || len(soup.UVs) != n {
		bakeerr.Contractf("soup attribute lengths differ: %d positions, %d normals, %d uvs",
			n, len(soup.Normals), len(soup.UVs))
	}
	if n%3 != 0 {
		bakeerr.Contractf("soup length %d is not a multiple of 3", n)
	}
	if opts.Tolerance < 0 || math.IsNaN(opts.Tolerance) {
		bakeerr.Contractf("negative weld tolerance %v", opts.Tolerance)
	}

	out := IndexedMesh{Indices: make([]uint32, 0, n)}
	if n == 0 {
		return out
	}

	w := &welder{
		opts:  opts,
		cell:  2 * opts.Tolerance,
		exact: opts.Tolerance == 0,
		grid:  make(map[cellKey][]uint32),
		out:   &out,
	}
	if w.exact {
		w.opts.NormalEpsilon, w.opts.UVEpsilon = 0, 0
	}

	for i := 0; i < n; i++ {
		out.Indices = append(out.Indices, w.insert(soup.Positions[i], soup.Normals[i], soup.UVs[i]))
	}

	computeTangents(soup, &out)
	return out
}

// insert returns the index of the kept vertex matching (p, nrm, uv),
// appending a new one when none matches.
func (w *welder) insert(p, nrm m.Vec3, uv m.Vec2) uint32 {
	key := w.key(p)
	if idx, ok := w.find(key, p, nrm, uv); ok {
		return idx
	}

	idx := uint32(len(w.out.Positions))
	w.out.Positions = append(w.out.Positions, p)
	w.out.Normals = append(w.out.Normals, nrm)
	w.out.UVs = append(w.out.UVs, uv)
	w.grid[key] = append(w.grid[key], idx)
	return idx
}

func (w *welder) find(key cellKey, p, nrm m.Vec3, uv m.Vec2) (uint32, bool) {
	best, found := uint32(0), false
	check := func(k cellKey) {
		for _, idx := range w.grid[k] {
			if found && idx >= best {
				// cell lists are ascending
				break
			}
			if w.matches(idx, p, nrm, uv) {
				best, found = idx, true
				break
			}
		}
	}

	if w.exact {
		check(key)
		return best, found
	}
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for dz := int64(-1); dz <= 1; dz++ {
				check(cellKey{key.x + dx, key.y + dy, key.z + dz})
			}
		}
	}
	return best, found
}

func (w *welder) matches(idx uint32, p, nrm m.Vec3, uv m.Vec2) bool {
	if w.exact {
		return w.out.Positions[idx] == p && w.out.Normals[idx] == nrm && w.out.UVs[idx] == uv
	}
	return w.out.Positions[idx].Distance(p) <= w.opts.Tolerance &&
		w.out.Normals[idx].ApproxEqual(nrm, w.opts.NormalEpsilon) &&
		w.out.UVs[idx].ApproxEqual(uv, w.opts.UVEpsilon)
}

func (w *welder) key(p m.Vec3) cellKey {
	if w.exact {
		return cellKey{bitsKey(p.X), bitsKey(p.Y), bitsKey(p.Z)}
	}
	return cellKey{
		quantize(p.X, w.cell),
		quantize(p.Y, w.cell),
		quantize(p.Z, w.cell),
	}
}

// bitsKey maps -0 and +0 to the same cell.
func bitsKey(v float32) int64 {
	if v == 0 {
		return 0
	}
	return int64(math32.Float32bits(v))
}

func quantize(v float32, cell float64) int64 {
	q := math.Floor(float64(v) / cell)
	switch {
	case math.IsNaN(q):
		return 0
	case q > math.MaxInt64/2:
		return math.MaxInt64 / 2
	case q < math.MinInt64/2:
		return math.MinInt64 / 2
	}
	return int64(q)
}
